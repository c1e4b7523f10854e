package command_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	command "github.com/JohnPlummer/jp-go-command"
)

func noopCallback(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
	return "ok", nil
}

var _ = Describe("Descriptor Builder", func() {
	It("rejects a descriptor with no URIProvider", func() {
		_, err := command.NewDescriptor[string]().
			WithCallback(noopCallback).
			Build()
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, command.ErrInvalidDescriptor)).To(BeTrue())
	})

	It("rejects a descriptor with no Callback", func() {
		_, err := command.NewDescriptor[string]().
			WithURIProvider(command.NewConstantURIProvider[string]("http://example.com")).
			Build()
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, command.ErrInvalidDescriptor)).To(BeTrue())
	})

	It("defaults the command name to ApiCommand", func() {
		desc, err := command.NewDescriptor[string]().
			WithURIProvider(command.NewConstantURIProvider[string]("http://example.com")).
			WithCallback(noopCallback).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(desc.Name).To(Equal("ApiCommand"))
	})

	It("keeps an explicit command name", func() {
		desc, err := command.NewDescriptor[string]().
			WithName("pricing-lookup").
			WithURIProvider(command.NewConstantURIProvider[string]("http://example.com")).
			WithCallback(noopCallback).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(desc.Name).To(Equal("pricing-lookup"))
	})

	It("coerces a non-positive MaxAttempts to 1", func() {
		desc, err := command.NewDescriptor[string]().
			WithURIProvider(command.NewConstantURIProvider[string]("http://example.com")).
			WithCallback(noopCallback).
			WithRetryPolicy(command.RetryPolicy{MaxAttempts: 0}).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(desc.Retry.MaxAttempts).To(Equal(1))
	})

	It("does not treat caching as active when no Cache or key is set", func() {
		desc, err := command.NewDescriptor[string]().
			WithURIProvider(command.NewConstantURIProvider[string]("http://example.com")).
			WithCallback(noopCallback).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(desc.UsesCache()).To(BeFalse())
	})
})

var _ = Describe("CacheResult", func() {
	It("distinguishes a present hit from an absent miss", func() {
		miss := command.CacheMiss[string]()
		Expect(miss.Present()).To(BeFalse())

		hit := command.CacheHit("value")
		Expect(hit.Present()).To(BeTrue())
		Expect(hit.Value()).To(Equal("value"))
	})

	It("lets a present value itself represent a cached absence", func() {
		// A negative-lookup cache stores *string(nil) as the "value" for a
		// known-absent record, distinct from CacheMiss meaning "never
		// looked up".
		hit := command.CacheHit[*string](nil)
		Expect(hit.Present()).To(BeTrue())
		Expect(hit.Value()).To(BeNil())
	})
})
