package command_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	command "github.com/JohnPlummer/jp-go-command"
	"github.com/JohnPlummer/jp-go-command/cache"
)

func fastRetryPolicy(maxAttempts int) command.RetryPolicy {
	return command.RetryPolicy{
		MaxAttempts:  maxAttempts,
		Strategy:     command.BackoffConstant,
		InitialDelay: time.Millisecond,
		Classifier:   command.DefaultClassifier(),
	}
}

var _ = Describe("Engine", func() {
	var engine *command.Engine

	BeforeEach(func() {
		engine = command.NewEngine()
	})

	It("returns the callback's result on success", func() {
		desc, err := command.NewDescriptor[string]().
			WithName("engine-success").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				return baseURI + "/ok", nil
			}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		result, err := command.Execute(context.Background(), engine, desc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal("http://svc/ok"))
	})

	It("retries a retryable failure until it succeeds", func() {
		var attempts int32
		desc, err := command.NewDescriptor[string]().
			WithName("engine-retry").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				if atomic.AddInt32(&attempts, 1) < 3 {
					return "", errors.New("transient")
				}
				return "ok", nil
			}).
			WithRetryPolicy(fastRetryPolicy(5)).
			Build()
		Expect(err).NotTo(HaveOccurred())

		result, err := command.Execute(context.Background(), engine, desc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal("ok"))
		Expect(atomic.LoadInt32(&attempts)).To(Equal(int32(3)))
	})

	It("does not retry a non-retryable failure", func() {
		var attempts int32
		desc, err := command.NewDescriptor[string]().
			WithName("engine-nonretry").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				atomic.AddInt32(&attempts, 1)
				return "", command.NonRetryable(errors.New("bad request"))
			}).
			WithRetryPolicy(fastRetryPolicy(5)).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = command.Execute(context.Background(), engine, desc)
		Expect(err).To(HaveOccurred())
		Expect(atomic.LoadInt32(&attempts)).To(Equal(int32(1)))
	})

	It("does not count a non-retryable failure against the breaker's failure rate", func() {
		desc, err := command.NewDescriptor[string]().
			WithName("engine-nonretry-breaker").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				return "", command.NonRetryable(errors.New("bad request"))
			}).
			WithRetryPolicy(fastRetryPolicy(1)).
			WithBreakerPolicy(command.BreakerPolicy{
				Enabled:               true,
				ErrorThresholdPercent: 1,
				RollingWindow:         time.Minute,
				BucketCount:           10,
				MinRequestVolume:      1,
				SleepWindow:           time.Minute,
				Classifier:            command.DefaultClassifier(),
			}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = command.Execute(context.Background(), engine, desc)
		Expect(err).To(HaveOccurred())

		counts := engine.BreakerCounts("engine-nonretry-breaker")
		Expect(counts.TotalFailures).To(Equal(uint32(0)))
		Expect(counts.TotalSuccesses).To(Equal(uint32(1)))
	})

	It("exhausts attempts and wraps the last cause", func() {
		desc, err := command.NewDescriptor[string]().
			WithName("engine-exhausted").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				return "", errors.New("still failing")
			}).
			WithRetryPolicy(fastRetryPolicy(3)).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = command.Execute(context.Background(), engine, desc)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, command.ErrMaxAttemptsExhausted)).To(BeTrue())
	})

	It("short-circuits once the breaker trips", func() {
		desc, err := command.NewDescriptor[string]().
			WithName("engine-breaker").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				return "", errors.New("boom")
			}).
			WithRetryPolicy(fastRetryPolicy(1)).
			WithBreakerPolicy(command.BreakerPolicy{
				Enabled:               true,
				ErrorThresholdPercent: 1,
				RollingWindow:         time.Minute,
				BucketCount:           10,
				MinRequestVolume:      1,
				SleepWindow:           time.Minute,
				Classifier:            command.DefaultClassifier(),
			}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = command.Execute(context.Background(), engine, desc)
		Expect(err).To(HaveOccurred())

		_, err = command.Execute(context.Background(), engine, desc)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, command.ErrShortCircuited)).To(BeTrue())
	})

	It("serves a cache hit without invoking the callback", func() {
		var attempts int32
		memCache := cache.NewMap[string]("engine-cache-test")
		Expect(memCache.Put(context.Background(), "k", "cached-value")).To(Succeed())

		desc, err := command.NewDescriptor[string]().
			WithName("engine-cache").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				atomic.AddInt32(&attempts, 1)
				return "fresh-value", nil
			}).
			WithCache(memCache, "k").
			Build()
		Expect(err).NotTo(HaveOccurred())

		result, err := command.Execute(context.Background(), engine, desc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal("cached-value"))
		Expect(atomic.LoadInt32(&attempts)).To(Equal(int32(0)))
	})

	It("populates the cache after a successful miss", func() {
		memCache := cache.NewMap[string]("engine-cache-populate")

		desc, err := command.NewDescriptor[string]().
			WithName("engine-cache-populate").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				return "computed-value", nil
			}).
			WithCache(memCache, "k").
			Build()
		Expect(err).NotTo(HaveOccurred())

		result, err := command.Execute(context.Background(), engine, desc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal("computed-value"))

		cached, err := memCache.Get(context.Background(), "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(cached.Present()).To(BeTrue())
		Expect(cached.Value()).To(Equal("computed-value"))
	})

	It("shares one breaker across every command sharing a name", func() {
		desc1, err := command.NewDescriptor[string]().
			WithName("engine-shared").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				return "", errors.New("boom")
			}).
			WithRetryPolicy(fastRetryPolicy(1)).
			WithBreakerPolicy(command.BreakerPolicy{
				Enabled:               true,
				ErrorThresholdPercent: 1,
				RollingWindow:         time.Minute,
				BucketCount:           10,
				MinRequestVolume:      1,
				SleepWindow:           time.Minute,
				Classifier:            command.DefaultClassifier(),
			}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, _ = command.Execute(context.Background(), engine, desc1)

		desc2 := *desc1 // same Name, independent descriptor value
		_, err = command.Execute(context.Background(), engine, &desc2)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, command.ErrShortCircuited)).To(BeTrue())
	})

	It("rejects submissions once the bulkhead is saturated", func() {
		release := make(chan struct{})
		started := make(chan struct{})

		desc, err := command.NewDescriptor[string]().
			WithName("engine-bulkhead").
			WithURIProvider(command.NewConstantURIProvider[string]("http://svc")).
			WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (string, error) {
				close(started)
				<-release
				return "ok", nil
			}).
			WithPoolPolicy(command.PoolPolicy{MaxConcurrency: 1}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		go func() { _, _ = command.Execute(context.Background(), engine, desc) }()
		<-started

		_, err = command.Execute(context.Background(), engine, desc)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, command.ErrPoolRejected)).To(BeTrue())

		close(release)
	})
})
