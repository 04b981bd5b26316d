package types

import "time"

// Option is a functional option for configuring cache writes.
type Option func(*CacheOptions)

// ApplyOptions applies functional options on top of DefaultOptions.
func ApplyOptions(opts ...Option) *CacheOptions {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithTTL sets the time-to-live. Zero or negative means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *CacheOptions) {
		o.TTL = ttl
	}
}

func WithStrategy(s WriteStrategy) Option {
	return func(o *CacheOptions) {
		o.Strategy = s
	}
}

// WithCacheAside writes only to L1.
func WithCacheAside() Option {
	return WithStrategy(CacheAside)
}
