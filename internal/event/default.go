package event

import "sync"

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once

	defaultOptions []RegistryOption
	defaultOptMu   sync.Mutex
)

// Configure sets the options used to create the default registry.
// It has no effect once Default has been called.
func Configure(opts ...RegistryOption) {
	defaultOptMu.Lock()
	defaultOptions = opts
	defaultOptMu.Unlock()
}

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultOptMu.Lock()
		opts := defaultOptions
		defaultOptMu.Unlock()
		defaultRegistry = NewRegistry(opts...)
	})
	return defaultRegistry
}
