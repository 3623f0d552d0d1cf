package correlation

import (
	"sync"
	"sync/atomic"
)

var (
	instance   atomic.Pointer[Validator]
	instanceMu sync.Mutex
)

// Configure creates the process-wide Validator. The first successful call
// wins; later calls log a warning and return the existing instance with
// their options ignored. A call whose options fail to compile leaves the
// instance unconfigured.
//
// Prefer New and explicit injection. Configure exists for code paths that
// cannot receive a Validator.
func Configure(opts ...Option) (*Validator, error) {
	if v := instance.Load(); v != nil {
		warnAlreadyConfigured(v)
		return v, nil
	}

	instanceMu.Lock()
	defer instanceMu.Unlock()

	if v := instance.Load(); v != nil {
		warnAlreadyConfigured(v)
		return v, nil
	}

	v, err := New(opts...)
	if err != nil {
		return nil, err
	}
	instance.Store(v)
	return v, nil
}

func warnAlreadyConfigured(v *Validator) {
	v.logger.Warn("correlation validator already configured, ignoring new configuration")
}

// Instance returns the process-wide Validator, or ErrNotConfigured if
// Configure has not succeeded yet.
func Instance() (*Validator, error) {
	if v := instance.Load(); v != nil {
		return v, nil
	}
	return nil, ErrNotConfigured
}

// MustInstance is like Instance but panics when unconfigured. Calling it
// before Configure is a startup-ordering bug.
func MustInstance() *Validator {
	v, err := Instance()
	if err != nil {
		panic(err)
	}
	return v
}

// resetInstance clears the process-wide Validator. Tests only.
func resetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance.Store(nil)
}
