package kernel

import "fmt"

// NewGPUKernel fails in builds without accelerator support.
func NewGPUKernel(opts Options) (Kernel, error) {
	return nil, fmt.Errorf("%w: gpu kernel is not compiled into this build, use the cpu backend", ErrBackendUnavailable)
}

// IsGPUAvailable reports whether NewGPUKernel can succeed.
func IsGPUAvailable() bool {
	k, err := NewGPUKernel(Options{})
	return err == nil && k != nil
}
