package vision

import "fmt"

// Backend names accepted by New.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// New returns the backend registered under name.
func New(name string) (Ops, error) {
	switch name {
	case "", BackendNative:
		return NewNative(), nil
	case BackendOpenCV:
		return NewOpenCV()
	default:
		return nil, fmt.Errorf("unknown vision backend %q", name)
	}
}
