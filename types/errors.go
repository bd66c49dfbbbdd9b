package types

import "errors"

// Error kinds. Stages wrap their causes with one of these so callers can
// classify a failure with errors.Is without losing the underlying cause.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrGeneration    = errors.New("generation error")
	ErrRender        = errors.New("render error")
	ErrComposition   = errors.New("composition error")
	ErrPublish       = errors.New("publish error")
	ErrLocked        = errors.New("another run is in progress")
)

// Kind returns the first error kind found in err's chain, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrConfiguration, ErrGeneration, ErrRender, ErrComposition, ErrPublish, ErrLocked} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
