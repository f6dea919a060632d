package provisioner

import "errors"

// FatalError is a usage error that must terminate the run with exit code 1.
// The CLI logs Message at critical level.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	if e == nil {
		return "fatal error"
	}
	return e.Message
}

// IsFatal reports whether err wraps a *FatalError.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}
