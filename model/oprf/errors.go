package oprf

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned by request authenticators for requests they refuse.
var ErrUnauthorized = errors.New("request not authorized")

func (e *ErrorMessage) Error() string {
	return fmt.Sprintf("node rejected request (%s): %s", e.Code, e.Message)
}

// NewErrorMessage creates the wire error for the given code.
func NewErrorMessage(code string, format string, args ...interface{}) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: fmt.Sprintf(format, args...)}
}
