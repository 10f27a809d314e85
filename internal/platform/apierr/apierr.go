// Package apierr carries errors that already know their HTTP shape.
// Services on the oauth/session path return these so the handler layer
// can pass status and code through without re-deriving them.
package apierr

import "fmt"

// Error pairs a wrapped cause with the status and machine-readable code
// the response envelope should expose. The cause text is what clients
// see as the message.
type Error struct {
	Status int
	Code   string
	Err    error
}

// Errorf builds an Error with a formatted cause.
func Errorf(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("api error (status=%d)", e.Status)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
