package exchange

import (
	"fmt"

	"github.com/pkg/errors"
)

type FailureKind string

const (
	FailureEncode    FailureKind = "encode"
	FailureTransport FailureKind = "transport"
	FailureTimeout   FailureKind = "timeout"
	FailureStatus    FailureKind = "status"
	FailureDecode    FailureKind = "decode"
)

// Error describes why an exchange failed. StatusCode is only set for FailureStatus.
type Error struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("exchange %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("exchange %s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or "" if err is not an exchange error.
func KindOf(err error) FailureKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsTimeout(err error) bool {
	return KindOf(err) == FailureTimeout
}
