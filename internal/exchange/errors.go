package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"

	"CryptoDCA/internal/model"
)

// ErrorKind is the closed set of exchange failures the purchase cycle distinguishes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInsufficientFunds
	KindRateLimited
	KindUnavailable
	KindInvalidNonce
	KindTimeout
	KindNetwork
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindRateLimited:
		return "rate limited"
	case KindUnavailable:
		return "exchange unavailable"
	case KindInvalidNonce:
		return "invalid nonce"
	case KindTimeout:
		return "request timeout"
	case KindNetwork:
		return "network error"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is a failed exchange call.
type Error struct {
	Kind ErrorKind
	Op   string // e.g. "create order"
	Code int    // exchange error code, 0 if none
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.String()
	if e.Code != 0 {
		s += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an exchange error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Classify maps an error to the purchase cycle's recovery class. Anything not
// recognized as recoverable is fatal.
func Classify(err error) model.ErrorClass {
	if err == nil {
		return model.ClassNone
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindInsufficientFunds:
			return model.ClassFunds
		case KindRateLimited, KindUnavailable, KindInvalidNonce, KindTimeout, KindNetwork:
			return model.ClassTransient
		default:
			return model.ClassFatal
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ClassTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return model.ClassTransient
	}
	return model.ClassFatal
}
