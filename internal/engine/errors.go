package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure. Validation kinds mean the input never
// reached the ledger; business kinds mean a rule rejected the order; upstream
// and storage kinds mean a collaborator failed. In every case the ledger is
// left exactly as it was.
type Kind string

const (
	KindInvalidAmount       Kind = "invalid_amount"
	KindInvalidQuantity     Kind = "invalid_quantity"
	KindInvalidSymbol       Kind = "invalid_symbol"
	KindSymbolNotFound      Kind = "symbol_not_found"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInsufficientShares  Kind = "insufficient_shares"
	KindNoSuchPosition      Kind = "no_such_position"
	KindStorage             Kind = "storage_failure"
)

// Error is a typed engine failure carrying a kind for the caller to branch on
// and a human-readable message to render.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or an empty Kind when err did not come
// from the engine.
func KindOf(err error) Kind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
