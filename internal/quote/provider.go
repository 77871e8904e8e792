package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest known price and company name for a symbol.
type Quote struct {
	Symbol    string
	Name      string
	Price     decimal.Decimal
	Timestamp time.Time
}

// Provider looks up the latest quote for a symbol. Implementations are pure
// lookups: no state, no side effects. Lookup must respect ctx cancellation;
// callers bound every lookup with a deadline.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// ErrorKind classifies a failed lookup.
type ErrorKind int

const (
	// KindNotFound means the upstream does not know the symbol.
	KindNotFound ErrorKind = iota
	// KindUnavailable means the upstream could not be reached or answered
	// with something unusable. The same lookup may succeed later.
	KindUnavailable
)

// Error is a typed lookup failure.
type Error struct {
	Kind   ErrorKind
	Symbol string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	kind := "unavailable"
	if e.Kind == KindNotFound {
		kind = "not found"
	}
	if e.Err != nil {
		return fmt.Sprintf("quote %s: symbol %q: %s: %v", kind, e.Symbol, e.Detail, e.Err)
	}
	return fmt.Sprintf("quote %s: symbol %q: %s", kind, e.Symbol, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a lookup failure for an unknown symbol.
func IsNotFound(err error) bool {
	var qe *Error
	return errors.As(err, &qe) && qe.Kind == KindNotFound
}

// IsUnavailable reports whether err is a transient upstream failure.
func IsUnavailable(err error) bool {
	var qe *Error
	return errors.As(err, &qe) && qe.Kind == KindUnavailable
}
