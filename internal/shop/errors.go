package shop

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories surfaced to callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown_error"
	}
}

// Error carries a Kind plus whatever detail identifies the cause:
// the offending field for validation, the product and its stock for shortages.
type Error struct {
	Kind      Kind
	Field     string
	ProductID int64
	Available int
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the detail carried.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrStorage           = &Error{Kind: KindStorage}
)

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(what string, id int64) *Error {
	return &Error{Kind: KindNotFound, Field: what, Msg: fmt.Sprintf("%s %d not found", what, id)}
}

func InsufficientStock(productID int64, name string, available int) *Error {
	label := name
	if label == "" {
		label = fmt.Sprintf("product %d", productID)
	}
	return &Error{
		Kind:      KindInsufficientStock,
		ProductID: productID,
		Available: available,
		Msg:       fmt.Sprintf("stock of %s is only %d", label, available),
	}
}

// ProductInUse reports a product that order lines still reference.
func ProductInUse(productID int64) *Error {
	return &Error{
		Kind:      KindConflict,
		Field:     "product_id",
		ProductID: productID,
		Msg:       fmt.Sprintf("product %d is referenced by existing orders and cannot be deleted", productID),
	}
}

func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Msg: op, Err: err}
}

// KindOf reports the kind of err, KindUnknown for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsStorage returns err unchanged when it is already classified and wraps it
// as a storage failure otherwise.
func AsStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Storage(op, err)
}
