package paywall

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the paywall packages. Typed errors below wrap
// these so callers can branch with errors.Is and still extract detail with
// errors.As.
var (
	ErrTokenInvalid       = errors.New("paywall: invalid token")
	ErrTokenExpired       = errors.New("paywall: token has expired")
	ErrTokenNotYetValid   = errors.New("paywall: token not yet valid")
	ErrTokenNotFound      = errors.New("paywall: token refers to an unknown key")
	ErrTokenAbsent        = errors.New("paywall: no token found in request")
	ErrNotSettled         = errors.New("paywall: invoice not settled")
	ErrAlreadyExecuted    = errors.New("paywall: payment already executed")
	ErrInvalidCurrency    = errors.New("paywall: unsupported currency")
	ErrInternal           = errors.New("paywall: internal error")
	ErrUnsupportedInFlow  = errors.New("paywall: operation not supported in this payment flow")
	ErrInvoiceNotFound    = errors.New("paywall: invoice not found")
	ErrArticleNotFound    = errors.New("paywall: article not found")
	ErrRequestMismatch    = errors.New("paywall: token does not match request")
	ErrMissingDeclaration = errors.New("paywall: no payment declaration for resource")
)

// TokenErrorReason classifies why a token was rejected.
type TokenErrorReason string

const (
	TokenErrorExpired     TokenErrorReason = "EXPIRED"
	TokenErrorNotYetValid TokenErrorReason = "NOT_YET_VALID"
	// TokenErrorNotFound covers unknown signing or recipient keys. Errors
	// for requests carrying no token at all set Err to ErrTokenAbsent.
	TokenErrorNotFound TokenErrorReason = "NOT_FOUND"
	TokenErrorInvalid  TokenErrorReason = "INVALID"
)

// TokenError is returned whenever token parsing or verification fails. The
// Reason discriminates the failure class so HTTP layers can distinguish an
// expired token (reissue invoice) from a forged one (reject).
type TokenError struct {
	Reason TokenErrorReason
	Detail string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("paywall: token error (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("paywall: token error (%s)", e.Reason)
}

func (e *TokenError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Reason {
	case TokenErrorExpired:
		return ErrTokenExpired
	case TokenErrorNotYetValid:
		return ErrTokenNotYetValid
	case TokenErrorNotFound:
		return ErrTokenNotFound
	default:
		return ErrTokenInvalid
	}
}

// NewTokenError builds a TokenError with a formatted detail message.
func NewTokenError(reason TokenErrorReason, format string, args ...any) *TokenError {
	return &TokenError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AlreadyExecutedError is returned when a pay-per-request payment is presented
// again after its single permitted execution.
type AlreadyExecutedError struct {
	PreImageHash []byte
}

func (e *AlreadyExecutedError) Error() string {
	return fmt.Sprintf("paywall: payment %s already executed", PreImageHashString(e.PreImageHash))
}

func (e *AlreadyExecutedError) Unwrap() error { return ErrAlreadyExecuted }

// InvalidCurrencyError is returned by currency converters that do not support
// the order's currency.
type InvalidCurrencyError struct {
	CurrencyCode string
}

func (e *InvalidCurrencyError) Error() string {
	return fmt.Sprintf("paywall: unsupported currency %q", e.CurrencyCode)
}

func (e *InvalidCurrencyError) Unwrap() error { return ErrInvalidCurrency }

// InternalError wraps a failure in a collaborator (payment handler, lightning
// node, key manager) that the caller cannot act on beyond reporting.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("paywall: internal error in %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInternal) match regardless of the wrapped cause.
func (e *InternalError) Is(target error) bool { return target == ErrInternal }
