package provider

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"

	"github.com/babarot/kura/internal/core/types"
)

// Kind classifies every error that crosses the provider contract
type Kind int

const (
	KindProviderNotFound Kind = iota + 1
	KindUnsupportedCapability
	KindEntryNotFound
	KindAlreadyExists
	KindConflict
	KindPermissionDenied
	KindQuotaExceeded
	KindInvalidState
	KindTransientNetwork
	KindAuthExpired
	KindInvalidAddress
)

func (k Kind) String() string {
	switch k {
	case KindProviderNotFound:
		return "provider_not_found"
	case KindUnsupportedCapability:
		return "unsupported_capability"
	case KindEntryNotFound:
		return "entry_not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindConflict:
		return "conflict"
	case KindPermissionDenied:
		return "permission_denied"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindInvalidState:
		return "invalid_state"
	case KindTransientNetwork:
		return "transient_network"
	case KindAuthExpired:
		return "auth_expired"
	case KindInvalidAddress:
		return "invalid_address"
	default:
		return "unknown"
	}
}

// Retryable reports whether a caller may try again. The core never
// retries on its own.
func (k Kind) Retryable() bool {
	return k == KindTransientNetwork || k == KindAuthExpired
}

// Sentinels, one per kind. errors.Is(err, ErrEntryNotFound) matches any
// *Error of that kind.
var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrUnsupportedCapability = errors.New("unsupported capability")
	ErrEntryNotFound         = errors.New("entry not found")
	ErrAlreadyExists         = errors.New("entry already exists")
	ErrConflict              = errors.New("conflict")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrQuotaExceeded         = errors.New("quota exceeded")
	ErrInvalidState          = errors.New("invalid state")
	ErrTransientNetwork      = errors.New("transient network failure")
	ErrAuthExpired           = errors.New("authentication expired")
	ErrInvalidAddress        = errors.New("invalid address")
)

var sentinels = map[Kind]error{
	KindProviderNotFound:      ErrProviderNotFound,
	KindUnsupportedCapability: ErrUnsupportedCapability,
	KindEntryNotFound:         ErrEntryNotFound,
	KindAlreadyExists:         ErrAlreadyExists,
	KindConflict:              ErrConflict,
	KindPermissionDenied:      ErrPermissionDenied,
	KindQuotaExceeded:         ErrQuotaExceeded,
	KindInvalidState:          ErrInvalidState,
	KindTransientNetwork:      ErrTransientNetwork,
	KindAuthExpired:           ErrAuthExpired,
	KindInvalidAddress:        ErrInvalidAddress,
}

// Error wraps a failure with the operation context
type Error struct {
	// Op is the contract operation (e.g. "read_file", "restore")
	Op string

	// Provider is the provider id, if known
	Provider string

	// Address is the entry the operation targeted, if any
	Address types.Address

	Kind Kind

	// Err is the underlying cause
	Err error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if !e.Address.IsZero() {
		msg += " " + e.Address.String()
	}
	cause := e.Kind.String()
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return msg + ": " + cause
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// NewError builds an Error of the given kind
func NewError(kind Kind, op string, addr types.Address, err error) error {
	if err == nil {
		err = sentinels[kind]
	}
	return &Error{Op: op, Address: addr, Kind: kind, Err: err}
}

// Errorf is NewError with a plain message
func Errorf(kind Kind, op string, addr types.Address, msg string) error {
	return &Error{Op: op, Address: addr, Kind: kind, Err: errors.New(msg)}
}

// KindOf returns the kind of err, or 0 when err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return 0
}

// IsRetryable reports whether err is worth retrying
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

func IsProviderNotFound(err error) bool      { return errors.Is(err, ErrProviderNotFound) }
func IsUnsupportedCapability(err error) bool { return errors.Is(err, ErrUnsupportedCapability) }
func IsEntryNotFound(err error) bool         { return errors.Is(err, ErrEntryNotFound) }
func IsAlreadyExists(err error) bool         { return errors.Is(err, ErrAlreadyExists) }
func IsConflict(err error) bool              { return errors.Is(err, ErrConflict) }
func IsPermissionDenied(err error) bool      { return errors.Is(err, ErrPermissionDenied) }
func IsQuotaExceeded(err error) bool         { return errors.Is(err, ErrQuotaExceeded) }
func IsInvalidState(err error) bool          { return errors.Is(err, ErrInvalidState) }

// Wrap classifies a raw backend error. Errors that are already classified
// keep their kind and only gain missing context.
func Wrap(op, providerID string, addr types.Address, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Provider != "" && e.Op != "" {
			return err
		}
		out := *e
		if out.Provider == "" {
			out.Provider = providerID
		}
		if out.Op == "" {
			out.Op = op
		}
		if out.Address.IsZero() {
			out.Address = addr
		}
		return &out
	}

	return &Error{
		Op:       op,
		Provider: providerID,
		Address:  addr,
		Kind:     classify(err),
		Err:      err,
	}
}

func classify(err error) Kind {
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindEntryNotFound
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrInvalid):
		return KindInvalidAddress
	case errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransientNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}

	// anything left came from the transport
	return KindTransientNetwork
}
