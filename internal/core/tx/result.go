package tx

import (
	"errors"

	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/dividend"
	"github.com/barterlabs/goBarterd/internal/core/oracle"
)

// Result is the outcome code of an engine operation.
type Result int

const (
	// Success: the operation was applied.
	Success Result = 0

	// Rejections: state unchanged.
	UnknownAsset       Result = 100
	DuplicateAsset     Result = 101
	InvalidRatio       Result = 102
	InvalidState       Result = 103
	OfferLocked        Result = 104
	Unauthorized       Result = 105
	RepayWindowExpired Result = 106
	NotLiquidatable    Result = 107
	TransferFailed     Result = 108
	OracleUnavailable  Result = 109
	NothingToCollect   Result = 110
	InsufficientFunds  Result = 111

	// Internal: an invariant the engine relies on was violated.
	Internal Result = 199
)

// String returns the canonical code name used on the wire.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case UnknownAsset:
		return "unknown_asset"
	case DuplicateAsset:
		return "duplicate_asset"
	case InvalidRatio:
		return "invalid_ratio"
	case InvalidState:
		return "invalid_state"
	case OfferLocked:
		return "offer_locked"
	case Unauthorized:
		return "unauthorized"
	case RepayWindowExpired:
		return "repay_window_expired"
	case NotLiquidatable:
		return "not_liquidatable"
	case TransferFailed:
		return "transfer_failed"
	case OracleUnavailable:
		return "oracle_unavailable"
	case NothingToCollect:
		return "nothing_to_collect"
	case InsufficientFunds:
		return "insufficient_funds"
	case Internal:
		return "internal_error"
	default:
		return "unknown_result"
	}
}

// Message returns a human-readable description of the result.
func (r Result) Message() string {
	switch r {
	case Success:
		return "The operation was applied."
	case UnknownAsset:
		return "The referenced asset id is not registered."
	case DuplicateAsset:
		return "The asset id is already registered."
	case InvalidRatio:
		return "Offer terms violate the required ratio ordering."
	case InvalidState:
		return "The offer does not permit this operation in its current status."
	case OfferLocked:
		return "Another operation holds the offer lock."
	case Unauthorized:
		return "The caller may not perform this operation."
	case RepayWindowExpired:
		return "The repayment window has closed."
	case NotLiquidatable:
		return "Neither the window nor the collateral ratio permits liquidation."
	case TransferFailed:
		return "An asset transfer was refused."
	case OracleUnavailable:
		return "A required price feed is unavailable."
	case NothingToCollect:
		return "The holder has no accrued dividends."
	case InsufficientFunds:
		return "The account balance does not cover the transfer."
	case Internal:
		return "Internal engine error."
	default:
		return "Unknown result code."
	}
}

// IsSuccess reports whether the operation was applied.
func (r Result) IsSuccess() bool { return r == Success }

// Sentinel errors bridging Result codes into the error taxonomy.
var (
	ErrUnknownAsset       = errors.New("unknown asset")
	ErrDuplicateAsset     = errors.New("duplicate asset")
	ErrInvalidRatio       = errors.New("invalid ratio")
	ErrInvalidState       = errors.New("invalid offer state")
	ErrOfferLocked        = errors.New("offer locked")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRepayWindowExpired = errors.New("repay window expired")
	ErrNotLiquidatable    = errors.New("not liquidatable")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrOracleUnavailable  = errors.New("oracle unavailable")
	ErrNothingToCollect   = errors.New("nothing to collect")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInternal           = errors.New("internal error")
)

// Err returns the sentinel error for r, or nil for Success.
func (r Result) Err() error {
	switch r {
	case Success:
		return nil
	case UnknownAsset:
		return ErrUnknownAsset
	case DuplicateAsset:
		return ErrDuplicateAsset
	case InvalidRatio:
		return ErrInvalidRatio
	case InvalidState:
		return ErrInvalidState
	case OfferLocked:
		return ErrOfferLocked
	case Unauthorized:
		return ErrUnauthorized
	case RepayWindowExpired:
		return ErrRepayWindowExpired
	case NotLiquidatable:
		return ErrNotLiquidatable
	case TransferFailed:
		return ErrTransferFailed
	case OracleUnavailable:
		return ErrOracleUnavailable
	case NothingToCollect:
		return ErrNothingToCollect
	case InsufficientFunds:
		return ErrInsufficientFunds
	default:
		return ErrInternal
	}
}

// resultFromError maps domain package errors onto Result codes.
func resultFromError(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, assets.ErrUnknownAsset):
		return UnknownAsset
	case errors.Is(err, assets.ErrDuplicateAsset):
		return DuplicateAsset
	case errors.Is(err, assets.ErrUnauthorized),
		errors.Is(err, dividend.ErrUnauthorized),
		errors.Is(err, ErrUnauthorized):
		return Unauthorized
	case errors.Is(err, assets.ErrInsufficientFunds),
		errors.Is(err, dividend.ErrInsufficientShares):
		return InsufficientFunds
	case errors.Is(err, oracle.ErrUnavailable):
		return OracleUnavailable
	case errors.Is(err, dividend.ErrNothingToCollect):
		return NothingToCollect
	case errors.Is(err, ErrInvalidRatio):
		return InvalidRatio
	case errors.Is(err, ErrInvalidState):
		return InvalidState
	default:
		return TransferFailed
	}
}
