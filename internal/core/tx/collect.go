package tx

import (
	"fmt"

	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// CollectDividends pays out the caller's accrued dividends from one
// asset's ledger. Only the holder may collect their own claim.
type CollectDividends struct {
	Caller  string
	Holder  string
	AssetID uint32
}

// Validate implements Operation.
func (op CollectDividends) Validate() error {
	if op.Caller == "" || op.Holder == "" {
		return fmt.Errorf("%w: missing account", ErrUnauthorized)
	}
	return nil
}

// Apply implements Operation.
func (op CollectDividends) Apply(ctx *ApplyContext) ApplyResult {
	asset, err := ctx.resolve(op.AssetID)
	if err != nil {
		return applied(UnknownAsset)
	}
	amount, err := asset.Dividend.Collect(op.Caller, op.Holder)
	if err != nil {
		return applied(resultFromError(err))
	}
	return ApplyResult{Code: Success, Amount: amount}
}

// Claimable returns what holder could collect from the asset's ledger
// right now.
func (e *Engine) Claimable(assetID uint32, holder string) (fixed.Amount, error) {
	asset, err := e.registry.Resolve(assetID)
	if err != nil {
		return fixed.Amount{}, err
	}
	return asset.Dividend.Claimable(holder), nil
}
