package tx

import (
	"fmt"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/barterlabs/goBarterd/internal/core/assets"
	"github.com/barterlabs/goBarterd/internal/core/fixed"
)

// DefaultFeeBps is the protocol fee charged at acceptance, in basis
// points of the payment notional.
const DefaultFeeBps = 15

// CustodyAccount is the engine's escrow account in every asset ledger.
const CustodyAccount = "@custody"

// Persister receives committed offer mutations for write-through
// persistence. A nil Persister disables persistence.
type Persister interface {
	PutOffer(o *Offer) error
}

// Operation is one engine operation. Validate rejects malformed input
// without touching state; Apply runs the operation against the engine.
type Operation interface {
	Validate() error
	Apply(ctx *ApplyContext) ApplyResult
}

// ApplyResult carries the outcome of an operation.
type ApplyResult struct {
	Code Result

	// Offer is a snapshot taken after the operation, when one applies.
	Offer *Offer

	// Amount is the collected or refunded quantity, when one applies.
	Amount fixed.Amount
}

func applied(code Result) ApplyResult { return ApplyResult{Code: code} }

// EngineConfig carries the engine's tunables.
type EngineConfig struct {
	Registry *assets.Registry
	FeeBps   int64
	Persist  Persister
	Logger   *log.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

type offerKey struct {
	variant Variant
	id      uint64
}

// Engine applies offer operations. Sale and buy offers occupy separate
// id namespaces; each offer has a lock excluding concurrent mutation.
type Engine struct {
	mu         sync.Mutex
	saleOffers map[uint64]*Offer
	buyOffers  map[uint64]*Offer
	saleSeq    uint64
	buySeq     uint64
	held       map[offerKey]struct{}

	registry *assets.Registry
	feeBps   int64
	persist  Persister
	logger   *log.Logger
	now      func() time.Time
}

// NewEngine returns an engine over cfg.Registry.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		saleOffers: make(map[uint64]*Offer),
		buyOffers:  make(map[uint64]*Offer),
		held:       make(map[offerKey]struct{}),
		registry:   cfg.Registry,
		feeBps:     cfg.FeeBps,
		persist:    cfg.Persist,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if e.feeBps == 0 {
		e.feeBps = DefaultFeeBps
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = log.New(log.Writer(), "[engine] ", log.LstdFlags)
	}
	return e
}

// Registry returns the asset registry the engine trades over.
func (e *Engine) Registry() *assets.Registry { return e.registry }

// Execute validates and applies op.
func (e *Engine) Execute(op Operation) ApplyResult {
	if err := op.Validate(); err != nil {
		return applied(resultFromError(err))
	}
	return op.Apply(&ApplyContext{engine: e})
}

// ApplyContext is the engine access an operation gets during Apply.
type ApplyContext struct {
	engine *Engine
}

func (ctx *ApplyContext) now() time.Time { return ctx.engine.now() }

func (ctx *ApplyContext) feeBps() int64 { return ctx.engine.feeBps }

func (ctx *ApplyContext) resolve(id uint32) (assets.Entry, error) {
	return ctx.engine.registry.Resolve(id)
}

func (ctx *ApplyContext) logf(format string, args ...any) {
	ctx.engine.logger.Printf(format, args...)
}

// offers returns the id namespace for variant. Callers must hold
// engine.mu.
func (e *Engine) offers(v Variant) map[uint64]*Offer {
	if v == Sale {
		return e.saleOffers
	}
	return e.buyOffers
}

// lockOffer looks the offer up and takes its lock. The engine mutex is
// held only for the map access, never across transfers.
func (ctx *ApplyContext) lockOffer(v Variant, id uint64) (*Offer, Result) {
	e := ctx.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, ok := e.offers(v)[id]
	if !ok {
		return nil, InvalidState
	}
	key := offerKey{variant: v, id: id}
	if _, taken := e.held[key]; taken {
		return nil, OfferLocked
	}
	e.held[key] = struct{}{}
	offer.Lock = Locked
	return offer, Success
}

func (ctx *ApplyContext) unlockOffer(o *Offer) {
	e := ctx.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.held, offerKey{variant: o.Variant, id: o.ID})
	o.Lock = Unlocked
}

// snapshot clones o for an ApplyResult. The deferred unlock has not run
// yet when the operation returns, so the clone reports the lock already
// released.
func (ctx *ApplyContext) snapshot(o *Offer) *Offer {
	c := o.clone()
	c.Lock = Unlocked
	return c
}

// commit persists a mutated offer. Persistence failures are logged,
// not surfaced: the in-memory state is authoritative and a full
// snapshot is written at shutdown.
func (ctx *ApplyContext) commit(o *Offer) {
	if ctx.engine.persist == nil {
		return
	}
	if err := ctx.engine.persist.PutOffer(o); err != nil {
		ctx.logf("persist %s offer %d: %v", o.Variant, o.ID, err)
	}
}

// refund is the compensating transfer for an escrow whose operation
// failed after the funds reached custody. Custody always covers it; a
// failure here is an accounting bug and is loudly logged.
func (ctx *ApplyContext) refund(asset assets.Entry, to string, amount fixed.Amount) {
	if amount.IsZero() {
		return
	}
	if err := asset.Token.Transfer(CustodyAccount, to, amount); err != nil {
		ctx.logf("REFUND FAILED %s %s to %s: %v", amount, asset.Symbol, to, err)
	}
}

// insertOffer assigns the next id in the variant's namespace and stores
// the offer.
func (ctx *ApplyContext) insertOffer(o *Offer) {
	e := ctx.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if o.Variant == Sale {
		e.saleSeq++
		o.ID = e.saleSeq
		e.saleOffers[o.ID] = o
	} else {
		e.buySeq++
		o.ID = e.buySeq
		e.buyOffers[o.ID] = o
	}
}

// SaleOffer returns a snapshot of the sale offer with the given id.
func (e *Engine) SaleOffer(id uint64) (*Offer, bool) { return e.offerSnapshot(Sale, id) }

// BuyOffer returns a snapshot of the buy offer with the given id.
func (e *Engine) BuyOffer(id uint64) (*Offer, bool) { return e.offerSnapshot(Buy, id) }

func (e *Engine) offerSnapshot(v Variant, id uint64) (*Offer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, ok := e.offers(v)[id]
	if !ok {
		return nil, false
	}
	return offer.clone(), true
}

// Offers returns snapshots of every offer in the variant's namespace,
// ordered by id.
func (e *Engine) Offers(v Variant) []*Offer {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.offers(v)
	out := make([]*Offer, 0, len(m))
	for _, o := range m {
		out = append(out, o.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sequences returns the current sale and buy id counters.
func (e *Engine) Sequences() (sale, buy uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saleSeq, e.buySeq
}

// RestoreOffer reloads a persisted offer, advancing the id sequence
// past it. Used at boot, before the engine serves traffic.
func (e *Engine) RestoreOffer(o *Offer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o.Lock = Unlocked
	e.offers(o.Variant)[o.ID] = o
	if o.Variant == Sale && o.ID > e.saleSeq {
		e.saleSeq = o.ID
	}
	if o.Variant == Buy && o.ID > e.buySeq {
		e.buySeq = o.ID
	}
}

// paymentNotional returns goods priced at rate in payment smallest
// units, rounded up.
func paymentNotional(goodsAmount fixed.Amount, rate fixed.Ratio, goods, payment assets.Entry) fixed.Amount {
	raw := new(big.Int).Mul(goodsAmount.BigInt(), rate.BigInt())
	scaled := fixed.ScaleDecimalsCeil(raw, goods.TokenDecimals, payment.TokenDecimals)
	out := fixed.CeilDiv(scaled, fixed.OneScale)
	amt, _ := fixed.NewAmount(out)
	return amt
}

// convert reprices amount of the from asset into to-asset smallest
// units using both oracle feeds, rounding down unless ceil is set.
// Same-asset conversion is the identity and needs no feed.
func convert(amount fixed.Amount, from, to assets.Entry, ceil bool) (fixed.Amount, error) {
	if from.ID == to.ID {
		return amount, nil
	}
	fromPrice, fromDec, err := from.Oracle.LatestPrice(from.ID)
	if err != nil {
		return fixed.Amount{}, fmt.Errorf("price %s: %w", from.Symbol, err)
	}
	toPrice, toDec, err := to.Oracle.LatestPrice(to.ID)
	if err != nil {
		return fixed.Amount{}, fmt.Errorf("price %s: %w", to.Symbol, err)
	}
	num := new(big.Int).Mul(amount.BigInt(), fromPrice)
	num.Mul(num, pow10(to.TokenDecimals))
	num.Mul(num, pow10(toDec))
	den := new(big.Int).Mul(toPrice, pow10(from.TokenDecimals))
	den.Mul(den, pow10(fromDec))
	var out *big.Int
	if ceil {
		out = fixed.CeilDiv(num, den)
	} else {
		out = num.Quo(num, den)
	}
	amt, err := fixed.NewAmount(out)
	if err != nil {
		return fixed.Amount{}, err
	}
	return amt, nil
}

// requiredCollateral sizes the escrow for a payment debt: the
// collateral-to-debt ratio times the debt repriced into the collateral
// asset, rounded up.
func requiredCollateral(debt fixed.Amount, cd fixed.Ratio, payment, collateral assets.Entry) (fixed.Amount, error) {
	value, err := convert(debt, payment, collateral, true)
	if err != nil {
		return fixed.Amount{}, err
	}
	return value.MulRatioCeil(cd), nil
}

// validateRatios enforces collateralToDebt >= liquidation > 1.
func validateRatios(cd, liq fixed.Ratio) error {
	if !liq.GreaterThanOne() {
		return fmt.Errorf("%w: liquidation ratio %s must exceed 1", ErrInvalidRatio, liq)
	}
	if cd.Cmp(liq) < 0 {
		return fmt.Errorf("%w: collateral-to-debt ratio %s below liquidation ratio %s", ErrInvalidRatio, cd, liq)
	}
	return nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
