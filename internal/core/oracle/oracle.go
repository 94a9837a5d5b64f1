// Package oracle provides price feeds for registered assets. The engine
// treats every feed failure as fail-closed: an operation that needs a
// price and cannot get one is rejected rather than settled at a guess.
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// ErrUnavailable is returned when no usable price exists for a token.
var ErrUnavailable = errors.New("oracle: price unavailable")

// PriceSource answers the latest known price of a token, quoted in the
// protocol's reference currency at the returned decimal precision.
type PriceSource interface {
	LatestPrice(tokenID uint32) (value *big.Int, decimals uint8, err error)
}

// Quote is a single priced observation.
type Quote struct {
	Value    *big.Int
	Decimals uint8
	At       time.Time
}

// StaticSource serves fixed prices set by the operator. It is the feed
// used in standalone mode and in tests.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[uint32]Quote
}

// NewStaticSource returns an empty static feed.
func NewStaticSource() *StaticSource {
	return &StaticSource{quotes: make(map[uint32]Quote)}
}

// Set records the price of tokenID. Non-positive values are rejected so
// a downstream ratio check can never divide by zero.
func (s *StaticSource) Set(tokenID uint32, value *big.Int, decimals uint8) error {
	if value == nil || value.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive price for token %d", ErrUnavailable, tokenID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[tokenID] = Quote{Value: new(big.Int).Set(value), Decimals: decimals, At: time.Now()}
	return nil
}

// Unset removes the price of tokenID, simulating a dead feed.
func (s *StaticSource) Unset(tokenID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, tokenID)
}

// LatestPrice implements PriceSource.
func (s *StaticSource) LatestPrice(tokenID uint32) (*big.Int, uint8, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[tokenID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: token %d", ErrUnavailable, tokenID)
	}
	return new(big.Int).Set(q.Value), q.Decimals, nil
}
