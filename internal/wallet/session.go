package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

// Change describes an update of the active account. Current is empty after
// a disconnect.
type Change struct {
	Previous string
	Current  string
}

// Session holds the single active external account for the process.
type Session struct {
	provider Provider
	log      *zap.Logger

	mu        sync.RWMutex
	address   string
	balance   *big.Int
	listeners map[int]func(Change)
	nextID    int
}

func NewSession(provider Provider, log *zap.Logger) *Session {
	return &Session{
		provider:  provider,
		log:       log,
		listeners: make(map[int]func(Change)),
	}
}

// Connect runs the provider handshake once. On success the lower-cased
// address becomes current and the balance is refreshed; on failure the
// previous state is kept.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("%w: no wallet provider", models.ErrConnectionRejected)
	}
	account, err := s.provider.Connect(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrConnectionRejected) {
			err = fmt.Errorf("%w: %v", models.ErrConnectionRejected, err)
		}
		s.log.Warn("wallet connection failed", zap.Error(err))
		return "", err
	}
	address := models.NormalizeAddress(account.Hex())

	balance, err := s.provider.Balance(ctx, account)
	if err != nil {
		s.log.Warn("balance unavailable", zap.String("address", address), zap.Error(err))
		balance = nil
	}

	s.mu.Lock()
	previous := s.address
	s.address = address
	s.balance = balance
	s.mu.Unlock()

	if previous != address {
		s.log.Info("wallet connected", zap.String("address", address), zap.String("previous", previous))
		s.notify(Change{Previous: previous, Current: address})
	}
	return address, nil
}

// Disconnect forgets the active account.
func (s *Session) Disconnect() {
	s.mu.Lock()
	previous := s.address
	s.address = ""
	s.balance = nil
	s.mu.Unlock()

	if previous != "" {
		s.log.Info("wallet disconnected", zap.String("address", previous))
		s.notify(Change{Previous: previous})
	}
}

// CurrentAddress returns the lower-cased active address or "".
func (s *Session) CurrentAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// Account returns the active account as a go-ethereum address.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.address == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(s.address), true
}

// Balance returns the balance known from the last connect, if any.
func (s *Session) Balance() (*big.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.balance == nil {
		return nil, false
	}
	return new(big.Int).Set(s.balance), true
}

// RefreshBalance re-reads the balance of the active account. On error the
// last known balance is kept.
func (s *Session) RefreshBalance(ctx context.Context) error {
	s.mu.RLock()
	address := s.address
	s.mu.RUnlock()
	if address == "" || s.provider == nil {
		return nil
	}

	balance, err := s.provider.Balance(ctx, common.HexToAddress(address))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.address == address {
		s.balance = balance
	}
	s.mu.Unlock()
	return nil
}

// Subscribe registers fn for address changes and returns its cancel func.
func (s *Session) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(change Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
