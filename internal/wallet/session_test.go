package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	accounts   []common.Address
	err        error
	balance    *big.Int
	balanceErr error
	calls      int
}

func (p *fakeProvider) Connect(ctx context.Context) (common.Address, error) {
	p.calls++
	if p.err != nil {
		return common.Address{}, p.err
	}
	return p.accounts[(p.calls-1)%len(p.accounts)], nil
}

func (p *fakeProvider) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.balance, p.balanceErr
}

var (
	accountA = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	accountB = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
)

func TestSessionConnect(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, balance: big.NewInt(100)}
	s := NewSession(p, zap.NewNop())

	assert.Equal(t, "", s.CurrentAddress())

	addr, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", addr)
	assert.Equal(t, addr, s.CurrentAddress())
	assert.Equal(t, 1, p.calls)

	bal, ok := s.Balance()
	require.True(t, ok)
	assert.Equal(t, int64(100), bal.Int64())

	account, ok := s.Account()
	require.True(t, ok)
	assert.Equal(t, accountA, account)
}

func TestSessionConnectFailureKeepsState(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, balance: big.NewInt(1)}
	s := NewSession(p, zap.NewNop())

	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	p.err = errors.New("user rejected the request")
	_, err = s.Connect(context.Background())
	require.ErrorIs(t, err, models.ErrConnectionRejected)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", s.CurrentAddress())
	assert.Equal(t, 2, p.calls, "handshake must run exactly once per call")
}

func TestSessionAccountSwitchNotifies(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA, accountA, accountB}, balance: big.NewInt(1)}
	s := NewSession(p, zap.NewNop())

	var changes []Change
	cancel := s.Subscribe(func(c Change) { changes = append(changes, c) })

	for i := 0; i < 3; i++ {
		_, err := s.Connect(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", s.CurrentAddress())
	require.Len(t, changes, 2, "reconnecting the same account must not notify")
	assert.Equal(t, "", changes[0].Previous)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", changes[1].Previous)

	cancel()
	s.Disconnect()
	assert.Len(t, changes, 2)
	assert.Equal(t, "", s.CurrentAddress())
}

func TestSessionBalanceUnknown(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, balanceErr: errors.New("rpc down")}
	s := NewSession(p, zap.NewNop())

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	_, ok := s.Balance()
	assert.False(t, ok)
}

func TestSessionRefreshBalance(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, balance: big.NewInt(1)}
	s := NewSession(p, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.RefreshBalance(ctx), "no account is a no-op")

	_, err := s.Connect(ctx)
	require.NoError(t, err)

	p.balance = big.NewInt(500)
	require.NoError(t, s.RefreshBalance(ctx))
	bal, ok := s.Balance()
	require.True(t, ok)
	assert.Equal(t, int64(500), bal.Int64())

	p.balanceErr = errors.New("rpc down")
	require.Error(t, s.RefreshBalance(ctx))
	bal, ok = s.Balance()
	require.True(t, ok, "last known balance kept")
	assert.Equal(t, int64(500), bal.Int64())
	assert.Equal(t, 1, p.calls, "no extra handshake")
}
