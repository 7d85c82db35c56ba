package txexec

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/nft-marketplace/backend/internal/chain"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAccount struct {
	addr    common.Address
	ok      bool
	balance *big.Int
}

func (a fakeAccount) Account() (common.Address, bool) { return a.addr, a.ok }

func (a fakeAccount) Balance() (*big.Int, bool) {
	if a.balance == nil {
		return nil, false
	}
	return a.balance, true
}

type fakePending struct {
	hash    common.Hash
	receipt *gethtypes.Receipt
	block   bool
}

func (p *fakePending) Hash() common.Hash { return p.hash }

func (p *fakePending) Wait(ctx context.Context) (*gethtypes.Receipt, error) {
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.receipt, nil
}

type fakeContract struct {
	submitted []chain.Call
	submitErr error
	pending   *fakePending
	replayErr error
	replays   int
}

func (c *fakeContract) Submit(ctx context.Context, from common.Address, call chain.Call) (chain.Pending, error) {
	c.submitted = append(c.submitted, call)
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	return c.pending, nil
}

func (c *fakeContract) Replay(ctx context.Context, from common.Address, call chain.Call, blockNumber *big.Int) error {
	c.replays++
	return c.replayErr
}

var me = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

func ether(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := chain.ParseEther(s)
	require.NoError(t, err)
	return v
}

func okReceipt() *gethtypes.Receipt {
	return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12), GasUsed: 80000}
}

func newTestExecutor(c *fakeContract, a fakeAccount) *Executor {
	return NewExecutor(c, a, Config{ConfirmTimeout: 50 * time.Millisecond}, zap.NewNop(), nil)
}

func TestBuyInsufficientFundsMakesNoCall(t *testing.T) {
	c := &fakeContract{}
	exec := newTestExecutor(c, fakeAccount{addr: me, ok: true, balance: ether(t, "0.01")})

	_, err := exec.Execute(context.Background(), ActionBuy, Params{ListingID: 1, PriceWei: ether(t, "0.05")})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Empty(t, c.submitted)

	var txErr *Error
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, ActionBuy, txErr.Action)
	assert.Contains(t, txErr.Reason, "0.05")
}

func TestBuyUnknownBalanceSubmits(t *testing.T) {
	c := &fakeContract{pending: &fakePending{hash: common.HexToHash("0x01"), receipt: okReceipt()}}
	exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})

	res, err := exec.Execute(context.Background(), ActionBuy, Params{ListingID: 4, PriceWei: ether(t, "0.05")})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), res.Block)
	require.Len(t, c.submitted, 1)
	assert.Equal(t, chain.MethodBuy, c.submitted[0].Method)
	assert.Equal(t, DefaultGasLimit, c.submitted[0].GasLimit)
	assert.Equal(t, 0, c.submitted[0].Value.Cmp(ether(t, "0.05")))
}

func TestExecuteRequiresConnection(t *testing.T) {
	c := &fakeContract{}
	exec := newTestExecutor(c, fakeAccount{})

	_, err := exec.Execute(context.Background(), ActionRedeem, Params{ListingID: 1})
	require.ErrorIs(t, err, models.ErrConnectionRejected)
	assert.Empty(t, c.submitted)
}

func TestValidationNeverSubmits(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		params Params
	}{
		{"relist zero", ActionRelist, Params{Price: "0"}},
		{"relist negative", ActionRelist, Params{Price: "-1"}},
		{"relist text", ActionRelist, Params{Price: "abc"}},
		{"list bad contract", ActionList, Params{Price: "1", NFTContract: "nope", TokenID: "1", ImageRef: "ipfs://x"}},
		{"list bad token", ActionList, Params{Price: "1", NFTContract: me.Hex(), TokenID: "x", ImageRef: "ipfs://x"}},
		{"create without image", ActionCreateAndList, Params{Price: "1"}},
		{"bad shirt size", ActionSetSizePreferences, Params{ShirtSize: "XXXL", TrouserSize: "32"}},
		{"bad trouser size", ActionSetSizePreferences, Params{ShirtSize: "M", TrouserSize: "33"}},
		{"buy without price", ActionBuy, Params{}},
		{"unknown action", Action("burn"), Params{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeContract{}
			exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})
			_, err := exec.Execute(context.Background(), tt.action, tt.params)
			require.ErrorIs(t, err, models.ErrValidationFailed)
			assert.Empty(t, c.submitted)
		})
	}
}

func TestSignerRefusal(t *testing.T) {
	c := &fakeContract{submitErr: fmt.Errorf("%w: user denied", models.ErrTxRejected)}
	exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})

	_, err := exec.Execute(context.Background(), ActionRelist, Params{ListingID: 2, Price: "0.2"})
	require.ErrorIs(t, err, models.ErrTxRejected)
}

func TestSendFailureCarriesReason(t *testing.T) {
	c := &fakeContract{submitErr: errors.New("execution reverted: Listing not available")}
	exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})

	_, err := exec.Execute(context.Background(), ActionBuy, Params{ListingID: 2, PriceWei: big.NewInt(1)})
	require.ErrorIs(t, err, models.ErrTxReverted)
	var txErr *Error
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, "Listing not available", txErr.Reason)
}

func TestConfirmationTimeout(t *testing.T) {
	hash := common.HexToHash("0xbeef")
	c := &fakeContract{pending: &fakePending{hash: hash, block: true}}
	exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})

	_, err := exec.Execute(context.Background(), ActionRedeem, Params{ListingID: 1})
	require.ErrorIs(t, err, models.ErrTxTimeout)
	var txErr *Error
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, hash.Hex(), txErr.Hash)
}

func TestRevertedReceipt(t *testing.T) {
	t.Run("replayed reason", func(t *testing.T) {
		receipt := okReceipt()
		receipt.Status = gethtypes.ReceiptStatusFailed
		c := &fakeContract{
			pending:   &fakePending{hash: common.HexToHash("0x02"), receipt: receipt},
			replayErr: errors.New("execution reverted: Only buyer can redeem"),
		}
		exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})

		_, err := exec.Execute(context.Background(), ActionRedeem, Params{ListingID: 1})
		require.ErrorIs(t, err, models.ErrTxReverted)
		assert.Contains(t, err.Error(), "Only buyer can redeem")
		assert.Equal(t, 1, c.replays)
	})

	t.Run("gas ceiling exhausted", func(t *testing.T) {
		receipt := okReceipt()
		receipt.Status = gethtypes.ReceiptStatusFailed
		receipt.GasUsed = DefaultGasLimit
		c := &fakeContract{pending: &fakePending{hash: common.HexToHash("0x03"), receipt: receipt}}
		exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})

		_, err := exec.Execute(context.Background(), ActionCreateAndList, Params{Price: "1", ImageRef: "ipfs://cid"})
		require.ErrorIs(t, err, models.ErrTxReverted)
		assert.Contains(t, err.Error(), "out of gas")
		assert.Zero(t, c.replays)
	})
}

func TestCallShapes(t *testing.T) {
	c := &fakeContract{pending: &fakePending{hash: common.HexToHash("0x04"), receipt: okReceipt()}}
	exec := newTestExecutor(c, fakeAccount{addr: me, ok: true})
	ctx := context.Background()

	_, err := exec.Execute(ctx, ActionList, Params{Price: "1.5", NFTContract: me.Hex(), TokenID: "9", ImageRef: "ipfs://cid"})
	require.NoError(t, err)
	_, err = exec.Execute(ctx, ActionSetSizePreferences, Params{ListingID: 3, ShirtSize: "L", TrouserSize: "34"})
	require.NoError(t, err)

	require.Len(t, c.submitted, 2)
	list := c.submitted[0]
	assert.Equal(t, chain.MethodList, list.Method)
	assert.Equal(t, me, list.Args[0])
	assert.Equal(t, 0, list.Args[2].(*big.Int).Cmp(ether(t, "1.5")))

	prefs := c.submitted[1]
	assert.Equal(t, chain.MethodSetSizePreferences, prefs.Method)
	assert.Equal(t, []interface{}{big.NewInt(3), "L", "34"}, prefs.Args)
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "", KindName(nil))
	assert.Equal(t, "tx_timeout", KindName(&Error{Kind: models.ErrTxTimeout}))
	assert.Equal(t, "internal", KindName(errors.New("boom")))
}
