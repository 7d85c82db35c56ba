package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type listingTuple struct {
	nft      common.Address
	tokenID  *big.Int
	seller   common.Address
	buyer    common.Address
	price    *big.Int
	image    string
	sold     bool
	redeemed bool
}

type fakeBackend struct {
	abi          abi.ABI
	listings     []listingTuple
	prefs        map[uint64][2]string
	notFoundLeft int
	receipt      *gethtypes.Receipt
	sent         []*gethtypes.Transaction
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(MarketplaceABI))
	require.NoError(t, err)
	return &fakeBackend{abi: parsed, prefs: map[uint64][2]string{}}
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := b.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case MethodListingCount:
		return method.Outputs.Pack(big.NewInt(int64(len(b.listings))))
	case MethodListings:
		l := b.listings[args[0].(*big.Int).Uint64()]
		return method.Outputs.Pack(l.nft, l.tokenID, l.seller, l.buyer, l.price, l.image, l.sold, l.redeemed)
	case MethodGetSizePreferences:
		p, ok := b.prefs[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, errors.New("execution reverted: no preferences")
		}
		return method.Outputs.Pack(p[0], p[1])
	}
	return nil, errors.New("execution reverted: " + method.Name)
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if b.notFoundLeft > 0 {
		b.notFoundLeft--
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return big.NewInt(42), nil
}

type passSigner struct{}

func (passSigner) SignTx(ctx context.Context, from common.Address, tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	return tx, nil
}

var (
	sellerAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyerAddr  = common.HexToAddress("0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
)

func newTestMarketplace(t *testing.T, b *fakeBackend) *Marketplace {
	t.Helper()
	m, err := NewMarketplace(common.HexToAddress("0x0E55495eBb7b1115F65493Fbd07276dcF856cf20"), b, passSigner{}, big.NewInt(11155111), time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestMarketplaceReads(t *testing.T) {
	b := newFakeBackend(t)
	b.listings = []listingTuple{
		{sellerAddr, big.NewInt(7), sellerAddr, common.Address{}, big.NewInt(50_000_000_000_000_000), "ipfs://abc123", false, false},
		{sellerAddr, big.NewInt(8), sellerAddr, buyerAddr, big.NewInt(1), "https://gw/ipfs/def", true, true},
	}
	m := newTestMarketplace(t, b)
	ctx := context.Background()

	n, err := m.ListingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	l0, err := m.Listing(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), l0.ID)
	assert.Equal(t, "7", l0.TokenID)
	assert.Equal(t, "0.05", l0.Price)
	assert.Equal(t, "abc123", l0.ImageCID)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", l0.Buyer)
	assert.False(t, l0.Sold)

	l1, err := m.Listing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", l1.Buyer)
	assert.True(t, l1.Sold)
	assert.True(t, l1.Redeemed)
	assert.Equal(t, "def", l1.ImageCID)
}

func TestMarketplaceSizePreferences(t *testing.T) {
	b := newFakeBackend(t)
	b.prefs[3] = [2]string{"M", "32"}
	m := newTestMarketplace(t, b)

	prefs, ok, err := m.SizePreferences(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "M", prefs.ShirtSize)
	assert.Equal(t, "32", prefs.TrouserSize)

	_, ok, err = m.SizePreferences(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarketplaceSubmitAndWait(t *testing.T) {
	b := newFakeBackend(t)
	b.notFoundLeft = 2
	b.receipt = &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
	m := newTestMarketplace(t, b)

	pending, err := m.Submit(context.Background(), buyerAddr, Call{
		Method:   MethodBuy,
		Args:     []interface{}{big.NewInt(1)},
		Value:    big.NewInt(5),
		GasLimit: 300000,
	})
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.Equal(t, uint64(300000), b.sent[0].Gas())
	assert.Equal(t, int64(5), b.sent[0].Value().Int64())
	assert.Equal(t, b.sent[0].Hash(), pending.Hash())

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gethtypes.ReceiptStatusSuccessful, receipt.Status)
}

func TestPendingWaitHonoursContext(t *testing.T) {
	b := newFakeBackend(t)
	b.notFoundLeft = 1 << 30
	m := newTestMarketplace(t, b)

	pending, err := m.Submit(context.Background(), buyerAddr, Call{Method: MethodRedeem, Args: []interface{}{big.NewInt(1)}, GasLimit: 100000})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pending.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
