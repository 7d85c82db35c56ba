package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/nft-marketplace/backend/internal/ipfs"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

// Backend is the subset of the Ethereum RPC the marketplace binding uses.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Signer signs transactions on behalf of the connected account.
type Signer interface {
	SignTx(ctx context.Context, from common.Address, tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error)
}

// Pending is a submitted transaction awaiting confirmation.
type Pending interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*gethtypes.Receipt, error)
}

// Call describes one mutating contract invocation.
type Call struct {
	Method   string
	Args     []interface{}
	Value    *big.Int
	GasLimit uint64
}

// Dial opens an RPC connection to the node at endpoint.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	return ethclient.DialContext(ctx, trimmed)
}

// Marketplace binds the marketplace contract at a fixed address.
type Marketplace struct {
	address      common.Address
	abi          abi.ABI
	backend      Backend
	signer       Signer
	chainID      *big.Int
	pollInterval time.Duration
	log          *zap.Logger
}

func NewMarketplace(address common.Address, backend Backend, signer Signer, chainID *big.Int, pollInterval time.Duration, log *zap.Logger) (*Marketplace, error) {
	parsed, err := abi.JSON(strings.NewReader(MarketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Marketplace{
		address:      address,
		abi:          parsed,
		backend:      backend,
		signer:       signer,
		chainID:      chainID,
		pollInterval: pollInterval,
		log:          log,
	}, nil
}

func (m *Marketplace) Address() common.Address {
	return m.address
}

func (m *Marketplace) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := m.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := m.backend.CallContract(ctx, ethereum.CallMsg{To: &m.address, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return m.abi.Unpack(method, out)
}

// ListingCount returns the number of listings ever created.
func (m *Marketplace) ListingCount(ctx context.Context) (uint64, error) {
	out, err := m.call(ctx, MethodListingCount)
	if err != nil {
		return 0, fmt.Errorf("listingCount: %w", err)
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("listingCount: unexpected value %v", out[0])
	}
	return n.Uint64(), nil
}

// Listing reads the listing stored at index.
func (m *Marketplace) Listing(ctx context.Context, index uint64) (models.Listing, error) {
	out, err := m.call(ctx, MethodListings, new(big.Int).SetUint64(index))
	if err != nil {
		return models.Listing{}, fmt.Errorf("listings(%d): %w", index, err)
	}
	if len(out) != 8 {
		return models.Listing{}, fmt.Errorf("listings(%d): expected 8 fields, got %d", index, len(out))
	}

	nftContract, ok1 := out[0].(common.Address)
	tokenID, ok2 := out[1].(*big.Int)
	seller, ok3 := out[2].(common.Address)
	buyer, ok4 := out[3].(common.Address)
	price, ok5 := out[4].(*big.Int)
	imageURL, ok6 := out[5].(string)
	sold, ok7 := out[6].(bool)
	redeemed, ok8 := out[7].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return models.Listing{}, fmt.Errorf("listings(%d): unexpected field types", index)
	}

	return models.Listing{
		ID:          index,
		NFTContract: models.NormalizeAddress(nftContract.Hex()),
		TokenID:     tokenID.String(),
		PriceWei:    price,
		Price:       FormatEther(price),
		ImageRef:    imageURL,
		ImageCID:    ipfs.Resolve(imageURL),
		Seller:      models.NormalizeAddress(seller.Hex()),
		Buyer:       models.NormalizeAddress(buyer.Hex()),
		Sold:        sold,
		Redeemed:    redeemed,
	}, nil
}

// SizePreferences reads the stored garment sizes for a listing. A revert
// means none were ever saved.
func (m *Marketplace) SizePreferences(ctx context.Context, listingID uint64) (models.SizePreferences, bool, error) {
	out, err := m.call(ctx, MethodGetSizePreferences, new(big.Int).SetUint64(listingID))
	if err != nil {
		if IsRevert(err) {
			return models.SizePreferences{}, false, nil
		}
		return models.SizePreferences{}, false, fmt.Errorf("getUserSizePreferences(%d): %w", listingID, err)
	}
	shirt, _ := out[0].(string)
	trouser, _ := out[1].(string)
	if shirt == "" && trouser == "" {
		return models.SizePreferences{}, false, nil
	}
	return models.SizePreferences{ShirtSize: shirt, TrouserSize: trouser}, true, nil
}

// Balance returns the native balance of account at the latest block.
func (m *Marketplace) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return m.backend.BalanceAt(ctx, account, nil)
}

// Submit signs and sends call from the given account. The gas limit is the
// caller's static ceiling; nothing is estimated.
func (m *Marketplace) Submit(ctx context.Context, from common.Address, call Call) (Pending, error) {
	data, err := m.abi.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	nonce, err := m.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := m.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch gas price: %w", err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      call.GasLimit,
		To:       &m.address,
		Value:    value,
		Data:     data,
	})

	signed, err := m.signer.SignTx(ctx, from, tx, m.chainID)
	if err != nil {
		return nil, err
	}
	if err := m.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}

	m.log.Info("transaction submitted",
		zap.String("method", call.Method),
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", call.GasLimit),
	)
	return &pendingTx{hash: signed.Hash(), backend: m.backend, pollInterval: m.pollInterval}, nil
}

// Replay re-executes call as a read at the given block to recover the revert
// reason of a failed transaction.
func (m *Marketplace) Replay(ctx context.Context, from common.Address, call Call, blockNumber *big.Int) error {
	data, err := m.abi.Pack(call.Method, call.Args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", call.Method, err)
	}
	_, err = m.backend.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    &m.address,
		Gas:   call.GasLimit,
		Value: call.Value,
		Data:  data,
	}, blockNumber)
	return err
}

type pendingTx struct {
	hash         common.Hash
	backend      Backend
	pollInterval time.Duration
}

func (p *pendingTx) Hash() common.Hash {
	return p.hash
}

// Wait polls for the receipt until it appears or ctx ends.
func (p *pendingTx) Wait(ctx context.Context) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
