package txexec

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/nft-marketplace/backend/internal/chain"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

type Action string

const (
	ActionBuy                Action = "buy"
	ActionList               Action = "list"
	ActionCreateAndList      Action = "create_and_list"
	ActionRelist             Action = "relist"
	ActionRedeem             Action = "redeem"
	ActionSetSizePreferences Action = "set_size_preferences"
)

const (
	DefaultGasLimit       uint64 = 300000
	DefaultConfirmTimeout        = 2 * time.Minute
)

// Params carries the inputs of every action; each action reads only the
// fields it needs.
type Params struct {
	ListingID   uint64
	PriceWei    *big.Int // buy: the listing price sent as value
	Price       string   // list, create_and_list, relist: decimal ether
	NFTContract string
	TokenID     string
	ImageRef    string
	ShirtSize   string
	TrouserSize string
}

// Result identifies the confirmed transaction.
type Result struct {
	Hash  string `json:"hash"`
	Block uint64 `json:"block"`
}

// Contract is the write side of chain.Marketplace.
type Contract interface {
	Submit(ctx context.Context, from common.Address, call chain.Call) (chain.Pending, error)
	Replay(ctx context.Context, from common.Address, call chain.Call, blockNumber *big.Int) error
}

// Account is the connected wallet as seen by the executor.
type Account interface {
	Account() (common.Address, bool)
	Balance() (*big.Int, bool)
}

type Config struct {
	GasLimit       uint64
	ConfirmTimeout time.Duration
}

// Executor submits marketplace transactions for the connected account and
// waits a bounded time for their receipts. It never retries.
type Executor struct {
	contract Contract
	account  Account
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Market
}

func NewExecutor(contract Contract, account Account, cfg Config, log *zap.Logger, m *metrics.Market) *Executor {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	return &Executor{contract: contract, account: account, cfg: cfg, log: log, metrics: m}
}

// Execute runs one action end to end. Callers own any cache invalidation.
func (e *Executor) Execute(ctx context.Context, action Action, params Params) (Result, error) {
	start := time.Now()
	res, err := e.execute(ctx, action, params)
	var elapsed time.Duration
	if res.Hash != "" {
		elapsed = time.Since(start)
	}
	e.metrics.ObserveTx(string(action), KindName(err), elapsed)
	return res, err
}

func (e *Executor) execute(ctx context.Context, action Action, params Params) (Result, error) {
	from, ok := e.account.Account()
	if !ok {
		return Result{}, &Error{Kind: models.ErrConnectionRejected, Action: action, Reason: "no wallet connected"}
	}

	call, err := e.build(action, params)
	if err != nil {
		return Result{}, &Error{Kind: models.ErrValidationFailed, Action: action, Reason: validationReason(err)}
	}

	if action == ActionBuy {
		if balance, known := e.account.Balance(); known && balance.Cmp(call.Value) < 0 {
			return Result{}, &Error{
				Kind:   models.ErrInsufficientFunds,
				Action: action,
				Reason: fmt.Sprintf("balance %s ETH is below price %s ETH", chain.FormatEther(balance), chain.FormatEther(call.Value)),
			}
		}
	}

	pending, err := e.contract.Submit(ctx, from, call)
	if err != nil {
		if errors.Is(err, models.ErrTxRejected) {
			e.log.Info("transaction declined by signer", zap.String("action", string(action)), zap.Error(err))
			return Result{}, &Error{Kind: models.ErrTxRejected, Action: action, Reason: "signature declined"}
		}
		reason := chain.RevertReason(err)
		e.log.Warn("transaction refused", zap.String("action", string(action)), zap.String("reason", reason))
		return Result{}, &Error{Kind: models.ErrTxReverted, Action: action, Reason: reason}
	}
	hash := pending.Hash().Hex()

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := pending.Wait(waitCtx)
	if err != nil {
		e.log.Warn("transaction confirmation not observed",
			zap.String("action", string(action)),
			zap.String("hash", hash),
			zap.Duration("timeout", e.cfg.ConfirmTimeout),
			zap.Error(err),
		)
		return Result{}, &Error{Kind: models.ErrTxTimeout, Action: action, Reason: confirmReason(err), Hash: hash}
	}

	res := Result{Hash: hash}
	if receipt.BlockNumber != nil {
		res.Block = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		reason := e.failureReason(ctx, from, call, receipt)
		e.log.Warn("transaction reverted",
			zap.String("action", string(action)),
			zap.String("hash", hash),
			zap.String("reason", reason),
		)
		return res, &Error{Kind: models.ErrTxReverted, Action: action, Reason: reason, Hash: hash}
	}

	e.log.Info("transaction confirmed",
		zap.String("action", string(action)),
		zap.String("hash", hash),
		zap.Uint64("block", res.Block),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return res, nil
}

func (e *Executor) failureReason(ctx context.Context, from common.Address, call chain.Call, receipt *gethtypes.Receipt) string {
	if receipt.GasUsed >= call.GasLimit {
		return fmt.Sprintf("out of gas: used the full ceiling of %d", call.GasLimit)
	}
	err := e.contract.Replay(ctx, from, call, receipt.BlockNumber)
	if err == nil {
		return "execution reverted"
	}
	return chain.RevertReason(err)
}

func (e *Executor) build(action Action, p Params) (chain.Call, error) {
	id := new(big.Int).SetUint64(p.ListingID)
	call := chain.Call{GasLimit: e.cfg.GasLimit}

	switch action {
	case ActionBuy:
		if p.PriceWei == nil || p.PriceWei.Sign() <= 0 {
			return call, fmt.Errorf("%w: listing price unknown", models.ErrValidationFailed)
		}
		call.Method = chain.MethodBuy
		call.Args = []interface{}{id}
		call.Value = new(big.Int).Set(p.PriceWei)

	case ActionList:
		price, err := chain.ParseEther(p.Price)
		if err != nil {
			return call, err
		}
		if !common.IsHexAddress(p.NFTContract) {
			return call, fmt.Errorf("%w: nft contract %q is not an address", models.ErrValidationFailed, p.NFTContract)
		}
		tokenID, err := parseTokenID(p.TokenID)
		if err != nil {
			return call, err
		}
		if strings.TrimSpace(p.ImageRef) == "" {
			return call, fmt.Errorf("%w: image reference is required", models.ErrValidationFailed)
		}
		call.Method = chain.MethodList
		call.Args = []interface{}{common.HexToAddress(p.NFTContract), tokenID, price, strings.TrimSpace(p.ImageRef)}

	case ActionCreateAndList:
		price, err := chain.ParseEther(p.Price)
		if err != nil {
			return call, err
		}
		if strings.TrimSpace(p.ImageRef) == "" {
			return call, fmt.Errorf("%w: image reference is required", models.ErrValidationFailed)
		}
		call.Method = chain.MethodCreateAndList
		call.Args = []interface{}{price, strings.TrimSpace(p.ImageRef)}

	case ActionRelist:
		price, err := chain.ParseEther(p.Price)
		if err != nil {
			return call, err
		}
		call.Method = chain.MethodRelist
		call.Args = []interface{}{id, price}

	case ActionRedeem:
		call.Method = chain.MethodRedeem
		call.Args = []interface{}{id}

	case ActionSetSizePreferences:
		if !models.IsValidSize(p.ShirtSize) {
			return call, fmt.Errorf("%w: shirt size %q is not offered", models.ErrValidationFailed, p.ShirtSize)
		}
		if !models.IsValidTrouserSize(p.TrouserSize) {
			return call, fmt.Errorf("%w: trouser size %q is not offered", models.ErrValidationFailed, p.TrouserSize)
		}
		call.Method = chain.MethodSetSizePreferences
		call.Args = []interface{}{id, p.ShirtSize, p.TrouserSize}

	default:
		return call, fmt.Errorf("%w: unknown action %q", models.ErrValidationFailed, action)
	}
	return call, nil
}

func parseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id %q is not a non-negative integer", models.ErrValidationFailed, s)
	}
	return id, nil
}

func validationReason(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, models.ErrValidationFailed.Error()+": "); ok {
		return rest
	}
	return msg
}

func confirmReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "no receipt before the confirmation deadline"
	}
	return "receipt unavailable: " + err.Error()
}
