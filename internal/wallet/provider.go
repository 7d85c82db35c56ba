package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/nft-marketplace/backend/internal/models"
)

// Provider is the external wallet: it performs the connect handshake and
// reports balances for the accounts it manages.
type Provider interface {
	Connect(ctx context.Context) (common.Address, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// BalanceReader reads native balances from the chain.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// KeystoreProvider uses an encrypted go-ethereum keystore as the injected
// signer.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	account    string
	passphrase string
	balances   BalanceReader
}

// OpenKeystore opens the keystore directory with standard scrypt parameters.
func OpenKeystore(dir string) (*keystore.KeyStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("keystore directory required")
	}
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), nil
}

// NewKeystoreProvider wraps ks. account selects a specific address; when
// empty the first account in the keystore is used.
func NewKeystoreProvider(ks *keystore.KeyStore, account, passphrase string, balances BalanceReader) *KeystoreProvider {
	return &KeystoreProvider{
		ks:         ks,
		account:    strings.TrimSpace(account),
		passphrase: passphrase,
		balances:   balances,
	}
}

func (p *KeystoreProvider) Connect(ctx context.Context) (common.Address, error) {
	if p.ks == nil {
		return common.Address{}, fmt.Errorf("%w: no wallet provider configured", models.ErrConnectionRejected)
	}
	acct, err := p.selectAccount()
	if err != nil {
		return common.Address{}, err
	}
	if err := p.ks.Unlock(acct, p.passphrase); err != nil {
		return common.Address{}, fmt.Errorf("%w: unlock %s: %v", models.ErrConnectionRejected, acct.Address.Hex(), err)
	}
	return acct.Address, nil
}

func (p *KeystoreProvider) selectAccount() (accounts.Account, error) {
	all := p.ks.Accounts()
	if len(all) == 0 {
		return accounts.Account{}, fmt.Errorf("%w: keystore has no accounts", models.ErrConnectionRejected)
	}
	if p.account == "" {
		return all[0], nil
	}
	if !common.IsHexAddress(p.account) {
		return accounts.Account{}, fmt.Errorf("%w: invalid account %q", models.ErrConnectionRejected, p.account)
	}
	acct, err := p.ks.Find(accounts.Account{Address: common.HexToAddress(p.account)})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: account %s not in keystore", models.ErrConnectionRejected, p.account)
	}
	return acct, nil
}

func (p *KeystoreProvider) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if p.balances == nil {
		return nil, errors.New("no balance reader configured")
	}
	return p.balances.BalanceAt(ctx, account, nil)
}

// SignTx signs with an unlocked account. A locked or unknown account counts
// as the user declining to sign.
func (p *KeystoreProvider) SignTx(ctx context.Context, from common.Address, tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	signed, err := p.ks.SignTx(accounts.Account{Address: from}, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTxRejected, err)
	}
	return signed, nil
}
