package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrInsufficientFunds = errors.New("insufficient wallet funds")

// SendHook runs inside Wallet.Send before funds move. A non-nil error aborts
// the send.
type SendHook func(ctx context.Context, to common.Address, amount uint256.Int) error

// Wallet is a development fund transfer port: it pays out of a treasury
// balance into per-account balances.
type Wallet struct {
	mu       sync.RWMutex
	treasury uint256.Int
	balances map[common.Address]uint256.Int
	hook     SendHook
}

// NewWallet starts with an unlimited treasury.
func NewWallet() *Wallet {
	w := &Wallet{balances: make(map[common.Address]uint256.Int)}
	w.treasury.SetAllOne()
	return w
}

func (w *Wallet) SetTreasury(amount uint256.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.treasury = amount
}

func (w *Wallet) OnSend(hook SendHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hook = hook
}

func (w *Wallet) Send(ctx context.Context, to common.Address, amount uint256.Int) error {
	w.mu.RLock()
	hook := w.hook
	w.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, to, amount); err != nil {
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.treasury.Lt(&amount) {
		return fmt.Errorf("send %s to %s: %w", amount.Dec(), to.Hex(), ErrInsufficientFunds)
	}
	balance := w.balances[to]
	if _, overflow := balance.AddOverflow(&balance, &amount); overflow {
		return fmt.Errorf("send %s to %s: balance overflow", amount.Dec(), to.Hex())
	}
	w.treasury.Sub(&w.treasury, &amount)
	w.balances[to] = balance
	return nil
}

// BalanceOf returns what the wallet has paid to account so far.
func (w *Wallet) BalanceOf(account common.Address) uint256.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balances[account]
}
