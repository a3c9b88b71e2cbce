package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
)

var (
	ErrTransferNotAuthorized = errors.New("transfer is not authorized")
	ErrWrongOwner            = errors.New("from is not the item owner")
)

// TransferHook runs inside Registry.Transfer before ownership moves. A
// non-nil error aborts the transfer.
type TransferHook func(ctx context.Context, asset common.Address, itemID uint256.Int, from common.Address, to common.Address) error

// Registry is a development asset registry with ERC-721 style ownership,
// per-item approvals and owner-wide operators. Transfer is performed on
// behalf of the configured marketplace address.
type Registry struct {
	mu        sync.RWMutex
	market    common.Address
	owners    map[entities.ListingKey]common.Address
	approved  map[entities.ListingKey]common.Address
	operators map[common.Address]map[common.Address]bool
	hook      TransferHook
}

func NewRegistry(market common.Address) *Registry {
	return &Registry{
		market:    market,
		owners:    make(map[entities.ListingKey]common.Address),
		approved:  make(map[entities.ListingKey]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

// Mint assigns an item to owner, replacing any previous owner.
func (r *Registry) Mint(asset common.Address, itemID uint256.Int, owner common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entities.NewListingKey(asset, &itemID)
	r.owners[key] = owner
	delete(r.approved, key)
}

func (r *Registry) Approve(asset common.Address, itemID uint256.Int, operator common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved[entities.NewListingKey(asset, &itemID)] = operator
}

func (r *Registry) SetApprovalForAll(owner common.Address, operator common.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops, ok := r.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		r.operators[owner] = ops
	}
	ops[operator] = approved
}

// OnTransfer installs a hook that runs during Transfer without the registry
// lock held, so it may call back into the marketplace.
func (r *Registry) OnTransfer(hook TransferHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

// OwnerOf returns the zero address for unknown items.
func (r *Registry) OwnerOf(_ context.Context, asset common.Address, itemID uint256.Int) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[entities.NewListingKey(asset, &itemID)], nil
}

func (r *Registry) IsApprovedOrOperator(_ context.Context, asset common.Address, itemID uint256.Int, operator common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mayMove(entities.NewListingKey(asset, &itemID), operator), nil
}

func (r *Registry) mayMove(key entities.ListingKey, operator common.Address) bool {
	owner, ok := r.owners[key]
	if !ok {
		return false
	}
	if approved, ok := r.approved[key]; ok && approved == operator {
		return true
	}
	return r.operators[owner][operator]
}

func (r *Registry) Transfer(ctx context.Context, asset common.Address, itemID uint256.Int, from common.Address, to common.Address) error {
	key := entities.NewListingKey(asset, &itemID)

	r.mu.RLock()
	hook := r.hook
	r.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, asset, itemID, from, to); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if owner := r.owners[key]; owner != from {
		return fmt.Errorf("transfer %s: %w", key, ErrWrongOwner)
	}
	if !r.mayMove(key, r.market) {
		return fmt.Errorf("transfer %s: %w", key, ErrTransferNotAuthorized)
	}
	r.owners[key] = to
	delete(r.approved, key)
	return nil
}
