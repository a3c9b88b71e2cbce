package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/adapters/memory"
	"nftmarket/contexts/trading/nft-marketplace/application"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
)

var (
	asset  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	seller = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	buyer  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	market = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type fixture struct {
	engine   *application.Engine
	store    *memory.Store
	registry *memory.Registry
	wallet   *memory.Wallet
	notifier *application.Notifier
}

func newFixture(t *testing.T, policy entities.WithdrawFailurePolicy) fixture {
	t.Helper()
	store := memory.NewStore(nil)
	registry := memory.NewRegistry(market)
	wallet := memory.NewWallet()
	notifier := &application.Notifier{Outbox: store, IDGen: store, Clock: store}
	engine := application.NewEngine(application.Dependencies{
		Listings:       store,
		Proceeds:       store,
		Registry:       registry,
		Funds:          wallet,
		Payouts:        store,
		Notifier:       notifier,
		Clock:          store,
		IDGen:          store,
		Operator:       market,
		WithdrawPolicy: policy,
	})
	return fixture{engine: engine, store: store, registry: registry, wallet: wallet, notifier: notifier}
}

// mintApproved gives owner the item and approves the marketplace for it.
func (f fixture) mintApproved(id uint64, owner common.Address) {
	f.registry.Mint(asset, *uint256.NewInt(id), owner)
	f.registry.Approve(asset, *uint256.NewInt(id), market)
}

func (f fixture) list(t *testing.T, id uint64, price uint64) {
	t.Helper()
	if _, err := f.engine.ListItem(context.Background(), application.ListItemCommand{
		Caller: seller,
		Asset:  asset,
		ItemID: *uint256.NewInt(id),
		Price:  *uint256.NewInt(price),
	}); err != nil {
		t.Fatalf("list item %d failed: %v", id, err)
	}
}

func (f fixture) listing(t *testing.T, id uint64) application.ListingView {
	t.Helper()
	view, err := f.engine.GetListing(context.Background(), asset, *uint256.NewInt(id))
	if err != nil {
		t.Fatalf("get listing failed: %v", err)
	}
	return view
}

func (f fixture) proceeds(t *testing.T, account common.Address) uint64 {
	t.Helper()
	balance, err := f.engine.GetProceeds(context.Background(), account)
	if err != nil {
		t.Fatalf("get proceeds failed: %v", err)
	}
	return balance.Uint64()
}

func TestListItemThenGetListing(t *testing.T) {
	f := newFixture(t, "")
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	view := f.listing(t, 1)
	if !view.Listed || view.Seller != seller || view.Price.Uint64() != 100 {
		t.Fatalf("unexpected listing view: %+v", view)
	}
}

func TestListItemRejections(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		setup func(f fixture)
		cmd   application.ListItemCommand
		want  error
	}{
		{
			name:  "zero price",
			setup: func(f fixture) { f.mintApproved(1, seller) },
			cmd:   application.ListItemCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1)},
			want:  domainerrors.ErrPriceMustBeAboveZero,
		},
		{
			name:  "not owner",
			setup: func(f fixture) { f.mintApproved(1, buyer) },
			cmd:   application.ListItemCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), Price: *uint256.NewInt(5)},
			want:  domainerrors.ErrNotOwner,
		},
		{
			name:  "unknown item",
			setup: func(fixture) {},
			cmd:   application.ListItemCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(9), Price: *uint256.NewInt(5)},
			want:  domainerrors.ErrNotOwner,
		},
		{
			name:  "not approved",
			setup: func(f fixture) { f.registry.Mint(asset, *uint256.NewInt(1), seller) },
			cmd:   application.ListItemCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), Price: *uint256.NewInt(5)},
			want:  domainerrors.ErrNotApprovedForMarketplace,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "")
			tc.setup(f)
			_, err := f.engine.ListItem(ctx, tc.cmd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if view := f.listing(t, tc.cmd.ItemID.Uint64()); view.Listed {
				t.Fatalf("expected store unchanged, got %+v", view)
			}
			if len(f.store.OutboxEvents()) != 0 {
				t.Fatal("expected no events on rejection")
			}
		})
	}
}

func TestListItemWithOperatorApproval(t *testing.T) {
	f := newFixture(t, "")
	f.registry.Mint(asset, *uint256.NewInt(4), seller)
	f.registry.SetApprovalForAll(seller, market, true)
	f.list(t, 4, 10)
	if !f.listing(t, 4).Listed {
		t.Fatal("expected listing through operator approval")
	}
}

func TestListTwiceFailsAlreadyListed(t *testing.T) {
	f := newFixture(t, "")
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	_, err := f.engine.ListItem(context.Background(), application.ListItemCommand{
		Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), Price: *uint256.NewInt(300),
	})
	if !errors.Is(err, domainerrors.ErrAlreadyListed) {
		t.Fatalf("expected already listed, got %v", err)
	}
	if view := f.listing(t, 1); view.Price.Uint64() != 100 {
		t.Fatalf("expected price 100 kept, got %s", view.Price.Dec())
	}
}

func TestCancelListing(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)

	err := f.engine.CancelListing(ctx, application.CancelListingCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1)})
	if !errors.Is(err, domainerrors.ErrNotListed) {
		t.Fatalf("expected not listed, got %v", err)
	}

	f.list(t, 1, 100)
	err = f.engine.CancelListing(ctx, application.CancelListingCommand{Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1)})
	if !errors.Is(err, domainerrors.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	if err := f.engine.CancelListing(ctx, application.CancelListingCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1)}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	view := f.listing(t, 1)
	if view.Listed || !view.Price.IsZero() || view.Seller != (common.Address{}) {
		t.Fatalf("expected absent listing, got %+v", view)
	}

	f.list(t, 1, 150)
	if view := f.listing(t, 1); view.Price.Uint64() != 150 {
		t.Fatal("expected relist after cancel")
	}
}

func TestUpdateListing(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)

	_, err := f.engine.UpdateListing(ctx, application.UpdateListingCommand{
		Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), NewPrice: *uint256.NewInt(5),
	})
	if !errors.Is(err, domainerrors.ErrNotListed) {
		t.Fatalf("expected not listed, got %v", err)
	}

	f.list(t, 1, 100)
	_, err = f.engine.UpdateListing(ctx, application.UpdateListingCommand{
		Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1),
	})
	if !errors.Is(err, domainerrors.ErrPriceMustBeAboveZero) {
		t.Fatalf("expected price must be above zero, got %v", err)
	}
	if view := f.listing(t, 1); view.Price.Uint64() != 100 {
		t.Fatal("expected old price intact")
	}

	_, err = f.engine.UpdateListing(ctx, application.UpdateListingCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), NewPrice: *uint256.NewInt(5),
	})
	if !errors.Is(err, domainerrors.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	updated, err := f.engine.UpdateListing(ctx, application.UpdateListingCommand{
		Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), NewPrice: *uint256.NewInt(250),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Seller != seller || updated.Price.Uint64() != 250 {
		t.Fatalf("unexpected updated listing: %+v", updated)
	}
}

func TestBuyScenarioUnderpaidThenPaid(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	_, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(50),
	})
	if !errors.Is(err, domainerrors.ErrPriceNotMet) {
		t.Fatalf("expected price not met, got %v", err)
	}
	if view := f.listing(t, 1); !view.Listed || view.Price.Uint64() != 100 {
		t.Fatalf("expected listing unchanged, got %+v", view)
	}

	purchase, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	})
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if purchase.Seller != seller || purchase.Buyer != buyer || purchase.Price.Uint64() != 100 {
		t.Fatalf("unexpected purchase: %+v", purchase)
	}
	if f.listing(t, 1).Listed {
		t.Fatal("expected listing absent after buy")
	}
	if got := f.proceeds(t, seller); got != 100 {
		t.Fatalf("expected proceeds 100, got %d", got)
	}
	owner, _ := f.registry.OwnerOf(ctx, asset, *uint256.NewInt(1))
	if owner != buyer {
		t.Fatalf("expected buyer to own item, got %s", owner.Hex())
	}
}

func TestBuyCreditsPriceNotPayment(t *testing.T) {
	f := newFixture(t, "")
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	purchase, err := f.engine.BuyItem(context.Background(), application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(175),
	})
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if purchase.Excess.Uint64() != 75 {
		t.Fatalf("expected excess 75, got %s", purchase.Excess.Dec())
	}
	if got := f.proceeds(t, seller); got != 100 {
		t.Fatalf("expected proceeds 100, got %d", got)
	}
}

func TestBuyUnlistedFailsNotListed(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.engine.BuyItem(context.Background(), application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	})
	if !errors.Is(err, domainerrors.ErrNotListed) {
		t.Fatalf("expected not listed, got %v", err)
	}
}

func TestBuyOverflowLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	var ceiling uint256.Int
	ceiling.SetAllOne()
	if err := f.store.Credit(ctx, seller, ceiling); err != nil {
		t.Fatalf("seed credit failed: %v", err)
	}
	f.mintApproved(1, seller)
	f.list(t, 1, 1)

	_, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(1),
	})
	if !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if !f.listing(t, 1).Listed {
		t.Fatal("expected listing kept after overflow")
	}
	owner, _ := f.registry.OwnerOf(ctx, asset, *uint256.NewInt(1))
	if owner != seller {
		t.Fatal("expected item not transferred after overflow")
	}
}

func TestBuyTransferFailureRollsBack(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)
	f.registry.OnTransfer(func(context.Context, common.Address, uint256.Int, common.Address, common.Address) error {
		return errors.New("registry paused")
	})

	_, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	})
	if !errors.Is(err, domainerrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failed, got %v", err)
	}
	if errors.Is(err, domainerrors.ErrReconciliationRequired) {
		t.Fatalf("expected clean rollback, got %v", err)
	}
	if view := f.listing(t, 1); !view.Listed || view.Price.Uint64() != 100 || view.Seller != seller {
		t.Fatalf("expected listing restored, got %+v", view)
	}
	if got := f.proceeds(t, seller); got != 0 {
		t.Fatalf("expected credit reversed, got %d", got)
	}
	for _, msg := range f.store.OutboxEvents() {
		if msg.EventType == string(entities.EventItemBought) {
			t.Fatal("expected no ItemBought event for failed sale")
		}
	}
}

// A second buyer re-entering BuyItem during the registry transfer must see
// the listing already gone and the seller already credited.
func TestBuyReentrancyObservesFinalState(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	var reentrantErr error
	var creditedDuringTransfer uint64
	f.registry.OnTransfer(func(ctx context.Context, _ common.Address, _ uint256.Int, _ common.Address, _ common.Address) error {
		f.registry.OnTransfer(nil)
		_, reentrantErr = f.engine.BuyItem(ctx, application.BuyItemCommand{
			Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
		})
		balance, _ := f.engine.GetProceeds(ctx, seller)
		creditedDuringTransfer = balance.Uint64()
		return nil
	})

	if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	}); err != nil {
		t.Fatalf("outer buy failed: %v", err)
	}
	if !errors.Is(reentrantErr, domainerrors.ErrNotListed) {
		t.Fatalf("expected reentrant buy to fail not listed, got %v", reentrantErr)
	}
	if creditedDuringTransfer != 100 {
		t.Fatalf("expected seller credited before transfer, got %d", creditedDuringTransfer)
	}
	if got := f.proceeds(t, seller); got != 100 {
		t.Fatalf("expected single credit of 100, got %d", got)
	}
}

// A seller who withdraws the fresh credit while the transfer is in flight
// makes the credit irreversible. The listing must stay removed so the item
// cannot be sold and credited a second time.
func TestBuyRollbackAfterWithdrawKeepsListingRemoved(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	var withdrawErr error
	f.registry.OnTransfer(func(ctx context.Context, _ common.Address, _ uint256.Int, _ common.Address, _ common.Address) error {
		f.registry.OnTransfer(nil)
		_, withdrawErr = f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
		return errors.New("registry paused")
	})

	_, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	})
	if withdrawErr != nil {
		t.Fatalf("withdraw during transfer failed: %v", withdrawErr)
	}
	if !errors.Is(err, domainerrors.ErrTransferFailed) || !errors.Is(err, domainerrors.ErrReconciliationRequired) {
		t.Fatalf("expected transfer failed with reconciliation required, got %v", err)
	}
	if view := f.listing(t, 1); view.Listed {
		t.Fatalf("expected listing to stay removed, got %+v", view)
	}

	_, err = f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: common.HexToAddress("0x00000000000000000000000000000000000000c2"), Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	})
	if !errors.Is(err, domainerrors.ErrNotListed) {
		t.Fatalf("expected second buy to fail not listed, got %v", err)
	}
	paid := f.wallet.BalanceOf(seller)
	if paid.Uint64() != 100 || f.proceeds(t, seller) != 0 {
		t.Fatalf("expected one payment of 100 and empty ledger, got wallet=%s ledger=%d", paid.Dec(), f.proceeds(t, seller))
	}
}

func TestWithdrawProceeds(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
	if !errors.Is(err, domainerrors.ErrNoProceeds) {
		t.Fatalf("expected no proceeds, got %v", err)
	}

	f.mintApproved(1, seller)
	f.mintApproved(2, seller)
	f.list(t, 1, 100)
	f.list(t, 2, 40)
	for _, id := range []uint64{1, 2} {
		if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
			Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(id), Payment: *uint256.NewInt(100),
		}); err != nil {
			t.Fatalf("buy %d failed: %v", id, err)
		}
	}

	amount, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if amount.Uint64() != 140 {
		t.Fatalf("expected 140 withdrawn, got %s", amount.Dec())
	}
	if got := f.proceeds(t, seller); got != 0 {
		t.Fatalf("expected zero proceeds, got %d", got)
	}
	paid := f.wallet.BalanceOf(seller)
	if paid.Uint64() != 140 {
		t.Fatalf("expected 140 sent, got %s", paid.Dec())
	}

	_, err = f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
	if !errors.Is(err, domainerrors.ErrNoProceeds) {
		t.Fatalf("expected no proceeds on second withdraw, got %v", err)
	}
}

func TestWithdrawReentrancyCannotDoubleSpend(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)
	if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	var reentrantErr error
	f.wallet.OnSend(func(ctx context.Context, _ common.Address, _ uint256.Int) error {
		f.wallet.OnSend(nil)
		_, reentrantErr = f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
		return nil
	})

	if _, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller}); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if !errors.Is(reentrantErr, domainerrors.ErrNoProceeds) {
		t.Fatalf("expected reentrant withdraw to see no proceeds, got %v", reentrantErr)
	}
	paid := f.wallet.BalanceOf(seller)
	if paid.Uint64() != 100 {
		t.Fatalf("expected exactly 100 sent, got %s", paid.Dec())
	}
}

func TestWithdrawFailureQueuesPayout(t *testing.T) {
	f := newFixture(t, entities.WithdrawFailureReconcile)
	ctx := context.Background()
	if err := f.store.Credit(ctx, seller, *uint256.NewInt(90)); err != nil {
		t.Fatalf("seed credit failed: %v", err)
	}
	f.wallet.OnSend(func(context.Context, common.Address, uint256.Int) error {
		return errors.New("wallet offline")
	})

	_, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
	if !errors.Is(err, domainerrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failed, got %v", err)
	}
	var failure *application.TransferFailedError
	if !errors.As(err, &failure) {
		t.Fatalf("expected TransferFailedError, got %T", err)
	}
	if failure.Restored || failure.PayoutID == "" || failure.Amount.Uint64() != 90 {
		t.Fatalf("unexpected failure detail: %+v", failure)
	}
	if got := f.proceeds(t, seller); got != 0 {
		t.Fatalf("expected balance to stay cleared, got %d", got)
	}

	payouts, err := f.engine.ListPayouts(ctx, seller)
	if err != nil {
		t.Fatalf("list payouts failed: %v", err)
	}
	if len(payouts) != 1 || payouts[0].PayoutID != failure.PayoutID || payouts[0].Status != entities.PayoutStatusPending {
		t.Fatalf("unexpected payouts: %+v", payouts)
	}

	_, err = f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
	if !errors.Is(err, domainerrors.ErrNoProceeds) {
		t.Fatalf("expected retry to see no proceeds, got %v", err)
	}
}

func TestWithdrawFailureRestoresBalance(t *testing.T) {
	f := newFixture(t, entities.WithdrawFailureRestore)
	ctx := context.Background()
	if err := f.store.Credit(ctx, seller, *uint256.NewInt(90)); err != nil {
		t.Fatalf("seed credit failed: %v", err)
	}
	f.wallet.OnSend(func(context.Context, common.Address, uint256.Int) error {
		return errors.New("wallet offline")
	})

	_, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
	var failure *application.TransferFailedError
	if !errors.As(err, &failure) || !failure.Restored {
		t.Fatalf("expected restored transfer failure, got %v", err)
	}
	if got := f.proceeds(t, seller); got != 90 {
		t.Fatalf("expected balance restored to 90, got %d", got)
	}
	payouts, _ := f.engine.ListPayouts(ctx, seller)
	if len(payouts) != 0 {
		t.Fatalf("expected no queued payouts, got %d", len(payouts))
	}
}

// Restoring is additive: a sale credited while Send was in flight survives.
func TestWithdrawRestoreKeepsConcurrentCredits(t *testing.T) {
	f := newFixture(t, entities.WithdrawFailureRestore)
	ctx := context.Background()
	if err := f.store.Credit(ctx, seller, *uint256.NewInt(90)); err != nil {
		t.Fatalf("seed credit failed: %v", err)
	}
	f.mintApproved(1, seller)
	f.list(t, 1, 10)

	f.wallet.OnSend(func(ctx context.Context, _ common.Address, _ uint256.Int) error {
		if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
			Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(10),
		}); err != nil {
			t.Errorf("reentrant buy failed: %v", err)
		}
		return errors.New("wallet offline")
	})

	if _, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller}); err == nil {
		t.Fatal("expected transfer failure")
	}
	if got := f.proceeds(t, seller); got != 100 {
		t.Fatalf("expected 90 restored plus 10 credited, got %d", got)
	}
}

func TestEventsAreEmittedAndPersisted(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	events, cancel := f.notifier.Subscribe(8)
	defer cancel()

	f.mintApproved(1, seller)
	f.list(t, 1, 100)
	if _, err := f.engine.UpdateListing(ctx, application.UpdateListingCommand{
		Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), NewPrice: *uint256.NewInt(120),
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(120),
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	f.mintApproved(2, seller)
	f.list(t, 2, 5)
	if err := f.engine.CancelListing(ctx, application.CancelListingCommand{Caller: seller, Asset: asset, ItemID: *uint256.NewInt(2)}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	want := []struct {
		kind    entities.EventKind
		account common.Address
		price   uint64
	}{
		{entities.EventItemListed, seller, 100},
		{entities.EventItemListed, seller, 120},
		{entities.EventItemBought, buyer, 120},
		{entities.EventItemListed, seller, 5},
		{entities.EventItemCanceled, seller, 0},
	}
	for i, expected := range want {
		event := <-events
		if event.Kind != expected.kind || event.Account != expected.account || event.Price.Uint64() != expected.price {
			t.Fatalf("event %d: expected %+v, got %+v", i, expected, event)
		}
		if event.EventID == "" || event.OccurredAt.IsZero() {
			t.Fatalf("event %d: expected id and timestamp, got %+v", i, event)
		}
	}

	outbox := f.store.OutboxEvents()
	if len(outbox) != len(want) {
		t.Fatalf("expected %d outbox rows, got %d", len(want), len(outbox))
	}
	for i, msg := range outbox {
		if msg.EventType != string(want[i].kind) {
			t.Fatalf("outbox %d: expected %s, got %s", i, want[i].kind, msg.EventType)
		}
	}
}

func TestConcurrentBuysSettleOnce(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)

	const buyers = 64
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notListed int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := common.HexToAddress(fmt.Sprintf("0x%040x", 0x1000+i))
			_, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
				Caller: caller, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainerrors.ErrNotListed):
				notListed++
			default:
				t.Errorf("unexpected buy error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || notListed != buyers-1 {
		t.Fatalf("expected exactly one sale, got successes=%d not_listed=%d", successes, notListed)
	}
	if got := f.proceeds(t, seller); got != 100 {
		t.Fatalf("expected proceeds of 100, got %d", got)
	}
}

func TestConcurrentListingsOfOneItemAcceptOne(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)

	const callers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(price uint64) {
			defer wg.Done()
			_, err := f.engine.ListItem(ctx, application.ListItemCommand{
				Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), Price: *uint256.NewInt(price),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case !errors.Is(err, domainerrors.ErrAlreadyListed):
				t.Errorf("unexpected list error: %v", err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one listing, got %d", successes)
	}
	if view := f.listing(t, 1); !view.Listed {
		t.Fatalf("expected item listed, got %+v", view)
	}
}

func TestConcurrentWithdrawalsPayOnce(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.mintApproved(1, seller)
	f.list(t, 1, 100)
	if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
		Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(100),
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	const callers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case !errors.Is(err, domainerrors.ErrNoProceeds):
				t.Errorf("unexpected withdraw error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one withdrawal, got %d", successes)
	}
	paid := f.wallet.BalanceOf(seller)
	if paid.Uint64() != 100 || f.proceeds(t, seller) != 0 {
		t.Fatalf("expected 100 paid once, got wallet=%s ledger=%d", paid.Dec(), f.proceeds(t, seller))
	}
}
