package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"nftmarket/contexts/trading/nft-marketplace/application"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
)

func TestPropertyListThenGetReturnsSellerAndPrice(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, "")
		id := rapid.Uint64().Draw(rt, "item_id")
		price := rapid.Uint64Range(1, 1<<62).Draw(rt, "price")
		f.mintApproved(id, seller)

		listing, err := f.engine.ListItem(context.Background(), application.ListItemCommand{
			Caller: seller, Asset: asset, ItemID: *uint256.NewInt(id), Price: *uint256.NewInt(price),
		})
		if err != nil {
			rt.Fatalf("list failed: %v", err)
		}
		view, _ := f.engine.GetListing(context.Background(), asset, *uint256.NewInt(id))
		if !view.Listed || view.Seller != seller || view.Price.Uint64() != price || listing.Price.Uint64() != price {
			rt.Fatalf("expected %d listed by seller, got %+v", price, view)
		}

		_, err = f.engine.ListItem(context.Background(), application.ListItemCommand{
			Caller: seller, Asset: asset, ItemID: *uint256.NewInt(id), Price: *uint256.NewInt(price),
		})
		if !errors.Is(err, domainerrors.ErrAlreadyListed) {
			rt.Fatalf("expected already listed on relist, got %v", err)
		}
	})
}

func TestPropertyBuyCreditsExactlyThePrice(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, "")
		ctx := context.Background()
		price := rapid.Uint64Range(1, 1<<40).Draw(rt, "price")
		payment := rapid.Uint64Range(0, 1<<41).Draw(rt, "payment")
		f.mintApproved(1, seller)
		if _, err := f.engine.ListItem(ctx, application.ListItemCommand{
			Caller: seller, Asset: asset, ItemID: *uint256.NewInt(1), Price: *uint256.NewInt(price),
		}); err != nil {
			rt.Fatalf("list failed: %v", err)
		}

		_, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
			Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(1), Payment: *uint256.NewInt(payment),
		})
		view, _ := f.engine.GetListing(ctx, asset, *uint256.NewInt(1))
		balance, _ := f.engine.GetProceeds(ctx, seller)

		if payment < price {
			if !errors.Is(err, domainerrors.ErrPriceNotMet) {
				rt.Fatalf("expected price not met, got %v", err)
			}
			if !view.Listed || view.Price.Uint64() != price {
				rt.Fatalf("expected listing unchanged, got %+v", view)
			}
			if !balance.IsZero() {
				rt.Fatalf("expected no proceeds, got %s", balance.Dec())
			}
			return
		}
		if err != nil {
			rt.Fatalf("buy failed: %v", err)
		}
		if view.Listed || !view.Price.IsZero() {
			rt.Fatalf("expected listing absent, got %+v", view)
		}
		if balance.Uint64() != price {
			rt.Fatalf("expected proceeds %d, got %s", price, balance.Dec())
		}
	})
}

func TestPropertyWithdrawTransfersPriorBalance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, "")
		ctx := context.Background()
		prices := rapid.SliceOfN(rapid.Uint64Range(1, 1<<32), 0, 6).Draw(rt, "prices")

		var total uint64
		for i, price := range prices {
			id := uint64(i + 1)
			f.mintApproved(id, seller)
			if _, err := f.engine.ListItem(ctx, application.ListItemCommand{
				Caller: seller, Asset: asset, ItemID: *uint256.NewInt(id), Price: *uint256.NewInt(price),
			}); err != nil {
				rt.Fatalf("list failed: %v", err)
			}
			if _, err := f.engine.BuyItem(ctx, application.BuyItemCommand{
				Caller: buyer, Asset: asset, ItemID: *uint256.NewInt(id), Payment: *uint256.NewInt(price),
			}); err != nil {
				rt.Fatalf("buy failed: %v", err)
			}
			total += price
		}

		amount, err := f.engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: seller})
		balance, _ := f.engine.GetProceeds(ctx, seller)
		paid := f.wallet.BalanceOf(seller)

		if total == 0 {
			if !errors.Is(err, domainerrors.ErrNoProceeds) {
				rt.Fatalf("expected no proceeds, got %v", err)
			}
			if !paid.IsZero() {
				rt.Fatalf("expected nothing sent, got %s", paid.Dec())
			}
			return
		}
		if err != nil {
			rt.Fatalf("withdraw failed: %v", err)
		}
		if amount.Uint64() != total || paid.Uint64() != total {
			rt.Fatalf("expected %d withdrawn and sent, got %s and %s", total, amount.Dec(), paid.Dec())
		}
		if !balance.IsZero() {
			rt.Fatalf("expected zero balance, got %s", balance.Dec())
		}
	})
}
