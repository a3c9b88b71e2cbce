package application

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
	"nftmarket/contexts/trading/nft-marketplace/domain/services"
)

type ListItemCommand struct {
	Caller common.Address
	Asset  common.Address
	ItemID uint256.Int
	Price  uint256.Int
}

type CancelListingCommand struct {
	Caller common.Address
	Asset  common.Address
	ItemID uint256.Int
}

type UpdateListingCommand struct {
	Caller   common.Address
	Asset    common.Address
	ItemID   uint256.Int
	NewPrice uint256.Int
}

// ListItem runs the listing workflow in this order:
// 1) price check
// 2) duplicate listing check under the key lock
// 3) registry ownership and marketplace approval checks
// 4) listing write and ItemListed emission.
func (e *Engine) ListItem(ctx context.Context, cmd ListItemCommand) (entities.Listing, error) {
	started := time.Now()
	key := entities.NewListingKey(cmd.Asset, &cmd.ItemID)

	listing, err := e.listItem(ctx, key, cmd)
	e.observe("list_item", err, started)
	if err != nil {
		e.logRejection("list_item", err,
			"listing_key", key.String(),
			"caller", cmd.Caller.Hex(),
		)
		return entities.Listing{}, err
	}

	e.logger().Info("item listed",
		"event", "nft_marketplace_item_listed",
		"module", moduleName,
		"layer", "application",
		"listing_key", key.String(),
		"seller", listing.Seller.Hex(),
		"price", listing.Price.Dec(),
	)
	return listing, nil
}

func (e *Engine) listItem(ctx context.Context, key entities.ListingKey, cmd ListItemCommand) (entities.Listing, error) {
	if err := services.ValidatePrice(&cmd.Price); err != nil {
		return entities.Listing{}, err
	}

	release := e.lockListing(key)
	defer release()

	existing, found, err := e.deps.Listings.GetListing(ctx, key)
	if err != nil {
		return entities.Listing{}, wrapStoreErr("load listing", key, err)
	}
	if err := services.RequireUnlisted(existing, found); err != nil {
		return entities.Listing{}, err
	}

	owner, err := e.deps.Registry.OwnerOf(ctx, cmd.Asset, cmd.ItemID)
	if err != nil {
		return entities.Listing{}, wrapStoreErr("resolve owner of", key, err)
	}
	if owner != cmd.Caller {
		return entities.Listing{}, domainerrors.ErrNotOwner
	}
	approved, err := e.deps.Registry.IsApprovedOrOperator(ctx, cmd.Asset, cmd.ItemID, e.deps.Operator)
	if err != nil {
		return entities.Listing{}, wrapStoreErr("resolve approval of", key, err)
	}
	if !approved {
		return entities.Listing{}, domainerrors.ErrNotApprovedForMarketplace
	}

	listing := entities.Listing{Seller: cmd.Caller, Price: cmd.Price}
	if err := e.deps.Listings.PutListing(ctx, key, listing); err != nil {
		return entities.Listing{}, wrapStoreErr("store listing", key, err)
	}

	// Emitted under the key lock so events for one item keep their order.
	e.emit(ctx, entities.MarketEvent{
		Kind:    entities.EventItemListed,
		Account: listing.Seller,
		Asset:   key.Asset,
		ItemID:  key.ItemID,
		Price:   listing.Price,
	})
	return listing, nil
}

func (e *Engine) CancelListing(ctx context.Context, cmd CancelListingCommand) error {
	started := time.Now()
	key := entities.NewListingKey(cmd.Asset, &cmd.ItemID)

	seller, err := e.cancelListing(ctx, key, cmd)
	e.observe("cancel_listing", err, started)
	if err != nil {
		e.logRejection("cancel_listing", err,
			"listing_key", key.String(),
			"caller", cmd.Caller.Hex(),
		)
		return err
	}

	e.logger().Info("listing canceled",
		"event", "nft_marketplace_item_canceled",
		"module", moduleName,
		"layer", "application",
		"listing_key", key.String(),
		"seller", seller.Hex(),
	)
	return nil
}

func (e *Engine) cancelListing(ctx context.Context, key entities.ListingKey, cmd CancelListingCommand) (common.Address, error) {
	release := e.lockListing(key)
	defer release()

	existing, found, err := e.deps.Listings.GetListing(ctx, key)
	if err != nil {
		return common.Address{}, wrapStoreErr("load listing", key, err)
	}
	if err := services.RequireSeller(existing, found, cmd.Caller); err != nil {
		return common.Address{}, err
	}
	if err := e.deps.Listings.RemoveListing(ctx, key); err != nil {
		return common.Address{}, wrapStoreErr("remove listing", key, err)
	}

	e.emit(ctx, entities.MarketEvent{
		Kind:    entities.EventItemCanceled,
		Account: existing.Seller,
		Asset:   key.Asset,
		ItemID:  key.ItemID,
	})
	return existing.Seller, nil
}

// UpdateListing replaces the price of an active listing and re-emits
// ItemListed, since the listing looks the same as a fresh one.
func (e *Engine) UpdateListing(ctx context.Context, cmd UpdateListingCommand) (entities.Listing, error) {
	started := time.Now()
	key := entities.NewListingKey(cmd.Asset, &cmd.ItemID)

	listing, err := e.updateListing(ctx, key, cmd)
	e.observe("update_listing", err, started)
	if err != nil {
		e.logRejection("update_listing", err,
			"listing_key", key.String(),
			"caller", cmd.Caller.Hex(),
		)
		return entities.Listing{}, err
	}

	e.logger().Info("listing price updated",
		"event", "nft_marketplace_listing_updated",
		"module", moduleName,
		"layer", "application",
		"listing_key", key.String(),
		"price", listing.Price.Dec(),
	)
	return listing, nil
}

func (e *Engine) updateListing(ctx context.Context, key entities.ListingKey, cmd UpdateListingCommand) (entities.Listing, error) {
	release := e.lockListing(key)
	defer release()

	existing, found, err := e.deps.Listings.GetListing(ctx, key)
	if err != nil {
		return entities.Listing{}, wrapStoreErr("load listing", key, err)
	}
	if err := services.RequireSeller(existing, found, cmd.Caller); err != nil {
		return entities.Listing{}, err
	}
	if err := services.ValidatePrice(&cmd.NewPrice); err != nil {
		return entities.Listing{}, err
	}

	updated := entities.Listing{Seller: existing.Seller, Price: cmd.NewPrice}
	if err := e.deps.Listings.PutListing(ctx, key, updated); err != nil {
		return entities.Listing{}, wrapStoreErr("store listing", key, err)
	}

	e.emit(ctx, entities.MarketEvent{
		Kind:    entities.EventItemListed,
		Account: updated.Seller,
		Asset:   key.Asset,
		ItemID:  key.ItemID,
		Price:   updated.Price,
	})
	return updated, nil
}
