package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	application "nftmarket/contexts/trading/nft-marketplace/application"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
	httptransport "nftmarket/contexts/trading/nft-marketplace/transport/http"
)

// Handler translates transport DTOs into engine commands.
type Handler struct {
	Engine *application.Engine
	Logger *slog.Logger
}

// ListItemHandler godoc
// @Summary List an item for sale
// @Description Creates a fixed-price listing. The caller must own the item and the marketplace must be approved for it.
// @Tags nft-marketplace
// @Accept json
// @Produce json
// @Param X-Caller-Address header string true "Caller address"
// @Param asset path string true "Asset contract address"
// @Param item_id path string true "Item id (decimal)"
// @Param request body httptransport.ListItemRequest true "Listing price"
// @Success 201 {object} httptransport.ListingResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /v1/listings/{asset}/{item_id} [post]
func (h Handler) ListItemHandler(ctx context.Context, caller string, asset string, itemID string, req httptransport.ListItemRequest) (httptransport.ListingResponse, error) {
	cmd := application.ListItemCommand{}
	var err error
	if cmd.Caller, err = parseAddress("caller", caller); err != nil {
		return httptransport.ListingResponse{}, err
	}
	if cmd.Asset, err = parseAddress("asset", asset); err != nil {
		return httptransport.ListingResponse{}, err
	}
	if cmd.ItemID, err = parseAmount("item_id", itemID); err != nil {
		return httptransport.ListingResponse{}, err
	}
	if cmd.Price, err = parseAmount("price", req.Price); err != nil {
		return httptransport.ListingResponse{}, err
	}

	listing, err := h.Engine.ListItem(ctx, cmd)
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	return httptransport.ListingResponse{Listing: listingDTO(cmd.Asset, cmd.ItemID, listing.Seller, listing.Price, true)}, nil
}

// UpdateListingHandler godoc
// @Summary Update a listing price
// @Tags nft-marketplace
// @Accept json
// @Produce json
// @Param X-Caller-Address header string true "Caller address"
// @Param asset path string true "Asset contract address"
// @Param item_id path string true "Item id (decimal)"
// @Param request body httptransport.UpdateListingRequest true "New price"
// @Success 200 {object} httptransport.ListingResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/listings/{asset}/{item_id} [patch]
func (h Handler) UpdateListingHandler(ctx context.Context, caller string, asset string, itemID string, req httptransport.UpdateListingRequest) (httptransport.ListingResponse, error) {
	cmd := application.UpdateListingCommand{}
	var err error
	if cmd.Caller, err = parseAddress("caller", caller); err != nil {
		return httptransport.ListingResponse{}, err
	}
	if cmd.Asset, err = parseAddress("asset", asset); err != nil {
		return httptransport.ListingResponse{}, err
	}
	if cmd.ItemID, err = parseAmount("item_id", itemID); err != nil {
		return httptransport.ListingResponse{}, err
	}
	if cmd.NewPrice, err = parseAmount("price", req.Price); err != nil {
		return httptransport.ListingResponse{}, err
	}

	listing, err := h.Engine.UpdateListing(ctx, cmd)
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	return httptransport.ListingResponse{Listing: listingDTO(cmd.Asset, cmd.ItemID, listing.Seller, listing.Price, true)}, nil
}

// CancelListingHandler godoc
// @Summary Cancel a listing
// @Tags nft-marketplace
// @Produce json
// @Param X-Caller-Address header string true "Caller address"
// @Param asset path string true "Asset contract address"
// @Param item_id path string true "Item id (decimal)"
// @Success 204
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/listings/{asset}/{item_id} [delete]
func (h Handler) CancelListingHandler(ctx context.Context, caller string, asset string, itemID string) error {
	cmd := application.CancelListingCommand{}
	var err error
	if cmd.Caller, err = parseAddress("caller", caller); err != nil {
		return err
	}
	if cmd.Asset, err = parseAddress("asset", asset); err != nil {
		return err
	}
	if cmd.ItemID, err = parseAmount("item_id", itemID); err != nil {
		return err
	}
	return h.Engine.CancelListing(ctx, cmd)
}

// BuyItemHandler godoc
// @Summary Buy a listed item
// @Description Payment must cover the listed price. Overpayment is accepted and not refunded.
// @Tags nft-marketplace
// @Accept json
// @Produce json
// @Param X-Caller-Address header string true "Buyer address"
// @Param asset path string true "Asset contract address"
// @Param item_id path string true "Item id (decimal)"
// @Param request body httptransport.BuyItemRequest true "Payment"
// @Success 200 {object} httptransport.PurchaseResponse
// @Failure 402 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /v1/listings/{asset}/{item_id}/buy [post]
func (h Handler) BuyItemHandler(ctx context.Context, caller string, asset string, itemID string, req httptransport.BuyItemRequest) (httptransport.PurchaseResponse, error) {
	cmd := application.BuyItemCommand{}
	var err error
	if cmd.Caller, err = parseAddress("caller", caller); err != nil {
		return httptransport.PurchaseResponse{}, err
	}
	if cmd.Asset, err = parseAddress("asset", asset); err != nil {
		return httptransport.PurchaseResponse{}, err
	}
	if cmd.ItemID, err = parseAmount("item_id", itemID); err != nil {
		return httptransport.PurchaseResponse{}, err
	}
	if cmd.Payment, err = parseAmount("payment", req.Payment); err != nil {
		return httptransport.PurchaseResponse{}, err
	}

	purchase, err := h.Engine.BuyItem(ctx, cmd)
	if err != nil {
		return httptransport.PurchaseResponse{}, err
	}
	resp := httptransport.PurchaseResponse{
		Asset:  cmd.Asset.Hex(),
		ItemID: cmd.ItemID.Dec(),
		Seller: purchase.Seller.Hex(),
		Buyer:  purchase.Buyer.Hex(),
		Price:  purchase.Price.Dec(),
	}
	if !purchase.Excess.IsZero() {
		resp.Excess = purchase.Excess.Dec()
	}
	return resp, nil
}

// GetListingHandler godoc
// @Summary Get a listing
// @Description Absent listings are returned with listed=false and a zero price.
// @Tags nft-marketplace
// @Produce json
// @Param asset path string true "Asset contract address"
// @Param item_id path string true "Item id (decimal)"
// @Success 200 {object} httptransport.ListingResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /v1/listings/{asset}/{item_id} [get]
func (h Handler) GetListingHandler(ctx context.Context, asset string, itemID string) (httptransport.ListingResponse, error) {
	assetAddr, err := parseAddress("asset", asset)
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	id, err := parseAmount("item_id", itemID)
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	view, err := h.Engine.GetListing(ctx, assetAddr, id)
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	return httptransport.ListingResponse{Listing: listingDTO(view.Asset, view.ItemID, view.Seller, view.Price, view.Listed)}, nil
}

// GetProceedsHandler godoc
// @Summary Get accrued proceeds
// @Tags nft-marketplace
// @Produce json
// @Param seller path string true "Seller address"
// @Success 200 {object} httptransport.ProceedsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /v1/proceeds/{seller} [get]
func (h Handler) GetProceedsHandler(ctx context.Context, seller string) (httptransport.ProceedsResponse, error) {
	addr, err := parseAddress("seller", seller)
	if err != nil {
		return httptransport.ProceedsResponse{}, err
	}
	balance, err := h.Engine.GetProceeds(ctx, addr)
	if err != nil {
		return httptransport.ProceedsResponse{}, err
	}
	return httptransport.ProceedsResponse{Seller: addr.Hex(), Balance: balance.Dec()}, nil
}

// WithdrawProceedsHandler godoc
// @Summary Withdraw accrued proceeds
// @Description Clears the caller balance and sends it. A failed send is reported as 502 and, depending on policy, is either restored or queued as a payout.
// @Tags nft-marketplace
// @Produce json
// @Param X-Caller-Address header string true "Seller address"
// @Success 200 {object} httptransport.WithdrawResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /v1/proceeds/withdraw [post]
func (h Handler) WithdrawProceedsHandler(ctx context.Context, caller string) (httptransport.WithdrawResponse, error) {
	addr, err := parseAddress("caller", caller)
	if err != nil {
		return httptransport.WithdrawResponse{}, err
	}
	amount, err := h.Engine.WithdrawProceeds(ctx, application.WithdrawProceedsCommand{Caller: addr})
	if err != nil {
		return httptransport.WithdrawResponse{}, err
	}
	return httptransport.WithdrawResponse{Seller: addr.Hex(), Amount: amount.Dec()}, nil
}

// ListPayoutsHandler godoc
// @Summary List queued payouts
// @Description Payouts created when a withdrawal send failed, newest first.
// @Tags nft-marketplace
// @Produce json
// @Param seller path string true "Seller address"
// @Success 200 {object} httptransport.ListPayoutsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /v1/proceeds/{seller}/payouts [get]
func (h Handler) ListPayoutsHandler(ctx context.Context, seller string) (httptransport.ListPayoutsResponse, error) {
	addr, err := parseAddress("seller", seller)
	if err != nil {
		return httptransport.ListPayoutsResponse{}, err
	}
	items, err := h.Engine.ListPayouts(ctx, addr)
	if err != nil {
		application.ResolveLogger(h.Logger).Error("list payouts request failed",
			"event", "http_list_payouts_failed",
			"module", "trading/nft-marketplace",
			"layer", "transport",
			"seller", addr.Hex(),
			"error", err.Error(),
		)
		return httptransport.ListPayoutsResponse{}, err
	}
	resp := httptransport.ListPayoutsResponse{Items: make([]httptransport.PayoutDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, payoutDTO(item))
	}
	return resp, nil
}

func listingDTO(asset common.Address, itemID uint256.Int, seller common.Address, price uint256.Int, listed bool) httptransport.ListingDTO {
	return httptransport.ListingDTO{
		Asset:  asset.Hex(),
		ItemID: itemID.Dec(),
		Seller: seller.Hex(),
		Price:  price.Dec(),
		Listed: listed,
	}
}

func payoutDTO(item entities.PendingPayout) httptransport.PayoutDTO {
	return httptransport.PayoutDTO{
		PayoutID:  item.PayoutID,
		Recipient: item.Recipient.Hex(),
		Amount:    item.Amount.Dec(),
		Status:    string(item.Status),
		Attempts:  item.Attempts,
		LastError: item.LastError,
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseAddress(field string, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not a hex address: %w", field, value, domainerrors.ErrInvalidRequest)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field string, value string) (uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uint256.Int{}, fmt.Errorf("%s is required: %w", field, domainerrors.ErrInvalidRequest)
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%s %q is not a 256-bit decimal: %w", field, value, domainerrors.ErrInvalidRequest)
	}
	return *amount, nil
}
