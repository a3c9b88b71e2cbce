package httptransport

// Amounts and item ids are base-10 strings so the full 256-bit range
// survives JSON. Addresses are 0x-prefixed hex.

type ListItemRequest struct {
	Price string `json:"price"`
}

type UpdateListingRequest struct {
	Price string `json:"price"`
}

type BuyItemRequest struct {
	Payment string `json:"payment"`
}

type ListingDTO struct {
	Asset  string `json:"asset"`
	ItemID string `json:"item_id"`
	Seller string `json:"seller"`
	Price  string `json:"price"`
	Listed bool   `json:"listed"`
}

type ListingResponse struct {
	Listing ListingDTO `json:"listing"`
}

type PurchaseResponse struct {
	Asset  string `json:"asset"`
	ItemID string `json:"item_id"`
	Seller string `json:"seller"`
	Buyer  string `json:"buyer"`
	Price  string `json:"price"`
	Excess string `json:"excess,omitempty"`
}

type ProceedsResponse struct {
	Seller  string `json:"seller"`
	Balance string `json:"balance"`
}

type WithdrawResponse struct {
	Seller string `json:"seller"`
	Amount string `json:"amount"`
}

type PayoutDTO struct {
	PayoutID  string `json:"payout_id"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListPayoutsResponse struct {
	Items []PayoutDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// PayoutID is set when a failed withdrawal was queued for retry.
	PayoutID string `json:"payout_id,omitempty"`
}
