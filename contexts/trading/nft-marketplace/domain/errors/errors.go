package errors

import "errors"

var (
	ErrPriceMustBeAboveZero      = errors.New("price must be above zero")
	ErrAlreadyListed             = errors.New("item is already listed")
	ErrNotListed                 = errors.New("item is not listed")
	ErrNotOwner                  = errors.New("caller is not the owner")
	ErrNotApprovedForMarketplace = errors.New("marketplace is not approved for item")
	ErrPriceNotMet               = errors.New("payment does not meet listing price")
	ErrNoProceeds                = errors.New("no proceeds to withdraw")
	ErrTransferFailed            = errors.New("transfer failed")
	ErrOverflow                  = errors.New("amount overflows 256 bits")
	ErrInvalidRequest            = errors.New("invalid marketplace request")
	ErrReconciliationRequired    = errors.New("ledger requires reconciliation")
	ErrPayoutNotFound            = errors.New("pending payout not found")
)
