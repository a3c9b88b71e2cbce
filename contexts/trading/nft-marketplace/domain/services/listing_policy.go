package services

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
)

// ValidatePrice rejects zero prices; zero is the absent-listing encoding.
func ValidatePrice(price *uint256.Int) error {
	if price == nil || price.IsZero() {
		return domainerrors.ErrPriceMustBeAboveZero
	}
	return nil
}

// RequireUnlisted fails when the key already carries an active listing.
func RequireUnlisted(listing entities.Listing, found bool) error {
	if found && listing.IsActive() {
		return domainerrors.ErrAlreadyListed
	}
	return nil
}

// RequireSeller checks that an active listing exists and belongs to caller.
func RequireSeller(listing entities.Listing, found bool, caller common.Address) error {
	if !found || !listing.IsActive() {
		return domainerrors.ErrNotListed
	}
	if listing.Seller != caller {
		return domainerrors.ErrNotOwner
	}
	return nil
}

// EvaluatePurchase checks that the listing is active and that payment covers
// the price. Overpayment is accepted.
func EvaluatePurchase(listing entities.Listing, found bool, payment *uint256.Int) error {
	if !found || !listing.IsActive() {
		return domainerrors.ErrNotListed
	}
	if payment == nil || payment.Lt(&listing.Price) {
		return domainerrors.ErrPriceNotMet
	}
	return nil
}

// CheckedAdd returns balance+amount or ErrOverflow past 2^256-1.
func CheckedAdd(balance *uint256.Int, amount *uint256.Int) (uint256.Int, error) {
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(balance, amount); overflow {
		return uint256.Int{}, domainerrors.ErrOverflow
	}
	return sum, nil
}
