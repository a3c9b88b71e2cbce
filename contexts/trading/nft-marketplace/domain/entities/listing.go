package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ListingKey identifies one unique item: the asset contract plus the item id.
type ListingKey struct {
	Asset  common.Address
	ItemID uint256.Int
}

func NewListingKey(asset common.Address, itemID *uint256.Int) ListingKey {
	key := ListingKey{Asset: asset}
	if itemID != nil {
		key.ItemID.Set(itemID)
	}
	return key
}

func (k ListingKey) String() string {
	return k.Asset.Hex() + "/" + k.ItemID.Dec()
}

// Listing is an active fixed-price offer. A zero price means absent.
type Listing struct {
	Seller common.Address
	Price  uint256.Int
}

func (l Listing) IsActive() bool {
	return !l.Price.IsZero()
}
