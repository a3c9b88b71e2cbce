package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventKind string

const (
	EventItemListed   EventKind = "marketplace.item_listed"
	EventItemCanceled EventKind = "marketplace.item_canceled"
	EventItemBought   EventKind = "marketplace.item_bought"
)

// MarketEvent is the observable state change emitted after a successful
// operation. Account is the seller for listed/canceled and the buyer for
// bought events; Price is zero for canceled events.
type MarketEvent struct {
	EventID    string
	Kind       EventKind
	Account    common.Address
	Asset      common.Address
	ItemID     uint256.Int
	Price      uint256.Int
	OccurredAt time.Time
}

func (e MarketEvent) Key() ListingKey {
	return NewListingKey(e.Asset, &e.ItemID)
}
