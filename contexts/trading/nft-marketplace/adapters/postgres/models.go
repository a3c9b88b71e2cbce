package postgresadapter

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

type listingModel struct {
	Asset     string    `gorm:"column:asset;primaryKey;size:42"`
	ItemID    string    `gorm:"column:item_id;primaryKey;type:numeric(78,0)"`
	Seller    string    `gorm:"column:seller;size:42;not null"`
	Price     string    `gorm:"column:price;type:numeric(78,0);not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (listingModel) TableName() string {
	return "nft_marketplace_listings"
}

func (m listingModel) toEntity() (entities.Listing, error) {
	price, err := parseAmount(m.Price)
	if err != nil {
		return entities.Listing{}, err
	}
	return entities.Listing{
		Seller: common.HexToAddress(m.Seller),
		Price:  price,
	}, nil
}

type proceedsModel struct {
	Seller    string    `gorm:"column:seller;primaryKey;size:42"`
	Balance   string    `gorm:"column:balance;type:numeric(78,0);not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (proceedsModel) TableName() string {
	return "nft_marketplace_proceeds"
}

type payoutModel struct {
	PayoutID  string    `gorm:"column:payout_id;primaryKey"`
	Recipient string    `gorm:"column:recipient;size:42;index"`
	Amount    string    `gorm:"column:amount;type:numeric(78,0);not null"`
	Status    string    `gorm:"column:status;index"`
	Attempts  int       `gorm:"column:attempts"`
	LastError string    `gorm:"column:last_error"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string {
	return "nft_marketplace_payouts"
}

func payoutModelFromEntity(payout entities.PendingPayout) payoutModel {
	return payoutModel{
		PayoutID:  payout.PayoutID,
		Recipient: payout.Recipient.Hex(),
		Amount:    payout.Amount.Dec(),
		Status:    string(payout.Status),
		Attempts:  payout.Attempts,
		LastError: payout.LastError,
		CreatedAt: payout.CreatedAt.UTC(),
		UpdatedAt: payout.UpdatedAt.UTC(),
	}
}

func (m payoutModel) toEntity() (entities.PendingPayout, error) {
	amount, err := parseAmount(m.Amount)
	if err != nil {
		return entities.PendingPayout{}, err
	}
	return entities.PendingPayout{
		PayoutID:  m.PayoutID,
		Recipient: common.HexToAddress(m.Recipient),
		Amount:    amount,
		Status:    entities.PayoutStatus(m.Status),
		Attempts:  m.Attempts,
		LastError: m.LastError,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

func payoutRowsToEntities(rows []payoutModel) ([]entities.PendingPayout, error) {
	items := make([]entities.PendingPayout, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "nft_marketplace_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}
