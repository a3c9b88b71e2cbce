package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
	"nftmarket/contexts/trading/nft-marketplace/domain/services"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// Repository persists listings, proceeds, queued payouts and the outbox.
// Amounts and item ids are kept as NUMERIC(78,0) so every 256-bit value fits.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the marketplace tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&listingModel{},
		&proceedsModel{},
		&payoutModel{},
		&outboxModel{},
	)
}

func (r *Repository) GetListing(ctx context.Context, key entities.ListingKey) (entities.Listing, bool, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("asset = ? AND item_id = ?", key.Asset.Hex(), key.ItemID.Dec()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, false, nil
		}
		return entities.Listing{}, false, err
	}
	listing, err := row.toEntity()
	if err != nil {
		return entities.Listing{}, false, err
	}
	if !listing.IsActive() {
		return entities.Listing{}, false, nil
	}
	return listing, true, nil
}

func (r *Repository) PutListing(ctx context.Context, key entities.ListingKey, listing entities.Listing) error {
	if !listing.IsActive() {
		return r.RemoveListing(ctx, key)
	}
	row := listingModel{
		Asset:     key.Asset.Hex(),
		ItemID:    key.ItemID.Dec(),
		Seller:    listing.Seller.Hex(),
		Price:     listing.Price.Dec(),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"seller", "price", "updated_at"}),
		}).
		Create(&row).
		Error
}

func (r *Repository) RemoveListing(ctx context.Context, key entities.ListingKey) error {
	return r.db.WithContext(ctx).
		Where("asset = ? AND item_id = ?", key.Asset.Hex(), key.ItemID.Dec()).
		Delete(&listingModel{}).
		Error
}

func (r *Repository) Credit(ctx context.Context, seller common.Address, amount uint256.Int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockBalance(tx, seller)
		if err != nil {
			return err
		}
		next, err := services.CheckedAdd(&current, &amount)
		if err != nil {
			return err
		}
		return saveBalance(tx, seller, next)
	})
}

func (r *Repository) Balance(ctx context.Context, seller common.Address) (uint256.Int, error) {
	var row proceedsModel
	err := r.db.WithContext(ctx).
		Where("seller = ?", seller.Hex()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uint256.Int{}, nil
		}
		return uint256.Int{}, err
	}
	return parseAmount(row.Balance)
}

func (r *Repository) Clear(ctx context.Context, seller common.Address) (uint256.Int, error) {
	var cleared uint256.Int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockBalance(tx, seller)
		if err != nil {
			return err
		}
		if current.IsZero() {
			return domainerrors.ErrNoProceeds
		}
		cleared = current
		return saveBalance(tx, seller, uint256.Int{})
	})
	if err != nil {
		return uint256.Int{}, err
	}
	return cleared, nil
}

func (r *Repository) Reverse(ctx context.Context, seller common.Address, amount uint256.Int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockBalance(tx, seller)
		if err != nil {
			return err
		}
		if current.Lt(&amount) {
			return domainerrors.ErrReconciliationRequired
		}
		var next uint256.Int
		next.Sub(&current, &amount)
		return saveBalance(tx, seller, next)
	})
}

func (r *Repository) EnqueuePayout(ctx context.Context, payout entities.PendingPayout) error {
	row := payoutModelFromEntity(payout)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payout %s already queued: %w", payout.PayoutID, err)
		}
		return err
	}
	return nil
}

func (r *Repository) ListPendingPayouts(ctx context.Context, limit int) ([]entities.PendingPayout, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []payoutModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.PayoutStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return payoutRowsToEntities(rows)
}

func (r *Repository) ListPayoutsByRecipient(ctx context.Context, recipient common.Address) ([]entities.PendingPayout, error) {
	var rows []payoutModel
	if err := r.db.WithContext(ctx).
		Where("recipient = ?", recipient.Hex()).
		Order("created_at DESC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return payoutRowsToEntities(rows)
}

func (r *Repository) MarkPayoutPaid(ctx context.Context, payoutID string, paidAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("payout_id = ?", payoutID).
		Updates(map[string]any{
			"status":     string(entities.PayoutStatusPaid),
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
			"updated_at": paidAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) RecordPayoutFailure(ctx context.Context, payoutID string, reason string, failedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("payout_id = ?", payoutID).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
			"updated_at": failedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) MarkPayoutExhausted(ctx context.Context, payoutID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("payout_id = ?", payoutID).
		Updates(map[string]any{
			"status":     string(entities.PayoutStatusExhausted),
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("outbox message %s not found", outboxID)
	}
	return nil
}

// lockBalance reads the seller row with FOR UPDATE, creating it at zero if
// missing so concurrent first credits serialize on the same row.
func lockBalance(tx *gorm.DB, seller common.Address) (uint256.Int, error) {
	seed := proceedsModel{Seller: seller.Hex(), Balance: "0", UpdatedAt: time.Now().UTC()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return uint256.Int{}, err
	}
	var row proceedsModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller = ?", seller.Hex()).
		First(&row).
		Error; err != nil {
		return uint256.Int{}, err
	}
	return parseAmount(row.Balance)
}

func saveBalance(tx *gorm.DB, seller common.Address, balance uint256.Int) error {
	return tx.Model(&proceedsModel{}).
		Where("seller = ?", seller.Hex()).
		Updates(map[string]any{
			"balance":    balance.Dec(),
			"updated_at": time.Now().UTC(),
		}).
		Error
}

func parseAmount(value string) (uint256.Int, error) {
	var amount uint256.Int
	if value == "" {
		return amount, nil
	}
	if err := amount.SetFromDecimal(value); err != nil {
		return uint256.Int{}, fmt.Errorf("parse stored amount %q: %w", value, err)
	}
	return amount, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
