package store

import (
	"fmt"

	"position-ledger-go/internal/models"

	"gorm.io/gorm"
)

// Identity is the natural deduplication key of a closed-position record.
// Two reconstruction runs over overlapping windows derive records with the
// same identity, and only the first may be written.
type Identity struct {
	Exchange        string
	Symbol          string
	CloseTimestamp  int64
	MatchedQuantity float64
}

// IdentityOf extracts the deduplication identity from a persisted record.
func IdentityOf(p *models.Position) Identity {
	return Identity{
		Exchange:        p.Exchange,
		Symbol:          p.Symbol,
		CloseTimestamp:  p.CloseTimestamp,
		MatchedQuantity: p.MatchedQuantity,
	}
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s close=%d qty=%g", id.Exchange, id.Symbol, id.CloseTimestamp, id.MatchedQuantity)
}

// PositionStore is the narrow persistence contract the reconstruction
// pipeline writes through.
type PositionStore interface {
	// InsertIfAbsent writes p unless a record with the same identity already
	// exists, reporting whether a write happened. The identity lookup and the
	// insert must execute as a single logical unit so concurrent overlapping
	// runs cannot double-write.
	InsertIfAbsent(p *models.Position) (inserted bool, err error)
}

// GormStore persists positions through gorm. The unique composite index on
// the identity columns backs up the transactional check-then-insert.
type GormStore struct {
	db *gorm.DB
}

var _ PositionStore = (*GormStore)(nil)

// NewGormStore creates a position store backed by an already-migrated gorm DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// InsertIfAbsent implements PositionStore.
func (s *GormStore) InsertIfAbsent(p *models.Position) (bool, error) {
	inserted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Position{}).
			Where("exchange = ? AND symbol = ? AND close_timestamp = ? AND matched_quantity = ?",
				p.Exchange, p.Symbol, p.CloseTimestamp, p.MatchedQuantity).
			Count(&count).Error; err != nil {
			return fmt.Errorf("identity lookup failed: %w", err)
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
		inserted = true
		return nil
	})
	return inserted, err
}
