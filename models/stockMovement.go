package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is one immutable ledger entry. Quantity and total cost are
// signed (negative on OUT); balance fields snapshot the inventory row as it
// stood right after this movement posted.
type StockMovement struct {
	ID             int                   `gorm:"primary_key" json:"id"`
	BusinessId     string                `gorm:"index;not null" json:"business_id"`
	ItemId         int                   `gorm:"not null;index:idx_movement_item" json:"item_id"`
	Item           *Item                 `json:"item"`
	Direction      MovementDirection     `gorm:"type:enum('IN','OUT');not null" json:"direction"`
	Quantity       decimal.Decimal       `gorm:"type:decimal(20,8);not null" json:"quantity"`
	UnitCost       decimal.Decimal       `gorm:"type:decimal(20,8);not null" json:"unit_cost"`
	TotalCost      decimal.Decimal       `gorm:"type:decimal(20,8);not null" json:"total_cost"`
	BalanceQty     decimal.Decimal       `gorm:"type:decimal(20,8);not null" json:"balance_qty"`
	BalanceValue   decimal.Decimal       `gorm:"type:decimal(20,8);not null" json:"balance_value"`
	ReferenceType  MovementReferenceType `gorm:"type:enum('OS','ADJ','MI','GR','FGR','VR','RB');not null" json:"reference_type"`
	ReferenceId    int                   `gorm:"index" json:"reference_id"`
	DocumentNumber string                `gorm:"size:50" json:"document_number"`
	Note           string                `gorm:"size:255" json:"note"`
	CreatedBy      int                   `json:"created_by"`
	CreatedAt      time.Time             `gorm:"autoCreateTime;index:idx_movement_item" json:"created_at"`
}

// MovementRef carries the originating-document reference onto the movement a
// ledger operation appends.
type MovementRef struct {
	ReferenceType  MovementReferenceType
	ReferenceId    int
	DocumentNumber string
	Note           string
	CreatedBy      int
}

// BeforeUpdate blocks in-place edits; the ledger is append-only.
func (sm *StockMovement) BeforeUpdate(tx *gorm.DB) error {
	if config.StrictMovementImmutability() {
		return errors.New("stock movements are immutable")
	}
	return nil
}

// BeforeDelete blocks deletes for the same reason.
func (sm *StockMovement) BeforeDelete(tx *gorm.DB) error {
	if config.StrictMovementImmutability() {
		return errors.New("stock movements are immutable")
	}
	return nil
}

func GetStockMovements(ctx context.Context, itemId *int, referenceType *MovementReferenceType, limit *int) ([]*StockMovement, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Item").Where("business_id = ?", businessId)
	if itemId != nil {
		dbCtx = dbCtx.Where("item_id = ?", *itemId)
	}
	if referenceType != nil {
		dbCtx = dbCtx.Where("reference_type = ?", *referenceType)
	}
	if limit != nil && *limit > 0 {
		dbCtx = dbCtx.Limit(*limit)
	}

	var results []*StockMovement
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetLastStockMovement returns the newest movement for an item, nil when the
// item has never moved.
func GetLastStockMovement(ctx context.Context, itemId int) (*StockMovement, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var movement StockMovement
	err := db.WithContext(ctx).
		Where("business_id = ? AND item_id = ?", businessId, itemId).
		Order("id DESC").
		First(&movement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movement, nil
}

// ReplayStockMovements folds an item's ordered movement stream back into a
// quantity/value balance. Used by the rebuild command to cross-check the
// inventory row against the ledger.
func ReplayStockMovements(movements []*StockMovement) (qty decimal.Decimal, value decimal.Decimal) {
	for _, m := range movements {
		qty = qty.Add(m.Quantity)
		value = value.Add(m.TotalCost)
	}
	return qty, value
}
