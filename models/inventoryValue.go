package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryValue is the one row per item the ledger mutates: quantity on
// hand, weighted-average unit cost and total value. total value stays equal
// to quantity x average cost; quantity never goes negative.
type InventoryValue struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"not null;uniqueIndex:idx_inventory_item,priority:1" json:"business_id"`
	ItemId      int             `gorm:"not null;uniqueIndex:idx_inventory_item,priority:2" json:"item_id"`
	Item        *Item           `json:"item"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"average_cost"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_value"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BlendAverageCost folds a credit of qty at unitCost into an existing
// balance. A credit onto an empty balance takes the incoming cost as-is.
func BlendAverageCost(oldQty, oldAvgCost, qty, unitCost decimal.Decimal) decimal.Decimal {
	if oldQty.IsZero() {
		return unitCost
	}
	newQty := oldQty.Add(qty)
	if newQty.IsZero() {
		return decimal.Zero
	}
	oldValue := oldQty.Mul(oldAvgCost)
	addedValue := qty.Mul(unitCost)
	return oldValue.Add(addedValue).DivRound(newQty, 8)
}

// firstOrCreateInventoryValue returns the item's row locked FOR UPDATE,
// creating a zero row on first touch. Concurrent ledger operations on the
// same item serialize on this lock; different items proceed in parallel.
func firstOrCreateInventoryValue(tx *gorm.DB, businessId string, itemId int) (*InventoryValue, error) {
	inventoryValue := InventoryValue{
		BusinessId: businessId,
		ItemId:     itemId,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND item_id = ?", businessId, itemId).
		FirstOrCreate(&inventoryValue)
	if result.Error != nil {
		return nil, result.Error
	}
	return &inventoryValue, nil
}

// LockInventoryValues takes the FOR UPDATE locks for a multi-line operation
// up front, in ascending item order so concurrent issuances cannot deadlock.
func LockInventoryValues(tx *gorm.DB, businessId string, itemIds []int) error {
	var rows []InventoryValue
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND item_id IN (?)", businessId, itemIds).
		Order("item_id").
		Find(&rows).Error
}

// CreditStock increases an item's balance at the given unit cost, blending it
// into the weighted average, and appends the IN movement with the resulting
// balances. Runs inside the caller's transaction.
func CreditStock(tx *gorm.DB, businessId string, itemId int, qty decimal.Decimal, unitCost decimal.Decimal, ref MovementRef) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, newValidationError("credit quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, newValidationError("unit cost cannot be negative")
	}

	inventoryValue, err := firstOrCreateInventoryValue(tx, businessId, itemId)
	if err != nil {
		return nil, err
	}

	newAvgCost := BlendAverageCost(inventoryValue.Quantity, inventoryValue.AverageCost, qty, unitCost)
	newQty := inventoryValue.Quantity.Add(qty)
	newValue := newQty.Mul(newAvgCost)

	if err := tx.Model(&inventoryValue).Updates(map[string]interface{}{
		"Quantity":    newQty,
		"AverageCost": newAvgCost,
		"TotalValue":  newValue,
	}).Error; err != nil {
		return nil, err
	}

	movement := StockMovement{
		BusinessId:     businessId,
		ItemId:         itemId,
		Direction:      MovementDirectionIn,
		Quantity:       qty,
		UnitCost:       unitCost,
		TotalCost:      qty.Mul(unitCost),
		BalanceQty:     newQty,
		BalanceValue:   newValue,
		ReferenceType:  ref.ReferenceType,
		ReferenceId:    ref.ReferenceId,
		DocumentNumber: ref.DocumentNumber,
		Note:           ref.Note,
		CreatedBy:      ref.CreatedBy,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

// DebitStock decreases an item's balance at the current average cost. The
// average never moves on a debit. Fails without side effect when quantity on
// hand cannot cover the debit.
func DebitStock(tx *gorm.DB, businessId string, itemId int, qty decimal.Decimal, ref MovementRef) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, newValidationError("debit quantity must be positive")
	}

	inventoryValue, err := firstOrCreateInventoryValue(tx, businessId, itemId)
	if err != nil {
		return nil, err
	}

	if inventoryValue.Quantity.LessThan(qty) {
		itemName := ""
		var item Item
		if err := tx.Select("name").Where("business_id = ? AND id = ?", businessId, itemId).First(&item).Error; err == nil {
			itemName = item.Name
		}
		return nil, &InsufficientStockError{
			ItemId:    itemId,
			ItemName:  itemName,
			Requested: qty,
			Available: inventoryValue.Quantity,
		}
	}

	avgCost := inventoryValue.AverageCost
	newQty := inventoryValue.Quantity.Sub(qty)
	newValue := newQty.Mul(avgCost)

	if err := tx.Model(&inventoryValue).Updates(map[string]interface{}{
		"Quantity":    newQty,
		"AverageCost": avgCost,
		"TotalValue":  newValue,
	}).Error; err != nil {
		return nil, err
	}

	movement := StockMovement{
		BusinessId:     businessId,
		ItemId:         itemId,
		Direction:      MovementDirectionOut,
		Quantity:       qty.Neg(),
		UnitCost:       avgCost,
		TotalCost:      qty.Mul(avgCost).Neg(),
		BalanceQty:     newQty,
		BalanceValue:   newValue,
		ReferenceType:  ref.ReferenceType,
		ReferenceId:    ref.ReferenceId,
		DocumentNumber: ref.DocumentNumber,
		Note:           ref.Note,
		CreatedBy:      ref.CreatedBy,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

// AdjustStock posts a manual correction through the same credit/debit paths,
// numbered like any other document.
func AdjustStock(ctx context.Context, itemId int, qty decimal.Decimal, unitCost decimal.Decimal, direction MovementDirection, note string) (*StockMovement, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Item](ctx, businessId, itemId); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var movement *StockMovement
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		documentNumber, _, err := NextDocumentNumber(tx, businessId, DocumentModuleAdjustment)
		if err != nil {
			return err
		}
		ref := MovementRef{
			ReferenceType:  MovementReferenceTypeAdjustment,
			DocumentNumber: documentNumber,
			Note:           note,
			CreatedBy:      userId,
		}
		switch direction {
		case MovementDirectionIn:
			movement, err = CreditStock(tx, businessId, itemId, qty, unitCost, ref)
		case MovementDirectionOut:
			movement, err = DebitStock(tx, businessId, itemId, qty, ref)
		default:
			return newValidationError("invalid movement direction")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func GetInventoryValue(ctx context.Context, itemId int) (*InventoryValue, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var inventoryValue InventoryValue
	err := db.WithContext(ctx).Preload("Item").
		Where("business_id = ? AND item_id = ?", businessId, itemId).
		First(&inventoryValue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// an untouched item has a zero balance, not a missing one
			return &InventoryValue{BusinessId: businessId, ItemId: itemId}, nil
		}
		return nil, err
	}
	return &inventoryValue, nil
}

func GetInventoryValues(ctx context.Context) ([]*InventoryValue, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*InventoryValue
	err := db.WithContext(ctx).Preload("Item").
		Where("business_id = ?", businessId).
		Order("item_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
