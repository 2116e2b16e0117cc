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

// VendorReturn records goods coming back from the vendor. Material lines
// re-enter stock when the return is processed; finished-good reject lines are
// a paper trail only and never touch the ledger.
type VendorReturn struct {
	ID           int                `gorm:"primary_key" json:"id"`
	BusinessId   string             `gorm:"index;not null" json:"business_id"`
	ReturnNumber string             `gorm:"size:50;not null" json:"return_number"`
	OrderId      int                `gorm:"not null;index" json:"order_id"`
	Order        *ProductionOrder   `gorm:"foreignKey:OrderId" json:"order"`
	Status       VendorReturnStatus `gorm:"type:enum('Pending','Processed','Voided');default:'Pending'" json:"status"`
	Reason       string             `gorm:"size:255" json:"reason"`
	Lines        []VendorReturnLine `gorm:"foreignKey:ReturnId" json:"lines"`
	ProcessedAt  *time.Time         `json:"processed_at"`
	CreatedBy    int                `json:"created_by"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type VendorReturnLine struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	BusinessId           string          `gorm:"index;not null" json:"business_id"`
	ReturnId             int             `gorm:"not null;index" json:"return_id"`
	ItemId               int             `gorm:"not null" json:"item_id"`
	Item                 *Item           `json:"item"`
	Qty                  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"qty"`
	UnitId               int             `gorm:"not null" json:"unit_id"`
	StockQty             decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"stock_qty"`
	IsFinishedGoodReject bool            `gorm:"not null;default:false" json:"is_finished_good_reject"`
}

type NewVendorReturn struct {
	OrderId int                   `json:"order_id" binding:"required"`
	Reason  string                `json:"reason"`
	Lines   []NewVendorReturnLine `json:"lines" binding:"required"`
}

type NewVendorReturnLine struct {
	ItemId               int             `json:"item_id" binding:"required"`
	Qty                  decimal.Decimal `json:"qty" binding:"required"`
	UnitId               int             `json:"unit_id" binding:"required"`
	IsFinishedGoodReject bool            `json:"is_finished_good_reject"`
}

func (input *NewVendorReturn) validate(ctx context.Context, businessId string) error {
	if len(input.Lines) == 0 {
		return newValidationError("at least one line is required")
	}
	if err := utils.ValidateResourceId[ProductionOrder](ctx, businessId, input.OrderId); err != nil {
		return err
	}
	for _, line := range input.Lines {
		if !line.Qty.IsPositive() {
			return newValidationError("line qty must be positive")
		}
		if err := utils.ValidateResourceId[Item](ctx, businessId, line.ItemId); err != nil {
			return err
		}
		if err := utils.ValidateResourceId[Unit](ctx, businessId, line.UnitId); err != nil {
			return err
		}
	}
	return nil
}

// CreateVendorReturn records the return as Pending; nothing hits the ledger
// until it is processed.
func CreateVendorReturn(ctx context.Context, input *NewVendorReturn) (*VendorReturn, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	lines := make([]VendorReturnLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		item, err := utils.FetchModel[Item](ctx, businessId, line.ItemId)
		if err != nil {
			return nil, err
		}
		stockQty, err := Convert(ctx, line.Qty, line.UnitId, item.UnitId)
		if err != nil {
			return nil, err
		}
		lines = append(lines, VendorReturnLine{
			BusinessId:           businessId,
			ItemId:               line.ItemId,
			Qty:                  line.Qty,
			UnitId:               line.UnitId,
			StockQty:             stockQty,
			IsFinishedGoodReject: line.IsFinishedGoodReject,
		})
	}

	vendorReturn := VendorReturn{
		BusinessId: businessId,
		OrderId:    input.OrderId,
		Status:     VendorReturnStatusPending,
		Reason:     input.Reason,
		Lines:      lines,
		CreatedBy:  userId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		returnNumber, _, err := NextDocumentNumber(tx, businessId, DocumentModuleVendorReturn)
		if err != nil {
			return err
		}
		vendorReturn.ReturnNumber = returnNumber
		return tx.Create(&vendorReturn).Error
	})
	if err != nil {
		return nil, err
	}
	return &vendorReturn, nil
}

// ProcessVendorReturn credits each material line back into stock at the
// item's current average cost and bumps the plan's returned totals. Reject
// lines stay off the ledger.
func ProcessVendorReturn(ctx context.Context, id int) (*VendorReturn, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var vendorReturn *VendorReturn
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vr VendorReturn
		err := tx.Preload("Lines").
			Where("business_id = ? AND id = ?", businessId, id).
			First(&vr).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if vr.Status != VendorReturnStatusPending {
			return newValidationError("vendor return is already " + string(vr.Status))
		}

		if _, err := fetchOrderForUpdate(tx, businessId, vr.OrderId); err != nil {
			return err
		}

		for _, line := range vr.Lines {
			if line.IsFinishedGoodReject {
				continue
			}

			// crediting at the current average keeps the average unchanged
			inventoryValue, err := firstOrCreateInventoryValue(tx, businessId, line.ItemId)
			if err != nil {
				return err
			}
			_, err = CreditStock(tx, businessId, line.ItemId, line.StockQty, inventoryValue.AverageCost, MovementRef{
				ReferenceType:  MovementReferenceTypeVendorReturn,
				ReferenceId:    vr.ID,
				DocumentNumber: vr.ReturnNumber,
				CreatedBy:      userId,
			})
			if err != nil {
				return err
			}

			if err := bumpPlanLineReturned(tx, businessId, vr.OrderId, line.ItemId, line.StockQty); err != nil {
				return err
			}
		}

		now := time.Now()
		vr.Status = VendorReturnStatusProcessed
		vr.ProcessedAt = &now
		vendorReturn = &vr
		return tx.Model(&vr).Updates(map[string]interface{}{
			"Status":      VendorReturnStatusProcessed,
			"ProcessedAt": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	go createHistory(businessId, userId, "VendorReturn", id, "processed "+vendorReturn.ReturnNumber)
	return vendorReturn, nil
}

// VoidVendorReturn drops a return that will never be processed.
func VoidVendorReturn(ctx context.Context, id int) (*VendorReturn, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	vendorReturn, err := utils.FetchModel[VendorReturn](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if vendorReturn.Status != VendorReturnStatusPending {
		return nil, newValidationError("only pending vendor returns can be voided")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&vendorReturn).Update("Status", VendorReturnStatusVoided).Error
	if err != nil {
		return nil, err
	}
	return vendorReturn, nil
}

func bumpPlanLineReturned(tx *gorm.DB, businessId string, orderId int, itemId int, qty decimal.Decimal) error {
	var planLine ConsumptionPlanLine
	err := tx.Where("business_id = ? AND order_id = ? AND item_id = ?", businessId, orderId, itemId).
		First(&planLine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// returning something never issued against the plan; leave it untracked
			return nil
		}
		return err
	}
	return tx.Model(&planLine).Update("returned_qty", planLine.ReturnedQty.Add(qty)).Error
}

func GetVendorReturn(ctx context.Context, id int) (*VendorReturn, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[VendorReturn](ctx, businessId, id, "Lines", "Lines.Item")
}

func GetVendorReturns(ctx context.Context, orderId *int) ([]*VendorReturn, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Lines").Where("business_id = ?", businessId)
	if orderId != nil {
		dbCtx = dbCtx.Where("order_id = ?", *orderId)
	}

	var results []*VendorReturn
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
