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

// ProductionOrder is an outsourced make order: one finished good, one vendor,
// a planned output and a consumption plan created at order time and bumped in
// place as issuances and returns post against it.
type ProductionOrder struct {
	ID              int                   `gorm:"primary_key" json:"id"`
	BusinessId      string                `gorm:"index;not null" json:"business_id"`
	OrderNumber     string                `gorm:"size:50;not null" json:"order_number"`
	SequenceNo      int64                 `gorm:"not null" json:"sequence_no"`
	VendorId        int                   `gorm:"not null" json:"vendor_id" binding:"required"`
	Vendor          *Vendor               `json:"vendor"`
	FinishedGoodId  int                   `gorm:"not null" json:"finished_good_id" binding:"required"`
	FinishedGood    *Item                 `json:"finished_good"`
	OutputMode      OutputMode            `gorm:"type:enum('Pieces','Sets');default:'Pieces'" json:"output_mode"`
	PlannedQty      decimal.Decimal       `gorm:"type:decimal(20,8);not null" json:"planned_qty"`
	ActualQty       decimal.Decimal       `gorm:"type:decimal(20,8);not null;default:0" json:"actual_qty"`
	Status          ProductionOrderStatus `gorm:"type:enum('Draft','Issued','InProduction','Partial','Completed','Cancelled');default:'Draft'" json:"status"`
	Notes           string                `gorm:"size:255" json:"notes"`
	CancelReason    string                `gorm:"size:255" json:"cancel_reason"`
	ConsumptionPlan []ConsumptionPlanLine `gorm:"foreignKey:OrderId" json:"consumption_plan"`
	CreatedBy       int                   `json:"created_by"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (po ProductionOrder) GetBusinessId() string {
	return po.BusinessId
}

// ConsumptionPlanLine is one per-material entry of an order's plan. All
// quantities are in the material's stock unit. Issued and returned totals
// are running counters, not derived on read.
type ConsumptionPlanLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	OrderId      int             `gorm:"not null;index" json:"order_id"`
	ItemId       int             `gorm:"not null" json:"item_id"`
	Item         *Item           `json:"item"`
	RequiredQty  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"required_qty"`
	UnitId       int             `gorm:"not null" json:"unit_id"`
	WastePercent decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"waste_percent"`
	PlannedQty   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"planned_qty"`
	IssuedQty    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"issued_qty"`
	ReturnedQty  decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"returned_qty"`
	IsUnplanned  bool            `gorm:"not null;default:false" json:"is_unplanned"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductionOrder struct {
	VendorId       int             `json:"vendor_id" binding:"required"`
	FinishedGoodId int             `json:"finished_good_id" binding:"required"`
	OutputMode     OutputMode      `json:"output_mode"`
	PlannedQty     decimal.Decimal `json:"planned_qty" binding:"required"`
	Notes          string          `json:"notes"`
}

func (input *NewProductionOrder) validate(ctx context.Context, businessId string) error {
	if !input.PlannedQty.IsPositive() {
		return newValidationError("planned qty must be positive")
	}
	if input.OutputMode != "" && !input.OutputMode.IsValid() {
		return newValidationError("invalid output mode")
	}
	if err := utils.ValidateResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Item](ctx, businessId, input.FinishedGoodId); err != nil {
		return err
	}
	return nil
}

// CreateProductionOrder plans materials for the requested output and creates
// the order with its consumption plan in one transaction. Any shortage
// rejects the whole order.
func CreateProductionOrder(ctx context.Context, input *NewProductionOrder) (*ProductionOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	requirements, err := PlanMaterials(ctx, input.FinishedGoodId, input.PlannedQty)
	if err != nil {
		return nil, err
	}
	if shortages := collectShortages(requirements); len(shortages) > 0 {
		return nil, &MaterialShortageError{Shortages: shortages}
	}

	outputMode := input.OutputMode
	if outputMode == "" {
		outputMode = OutputModePieces
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	planLines := make([]ConsumptionPlanLine, 0, len(requirements))
	for _, r := range requirements {
		planLines = append(planLines, ConsumptionPlanLine{
			BusinessId:   businessId,
			ItemId:       r.ItemId,
			RequiredQty:  r.RequiredQty,
			UnitId:       r.UnitId,
			WastePercent: r.WastePercent,
			PlannedQty:   r.PlannedQty,
		})
	}

	order := ProductionOrder{
		BusinessId:      businessId,
		VendorId:        input.VendorId,
		FinishedGoodId:  input.FinishedGoodId,
		OutputMode:      outputMode,
		PlannedQty:      input.PlannedQty,
		Status:          ProductionOrderStatusDraft,
		Notes:           input.Notes,
		ConsumptionPlan: planLines,
		CreatedBy:       userId,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderNumber, seqNo, err := NextDocumentNumber(tx, businessId, DocumentModuleProductionOrder)
		if err != nil {
			return err
		}
		order.OrderNumber = orderNumber
		order.SequenceNo = seqNo
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	go createHistory(businessId, userId, "ProductionOrder", order.ID, "created "+order.OrderNumber)
	return &order, nil
}

// fetchOrderForUpdate loads an order locked FOR UPDATE so concurrent
// issuances and receipts against the same order serialize.
func fetchOrderForUpdate(tx *gorm.DB, businessId string, orderId int) (*ProductionOrder, error) {
	var order ProductionOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, orderId).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ConfirmProductionOrder releases a draft order to the vendor, moving it to
// Issued. The first material issuance then moves it on to InProduction.
func ConfirmProductionOrder(ctx context.Context, orderId int) (*ProductionOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var order *ProductionOrder
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = fetchOrderForUpdate(tx, businessId, orderId)
		if err != nil {
			return err
		}
		if order.Status != ProductionOrderStatusDraft {
			return &InvalidOrderStateError{OrderId: orderId, Status: order.Status, Action: "confirm"}
		}
		order.Status = ProductionOrderStatusIssued
		return tx.Model(&order).Update("status", ProductionOrderStatusIssued).Error
	})
	if err != nil {
		return nil, err
	}

	go createHistory(businessId, userId, "ProductionOrder", orderId, "confirmed "+order.OrderNumber)
	return order, nil
}

// CancelProductionOrder cancels an order that has no finished-good receipts.
// Posted issuances stay posted; the materials may already be consumed at the
// vendor's site.
func CancelProductionOrder(ctx context.Context, orderId int, reason string) (*ProductionOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var order *ProductionOrder
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = fetchOrderForUpdate(tx, businessId, orderId)
		if err != nil {
			return err
		}

		switch order.Status {
		case ProductionOrderStatusCancelled, ProductionOrderStatusCompleted:
			return &InvalidOrderStateError{OrderId: orderId, Status: order.Status, Action: "cancel"}
		}

		var receiptCount int64
		err = tx.Model(&FinishedGoodReceipt{}).
			Where("business_id = ? AND order_id = ?", businessId, orderId).
			Count(&receiptCount).Error
		if err != nil {
			return err
		}
		if receiptCount > 0 {
			return ErrCannotCancelWithReceipts
		}

		order.Status = ProductionOrderStatusCancelled
		order.CancelReason = reason
		return tx.Model(&order).Updates(map[string]interface{}{
			"Status":       order.Status,
			"CancelReason": reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	go createHistory(businessId, userId, "ProductionOrder", orderId, "cancelled "+order.OrderNumber)
	return order, nil
}

func GetProductionOrder(ctx context.Context, id int) (*ProductionOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[ProductionOrder](ctx, businessId, id,
		"Vendor", "FinishedGood", "ConsumptionPlan", "ConsumptionPlan.Item")
}

func GetProductionOrders(ctx context.Context, status *ProductionOrderStatus, vendorId *int) ([]*ProductionOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Vendor").Preload("FinishedGood").
		Where("business_id = ?", businessId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if vendorId != nil {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}

	var results []*ProductionOrder
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
