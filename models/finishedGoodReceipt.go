package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinishedGoodReceipt is one delivery of finished goods back from the vendor,
// valued at receipt time from the materials issued so far. Immutable.
type FinishedGoodReceipt struct {
	ID                int              `gorm:"primary_key" json:"id"`
	BusinessId        string           `gorm:"index;not null" json:"business_id"`
	ReceiptNumber     string           `gorm:"size:50;not null" json:"receipt_number"`
	OrderId           int              `gorm:"not null;index" json:"order_id"`
	Order             *ProductionOrder `gorm:"foreignKey:OrderId" json:"order"`
	QtyReceived       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"qty_received"`
	QtyRejected       decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"qty_rejected"`
	QtyAccepted       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"qty_accepted"`
	QcPassed          *bool            `gorm:"not null;default:true" json:"qc_passed"`
	QcNotes           string           `gorm:"size:255" json:"qc_notes"`
	TotalMaterialCost decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"total_material_cost"`
	CostPerUnit       decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"cost_per_unit"`
	TotalValue        decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"total_value"`
	CreatedBy         int              `json:"created_by"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// OrderId carries no binding tag: the route supplies it from the path.
type NewFinishedGoodReceipt struct {
	OrderId     int             `json:"order_id"`
	QtyReceived decimal.Decimal `json:"qty_received" binding:"required"`
	QtyRejected decimal.Decimal `json:"qty_rejected"`
	QcNotes     string          `json:"qc_notes"`
}

func (input *NewFinishedGoodReceipt) validate() error {
	if !input.QtyReceived.IsPositive() {
		return newValidationError("received qty must be positive")
	}
	if input.QtyRejected.IsNegative() {
		return newValidationError("rejected qty cannot be negative")
	}
	if input.QtyRejected.GreaterThan(input.QtyReceived) {
		return newValidationError("rejected qty cannot exceed received qty")
	}
	return nil
}

// orderMaterialCost recomputes the order's material cost to date from its
// non-cancelled issuances.
func orderMaterialCost(tx *gorm.DB, businessId string, orderId int) (decimal.Decimal, error) {
	var issuances []MaterialIssuance
	err := tx.Where("business_id = ? AND order_id = ? AND is_cancelled = false", businessId, orderId).
		Find(&issuances).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, issuance := range issuances {
		total = total.Add(issuance.TotalCost)
	}
	return total, nil
}

// ReceiveFinishedGoods records a delivery, values the accepted quantity from
// the materials issued to date, and credits the finished good back into
// stock at that unit cost. Rejected quantity carries no value.
func ReceiveFinishedGoods(ctx context.Context, input *NewFinishedGoodReceipt) (*FinishedGoodReceipt, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	// best-effort posting lock; the order row lock is the real guard
	if release, err := utils.AcquireBusinessLock(ctx, fmt.Sprintf("%s:%d", businessId, input.OrderId), "order-posting", 30*time.Second); err == nil {
		defer release()
	}

	var receipt FinishedGoodReceipt
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := fetchOrderForUpdate(tx, businessId, input.OrderId)
		if err != nil {
			return err
		}
		if !order.Status.isReceivable() {
			return &InvalidOrderStateError{OrderId: order.ID, Status: order.Status, Action: "receive"}
		}

		qtyAccepted := input.QtyReceived.Sub(input.QtyRejected)

		totalMaterialCost, err := orderMaterialCost(tx, businessId, order.ID)
		if err != nil {
			return err
		}
		costPerUnit := decimal.Zero
		if qtyAccepted.IsPositive() {
			costPerUnit = totalMaterialCost.DivRound(qtyAccepted, 8)
		}
		totalValue := costPerUnit.Mul(qtyAccepted)

		receiptNumber, _, err := NextDocumentNumber(tx, businessId, DocumentModuleFinishedGoodReceipt)
		if err != nil {
			return err
		}

		qcPassed := input.QtyRejected.IsZero()
		receipt = FinishedGoodReceipt{
			BusinessId:        businessId,
			ReceiptNumber:     receiptNumber,
			OrderId:           order.ID,
			QtyReceived:       input.QtyReceived,
			QtyRejected:       input.QtyRejected,
			QtyAccepted:       qtyAccepted,
			QcPassed:          &qcPassed,
			QcNotes:           input.QcNotes,
			TotalMaterialCost: totalMaterialCost,
			CostPerUnit:       costPerUnit,
			TotalValue:        totalValue,
			CreatedBy:         userId,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}

		// accepted output carries the production cost into finished-good stock
		if qtyAccepted.IsPositive() {
			_, err = CreditStock(tx, businessId, order.FinishedGoodId, qtyAccepted, costPerUnit, MovementRef{
				ReferenceType:  MovementReferenceTypeFinishedGoods,
				ReferenceId:    receipt.ID,
				DocumentNumber: receiptNumber,
				CreatedBy:      userId,
			})
			if err != nil {
				return err
			}
		}

		newActualQty := order.ActualQty.Add(qtyAccepted)
		newStatus := ProductionOrderStatusPartial
		if newActualQty.GreaterThanOrEqual(order.PlannedQty) {
			newStatus = ProductionOrderStatusCompleted
		}
		return tx.Model(&ProductionOrder{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"ActualQty": newActualQty,
				"Status":    newStatus,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	go createHistory(businessId, userId, "FinishedGoodReceipt", receipt.ID, "received "+receipt.ReceiptNumber)
	return &receipt, nil
}

func GetFinishedGoodReceipt(ctx context.Context, id int) (*FinishedGoodReceipt, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[FinishedGoodReceipt](ctx, businessId, id)
}

func GetFinishedGoodReceipts(ctx context.Context, orderId *int) ([]*FinishedGoodReceipt, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if orderId != nil {
		dbCtx = dbCtx.Where("order_id = ?", *orderId)
	}

	var results []*FinishedGoodReceipt
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
