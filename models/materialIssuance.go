package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaterialIssuance is one event of materials leaving stock onto a production
// order. Immutable once posted.
type MaterialIssuance struct {
	ID               int                    `gorm:"primary_key" json:"id"`
	BusinessId       string                 `gorm:"index;not null" json:"business_id"`
	IssuanceNumber   string                 `gorm:"size:50;not null" json:"issuance_number"`
	OrderId          int                    `gorm:"not null;index" json:"order_id"`
	Order            *ProductionOrder       `gorm:"foreignKey:OrderId" json:"order"`
	IssueType        IssueType              `gorm:"type:enum('Initial','Additional','Replacement');default:'Initial'" json:"issue_type"`
	IsPartial        *bool                  `gorm:"not null;default:false" json:"is_partial"`
	ParentIssuanceId *int                   `json:"parent_issuance_id"`
	Lines            []MaterialIssuanceLine `gorm:"foreignKey:IssuanceId" json:"lines"`
	TotalCost        decimal.Decimal        `gorm:"type:decimal(20,8);not null;default:0" json:"total_cost"`
	IsCancelled      *bool                  `gorm:"not null;default:false" json:"is_cancelled"`
	CreatedBy        int                    `json:"created_by"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

// MaterialIssuanceLine carries the average cost captured at issue time; the
// reconciliation valuation deliberately does not reuse it.
type MaterialIssuanceLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id"`
	IssuanceId  int             `gorm:"not null;index" json:"issuance_id"`
	ItemId      int             `gorm:"not null;index" json:"item_id"`
	Item        *Item           `json:"item"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"qty"`
	UnitId      int             `gorm:"not null" json:"unit_id"`
	StockQty    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"stock_qty"`
	CostAtIssue decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cost_at_issue"`
	LineCost    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"line_cost"`
	IsUnplanned bool            `gorm:"not null;default:false" json:"is_unplanned"`
}

// OrderId carries no binding tag: the route supplies it from the path.
type NewMaterialIssuance struct {
	OrderId          int                       `json:"order_id"`
	IssueType        IssueType                 `json:"issue_type"`
	IsPartial        bool                      `json:"is_partial"`
	ParentIssuanceId *int                      `json:"parent_issuance_id"`
	Lines            []NewMaterialIssuanceLine `json:"lines" binding:"required"`
}

type NewMaterialIssuanceLine struct {
	ItemId int             `json:"item_id" binding:"required"`
	Qty    decimal.Decimal `json:"qty" binding:"required"`
	UnitId int             `json:"unit_id" binding:"required"`
}

func (input *NewMaterialIssuance) validate(ctx context.Context, businessId string) error {
	if len(input.Lines) == 0 {
		return newValidationError("at least one line is required")
	}
	if input.IssueType != "" && !input.IssueType.IsValid() {
		return newValidationError("invalid issue type")
	}
	seen := map[int]bool{}
	itemIds := make([]int, 0, len(input.Lines))
	for _, line := range input.Lines {
		if seen[line.ItemId] {
			return newValidationError("duplicate item in issuance lines")
		}
		seen[line.ItemId] = true
		if !line.Qty.IsPositive() {
			return newValidationError("line qty must be positive")
		}
		itemIds = append(itemIds, line.ItemId)
		if err := utils.ValidateResourceId[Unit](ctx, businessId, line.UnitId); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourcesId[Item, int](ctx, businessId, itemIds); err != nil {
		return err
	}
	if input.ParentIssuanceId != nil {
		if err := utils.ValidateResourceId[MaterialIssuance](ctx, businessId, *input.ParentIssuanceId); err != nil {
			return err
		}
	}
	return nil
}

// IssueMaterials debits every line from stock as one all-or-nothing unit,
// captures each line's average cost at issue, and bumps the order's
// consumption plan. A shortage on any line rolls the whole issuance back.
func IssueMaterials(ctx context.Context, input *NewMaterialIssuance) (*MaterialIssuance, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	issueType := input.IssueType
	if issueType == "" {
		issueType = IssueTypeInitial
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	// convert every line into the item's stock unit before touching the ledger
	type preparedLine struct {
		input    NewMaterialIssuanceLine
		stockQty decimal.Decimal
	}
	prepared := make([]preparedLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		item, err := utils.FetchModel[Item](ctx, businessId, line.ItemId)
		if err != nil {
			return nil, err
		}
		stockQty, err := Convert(ctx, line.Qty, line.UnitId, item.UnitId)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, preparedLine{input: line, stockQty: stockQty})
	}

	// best-effort posting lock; the DB row locks below are the real guard
	if release, err := utils.AcquireBusinessLock(ctx, fmt.Sprintf("%s:%d", businessId, input.OrderId), "order-posting", 30*time.Second); err == nil {
		defer release()
	}

	var issuance MaterialIssuance
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := fetchOrderForUpdate(tx, businessId, input.OrderId)
		if err != nil {
			return err
		}
		if !order.Status.isIssuable() {
			return &InvalidOrderStateError{OrderId: order.ID, Status: order.Status, Action: "issue"}
		}

		// take all item locks up front, in item order, before any debit
		itemIds := make([]int, 0, len(prepared))
		for _, p := range prepared {
			itemIds = append(itemIds, p.input.ItemId)
		}
		sort.Ints(itemIds)
		if err := LockInventoryValues(tx, businessId, itemIds); err != nil {
			return err
		}

		issuanceNumber, _, err := NextDocumentNumber(tx, businessId, DocumentModuleMaterialIssuance)
		if err != nil {
			return err
		}

		issuance = MaterialIssuance{
			BusinessId:       businessId,
			IssuanceNumber:   issuanceNumber,
			OrderId:          order.ID,
			IssueType:        issueType,
			IsPartial:        &input.IsPartial,
			ParentIssuanceId: input.ParentIssuanceId,
			IsCancelled:      utils.NewFalse(),
			CreatedBy:        userId,
		}
		if err := tx.Create(&issuance).Error; err != nil {
			return err
		}

		totalCost := decimal.Zero
		lines := make([]MaterialIssuanceLine, 0, len(prepared))
		for _, p := range prepared {
			movement, err := DebitStock(tx, businessId, p.input.ItemId, p.stockQty, MovementRef{
				ReferenceType:  MovementReferenceTypeIssuance,
				ReferenceId:    issuance.ID,
				DocumentNumber: issuanceNumber,
				CreatedBy:      userId,
			})
			if err != nil {
				return err
			}

			unplanned, err := bumpPlanLineIssued(tx, businessId, order.ID, p.input.ItemId, p.stockQty)
			if err != nil {
				return err
			}

			lineCost := p.stockQty.Mul(movement.UnitCost)
			lines = append(lines, MaterialIssuanceLine{
				BusinessId:  businessId,
				IssuanceId:  issuance.ID,
				ItemId:      p.input.ItemId,
				Qty:         p.input.Qty,
				UnitId:      p.input.UnitId,
				StockQty:    p.stockQty,
				CostAtIssue: movement.UnitCost,
				LineCost:    lineCost,
				IsUnplanned: unplanned,
			})
			totalCost = totalCost.Add(lineCost)
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		if err := tx.Model(&issuance).Update("total_cost", totalCost).Error; err != nil {
			return err
		}
		issuance.Lines = lines
		issuance.TotalCost = totalCost

		// first issuance moves the order into production
		switch order.Status {
		case ProductionOrderStatusDraft, ProductionOrderStatusIssued:
			if err := tx.Model(&ProductionOrder{}).Where("id = ?", order.ID).
				Update("status", ProductionOrderStatusInProduction).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go createHistory(businessId, userId, "MaterialIssuance", issuance.ID, "issued "+issuance.IssuanceNumber)
	return &issuance, nil
}

// bumpPlanLineIssued adds qty to the matching plan line's running total. An
// item with no plan line is tracked as an unplanned line unless the strict
// flag rejects it outright.
func bumpPlanLineIssued(tx *gorm.DB, businessId string, orderId int, itemId int, qty decimal.Decimal) (bool, error) {
	var planLine ConsumptionPlanLine
	err := tx.Where("business_id = ? AND order_id = ? AND item_id = ?", businessId, orderId, itemId).
		First(&planLine).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
		if config.RejectUnplannedIssueLines() {
			return false, newValidationError("item is not on the order's consumption plan")
		}
		planLine = ConsumptionPlanLine{
			BusinessId:  businessId,
			OrderId:     orderId,
			ItemId:      itemId,
			IssuedQty:   qty,
			IsUnplanned: true,
		}
		if err := tx.Create(&planLine).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	err = tx.Model(&planLine).Update("issued_qty", planLine.IssuedQty.Add(qty)).Error
	if err != nil {
		return false, err
	}
	return planLine.IsUnplanned, nil
}

func GetMaterialIssuance(ctx context.Context, id int) (*MaterialIssuance, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[MaterialIssuance](ctx, businessId, id, "Lines", "Lines.Item")
}

func GetMaterialIssuances(ctx context.Context, orderId *int) ([]*MaterialIssuance, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Lines").Where("business_id = ?", businessId)
	if orderId != nil {
		dbCtx = dbCtx.Where("order_id = ?", *orderId)
	}

	var results []*MaterialIssuance
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
