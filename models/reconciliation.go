package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
)

// ReconciliationLine compares what a plan line actually consumed against
// what the actual output should have consumed.
type ReconciliationLine struct {
	ItemId           int             `json:"item_id"`
	ItemName         string          `json:"item_name"`
	IsUnplanned      bool            `json:"is_unplanned"`
	PlannedQty       decimal.Decimal `json:"planned_qty"`
	TotalIssued      decimal.Decimal `json:"total_issued"`
	TotalReturned    decimal.Decimal `json:"total_returned"`
	ActualUsed       decimal.Decimal `json:"actual_used"`
	TheoreticalUsage decimal.Decimal `json:"theoretical_usage"`
	Variance         decimal.Decimal `json:"variance"`
	VariancePercent  decimal.Decimal `json:"variance_percent"`
	Status           VarianceStatus  `json:"status"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	IssuedValue      decimal.Decimal `json:"issued_value"`
	UsedValue        decimal.Decimal `json:"used_value"`
	VarianceValue    decimal.Decimal `json:"variance_value"`
}

type ReconciliationSummary struct {
	ActualOutput       decimal.Decimal `json:"actual_output"`
	TotalIssuedValue   decimal.Decimal `json:"total_issued_value"`
	TotalUsedValue     decimal.Decimal `json:"total_used_value"`
	TotalVarianceValue decimal.Decimal `json:"total_variance_value"`
	EfficiencyPercent  decimal.Decimal `json:"efficiency_percent"`
}

type ReconciliationResult struct {
	OrderId     int                   `json:"order_id"`
	OrderNumber string                `json:"order_number"`
	Lines       []*ReconciliationLine `json:"lines"`
	Summary     ReconciliationSummary `json:"summary"`
}

// varianceTolerance is the OK band: |variance| within 1% of theoretical.
var varianceTolerance = decimal.NewFromFloat(0.01)

func classifyVariance(variance, theoreticalUsage decimal.Decimal) VarianceStatus {
	band := theoreticalUsage.Mul(varianceTolerance)
	if variance.Abs().LessThanOrEqual(band) {
		return VarianceStatusOK
	}
	if variance.IsPositive() {
		return VarianceStatusOver
	}
	return VarianceStatusUnder
}

// DeriveReconciliation is the pure core: plan lines, posted issuances,
// processed returns and the actual output in, variance lines out. Quantities
// are re-summed from the documents, not read off the plan's running
// counters, so the derivation is its own cross-check.
func DeriveReconciliation(
	planLines []ConsumptionPlanLine,
	issuances []MaterialIssuance,
	vendorReturns []VendorReturn,
	actualOutput decimal.Decimal,
	averageCosts map[int]decimal.Decimal,
) []*ReconciliationLine {

	issuedByItem := map[int]decimal.Decimal{}
	for _, issuance := range issuances {
		if issuance.IsCancelled != nil && *issuance.IsCancelled {
			continue
		}
		for _, line := range issuance.Lines {
			issuedByItem[line.ItemId] = issuedByItem[line.ItemId].Add(line.StockQty)
		}
	}

	returnedByItem := map[int]decimal.Decimal{}
	for _, vr := range vendorReturns {
		if vr.Status != VendorReturnStatusProcessed {
			continue
		}
		for _, line := range vr.Lines {
			if line.IsFinishedGoodReject {
				continue
			}
			returnedByItem[line.ItemId] = returnedByItem[line.ItemId].Add(line.StockQty)
		}
	}

	results := make([]*ReconciliationLine, 0, len(planLines))
	for _, planLine := range planLines {
		totalIssued := issuedByItem[planLine.ItemId]
		totalReturned := returnedByItem[planLine.ItemId]
		actualUsed := totalIssued.Sub(totalReturned)

		theoreticalUsage := ComputePlannedQty(planLine.RequiredQty, actualOutput, planLine.WastePercent)
		variance := actualUsed.Sub(theoreticalUsage)

		variancePercent := decimal.Zero
		if !theoreticalUsage.IsZero() {
			variancePercent = variance.DivRound(theoreticalUsage, 8).Mul(oneHundred)
		}

		averageCost := averageCosts[planLine.ItemId]
		itemName := ""
		if planLine.Item != nil {
			itemName = planLine.Item.Name
		}

		results = append(results, &ReconciliationLine{
			ItemId:           planLine.ItemId,
			ItemName:         itemName,
			IsUnplanned:      planLine.IsUnplanned,
			PlannedQty:       planLine.PlannedQty,
			TotalIssued:      totalIssued,
			TotalReturned:    totalReturned,
			ActualUsed:       actualUsed,
			TheoreticalUsage: theoreticalUsage,
			Variance:         variance,
			VariancePercent:  variancePercent,
			Status:           classifyVariance(variance, theoreticalUsage),
			AverageCost:      averageCost,
			IssuedValue:      totalIssued.Mul(averageCost),
			UsedValue:        actualUsed.Mul(averageCost),
			VarianceValue:    variance.Mul(averageCost),
		})
	}
	return results
}

// SummarizeReconciliation folds the lines into order totals. Efficiency is
// used value over issued value.
func SummarizeReconciliation(lines []*ReconciliationLine, actualOutput decimal.Decimal) ReconciliationSummary {
	summary := ReconciliationSummary{ActualOutput: actualOutput}
	for _, line := range lines {
		summary.TotalIssuedValue = summary.TotalIssuedValue.Add(line.IssuedValue)
		summary.TotalUsedValue = summary.TotalUsedValue.Add(line.UsedValue)
		summary.TotalVarianceValue = summary.TotalVarianceValue.Add(line.VarianceValue)
	}
	if !summary.TotalIssuedValue.IsZero() {
		summary.EfficiencyPercent = summary.TotalUsedValue.DivRound(summary.TotalIssuedValue, 8).Mul(oneHundred)
	}
	return summary
}

// Reconcile is a point-in-time, lock-free read: it derives material variance
// for an order from whatever has been persisted so far. Safe to call
// repeatedly, including after completion.
func Reconcile(ctx context.Context, orderId int) (*ReconciliationResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := utils.FetchModel[ProductionOrder](ctx, businessId, orderId,
		"ConsumptionPlan", "ConsumptionPlan.Item")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var issuances []MaterialIssuance
	err = db.WithContext(ctx).Preload("Lines").
		Where("business_id = ? AND order_id = ?", businessId, orderId).
		Find(&issuances).Error
	if err != nil {
		return nil, err
	}

	var vendorReturns []VendorReturn
	err = db.WithContext(ctx).Preload("Lines").
		Where("business_id = ? AND order_id = ?", businessId, orderId).
		Find(&vendorReturns).Error
	if err != nil {
		return nil, err
	}

	// valuation uses the item's current ledger average, not cost-at-issue
	itemIds := make([]int, 0, len(order.ConsumptionPlan))
	for _, planLine := range order.ConsumptionPlan {
		itemIds = append(itemIds, planLine.ItemId)
	}
	averageCosts := map[int]decimal.Decimal{}
	if len(itemIds) > 0 {
		var inventoryValues []InventoryValue
		err = db.WithContext(ctx).
			Where("business_id = ? AND item_id IN (?)", businessId, itemIds).
			Find(&inventoryValues).Error
		if err != nil {
			return nil, err
		}
		for _, iv := range inventoryValues {
			averageCosts[iv.ItemId] = iv.AverageCost
		}
	}

	lines := DeriveReconciliation(order.ConsumptionPlan, issuances, vendorReturns, order.ActualQty, averageCosts)
	return &ReconciliationResult{
		OrderId:     order.ID,
		OrderNumber: order.OrderNumber,
		Lines:       lines,
		Summary:     SummarizeReconciliation(lines, order.ActualQty),
	}, nil
}
