package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaterialRequirement is one planner line: what one consumption rule demands
// for the planned output, against what the ledger currently holds. All
// quantities are expressed in the material's stock unit so they compare
// directly against ledger balances.
type MaterialRequirement struct {
	ItemId         int             `json:"item_id"`
	ItemName       string          `json:"item_name"`
	UnitId         int             `json:"unit_id"`
	RequiredQty    decimal.Decimal `json:"required_qty"`
	WastePercent   decimal.Decimal `json:"waste_percent"`
	PlannedQty     decimal.Decimal `json:"planned_qty"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	Shortage       decimal.Decimal `json:"shortage"`
}

var oneHundred = decimal.NewFromInt(100)

// ComputePlannedQty grosses the per-unit requirement up by the waste
// allowance: requiredQty x output x (1 + waste/100).
func ComputePlannedQty(requiredQtyPerUnit, output, wastePercent decimal.Decimal) decimal.Decimal {
	wasteFactor := decimal.NewFromInt(1).Add(wastePercent.Div(oneHundred))
	return requiredQtyPerUnit.Mul(output).Mul(wasteFactor)
}

// PlanMaterials expands a finished good's consumption rules for a planned
// output and reports per-material availability. A positive shortage on any
// line is the caller's signal to reject the order.
func PlanMaterials(ctx context.Context, finishedGoodId int, plannedOutput decimal.Decimal) ([]*MaterialRequirement, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !plannedOutput.IsPositive() {
		return nil, newValidationError("planned output must be positive")
	}

	finishedGood, err := utils.FetchModel[Item](ctx, businessId, finishedGoodId, "ConsumptionRules", "ConsumptionRules.Material")
	if err != nil {
		return nil, err
	}
	if finishedGood.ItemType != ItemTypeFinishedGood {
		return nil, newValidationError("item is not a finished good")
	}

	db := config.GetDB()
	requirements := make([]*MaterialRequirement, 0, len(finishedGood.ConsumptionRules))
	for _, rule := range finishedGood.ConsumptionRules {
		material := rule.Material
		if material == nil {
			material, err = utils.FetchModel[Item](ctx, businessId, rule.MaterialId)
			if err != nil {
				return nil, err
			}
		}

		// a rule may be stated in any unit; normalize to the stock unit
		requiredQty := rule.RequiredQty
		if rule.UnitId != material.UnitId {
			requiredQty, err = Convert(ctx, rule.RequiredQty, rule.UnitId, material.UnitId)
			if err != nil {
				return nil, err
			}
		}
		plannedQty := ComputePlannedQty(requiredQty, plannedOutput, rule.WastePercent)

		var inventoryValue InventoryValue
		available := decimal.Zero
		err := db.WithContext(ctx).
			Where("business_id = ? AND item_id = ?", businessId, rule.MaterialId).
			First(&inventoryValue).Error
		if err == nil {
			available = inventoryValue.Quantity
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		shortage := plannedQty.Sub(available)
		if shortage.IsNegative() {
			shortage = decimal.Zero
		}

		requirements = append(requirements, &MaterialRequirement{
			ItemId:         rule.MaterialId,
			ItemName:       material.Name,
			UnitId:         material.UnitId,
			RequiredQty:    requiredQty,
			WastePercent:   rule.WastePercent,
			PlannedQty:     plannedQty,
			AvailableStock: available,
			Shortage:       shortage,
		})
	}
	return requirements, nil
}

// collectShortages filters planner lines down to the short ones.
func collectShortages(requirements []*MaterialRequirement) []MaterialRequirement {
	var shortages []MaterialRequirement
	for _, r := range requirements {
		if r.Shortage.IsPositive() {
			shortages = append(shortages, *r)
		}
	}
	return shortages
}
