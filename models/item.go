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

type Item struct {
	ID               int               `gorm:"primary_key" json:"id"`
	BusinessId       string            `gorm:"index;not null" json:"business_id"`
	Name             string            `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku              string            `gorm:"size:100" json:"sku"`
	ItemType         ItemType          `gorm:"type:enum('RM','AC','FG');not null" json:"item_type" binding:"required"`
	UnitId           int               `gorm:"not null" json:"unit_id" binding:"required"`
	Unit             Unit              `json:"unit"`
	PurchasePrice    decimal.Decimal   `gorm:"type:decimal(20,8);not null;default:0" json:"purchase_price"`
	IsActive         *bool             `gorm:"not null;default:true" json:"is_active"`
	ConsumptionRules []ConsumptionRule `json:"consumption_rules"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i Item) GetBusinessId() string {
	return i.BusinessId
}

// ConsumptionRule is one bill-of-material line of a finished good: how much
// of a material one unit of output consumes, plus the allowed waste.
type ConsumptionRule struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	ItemId       int             `gorm:"not null;index" json:"item_id"`
	MaterialId   int             `gorm:"not null" json:"material_id" binding:"required"`
	Material     *Item           `json:"material"`
	RequiredQty  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"required_qty" binding:"required"`
	UnitId       int             `gorm:"not null" json:"unit_id" binding:"required"`
	Unit         Unit            `json:"unit"`
	WastePercent decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"waste_percent"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Name             string               `json:"name" binding:"required"`
	Sku              string               `json:"sku"`
	ItemType         ItemType             `json:"item_type" binding:"required"`
	UnitId           int                  `json:"unit_id" binding:"required"`
	PurchasePrice    decimal.Decimal      `json:"purchase_price"`
	ConsumptionRules []NewConsumptionRule `json:"consumption_rules"`
}

type NewConsumptionRule struct {
	MaterialId   int             `json:"material_id" binding:"required"`
	RequiredQty  decimal.Decimal `json:"required_qty" binding:"required"`
	UnitId       int             `json:"unit_id" binding:"required"`
	WastePercent decimal.Decimal `json:"waste_percent"`
}

func (input *NewItem) validate(ctx context.Context, businessId string, id int) error {
	if !input.ItemType.IsValid() {
		return newValidationError("invalid item type")
	}
	if input.PurchasePrice.IsNegative() {
		return newValidationError("purchase price cannot be negative")
	}
	if err := utils.ValidateUnique[Item](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Unit](ctx, businessId, input.UnitId); err != nil {
		return err
	}

	if len(input.ConsumptionRules) > 0 && input.ItemType != ItemTypeFinishedGood {
		return newValidationError("consumption rules are only allowed on finished goods")
	}
	seen := map[int]bool{}
	for _, rule := range input.ConsumptionRules {
		if seen[rule.MaterialId] {
			return newValidationError("duplicate material in consumption rules")
		}
		seen[rule.MaterialId] = true
		if !rule.RequiredQty.IsPositive() {
			return newValidationError("required qty must be positive")
		}
		if rule.WastePercent.IsNegative() {
			return newValidationError("waste percent cannot be negative")
		}
		if rule.MaterialId == id {
			return newValidationError("an item cannot consume itself")
		}
		if err := utils.ValidateResourceId[Item](ctx, businessId, rule.MaterialId); err != nil {
			return err
		}
		if err := utils.ValidateResourceId[Unit](ctx, businessId, rule.UnitId); err != nil {
			return err
		}
	}
	return nil
}

func (input *NewItem) buildRules(businessId string) []ConsumptionRule {
	rules := make([]ConsumptionRule, 0, len(input.ConsumptionRules))
	for _, r := range input.ConsumptionRules {
		rules = append(rules, ConsumptionRule{
			BusinessId:   businessId,
			MaterialId:   r.MaterialId,
			RequiredQty:  r.RequiredQty,
			UnitId:       r.UnitId,
			WastePercent: r.WastePercent,
		})
	}
	return rules
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	item := Item{
		BusinessId:       businessId,
		Name:             input.Name,
		Sku:              input.Sku,
		ItemType:         input.ItemType,
		UnitId:           input.UnitId,
		PurchasePrice:    input.PurchasePrice,
		ConsumptionRules: input.buildRules(businessId),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateItem(ctx context.Context, id int, input *NewItem) (*Item, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	item, err := utils.FetchModel[Item](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// type and unit are frozen once the item appears on posted movements
	if item.ItemType != input.ItemType || item.UnitId != input.UnitId {
		count, err := utils.ResourceCountWhere[StockMovement](ctx, businessId, "item_id = ?", id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newValidationError("item type and unit cannot change after stock movements exist")
		}
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&item).Updates(map[string]interface{}{
			"Name":          input.Name,
			"Sku":           input.Sku,
			"ItemType":      input.ItemType,
			"UnitId":        input.UnitId,
			"PurchasePrice": input.PurchasePrice,
		}).Error; err != nil {
			return err
		}
		// replace-on-update: the rule set is owned by the item
		if err := tx.Where("item_id = ?", item.ID).Delete(&ConsumptionRule{}).Error; err != nil {
			return err
		}
		rules := input.buildRules(businessId)
		for idx := range rules {
			rules[idx].ItemId = item.ID
		}
		if len(rules) > 0 {
			if err := tx.Create(&rules).Error; err != nil {
				return err
			}
		}
		item.ConsumptionRules = rules
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Item](id); err != nil {
		return nil, err
	}
	return item, nil
}

func DeleteItem(ctx context.Context, id int) (*Item, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	result, err := utils.FetchModel[Item](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[StockMovement](ctx, businessId, "item_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("item has stock movements")
	}
	count, err = utils.ResourceCountWhere[ConsumptionRule](ctx, businessId, "material_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by consumption rule")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&ConsumptionRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&result).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Item](id); err != nil {
		return nil, err
	}
	return result, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {

	return GetResource[Item](ctx, id, "Unit", "ConsumptionRules", "ConsumptionRules.Material", "ConsumptionRules.Unit")
}

func GetItems(ctx context.Context, itemType *ItemType, name *string) ([]*Item, error) {

	db := config.GetDB()
	var results []*Item

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Unit")
	if itemType != nil {
		dbCtx = dbCtx.Where("item_type = ?", *itemType)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
