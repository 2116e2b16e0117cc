package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
)

type UnitConversion struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	FromUnitId int             `gorm:"not null;index:idx_conversion_pair" json:"from_unit_id" binding:"required"`
	FromUnit   Unit            `json:"from_unit"`
	ToUnitId   int             `gorm:"not null;index:idx_conversion_pair" json:"to_unit_id" binding:"required"`
	ToUnit     Unit            `json:"to_unit"`
	Factor     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"factor" binding:"required"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (uc UnitConversion) GetBusinessId() string {
	return uc.BusinessId
}

type NewUnitConversion struct {
	FromUnitId int             `json:"from_unit_id" binding:"required"`
	ToUnitId   int             `json:"to_unit_id" binding:"required"`
	Factor     decimal.Decimal `json:"factor" binding:"required"`
}

func (input *NewUnitConversion) validate(ctx context.Context, businessId string, id int) error {
	if input.FromUnitId == input.ToUnitId {
		return newValidationError("from unit and to unit must differ")
	}
	if !input.Factor.IsPositive() {
		return newValidationError("conversion factor must be positive")
	}
	if err := utils.ValidateResourceId[Unit](ctx, businessId, input.FromUnitId); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Unit](ctx, businessId, input.ToUnitId); err != nil {
		return err
	}

	// one factor per ordered pair; the inverse direction is derived
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&UnitConversion{}).
		Where("business_id = ? AND id != ?", businessId, id).
		Where("(from_unit_id = ? AND to_unit_id = ?) OR (from_unit_id = ? AND to_unit_id = ?)",
			input.FromUnitId, input.ToUnitId, input.ToUnitId, input.FromUnitId).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return newValidationError("conversion for this unit pair already exists")
	}
	return nil
}

func CreateUnitConversion(ctx context.Context, input *NewUnitConversion) (*UnitConversion, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	conversion := UnitConversion{
		BusinessId: businessId,
		FromUnitId: input.FromUnitId,
		ToUnitId:   input.ToUnitId,
		Factor:     input.Factor,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&conversion).Error
	if err != nil {
		return nil, err
	}
	return &conversion, nil
}

func UpdateUnitConversion(ctx context.Context, id int, input *NewUnitConversion) (*UnitConversion, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	conversion, err := utils.FetchModel[UnitConversion](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&conversion).Updates(map[string]interface{}{
		"FromUnitId": input.FromUnitId,
		"ToUnitId":   input.ToUnitId,
		"Factor":     input.Factor,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[UnitConversion](id); err != nil {
		return nil, err
	}
	return conversion, nil
}

func DeleteUnitConversion(ctx context.Context, id int) (*UnitConversion, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	result, err := utils.FetchModel[UnitConversion](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[UnitConversion](id); err != nil {
		return nil, err
	}
	return result, nil
}

func GetUnitConversion(ctx context.Context, id int) (*UnitConversion, error) {

	return GetResource[UnitConversion](ctx, id, "FromUnit", "ToUnit")
}

func GetUnitConversions(ctx context.Context) ([]*UnitConversion, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[UnitConversion](ctx, businessId, "FromUnit", "ToUnit")
}

// ConvertQuantity applies a known factor pair to a quantity. Same-unit
// conversion is the identity. A stored factor fromUnit→toUnit multiplies;
// only the inverse stored factor divides.
func ConvertQuantity(qty decimal.Decimal, fromUnitId int, toUnitId int, conversions []*UnitConversion) (decimal.Decimal, error) {
	if fromUnitId == toUnitId {
		return qty, nil
	}
	for _, c := range conversions {
		if c.FromUnitId == fromUnitId && c.ToUnitId == toUnitId {
			return qty.Mul(c.Factor), nil
		}
	}
	for _, c := range conversions {
		if c.FromUnitId == toUnitId && c.ToUnitId == fromUnitId {
			if c.Factor.IsZero() {
				break
			}
			return qty.DivRound(c.Factor, 8), nil
		}
	}
	return decimal.Zero, &NoConversionPathError{FromUnitId: fromUnitId, ToUnitId: toUnitId}
}

// Convert resolves the conversion table from the database and applies it.
func Convert(ctx context.Context, qty decimal.Decimal, fromUnitId int, toUnitId int) (decimal.Decimal, error) {
	if fromUnitId == toUnitId {
		return qty, nil
	}

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}

	db := config.GetDB()
	var conversions []*UnitConversion
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("(from_unit_id = ? AND to_unit_id = ?) OR (from_unit_id = ? AND to_unit_id = ?)",
			fromUnitId, toUnitId, toUnitId, fromUnitId).
		Find(&conversions).Error
	if err != nil {
		return decimal.Zero, err
	}
	return ConvertQuantity(qty, fromUnitId, toUnitId, conversions)
}
