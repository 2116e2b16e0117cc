package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
)

type Unit struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"index;not null" json:"business_id"`
	Name         string    `gorm:"size:20;not null" json:"name" binding:"required"`
	Abbreviation string    `gorm:"size:7;not null" json:"abbreviation" binding:"required"`
	Precision    Precision `gorm:"type:enum('0','1','2','3','4');default:'0';size:1;not null" json:"precision" binding:"required"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u Unit) GetBusinessId() string {
	return u.BusinessId
}

type NewUnit struct {
	Name         string    `json:"name" binding:"required"`
	Abbreviation string    `json:"abbreviation" binding:"required"`
	Precision    Precision `json:"precision"`
}

func (input *NewUnit) validate(ctx context.Context, businessId string, id int) error {
	if !input.Precision.IsValid() {
		return newValidationError("invalid precision")
	}
	if err := utils.ValidateUnique[Unit](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Unit](ctx, businessId, "abbreviation", input.Abbreviation, id); err != nil {
		return err
	}

	return nil
}

func CreateUnit(ctx context.Context, input *NewUnit) (*Unit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	unit := Unit{
		BusinessId:   businessId,
		Name:         input.Name,
		Abbreviation: input.Abbreviation,
		Precision:    input.Precision,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&unit).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Unit](businessId); err != nil {
		return nil, err
	}
	return &unit, nil
}

func UpdateUnit(ctx context.Context, id int, input *NewUnit) (*Unit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	unit, err := utils.FetchModel[Unit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&unit).Updates(map[string]interface{}{
		"Name":         input.Name,
		"Abbreviation": input.Abbreviation,
		"Precision":    input.Precision,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Unit](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Unit](businessId); err != nil {
		return nil, err
	}
	return unit, nil
}

func DeleteUnit(ctx context.Context, id int) (*Unit, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	result, err := utils.FetchModel[Unit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// don't delete if the unit is referenced by an item or a conversion
	count, err := utils.ResourceCountWhere[Item](ctx, businessId, "unit_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by item")
	}
	count, err = utils.ResourceCountWhere[UnitConversion](ctx, businessId, "from_unit_id = ? OR to_unit_id = ?", id, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by unit conversion")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Unit](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Unit](businessId); err != nil {
		return nil, err
	}
	return result, nil
}

func GetUnit(ctx context.Context, id int) (*Unit, error) {

	return GetResource[Unit](ctx, id)
}

func GetUnits(ctx context.Context, name *string) ([]*Unit, error) {

	db := config.GetDB()
	var results []*Unit

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// the unfiltered list is cached; filtered lookups go to the db
	if name == nil || len(*name) == 0 {
		cached, err := utils.RetrieveRedisList[Unit](businessId)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	if name == nil || len(*name) == 0 {
		if err := utils.StoreRedisList[Unit](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}
