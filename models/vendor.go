package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
)

// Vendor is an outside workshop that takes materials in and sends finished
// goods back.
type Vendor struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BusinessId  string    `gorm:"index;not null" json:"business_id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Email       *string   `gorm:"size:100" json:"email"`
	Address     string    `gorm:"size:255" json:"address"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Vendor) GetBusinessId() string {
	return v.BusinessId
}

type NewVendor struct {
	Name        string  `json:"name" binding:"required"`
	ContactName string  `json:"contact_name"`
	Phone       string  `json:"phone"`
	Email       *string `json:"email"`
	Address     string  `json:"address"`
}

func (input *NewVendor) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Vendor](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Email != nil && len(*input.Email) > 0 && !utils.IsValidEmail(*input.Email) {
		return newValidationError("invalid email address")
	}
	return nil
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	vendor := Vendor{
		BusinessId:  businessId,
		Name:        input.Name,
		ContactName: input.ContactName,
		Phone:       input.Phone,
		Email:       input.Email,
		Address:     input.Address,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, id int, input *NewVendor) (*Vendor, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	vendor, err := utils.FetchModel[Vendor](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&vendor).Updates(map[string]interface{}{
		"Name":        input.Name,
		"ContactName": input.ContactName,
		"Phone":       input.Phone,
		"Email":       input.Email,
		"Address":     input.Address,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Vendor](id); err != nil {
		return nil, err
	}
	return vendor, nil
}

func DeleteVendor(ctx context.Context, id int) (*Vendor, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	result, err := utils.FetchModel[Vendor](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[ProductionOrder](ctx, businessId, "vendor_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by production order")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Vendor](id); err != nil {
		return nil, err
	}
	return result, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {

	return GetResource[Vendor](ctx, id)
}

func GetVendors(ctx context.Context, name *string) ([]*Vendor, error) {

	db := config.GetDB()
	var results []*Vendor

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
