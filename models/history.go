package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
)

// History is the audit trail of sensitive actions. Writing it is
// fire-and-forget; business operations never fail on a history miss.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	ReferenceType string    `gorm:"size:100;not null" json:"reference_type"`
	ReferenceId   int       `gorm:"index" json:"reference_id"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	UserId        int       `gorm:"index" json:"user_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(businessId string, userId int, referenceType string, referenceId int, description string) {
	history := History{
		BusinessId:    businessId,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Description:   description,
		UserId:        userId,
	}
	db := config.GetDB()
	if db == nil {
		return
	}
	if err := db.Create(&history).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "createHistory", referenceType, history, err)
	}
}

func GetHistories(ctx context.Context, referenceType string, referenceId int) ([]*History, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*History
	err := db.WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?",
			businessId, referenceType, referenceId).
		Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
