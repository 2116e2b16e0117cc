package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Module names used for document numbering.
const (
	DocumentModuleProductionOrder     = "ProductionOrder"
	DocumentModuleMaterialIssuance    = "MaterialIssuance"
	DocumentModuleFinishedGoodReceipt = "FinishedGoodReceipt"
	DocumentModuleVendorReturn        = "VendorReturn"
	DocumentModuleAdjustment          = "Adjustment"
)

type DocumentNumberSeries struct {
	ID         int                          `gorm:"primary_key" json:"id"`
	BusinessId string                       `gorm:"index;not null" json:"business_id"`
	Name       string                       `gorm:"size:100;not null" json:"name" binding:"required"`
	Modules    []DocumentNumberSeriesModule `gorm:"foreignKey:SeriesId" json:"modules"`
	CreatedAt  time.Time                    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time                    `gorm:"autoUpdateTime" json:"updated_at"`
}

type DocumentNumberSeriesModule struct {
	SeriesId    int         `gorm:"primaryKey;autoIncrement:false" json:"series_id"`
	ModuleName  string      `gorm:"primaryKey;autoIncrement:false;size:50" json:"module_name" binding:"required"`
	Prefix      string      `gorm:"size:10" json:"prefix"`
	Padding     int         `gorm:"not null;default:5" json:"padding"`
	ResetPeriod ResetPeriod `gorm:"type:enum('Never','Monthly','Yearly');default:'Never'" json:"reset_period"`
}

// DocumentSequence is the per-module counter row. NextDocumentNumber locks it
// FOR UPDATE so the number is allocated inside the caller's transaction.
type DocumentSequence struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"not null;uniqueIndex:idx_sequence_scope,priority:1" json:"business_id"`
	ModuleName string `gorm:"not null;size:50;uniqueIndex:idx_sequence_scope,priority:2" json:"module_name"`
	PeriodKey  string `gorm:"not null;size:10;uniqueIndex:idx_sequence_scope,priority:3" json:"period_key"`
	LastValue  int64  `gorm:"not null;default:0" json:"last_value"`
}

type NewDocumentNumberSeries struct {
	Name    string                          `json:"name" binding:"required"`
	Modules []NewDocumentNumberSeriesModule `json:"modules"`
}

type NewDocumentNumberSeriesModule struct {
	ModuleName  string      `json:"module_name" binding:"required"`
	Prefix      string      `json:"prefix"`
	Padding     int         `json:"padding"`
	ResetPeriod ResetPeriod `json:"reset_period"`
}

func (input *NewDocumentNumberSeries) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[DocumentNumberSeries](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	for _, m := range input.Modules {
		if m.Padding < 0 || m.Padding > 12 {
			return newValidationError("padding must be between 0 and 12")
		}
		if m.ResetPeriod != "" && !m.ResetPeriod.IsValid() {
			return newValidationError("invalid reset period")
		}
	}
	return nil
}

func mapDocumentNumberSeriesModules(input []NewDocumentNumberSeriesModule) []DocumentNumberSeriesModule {
	modules := make([]DocumentNumberSeriesModule, 0, len(input))
	for _, m := range input {
		padding := m.Padding
		if padding == 0 {
			padding = 5
		}
		resetPeriod := m.ResetPeriod
		if resetPeriod == "" {
			resetPeriod = ResetPeriodNever
		}
		modules = append(modules, DocumentNumberSeriesModule{
			ModuleName:  m.ModuleName,
			Prefix:      m.Prefix,
			Padding:     padding,
			ResetPeriod: resetPeriod,
		})
	}
	return modules
}

func CreateDocumentNumberSeries(ctx context.Context, input *NewDocumentNumberSeries) (*DocumentNumberSeries, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	series := DocumentNumberSeries{
		BusinessId: businessId,
		Name:       input.Name,
		Modules:    mapDocumentNumberSeriesModules(input.Modules),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&series).Error
	if err != nil {
		return nil, err
	}
	return &series, nil
}

func UpdateDocumentNumberSeries(ctx context.Context, id int, input *NewDocumentNumberSeries) (*DocumentNumberSeries, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	series, err := utils.FetchModel[DocumentNumberSeries](ctx, businessId, id, "Modules")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&series).Update("Name", input.Name).Error; err != nil {
			return err
		}
		if err := tx.Where("series_id = ?", series.ID).Delete(&DocumentNumberSeriesModule{}).Error; err != nil {
			return err
		}
		modules := mapDocumentNumberSeriesModules(input.Modules)
		for idx := range modules {
			modules[idx].SeriesId = series.ID
		}
		if len(modules) > 0 {
			if err := tx.Create(&modules).Error; err != nil {
				return err
			}
		}
		series.Modules = modules
		return nil
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

func GetDocumentNumberSeries(ctx context.Context, id int) (*DocumentNumberSeries, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[DocumentNumberSeries](ctx, businessId, id, "Modules")
}

func GetAllDocumentNumberSeries(ctx context.Context) ([]*DocumentNumberSeries, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[DocumentNumberSeries](ctx, businessId, "Modules")
}

// periodKey scopes the counter row to its reset window.
func periodKey(resetPeriod ResetPeriod, now time.Time) string {
	switch resetPeriod {
	case ResetPeriodMonthly:
		return now.Format("200601")
	case ResetPeriodYearly:
		return now.Format("2006")
	default:
		return "ALL"
	}
}

func formatDocumentNumber(prefix string, padding int, value int64) string {
	if padding <= 0 {
		return fmt.Sprintf("%s%d", prefix, value)
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, value)
}

func getSeriesModule(tx *gorm.DB, businessId string, moduleName string) (*DocumentNumberSeriesModule, error) {
	var module DocumentNumberSeriesModule
	err := tx.Joins("JOIN document_number_series ON document_number_series.id = document_number_series_modules.series_id").
		Where("document_number_series.business_id = ? AND document_number_series_modules.module_name = ?", businessId, moduleName).
		First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// fall back to a bare numeric sequence
			return &DocumentNumberSeriesModule{ModuleName: moduleName, Padding: 5, ResetPeriod: ResetPeriodNever}, nil
		}
		return nil, err
	}
	return &module, nil
}

// NextDocumentNumber allocates the next number for a module inside tx and
// returns it formatted along with the raw sequence value. The counter row
// is taken FOR UPDATE, so the number commits or rolls back with the
// document it stamps.
func NextDocumentNumber(tx *gorm.DB, businessId string, moduleName string) (string, int64, error) {
	module, err := getSeriesModule(tx, businessId, moduleName)
	if err != nil {
		return "", 0, err
	}

	key := periodKey(module.ResetPeriod, time.Now())
	sequence := DocumentSequence{
		BusinessId: businessId,
		ModuleName: moduleName,
		PeriodKey:  key,
	}
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(DocumentSequence{BusinessId: businessId, ModuleName: moduleName, PeriodKey: key}).
		FirstOrCreate(&sequence).Error
	if err != nil {
		return "", 0, err
	}

	sequence.LastValue++
	if err := tx.Model(&sequence).Update("last_value", sequence.LastValue).Error; err != nil {
		return "", 0, err
	}
	return formatDocumentNumber(module.Prefix, module.Padding, sequence.LastValue), sequence.LastValue, nil
}

// seedDefaultNumberSeries installs the default prefixes for a new business.
func seedDefaultNumberSeries(tx *gorm.DB, businessId string) error {
	series := DocumentNumberSeries{
		BusinessId: businessId,
		Name:       "Default",
		Modules: []DocumentNumberSeriesModule{
			{ModuleName: DocumentModuleProductionOrder, Prefix: "PO-", Padding: 5, ResetPeriod: ResetPeriodNever},
			{ModuleName: DocumentModuleMaterialIssuance, Prefix: "MI-", Padding: 5, ResetPeriod: ResetPeriodNever},
			{ModuleName: DocumentModuleFinishedGoodReceipt, Prefix: "FGR-", Padding: 5, ResetPeriod: ResetPeriodNever},
			{ModuleName: DocumentModuleVendorReturn, Prefix: "VRN-", Padding: 5, ResetPeriod: ResetPeriodNever},
			{ModuleName: DocumentModuleAdjustment, Prefix: "ADJ-", Padding: 5, ResetPeriod: ResetPeriodNever},
		},
	}
	return tx.Create(&series).Error
}
