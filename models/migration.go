package models

import (
	"log"

	"github.com/mmdatafocus/stitchflow_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Unit{}, &UnitConversion{},
		&Item{}, &ConsumptionRule{},
		&Vendor{},
		&InventoryValue{}, &StockMovement{},
		&ProductionOrder{}, &ConsumptionPlanLine{},
		&MaterialIssuance{}, &MaterialIssuanceLine{},
		&FinishedGoodReceipt{},
		&VendorReturn{}, &VendorReturnLine{},
		&DocumentNumberSeries{}, &DocumentNumberSeriesModule{}, &DocumentSequence{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
