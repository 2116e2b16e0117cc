// inventory-rebuild replays the stock movement ledger per item and verifies
// that each inventory value row matches the replayed balance. With --repair
// it rewrites drifted rows from the ledger, posting nothing new.
//
// Usage:
//
//	go run ./cmd/inventory-rebuild --business-id <uuid> [--item-id N] [--repair]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/models"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	itemID := flag.Int("item-id", 0, "Optional: restrict to one item")
	repair := flag.Bool("repair", false, "Rewrite drifted inventory rows from the ledger")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	if *repair {
		// serialize repair runs against the live service's lock namespace
		config.ConnectRedisWithRetry()
		release, err := utils.AcquireBusinessLock(context.Background(), *businessID, "inventory-rebuild", 5*time.Minute)
		if err != nil {
			fmt.Fprintf(os.Stderr, "acquire rebuild lock: %v\n", err)
			os.Exit(1)
		}
		defer release()
	}

	var itemIds []int
	query := db.Model(&models.StockMovement{}).
		Where("business_id = ?", *businessID).
		Distinct("item_id")
	if *itemID > 0 {
		query = query.Where("item_id = ?", *itemID)
	}
	if err := query.Pluck("item_id", &itemIds).Error; err != nil {
		fmt.Fprintf(os.Stderr, "discover items: %v\n", err)
		os.Exit(1)
	}

	drifted := 0
	for _, id := range itemIds {
		var movements []*models.StockMovement
		err := db.Where("business_id = ? AND item_id = ?", *businessID, id).
			Order("id").
			Find(&movements).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "load movements for item %d: %v\n", id, err)
			os.Exit(1)
		}

		replayQty, replayValue := models.ReplayStockMovements(movements)

		// the last movement's snapshot must agree with the replay
		last := movements[len(movements)-1]
		if !last.BalanceQty.Equal(replayQty) || !last.BalanceValue.Equal(replayValue) {
			logger.WithFields(logrus.Fields{
				"item_id":      id,
				"snapshot_qty": last.BalanceQty,
				"replayed_qty": replayQty,
				"snapshot_val": last.BalanceValue,
				"replayed_val": replayValue,
			}).Warn("movement snapshot disagrees with replay")
		}

		var row models.InventoryValue
		err = db.Where("business_id = ? AND item_id = ?", *businessID, id).First(&row).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "load inventory row for item %d: %v\n", id, err)
			os.Exit(1)
		}

		if row.Quantity.Equal(replayQty) && row.TotalValue.Equal(replayValue) {
			continue
		}
		drifted++

		avgCost := decimal.Zero
		if !replayQty.IsZero() {
			avgCost = replayValue.DivRound(replayQty, 8)
		}
		logger.WithFields(logrus.Fields{
			"item_id":      id,
			"row_qty":      row.Quantity,
			"ledger_qty":   replayQty,
			"row_value":    row.TotalValue,
			"ledger_value": replayValue,
		}).Warn("inventory row drifted from ledger")

		if !*repair {
			continue
		}
		err = db.Model(&models.InventoryValue{}).
			Where("business_id = ? AND item_id = ?", *businessID, id).
			Updates(map[string]interface{}{
				"quantity":     replayQty,
				"average_cost": avgCost,
				"total_value":  replayValue,
			}).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "repair item %d: %v\n", id, err)
			os.Exit(1)
		}
		logger.WithFields(logrus.Fields{"item_id": id}).Info("repaired from ledger")
	}

	fmt.Printf("checked %d items, %d drifted\n", len(itemIds), drifted)
	if drifted > 0 && !*repair {
		os.Exit(3)
	}
}
