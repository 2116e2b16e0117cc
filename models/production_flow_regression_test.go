package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/stitchflow_backend/config"
	"github.com/mmdatafocus/stitchflow_backend/models"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"gorm.io/gorm"
)

// setupIntegration boots MySQL + Redis containers, connects, migrates and
// returns a context carrying a fresh business and seed user identity.
func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "stitchflow_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Stitchflow Test Co",
		Email: "owner@stitchflow.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	return utils.SetBusinessIdInContext(ctx, biz.ID.String())
}

func mustCreateUnit(t *testing.T, ctx context.Context, name, abbr string) *models.Unit {
	t.Helper()
	unit, err := models.CreateUnit(ctx, &models.NewUnit{
		Name:         name,
		Abbreviation: abbr,
		Precision:    models.PrecisionTwo,
	})
	if err != nil {
		t.Fatalf("CreateUnit(%s): %v", name, err)
	}
	return unit
}

func mustCreateItem(t *testing.T, ctx context.Context, input *models.NewItem) *models.Item {
	t.Helper()
	item, err := models.CreateItem(ctx, input)
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", input.Name, err)
	}
	return item
}

func mustCredit(t *testing.T, ctx context.Context, itemId int, qty, unitCost string) {
	t.Helper()
	_, err := models.AdjustStock(ctx, itemId, dec(qty), dec(unitCost), models.MovementDirectionIn, "opening")
	if err != nil {
		t.Fatalf("AdjustStock credit item %d: %v", itemId, err)
	}
}

func inventoryRow(t *testing.T, ctx context.Context, itemId int) *models.InventoryValue {
	t.Helper()
	row, err := models.GetInventoryValue(ctx, itemId)
	if err != nil {
		t.Fatalf("GetInventoryValue(%d): %v", itemId, err)
	}
	return row
}

func TestLedger_MovementSnapshotMatchesRow(t *testing.T) {
	ctx := setupIntegration(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	pcs := mustCreateUnit(t, ctx, "Pieces", "pcs")
	fabric := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Fabric Roll", ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID,
	})

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := models.CreditStock(tx, businessId, fabric.ID, dec("100"), dec("10"), models.MovementRef{ReferenceType: models.MovementReferenceTypeOpeningStock}); err != nil {
			return err
		}
		if _, err := models.DebitStock(tx, businessId, fabric.ID, dec("40"), models.MovementRef{ReferenceType: models.MovementReferenceTypeAdjustment}); err != nil {
			return err
		}
		if _, err := models.CreditStock(tx, businessId, fabric.ID, dec("20"), dec("13"), models.MovementRef{ReferenceType: models.MovementReferenceTypeGoodsReceipt}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ledger operations: %v", err)
	}

	row := inventoryRow(t, ctx, fabric.ID)
	last, err := models.GetLastStockMovement(ctx, fabric.ID)
	if err != nil {
		t.Fatalf("GetLastStockMovement: %v", err)
	}
	if last == nil {
		t.Fatal("expected movements")
	}
	if !last.BalanceQty.Equal(row.Quantity) {
		t.Errorf("snapshot qty %s != row qty %s", last.BalanceQty, row.Quantity)
	}
	if !last.BalanceValue.Equal(row.TotalValue) {
		t.Errorf("snapshot value %s != row value %s", last.BalanceValue, row.TotalValue)
	}
	// value invariant: total = qty * average
	if !row.TotalValue.Equal(row.Quantity.Mul(row.AverageCost)) {
		t.Errorf("row value %s != qty*avg %s", row.TotalValue, row.Quantity.Mul(row.AverageCost))
	}
}

func TestLedger_CreditThenEqualDebitRestoresState(t *testing.T) {
	ctx := setupIntegration(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	pcs := mustCreateUnit(t, ctx, "Pieces", "pcs")
	thread := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Thread Cone", ItemType: models.ItemTypeAccessory, UnitId: pcs.ID,
	})
	mustCredit(t, ctx, thread.ID, "50", "2.4")

	before := inventoryRow(t, ctx, thread.ID)

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := models.CreditStock(tx, businessId, thread.ID, dec("30"), dec("3.1"), models.MovementRef{ReferenceType: models.MovementReferenceTypeGoodsReceipt}); err != nil {
			return err
		}
		_, err := models.DebitStock(tx, businessId, thread.ID, dec("30"), models.MovementRef{ReferenceType: models.MovementReferenceTypeAdjustment})
		return err
	})
	if err != nil {
		t.Fatalf("credit/debit pair: %v", err)
	}

	after := inventoryRow(t, ctx, thread.ID)
	if !after.Quantity.Equal(before.Quantity) {
		t.Errorf("quantity not restored: %s -> %s", before.Quantity, after.Quantity)
	}
	if !after.AverageCost.Equal(before.AverageCost) {
		t.Errorf("average cost not restored: %s -> %s", before.AverageCost, after.AverageCost)
	}
}

func TestLedger_DebitNeverGoesNegative(t *testing.T) {
	ctx := setupIntegration(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	pcs := mustCreateUnit(t, ctx, "Pieces", "pcs")
	zipper := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Zipper", ItemType: models.ItemTypeAccessory, UnitId: pcs.ID,
	})
	mustCredit(t, ctx, zipper.ID, "10", "1")

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := models.DebitStock(tx, businessId, zipper.ID, dec("10.01"), models.MovementRef{ReferenceType: models.MovementReferenceTypeAdjustment})
		return err
	})

	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if !stockErr.Available.Equal(dec("10")) {
		t.Errorf("available: want 10, got %s", stockErr.Available)
	}
	row := inventoryRow(t, ctx, zipper.ID)
	if !row.Quantity.Equal(dec("10")) {
		t.Errorf("failed debit mutated quantity: %s", row.Quantity)
	}
}

// buildTestOrder seeds a finished good with a one-material plan and returns
// (order, material, finished good).
func buildTestOrder(t *testing.T, ctx context.Context, tag, requiredQty, wastePercent, stockQty, stockCost, plannedQty string) (*models.ProductionOrder, *models.Item, *models.Item) {
	t.Helper()

	pcs := mustCreateUnit(t, ctx, "Pieces "+tag, "pc"+tag)
	fabric := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Denim Fabric " + tag, ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID,
	})
	mustCredit(t, ctx, fabric.ID, stockQty, stockCost)

	jeans := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Jeans " + tag, ItemType: models.ItemTypeFinishedGood, UnitId: pcs.ID,
		ConsumptionRules: []models.NewConsumptionRule{
			{MaterialId: fabric.ID, RequiredQty: dec(requiredQty), UnitId: pcs.ID, WastePercent: dec(wastePercent)},
		},
	})

	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Stitch Workshop " + tag})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}

	order, err := models.CreateProductionOrder(ctx, &models.NewProductionOrder{
		VendorId:       vendor.ID,
		FinishedGoodId: jeans.ID,
		PlannedQty:     dec(plannedQty),
	})
	if err != nil {
		t.Fatalf("CreateProductionOrder: %v", err)
	}
	return order, fabric, jeans
}

func TestPlanAndReconcile_RuleUnitDiffersFromStockUnit(t *testing.T) {
	ctx := setupIntegration(t)

	pcs := mustCreateUnit(t, ctx, "Pieces", "pcs")
	dozen := mustCreateUnit(t, ctx, "Dozen", "dz")
	_, err := models.CreateUnitConversion(ctx, &models.NewUnitConversion{
		FromUnitId: dozen.ID, ToUnitId: pcs.ID, Factor: dec("12"),
	})
	if err != nil {
		t.Fatalf("CreateUnitConversion: %v", err)
	}

	thread := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Thread Cone", ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID,
	})
	mustCredit(t, ctx, thread.ID, "1200", "0.5")

	// the rule is stated in dozens while thread is stocked in pieces
	shirt := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Shirt", ItemType: models.ItemTypeFinishedGood, UnitId: pcs.ID,
		ConsumptionRules: []models.NewConsumptionRule{
			{MaterialId: thread.ID, RequiredQty: dec("1"), UnitId: dozen.ID},
		},
	})

	requirements, err := models.PlanMaterials(ctx, shirt.ID, dec("100"))
	if err != nil {
		t.Fatalf("PlanMaterials: %v", err)
	}
	if len(requirements) != 1 {
		t.Fatalf("want 1 requirement, got %d", len(requirements))
	}
	req := requirements[0]
	if req.UnitId != pcs.ID {
		t.Errorf("unit: want stock unit %d, got %d", pcs.ID, req.UnitId)
	}
	if !req.RequiredQty.Equal(dec("12")) {
		t.Errorf("requiredQty: want 12 pieces per output, got %s", req.RequiredQty)
	}
	if !req.PlannedQty.Equal(dec("1200")) {
		t.Errorf("plannedQty: want 1200 pieces, got %s", req.PlannedQty)
	}
	if !req.Shortage.IsZero() {
		t.Errorf("shortage: want 0, got %s", req.Shortage)
	}

	// one more output unit than stock covers is short by exactly a dozen
	requirements, err = models.PlanMaterials(ctx, shirt.ID, dec("101"))
	if err != nil {
		t.Fatalf("PlanMaterials(101): %v", err)
	}
	if !requirements[0].Shortage.Equal(dec("12")) {
		t.Errorf("shortage: want 12, got %s", requirements[0].Shortage)
	}

	// an on-plan order must reconcile with zero variance
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Mixed Unit Workshop"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	order, err := models.CreateProductionOrder(ctx, &models.NewProductionOrder{
		VendorId: vendor.ID, FinishedGoodId: shirt.ID, PlannedQty: dec("1"),
	})
	if err != nil {
		t.Fatalf("CreateProductionOrder: %v", err)
	}
	planLine := order.ConsumptionPlan[0]
	if planLine.UnitId != pcs.ID || !planLine.RequiredQty.Equal(dec("12")) || !planLine.PlannedQty.Equal(dec("12")) {
		t.Errorf("plan line not in stock units: unit %d required %s planned %s",
			planLine.UnitId, planLine.RequiredQty, planLine.PlannedQty)
	}

	// issuing 1 dozen lands as 12 pieces on the ledger and on the plan
	_, err = models.IssueMaterials(ctx, &models.NewMaterialIssuance{
		OrderId: order.ID,
		Lines:   []models.NewMaterialIssuanceLine{{ItemId: thread.ID, Qty: dec("1"), UnitId: dozen.ID}},
	})
	if err != nil {
		t.Fatalf("IssueMaterials: %v", err)
	}
	if _, err := models.ReceiveFinishedGoods(ctx, &models.NewFinishedGoodReceipt{
		OrderId: order.ID, QtyReceived: dec("1"),
	}); err != nil {
		t.Fatalf("ReceiveFinishedGoods: %v", err)
	}

	result, err := models.Reconcile(ctx, order.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	line := result.Lines[0]
	if !line.TheoreticalUsage.Equal(dec("12")) {
		t.Errorf("theoreticalUsage: want 12, got %s", line.TheoreticalUsage)
	}
	if !line.ActualUsed.Equal(dec("12")) {
		t.Errorf("actualUsed: want 12, got %s", line.ActualUsed)
	}
	if !line.Variance.IsZero() || line.Status != models.VarianceStatusOK {
		t.Errorf("on-plan order drifted: variance %s status %s", line.Variance, line.Status)
	}
}

func TestCreateProductionOrder_RejectsShortage(t *testing.T) {
	ctx := setupIntegration(t)

	pcs := mustCreateUnit(t, ctx, "Pieces", "pcs")
	fabric := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Denim Fabric", ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID,
	})
	mustCredit(t, ctx, fabric.ID, "100", "10")

	shirt := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Shirt", ItemType: models.ItemTypeFinishedGood, UnitId: pcs.ID,
		ConsumptionRules: []models.NewConsumptionRule{
			// 2/unit + 10% waste on 100 output needs 220, stock has 100
			{MaterialId: fabric.ID, RequiredQty: dec("2"), UnitId: pcs.ID, WastePercent: dec("10")},
		},
	})
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Shortage Workshop"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}

	_, err = models.CreateProductionOrder(ctx, &models.NewProductionOrder{
		VendorId:       vendor.ID,
		FinishedGoodId: shirt.ID,
		PlannedQty:     dec("100"),
	})
	var shortageErr *models.MaterialShortageError
	if !errors.As(err, &shortageErr) {
		t.Fatalf("want MaterialShortageError, got %v", err)
	}
	if len(shortageErr.Shortages) != 1 {
		t.Fatalf("want 1 shortage, got %d", len(shortageErr.Shortages))
	}
	if !shortageErr.Shortages[0].Shortage.Equal(dec("120")) {
		t.Errorf("shortage: want 120, got %s", shortageErr.Shortages[0].Shortage)
	}
}

func TestIssueMaterials_ShortLineLeavesLedgerUntouched(t *testing.T) {
	ctx := setupIntegration(t)

	pcs := mustCreateUnit(t, ctx, "Pieces", "pcs")
	itemA := mustCreateItem(t, ctx, &models.NewItem{Name: "Material A", ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID})
	itemB := mustCreateItem(t, ctx, &models.NewItem{Name: "Material B", ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID})
	itemC := mustCreateItem(t, ctx, &models.NewItem{Name: "Material C", ItemType: models.ItemTypeRawMaterial, UnitId: pcs.ID})
	mustCredit(t, ctx, itemA.ID, "100", "1")
	mustCredit(t, ctx, itemB.ID, "5", "1")
	mustCredit(t, ctx, itemC.ID, "100", "1")

	jacket := mustCreateItem(t, ctx, &models.NewItem{
		Name: "Jacket", ItemType: models.ItemTypeFinishedGood, UnitId: pcs.ID,
		ConsumptionRules: []models.NewConsumptionRule{
			{MaterialId: itemA.ID, RequiredQty: dec("1"), UnitId: pcs.ID},
			{MaterialId: itemB.ID, RequiredQty: dec("0.1"), UnitId: pcs.ID},
			{MaterialId: itemC.ID, RequiredQty: dec("1"), UnitId: pcs.ID},
		},
	})
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Atomic Workshop"})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	order, err := models.CreateProductionOrder(ctx, &models.NewProductionOrder{
		VendorId: vendor.ID, FinishedGoodId: jacket.ID, PlannedQty: dec("10"),
	})
	if err != nil {
		t.Fatalf("CreateProductionOrder: %v", err)
	}

	// line 2 requests more than item B holds
	_, err = models.IssueMaterials(ctx, &models.NewMaterialIssuance{
		OrderId: order.ID,
		Lines: []models.NewMaterialIssuanceLine{
			{ItemId: itemA.ID, Qty: dec("10"), UnitId: pcs.ID},
			{ItemId: itemB.ID, Qty: dec("50"), UnitId: pcs.ID},
			{ItemId: itemC.ID, Qty: dec("10"), UnitId: pcs.ID},
		},
	})
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}

	for _, pair := range []struct {
		item *models.Item
		want string
	}{
		{itemA, "100"}, {itemB, "5"}, {itemC, "100"},
	} {
		row := inventoryRow(t, ctx, pair.item.ID)
		if !row.Quantity.Equal(dec(pair.want)) {
			t.Errorf("%s: want %s on hand after failed issuance, got %s", pair.item.Name, pair.want, row.Quantity)
		}
	}

	issuances, err := models.GetMaterialIssuances(ctx, &order.ID)
	if err != nil {
		t.Fatalf("GetMaterialIssuances: %v", err)
	}
	if len(issuances) != 0 {
		t.Errorf("failed issuance persisted: %d records", len(issuances))
	}
}

func TestReceiveFinishedGoods_ValuationPropagates(t *testing.T) {
	ctx := setupIntegration(t)

	order, fabric, jeans := buildTestOrder(t, ctx, "r1", "1", "0", "200", "4", "100")

	issuance, err := models.IssueMaterials(ctx, &models.NewMaterialIssuance{
		OrderId: order.ID,
		Lines: []models.NewMaterialIssuanceLine{
			{ItemId: fabric.ID, Qty: dec("100"), UnitId: fabric.UnitId},
		},
	})
	if err != nil {
		t.Fatalf("IssueMaterials: %v", err)
	}
	if !issuance.TotalCost.Equal(dec("400")) {
		t.Fatalf("issuance cost: want 400, got %s", issuance.TotalCost)
	}

	receipt, err := models.ReceiveFinishedGoods(ctx, &models.NewFinishedGoodReceipt{
		OrderId:     order.ID,
		QtyReceived: dec("90"),
		QtyRejected: dec("10"),
	})
	if err != nil {
		t.Fatalf("ReceiveFinishedGoods: %v", err)
	}
	if !receipt.QtyAccepted.Equal(dec("80")) {
		t.Errorf("accepted: want 80, got %s", receipt.QtyAccepted)
	}
	if !receipt.CostPerUnit.Equal(dec("5")) {
		t.Errorf("cost per unit: want 5 (400/80), got %s", receipt.CostPerUnit)
	}

	fgRow := inventoryRow(t, ctx, jeans.ID)
	if !fgRow.Quantity.Equal(dec("80")) {
		t.Errorf("FG stock: want 80, got %s", fgRow.Quantity)
	}
	if !fgRow.AverageCost.Equal(dec("5")) {
		t.Errorf("FG average cost: want 5, got %s", fgRow.AverageCost)
	}

	refreshed, err := models.GetProductionOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetProductionOrder: %v", err)
	}
	if refreshed.Status != models.ProductionOrderStatusPartial {
		t.Errorf("status: want Partial, got %s", refreshed.Status)
	}
	if !refreshed.ActualQty.Equal(dec("80")) {
		t.Errorf("actual qty: want 80, got %s", refreshed.ActualQty)
	}
}

func TestCancelOrder_Rules(t *testing.T) {
	ctx := setupIntegration(t)

	order, fabric, _ := buildTestOrder(t, ctx, "c1", "1", "0", "200", "4", "50")

	// a draft order with no receipts cancels cleanly, ledger untouched
	before := inventoryRow(t, ctx, fabric.ID)
	cancelled, err := models.CancelProductionOrder(ctx, order.ID, "customer withdrew")
	if err != nil {
		t.Fatalf("CancelProductionOrder: %v", err)
	}
	if cancelled.Status != models.ProductionOrderStatusCancelled {
		t.Fatalf("status: want Cancelled, got %s", cancelled.Status)
	}
	after := inventoryRow(t, ctx, fabric.ID)
	if !after.Quantity.Equal(before.Quantity) {
		t.Errorf("cancel touched the ledger: %s -> %s", before.Quantity, after.Quantity)
	}

	// an order with a receipt refuses to cancel
	order2, fabric2, _ := buildTestOrder(t, ctx, "c2", "1", "0", "300", "4", "50")
	_, err = models.IssueMaterials(ctx, &models.NewMaterialIssuance{
		OrderId: order2.ID,
		Lines:   []models.NewMaterialIssuanceLine{{ItemId: fabric2.ID, Qty: dec("50"), UnitId: fabric2.UnitId}},
	})
	if err != nil {
		t.Fatalf("IssueMaterials: %v", err)
	}
	_, err = models.ReceiveFinishedGoods(ctx, &models.NewFinishedGoodReceipt{
		OrderId: order2.ID, QtyReceived: dec("10"),
	})
	if err != nil {
		t.Fatalf("ReceiveFinishedGoods: %v", err)
	}
	_, err = models.CancelProductionOrder(ctx, order2.ID, "too late")
	if !errors.Is(err, models.ErrCannotCancelWithReceipts) {
		t.Fatalf("want ErrCannotCancelWithReceipts, got %v", err)
	}
}

func TestConfirmOrder_Transitions(t *testing.T) {
	ctx := setupIntegration(t)

	order, fabric, _ := buildTestOrder(t, ctx, "f1", "1", "0", "200", "4", "50")

	confirmed, err := models.ConfirmProductionOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ConfirmProductionOrder: %v", err)
	}
	if confirmed.Status != models.ProductionOrderStatusIssued {
		t.Fatalf("status: want Issued, got %s", confirmed.Status)
	}

	// only a draft order confirms
	_, err = models.ConfirmProductionOrder(ctx, order.ID)
	var stateErr *models.InvalidOrderStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("want InvalidOrderStateError on double confirm, got %v", err)
	}

	// first issuance moves the confirmed order into production
	_, err = models.IssueMaterials(ctx, &models.NewMaterialIssuance{
		OrderId: order.ID,
		Lines:   []models.NewMaterialIssuanceLine{{ItemId: fabric.ID, Qty: dec("10"), UnitId: fabric.UnitId}},
	})
	if err != nil {
		t.Fatalf("IssueMaterials: %v", err)
	}
	refreshed, err := models.GetProductionOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetProductionOrder: %v", err)
	}
	if refreshed.Status != models.ProductionOrderStatusInProduction {
		t.Errorf("status: want InProduction, got %s", refreshed.Status)
	}
}

func TestReconcile_EndToEndOverVariance(t *testing.T) {
	ctx := setupIntegration(t)

	order, fabric, _ := buildTestOrder(t, ctx, "e1", "1", "0", "200", "4", "100")

	_, err := models.IssueMaterials(ctx, &models.NewMaterialIssuance{
		OrderId: order.ID,
		Lines:   []models.NewMaterialIssuanceLine{{ItemId: fabric.ID, Qty: dec("100"), UnitId: fabric.UnitId}},
	})
	if err != nil {
		t.Fatalf("IssueMaterials: %v", err)
	}

	vendorReturn, err := models.CreateVendorReturn(ctx, &models.NewVendorReturn{
		OrderId: order.ID,
		Lines:   []models.NewVendorReturnLine{{ItemId: fabric.ID, Qty: dec("5"), UnitId: fabric.UnitId}},
	})
	if err != nil {
		t.Fatalf("CreateVendorReturn: %v", err)
	}
	if _, err := models.ProcessVendorReturn(ctx, vendorReturn.ID); err != nil {
		t.Fatalf("ProcessVendorReturn: %v", err)
	}

	if _, err := models.ReceiveFinishedGoods(ctx, &models.NewFinishedGoodReceipt{
		OrderId: order.ID, QtyReceived: dec("90"),
	}); err != nil {
		t.Fatalf("ReceiveFinishedGoods: %v", err)
	}

	result, err := models.Reconcile(ctx, order.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("want 1 line, got %d", len(result.Lines))
	}
	line := result.Lines[0]
	if !line.ActualUsed.Equal(dec("95")) {
		t.Errorf("actualUsed: want 95, got %s", line.ActualUsed)
	}
	if !line.TheoreticalUsage.Equal(dec("90")) {
		t.Errorf("theoreticalUsage: want 90, got %s", line.TheoreticalUsage)
	}
	if !line.Variance.Equal(dec("5")) {
		t.Errorf("variance: want 5, got %s", line.Variance)
	}
	if line.Status != models.VarianceStatusOver {
		t.Errorf("status: want OVER, got %s", line.Status)
	}

	// calling again with no intervening event returns the same numbers
	again, err := models.Reconcile(ctx, order.ID)
	if err != nil {
		t.Fatalf("Reconcile (second): %v", err)
	}
	if !again.Lines[0].Variance.Equal(line.Variance) || again.Lines[0].Status != line.Status {
		t.Errorf("reconcile is not idempotent: %+v vs %+v", line, again.Lines[0])
	}
	if !again.Summary.TotalUsedValue.Equal(result.Summary.TotalUsedValue) {
		t.Errorf("summary differs between runs")
	}
}

func TestNextDocumentNumber_SequencesInsideTransaction(t *testing.T) {
	ctx := setupIntegration(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	db := config.GetDB()
	var first, second string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, _, err = models.NextDocumentNumber(tx, businessId, models.DocumentModuleProductionOrder)
		if err != nil {
			return err
		}
		second, _, err = models.NextDocumentNumber(tx, businessId, models.DocumentModuleProductionOrder)
		return err
	})
	if err != nil {
		t.Fatalf("NextDocumentNumber: %v", err)
	}
	if first != "PO-00001" || second != "PO-00002" {
		t.Fatalf("want PO-00001/PO-00002, got %s/%s", first, second)
	}

	// a rolled-back allocation is never observed by the next caller as a gap commit
	_ = db.Transaction(func(tx *gorm.DB) error {
		if _, _, err := models.NextDocumentNumber(tx, businessId, models.DocumentModuleProductionOrder); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	var third string
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		third, _, err = models.NextDocumentNumber(tx, businessId, models.DocumentModuleProductionOrder)
		return err
	})
	if err != nil {
		t.Fatalf("NextDocumentNumber after rollback: %v", err)
	}
	if third != "PO-00003" {
		t.Fatalf("want PO-00003 after rollback, got %s", third)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stitchflow-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stitchflow-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=stitchflow_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
