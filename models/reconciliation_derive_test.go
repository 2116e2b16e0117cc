package models_test

import (
	"testing"

	"github.com/mmdatafocus/stitchflow_backend/models"
	"github.com/shopspring/decimal"
)

func boolPtr(b bool) *bool { return &b }

func overScenarioInputs() ([]models.ConsumptionPlanLine, []models.MaterialIssuance, []models.VendorReturn, decimal.Decimal, map[int]decimal.Decimal) {
	planLines := []models.ConsumptionPlanLine{
		{ItemId: 1, RequiredQty: dec("1"), WastePercent: dec("0"), PlannedQty: dec("100")},
	}
	issuances := []models.MaterialIssuance{
		{
			IsCancelled: boolPtr(false),
			Lines: []models.MaterialIssuanceLine{
				{ItemId: 1, StockQty: dec("100")},
			},
		},
	}
	vendorReturns := []models.VendorReturn{
		{
			Status: models.VendorReturnStatusProcessed,
			Lines: []models.VendorReturnLine{
				{ItemId: 1, StockQty: dec("5")},
			},
		},
	}
	costs := map[int]decimal.Decimal{1: dec("4")}
	return planLines, issuances, vendorReturns, dec("90"), costs
}

func TestDeriveReconciliation_OverVariance(t *testing.T) {
	planLines, issuances, vendorReturns, actualOutput, costs := overScenarioInputs()

	lines := models.DeriveReconciliation(planLines, issuances, vendorReturns, actualOutput, costs)
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d", len(lines))
	}
	line := lines[0]

	if !line.TotalIssued.Equal(dec("100")) {
		t.Errorf("totalIssued: want 100, got %s", line.TotalIssued)
	}
	if !line.TotalReturned.Equal(dec("5")) {
		t.Errorf("totalReturned: want 5, got %s", line.TotalReturned)
	}
	if !line.ActualUsed.Equal(dec("95")) {
		t.Errorf("actualUsed: want 95, got %s", line.ActualUsed)
	}
	if !line.TheoreticalUsage.Equal(dec("90")) {
		t.Errorf("theoreticalUsage: want 90, got %s", line.TheoreticalUsage)
	}
	if !line.Variance.Equal(dec("5")) {
		t.Errorf("variance: want 5, got %s", line.Variance)
	}
	// 5 > 1% of 90
	if line.Status != models.VarianceStatusOver {
		t.Errorf("status: want OVER, got %s", line.Status)
	}
	if !line.UsedValue.Equal(dec("380")) {
		t.Errorf("usedValue: want 380, got %s", line.UsedValue)
	}
	if !line.VarianceValue.Equal(dec("20")) {
		t.Errorf("varianceValue: want 20, got %s", line.VarianceValue)
	}
}

func TestDeriveReconciliation_Idempotent(t *testing.T) {
	planLines, issuances, vendorReturns, actualOutput, costs := overScenarioInputs()

	first := models.DeriveReconciliation(planLines, issuances, vendorReturns, actualOutput, costs)
	second := models.DeriveReconciliation(planLines, issuances, vendorReturns, actualOutput, costs)

	if len(first) != len(second) {
		t.Fatalf("line counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Variance.Equal(second[i].Variance) ||
			first[i].Status != second[i].Status ||
			!first[i].UsedValue.Equal(second[i].UsedValue) {
			t.Fatalf("line %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDeriveReconciliation_WithinToleranceIsOK(t *testing.T) {
	planLines := []models.ConsumptionPlanLine{
		{ItemId: 1, RequiredQty: dec("1"), WastePercent: dec("0"), PlannedQty: dec("100")},
	}
	issuances := []models.MaterialIssuance{
		{IsCancelled: boolPtr(false), Lines: []models.MaterialIssuanceLine{{ItemId: 1, StockQty: dec("100.5")}}},
	}

	lines := models.DeriveReconciliation(planLines, issuances, nil, dec("100"), nil)
	// |0.5| <= 1% of 100
	if lines[0].Status != models.VarianceStatusOK {
		t.Fatalf("want OK, got %s", lines[0].Status)
	}
}

func TestDeriveReconciliation_UnderVariance(t *testing.T) {
	planLines := []models.ConsumptionPlanLine{
		{ItemId: 1, RequiredQty: dec("2"), WastePercent: dec("0"), PlannedQty: dec("200")},
	}
	issuances := []models.MaterialIssuance{
		{IsCancelled: boolPtr(false), Lines: []models.MaterialIssuanceLine{{ItemId: 1, StockQty: dec("150")}}},
	}

	lines := models.DeriveReconciliation(planLines, issuances, nil, dec("100"), nil)
	if !lines[0].Variance.Equal(dec("-50")) {
		t.Fatalf("variance: want -50, got %s", lines[0].Variance)
	}
	if lines[0].Status != models.VarianceStatusUnder {
		t.Fatalf("want UNDER, got %s", lines[0].Status)
	}
}

func TestDeriveReconciliation_ZeroTheoreticalUsage(t *testing.T) {
	// unplanned line: nothing required, something issued
	planLines := []models.ConsumptionPlanLine{
		{ItemId: 9, RequiredQty: dec("0"), WastePercent: dec("0"), IsUnplanned: true},
	}
	issuances := []models.MaterialIssuance{
		{IsCancelled: boolPtr(false), Lines: []models.MaterialIssuanceLine{{ItemId: 9, StockQty: dec("3")}}},
	}

	lines := models.DeriveReconciliation(planLines, issuances, nil, dec("50"), nil)
	line := lines[0]
	if !line.TheoreticalUsage.IsZero() {
		t.Fatalf("theoreticalUsage: want 0, got %s", line.TheoreticalUsage)
	}
	if !line.VariancePercent.IsZero() {
		t.Fatalf("variancePercent: want 0 when theoretical is 0, got %s", line.VariancePercent)
	}
	if line.Status != models.VarianceStatusOver {
		t.Fatalf("want OVER, got %s", line.Status)
	}
}

func TestDeriveReconciliation_ExcludesRejectAndCancelled(t *testing.T) {
	planLines := []models.ConsumptionPlanLine{
		{ItemId: 1, RequiredQty: dec("1"), WastePercent: dec("0"), PlannedQty: dec("100")},
	}
	issuances := []models.MaterialIssuance{
		{IsCancelled: boolPtr(false), Lines: []models.MaterialIssuanceLine{{ItemId: 1, StockQty: dec("100")}}},
		// cancelled issuance must not count
		{IsCancelled: boolPtr(true), Lines: []models.MaterialIssuanceLine{{ItemId: 1, StockQty: dec("40")}}},
	}
	vendorReturns := []models.VendorReturn{
		{
			Status: models.VendorReturnStatusProcessed,
			Lines: []models.VendorReturnLine{
				{ItemId: 1, StockQty: dec("5")},
				// finished-good rejects never reduce material consumption
				{ItemId: 1, StockQty: dec("7"), IsFinishedGoodReject: true},
			},
		},
		// pending returns must not count
		{
			Status: models.VendorReturnStatusPending,
			Lines:  []models.VendorReturnLine{{ItemId: 1, StockQty: dec("50")}},
		},
	}

	lines := models.DeriveReconciliation(planLines, issuances, vendorReturns, dec("90"), nil)
	if !lines[0].TotalIssued.Equal(dec("100")) {
		t.Errorf("totalIssued: want 100, got %s", lines[0].TotalIssued)
	}
	if !lines[0].TotalReturned.Equal(dec("5")) {
		t.Errorf("totalReturned: want 5, got %s", lines[0].TotalReturned)
	}
}

func TestSummarizeReconciliation_Efficiency(t *testing.T) {
	planLines, issuances, vendorReturns, actualOutput, costs := overScenarioInputs()
	lines := models.DeriveReconciliation(planLines, issuances, vendorReturns, actualOutput, costs)

	summary := models.SummarizeReconciliation(lines, actualOutput)
	if !summary.TotalIssuedValue.Equal(dec("400")) {
		t.Errorf("totalIssuedValue: want 400, got %s", summary.TotalIssuedValue)
	}
	if !summary.TotalUsedValue.Equal(dec("380")) {
		t.Errorf("totalUsedValue: want 380, got %s", summary.TotalUsedValue)
	}
	if !summary.EfficiencyPercent.Equal(dec("95")) {
		t.Errorf("efficiency: want 95, got %s", summary.EfficiencyPercent)
	}
}

func TestSummarizeReconciliation_ZeroIssuedValue(t *testing.T) {
	summary := models.SummarizeReconciliation(nil, dec("10"))
	if !summary.EfficiencyPercent.IsZero() {
		t.Fatalf("efficiency: want 0 with no issued value, got %s", summary.EfficiencyPercent)
	}
}
