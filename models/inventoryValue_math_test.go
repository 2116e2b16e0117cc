package models_test

import (
	"testing"

	"github.com/mmdatafocus/stitchflow_backend/models"
)

func TestBlendAverageCost_EmptyBalanceTakesIncomingCost(t *testing.T) {
	got := models.BlendAverageCost(dec("0"), dec("0"), dec("100"), dec("2.5"))
	if !got.Equal(dec("2.5")) {
		t.Fatalf("want 2.5, got %s", got)
	}
}

func TestBlendAverageCost_WeightedBlend(t *testing.T) {
	// (100*10 + 50*16) / 150 = 12
	got := models.BlendAverageCost(dec("100"), dec("10"), dec("50"), dec("16"))
	if !got.Equal(dec("12")) {
		t.Fatalf("want 12, got %s", got)
	}
}

func TestBlendAverageCost_SamePriceKeepsAverage(t *testing.T) {
	got := models.BlendAverageCost(dec("30"), dec("7.25"), dec("70"), dec("7.25"))
	if !got.Equal(dec("7.25")) {
		t.Fatalf("want 7.25, got %s", got)
	}
}

func TestReplayStockMovements_FoldsSignedQuantities(t *testing.T) {
	movements := []*models.StockMovement{
		{Quantity: dec("100"), TotalCost: dec("1000")},
		{Quantity: dec("-40"), TotalCost: dec("-400")},
		{Quantity: dec("10"), TotalCost: dec("150")},
	}
	qty, value := models.ReplayStockMovements(movements)
	if !qty.Equal(dec("70")) {
		t.Fatalf("want qty 70, got %s", qty)
	}
	if !value.Equal(dec("750")) {
		t.Fatalf("want value 750, got %s", value)
	}
}
