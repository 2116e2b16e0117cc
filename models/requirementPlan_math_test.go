package models_test

import (
	"testing"

	"github.com/mmdatafocus/stitchflow_backend/models"
)

func TestComputePlannedQty_WasteGrossesUp(t *testing.T) {
	// 2 units per output, 10% waste, 100 planned output -> 220
	got := models.ComputePlannedQty(dec("2"), dec("100"), dec("10"))
	if !got.Equal(dec("220")) {
		t.Fatalf("want 220, got %s", got)
	}
}

func TestComputePlannedQty_ZeroWaste(t *testing.T) {
	got := models.ComputePlannedQty(dec("1.5"), dec("40"), dec("0"))
	if !got.Equal(dec("60")) {
		t.Fatalf("want 60, got %s", got)
	}
}

func TestComputePlannedQty_FractionalWasteStaysExact(t *testing.T) {
	// 0.35 * 120 * 1.025 = 43.05
	got := models.ComputePlannedQty(dec("0.35"), dec("120"), dec("2.5"))
	if !got.Equal(dec("43.05")) {
		t.Fatalf("want 43.05, got %s", got)
	}
}
