package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/stitchflow_backend/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestConvertQuantity_SameUnitIsIdentity(t *testing.T) {
	qty := dec("12.345")
	got, err := models.ConvertQuantity(qty, 7, 7, nil)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(qty) {
		t.Fatalf("same-unit conversion changed qty: %s", got)
	}
}

func TestConvertQuantity_DirectFactorMultiplies(t *testing.T) {
	conversions := []*models.UnitConversion{
		{FromUnitId: 1, ToUnitId: 2, Factor: dec("0.9144")}, // yard -> meter
	}
	got, err := models.ConvertQuantity(dec("10"), 1, 2, conversions)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(dec("9.144")) {
		t.Fatalf("want 9.144, got %s", got)
	}
}

func TestConvertQuantity_InverseFactorDivides(t *testing.T) {
	conversions := []*models.UnitConversion{
		{FromUnitId: 1, ToUnitId: 2, Factor: dec("12")}, // dozen -> piece
	}
	got, err := models.ConvertQuantity(dec("36"), 2, 1, conversions)
	if err != nil {
		t.Fatalf("ConvertQuantity: %v", err)
	}
	if !got.Equal(dec("3")) {
		t.Fatalf("want 3, got %s", got)
	}
}

func TestConvertQuantity_NoPathFails(t *testing.T) {
	conversions := []*models.UnitConversion{
		{FromUnitId: 1, ToUnitId: 2, Factor: dec("12")},
	}
	_, err := models.ConvertQuantity(dec("5"), 1, 3, conversions)
	var pathErr *models.NoConversionPathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("want NoConversionPathError, got %v", err)
	}
	if pathErr.FromUnitId != 1 || pathErr.ToUnitId != 3 {
		t.Fatalf("error names wrong units: %+v", pathErr)
	}
}
