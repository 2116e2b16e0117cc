package models_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stitchflow_backend/models"
)

func bindJSON(t *testing.T, payload string, dest any) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", strings.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	return c.ShouldBindJSON(dest)
}

// Routes nested under an order path supply order_id from the path, so the
// body must bind without one.
func TestIssuancePayloadBindsWithoutOrderId(t *testing.T) {
	var input models.NewMaterialIssuance
	err := bindJSON(t, `{"lines":[{"item_id":1,"qty":"2","unit_id":1}]}`, &input)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(input.Lines) != 1 || !input.Lines[0].Qty.Equal(dec("2")) {
		t.Fatalf("unexpected payload: %+v", input)
	}
}

func TestReceiptPayloadBindsWithoutOrderId(t *testing.T) {
	var input models.NewFinishedGoodReceipt
	err := bindJSON(t, `{"qty_received":"90","qty_rejected":"10"}`, &input)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if !input.QtyReceived.Equal(dec("90")) || !input.QtyRejected.Equal(dec("10")) {
		t.Fatalf("unexpected payload: %+v", input)
	}
}
