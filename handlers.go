package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/stitchflow_backend/models"
	"github.com/mmdatafocus/stitchflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// requestContext resolves the session user and stamps business and user
// identity into the request context for the models layer.
func requestContext(c *gin.Context) (context.Context, error) {
	ctx := c.Request.Context()
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return nil, errors.New("unauthorized")
	}
	user, err := models.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.New("unauthorized")
	}
	ctx = utils.SetBusinessIdInContext(ctx, user.BusinessId)
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)
	ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
	return ctx, nil
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps the error taxonomy onto HTTP statuses: malformed input
// 400, missing resources 404, state conflicts 409, stock shortfalls 422.
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var stockErr *models.InsufficientStockError
	var stateErr *models.InvalidOrderStateError
	var conversionErr *models.NoConversionPathError
	var shortageErr *models.MaterialShortageError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, models.ErrCannotCancelWithReceipts):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     stockErr.Error(),
			"item_id":   stockErr.ItemId,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.As(err, &shortageErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     shortageErr.Error(),
			"shortages": shortageErr.Shortages,
		})
	case errors.As(err, &conversionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": conversionErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// respondBindError reports gin binding failures, flattening field-level
// validator errors into a fields map.
func respondBindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": utils.ProcessValidationErrors(err),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// authed wraps a handler body with session resolution.
func authed(fn func(c *gin.Context, ctx context.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := requestContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		fn(c, ctx)
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		token, user, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func createUnitHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		unit, err := models.CreateUnit(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, unit)
	})
}

func listUnitsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		units, err := models.GetUnits(ctx, name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, units)
	})
}

func getUnitHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		unit, err := models.GetUnit(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, unit)
	})
}

func updateUnitHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		unit, err := models.UpdateUnit(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, unit)
	})
}

func deleteUnitHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		unit, err := models.DeleteUnit(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, unit)
	})
}

func createUnitConversionHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewUnitConversion
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		conversion, err := models.CreateUnitConversion(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, conversion)
	})
}

func listUnitConversionsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		conversions, err := models.GetUnitConversions(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conversions)
	})
}

func getUnitConversionHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		conversion, err := models.GetUnitConversion(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conversion)
	})
}

func updateUnitConversionHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewUnitConversion
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		conversion, err := models.UpdateUnitConversion(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conversion)
	})
}

func deleteUnitConversionHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		conversion, err := models.DeleteUnitConversion(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, conversion)
	})
}

func createItemHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewItem
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		item, err := models.CreateItem(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	})
}

func listItemsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var itemType *models.ItemType
		if v := c.Query("type"); v != "" {
			t := models.ItemType(v)
			if !t.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item type"})
				return
			}
			itemType = &t
		}
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		items, err := models.GetItems(ctx, itemType, name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	})
}

func getItemHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		item, err := models.GetItem(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
}

func updateItemHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewItem
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		item, err := models.UpdateItem(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
}

func deleteItemHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		item, err := models.DeleteItem(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
}

func createVendorHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		vendor, err := models.CreateVendor(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vendor)
	})
}

func listVendorsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		vendors, err := models.GetVendors(ctx, name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendors)
	})
}

func getVendorHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		vendor, err := models.GetVendor(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	})
}

func updateVendorHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		vendor, err := models.UpdateVendor(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	})
}

func deleteVendorHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		vendor, err := models.DeleteVendor(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	})
}

func listInventoryHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		values, err := models.GetInventoryValues(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, values)
	})
}

func getInventoryHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		itemId, ok := pathId(c, "itemId")
		if !ok {
			return
		}
		value, err := models.GetInventoryValue(ctx, itemId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, value)
	})
}

func listStockMovementsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var itemId *int
		if v := c.Query("item_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_id"})
				return
			}
			itemId = &id
		}
		var referenceType *models.MovementReferenceType
		if v := c.Query("reference_type"); v != "" {
			t := models.MovementReferenceType(v)
			referenceType = &t
		}
		var limit *int
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = &n
		}
		movements, err := models.GetStockMovements(ctx, itemId, referenceType, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movements)
	})
}

func adjustStockHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var req struct {
			ItemId    int                      `json:"item_id" binding:"required"`
			Qty       decimal.Decimal          `json:"qty" binding:"required"`
			UnitCost  decimal.Decimal          `json:"unit_cost"`
			Direction models.MovementDirection `json:"direction" binding:"required"`
			Note      string                   `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		movement, err := models.AdjustStock(ctx, req.ItemId, req.Qty, req.UnitCost, req.Direction, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	})
}

func planMaterialsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		finishedGoodId, err := strconv.Atoi(c.Query("finished_good_id"))
		if err != nil || finishedGoodId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finished_good_id"})
			return
		}
		plannedQty, err := decimal.NewFromString(c.Query("planned_qty"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid planned_qty"})
			return
		}
		requirements, err := models.PlanMaterials(ctx, finishedGoodId, plannedQty)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, requirements)
	})
}

func createProductionOrderHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewProductionOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		order, err := models.CreateProductionOrder(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	})
}

func listProductionOrdersHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var status *models.ProductionOrderStatus
		if v := c.Query("status"); v != "" {
			s := models.ProductionOrderStatus(v)
			status = &s
		}
		var vendorId *int
		if v := c.Query("vendor_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vendor_id"})
				return
			}
			vendorId = &id
		}
		orders, err := models.GetProductionOrders(ctx, status, vendorId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	})
}

func getProductionOrderHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetProductionOrder(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
}

func issueMaterialsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewMaterialIssuance
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		input.OrderId = orderId
		issuance, err := models.IssueMaterials(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, issuance)
	})
}

func receiveFinishedGoodsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewFinishedGoodReceipt
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		input.OrderId = orderId
		receipt, err := models.ReceiveFinishedGoods(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, receipt)
	})
}

func confirmProductionOrderHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.ConfirmProductionOrder(ctx, orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
}

func cancelProductionOrderHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)
		order, err := models.CancelProductionOrder(ctx, orderId, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})
}

func reconcileHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		result, err := models.Reconcile(ctx, orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func listIssuancesHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var orderId *int
		if v := c.Query("order_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order_id"})
				return
			}
			orderId = &id
		}
		issuances, err := models.GetMaterialIssuances(ctx, orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issuances)
	})
}

func getIssuanceHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		issuance, err := models.GetMaterialIssuance(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issuance)
	})
}

func listReceiptsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var orderId *int
		if v := c.Query("order_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order_id"})
				return
			}
			orderId = &id
		}
		receipts, err := models.GetFinishedGoodReceipts(ctx, orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipts)
	})
}

func createVendorReturnHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewVendorReturn
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		vendorReturn, err := models.CreateVendorReturn(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vendorReturn)
	})
}

func listVendorReturnsHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var orderId *int
		if v := c.Query("order_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order_id"})
				return
			}
			orderId = &id
		}
		returns, err := models.GetVendorReturns(ctx, orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, returns)
	})
}

func getVendorReturnHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		vendorReturn, err := models.GetVendorReturn(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendorReturn)
	})
}

func processVendorReturnHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		vendorReturn, err := models.ProcessVendorReturn(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendorReturn)
	})
}

func voidVendorReturnHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		vendorReturn, err := models.VoidVendorReturn(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendorReturn)
	})
}

func createNumberSeriesHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		var input models.NewDocumentNumberSeries
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		series, err := models.CreateDocumentNumberSeries(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, series)
	})
}

func listNumberSeriesHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		series, err := models.GetAllDocumentNumberSeries(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, series)
	})
}

func getNumberSeriesHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		series, err := models.GetDocumentNumberSeries(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, series)
	})
}

func listHistoriesHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		referenceType := c.Query("reference_type")
		referenceId, err := strconv.Atoi(c.Query("reference_id"))
		if referenceType == "" || err != nil || referenceId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
			return
		}
		histories, err := models.GetHistories(ctx, referenceType, referenceId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, histories)
	})
}

func updateNumberSeriesHandler() gin.HandlerFunc {
	return authed(func(c *gin.Context, ctx context.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewDocumentNumberSeries
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		series, err := models.UpdateDocumentNumberSeries(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, series)
	})
}
