package handler

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/service"
	"github.com/rl1809/goods-issue/internal/port"
)

const (
	requestIDHeader     = "X-Request-ID"
	correlationIDHeader = "X-Correlation-ID"
)

type HTTPHandler struct {
	reconciler  *service.ReconcileService
	coordinator *service.Coordinator
	stock       *service.StockService
	history     port.HistoryReader
	logger      logrus.FieldLogger
}

type orderEventBody struct {
	RequestID string `json:"request_id"`
	ActorID   *int64 `json:"actor_id,omitempty"`
}

func NewHTTPHandler(
	reconciler *service.ReconcileService,
	coordinator *service.Coordinator,
	stock *service.StockService,
	history port.HistoryReader,
	logger logrus.FieldLogger,
) *HTTPHandler {
	return &HTTPHandler{
		reconciler:  reconciler,
		coordinator: coordinator,
		stock:       stock,
		history:     history,
		logger:      logger,
	}
}

// NewRouter wires the API routes. metrics may be nil.
func NewRouter(h *HTTPHandler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(h.correlationID, h.errorLogger, gin.Recovery())

	r.GET("/health", h.HealthCheck)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	api.POST("/orders/:id/complete", h.CompleteOrder)
	api.POST("/orders/:id/regress", h.RegressOrder)
	api.GET("/orders/:id/history", h.OrderHistory)
	api.POST("/reconcile/batch", h.ReconcileBatch)
	api.POST("/stock/adjust", h.AdjustStock)
	return r
}

func (h *HTTPHandler) correlationID(c *gin.Context) {
	cid := c.GetHeader(correlationIDHeader)
	if cid == "" {
		cid = uuid.NewString()
	}
	c.Set("correlation_id", cid)
	c.Header(correlationIDHeader, cid)
	c.Next()
}

func (h *HTTPHandler) errorLogger(c *gin.Context) {
	c.Next()

	if len(c.Errors) > 0 {
		h.logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString("correlation_id"),
			"path":           c.FullPath(),
		}).Error(c.Errors.String())
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) CompleteOrder(c *gin.Context) {
	h.orderEvent(c, domain.DirectionForward)
}

func (h *HTTPHandler) RegressOrder(c *gin.Context) {
	h.orderEvent(c, domain.DirectionReverse)
}

func (h *HTTPHandler) orderEvent(c *gin.Context, direction domain.Direction) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	// The body is optional; chunked requests carry no content length.
	var body orderEventBody
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
			return
		}
	}

	req := OrderEventRequest{RequestID: body.RequestID, OrderID: orderID, ActorID: body.ActorID}
	if id := c.GetHeader(requestIDHeader); id != "" {
		req.RequestID = id
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "missing required fields", Fields: validationFields(err)})
		return
	}

	var (
		summary domain.OrderSummary
		err     error
	)
	if direction == domain.DirectionForward {
		summary, err = h.reconciler.OrderReachedCompletion(c.Request.Context(), req.RequestID, req.OrderID, req.ActorID)
	} else {
		summary, err = h.reconciler.OrderRegressedFromCompletion(c.Request.Context(), req.RequestID, req.OrderID, req.ActorID)
	}
	if err != nil {
		status, message := describeError(err)
		if status >= http.StatusInternalServerError {
			c.Error(err)
		}
		c.JSON(status, ReconcileResponse{Success: false, Message: message, Summary: &summary})
		return
	}

	c.JSON(http.StatusOK, ReconcileResponse{Success: true, Message: successMessage(direction), Summary: &summary})
}

func (h *HTTPHandler) OrderHistory(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var entries []domain.HistoryEntry
	for _, ref := range []string{domain.OrderReference(orderID), domain.OrderReversalReference(orderID)} {
		found, err := h.history.ListHistory(c.Request.Context(), ref)
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
			return
		}
		entries = append(entries, found...)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "entries": entries})
}

func (h *HTTPHandler) ReconcileBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "missing required fields", Fields: validationFields(err)})
		return
	}

	c.JSON(http.StatusOK, BatchResponse{Results: runBatch(c.Request.Context(), h.coordinator, &req)})
}

func (h *HTTPHandler) AdjustStock(c *gin.Context) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if err := req.check(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error(), Fields: validationFields(err)})
		return
	}

	entry, err := h.stock.Adjust(c.Request.Context(), service.AdjustRequest{
		Scope:           req.scope(),
		Quantity:        req.Quantity,
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         req.ActorID,
		Reason:          req.Reason,
	})
	if err != nil {
		status, message := describeError(err)
		if status >= http.StatusInternalServerError {
			c.Error(err)
		}
		c.JSON(status, ErrorResponse{Message: message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "entry": entry})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err == nil && id <= 0 {
		err = errors.New("order id must be positive")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid order id"})
		return 0, false
	}
	return id, true
}
