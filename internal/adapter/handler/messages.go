package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/service"
)

var validate = validator.New()

type OrderEventRequest struct {
	RequestID string `json:"request_id" validate:"max=128"`
	OrderID   int64  `json:"order_id" validate:"gt=0"`
	ActorID   *int64 `json:"actor_id,omitempty" validate:"omitempty,gt=0"`
}

type ReconcileResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Summary *domain.OrderSummary `json:"summary,omitempty"`
}

type BatchRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1,max=500,dive,gt=0"`
	ActorID  *int64  `json:"actor_id,omitempty" validate:"omitempty,gt=0"`
	Reverse  bool    `json:"reverse"`
}

type BatchResult struct {
	OrderID int64               `json:"order_id"`
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Summary domain.OrderSummary `json:"summary"`
}

type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

type AdjustStockRequest struct {
	Material        string `json:"material" validate:"required,oneof=profiles steel hardware"`
	ArticleID       int64  `json:"article_id" validate:"gt=0"`
	ColorID         int64  `json:"color_id" validate:"gte=0"`
	WarehouseType   string `json:"warehouse_type" validate:"omitempty,oneof=alu pvc"`
	SubWarehouse    string `json:"sub_warehouse" validate:"max=32"`
	Quantity        int    `json:"quantity" validate:"gte=0"`
	ExpectedVersion int    `json:"expected_version" validate:"gte=0"`
	ActorID         *int64 `json:"actor_id,omitempty" validate:"omitempty,gt=0"`
	Reason          string `json:"reason" validate:"required,max=512"`
}

func (r AdjustStockRequest) check() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if domain.Material(r.Material) == domain.MaterialHardware && r.WarehouseType == "" {
		return errors.New("hardware stock needs a warehouse_type")
	}
	return nil
}

func (r AdjustStockRequest) scope() domain.ScopeKey {
	return domain.ScopeKey{
		Material:      domain.Material(r.Material),
		ArticleID:     r.ArticleID,
		ColorID:       r.ColorID,
		WarehouseType: r.WarehouseType,
		SubWarehouse:  r.SubWarehouse,
	}
}

type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		fields[ve.Field()] = ve.Tag()
	}
	return fields
}

// describeError maps a service failure to an HTTP status and a message safe
// to hand back to callers.
func describeError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, service.ErrStockNotFound):
		return http.StatusNotFound, "stock record not found"
	case errors.Is(err, service.ErrStockConflict):
		return http.StatusConflict, "stock changed concurrently, retry"
	case errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid quantity"
	case errors.Is(err, service.ErrUnknownMaterial):
		return http.StatusBadRequest, "unknown material"
	case errors.Is(err, service.ErrLaneClosed):
		return http.StatusServiceUnavailable, "shutting down"
	default:
		return http.StatusInternalServerError, "reconciliation failed"
	}
}

func successMessage(direction domain.Direction) string {
	if direction == domain.DirectionReverse {
		return "stock returned"
	}
	return "stock issued"
}
