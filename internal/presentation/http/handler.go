package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	appcheckout "github.com/shoplite/checkout-engine/internal/application/checkout"
	domcart "github.com/shoplite/checkout-engine/internal/domain/cart"
	domorder "github.com/shoplite/checkout-engine/internal/domain/order"
	"github.com/shoplite/checkout-engine/internal/observability"
	"github.com/shoplite/checkout-engine/internal/observability/logctx"
	"github.com/shoplite/checkout-engine/internal/pkg/cache"
)

const (
	componentHTTPHandler = "http_server"
	orderCacheTTL        = 30 * time.Second
	cacheOpOrder         = "order"
)

type Handler struct {
	checkout *appcheckout.Orchestrator
	cache    cache.Cache
	log      observability.Logger
	tel      observability.Observability
}

func NewHandler(orchestrator *appcheckout.Orchestrator, readCache cache.Cache, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		checkout: orchestrator,
		cache:    readCache,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(ObservabilityMiddleware(h.log, h.tel))

	r.Post("/checkout", h.handleCheckout)
	r.Get("/orders/{id}", h.handleGetOrder)
	r.Post("/orders/{id}/reconcile", h.handleReconcile)
	r.Get("/health", h.handleHealth)

	return r
}

type cartLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type checkoutRequest struct {
	CustomerID     string            `json:"customer_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	Lines          []cartLineRequest `json:"lines"`
	PaymentMethod  string            `json:"payment_method"`
	ShippingCode   string            `json:"shipping_code"`
}

type checkoutResponse struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	RedirectTarget string `json:"redirect_target,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, appcheckout.CodeValidation, err.Error())
		return
	}

	lines := make([]domcart.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domcart.Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	snapshot, err := domcart.NewSnapshot(lines)
	if err != nil {
		writeError(w, http.StatusBadRequest, appcheckout.CodeValidation, err.Error())
		return
	}

	result, err := h.checkout.CreateOrder(r.Context(), appcheckout.CreateOrderInput{
		IdempotencyKey: req.IdempotencyKey,
		CustomerID:     req.CustomerID,
		Cart:           snapshot,
		PaymentMethod:  req.PaymentMethod,
		ShippingOption: shippingOptionFor(req.ShippingCode),
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:        result.OrderID,
		Status:         string(result.Status),
		TrackingNumber: result.TrackingNumber,
		RedirectTarget: result.RedirectTarget,
	})
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type orderResponse struct {
	OrderID        string              `json:"order_id"`
	Status         string              `json:"status"`
	Items          []orderItemResponse `json:"items"`
	Subtotal       int64               `json:"subtotal"`
	Tax            int64               `json:"tax"`
	ShippingCost   int64               `json:"shipping_cost"`
	Total          int64               `json:"total"`
	Currency       string              `json:"currency"`
	PaymentMethod  string              `json:"payment_method"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	LabelPending   bool                `json:"label_pending,omitempty"`
	FailureReason  string              `json:"failure_reason,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if body, ok := h.cachedOrder(r.Context(), orderID); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	entity, err := h.checkout.GetOrder(r.Context(), orderID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	resp := orderResponseFrom(entity)
	h.storeOrder(r.Context(), entity, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if err := h.checkout.ReconcilePendingPayment(r.Context(), orderID); err != nil {
		writeCheckoutError(w, err)
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), h.cache.GenerateKey(cacheOpOrder, orderID))
	}

	entity, err := h.checkout.GetOrder(r.Context(), orderID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponseFrom(entity))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// cachedOrder serves terminal orders from the read cache. Errors degrade to a
// miss; the repository stays the source of truth.
func (h *Handler) cachedOrder(ctx context.Context, orderID string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	value, err := h.cache.Get(ctx, h.cache.GenerateKey(cacheOpOrder, orderID))
	if err != nil {
		logctx.FromOr(ctx, h.log).Warn("order_cache_read_failed",
			observability.F("order_id", orderID),
			observability.F("error", err),
		)
		return nil, false
	}
	if value == "" {
		return nil, false
	}
	return []byte(value), true
}

func (h *Handler) storeOrder(ctx context.Context, entity *domorder.Order, resp orderResponse) {
	if h.cache == nil {
		return
	}
	// Pending orders change on reconciliation, so only settled ones are cached.
	switch entity.Status {
	case domorder.StatusPending, domorder.StatusConfirmed, domorder.StatusProcessing:
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, h.cache.GenerateKey(cacheOpOrder, entity.ID), string(body), orderCacheTTL); err != nil {
		logctx.FromOr(ctx, h.log).Warn("order_cache_write_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err),
		)
	}
}

func orderResponseFrom(entity *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(entity.Items))
	for _, item := range entity.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderResponse{
		OrderID:        entity.ID,
		Status:         string(entity.Status),
		Items:          items,
		Subtotal:       entity.Subtotal,
		Tax:            entity.Tax,
		ShippingCost:   entity.ShippingCost,
		Total:          entity.Total,
		Currency:       entity.Currency,
		PaymentMethod:  entity.PaymentMethod,
		TrackingNumber: entity.TrackingNumber,
		LabelPending:   entity.LabelPending,
		FailureReason:  entity.FailureReason,
		CreatedAt:      entity.CreatedAt,
	}
}

// shippingOptionFor maps the public shipping codes to priced options.
func shippingOptionFor(code string) appcheckout.ShippingOption {
	switch code {
	case "express":
		return appcheckout.ShippingOption{Code: "express", Cost: 9900}
	case "free":
		return appcheckout.ShippingOption{Code: "free", Cost: 0}
	default:
		return appcheckout.ShippingOption{Code: "standard", Cost: 4900, FreeOver: 100000}
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeCheckoutError maps stable use-case error codes onto HTTP statuses.
func writeCheckoutError(w http.ResponseWriter, err error) {
	ce, ok := appcheckout.AsError(err)
	if !ok {
		if errors.Is(err, domorder.ErrNotFound) {
			writeError(w, http.StatusNotFound, appcheckout.CodeNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, appcheckout.CodeInternal, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch ce.Code {
	case appcheckout.CodeValidation, appcheckout.CodeUnsupportedMethod:
		status = http.StatusBadRequest
	case appcheckout.CodeInsufficientStock, appcheckout.CodeContention:
		status = http.StatusConflict
	case appcheckout.CodePaymentDeclined:
		status = http.StatusPaymentRequired
	case appcheckout.CodeAborted:
		status = http.StatusRequestTimeout
	case appcheckout.CodeNotFound:
		status = http.StatusNotFound
	}
	writeError(w, status, ce.Code, ce.Message)
}
