package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/common"
)

// Handler exposes order lifecycle endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the order endpoints on r. The submit middlewares wrap only
// the submit endpoint.
func (h *Handler) Routes(r chi.Router, submit ...func(http.Handler) http.Handler) {
	r.Post("/orders", h.Create)
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/items", h.AddItem)
		r.Post("/bundles", h.AddBundle)
		r.Put("/tax", h.SetTax)
		r.With(submit...).Post("/submit", h.Submit)
	})
}

type createOrderRequest struct {
	Customer string `json:"customer" validate:"required,max=140"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type addItemRequest struct {
	ItemCode string          `json:"itemCode" validate:"required,max=140"`
	UOM      string          `json:"uom" validate:"max=40"`
	Qty      decimal.Decimal `json:"qty"`
	Rate     decimal.Decimal `json:"rate"`
}

type addBundleRequest struct {
	Bundle string `json:"bundle" validate:"required,max=140"`
	Qty    int    `json:"qty" validate:"required,min=1,max=10000"`
}

type setTaxRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Create handles POST /api/v1/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var req createOrderRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.service.Create(r.Context(), req.Customer, req.Currency)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": o})
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// AddItem handles POST /api/v1/orders/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.service.AddItem(r.Context(), id, ItemInput{ItemCode: req.ItemCode, UOM: req.UOM, Qty: req.Qty, Rate: req.Rate})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// AddBundle handles POST /api/v1/orders/{id}/bundles.
func (h *Handler) AddBundle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req addBundleRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.service.AddBundle(r.Context(), id, req.Bundle, req.Qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res.Order, "summary": res.Summary})
}

// SetTax handles PUT /api/v1/orders/{id}/tax.
func (h *Handler) SetTax(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req setTaxRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.service.SetTax(r.Context(), id, req.Amount)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// Submit handles POST /api/v1/orders/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Submit(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res.Order, "validation": res.Report})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}
