package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/common"
)

const defaultPerPage = 20

// Handler exposes bundle catalog endpoints.
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

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/bundles", h.List)
	r.Get("/bundles/{code}", h.Get)
	r.Put("/bundles/{code}", h.Put)
	r.Post("/bundles/{code}/quote", h.Quote)
}

type constituentRequest struct {
	ItemCode    string          `json:"itemCode" validate:"required,max=140"`
	RegularRate decimal.Decimal `json:"regularRate"`
	Qty         decimal.Decimal `json:"qty"`
	UOM         string          `json:"uom" validate:"max=40"`
}

type putBundleRequest struct {
	Name          string               `json:"name" validate:"max=140"`
	ContainerItem string               `json:"containerItem" validate:"required,max=140"`
	ContainerUOM  string               `json:"containerUom" validate:"max=40"`
	Price         decimal.Decimal      `json:"price"`
	Constituents  []constituentRequest `json:"constituents" validate:"max=200,dive"`
}

func (req putBundleRequest) definition(code string) bundle.Definition {
	def := bundle.Definition{
		Code:          code,
		Name:          req.Name,
		ContainerItem: req.ContainerItem,
		ContainerUOM:  req.ContainerUOM,
		Price:         req.Price,
		Constituents:  make([]bundle.Constituent, 0, len(req.Constituents)),
	}
	for _, c := range req.Constituents {
		def.Constituents = append(def.Constituents, bundle.Constituent{
			ItemCode:    c.ItemCode,
			RegularRate: c.RegularRate,
			Qty:         c.Qty,
			UOM:         c.UOM,
		})
	}
	return def
}

// List handles GET /api/v1/bundles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	defs, err := h.service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, meta := common.Paginate(defs, common.ParsePagination(r, defaultPerPage))
	common.JSON(w, http.StatusOK, map[string]any{"data": page, "pagination": meta})
}

// Get handles GET /api/v1/bundles/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	def, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": def})
}

// Put handles PUT /api/v1/bundles/{code}.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	var req putBundleRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	def := req.definition(chi.URLParam(r, "code"))
	warnings, err := h.service.Put(r.Context(), def)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": def, "warnings": warnings})
}

// Quote handles POST /api/v1/bundles/{code}/quote?qty=N.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	qty := common.AtoiDefault(r.URL.Query().Get("qty"), 1)
	quote, err := h.service.Quote(r.Context(), chi.URLParam(r, "code"), qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}
