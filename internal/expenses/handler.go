package expenses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fabricdesk/fabricdesk/internal/platform/httpx"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Handler serves expense endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	Description string        `json:"description" validate:"required,max=500"`
	Category    string        `json:"category" validate:"max=100"`
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Amount      shared.Number `json:"amount" validate:"gte=0"`
	VATRate     shared.Number `json:"vatRate" validate:"gte=0,lte=100"`
}

type expenseResponse struct {
	Expense
	Subtotal   float64 `json:"subtotal"`
	VATAmount  float64 `json:"vatAmount"`
	FinalPrice float64 `json:"finalPrice"`
}

func present(e Expense) expenseResponse {
	return expenseResponse{
		Expense:    e,
		Subtotal:   shared.Round2(e.Subtotal),
		VATAmount:  shared.Round2(e.VATAmount),
		FinalPrice: shared.Round2(e.FinalPrice),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, to, err := httpx.DateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), ListFilter{From: from, To: to, Category: r.URL.Query().Get("category")})
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, present(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Create(r.Context(), CreateInput{
		Description: req.Description,
		Category:    req.Category,
		Date:        date,
		Amount:      req.Amount.Float64(),
		VATRate:     req.VATRate.Float64(),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, present(e))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
