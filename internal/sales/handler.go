package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fabricdesk/fabricdesk/internal/platform/httpx"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Handler handles HTTP requests for sales orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.show)
	r.Put("/orders/{id}", h.update)
	r.Delete("/orders/{id}", h.delete)
	r.Post("/orders/{id}/status", h.changeStatus)
}

type itemRequest struct {
	FabricCode    string        `json:"fabricCode" validate:"required,max=64"`
	RollID        string        `json:"rollId" validate:"required"`
	SubCode       string        `json:"subCode" validate:"max=64"`
	Meters        shared.Number `json:"meters" validate:"gt=0"`
	PricePerMeter shared.Number `json:"pricePerMeter" validate:"gte=0"`
}

type createRequest struct {
	Customer string        `json:"customer" validate:"required,max=200"`
	Date     string        `json:"date" validate:"required,datetime=2006-01-02"`
	VATRate  shared.Number `json:"vatRate" validate:"gte=0,lte=100"`
	Status   string        `json:"status" validate:"omitempty,oneof=Pending Completed"`
	Items    []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateRequest struct {
	Customer *string        `json:"customer,omitempty" validate:"omitempty,max=200"`
	Date     *string        `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	VATRate  *shared.Number `json:"vatRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status   *string        `json:"status,omitempty" validate:"omitempty,oneof=Pending Completed Cancelled"`
	Items    *[]itemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Completed Cancelled"`
}

type orderResponse struct {
	Order
	Subtotal   float64 `json:"subtotal"`
	VATAmount  float64 `json:"vatAmount"`
	FinalPrice float64 `json:"finalPrice"`
}

func present(o Order) orderResponse {
	return orderResponse{
		Order:      o,
		Subtotal:   shared.Round2(o.Subtotal),
		VATAmount:  shared.Round2(o.VATAmount),
		FinalPrice: shared.Round2(o.FinalPrice),
	}
}

func toItemInputs(reqs []itemRequest) []ItemInput {
	items := make([]ItemInput, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, ItemInput{
			FabricCode:    it.FabricCode,
			RollID:        it.RollID,
			SubCode:       it.SubCode,
			Meters:        it.Meters.Float64(),
			PricePerMeter: it.PricePerMeter.Float64(),
		})
	}
	return items
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, to, err := httpx.DateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{From: from, To: to, Customer: r.URL.Query().Get("customer")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Status = status
	}
	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, present(o))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(o))
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
	o, err := h.service.Create(r.Context(), CreateInput{
		Customer: req.Customer,
		Date:     date,
		VATRate:  req.VATRate.Float64(),
		Status:   Status(req.Status),
		Items:    toItemInputs(req.Items),
	})
	if err != nil {
		h.logger.Error("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, present(o))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := UpdateInput{Customer: req.Customer}
	if req.Date != nil {
		date, err := httpx.ParseDate(*req.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.Date = &date
	}
	if req.VATRate != nil {
		rate := req.VATRate.Float64()
		input.VATRate = &rate
	}
	if req.Status != nil {
		status := Status(*req.Status)
		input.Status = &status
	}
	if req.Items != nil {
		items := toItemInputs(*req.Items)
		input.Items = &items
	}
	o, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(o))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), Status(req.Status))
	if err != nil {
		h.logger.Error("change order status", slog.String("order_id", chi.URLParam(r, "id")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(o))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
