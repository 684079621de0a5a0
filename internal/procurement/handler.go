package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fabricdesk/fabricdesk/internal/platform/httpx"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Handler manages purchase endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/purchases", h.list)
	r.Post("/purchases", h.create)
	r.Get("/purchases/{id}", h.show)
	r.Put("/purchases/{id}", h.update)
	r.Delete("/purchases/{id}", h.delete)
}

type itemRequest struct {
	FabricCode    string        `json:"fabricCode" validate:"required,max=64"`
	SubCode       string        `json:"subCode" validate:"max=64"`
	Meters        shared.Number `json:"meters" validate:"gt=0"`
	PricePerMeter shared.Number `json:"pricePerMeter" validate:"gte=0"`
}

type createRequest struct {
	Supplier         string        `json:"supplier" validate:"required,max=200"`
	Date             string        `json:"date" validate:"required,datetime=2006-01-02"`
	VATRate          shared.Number `json:"vatRate" validate:"gte=0,lte=100"`
	Items            []itemRequest `json:"items" validate:"required,min=1,dive"`
	ReceiveIntoStock bool          `json:"receiveIntoStock"`
}

type updateRequest struct {
	Supplier *string        `json:"supplier,omitempty" validate:"omitempty,max=200"`
	Date     *string        `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	VATRate  *shared.Number `json:"vatRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Items    *[]itemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

func toItemInputs(reqs []itemRequest) []ItemInput {
	items := make([]ItemInput, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, ItemInput{
			FabricCode:    it.FabricCode,
			SubCode:       it.SubCode,
			Meters:        it.Meters.Float64(),
			PricePerMeter: it.PricePerMeter.Float64(),
		})
	}
	return items
}

type purchaseResponse struct {
	Purchase
	Subtotal   float64 `json:"subtotal"`
	VATAmount  float64 `json:"vatAmount"`
	FinalPrice float64 `json:"finalPrice"`
}

func present(p Purchase) purchaseResponse {
	return purchaseResponse{
		Purchase:   p,
		Subtotal:   shared.Round2(p.Subtotal),
		VATAmount:  shared.Round2(p.VATAmount),
		FinalPrice: shared.Round2(p.FinalPrice),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, to, err := httpx.DateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	purchases, err := h.service.List(r.Context(), ListFilter{From: from, To: to, Supplier: r.URL.Query().Get("supplier")})
	if err != nil {
		h.logger.Error("list purchases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, present(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(p))
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
	p, err := h.service.Create(r.Context(), CreateInput{
		Supplier:         req.Supplier,
		Date:             date,
		VATRate:          req.VATRate.Float64(),
		Items:            toItemInputs(req.Items),
		ReceiveIntoStock: req.ReceiveIntoStock,
	})
	if err != nil {
		h.logger.Error("create purchase", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, present(p))
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
	input := UpdateInput{Supplier: req.Supplier}
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
	if req.Items != nil {
		items := toItemInputs(*req.Items)
		input.Items = &items
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
