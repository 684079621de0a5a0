package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fabricdesk/fabricdesk/internal/platform/httpx"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fabrics", h.listFabrics)
	r.Post("/fabrics", h.createFabric)
	r.Get("/fabrics/{id}", h.showFabric)
	r.Delete("/fabrics/{id}", h.deleteFabric)
	r.Post("/fabrics/{id}/rolls", h.addRoll)
	r.Delete("/fabrics/{id}/rolls/{rollID}", h.removeRoll)
	r.Get("/fabrics/{id}/summary", h.summary)
	r.Get("/valuation", h.valuation)
	r.Get("/stream", h.stream)
}

type createFabricRequest struct {
	MainCode string `json:"mainCode" validate:"required,max=64"`
	Name     string `json:"name" validate:"max=200"`
	Color    string `json:"color" validate:"max=100"`
}

type addRollRequest struct {
	SubCode  string        `json:"subCode" validate:"max=64"`
	Meters   shared.Number `json:"meters" validate:"gt=0"`
	Price    shared.Number `json:"price" validate:"gte=0"`
	Location string        `json:"location" validate:"max=100"`
}

type stockResponse struct {
	FabricStock
	AvgCost float64 `json:"avgCost"`
	Value   float64 `json:"value"`
}

type valuationResponse struct {
	WarehouseValuation
	Fabrics    []FabricValuation `json:"fabrics"`
	TotalValue float64           `json:"totalValue"`
}

func (h *Handler) listFabrics(w http.ResponseWriter, r *http.Request) {
	fabrics, err := h.service.ListFabrics(r.Context())
	if err != nil {
		h.logger.Error("list fabrics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fabrics)
}

func (h *Handler) createFabric(w http.ResponseWriter, r *http.Request) {
	var req createFabricRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	fabric, err := h.service.CreateFabric(r.Context(), CreateFabricInput{MainCode: req.MainCode, Name: req.Name, Color: req.Color})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fabric)
}

func (h *Handler) showFabric(w http.ResponseWriter, r *http.Request) {
	fabric, err := h.service.GetFabric(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fabric)
}

func (h *Handler) deleteFabric(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFabric(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addRoll(w http.ResponseWriter, r *http.Request) {
	var req addRollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	roll, err := h.service.AddRoll(r.Context(), chi.URLParam(r, "id"), AddRollInput{
		SubCode:  req.SubCode,
		Meters:   req.Meters.Float64(),
		Price:    req.Price.Float64(),
		Location: req.Location,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roll)
}

func (h *Handler) removeRoll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveRoll(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "rollID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.StockSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("stock summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	for i := range stock.Subcodes {
		stock.Subcodes[i].AvgPrice = shared.Round2(stock.Subcodes[i].AvgPrice)
	}
	httpx.JSON(w, http.StatusOK, stockResponse{
		FabricStock: stock,
		AvgCost:     shared.Round2(stock.AvgCost),
		Value:       shared.Round2(stock.Value),
	})
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	var strategy Strategy
	if raw := r.URL.Query().Get("strategy"); raw != "" {
		parsed, err := ParseStrategy(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		strategy = parsed
	}
	v, err := h.service.Valuation(r.Context(), strategy)
	if err != nil {
		h.logger.Error("warehouse valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	lines := make([]FabricValuation, 0, len(v.Fabrics))
	for _, line := range v.Fabrics {
		line.AvgCost = shared.Round2(line.AvgCost)
		line.Value = shared.Round2(line.Value)
		lines = append(lines, line)
	}
	httpx.JSON(w, http.StatusOK, valuationResponse{
		WarehouseValuation: v,
		Fabrics:            lines,
		TotalValue:         shared.Round2(v.TotalValue),
	})
}

// stream pushes the full fabric list as a server-sent event after every
// fabric change.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := make(chan []Fabric, 1)
	err := h.service.SubscribeFabrics(ctx, func(ctx context.Context, fabrics []Fabric) {
		select {
		case updates <- fabrics:
		case <-ctx.Done():
		}
	})
	if err != nil {
		h.logger.Error("subscribe fabrics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case fabrics := <-updates:
			payload, err := json.Marshal(fabrics)
			if err != nil {
				h.logger.Error("encode fabric event", slog.Any("error", err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: fabrics\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
