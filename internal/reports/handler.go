package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fabricdesk/fabricdesk/internal/platform/httpx"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Handler serves report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := httpx.DateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.Summary(r.Context(), Range{From: from, To: to})
	if err != nil {
		h.logger.Error("financial summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rounded(s))
}

func rounded(s Summary) Summary {
	s.Revenue = shared.Round2(s.Revenue)
	s.COGS = shared.Round2(s.COGS)
	s.GrossProfit = shared.Round2(s.GrossProfit)
	s.PurchaseSpend = shared.Round2(s.PurchaseSpend)
	s.ExpenseTotal = shared.Round2(s.ExpenseTotal)
	s.NetProfit = shared.Round2(s.NetProfit)
	s.VATCollected = shared.Round2(s.VATCollected)
	s.VATPaid = shared.Round2(s.VATPaid)
	s.VATPayable = shared.Round2(s.VATPayable)
	s.StockValue = shared.Round2(s.StockValue)
	return s
}
