package http

import (
	"errors"
	"net/http"
	"strconv"

	"floors-indexer/internal/domain"
	"floors-indexer/internal/service"
	"floors-indexer/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"
)

type Handler struct {
	log logger.Logger
	svc *service.Indexer
}

func NewHandler(log logger.Logger, svc *service.Indexer) *Handler {
	if svc == nil {
		panic("indexer service cannot be nil")
	}
	return &Handler{log: log, svc: svc}
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness probes every external dependency the indexer needs to serve
// coherent data.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CheckDependency(r.Context()); err != nil {
		_ = httputil.Error(w, r, http.StatusServiceUnavailable, "not_ready", err.Error(), nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// GET /api/markets/{id}/stats
func (h *Handler) MarketStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rs, err := h.svc.GetMarketStats(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrMarketNotFound) {
			_ = httputil.Error(w, r, http.StatusNotFound, "not_found", "no stats for market", nil)
			return
		}
		h.log.Errorf("MarketStats handler error for %s: %v", id, err)
		_ = httputil.Error(w, r, http.StatusInternalServerError, "internal", "failed to load stats", nil)
		return
	}

	_ = httputil.JSON(w, http.StatusOK, rs, nil)
}

// GET /api/markets/{id}/candles?period=ONE_HOUR&from=&to=
func (h *Handler) MarketCandles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	period := domain.Period(q.Get("period"))
	if period.Seconds() == 0 {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request",
			"period must be one of ONE_HOUR, FOUR_HOURS, ONE_DAY", nil)
		return
	}

	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "from must be a unix timestamp", nil)
		return
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "to must be a unix timestamp", nil)
		return
	}

	candles, err := h.svc.GetCandles(r.Context(), id, period, from, to)
	if err != nil {
		h.log.Errorf("MarketCandles handler error for %s: %v", id, err)
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	_ = httputil.JSON(w, http.StatusOK, candles, nil)
}

// GET /api/global
func (h *Handler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.GetGlobalStats(r.Context())
	if err != nil {
		h.log.Errorf("GlobalStats handler error: %v", err)
		_ = httputil.Error(w, r, http.StatusInternalServerError, "internal", "failed to load global stats", nil)
		return
	}

	_ = httputil.JSON(w, http.StatusOK, gs, nil)
}
