package http

import (
	"encoding/json"
	"errors"
	"net/http"

	analysis "intelliwatt/internal/analysis/domain"
	"intelliwatt/internal/audit"
	"intelliwatt/internal/auth"
	"intelliwatt/internal/calendar"
	meterdataapp "intelliwatt/internal/meterdata/application"
	meterdata "intelliwatt/internal/meterdata/domain"
	"intelliwatt/internal/simulator"
)

// SimulateRequestDTO is the wire shape for manual usage simulation.
type SimulateRequestDTO struct {
	ESIID      string         `json:"esiid"`
	Meter      string         `json:"meter"`
	Year       int            `json:"year"`
	BillEndDay int            `json:"billEndDay,omitempty"`
	Monthly    []MonthKwhDTO  `json:"monthly,omitempty"`
	AnnualKwh  float64        `json:"annualKwh,omitempty"`
	StartDate  string         `json:"startDate,omitempty"`
	EndDate    string         `json:"endDate,omitempty"`
	Travel     []DateRangeDTO `json:"travel,omitempty"`
}

// MonthKwhDTO is one month total: month is 1..12.
type MonthKwhDTO struct {
	Month int     `json:"month"`
	KWh   float64 `json:"kwh"`
}

// SimulateHandler converts manual monthly or annual usage totals into
// stored synthetic intervals.
type SimulateHandler struct {
	service     *meterdataapp.IngestApplicationService
	cal         *calendar.Resolver
	auditLogger audit.Logger
}

// NewSimulateHandler constructs the handler.
func NewSimulateHandler(service *meterdataapp.IngestApplicationService, cal *calendar.Resolver, auditLogger audit.Logger) (*SimulateHandler, error) {
	if service == nil {
		return nil, errors.New("simulate handler: nil ingest service")
	}
	if cal == nil {
		return nil, errors.New("simulate handler: nil calendar resolver")
	}
	return &SimulateHandler{service: service, cal: cal, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/usage/simulate.
func (h *SimulateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var dto SimulateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if dto.ESIID == "" {
		http.Error(w, "esiid required", http.StatusBadRequest)
		return
	}
	if dto.Meter == "" {
		dto.Meter = "1"
	}

	opts := simulator.Options{
		ESIID:      dto.ESIID,
		Meter:      dto.Meter,
		Year:       dto.Year,
		BillEndDay: dto.BillEndDay,
	}
	for _, tr := range dto.Travel {
		opts.Travel = append(opts.Travel, analysis.DateRange{Start: tr.Start, End: tr.End})
	}

	switch {
	case len(dto.Monthly) > 0:
		entries := make([]simulator.MonthlyEntry, 0, len(dto.Monthly))
		for _, entry := range dto.Monthly {
			entries = append(entries, simulator.MonthlyEntry{Month: entry.Month, KWh: entry.KWh})
		}
		generated, err := simulator.MonthlyToIntervals(h.cal, entries, opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.store(w, r, dto, generated)
	case dto.AnnualKwh > 0:
		if dto.StartDate == "" || dto.EndDate == "" {
			http.Error(w, "startDate/endDate required for annual simulation", http.StatusBadRequest)
			return
		}
		generated, err := simulator.AnnualToIntervals(h.cal, dto.AnnualKwh, dto.StartDate, dto.EndDate, opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.store(w, r, dto, generated)
	default:
		http.Error(w, "monthly entries or annualKwh required", http.StatusBadRequest)
	}
}

func (h *SimulateHandler) store(w http.ResponseWriter, r *http.Request, dto SimulateRequestDTO, generated []meterdata.CanonicalInterval) {
	result, err := h.service.IngestSimulated(r.Context(), generated)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"source":    string(result.Source),
		"intervals": result.Accepted,
	})

	if h.auditLogger != nil {
		meta, _ := json.Marshal(map[string]any{
			"year":      dto.Year,
			"intervals": result.Accepted,
		})
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "usage.simulate",
			ResourceType: "intervals",
			ESIID:        dto.ESIID,
			Metadata:     meta,
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
}
