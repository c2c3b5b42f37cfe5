package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	analysis "intelliwatt/internal/analysis/domain"
	"intelliwatt/internal/audit"
	"intelliwatt/internal/auth"
	"intelliwatt/internal/observability/metrics"
	pricingapp "intelliwatt/internal/pricing/application"
	pricinginterfaces "intelliwatt/internal/pricing/interfaces"
	rates "intelliwatt/internal/rates/domain"
)

// EstimateRequestDTO is the wire shape for estimate and export requests.
// Callers pass either an explicit months list or the fromMonth/monthsCount
// range shorthand.
type EstimateRequestDTO struct {
	ESIID        string               `json:"esiid"`
	Meter        string               `json:"meter"`
	Months       []string             `json:"months,omitempty"`
	FromMonth    string               `json:"fromMonth,omitempty"`
	MonthsCount  int                  `json:"monthsCount,omitempty"`
	TdspCode     string               `json:"tdspCode"`
	AsOf         string               `json:"asOf,omitempty"`
	Rate         rates.RateStructure  `json:"rate"`
	PlanName     string               `json:"planName,omitempty"`
	Provider     string               `json:"provider,omitempty"`
	ExcludeDates []string             `json:"excludeDates,omitempty"`
	Travel       []DateRangeDTO       `json:"travel,omitempty"`
}

// DateRangeDTO is an inclusive YYYY-MM-DD date range.
type DateRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// EstimateHandler serves plan cost estimates and their file exports.
type EstimateHandler struct {
	service     *pricingapp.EstimateApplicationService
	auditLogger audit.Logger
}

// NewEstimateHandler constructs the handler.
func NewEstimateHandler(service *pricingapp.EstimateApplicationService, auditLogger audit.Logger) (*EstimateHandler, error) {
	if service == nil {
		return nil, errors.New("estimate handler: nil service")
	}
	return &EstimateHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/estimates and
// POST /api/v1/estimates/export.{xlsx,pdf}.
func (h *EstimateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	dto, err := decodeEstimateRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case r.URL.Path == "/api/v1/estimates":
		h.handleEstimate(w, r, dto, req)
	case strings.HasPrefix(r.URL.Path, "/api/v1/estimates/export."):
		h.handleExport(w, r, dto, req)
	default:
		http.NotFound(w, r)
	}
}

func (h *EstimateHandler) handleEstimate(w http.ResponseWriter, r *http.Request, dto EstimateRequestDTO, req pricingapp.EstimateRequest) {
	est, err := h.service.Estimate(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(est)

	h.logAudit(r, "estimate.compute", dto, string(est.Status))
}

func (h *EstimateHandler) handleExport(w http.ResponseWriter, r *http.Request, dto EstimateRequestDTO, req pricingapp.EstimateRequest) {
	format := strings.TrimPrefix(r.URL.Path, "/api/v1/estimates/export.")
	started := time.Now()

	outcome, err := h.service.EstimateDetailed(r.Context(), req)
	if err != nil {
		metrics.ObserveExport(format, err, time.Since(started))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report := pricinginterfaces.EstimateReport{
		ESIID:    dto.ESIID,
		Meter:    dto.Meter,
		PlanName: dto.PlanName,
		Provider: dto.Provider,
		TdspCode: dto.TdspCode,
		Estimate: outcome.Estimate,
	}
	for _, total := range outcome.MonthlyTotals {
		report.MonthlyUsed = append(report.MonthlyUsed, pricinginterfaces.MonthUsageLine{
			MonthKey:  total.MonthKey,
			TotalKwh:  total.TotalKwh,
			Intervals: total.Intervals,
		})
	}

	var payload []byte
	var contentType string
	switch format {
	case "xlsx":
		payload, err = pricinginterfaces.BuildEstimateXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		payload, err = pricinginterfaces.BuildEstimatePDF(report)
		contentType = "application/pdf"
	default:
		http.Error(w, "unsupported export format", http.StatusBadRequest)
		return
	}
	metrics.ObserveExport(format, err, time.Since(started))
	if err != nil {
		http.Error(w, "export render error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="estimate.`+format+`"`)
	_, _ = w.Write(payload)

	h.logAudit(r, "estimate.export."+format, dto, string(outcome.Estimate.Status))
}

func (h *EstimateHandler) logAudit(r *http.Request, action string, dto EstimateRequestDTO, status string) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"months":    dto.Months,
		"tdsp_code": dto.TdspCode,
		"plan_name": dto.PlanName,
		"status":    status,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "estimate",
		ESIID:        dto.ESIID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func decodeEstimateRequest(r *http.Request) (EstimateRequestDTO, error) {
	var dto EstimateRequestDTO
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return dto, errors.New("read body error")
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, &dto); err != nil {
		return dto, errors.New("invalid json")
	}
	return dto, nil
}

func (dto EstimateRequestDTO) toRequest() (pricingapp.EstimateRequest, error) {
	if dto.ESIID == "" {
		return pricingapp.EstimateRequest{}, errors.New("esiid required")
	}
	if dto.Meter == "" {
		return pricingapp.EstimateRequest{}, errors.New("meter required")
	}
	if len(dto.Months) == 0 && (dto.FromMonth == "" || dto.MonthsCount <= 0) {
		return pricingapp.EstimateRequest{}, errors.New("months or fromMonth/monthsCount required")
	}
	if dto.TdspCode == "" {
		return pricingapp.EstimateRequest{}, errors.New("tdspCode required")
	}

	var asOf time.Time
	if dto.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, dto.AsOf)
		if err != nil {
			return pricingapp.EstimateRequest{}, errors.New("asOf must be RFC3339")
		}
		asOf = parsed
	}

	opts := analysis.AggregateOptions{}
	if len(dto.ExcludeDates) > 0 {
		opts.ExcludeDateKeys = make(map[string]bool, len(dto.ExcludeDates))
		for _, date := range dto.ExcludeDates {
			opts.ExcludeDateKeys[date] = true
		}
	}
	for _, tr := range dto.Travel {
		opts.TravelRanges = append(opts.TravelRanges, analysis.DateRange{Start: tr.Start, End: tr.End})
	}

	return pricingapp.EstimateRequest{
		ESIID:       dto.ESIID,
		Meter:       dto.Meter,
		Months:      dto.Months,
		FromMonth:   dto.FromMonth,
		MonthsCount: dto.MonthsCount,
		Rate:        dto.Rate,
		TdspCode:    dto.TdspCode,
		AsOf:        asOf,
		Options:     opts,
	}, nil
}
