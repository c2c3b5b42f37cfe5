package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	meterdataapp "intelliwatt/internal/meterdata/application"
	meterdata "intelliwatt/internal/meterdata/domain"
)

// IngestHandler accepts raw meter-data payloads from signed webhooks.
type IngestHandler struct {
	service *meterdataapp.IngestApplicationService
}

// NewIngestHandler constructs the handler.
func NewIngestHandler(service *meterdataapp.IngestApplicationService) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest handler: nil service")
	}
	return &IngestHandler{service: service}, nil
}

// RawReadingDTO is one observation in a JSON readings batch. Timestamps
// are RFC3339; exactly one of the end / start+end / start+duration shapes
// is expected per row, mirroring the normalizer's contract.
type RawReadingDTO struct {
	End             string  `json:"end,omitempty"`
	Start           string  `json:"start,omitempty"`
	DurationMinutes int     `json:"durationMinutes,omitempty"`
	KWh             float64 `json:"kwh"`
}

// ReadingsBatchDTO is the wire shape for POST /ingest/readings: a batch of
// raw readings for one ESIID and meter.
type ReadingsBatchDTO struct {
	ESIID    string          `json:"esiid"`
	Meter    string          `json:"meter"`
	Source   string          `json:"source,omitempty"`
	Readings []RawReadingDTO `json:"readings"`
}

// ServeHTTP handles POST /ingest/smt/csv, POST /ingest/greenbutton/xml and
// POST /ingest/readings.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var result meterdataapp.IngestResult
	var err error
	switch r.URL.Path {
	case "/ingest/smt/csv":
		result, err = h.service.IngestSMTCSV(r.Context(), r.Body)
	case "/ingest/readings":
		h.handleReadingsBatch(w, r)
		return
	case "/ingest/greenbutton/xml":
		esiid := r.URL.Query().Get("esiid")
		meter := r.URL.Query().Get("meter")
		if esiid == "" {
			http.Error(w, "esiid required", http.StatusBadRequest)
			return
		}
		if meter == "" {
			meter = "1"
		}
		result, err = h.service.IngestGreenButtonXML(r.Context(), r.Body, esiid, meter)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeIngestResult(w, result)
}

func (h *IngestHandler) handleReadingsBatch(w http.ResponseWriter, r *http.Request) {
	var dto ReadingsBatchDTO
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
	if len(dto.Readings) == 0 {
		http.Error(w, "readings required", http.StatusBadRequest)
		return
	}
	source := meterdata.Source(dto.Source)
	if dto.Source == "" {
		source = meterdata.SourceManual
	}
	if !source.IsValid() {
		http.Error(w, "unknown source", http.StatusBadRequest)
		return
	}

	readings := make([]meterdata.RawReading, 0, len(dto.Readings))
	for _, row := range dto.Readings {
		raw := meterdata.RawReading{
			ESIID:    dto.ESIID,
			Meter:    dto.Meter,
			KWh:      row.KWh,
			Source:   source,
			Duration: time.Duration(row.DurationMinutes) * time.Minute,
		}
		if row.End != "" {
			end, err := time.Parse(time.RFC3339, row.End)
			if err != nil {
				http.Error(w, "end must be RFC3339", http.StatusBadRequest)
				return
			}
			raw.End = &end
		}
		if row.Start != "" {
			start, err := time.Parse(time.RFC3339, row.Start)
			if err != nil {
				http.Error(w, "start must be RFC3339", http.StatusBadRequest)
				return
			}
			raw.Start = &start
		}
		readings = append(readings, raw)
	}

	result, err := h.service.IngestReadings(r.Context(), source, readings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeIngestResult(w, result)
}

func writeIngestResult(w http.ResponseWriter, result meterdataapp.IngestResult) {
	dropped := make(map[string]int, len(result.Dropped))
	for reason, count := range result.Dropped {
		dropped[string(reason)] = count
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"source":   string(result.Source),
		"accepted": result.Accepted,
		"dropped":  dropped,
		"groups":   result.Groups,
	})
}
