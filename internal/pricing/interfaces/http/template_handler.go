package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"intelliwatt/internal/audit"
	"intelliwatt/internal/auth"
	plans "intelliwatt/internal/plans/domain"
	planspostgres "intelliwatt/internal/plans/infrastructure/postgres"
)

// TemplateStore persists and resolves plan template identities.
type TemplateStore interface {
	Upsert(ctx context.Context, key plans.TemplateIdentityKey) error
	Find(ctx context.Context, key plans.TemplateIdentityKey) (*planspostgres.TemplateRecord, error)
}

// TemplateInputDTO is the wire shape for template identity signals.
type TemplateInputDTO struct {
	PuctCertificate string `json:"puctCertificate,omitempty"`
	DocumentVersion string `json:"documentVersion,omitempty"`
	PdfSha256       string `json:"pdfSha256,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Plan            string `json:"plan,omitempty"`
	Term            string `json:"term,omitempty"`
	Utility         string `json:"utility,omitempty"`
	Offer           string `json:"offer,omitempty"`
}

// TemplateHandler derives, resolves and registers plan template identities.
type TemplateHandler struct {
	store       TemplateStore
	auditLogger audit.Logger
}

// NewTemplateHandler constructs the handler.
func NewTemplateHandler(store TemplateStore, auditLogger audit.Logger) (*TemplateHandler, error) {
	if store == nil {
		return nil, errors.New("template handler: nil store")
	}
	return &TemplateHandler{store: store, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/templates/resolve and POST /api/v1/templates.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var dto TemplateInputDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	key, err := plans.TemplateKey(plans.TemplateInput{
		PuctCertificate: dto.PuctCertificate,
		DocumentVersion: dto.DocumentVersion,
		PdfSha256:       dto.PdfSha256,
		Provider:        dto.Provider,
		Plan:            dto.Plan,
		Term:            dto.Term,
		Utility:         dto.Utility,
		Offer:           dto.Offer,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch r.URL.Path {
	case "/api/v1/templates/resolve":
		record, err := h.store.Find(r.Context(), key)
		if err != nil {
			http.Error(w, "template lookup error", http.StatusInternalServerError)
			return
		}
		response := map[string]any{"identity": key, "matched": record != nil}
		if record != nil {
			response["record"] = map[string]any{
				"primaryKey": record.PrimaryKey,
				"keyType":    string(record.KeyType),
				"confidence": record.Confidence,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)

	case "/api/v1/templates":
		if err := h.store.Upsert(r.Context(), key); err != nil {
			http.Error(w, "template upsert error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(key)
		h.logAudit(r, key)

	default:
		http.NotFound(w, r)
	}
}

func (h *TemplateHandler) logAudit(r *http.Request, key plans.TemplateIdentityKey) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"key_type":   string(key.KeyType),
		"confidence": key.Confidence,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "template.register",
		ResourceType: "plan_template",
		ResourceID:   key.PrimaryKey,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
