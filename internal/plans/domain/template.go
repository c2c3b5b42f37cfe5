package plans

import (
	"errors"
	"strings"
	"unicode"
)

// KeyType ranks how a plan-document template was identified.
type KeyType string

const (
	KeyTypePuctCertPlusVersion KeyType = "PUCT_CERT_PLUS_VERSION"
	KeyTypePdfSha256           KeyType = "PDF_SHA256"
	KeyTypeFallbackMetadata    KeyType = "FALLBACK_METADATA"
)

// Confidence levels per key type. The ordering is load-bearing: callers
// use PrimaryKey for exact dedup and LookupKeys (strongest first) for
// fallback matching when the primary key misses.
const (
	confidenceCertVersion = 95
	confidenceSha256      = 85
	confidenceFallback    = 55
)

// TemplateInput carries whatever identity signals a plan document (EFL or
// equivalent) arrived with. Any subset may be present.
type TemplateInput struct {
	PuctCertificate string
	DocumentVersion string
	PdfSha256       string

	Provider string
	Plan     string
	Term     string
	Utility  string
	Offer    string
}

// TemplateIdentityKey is the deterministic identity of a plan template.
// It is recomputed from scratch whenever inputs change, never mutated.
type TemplateIdentityKey struct {
	PrimaryKey string   `json:"primaryKey"`
	KeyType    KeyType  `json:"keyType"`
	Confidence int      `json:"confidence"`
	LookupKeys []string `json:"lookupKeys"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ErrNoIdentitySignals means the input carried nothing to key on.
var ErrNoIdentitySignals = errors.New("plans: no identity signals present")

// TemplateKey derives the identity key for a plan document. Precedence,
// strongest first:
//  1. normalized PUCT certificate + document version (confidence 95),
//  2. document content hash (confidence 85), with the fallback-metadata
//     key appended to LookupKeys when available,
//  3. normalized provider/plan/term/utility/offer metadata (confidence
//     55), with a warning that dedup may be imperfect.
func TemplateKey(in TemplateInput) (TemplateIdentityKey, error) {
	cert := NormalizeIdentity(in.PuctCertificate)
	version := NormalizeIdentity(in.DocumentVersion)
	hash := strings.ToLower(strings.TrimSpace(in.PdfSha256))
	fallback := fallbackKey(in)

	if cert != "" && version != "" {
		key := TemplateIdentityKey{
			PrimaryKey: "puct:" + cert + "|ver:" + version,
			KeyType:    KeyTypePuctCertPlusVersion,
			Confidence: confidenceCertVersion,
		}
		key.LookupKeys = append(key.LookupKeys, key.PrimaryKey)
		if hash != "" {
			key.LookupKeys = append(key.LookupKeys, "sha256:"+hash)
		}
		if fallback != "" {
			key.LookupKeys = append(key.LookupKeys, fallback)
		}
		return key, nil
	}

	if hash != "" {
		key := TemplateIdentityKey{
			PrimaryKey: "sha256:" + hash,
			KeyType:    KeyTypePdfSha256,
			Confidence: confidenceSha256,
		}
		key.LookupKeys = append(key.LookupKeys, key.PrimaryKey)
		if fallback != "" {
			key.LookupKeys = append(key.LookupKeys, fallback)
		}
		return key, nil
	}

	if fallback != "" {
		return TemplateIdentityKey{
			PrimaryKey: fallback,
			KeyType:    KeyTypeFallbackMetadata,
			Confidence: confidenceFallback,
			LookupKeys: []string{fallback},
			Warnings:   []string{"keyed on fallback metadata; dedup may be imperfect"},
		}, nil
	}

	return TemplateIdentityKey{}, ErrNoIdentitySignals
}

func fallbackKey(in TemplateInput) string {
	fields := []string{
		NormalizeIdentity(in.Provider),
		NormalizeIdentity(in.Plan),
		NormalizeIdentity(in.Term),
		NormalizeIdentity(in.Utility),
		NormalizeIdentity(in.Offer),
	}
	empty := true
	for _, f := range fields {
		if f != "" {
			empty = false
			break
		}
	}
	if empty {
		return ""
	}
	return "fallback:" + strings.Join(fields, "|")
}

// NormalizeIdentity canonicalizes a string identity field: lowercase,
// strip everything that is neither alphanumeric nor whitespace, collapse
// whitespace runs to single spaces.
func NormalizeIdentity(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
