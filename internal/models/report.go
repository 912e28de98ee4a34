package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PhotoKind discriminates the three ways an item photo can be referenced.
type PhotoKind int

const (
	PhotoNone PhotoKind = iota
	PhotoLocal
	PhotoEmbedded
	PhotoRemote
)

// PhotoRef is a tagged photo reference: a local file path, an embedded
// base64 payload, or an already-stored remote URL. Exactly one of the
// value fields is meaningful for a given kind.
type PhotoRef struct {
	Kind PhotoKind
	Path string // PhotoLocal
	Data string // PhotoEmbedded, base64 with or without data: prefix
	URL  string // PhotoRemote
}

// LocalPhoto references an image on the device filesystem.
func LocalPhoto(path string) PhotoRef { return PhotoRef{Kind: PhotoLocal, Path: path} }

// EmbeddedPhoto references an image carried inline as base64.
func EmbeddedPhoto(data string) PhotoRef { return PhotoRef{Kind: PhotoEmbedded, Data: data} }

// RemotePhoto references an image already stored server-side.
func RemotePhoto(url string) PhotoRef { return PhotoRef{Kind: PhotoRemote, URL: url} }

// IsZero reports whether the reference carries no photo at all.
func (r PhotoRef) IsZero() bool { return r.Kind == PhotoNone }

// LineItem is one observation recorded during an inspection. Unit price and
// unit of measure are snapshotted from the selected catalog entry at add time;
// Subtotal is always Quantity x UnitPrice and never mutated independently.
type LineItem struct {
	Photo       PhotoRef        `json:"-"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SignatureArtifact is a captured owner signature in canonical embeddable
// form, with a best-effort local cache path.
type SignatureArtifact struct {
	Image     string // canonical data:image/... payload
	LocalPath string // cache copy, may be empty if the write failed
}

// IsZero reports whether no signature has been captured.
func (a SignatureArtifact) IsZero() bool { return a.Image == "" }

// ExchangeRateSnapshot is the UF-to-CLP rate fetched once per summary session.
// When Success is false the rate must not be used for any CLP computation.
type ExchangeRateSnapshot struct {
	Success bool      `json:"success"`
	Rate    float64   `json:"rate"`
	Date    time.Time `json:"date"`
	Err     string    `json:"error,omitempty"`
}

// ReportSubmission is the transient aggregate handed to the submission
// pipeline. It exists only for the duration of one finalize sequence.
type ReportSubmission struct {
	InspectionID string
	Inspection   *Inspection
	Items        []LineItem
	Signature    SignatureArtifact
	Rate         ExchangeRateSnapshot
	SignerName   string
}
