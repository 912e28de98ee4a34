// Package report accumulates one inspection report's line items. Items are
// append-only within a session: the full ordered list is submitted
// atomically at finalize time and never edited after addition.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/models"
	"github.com/rebuildcl/inspector/internal/pricing"
)

// CatalogLookup resolves a category name against the loaded price catalog.
type CatalogLookup interface {
	FindByName(name string) (models.CatalogEntry, error)
}

// ValidationError is a field-level rejection of a draft. No network call
// is ever issued for a draft that fails validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Draft holds the raw form values for one candidate line item. Quantity is
// the free-text value exactly as typed.
type Draft struct {
	Photo       models.PhotoRef
	Category    string
	Description string
	Quantity    string
}

// Builder accumulates line items for one inspection session.
type Builder struct {
	catalog CatalogLookup
	logger  *zap.Logger
	items   []models.LineItem
	draft   Draft
}

// NewBuilder creates a line-item builder over the given catalog.
func NewBuilder(catalog CatalogLookup, logger *zap.Logger) *Builder {
	return &Builder{catalog: catalog, logger: logger}
}

// Draft returns the current in-progress draft.
func (b *Builder) Draft() Draft { return b.draft }

// SetDraft replaces the in-progress draft, mirroring form edits.
func (b *Builder) SetDraft(d Draft) { b.draft = d }

// Items returns the ordered accumulated items.
func (b *Builder) Items() []models.LineItem { return b.items }

// AddItem validates the draft, snapshots catalog pricing into a LineItem,
// appends it and resets the draft. The returned error is a
// *ValidationError when a required field is missing or malformed.
func (b *Builder) AddItem(draft Draft) (models.LineItem, error) {
	category := strings.TrimSpace(draft.Category)
	if category == "" {
		return models.LineItem{}, &ValidationError{Field: "category", Message: "category is required"}
	}

	entry, err := b.catalog.FindByName(category)
	if err != nil {
		return models.LineItem{}, &ValidationError{Field: "category", Message: "category does not match a catalog entry"}
	}

	description := strings.TrimSpace(draft.Description)
	if description == "" {
		return models.LineItem{}, &ValidationError{Field: "description", Message: "description is required"}
	}

	quantity, err := ParseQuantity(draft.Quantity)
	if err != nil {
		return models.LineItem{}, &ValidationError{Field: "quantity", Message: err.Error()}
	}

	// Price and unit are fixed at add time; later catalog changes do not
	// touch already-added items.
	item := models.LineItem{
		Photo:       draft.Photo,
		Category:    entry.Name,
		Description: description,
		Quantity:    quantity,
		Unit:        entry.Unit,
		UnitPrice:   entry.UnitPrice,
		Subtotal:    pricing.Subtotal(quantity, entry.UnitPrice),
	}

	b.items = append(b.items, item)
	b.draft = Draft{}

	b.logger.Debug("Line item added",
		zap.String("category", item.Category),
		zap.String("quantity", item.Quantity.String()),
		zap.String("subtotal", item.Subtotal.String()),
		zap.Int("count", len(b.items)))

	return item, nil
}

// TotalUF sums the accumulated item subtotals.
func (b *Builder) TotalUF() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// ParseQuantity parses a free-text decimal quantity the way the report form
// accepts it: any character other than a digit or a decimal point is
// dropped, decimal points after the first collapse into it, and an empty or
// bare-point input parses to zero rather than failing. Explicitly negative
// input also parses to zero, never to its stripped magnitude.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "-") {
		return decimal.Zero, nil
	}

	var cleaned strings.Builder
	seenPoint := false
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			cleaned.WriteRune(r)
		case r == '.' && !seenPoint:
			cleaned.WriteRune(r)
			seenPoint = true
		}
	}

	text := cleaned.String()
	if text == "" || text == "." {
		return decimal.Zero, nil
	}
	text = strings.TrimSuffix(text, ".")

	quantity, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quantity is not a valid number")
	}
	return quantity, nil
}
