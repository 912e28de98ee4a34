package models

import "github.com/shopspring/decimal"

// CatalogEntry is a priced work-item template (APU). Entries are fetched
// read-only; the unit price is denominated in UF.
type CatalogEntry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"total"`
}

// APUListResponse mirrors the backend catalog payload:
// {apus: [{id, name, unitApu: {name}, total}]}.
type APUListResponse struct {
	APUs []APURecord `json:"apus"`
}

// APURecord is one raw catalog row as returned by the backend.
type APURecord struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	UnitAPU APUUnit         `json:"unitApu"`
	Total   decimal.Decimal `json:"total"`
}

// APUUnit carries the unit-of-measure name nested in an APU record.
type APUUnit struct {
	Name string `json:"name"`
}

// Entry flattens the raw record into a CatalogEntry.
func (r APURecord) Entry() CatalogEntry {
	return CatalogEntry{
		ID:        r.ID,
		Name:      r.Name,
		Unit:      r.UnitAPU.Name,
		UnitPrice: r.Total,
	}
}
