package models

import "time"

// Inspection represents a scheduled property visit. Instances are created
// server-side; the client only moves them through their status lifecycle.
type Inspection struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	VisitDate    time.Time  `json:"visitDate"`
	Property     *Property  `json:"property,omitempty"`
	Region       *Location  `json:"region,omitempty"`
	City         *Location  `json:"city,omitempty"`
	Commune      *Location  `json:"commune,omitempty"`
	InspectorID  string     `json:"professionalId,omitempty"` // empty until taken
	OwnerID      string     `json:"ownerId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt,omitempty"`
	ApprovalTime *time.Time `json:"approvalTime,omitempty"`
}

// Property holds the property metadata shown on the report screens and
// embedded in the generated PDF.
type Property struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	Bedrooms  int             `json:"bedrooms"`
	Bathrooms int             `json:"bathrooms"`
	InnerArea float64         `json:"innerArea"`
	Photos    []PropertyPhoto `json:"photos,omitempty"`
}

// PropertyPhoto is a stored property image reference.
type PropertyPhoto struct {
	URL string `json:"url"`
}

// CoverPhotoURL returns the first property photo URL, or empty when the
// property has no photos.
func (p *Property) CoverPhotoURL() string {
	if p == nil || len(p.Photos) == 0 {
		return ""
	}
	return p.Photos[0].URL
}

// Location is one node of the region/city/commune hierarchy.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProfile identifies the authenticated professional or owner.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
