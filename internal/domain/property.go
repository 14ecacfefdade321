package domain

import (
	"time"
)

// Property represents a tax-deed auction property tracked by the platform.
type Property struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Jurisdiction
	CountyID   string `json:"countyId"`
	CountyName string `json:"countyName,omitempty"`

	// Parcel details
	ParcelNumber string `json:"parcelNumber,omitempty"`
	Address      string `json:"address,omitempty"`

	// Classification (e.g., "single_family_residential", "vacant_land").
	// Nil means the county feed did not report a type.
	PropertyType *string `json:"propertyType,omitempty"`

	// Financials
	TotalDue *float64 `json:"totalDue,omitempty"`

	// Physical
	LotSizeAcres *float64 `json:"lotSizeAcres,omitempty"`

	// Investment quality score on a 0-125 scale, produced by the
	// out-of-scope analysis pipeline.
	TotalScore *float64 `json:"totalScore,omitempty"`

	// Auction timing
	SaleDate *time.Time `json:"saleDate,omitempty"`

	// Temporal
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Optional metadata from county parsers
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MatchableProperty is the read-only projection of a property used by the
// matching engine. Nil fields are evaluated as non-matching for any
// criterion that references them, never as satisfying it.
type MatchableProperty struct {
	ID           string   `json:"id"`
	CountyID     string   `json:"countyId"`
	CountyName   string   `json:"countyName,omitempty"`
	PropertyType *string  `json:"propertyType,omitempty"`
	TotalDue     *float64 `json:"totalDue,omitempty"`
	LotSizeAcres *float64 `json:"lotSizeAcres,omitempty"`
	TotalScore   *float64 `json:"totalScore,omitempty"`
}

// ToMatchable projects a stored property into the form consumed by the
// matching engine.
func (p *Property) ToMatchable() MatchableProperty {
	return MatchableProperty{
		ID:           p.ID,
		CountyID:     p.CountyID,
		CountyName:   p.CountyName,
		PropertyType: p.PropertyType,
		TotalDue:     p.TotalDue,
		LotSizeAcres: p.LotSizeAcres,
		TotalScore:   p.TotalScore,
	}
}

// PropertyRequest is the API request payload for property ingestion.
type PropertyRequest struct {
	CountyID     string                 `json:"countyId" validate:"required"`
	CountyName   string                 `json:"countyName,omitempty"`
	ParcelNumber string                 `json:"parcelNumber,omitempty"`
	Address      string                 `json:"address,omitempty"`
	PropertyType *string                `json:"propertyType,omitempty"`
	TotalDue     *float64               `json:"totalDue,omitempty"`
	LotSizeAcres *float64               `json:"lotSizeAcres,omitempty"`
	TotalScore   *float64               `json:"totalScore,omitempty"`
	SaleDate     *time.Time             `json:"saleDate,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToProperty converts a request to a Property domain object.
func (r *PropertyRequest) ToProperty() *Property {
	now := time.Now().UTC()
	return &Property{
		CountyID:     r.CountyID,
		CountyName:   r.CountyName,
		ParcelNumber: r.ParcelNumber,
		Address:      r.Address,
		PropertyType: r.PropertyType,
		TotalDue:     r.TotalDue,
		LotSizeAcres: r.LotSizeAcres,
		TotalScore:   r.TotalScore,
		SaleDate:     r.SaleDate,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     r.Metadata,
	}
}
