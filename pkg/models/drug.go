package models

import "time"

// Drug is a catalog entry as returned to API clients. Only Name, Description,
// IsActive and CreatedAt take part in searching.
type Drug struct {
	ID                   string    `json:"_id"`
	Name                 string    `json:"name"`
	GenericName          string    `json:"genericName,omitempty"`
	Description          string    `json:"description"`
	Manufacturer         string    `json:"manufacturer,omitempty"`
	Category             string    `json:"category,omitempty"`
	Price                float64   `json:"price"`
	Stock                int       `json:"stock"`
	RequiresPrescription bool      `json:"requiresPrescription"`
	IsActive             bool      `json:"isActive"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`

	// Score is the text relevance assigned by ranked search; zero otherwise.
	Score float64 `json:"score,omitempty"`
}

// SearchResult is the outcome of one image search request.
type SearchResult struct {
	RawText  string   `json:"rawText"`
	Keywords []string `json:"keywords"`
	Drugs    []Drug   `json:"drugs"`
}

// EmptySearchResult returns a result whose collections encode as [] rather than null.
func EmptySearchResult(rawText string) *SearchResult {
	return &SearchResult{
		RawText:  rawText,
		Keywords: []string{},
		Drugs:    []Drug{},
	}
}
