package models

import "time"

// Entry is a single zakat record owned by a user.
type Entry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	Date        time.Time `json:"date"`
	ZakatAmount float64   `json:"zakat_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateEntryRequest is the JSON body for POST /zakat. Date accepts RFC 3339,
// a naive datetime or a plain date.
type CreateEntryRequest struct {
	Amount      *float64 `json:"amount"      validate:"required,gt=0"`
	Category    string   `json:"category"    validate:"required"`
	Description *string  `json:"description"`
	Date        *Date    `json:"date"`
}

// UpdateEntryRequest is the JSON body for PUT /zakat/{id}. Nil fields are
// left untouched.
type UpdateEntryRequest struct {
	Amount      *float64 `json:"amount"      validate:"omitnil,gt=0"`
	Category    *string  `json:"category"    validate:"omitnil,min=1"`
	Description *string  `json:"description"`
	Date        *Date    `json:"date"`
}

// EntryPatch is the set of fields an update writes, with the obligation
// already recomputed when the amount changes.
type EntryPatch struct {
	Amount      *float64
	ZakatAmount *float64
	Category    *string
	Description *string
	Date        *time.Time
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil && p.Date == nil
}

// CategoryStats aggregates the entries of one category.
type CategoryStats struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	TotalZakat  float64 `json:"total_zakat"`
}

// Summary is the response of GET /zakat/statistics/summary. The breakdown is
// a JSON object, so category order carries no meaning.
type Summary struct {
	TotalAmount       float64                  `json:"total_amount"`
	TotalZakat        float64                  `json:"total_zakat"`
	TotalEntries      int                      `json:"total_entries"`
	CategoryBreakdown map[string]CategoryStats `json:"category_breakdown"`
}
