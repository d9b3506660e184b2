package model

// Product is a pricing catalog entry. The service only ever reads products.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"durationMin"`
	PriceCents  uint32 `json:"priceCents"`
	IsDefault   bool   `json:"isDefault"`
	IsActive    bool   `json:"isActive"`
	SortOrder   int    `json:"sortOrder"`
}
