package memstore

import (
	"fmt"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
)

// DefaultProducts mirrors the catalog seeded by the SQL migrations.
func DefaultProducts() []model.Product {
	return []model.Product{
		{ID: "product-1h", Name: "1 hour", DurationMin: 60, PriceCents: 300, IsDefault: true, IsActive: true, SortOrder: 1},
		{ID: "product-2h", Name: "2 hours", DurationMin: 120, PriceCents: 500, IsActive: true, SortOrder: 2},
		{ID: "product-3h", Name: "3 hours", DurationMin: 180, PriceCents: 700, IsActive: true, SortOrder: 3},
		{ID: "product-daily", Name: "Day pass", DurationMin: 1440, PriceCents: 1500, IsActive: true, SortOrder: 4},
	}
}

// Seed fills s with a seat grid, a locker bank and the default catalog.
func Seed(s *Store, rows string, cols, lockers int) error {
	seats, err := scan.SeatGrid(rows, cols)
	if err != nil {
		return err
	}
	for _, id := range seats {
		var col int
		if _, err := fmt.Sscanf(id[1:], "%d", &col); err != nil {
			return fmt.Errorf("seat %s: %w", id, err)
		}
		s.AddResource(model.Resource{Kind: model.KindSeat, ID: id, Name: "Seat " + id, Row: id[:1], Col: col})
	}
	ids, err := scan.LockerRange(lockers)
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.AddResource(model.Resource{Kind: model.KindLocker, ID: id, Name: "Locker " + id})
	}
	for _, p := range DefaultProducts() {
		s.AddProduct(p)
	}
	return nil
}
