package domain

// ProductTier is an immutable catalog entry.
type ProductTier struct {
	Code      string
	UnitPrice float64
}

// Location is a pickup area the buyer chooses from.
type Location struct {
	ID   string
	Name string
}

// Catalog holds the read-only reference data orders validate against.
type Catalog struct {
	Locations []Location
	Tiers     []ProductTier
}

func (c Catalog) HasLocation(id string) bool {
	for _, l := range c.Locations {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (c Catalog) TierByCode(code string) (ProductTier, bool) {
	for _, t := range c.Tiers {
		if t.Code == code {
			return t, true
		}
	}
	return ProductTier{}, false
}
