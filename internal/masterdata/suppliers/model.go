package suppliers

// Supplier is a vendor referenced by entry movements.
type Supplier struct {
	ID             int64  `json:"id"`
	Name           string `json:"name" validate:"required,max=200"`
	TaxID          string `json:"tax_id" validate:"max=13"`
	Contact        string `json:"contact" validate:"max=200"`
	Address        string `json:"address"`
	LineOfBusiness string `json:"line_of_business" validate:"max=100"`
	Active         bool   `json:"active"`
}

// ListFilters narrows the registry listing.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	ActiveOnly bool
}
