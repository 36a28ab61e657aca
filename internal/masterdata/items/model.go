package items

import "github.com/shopspring/decimal"

// Class groups items for reporting.
type Class struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Item is a stockable product. CurrentStock only changes through ledger commits.
type Item struct {
	ID           int64           `json:"id"`
	ClassID      int64           `json:"class_id"`
	ClassName    string          `json:"class_name"`
	Description  string          `json:"description"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Location     string          `json:"location"`
}

// Value is stock multiplied by unit cost.
func (i Item) Value() decimal.Decimal {
	return i.CurrentStock.Mul(i.UnitCost)
}

// SearchField selects the column a catalog search applies to.
type SearchField string

const (
	SearchDescription SearchField = "Descripcion"
	SearchClass       SearchField = "Clase"
	SearchLocation    SearchField = "Ubicacion"
)

// ListFilter narrows catalog listings. An empty Search lists everything.
type ListFilter struct {
	Search string
	Field  SearchField
}

// NewItem is the input accepted by the catalog form.
type NewItem struct {
	Description string `validate:"required,max=250"`
	ClassID     int64  `validate:"required,gt=0"`
	Unit        string `validate:"required,max=10"`
	Location    string `validate:"max=100"`
	UnitCost    decimal.Decimal
}
