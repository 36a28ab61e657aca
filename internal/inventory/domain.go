package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/shared"
)

// MovementKind enumerates ledger movements.
type MovementKind string

const (
	// KindEntry adds stock.
	KindEntry MovementKind = "ENTRY"
	// KindExit removes stock.
	KindExit MovementKind = "EXIT"
)

// Valid reports whether k is a known kind.
func (k MovementKind) Valid() bool {
	return k == KindEntry || k == KindExit
}

// Label returns the Spanish display label.
func (k MovementKind) Label() string {
	if k == KindExit {
		return "Salida"
	}
	return "Entrada"
}

// Movement is an append-only ledger row.
type Movement struct {
	ID                   int64
	ItemID               int64
	ItemDescription      string
	ItemLocation         string
	Kind                 MovementKind
	Quantity             decimal.Decimal
	OccurredAt           time.Time
	ActorID              int64
	ActorName            string
	UnitPrice            decimal.Decimal
	SupplierID           int64
	SupplierName         string
	DocumentFolio        string
	DestinationReference string
}

// SignedQuantity is positive for entries and negative for exits.
func (m Movement) SignedQuantity() decimal.Decimal {
	if m.Kind == KindExit {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Amount is quantity multiplied by the unit price.
func (m Movement) Amount() decimal.Decimal {
	return m.Quantity.Mul(m.UnitPrice)
}

// MovementField selects what a ledger search matches against.
type MovementField string

const (
	MovementByItem        MovementField = "Elemento"
	MovementByDestination MovementField = "Destino"
	MovementByLocation    MovementField = "Ubicacion"
)

// DefaultRecentLimit caps unfiltered ledger reads.
const DefaultRecentLimit = 50

// MovementFilter narrows ledger reads. Limit <= 0 means unbounded.
type MovementFilter struct {
	Search string
	Field  MovementField
	Limit  int
}

// StockMismatch reports an item whose stock disagrees with its ledger.
type StockMismatch struct {
	ItemID      int64
	Description string
	Stock       decimal.Decimal
	LedgerSum   decimal.Decimal
}

// CommitResult summarises a committed batch.
type CommitResult struct {
	Kind        MovementKind
	Folio       string
	Lines       int
	MovementIDs []int64
}

var (
	// ErrEmptyCart is returned when committing a cart without lines.
	ErrEmptyCart = &shared.ValidationError{Field: "cart", Message: "No hay elementos pendientes por confirmar."}
	// ErrLineIndex is returned for an out of range line index.
	ErrLineIndex = &shared.ValidationError{Field: "index", Message: "La línea indicada no existe."}
	// ErrInsufficientStock marks an exit larger than the available stock.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError carries the numbers shown to the user.
type InsufficientStockError struct {
	Description string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return e.UserMessage()
}

// UserMessage returns the text shown in the UI.
func (e *InsufficientStockError) UserMessage() string {
	return "Stock insuficiente para \"" + e.Description + "\". Disponible: " +
		e.Available.StringFixed(shared.Scale) + ", solicitado: " + e.Requested.StringFixed(shared.Scale) + "."
}

// Is lets callers match both ErrInsufficientStock and shared.ErrValidation.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == shared.ErrValidation
}
