package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/shared"
)

// FolioPrefix starts every entry batch folio.
const FolioPrefix = "ENT-"

// PendingLine is a staged movement that lives only in the session.
type PendingLine struct {
	ItemID       int64           `json:"item_id"`
	Description  string          `json:"description"`
	ClassName    string          `json:"class_name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SupplierID   int64           `json:"supplier_id,omitempty"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	BatchFolio   string          `json:"batch_folio,omitempty"`
}

// Amount is quantity multiplied by the snapshot unit price.
func (l PendingLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Cart is the pending batch of one kind owned by a single session.
type Cart struct {
	Kind      MovementKind  `json:"kind"`
	Lines     []PendingLine `json:"lines"`
	Folio     string        `json:"folio,omitempty"`
	FolioDate time.Time     `json:"folio_date,omitempty"`
}

// NewCart returns an empty cart of kind.
func NewCart(kind MovementKind) *Cart {
	return &Cart{Kind: kind}
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Total sums the line amounts.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// append adds line, assigning the shared batch folio for entry carts.
func (c *Cart) append(line PendingLine, now time.Time, folio func() string) {
	if c.Kind == KindEntry {
		if c.Folio == "" {
			c.Folio = folio()
			c.FolioDate = now
		}
		line.BatchFolio = c.Folio
	}
	c.Lines = append(c.Lines, line)
}

// Remove drops the line at index. Emptying an entry cart discards its folio.
func (c *Cart) Remove(index int) (PendingLine, error) {
	if index < 0 || index >= len(c.Lines) {
		return PendingLine{}, ErrLineIndex
	}
	removed := c.Lines[index]
	c.Lines = append(c.Lines[:index], c.Lines[index+1:]...)
	if len(c.Lines) == 0 {
		c.resetFolio()
	}
	return removed, nil
}

// Clear empties the cart and discards its folio.
func (c *Cart) Clear() {
	c.Lines = nil
	c.resetFolio()
}

func (c *Cart) resetFolio() {
	c.Folio = ""
	c.FolioDate = time.Time{}
}

// NewFolio builds "ENT-" followed by eight upper-case hex characters.
func NewFolio() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return FolioPrefix + strings.ToUpper(id[:8])
}

const (
	entryCartKey = "cart:entries"
	exitCartKey  = "cart:exits"
)

// CartStore loads and saves carts in the caller's session.
type CartStore struct{}

func cartKey(kind MovementKind) string {
	if kind == KindExit {
		return exitCartKey
	}
	return entryCartKey
}

// Load returns the session cart of kind, or an empty one.
func (CartStore) Load(sess *shared.Session, kind MovementKind) (*Cart, error) {
	cart := NewCart(kind)
	if sess == nil {
		return cart, nil
	}
	found, err := sess.GetJSON(cartKey(kind), cart)
	if err != nil {
		// A corrupt cart is dropped rather than blocking the user.
		sess.Delete(cartKey(kind))
		return NewCart(kind), err
	}
	if !found {
		return cart, nil
	}
	cart.Kind = kind
	return cart, nil
}

// Save writes cart back; empty carts are removed from the session.
func (CartStore) Save(sess *shared.Session, cart *Cart) error {
	if sess == nil || cart == nil {
		return nil
	}
	if cart.Empty() {
		sess.Delete(cartKey(cart.Kind))
		return nil
	}
	return sess.SetJSON(cartKey(cart.Kind), cart)
}
