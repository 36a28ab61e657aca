package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	StockMismatches(ctx context.Context) ([]StockMismatch, error)
}

// TxRepository is the set of writes performed inside a commit.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (items.Item, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpdateItemStock(ctx context.Context, id int64, stock decimal.Decimal) error
}

// ItemReader resolves catalog items when lines are staged.
type ItemReader interface {
	Get(ctx context.Context, id int64) (items.Item, error)
}

// SupplierReader resolves suppliers for entry lines.
type SupplierReader interface {
	Get(ctx context.Context, id int64) (suppliers.Supplier, error)
}

// MetricsPort receives committed batch counts.
type MetricsPort interface {
	ObserveBatch(kind string, lines int)
}

// Service coordinates the pending carts and the movement ledger.
type Service struct {
	repo      RepositoryPort
	items     ItemReader
	suppliers SupplierReader
	audit     shared.AuditRecorder
	metrics   MetricsPort
	logger    *slog.Logger
	now       func() time.Time
	folio     func() string
}

// NewService builds Service. audit and metrics may be nil.
func NewService(repo RepositoryPort, catalog ItemReader, registry SupplierReader, audit shared.AuditRecorder, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		items:     catalog,
		suppliers: registry,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		folio:     NewFolio,
	}
}

// EntryLineInput stages an entry.
type EntryLineInput struct {
	ItemID     int64
	Quantity   decimal.Decimal
	SupplierID int64
}

// ExitLineInput stages an exit.
type ExitLineInput struct {
	ItemID      int64
	Quantity    decimal.Decimal
	Destination string
}

// AddEntryLine validates in and appends it to the entry cart.
func (s *Service) AddEntryLine(ctx context.Context, cart *Cart, in EntryLineInput) (PendingLine, error) {
	if cart == nil || cart.Kind != KindEntry {
		return PendingLine{}, errors.New("inventory: entry cart required")
	}
	if in.SupplierID <= 0 {
		return PendingLine{}, shared.Invalid("supplier", "Selecciona un proveedor.")
	}
	item, err := s.resolveLine(ctx, in.ItemID, in.Quantity)
	if err != nil {
		return PendingLine{}, err
	}
	supplier, err := s.suppliers.Get(ctx, in.SupplierID)
	if errors.Is(err, shared.ErrNotFound) {
		return PendingLine{}, shared.Invalid("supplier", "El proveedor seleccionado no existe.")
	}
	if err != nil {
		return PendingLine{}, err
	}
	line := newLine(item, in.Quantity)
	line.SupplierID = supplier.ID
	line.SupplierName = supplier.Name
	cart.append(line, s.now(), s.folio)
	return cart.Lines[len(cart.Lines)-1], nil
}

// AddExitLine validates in against the item's current stock and appends it to
// the exit cart. Lines already staged for the same item are not subtracted;
// the commit re-checks stock under lock.
func (s *Service) AddExitLine(ctx context.Context, cart *Cart, in ExitLineInput) (PendingLine, error) {
	if cart == nil || cart.Kind != KindExit {
		return PendingLine{}, errors.New("inventory: exit cart required")
	}
	destination := strings.TrimSpace(in.Destination)
	if destination == "" {
		return PendingLine{}, shared.Invalid("destination", "Indica el destino o la referencia de la salida.")
	}
	if len(destination) > 200 {
		return PendingLine{}, shared.Invalid("destination", "El destino no puede exceder 200 caracteres.")
	}
	item, err := s.resolveLine(ctx, in.ItemID, in.Quantity)
	if err != nil {
		return PendingLine{}, err
	}
	if in.Quantity.GreaterThan(item.CurrentStock) {
		return PendingLine{}, &InsufficientStockError{Description: item.Description, Available: item.CurrentStock, Requested: in.Quantity}
	}
	line := newLine(item, in.Quantity)
	line.Destination = destination
	cart.append(line, s.now(), s.folio)
	return cart.Lines[len(cart.Lines)-1], nil
}

func (s *Service) resolveLine(ctx context.Context, itemID int64, qty decimal.Decimal) (items.Item, error) {
	if itemID <= 0 {
		return items.Item{}, shared.Invalid("item", "Selecciona un elemento del inventario.")
	}
	if !qty.IsPositive() {
		return items.Item{}, shared.Invalid("quantity", "La cantidad debe ser mayor a cero.")
	}
	if !shared.HasScale(qty) {
		return items.Item{}, shared.Invalid("quantity", "La cantidad admite como máximo %d decimales.", shared.Scale)
	}
	item, err := s.items.Get(ctx, itemID)
	if errors.Is(err, shared.ErrNotFound) {
		return items.Item{}, shared.Invalid("item", "El elemento seleccionado no existe.")
	}
	return item, err
}

func newLine(item items.Item, qty decimal.Decimal) PendingLine {
	return PendingLine{
		ItemID:      item.ID,
		Description: item.Description,
		ClassName:   item.ClassName,
		Unit:        item.Unit,
		Quantity:    qty,
		UnitPrice:   item.UnitCost,
	}
}

// RemoveLine drops the line at index from cart.
func (s *Service) RemoveLine(cart *Cart, index int) (PendingLine, error) {
	if cart == nil {
		return PendingLine{}, ErrLineIndex
	}
	return cart.Remove(index)
}

// Cancel empties cart without touching the ledger.
func (s *Service) Cancel(cart *Cart) {
	if cart != nil {
		cart.Clear()
	}
}

// Commit writes every line of cart as one transaction. Either all movements are
// recorded and stocks adjusted, or nothing is. The cart is cleared on success
// and left untouched on failure.
func (s *Service) Commit(ctx context.Context, cart *Cart, actorID int64) (CommitResult, error) {
	if cart == nil || cart.Empty() {
		return CommitResult{}, ErrEmptyCart
	}
	if !cart.Kind.Valid() {
		return CommitResult{}, fmt.Errorf("inventory: unknown movement kind %q", cart.Kind)
	}
	result := CommitResult{Kind: cart.Kind, Folio: cart.Folio, Lines: len(cart.Lines)}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := make([]int64, 0, len(cart.Lines))
		for i, line := range cart.Lines {
			if !line.Quantity.IsPositive() {
				return shared.Invalid("quantity", "La cantidad de la línea %d debe ser mayor a cero.", i+1)
			}
			item, err := tx.GetItemForUpdate(ctx, line.ItemID)
			if errors.Is(err, shared.ErrNotFound) {
				return shared.Invalid("item", "El elemento \"%s\" ya no existe.", line.Description)
			}
			if err != nil {
				return fmt.Errorf("lock item %d: %w", line.ItemID, err)
			}
			stock := item.CurrentStock
			movement := Movement{
				ItemID:    line.ItemID,
				Kind:      cart.Kind,
				Quantity:  line.Quantity,
				ActorID:   actorID,
				UnitPrice: line.UnitPrice,
			}
			if cart.Kind == KindEntry {
				stock = stock.Add(line.Quantity)
				movement.SupplierID = line.SupplierID
				movement.DocumentFolio = line.BatchFolio
			} else {
				if line.Quantity.GreaterThan(stock) {
					return &InsufficientStockError{Description: item.Description, Available: stock, Requested: line.Quantity}
				}
				stock = stock.Sub(line.Quantity)
				movement.DestinationReference = line.Destination
			}
			id, err := tx.InsertMovement(ctx, movement)
			if err != nil {
				return fmt.Errorf("insert movement for item %d: %w", line.ItemID, err)
			}
			if err := tx.UpdateItemStock(ctx, line.ItemID, stock); err != nil {
				return fmt.Errorf("update stock for item %d: %w", line.ItemID, err)
			}
			ids = append(ids, id)
		}
		result.MovementIDs = ids
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	cart.Clear()

	if s.metrics != nil {
		s.metrics.ObserveBatch(string(result.Kind), result.Lines)
	}
	if s.audit != nil {
		entity := result.Folio
		if entity == "" {
			entity = fmt.Sprintf("%d", result.MovementIDs[0])
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "movements.committed",
			Entity:   "movement_batch",
			EntityID: entity,
			Meta: map[string]any{
				"kind":         string(result.Kind),
				"lines":        result.Lines,
				"movement_ids": result.MovementIDs,
			},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", "movements.committed"), slog.Any("error", err))
		}
	}
	return result, nil
}

// ListMovements reads the ledger newest first. Unfiltered reads return only
// the most recent DefaultRecentLimit rows.
func (s *Service) ListMovements(ctx context.Context, search string, field MovementField) ([]Movement, error) {
	filter := MovementFilter{Search: strings.TrimSpace(search), Field: normalizeField(field)}
	if filter.Search == "" {
		filter.Limit = DefaultRecentLimit
	}
	return s.repo.ListMovements(ctx, filter)
}

// MovementsForReport returns the whole ledger, newest first.
func (s *Service) MovementsForReport(ctx context.Context) ([]Movement, error) {
	return s.repo.ListMovements(ctx, MovementFilter{})
}

// Reconcile lists items whose stock disagrees with their ledger sum.
func (s *Service) Reconcile(ctx context.Context) ([]StockMismatch, error) {
	return s.repo.StockMismatches(ctx)
}

func normalizeField(field MovementField) MovementField {
	switch field {
	case MovementByDestination, MovementByLocation:
		return field
	default:
		return MovementByItem
	}
}
