package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var (
	inventoryHeader = []string{"ID", "Clase", "Descripcion", "Unidad", "Existencia", "Costo"}
	movementsHeader = []string{"Fecha", "Ubicacion (Almacen)", "Destino/Referencia", "Elemento", "Cantidad"}
)

const (
	inventorySheet = "Inventario"
	movementsSheet = "Movimientos"
)

// InventoryRows projects catalog items into export rows.
func InventoryRows(list []items.Item) []InventoryRow {
	rows := make([]InventoryRow, 0, len(list))
	for _, it := range list {
		rows = append(rows, InventoryRow{
			ID:          it.ID,
			ClassName:   it.ClassName,
			Description: it.Description,
			Unit:        it.Unit,
			Stock:       toFloat(it.CurrentStock),
			UnitCost:    toFloat(it.UnitCost),
		})
	}
	return rows
}

// MovementRows projects ledger rows, negating exit quantities.
func MovementRows(list []inventory.Movement) []MovementRow {
	rows := make([]MovementRow, 0, len(list))
	for _, m := range list {
		location := m.ItemLocation
		if location == "" {
			location = "N/A"
		}
		rows = append(rows, MovementRow{
			Date:        m.OccurredAt.Format(MovementDateLayout),
			Location:    location,
			Destination: m.DestinationReference,
			Item:        m.ItemDescription,
			Quantity:    toFloat(m.SignedQuantity()),
		})
	}
	return rows
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	return &csvStreamer{buf: buf, csv: csv.NewWriter(buf), flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteInventoryCSV streams the inventory export.
func WriteInventoryCSV(w io.Writer, rows []InventoryRow) error {
	s := newCSVStreamer(w)
	if err := s.writeRow(inventoryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := s.writeRow([]string{
			strconv.FormatInt(r.ID, 10),
			r.ClassName,
			r.Description,
			r.Unit,
			formatFloat(r.Stock),
			formatFloat(r.UnitCost),
		}); err != nil {
			return err
		}
	}
	return s.Flush()
}

// WriteMovementsCSV streams the ledger export.
func WriteMovementsCSV(w io.Writer, rows []MovementRow) error {
	s := newCSVStreamer(w)
	if err := s.writeRow(movementsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := s.writeRow([]string{r.Date, r.Location, r.Destination, r.Item, formatFloat(r.Quantity)}); err != nil {
			return err
		}
	}
	return s.Flush()
}

// WriteInventoryXLSX writes the inventory export as a workbook.
func WriteInventoryXLSX(w io.Writer, rows []InventoryRow) error {
	return writeWorkbook(w, inventorySheet, inventoryHeader, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.ID, r.ClassName, r.Description, r.Unit, r.Stock, r.UnitCost}
	})
}

// WriteMovementsXLSX writes the ledger export as a workbook.
func WriteMovementsXLSX(w io.Writer, rows []MovementRow) error {
	return writeWorkbook(w, movementsSheet, movementsHeader, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.Date, r.Location, r.Destination, r.Item, r.Quantity}
	})
}

func writeWorkbook(w io.Writer, sheet string, header []string, n int, row func(int) []any) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = excelize.Cell{Value: h}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
