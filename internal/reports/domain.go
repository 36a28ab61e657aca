package reports

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "XLSX"
	FormatCSV  Format = "CSV"
	FormatPDF  Format = "PDF"
)

// ParseFormat accepts the query value case-insensitively. Empty means XLSX.
func ParseFormat(raw string) (Format, bool) {
	switch Format(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", FormatXLSX:
		return FormatXLSX, true
	case FormatCSV:
		return FormatCSV, true
	case FormatPDF:
		return FormatPDF, true
	default:
		return "", false
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return strings.ToLower(string(f))
}

const (
	// InventoryReportType is the default name of the inventory export.
	InventoryReportType = "Inventario Total"
	// MovementsReportType names the ledger export.
	MovementsReportType = "Reporte_de_Movimientos"
)

// TimestampLayout is the suffix layout of generated file names.
const TimestampLayout = "20060102_150405"

// MovementDateLayout is used for the date column of the ledger export.
const MovementDateLayout = "2006-01-02 15:04:05"

var (
	// ErrPDFNotImplemented is returned when a PDF export is requested.
	ErrPDFNotImplemented = errors.New("reports: pdf export not implemented")
	// ErrNoMovements is returned when the ledger is empty.
	ErrNoMovements = errors.New("reports: no movements to export")
)

// InventoryRow is one line of the inventory export.
type InventoryRow struct {
	ID          int64
	ClassName   string
	Description string
	Unit        string
	Stock       float64
	UnitCost    float64
}

// MovementRow is one line of the ledger export. Quantity is negative for exits.
type MovementRow struct {
	Date        string
	Location    string
	Destination string
	Item        string
	Quantity    float64
}

// GeneratedFile describes a file in the reports directory.
type GeneratedFile struct {
	Name    string
	Format  string
	Size    int64
	ModTime time.Time
}

// ClassValue is the stock value of one item class.
type ClassValue struct {
	ClassName string
	Value     decimal.Decimal
}

// KPIs are the figures shown on the report dashboard.
type KPIs struct {
	InventoryValue decimal.Decimal
	EntriesValue   decimal.Decimal
	ExitsValue     decimal.Decimal
	ByClass        []ClassValue
}

// Dashboard bundles the KPI figures and the generated file listing.
type Dashboard struct {
	KPIs  KPIs
	Files []GeneratedFile
}

// ChartLabels returns class names in chart order.
func (d Dashboard) ChartLabels() []string {
	labels := make([]string, 0, len(d.KPIs.ByClass))
	for _, c := range d.KPIs.ByClass {
		labels = append(labels, c.ClassName)
	}
	return labels
}

// ChartValues returns class values as floats in chart order.
func (d Dashboard) ChartValues() []float64 {
	values := make([]float64, 0, len(d.KPIs.ByClass))
	for _, c := range d.KPIs.ByClass {
		values = append(values, c.Value.Round(2).InexactFloat64())
	}
	return values
}

// ChartBar is one class bar of the dashboard chart. Percent is relative to
// the largest class value.
type ChartBar struct {
	Label   string
	Value   decimal.Decimal
	Percent int
}

// Bars scales the class values for the CSS bar chart.
func (d Dashboard) Bars() []ChartBar {
	max := decimal.Zero
	for _, c := range d.KPIs.ByClass {
		if c.Value.GreaterThan(max) {
			max = c.Value
		}
	}
	bars := make([]ChartBar, 0, len(d.KPIs.ByClass))
	for _, c := range d.KPIs.ByClass {
		pct := 0
		if max.IsPositive() && c.Value.IsPositive() {
			pct = int(c.Value.Mul(decimal.NewFromInt(100)).Div(max).Round(0).IntPart())
		}
		bars = append(bars, ChartBar{Label: c.ClassName, Value: c.Value, Percent: pct})
	}
	return bars
}

// KPIWindow is how far back the entry and exit values look.
const KPIWindow = 30 * 24 * time.Hour
