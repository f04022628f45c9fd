// Package engine abstracts the spreadsheet automation backend. A Workbook is
// the live binding between one engine instance and one open workbook file;
// everything the command surfaces do goes through it.
//
// Two backends exist: a file backend built on excelize that works on every
// platform, and a live-Excel OLE backend available on Windows. Operations
// only a running Excel process can perform (VBA, the Power Pivot data model,
// connections, Power Query) return ErrLiveExcelRequired from the file
// backend.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrLiveExcelRequired is returned by the file backend for operations that
// need a running Excel process.
var ErrLiveExcelRequired = errors.New("operation requires a live Excel instance")

// AllowedExtensions are the workbook formats a session may create
var AllowedExtensions = []string{".xlsx", ".xlsm"}

// ValidateNewFileExtension checks that path ends in an allowed workbook
// extension (case-insensitive).
func ValidateNewFileExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("file extension %q is not allowed; use one of %s",
		filepath.Ext(path), strings.Join(AllowedExtensions, ", "))
}

// SheetInfo describes one worksheet
type SheetInfo struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Visible bool   `json:"visible"`
}

// TableInfo describes one worksheet table
type TableInfo struct {
	Name  string `json:"name"`
	Range string `json:"range"`
}

// PivotTableInfo describes one pivot table
type PivotTableInfo struct {
	Name  string `json:"name"`
	Range string `json:"range"`
}

// PivotTableOptions configures pivot table creation
type PivotTableOptions struct {
	Sheet       string   `json:"sheet"`
	Name        string   `json:"name"`
	DataRange   string   `json:"dataRange"`
	TargetRange string   `json:"targetRange"`
	Rows        []string `json:"rows"`
	Columns     []string `json:"columns"`
	Values      []string `json:"values"`
	Filters     []string `json:"filters"`
}

// ChartSeries describes one data series of a chart
type ChartSeries struct {
	Name       string `json:"name"`
	Categories string `json:"categories"`
	Values     string `json:"values"`
}

// ChartOptions configures chart creation
type ChartOptions struct {
	Sheet  string        `json:"sheet"`
	Cell   string        `json:"cell"`
	Type   string        `json:"type"`
	Title  string        `json:"title"`
	Series []ChartSeries `json:"series"`
}

// ChartConfig adjusts an existing chart
type ChartConfig struct {
	Sheet      string  `json:"sheet"`
	Name       string  `json:"name"`
	Title      *string `json:"title,omitempty"`
	XAxisTitle *string `json:"xAxisTitle,omitempty"`
	YAxisTitle *string `json:"yAxisTitle,omitempty"`
	ShowLegend *bool   `json:"showLegend,omitempty"`
}

// DefinedNameInfo describes one named range
type DefinedNameInfo struct {
	Name     string `json:"name"`
	RefersTo string `json:"refersTo"`
	Scope    string `json:"scope"`
}

// RangeStyle is the formatting applied by range.format. Nil fields are left
// untouched.
type RangeStyle struct {
	FontBold        *bool    `json:"fontBold,omitempty"`
	FontItalic      *bool    `json:"fontItalic,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	FontColor       *string  `json:"fontColor,omitempty"`
	FillColor       *string  `json:"fillColor,omitempty"`
	NumberFormat    *string  `json:"numberFormat,omitempty"`
	HorizontalAlign *string  `json:"horizontalAlign,omitempty"`
}

// ConditionalFormatRule is one conditional formatting rule for a range
type ConditionalFormatRule struct {
	Type      string `json:"type"`     // cellIs, colorScale, dataBar, top, duplicateValues
	Criteria  string `json:"criteria"` // e.g. ">", "<", "between"
	Value     string `json:"value"`
	Value2    string `json:"value2,omitempty"`
	FontColor string `json:"fontColor,omitempty"`
	FillColor string `json:"fillColor,omitempty"`
}

// SlicerOptions configures slicer creation
type SlicerOptions struct {
	Sheet     string  `json:"sheet"`
	Name      string  `json:"name"`
	Cell      string  `json:"cell"`
	TableName string  `json:"tableName"`
	Column    string  `json:"column"`
	Caption   string  `json:"caption,omitempty"`
	Width     uint    `json:"width,omitempty"`
	Height    uint    `json:"height,omitempty"`
}

// ConnectionInfo describes one workbook data connection
type ConnectionInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// QueryInfo describes one Power Query query
type QueryInfo struct {
	Name    string `json:"name"`
	Formula string `json:"formula,omitempty"`
}

// MeasureInfo describes one Power Pivot measure
type MeasureInfo struct {
	Name       string `json:"name"`
	Table      string `json:"table"`
	Expression string `json:"expression"`
}

// RelationshipInfo describes one data model relationship
type RelationshipInfo struct {
	FromTable  string `json:"fromTable"`
	FromColumn string `json:"fromColumn"`
	ToTable    string `json:"toTable"`
	ToColumn   string `json:"toColumn"`
	Active     bool   `json:"active"`
}

// VBAModuleInfo describes one VBA module
type VBAModuleInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Workbook is one open workbook bound to one automation engine instance.
// A Workbook is never shared between sessions.
type Workbook interface {
	// BackendName identifies the backend ("excelize" or "ole")
	BackendName() string
	// Path returns the workbook file path
	Path() string
	// Alive reports whether the underlying engine can still serve this
	// workbook. For the live backend this probes the Excel process.
	Alive() bool
	// Save persists the workbook to its current path
	Save() error
	// SaveAs persists the workbook under a new path and rebinds Path
	SaveAs(path string) error
	// Close releases the workbook, optionally saving first. Close is
	// idempotent; force-closing a dead workbook must not error.
	Close(save bool) error

	// Sheets
	ListSheets() ([]SheetInfo, error)
	CreateSheet(name string) error
	RenameSheet(oldName, newName string) error
	DeleteSheet(name string) error
	CopySheet(src, dst string) error
	MoveSheet(name, target string) error
	SetSheetVisible(name string, visible bool) error

	// Ranges
	GetValues(sheet, rangeRef string) ([][]string, error)
	SetValues(sheet, startCell string, values [][]any) error
	GetFormulas(sheet, rangeRef string) ([][]string, error)
	SetFormula(sheet, cell, formula string) error
	FormatRange(sheet, rangeRef string, style *RangeStyle) error
	ClearRange(sheet, rangeRef string) error
	MergeCells(sheet, rangeRef string) error
	UnmergeCells(sheet, rangeRef string) error
	AutoFitColumns(sheet, startCol, endCol string) error
	FindReplace(sheet, find, replace string, matchCase bool) (int, error)

	// Tables
	ListTables(sheet string) ([]TableInfo, error)
	AddTable(sheet, rangeRef, name string) error
	DeleteTable(name string) error
	GetTableData(sheet, name string) ([][]string, error)
	AppendTableRows(sheet, name string, rows [][]any) error
	SetTableStyle(sheet, name, style string) error

	// Pivot tables
	ListPivotTables(sheet string) ([]PivotTableInfo, error)
	AddPivotTable(opts *PivotTableOptions) error
	DeletePivotTable(sheet, name string) error
	RefreshPivotTable(sheet, name string) error

	// Charts
	ListCharts(sheet string) ([]string, error)
	AddChart(opts *ChartOptions) error
	DeleteChart(sheet, cell string) error
	ConfigureChart(cfg *ChartConfig) error

	// Named ranges
	ListDefinedNames() ([]DefinedNameInfo, error)
	SetDefinedName(name, refersTo, scope string) error
	DeleteDefinedName(name, scope string) error

	// Conditional formatting
	SetConditionalFormat(sheet, rangeRef string, rules []ConditionalFormatRule) error
	ClearConditionalFormat(sheet, rangeRef string) error

	// Slicers
	ListSlicers(sheet string) ([]string, error)
	AddSlicer(opts *SlicerOptions) error

	// Live-Excel scoped (file backend returns ErrLiveExcelRequired)
	CalculationMode() (string, error)
	SetCalculationMode(mode string) error
	Recalculate() error
	ScreenshotRange(sheet, rangeRef, outputPath string) error
	ListConnections() ([]ConnectionInfo, error)
	RefreshAllConnections() error
	ListQueries() ([]QueryInfo, error)
	RefreshQuery(name string) error
	RunMacro(macro string, args []string) (string, error)
	ListVBAModules() ([]VBAModuleInfo, error)
	ListModelTables() ([]TableInfo, error)
	ListMeasures() ([]MeasureInfo, error)
	AddMeasure(table, name, expression string) error
	DeleteMeasure(name string) error
	ListRelationships() ([]RelationshipInfo, error)
	AddRelationship(rel *RelationshipInfo) error
	DeleteRelationship(fromTable, fromColumn, toTable, toColumn string) error
}

// Factory creates Workbook handles. The session manager is its only caller.
type Factory interface {
	// Open binds a new engine instance to an existing workbook file
	Open(path string, timeout time.Duration) (Workbook, error)
	// Create creates a new workbook file and opens it in one engine
	// start-up. The caller validates existence and extension beforehand.
	Create(path string, timeout time.Duration) (Workbook, error)
}
