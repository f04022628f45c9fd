package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// fileWorkbook is the excelize-backed workbook implementation. It runs
// in-process, so Alive only turns false once the handle has been closed.
type fileWorkbook struct {
	mu     sync.Mutex
	file   *excelize.File
	path   string
	closed bool
}

// NewFileWorkbook opens an existing workbook file with the excelize backend
func NewFileWorkbook(path string) (Workbook, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &fileWorkbook{file: file, path: path}, nil
}

// CreateFileWorkbook creates a new workbook file and opens it
func CreateFileWorkbook(path string) (Workbook, error) {
	file := excelize.NewFile()
	if err := file.SaveAs(path); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create workbook %s: %w", path, err)
	}
	return &fileWorkbook{file: file, path: path}, nil
}

func (w *fileWorkbook) BackendName() string { return "excelize" }

func (w *fileWorkbook) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *fileWorkbook) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

func (w *fileWorkbook) Save() error {
	return w.file.Save()
}

func (w *fileWorkbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return err
	}
	w.mu.Lock()
	w.path = path
	w.mu.Unlock()
	return nil
}

func (w *fileWorkbook) Close(save bool) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	var saveErr error
	if save {
		saveErr = w.file.Save()
	}
	if err := w.file.Close(); err != nil && saveErr == nil {
		saveErr = err
	}
	return saveErr
}

// Sheets

func (w *fileWorkbook) ListSheets() ([]SheetInfo, error) {
	names := w.file.GetSheetList()
	sheets := make([]SheetInfo, 0, len(names))
	for i, name := range names {
		visible, err := w.file.GetSheetVisible(name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, SheetInfo{Name: name, Index: i, Visible: visible})
	}
	return sheets, nil
}

func (w *fileWorkbook) CreateSheet(name string) error {
	_, err := w.file.NewSheet(name)
	return err
}

func (w *fileWorkbook) RenameSheet(oldName, newName string) error {
	return w.file.SetSheetName(oldName, newName)
}

func (w *fileWorkbook) DeleteSheet(name string) error {
	return w.file.DeleteSheet(name)
}

func (w *fileWorkbook) CopySheet(src, dst string) error {
	srcIdx, err := w.file.GetSheetIndex(src)
	if err != nil {
		return err
	}
	if srcIdx < 0 {
		return fmt.Errorf("sheet %q not found", src)
	}
	dstIdx, err := w.file.NewSheet(dst)
	if err != nil {
		return err
	}
	return w.file.CopySheet(srcIdx, dstIdx)
}

func (w *fileWorkbook) MoveSheet(name, target string) error {
	return w.file.MoveSheet(name, target)
}

func (w *fileWorkbook) SetSheetVisible(name string, visible bool) error {
	return w.file.SetSheetVisible(name, visible)
}

// Ranges

// parseRange resolves "A1:C5" (or a bare "A1") into coordinate bounds
func parseRange(rangeRef string) (x1, y1, x2, y2 int, err error) {
	parts := strings.SplitN(rangeRef, ":", 2)
	x1, y1, err = excelize.CellNameToCoordinates(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid range %q: %w", rangeRef, err)
	}
	if len(parts) == 1 {
		return x1, y1, x1, y1, nil
	}
	x2, y2, err = excelize.CellNameToCoordinates(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid range %q: %w", rangeRef, err)
	}
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return x1, y1, x2, y2, nil
}

func (w *fileWorkbook) GetValues(sheet, rangeRef string) ([][]string, error) {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return nil, err
	}
	values := make([][]string, 0, y2-y1+1)
	for y := y1; y <= y2; y++ {
		row := make([]string, 0, x2-x1+1)
		for x := x1; x <= x2; x++ {
			cell, err := excelize.CoordinatesToCellName(x, y)
			if err != nil {
				return nil, err
			}
			value, err := w.file.GetCellValue(sheet, cell)
			if err != nil {
				return nil, err
			}
			row = append(row, value)
		}
		values = append(values, row)
	}
	return values, nil
}

func (w *fileWorkbook) SetValues(sheet, startCell string, values [][]any) error {
	x0, y0, err := excelize.CellNameToCoordinates(startCell)
	if err != nil {
		return fmt.Errorf("invalid start cell %q: %w", startCell, err)
	}
	for dy, row := range values {
		for dx, value := range row {
			cell, err := excelize.CoordinatesToCellName(x0+dx, y0+dy)
			if err != nil {
				return err
			}
			if err := w.file.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *fileWorkbook) GetFormulas(sheet, rangeRef string) ([][]string, error) {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return nil, err
	}
	formulas := make([][]string, 0, y2-y1+1)
	for y := y1; y <= y2; y++ {
		row := make([]string, 0, x2-x1+1)
		for x := x1; x <= x2; x++ {
			cell, err := excelize.CoordinatesToCellName(x, y)
			if err != nil {
				return nil, err
			}
			formula, err := w.file.GetCellFormula(sheet, cell)
			if err != nil {
				return nil, err
			}
			row = append(row, formula)
		}
		formulas = append(formulas, row)
	}
	return formulas, nil
}

func (w *fileWorkbook) SetFormula(sheet, cell, formula string) error {
	return w.file.SetCellFormula(sheet, cell, strings.TrimPrefix(formula, "="))
}

func (w *fileWorkbook) FormatRange(sheet, rangeRef string, style *RangeStyle) error {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return err
	}
	styleID, err := w.file.NewStyle(buildStyle(style))
	if err != nil {
		return err
	}
	topLeft, err := excelize.CoordinatesToCellName(x1, y1)
	if err != nil {
		return err
	}
	bottomRight, err := excelize.CoordinatesToCellName(x2, y2)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(sheet, topLeft, bottomRight, styleID)
}

func buildStyle(style *RangeStyle) *excelize.Style {
	s := &excelize.Style{}
	font := &excelize.Font{}
	hasFont := false
	if style.FontBold != nil {
		font.Bold = *style.FontBold
		hasFont = true
	}
	if style.FontItalic != nil {
		font.Italic = *style.FontItalic
		hasFont = true
	}
	if style.FontSize != nil {
		font.Size = *style.FontSize
		hasFont = true
	}
	if style.FontColor != nil {
		font.Color = *style.FontColor
		hasFont = true
	}
	if hasFont {
		s.Font = font
	}
	if style.FillColor != nil {
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{*style.FillColor}}
	}
	if style.NumberFormat != nil {
		s.CustomNumFmt = style.NumberFormat
	}
	if style.HorizontalAlign != nil {
		s.Alignment = &excelize.Alignment{Horizontal: *style.HorizontalAlign}
	}
	return s
}

func (w *fileWorkbook) ClearRange(sheet, rangeRef string) error {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return err
	}
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			cell, err := excelize.CoordinatesToCellName(x, y)
			if err != nil {
				return err
			}
			if err := w.file.SetCellValue(sheet, cell, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *fileWorkbook) MergeCells(sheet, rangeRef string) error {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return err
	}
	topLeft, _ := excelize.CoordinatesToCellName(x1, y1)
	bottomRight, _ := excelize.CoordinatesToCellName(x2, y2)
	return w.file.MergeCell(sheet, topLeft, bottomRight)
}

func (w *fileWorkbook) UnmergeCells(sheet, rangeRef string) error {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return err
	}
	topLeft, _ := excelize.CoordinatesToCellName(x1, y1)
	bottomRight, _ := excelize.CoordinatesToCellName(x2, y2)
	return w.file.UnmergeCell(sheet, topLeft, bottomRight)
}

func (w *fileWorkbook) AutoFitColumns(sheet, startCol, endCol string) error {
	start, err := excelize.ColumnNameToNumber(startCol)
	if err != nil {
		return fmt.Errorf("invalid column %q: %w", startCol, err)
	}
	end, err := excelize.ColumnNameToNumber(endCol)
	if err != nil {
		return fmt.Errorf("invalid column %q: %w", endCol, err)
	}
	if end < start {
		start, end = end, start
	}

	cols, err := w.file.GetCols(sheet)
	if err != nil {
		return err
	}
	for n := start; n <= end; n++ {
		width := 8.0 // Excel default
		if n-1 < len(cols) {
			for _, value := range cols[n-1] {
				if candidate := float64(len(value)) + 2; candidate > width {
					width = candidate
				}
			}
		}
		if width > 80 {
			width = 80
		}
		name, err := excelize.ColumnNumberToName(n)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

func (w *fileWorkbook) FindReplace(sheet, find, replace string, matchCase bool) (int, error) {
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return 0, err
	}
	count := 0
	for y, row := range rows {
		for x, value := range row {
			var replaced string
			if matchCase {
				if !strings.Contains(value, find) {
					continue
				}
				replaced = strings.ReplaceAll(value, find, replace)
			} else {
				if !strings.Contains(strings.ToLower(value), strings.ToLower(find)) {
					continue
				}
				replaced = replaceFold(value, find, replace)
			}
			cell, err := excelize.CoordinatesToCellName(x+1, y+1)
			if err != nil {
				return count, err
			}
			if err := w.file.SetCellValue(sheet, cell, replaced); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// replaceFold replaces every case-insensitive occurrence of find in s
func replaceFold(s, find, replace string) string {
	if find == "" {
		return s
	}
	var b strings.Builder
	lower := strings.ToLower(s)
	needle := strings.ToLower(find)
	for {
		i := strings.Index(lower, needle)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(replace)
		s = s[i+len(find):]
		lower = lower[i+len(needle):]
	}
}

// Tables

func (w *fileWorkbook) ListTables(sheet string) ([]TableInfo, error) {
	tables, err := w.file.GetTables(sheet)
	if err != nil {
		return nil, err
	}
	infos := make([]TableInfo, 0, len(tables))
	for _, table := range tables {
		infos = append(infos, TableInfo{Name: table.Name, Range: table.Range})
	}
	return infos, nil
}

func (w *fileWorkbook) AddTable(sheet, rangeRef, name string) error {
	return w.file.AddTable(sheet, &excelize.Table{
		Range:     rangeRef,
		Name:      name,
		StyleName: "TableStyleMedium9",
	})
}

func (w *fileWorkbook) DeleteTable(name string) error {
	return w.file.DeleteTable(name)
}

func (w *fileWorkbook) findTable(sheet, name string) (*excelize.Table, error) {
	tables, err := w.file.GetTables(sheet)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].Name == name {
			return &tables[i], nil
		}
	}
	return nil, fmt.Errorf("table %q not found on sheet %q", name, sheet)
}

func (w *fileWorkbook) GetTableData(sheet, name string) ([][]string, error) {
	table, err := w.findTable(sheet, name)
	if err != nil {
		return nil, err
	}
	return w.GetValues(sheet, table.Range)
}

func (w *fileWorkbook) AppendTableRows(sheet, name string, rows [][]any) error {
	table, err := w.findTable(sheet, name)
	if err != nil {
		return err
	}
	x1, _, x2, y2, err := parseRange(table.Range)
	if err != nil {
		return err
	}

	startCell, err := excelize.CoordinatesToCellName(x1, y2+1)
	if err != nil {
		return err
	}
	if err := w.SetValues(sheet, startCell, rows); err != nil {
		return err
	}

	// Extend the table range over the appended rows. excelize has no
	// in-place resize, so the table is re-created with the same identity.
	topLeft, _ := excelize.CoordinatesToCellName(x1, tableTop(table.Range))
	bottomRight, err := excelize.CoordinatesToCellName(x2, y2+len(rows))
	if err != nil {
		return err
	}
	style := table.StyleName
	if err := w.file.DeleteTable(name); err != nil {
		return err
	}
	return w.file.AddTable(sheet, &excelize.Table{
		Range:     topLeft + ":" + bottomRight,
		Name:      name,
		StyleName: style,
	})
}

func tableTop(rangeRef string) int {
	_, y1, _, _, err := parseRange(rangeRef)
	if err != nil {
		return 1
	}
	return y1
}

func (w *fileWorkbook) SetTableStyle(sheet, name, style string) error {
	table, err := w.findTable(sheet, name)
	if err != nil {
		return err
	}
	rangeRef := table.Range
	if err := w.file.DeleteTable(name); err != nil {
		return err
	}
	return w.file.AddTable(sheet, &excelize.Table{
		Range:     rangeRef,
		Name:      name,
		StyleName: style,
	})
}

// Pivot tables

func (w *fileWorkbook) ListPivotTables(sheet string) ([]PivotTableInfo, error) {
	pivots, err := w.file.GetPivotTables(sheet)
	if err != nil {
		return nil, err
	}
	infos := make([]PivotTableInfo, 0, len(pivots))
	for _, pivot := range pivots {
		infos = append(infos, PivotTableInfo{Name: pivot.Name, Range: pivot.PivotTableRange})
	}
	return infos, nil
}

func (w *fileWorkbook) AddPivotTable(opts *PivotTableOptions) error {
	pivotOpts := &excelize.PivotTableOptions{
		Name:            opts.Name,
		DataRange:       opts.DataRange,
		PivotTableRange: qualifyRange(opts.Sheet, opts.TargetRange),
		RowGrandTotals:  true,
		ColGrandTotals:  true,
	}
	for _, field := range opts.Rows {
		pivotOpts.Rows = append(pivotOpts.Rows, excelize.PivotTableField{Data: field})
	}
	for _, field := range opts.Columns {
		pivotOpts.Columns = append(pivotOpts.Columns, excelize.PivotTableField{Data: field})
	}
	for _, field := range opts.Values {
		pivotOpts.Data = append(pivotOpts.Data, excelize.PivotTableField{Data: field, Subtotal: "Sum"})
	}
	for _, field := range opts.Filters {
		pivotOpts.Filter = append(pivotOpts.Filter, excelize.PivotTableField{Data: field})
	}
	return w.file.AddPivotTable(pivotOpts)
}

// qualifyRange prefixes rangeRef with the sheet name when it is not already
// sheet-qualified, which excelize requires for pivot ranges.
func qualifyRange(sheet, rangeRef string) string {
	if strings.Contains(rangeRef, "!") {
		return rangeRef
	}
	return sheet + "!" + rangeRef
}

func (w *fileWorkbook) DeletePivotTable(sheet, name string) error {
	return w.file.DeletePivotTable(sheet, name)
}

func (w *fileWorkbook) RefreshPivotTable(sheet, name string) error {
	return ErrLiveExcelRequired
}

// Charts

func (w *fileWorkbook) ListCharts(sheet string) ([]string, error) {
	return nil, ErrLiveExcelRequired
}

var chartTypes = map[string]excelize.ChartType{
	"col":         excelize.Col,
	"col-stacked": excelize.ColStacked,
	"bar":         excelize.Bar,
	"bar-stacked": excelize.BarStacked,
	"line":        excelize.Line,
	"pie":         excelize.Pie,
	"doughnut":    excelize.Doughnut,
	"scatter":     excelize.Scatter,
	"area":        excelize.Area,
	"radar":       excelize.Radar,
}

func (w *fileWorkbook) AddChart(opts *ChartOptions) error {
	chartType, ok := chartTypes[strings.ToLower(opts.Type)]
	if !ok {
		supported := make([]string, 0, len(chartTypes))
		for name := range chartTypes {
			supported = append(supported, name)
		}
		return fmt.Errorf("unsupported chart type %q (supported: %s)",
			opts.Type, strings.Join(supported, ", "))
	}

	chart := &excelize.Chart{Type: chartType}
	if opts.Title != "" {
		chart.Title = []excelize.RichTextRun{{Text: opts.Title}}
	}
	for _, series := range opts.Series {
		chart.Series = append(chart.Series, excelize.ChartSeries{
			Name:       series.Name,
			Categories: qualifyRange(opts.Sheet, series.Categories),
			Values:     qualifyRange(opts.Sheet, series.Values),
		})
	}
	return w.file.AddChart(opts.Sheet, opts.Cell, chart)
}

func (w *fileWorkbook) DeleteChart(sheet, cell string) error {
	return w.file.DeleteChart(sheet, cell)
}

func (w *fileWorkbook) ConfigureChart(cfg *ChartConfig) error {
	return ErrLiveExcelRequired
}

// Named ranges

func (w *fileWorkbook) ListDefinedNames() ([]DefinedNameInfo, error) {
	names := w.file.GetDefinedName()
	infos := make([]DefinedNameInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, DefinedNameInfo{
			Name:     name.Name,
			RefersTo: name.RefersTo,
			Scope:    name.Scope,
		})
	}
	return infos, nil
}

func (w *fileWorkbook) SetDefinedName(name, refersTo, scope string) error {
	definedName := &excelize.DefinedName{Name: name, RefersTo: refersTo}
	if scope != "" && scope != "Workbook" {
		definedName.Scope = scope
	}
	return w.file.SetDefinedName(definedName)
}

func (w *fileWorkbook) DeleteDefinedName(name, scope string) error {
	definedName := &excelize.DefinedName{Name: name}
	if scope != "" && scope != "Workbook" {
		definedName.Scope = scope
	}
	return w.file.DeleteDefinedName(definedName)
}

// Conditional formatting

func (w *fileWorkbook) SetConditionalFormat(sheet, rangeRef string, rules []ConditionalFormatRule) error {
	options := make([]excelize.ConditionalFormatOptions, 0, len(rules))
	for _, rule := range rules {
		opt := excelize.ConditionalFormatOptions{
			Type:     condFormatType(rule.Type),
			Criteria: rule.Criteria,
			Value:    rule.Value,
		}
		if rule.Value2 != "" {
			opt.MaxValue = rule.Value2
		}
		if rule.FontColor != "" || rule.FillColor != "" {
			style := &excelize.Style{}
			if rule.FontColor != "" {
				style.Font = &excelize.Font{Color: rule.FontColor}
			}
			if rule.FillColor != "" {
				style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{rule.FillColor}}
			}
			formatID, err := w.file.NewConditionalStyle(style)
			if err != nil {
				return err
			}
			opt.Format = &formatID
		}
		options = append(options, opt)
	}
	return w.file.SetConditionalFormat(sheet, rangeRef, options)
}

func condFormatType(ruleType string) string {
	switch strings.ToLower(ruleType) {
	case "cellis", "cell-is", "cell":
		return "cell"
	case "colorscale", "color-scale":
		return "3_color_scale"
	case "databar", "data-bar":
		return "data_bar"
	case "top":
		return "top"
	case "duplicatevalues", "duplicate-values", "duplicate":
		return "duplicate"
	default:
		return ruleType
	}
}

func (w *fileWorkbook) ClearConditionalFormat(sheet, rangeRef string) error {
	return w.file.UnsetConditionalFormat(sheet, rangeRef)
}

// Slicers

func (w *fileWorkbook) ListSlicers(sheet string) ([]string, error) {
	return nil, ErrLiveExcelRequired
}

func (w *fileWorkbook) AddSlicer(opts *SlicerOptions) error {
	column := opts.Column
	if column == "" {
		column = opts.Name
	}
	width := opts.Width
	if width == 0 {
		width = 200
	}
	height := opts.Height
	if height == 0 {
		height = 200
	}
	return w.file.AddSlicer(opts.Sheet, &excelize.SlicerOptions{
		Name:      column,
		Cell:      opts.Cell,
		TableSheet: opts.Sheet,
		TableName: opts.TableName,
		Caption:   opts.Caption,
		Width:     width,
		Height:    height,
	})
}

// Live-Excel scoped operations

func (w *fileWorkbook) CalculationMode() (string, error) {
	return "", ErrLiveExcelRequired
}

func (w *fileWorkbook) SetCalculationMode(mode string) error {
	return ErrLiveExcelRequired
}

func (w *fileWorkbook) Recalculate() error {
	return ErrLiveExcelRequired
}

func (w *fileWorkbook) ScreenshotRange(sheet, rangeRef, outputPath string) error {
	return ErrLiveExcelRequired
}

func (w *fileWorkbook) ListConnections() ([]ConnectionInfo, error) { return nil, ErrLiveExcelRequired }
func (w *fileWorkbook) RefreshAllConnections() error               { return ErrLiveExcelRequired }
func (w *fileWorkbook) ListQueries() ([]QueryInfo, error)          { return nil, ErrLiveExcelRequired }
func (w *fileWorkbook) RefreshQuery(name string) error             { return ErrLiveExcelRequired }
func (w *fileWorkbook) RunMacro(macro string, args []string) (string, error) {
	return "", ErrLiveExcelRequired
}
func (w *fileWorkbook) ListVBAModules() ([]VBAModuleInfo, error) { return nil, ErrLiveExcelRequired }
func (w *fileWorkbook) ListModelTables() ([]TableInfo, error)    { return nil, ErrLiveExcelRequired }
func (w *fileWorkbook) ListMeasures() ([]MeasureInfo, error)     { return nil, ErrLiveExcelRequired }
func (w *fileWorkbook) AddMeasure(table, name, expression string) error {
	return ErrLiveExcelRequired
}
func (w *fileWorkbook) DeleteMeasure(name string) error { return ErrLiveExcelRequired }
func (w *fileWorkbook) ListRelationships() ([]RelationshipInfo, error) {
	return nil, ErrLiveExcelRequired
}
func (w *fileWorkbook) AddRelationship(rel *RelationshipInfo) error { return ErrLiveExcelRequired }
func (w *fileWorkbook) DeleteRelationship(fromTable, fromColumn, toTable, toColumn string) error {
	return ErrLiveExcelRequired
}
