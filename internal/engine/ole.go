package engine

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/xuri/excelize/v2"
)

// oleWorkbook drives one dedicated Excel application instance bound to one
// open workbook over COM automation. Only functional on Windows with Excel
// installed; on other platforms CreateObject fails and the factory falls
// back to the file backend.
type oleWorkbook struct {
	app      *ole.IDispatch
	workbook *ole.IDispatch
	path     string
	released bool
}

// Excel enumeration constants used below
const (
	xlSheetVisible                = -1
	xlSheetHidden                 = 0
	xlPart                        = 2
	xlCellValue                   = 1
	xlDatabase                    = 1
	xlOpenXMLWorkbook             = 51
	xlOpenXMLWorkbookMacroEnabled = 52
	xlCalculationAutomatic        = -4105
	xlCalculationManual           = -4135
	xlCalculationSemiautomatic    = 2
	xlScreen                      = 1
	xlBitmap                      = 2
)

func openLiveWorkbook(path string, timeout time.Duration) (Workbook, error) {
	return newOleWorkbook(path, false)
}

func createLiveWorkbook(path string, timeout time.Duration) (Workbook, error) {
	return newOleWorkbook(path, true)
}

func newOleWorkbook(path string, create bool) (Workbook, error) {
	runtime.LockOSThread()
	ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)

	unknown, err := oleutil.CreateObject("Excel.Application")
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to launch Excel application: %w", err)
	}
	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to query Excel interface: %w", err)
	}

	// Background automation instance: invisible, no modal prompts
	oleutil.PutProperty(app, "Visible", false)
	oleutil.PutProperty(app, "DisplayAlerts", false)

	workbooksProp, err := oleutil.GetProperty(app, "Workbooks")
	if err != nil {
		releaseApp(app)
		return nil, fmt.Errorf("failed to get Workbooks: %w", err)
	}
	workbooks := workbooksProp.ToIDispatch()
	defer workbooks.Release()

	var wbResult *ole.VARIANT
	if create {
		wbResult, err = oleutil.CallMethod(workbooks, "Add")
		if err == nil {
			wb := wbResult.ToIDispatch()
			format := xlOpenXMLWorkbook
			if strings.EqualFold(filepath.Ext(path), ".xlsm") {
				format = xlOpenXMLWorkbookMacroEnabled
			}
			if _, saveErr := oleutil.CallMethod(wb, "SaveAs", path, format); saveErr != nil {
				wb.Release()
				releaseApp(app)
				return nil, fmt.Errorf("failed to save new workbook: %w", saveErr)
			}
			return &oleWorkbook{app: app, workbook: wb, path: path}, nil
		}
	} else {
		wbResult, err = oleutil.CallMethod(workbooks, "Open", path)
		if err == nil {
			return &oleWorkbook{app: app, workbook: wbResult.ToIDispatch(), path: path}, nil
		}
	}

	releaseApp(app)
	return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
}

func releaseApp(app *ole.IDispatch) {
	oleutil.CallMethod(app, "Quit")
	app.Release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
}

func (w *oleWorkbook) BackendName() string { return "ole" }
func (w *oleWorkbook) Path() string        { return w.path }

// Alive probes the Excel process with a trivial property read. If the
// process was killed the COM call fails immediately.
func (w *oleWorkbook) Alive() bool {
	if w.released {
		return false
	}
	_, err := oleutil.GetProperty(w.app, "Name")
	return err == nil
}

func (w *oleWorkbook) Save() error {
	_, err := oleutil.CallMethod(w.workbook, "Save")
	return err
}

func (w *oleWorkbook) SaveAs(path string) error {
	if _, err := oleutil.CallMethod(w.workbook, "SaveAs", path); err != nil {
		return err
	}
	w.path = path
	return nil
}

func (w *oleWorkbook) Close(save bool) error {
	if w.released {
		return nil
	}
	w.released = true

	// Best effort when the process is already gone
	oleutil.CallMethod(w.workbook, "Close", save)
	w.workbook.Release()
	releaseApp(w.app)
	return nil
}

// worksheets returns the Worksheets collection; callers release it
func (w *oleWorkbook) worksheets() (*ole.IDispatch, error) {
	prop, err := oleutil.GetProperty(w.workbook, "Worksheets")
	if err != nil {
		return nil, fmt.Errorf("failed to get Worksheets: %w", err)
	}
	return prop.ToIDispatch(), nil
}

// sheet returns one worksheet by name; callers release it
func (w *oleWorkbook) sheet(name string) (*ole.IDispatch, error) {
	worksheets, err := w.worksheets()
	if err != nil {
		return nil, err
	}
	defer worksheets.Release()

	prop, err := oleutil.GetProperty(worksheets, "Item", name)
	if err != nil {
		return nil, fmt.Errorf("sheet %q not found: %w", name, err)
	}
	return prop.ToIDispatch(), nil
}

// rangeOf returns a Range object on the named sheet; callers release it
func (w *oleWorkbook) rangeOf(sheetName, rangeRef string) (*ole.IDispatch, error) {
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()

	prop, err := oleutil.GetProperty(sheet, "Range", rangeRef)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", rangeRef, err)
	}
	return prop.ToIDispatch(), nil
}

func (w *oleWorkbook) ListSheets() ([]SheetInfo, error) {
	worksheets, err := w.worksheets()
	if err != nil {
		return nil, err
	}
	defer worksheets.Release()

	countProp, err := oleutil.GetProperty(worksheets, "Count")
	if err != nil {
		return nil, err
	}
	count := int(countProp.Val)

	sheets := make([]SheetInfo, 0, count)
	for i := 1; i <= count; i++ {
		itemProp, err := oleutil.GetProperty(worksheets, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, nameErr := oleutil.GetProperty(item, "Name")
		visibleProp, visErr := oleutil.GetProperty(item, "Visible")
		item.Release()
		if nameErr != nil || visErr != nil {
			continue
		}
		sheets = append(sheets, SheetInfo{
			Name:    nameProp.ToString(),
			Index:   i - 1,
			Visible: visibleProp.Val == xlSheetVisible,
		})
	}
	return sheets, nil
}

func (w *oleWorkbook) CreateSheet(name string) error {
	worksheets, err := w.worksheets()
	if err != nil {
		return err
	}
	defer worksheets.Release()

	addProp, err := oleutil.CallMethod(worksheets, "Add")
	if err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	added := addProp.ToIDispatch()
	defer added.Release()

	_, err = oleutil.PutProperty(added, "Name", name)
	return err
}

func (w *oleWorkbook) RenameSheet(oldName, newName string) error {
	sheet, err := w.sheet(oldName)
	if err != nil {
		return err
	}
	defer sheet.Release()
	_, err = oleutil.PutProperty(sheet, "Name", newName)
	return err
}

func (w *oleWorkbook) DeleteSheet(name string) error {
	sheet, err := w.sheet(name)
	if err != nil {
		return err
	}
	defer sheet.Release()
	_, err = oleutil.CallMethod(sheet, "Delete")
	return err
}

func (w *oleWorkbook) CopySheet(src, dst string) error {
	sheet, err := w.sheet(src)
	if err != nil {
		return err
	}
	defer sheet.Release()

	// Copy after itself, then rename the copy (which becomes active)
	if _, err := oleutil.CallMethod(sheet, "Copy", nil, sheet); err != nil {
		return fmt.Errorf("failed to copy sheet: %w", err)
	}
	activeProp, err := oleutil.GetProperty(w.app, "ActiveSheet")
	if err != nil {
		return err
	}
	active := activeProp.ToIDispatch()
	defer active.Release()
	_, err = oleutil.PutProperty(active, "Name", dst)
	return err
}

func (w *oleWorkbook) MoveSheet(name, target string) error {
	sheet, err := w.sheet(name)
	if err != nil {
		return err
	}
	defer sheet.Release()
	targetSheet, err := w.sheet(target)
	if err != nil {
		return err
	}
	defer targetSheet.Release()
	_, err = oleutil.CallMethod(sheet, "Move", targetSheet)
	return err
}

func (w *oleWorkbook) SetSheetVisible(name string, visible bool) error {
	sheet, err := w.sheet(name)
	if err != nil {
		return err
	}
	defer sheet.Release()
	state := xlSheetHidden
	if visible {
		state = xlSheetVisible
	}
	_, err = oleutil.PutProperty(sheet, "Visible", state)
	return err
}

func (w *oleWorkbook) GetValues(sheetName, rangeRef string) ([][]string, error) {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return nil, err
	}
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()

	values := make([][]string, 0, y2-y1+1)
	for y := y1; y <= y2; y++ {
		row := make([]string, 0, x2-x1+1)
		for x := x1; x <= x2; x++ {
			cellProp, err := oleutil.GetProperty(sheet, "Cells", y, x)
			if err != nil {
				return nil, err
			}
			cell := cellProp.ToIDispatch()
			textProp, err := oleutil.GetProperty(cell, "Text")
			cell.Release()
			if err != nil {
				return nil, err
			}
			row = append(row, textProp.ToString())
		}
		values = append(values, row)
	}
	return values, nil
}

func (w *oleWorkbook) SetValues(sheetName, startCell string, values [][]any) error {
	x0, y0, err := excelize.CellNameToCoordinates(startCell)
	if err != nil {
		return fmt.Errorf("invalid start cell %q: %w", startCell, err)
	}
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return err
	}
	defer sheet.Release()

	for dy, row := range values {
		for dx, value := range row {
			cellProp, err := oleutil.GetProperty(sheet, "Cells", y0+dy, x0+dx)
			if err != nil {
				return err
			}
			cell := cellProp.ToIDispatch()
			_, err = oleutil.PutProperty(cell, "Value", value)
			cell.Release()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *oleWorkbook) GetFormulas(sheetName, rangeRef string) ([][]string, error) {
	x1, y1, x2, y2, err := parseRange(rangeRef)
	if err != nil {
		return nil, err
	}
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()

	formulas := make([][]string, 0, y2-y1+1)
	for y := y1; y <= y2; y++ {
		row := make([]string, 0, x2-x1+1)
		for x := x1; x <= x2; x++ {
			cellProp, err := oleutil.GetProperty(sheet, "Cells", y, x)
			if err != nil {
				return nil, err
			}
			cell := cellProp.ToIDispatch()
			formulaProp, err := oleutil.GetProperty(cell, "Formula")
			cell.Release()
			if err != nil {
				return nil, err
			}
			row = append(row, formulaProp.ToString())
		}
		formulas = append(formulas, row)
	}
	return formulas, nil
}

func (w *oleWorkbook) SetFormula(sheetName, cell, formula string) error {
	rng, err := w.rangeOf(sheetName, cell)
	if err != nil {
		return err
	}
	defer rng.Release()
	if !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}
	_, err = oleutil.PutProperty(rng, "Formula", formula)
	return err
}

func (w *oleWorkbook) FormatRange(sheetName, rangeRef string, style *RangeStyle) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()

	if style.FontBold != nil || style.FontItalic != nil || style.FontSize != nil || style.FontColor != nil {
		fontProp, err := oleutil.GetProperty(rng, "Font")
		if err != nil {
			return err
		}
		font := fontProp.ToIDispatch()
		defer font.Release()
		if style.FontBold != nil {
			oleutil.PutProperty(font, "Bold", *style.FontBold)
		}
		if style.FontItalic != nil {
			oleutil.PutProperty(font, "Italic", *style.FontItalic)
		}
		if style.FontSize != nil {
			oleutil.PutProperty(font, "Size", *style.FontSize)
		}
		if style.FontColor != nil {
			oleutil.PutProperty(font, "Color", bgrColor(*style.FontColor))
		}
	}
	if style.FillColor != nil {
		interiorProp, err := oleutil.GetProperty(rng, "Interior")
		if err != nil {
			return err
		}
		interior := interiorProp.ToIDispatch()
		defer interior.Release()
		oleutil.PutProperty(interior, "Color", bgrColor(*style.FillColor))
	}
	if style.NumberFormat != nil {
		oleutil.PutProperty(rng, "NumberFormat", *style.NumberFormat)
	}
	if style.HorizontalAlign != nil {
		oleutil.PutProperty(rng, "HorizontalAlignment", alignConstant(*style.HorizontalAlign))
	}
	return nil
}

// bgrColor converts an "RRGGBB" hex string into Excel's BGR color integer
func bgrColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0
	}
	var r, g, b int
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return b<<16 | g<<8 | r
}

func alignConstant(align string) int {
	switch strings.ToLower(align) {
	case "center":
		return -4108
	case "right":
		return -4152
	default:
		return -4131 // left
	}
}

func (w *oleWorkbook) ClearRange(sheetName, rangeRef string) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()
	_, err = oleutil.CallMethod(rng, "ClearContents")
	return err
}

func (w *oleWorkbook) MergeCells(sheetName, rangeRef string) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()
	_, err = oleutil.CallMethod(rng, "Merge")
	return err
}

func (w *oleWorkbook) UnmergeCells(sheetName, rangeRef string) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()
	_, err = oleutil.CallMethod(rng, "UnMerge")
	return err
}

func (w *oleWorkbook) AutoFitColumns(sheetName, startCol, endCol string) error {
	rng, err := w.rangeOf(sheetName, fmt.Sprintf("%s:%s", startCol, endCol))
	if err != nil {
		return err
	}
	defer rng.Release()
	columnsProp, err := oleutil.GetProperty(rng, "EntireColumn")
	if err != nil {
		return err
	}
	columns := columnsProp.ToIDispatch()
	defer columns.Release()
	_, err = oleutil.CallMethod(columns, "AutoFit")
	return err
}

func (w *oleWorkbook) FindReplace(sheetName, find, replace string, matchCase bool) (int, error) {
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return 0, err
	}
	defer sheet.Release()

	usedProp, err := oleutil.GetProperty(sheet, "UsedRange")
	if err != nil {
		return 0, err
	}
	used := usedProp.ToIDispatch()
	defer used.Release()

	count := 0
	for {
		foundProp, err := oleutil.CallMethod(used, "Find", find, nil, xlCellValue, xlPart, nil, nil, matchCase)
		if err != nil || foundProp.Val == 0 {
			break
		}
		found := foundProp.ToIDispatch()
		valueProp, err := oleutil.GetProperty(found, "Value")
		if err != nil {
			found.Release()
			break
		}
		value := valueProp.ToString()
		var replaced string
		if matchCase {
			replaced = strings.ReplaceAll(value, find, replace)
		} else {
			replaced = replaceFold(value, find, replace)
		}
		_, err = oleutil.PutProperty(found, "Value", replaced)
		found.Release()
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (w *oleWorkbook) listObjects(sheetName string) (*ole.IDispatch, error) {
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()
	prop, err := oleutil.GetProperty(sheet, "ListObjects")
	if err != nil {
		return nil, fmt.Errorf("failed to get ListObjects: %w", err)
	}
	return prop.ToIDispatch(), nil
}

func (w *oleWorkbook) ListTables(sheetName string) ([]TableInfo, error) {
	tables, err := w.listObjects(sheetName)
	if err != nil {
		return nil, err
	}
	defer tables.Release()

	countProp, err := oleutil.GetProperty(tables, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]TableInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(tables, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		rangeProp, rangeErr := oleutil.GetProperty(item, "Range")
		address := ""
		if rangeErr == nil {
			rng := rangeProp.ToIDispatch()
			if addrProp, addrErr := oleutil.GetProperty(rng, "Address"); addrErr == nil {
				address = strings.ReplaceAll(addrProp.ToString(), "$", "")
			}
			rng.Release()
		}
		item.Release()
		if nameProp != nil {
			infos = append(infos, TableInfo{Name: nameProp.ToString(), Range: address})
		}
	}
	return infos, nil
}

func (w *oleWorkbook) AddTable(sheetName, rangeRef, name string) error {
	tables, err := w.listObjects(sheetName)
	if err != nil {
		return err
	}
	defer tables.Release()

	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()

	// xlSrcRange=1, xlYes=1 (range has headers)
	addedProp, err := oleutil.CallMethod(tables, "Add", 1, rng, nil, 1)
	if err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}
	added := addedProp.ToIDispatch()
	defer added.Release()
	_, err = oleutil.PutProperty(added, "Name", name)
	return err
}

func (w *oleWorkbook) table(sheetName, name string) (*ole.IDispatch, error) {
	tables, err := w.listObjects(sheetName)
	if err != nil {
		return nil, err
	}
	defer tables.Release()
	prop, err := oleutil.GetProperty(tables, "Item", name)
	if err != nil {
		return nil, fmt.Errorf("table %q not found on sheet %q", name, sheetName)
	}
	return prop.ToIDispatch(), nil
}

func (w *oleWorkbook) DeleteTable(name string) error {
	sheets, err := w.ListSheets()
	if err != nil {
		return err
	}
	for _, info := range sheets {
		table, err := w.table(info.Name, name)
		if err != nil {
			continue
		}
		_, err = oleutil.CallMethod(table, "Delete")
		table.Release()
		return err
	}
	return fmt.Errorf("table %q not found", name)
}

func (w *oleWorkbook) GetTableData(sheetName, name string) ([][]string, error) {
	table, err := w.table(sheetName, name)
	if err != nil {
		return nil, err
	}
	defer table.Release()
	rangeProp, err := oleutil.GetProperty(table, "Range")
	if err != nil {
		return nil, err
	}
	rng := rangeProp.ToIDispatch()
	defer rng.Release()
	addrProp, err := oleutil.GetProperty(rng, "Address")
	if err != nil {
		return nil, err
	}
	return w.GetValues(sheetName, strings.ReplaceAll(addrProp.ToString(), "$", ""))
}

func (w *oleWorkbook) AppendTableRows(sheetName, name string, rows [][]any) error {
	table, err := w.table(sheetName, name)
	if err != nil {
		return err
	}
	defer table.Release()

	listRowsProp, err := oleutil.GetProperty(table, "ListRows")
	if err != nil {
		return err
	}
	listRows := listRowsProp.ToIDispatch()
	defer listRows.Release()

	for _, row := range rows {
		addedProp, err := oleutil.CallMethod(listRows, "Add")
		if err != nil {
			return err
		}
		added := addedProp.ToIDispatch()
		rangeProp, rangeErr := oleutil.GetProperty(added, "Range")
		added.Release()
		if rangeErr != nil {
			return rangeErr
		}
		rng := rangeProp.ToIDispatch()
		for i, value := range row {
			cellProp, cellErr := oleutil.GetProperty(rng, "Cells", 1, i+1)
			if cellErr != nil {
				rng.Release()
				return cellErr
			}
			cell := cellProp.ToIDispatch()
			_, cellErr = oleutil.PutProperty(cell, "Value", value)
			cell.Release()
			if cellErr != nil {
				rng.Release()
				return cellErr
			}
		}
		rng.Release()
	}
	return nil
}

func (w *oleWorkbook) SetTableStyle(sheetName, name, style string) error {
	table, err := w.table(sheetName, name)
	if err != nil {
		return err
	}
	defer table.Release()
	_, err = oleutil.PutProperty(table, "TableStyle", style)
	return err
}

func (w *oleWorkbook) ListPivotTables(sheetName string) ([]PivotTableInfo, error) {
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()

	pivotsProp, err := oleutil.CallMethod(sheet, "PivotTables")
	if err != nil {
		return nil, err
	}
	pivots := pivotsProp.ToIDispatch()
	defer pivots.Release()

	countProp, err := oleutil.GetProperty(pivots, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]PivotTableInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(pivots, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		address := ""
		if rangeProp, rangeErr := oleutil.GetProperty(item, "TableRange2"); rangeErr == nil {
			rng := rangeProp.ToIDispatch()
			if addrProp, addrErr := oleutil.GetProperty(rng, "Address"); addrErr == nil {
				address = strings.ReplaceAll(addrProp.ToString(), "$", "")
			}
			rng.Release()
		}
		item.Release()
		if nameProp != nil {
			infos = append(infos, PivotTableInfo{Name: nameProp.ToString(), Range: address})
		}
	}
	return infos, nil
}

func (w *oleWorkbook) AddPivotTable(opts *PivotTableOptions) error {
	cachesProp, err := oleutil.CallMethod(w.workbook, "PivotCaches")
	if err != nil {
		return err
	}
	caches := cachesProp.ToIDispatch()
	defer caches.Release()

	cacheProp, err := oleutil.CallMethod(caches, "Create", xlDatabase, opts.DataRange)
	if err != nil {
		return fmt.Errorf("failed to create pivot cache: %w", err)
	}
	cache := cacheProp.ToIDispatch()
	defer cache.Release()

	pivotProp, err := oleutil.CallMethod(cache, "CreatePivotTable",
		qualifyRange(opts.Sheet, opts.TargetRange), opts.Name)
	if err != nil {
		return fmt.Errorf("failed to create pivot table: %w", err)
	}
	pivot := pivotProp.ToIDispatch()
	defer pivot.Release()

	// Orientation: 1=row, 2=column, 3=page (filter), 4=data
	setOrientation := func(fields []string, orientation int) error {
		for _, field := range fields {
			fieldProp, err := oleutil.CallMethod(pivot, "PivotFields", field)
			if err != nil {
				return fmt.Errorf("pivot field %q not found: %w", field, err)
			}
			f := fieldProp.ToIDispatch()
			_, err = oleutil.PutProperty(f, "Orientation", orientation)
			f.Release()
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := setOrientation(opts.Rows, 1); err != nil {
		return err
	}
	if err := setOrientation(opts.Columns, 2); err != nil {
		return err
	}
	if err := setOrientation(opts.Filters, 3); err != nil {
		return err
	}
	return setOrientation(opts.Values, 4)
}

func (w *oleWorkbook) pivotTable(sheetName, name string) (*ole.IDispatch, error) {
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()
	prop, err := oleutil.CallMethod(sheet, "PivotTables", name)
	if err != nil {
		return nil, fmt.Errorf("pivot table %q not found on sheet %q", name, sheetName)
	}
	return prop.ToIDispatch(), nil
}

func (w *oleWorkbook) DeletePivotTable(sheetName, name string) error {
	pivot, err := w.pivotTable(sheetName, name)
	if err != nil {
		return err
	}
	defer pivot.Release()
	rangeProp, err := oleutil.GetProperty(pivot, "TableRange2")
	if err != nil {
		return err
	}
	rng := rangeProp.ToIDispatch()
	defer rng.Release()
	_, err = oleutil.CallMethod(rng, "Clear")
	return err
}

func (w *oleWorkbook) RefreshPivotTable(sheetName, name string) error {
	pivot, err := w.pivotTable(sheetName, name)
	if err != nil {
		return err
	}
	defer pivot.Release()
	_, err = oleutil.CallMethod(pivot, "RefreshTable")
	return err
}

func (w *oleWorkbook) chartObjects(sheetName string) (*ole.IDispatch, error) {
	sheet, err := w.sheet(sheetName)
	if err != nil {
		return nil, err
	}
	defer sheet.Release()
	prop, err := oleutil.CallMethod(sheet, "ChartObjects")
	if err != nil {
		return nil, err
	}
	return prop.ToIDispatch(), nil
}

func (w *oleWorkbook) ListCharts(sheetName string) ([]string, error) {
	charts, err := w.chartObjects(sheetName)
	if err != nil {
		return nil, err
	}
	defer charts.Release()

	countProp, err := oleutil.GetProperty(charts, "Count")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(charts, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		if nameProp, nameErr := oleutil.GetProperty(item, "Name"); nameErr == nil {
			names = append(names, nameProp.ToString())
		}
		item.Release()
	}
	return names, nil
}

var oleChartTypes = map[string]int{
	"col":         51, // xlColumnClustered
	"col-stacked": 52,
	"bar":         57,
	"bar-stacked": 58,
	"line":        4,
	"pie":         5,
	"doughnut":    -4120,
	"scatter":     -4169,
	"area":        1,
	"radar":       -4151,
}

func (w *oleWorkbook) AddChart(opts *ChartOptions) error {
	chartType, ok := oleChartTypes[strings.ToLower(opts.Type)]
	if !ok {
		return fmt.Errorf("unsupported chart type %q", opts.Type)
	}

	charts, err := w.chartObjects(opts.Sheet)
	if err != nil {
		return err
	}
	defer charts.Release()

	anchor, err := w.rangeOf(opts.Sheet, opts.Cell)
	if err != nil {
		return err
	}
	defer anchor.Release()
	leftProp, _ := oleutil.GetProperty(anchor, "Left")
	topProp, _ := oleutil.GetProperty(anchor, "Top")

	objProp, err := oleutil.CallMethod(charts, "Add",
		leftProp.Value(), topProp.Value(), 360, 220)
	if err != nil {
		return fmt.Errorf("failed to add chart: %w", err)
	}
	obj := objProp.ToIDispatch()
	defer obj.Release()

	chartProp, err := oleutil.GetProperty(obj, "Chart")
	if err != nil {
		return err
	}
	chart := chartProp.ToIDispatch()
	defer chart.Release()

	oleutil.PutProperty(chart, "ChartType", chartType)
	for _, series := range opts.Series {
		values, err := w.rangeOf(opts.Sheet, series.Values)
		if err != nil {
			return err
		}
		if _, err := oleutil.CallMethod(chart, "SetSourceData", values); err != nil {
			values.Release()
			return err
		}
		values.Release()
	}
	if opts.Title != "" {
		oleutil.PutProperty(chart, "HasTitle", true)
		titleProp, err := oleutil.GetProperty(chart, "ChartTitle")
		if err == nil {
			title := titleProp.ToIDispatch()
			oleutil.PutProperty(title, "Text", opts.Title)
			title.Release()
		}
	}
	return nil
}

func (w *oleWorkbook) DeleteChart(sheetName, cell string) error {
	charts, err := w.chartObjects(sheetName)
	if err != nil {
		return err
	}
	defer charts.Release()
	// cell carries the chart object name for the live backend
	itemProp, err := oleutil.GetProperty(charts, "Item", cell)
	if err != nil {
		return fmt.Errorf("chart %q not found: %w", cell, err)
	}
	item := itemProp.ToIDispatch()
	defer item.Release()
	_, err = oleutil.CallMethod(item, "Delete")
	return err
}

func (w *oleWorkbook) ConfigureChart(cfg *ChartConfig) error {
	charts, err := w.chartObjects(cfg.Sheet)
	if err != nil {
		return err
	}
	defer charts.Release()
	itemProp, err := oleutil.GetProperty(charts, "Item", cfg.Name)
	if err != nil {
		return fmt.Errorf("chart %q not found: %w", cfg.Name, err)
	}
	item := itemProp.ToIDispatch()
	defer item.Release()
	chartProp, err := oleutil.GetProperty(item, "Chart")
	if err != nil {
		return err
	}
	chart := chartProp.ToIDispatch()
	defer chart.Release()

	if cfg.Title != nil {
		oleutil.PutProperty(chart, "HasTitle", true)
		if titleProp, titleErr := oleutil.GetProperty(chart, "ChartTitle"); titleErr == nil {
			title := titleProp.ToIDispatch()
			oleutil.PutProperty(title, "Text", *cfg.Title)
			title.Release()
		}
	}
	setAxisTitle := func(axisType int, text string) {
		axisProp, axisErr := oleutil.CallMethod(chart, "Axes", axisType)
		if axisErr != nil {
			return
		}
		axis := axisProp.ToIDispatch()
		defer axis.Release()
		oleutil.PutProperty(axis, "HasTitle", true)
		if titleProp, titleErr := oleutil.GetProperty(axis, "AxisTitle"); titleErr == nil {
			title := titleProp.ToIDispatch()
			oleutil.PutProperty(title, "Text", text)
			title.Release()
		}
	}
	if cfg.XAxisTitle != nil {
		setAxisTitle(1, *cfg.XAxisTitle) // xlCategory
	}
	if cfg.YAxisTitle != nil {
		setAxisTitle(2, *cfg.YAxisTitle) // xlValue
	}
	if cfg.ShowLegend != nil {
		oleutil.PutProperty(chart, "HasLegend", *cfg.ShowLegend)
	}
	return nil
}

func (w *oleWorkbook) ListDefinedNames() ([]DefinedNameInfo, error) {
	namesProp, err := oleutil.GetProperty(w.workbook, "Names")
	if err != nil {
		return nil, err
	}
	names := namesProp.ToIDispatch()
	defer names.Release()

	countProp, err := oleutil.GetProperty(names, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]DefinedNameInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(names, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		refersProp, _ := oleutil.GetProperty(item, "RefersTo")
		item.Release()
		if nameProp == nil || refersProp == nil {
			continue
		}
		infos = append(infos, DefinedNameInfo{
			Name:     nameProp.ToString(),
			RefersTo: refersProp.ToString(),
			Scope:    "Workbook",
		})
	}
	return infos, nil
}

func (w *oleWorkbook) SetDefinedName(name, refersTo, scope string) error {
	namesProp, err := oleutil.GetProperty(w.workbook, "Names")
	if err != nil {
		return err
	}
	names := namesProp.ToIDispatch()
	defer names.Release()
	if !strings.HasPrefix(refersTo, "=") {
		refersTo = "=" + refersTo
	}
	_, err = oleutil.CallMethod(names, "Add", name, refersTo)
	return err
}

func (w *oleWorkbook) DeleteDefinedName(name, scope string) error {
	namesProp, err := oleutil.GetProperty(w.workbook, "Names")
	if err != nil {
		return err
	}
	names := namesProp.ToIDispatch()
	defer names.Release()
	itemProp, err := oleutil.GetProperty(names, "Item", name)
	if err != nil {
		return fmt.Errorf("defined name %q not found: %w", name, err)
	}
	item := itemProp.ToIDispatch()
	defer item.Release()
	_, err = oleutil.CallMethod(item, "Delete")
	return err
}

func (w *oleWorkbook) SetConditionalFormat(sheetName, rangeRef string, rules []ConditionalFormatRule) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()

	conditionsProp, err := oleutil.GetProperty(rng, "FormatConditions")
	if err != nil {
		return err
	}
	conditions := conditionsProp.ToIDispatch()
	defer conditions.Release()

	for _, rule := range rules {
		condProp, err := oleutil.CallMethod(conditions, "Add",
			xlCellValue, oleOperator(rule.Criteria), rule.Value)
		if err != nil {
			return fmt.Errorf("failed to add conditional format: %w", err)
		}
		cond := condProp.ToIDispatch()
		if rule.FontColor != "" {
			if fontProp, fontErr := oleutil.GetProperty(cond, "Font"); fontErr == nil {
				font := fontProp.ToIDispatch()
				oleutil.PutProperty(font, "Color", bgrColor(rule.FontColor))
				font.Release()
			}
		}
		if rule.FillColor != "" {
			if interiorProp, intErr := oleutil.GetProperty(cond, "Interior"); intErr == nil {
				interior := interiorProp.ToIDispatch()
				oleutil.PutProperty(interior, "Color", bgrColor(rule.FillColor))
				interior.Release()
			}
		}
		cond.Release()
	}
	return nil
}

func oleOperator(criteria string) int {
	switch criteria {
	case ">":
		return 5 // xlGreater
	case "<":
		return 6 // xlLess
	case ">=":
		return 7
	case "<=":
		return 8
	case "==", "=":
		return 3 // xlEqual
	case "!=", "<>":
		return 4
	default:
		return 1 // xlBetween
	}
}

func (w *oleWorkbook) ClearConditionalFormat(sheetName, rangeRef string) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()
	conditionsProp, err := oleutil.GetProperty(rng, "FormatConditions")
	if err != nil {
		return err
	}
	conditions := conditionsProp.ToIDispatch()
	defer conditions.Release()
	_, err = oleutil.CallMethod(conditions, "Delete")
	return err
}

func (w *oleWorkbook) ListSlicers(sheetName string) ([]string, error) {
	cachesProp, err := oleutil.GetProperty(w.workbook, "SlicerCaches")
	if err != nil {
		return nil, err
	}
	caches := cachesProp.ToIDispatch()
	defer caches.Release()

	countProp, err := oleutil.GetProperty(caches, "Count")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(caches, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		if nameProp, nameErr := oleutil.GetProperty(item, "Name"); nameErr == nil {
			names = append(names, nameProp.ToString())
		}
		item.Release()
	}
	return names, nil
}

func (w *oleWorkbook) AddSlicer(opts *SlicerOptions) error {
	table, err := w.table(opts.Sheet, opts.TableName)
	if err != nil {
		return err
	}
	defer table.Release()

	cachesProp, err := oleutil.GetProperty(w.workbook, "SlicerCaches")
	if err != nil {
		return err
	}
	caches := cachesProp.ToIDispatch()
	defer caches.Release()

	column := opts.Column
	if column == "" {
		column = opts.Name
	}
	cacheProp, err := oleutil.CallMethod(caches, "Add2", table, column)
	if err != nil {
		return fmt.Errorf("failed to create slicer cache: %w", err)
	}
	cache := cacheProp.ToIDispatch()
	defer cache.Release()

	slicersProp, err := oleutil.GetProperty(cache, "Slicers")
	if err != nil {
		return err
	}
	slicers := slicersProp.ToIDispatch()
	defer slicers.Release()

	sheet, err := w.sheet(opts.Sheet)
	if err != nil {
		return err
	}
	defer sheet.Release()

	anchor, err := w.rangeOf(opts.Sheet, opts.Cell)
	if err != nil {
		return err
	}
	defer anchor.Release()
	leftProp, _ := oleutil.GetProperty(anchor, "Left")
	topProp, _ := oleutil.GetProperty(anchor, "Top")

	caption := opts.Caption
	if caption == "" {
		caption = column
	}
	_, err = oleutil.CallMethod(slicers, "Add", sheet, nil, opts.Name, caption,
		topProp.Value(), leftProp.Value(), 200, 200)
	return err
}

// CalculationMode reads the application-level Calculation property. The
// setting belongs to the Excel process, not the workbook file, so the file
// backend cannot serve it.
func (w *oleWorkbook) CalculationMode() (string, error) {
	prop, err := oleutil.GetProperty(w.app, "Calculation")
	if err != nil {
		return "", fmt.Errorf("failed to read calculation mode: %w", err)
	}
	switch prop.Val {
	case xlCalculationManual:
		return "manual", nil
	case xlCalculationSemiautomatic:
		return "semiautomatic", nil
	default:
		return "automatic", nil
	}
}

func (w *oleWorkbook) SetCalculationMode(mode string) error {
	var value int
	switch strings.ToLower(mode) {
	case "automatic":
		value = xlCalculationAutomatic
	case "manual":
		value = xlCalculationManual
	case "semiautomatic":
		value = xlCalculationSemiautomatic
	default:
		return fmt.Errorf("unknown calculation mode %q (use automatic, manual or semiautomatic)", mode)
	}
	_, err := oleutil.PutProperty(w.app, "Calculation", value)
	return err
}

func (w *oleWorkbook) Recalculate() error {
	_, err := oleutil.CallMethod(w.app, "CalculateFull")
	return err
}

// ScreenshotRange renders a range to an image file. Excel has no direct
// range export, so the range is copied as a bitmap and pasted into a
// temporary chart object sized to match, which can export itself.
func (w *oleWorkbook) ScreenshotRange(sheetName, rangeRef, outputPath string) error {
	rng, err := w.rangeOf(sheetName, rangeRef)
	if err != nil {
		return err
	}
	defer rng.Release()

	widthProp, err := oleutil.GetProperty(rng, "Width")
	if err != nil {
		return err
	}
	heightProp, err := oleutil.GetProperty(rng, "Height")
	if err != nil {
		return err
	}

	if _, err := oleutil.CallMethod(rng, "CopyPicture", xlScreen, xlBitmap); err != nil {
		return fmt.Errorf("failed to copy range as picture: %w", err)
	}

	sheet, err := w.sheet(sheetName)
	if err != nil {
		return err
	}
	defer sheet.Release()

	chartObjectsProp, err := oleutil.CallMethod(sheet, "ChartObjects")
	if err != nil {
		return err
	}
	chartObjects := chartObjectsProp.ToIDispatch()
	defer chartObjects.Release()

	addedProp, err := oleutil.CallMethod(chartObjects, "Add",
		0, 0, widthProp.Value(), heightProp.Value())
	if err != nil {
		return fmt.Errorf("failed to create export chart: %w", err)
	}
	added := addedProp.ToIDispatch()
	defer added.Release()
	defer oleutil.CallMethod(added, "Delete")

	chartProp, err := oleutil.GetProperty(added, "Chart")
	if err != nil {
		return err
	}
	chart := chartProp.ToIDispatch()
	defer chart.Release()

	if _, err := oleutil.CallMethod(chart, "Paste"); err != nil {
		return fmt.Errorf("failed to paste range picture: %w", err)
	}
	if _, err := oleutil.CallMethod(chart, "Export", outputPath); err != nil {
		return fmt.Errorf("failed to export screenshot: %w", err)
	}
	return nil
}

func (w *oleWorkbook) ListConnections() ([]ConnectionInfo, error) {
	connectionsProp, err := oleutil.GetProperty(w.workbook, "Connections")
	if err != nil {
		return nil, err
	}
	connections := connectionsProp.ToIDispatch()
	defer connections.Release()

	countProp, err := oleutil.GetProperty(connections, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]ConnectionInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(connections, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		typeProp, _ := oleutil.GetProperty(item, "Type")
		descProp, _ := oleutil.GetProperty(item, "Description")
		item.Release()
		if nameProp == nil {
			continue
		}
		info := ConnectionInfo{Name: nameProp.ToString()}
		if typeProp != nil {
			info.Type = fmt.Sprintf("%v", typeProp.Value())
		}
		if descProp != nil {
			info.Description = descProp.ToString()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (w *oleWorkbook) RefreshAllConnections() error {
	_, err := oleutil.CallMethod(w.workbook, "RefreshAll")
	return err
}

func (w *oleWorkbook) ListQueries() ([]QueryInfo, error) {
	queriesProp, err := oleutil.GetProperty(w.workbook, "Queries")
	if err != nil {
		return nil, fmt.Errorf("failed to get Queries: %w", err)
	}
	queries := queriesProp.ToIDispatch()
	defer queries.Release()

	countProp, err := oleutil.GetProperty(queries, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]QueryInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(queries, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		formulaProp, _ := oleutil.GetProperty(item, "Formula")
		item.Release()
		if nameProp == nil {
			continue
		}
		info := QueryInfo{Name: nameProp.ToString()}
		if formulaProp != nil {
			info.Formula = formulaProp.ToString()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (w *oleWorkbook) RefreshQuery(name string) error {
	connectionsProp, err := oleutil.GetProperty(w.workbook, "Connections")
	if err != nil {
		return err
	}
	connections := connectionsProp.ToIDispatch()
	defer connections.Release()

	// Power Query connections are named "Query - <name>"
	itemProp, err := oleutil.GetProperty(connections, "Item", "Query - "+name)
	if err != nil {
		return fmt.Errorf("query %q not found: %w", name, err)
	}
	item := itemProp.ToIDispatch()
	defer item.Release()
	_, err = oleutil.CallMethod(item, "Refresh")
	return err
}

func (w *oleWorkbook) RunMacro(macro string, args []string) (string, error) {
	callArgs := make([]interface{}, 0, 1+len(args))
	callArgs = append(callArgs, macro)
	for _, arg := range args {
		callArgs = append(callArgs, arg)
	}

	result, err := oleutil.CallMethod(w.app, "Run", callArgs...)
	if err != nil {
		return "", fmt.Errorf("failed to run macro %q: %w", macro, err)
	}
	if result.Val == 0 {
		return "", nil
	}
	return fmt.Sprintf("%v", result.Value()), nil
}

func (w *oleWorkbook) ListVBAModules() ([]VBAModuleInfo, error) {
	projectProp, err := oleutil.GetProperty(w.workbook, "VBProject")
	if err != nil {
		return nil, fmt.Errorf("failed to access VBA project (trust access to the VBA object model may be disabled): %w", err)
	}
	project := projectProp.ToIDispatch()
	defer project.Release()

	componentsProp, err := oleutil.GetProperty(project, "VBComponents")
	if err != nil {
		return nil, err
	}
	components := componentsProp.ToIDispatch()
	defer components.Release()

	countProp, err := oleutil.GetProperty(components, "Count")
	if err != nil {
		return nil, err
	}
	moduleTypes := map[int64]string{1: "module", 2: "class", 3: "form", 100: "document"}
	infos := make([]VBAModuleInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(components, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		typeProp, _ := oleutil.GetProperty(item, "Type")
		item.Release()
		if nameProp == nil {
			continue
		}
		info := VBAModuleInfo{Name: nameProp.ToString()}
		if typeProp != nil {
			if label, ok := moduleTypes[typeProp.Val]; ok {
				info.Type = label
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// model returns the workbook's Power Pivot data model; callers release it
func (w *oleWorkbook) model() (*ole.IDispatch, error) {
	modelProp, err := oleutil.GetProperty(w.workbook, "Model")
	if err != nil {
		return nil, fmt.Errorf("failed to access data model: %w", err)
	}
	return modelProp.ToIDispatch(), nil
}

func (w *oleWorkbook) ListModelTables() ([]TableInfo, error) {
	model, err := w.model()
	if err != nil {
		return nil, err
	}
	defer model.Release()

	tablesProp, err := oleutil.GetProperty(model, "ModelTables")
	if err != nil {
		return nil, err
	}
	tables := tablesProp.ToIDispatch()
	defer tables.Release()

	countProp, err := oleutil.GetProperty(tables, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]TableInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(tables, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		if nameProp, nameErr := oleutil.GetProperty(item, "Name"); nameErr == nil {
			infos = append(infos, TableInfo{Name: nameProp.ToString()})
		}
		item.Release()
	}
	return infos, nil
}

func (w *oleWorkbook) ListMeasures() ([]MeasureInfo, error) {
	model, err := w.model()
	if err != nil {
		return nil, err
	}
	defer model.Release()

	measuresProp, err := oleutil.GetProperty(model, "ModelMeasures")
	if err != nil {
		return nil, err
	}
	measures := measuresProp.ToIDispatch()
	defer measures.Release()

	countProp, err := oleutil.GetProperty(measures, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]MeasureInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(measures, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		nameProp, _ := oleutil.GetProperty(item, "Name")
		formulaProp, _ := oleutil.GetProperty(item, "Formula")
		tableName := ""
		if tableProp, tableErr := oleutil.GetProperty(item, "AssociatedTable"); tableErr == nil {
			table := tableProp.ToIDispatch()
			if tnProp, tnErr := oleutil.GetProperty(table, "Name"); tnErr == nil {
				tableName = tnProp.ToString()
			}
			table.Release()
		}
		item.Release()
		if nameProp == nil {
			continue
		}
		info := MeasureInfo{Name: nameProp.ToString(), Table: tableName}
		if formulaProp != nil {
			info.Expression = formulaProp.ToString()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (w *oleWorkbook) AddMeasure(table, name, expression string) error {
	model, err := w.model()
	if err != nil {
		return err
	}
	defer model.Release()

	tablesProp, err := oleutil.GetProperty(model, "ModelTables")
	if err != nil {
		return err
	}
	tables := tablesProp.ToIDispatch()
	defer tables.Release()
	tableProp, err := oleutil.GetProperty(tables, "Item", table)
	if err != nil {
		return fmt.Errorf("model table %q not found: %w", table, err)
	}
	modelTable := tableProp.ToIDispatch()
	defer modelTable.Release()

	measuresProp, err := oleutil.GetProperty(model, "ModelMeasures")
	if err != nil {
		return err
	}
	measures := measuresProp.ToIDispatch()
	defer measures.Release()

	formatProp, err := oleutil.GetProperty(model, "ModelFormatGeneral")
	if err != nil {
		return err
	}
	format := formatProp.ToIDispatch()
	defer format.Release()

	_, err = oleutil.CallMethod(measures, "Add", name, modelTable, expression, format)
	return err
}

func (w *oleWorkbook) DeleteMeasure(name string) error {
	model, err := w.model()
	if err != nil {
		return err
	}
	defer model.Release()

	measuresProp, err := oleutil.GetProperty(model, "ModelMeasures")
	if err != nil {
		return err
	}
	measures := measuresProp.ToIDispatch()
	defer measures.Release()
	itemProp, err := oleutil.GetProperty(measures, "Item", name)
	if err != nil {
		return fmt.Errorf("measure %q not found: %w", name, err)
	}
	item := itemProp.ToIDispatch()
	defer item.Release()
	_, err = oleutil.CallMethod(item, "Delete")
	return err
}

func (w *oleWorkbook) ListRelationships() ([]RelationshipInfo, error) {
	model, err := w.model()
	if err != nil {
		return nil, err
	}
	defer model.Release()

	relsProp, err := oleutil.GetProperty(model, "ModelRelationships")
	if err != nil {
		return nil, err
	}
	rels := relsProp.ToIDispatch()
	defer rels.Release()

	countProp, err := oleutil.GetProperty(rels, "Count")
	if err != nil {
		return nil, err
	}
	infos := make([]RelationshipInfo, 0, int(countProp.Val))
	for i := 1; i <= int(countProp.Val); i++ {
		itemProp, err := oleutil.GetProperty(rels, "Item", i)
		if err != nil {
			continue
		}
		item := itemProp.ToIDispatch()
		info := RelationshipInfo{}
		if activeProp, activeErr := oleutil.GetProperty(item, "Active"); activeErr == nil {
			info.Active = activeProp.Val != 0
		}
		readColumn := func(property string) (string, string) {
			columnProp, colErr := oleutil.GetProperty(item, property)
			if colErr != nil {
				return "", ""
			}
			column := columnProp.ToIDispatch()
			defer column.Release()
			columnName := ""
			tableName := ""
			if nameProp, nameErr := oleutil.GetProperty(column, "Name"); nameErr == nil {
				columnName = nameProp.ToString()
			}
			if parentProp, parentErr := oleutil.GetProperty(column, "Parent"); parentErr == nil {
				parent := parentProp.ToIDispatch()
				if nameProp, nameErr := oleutil.GetProperty(parent, "Name"); nameErr == nil {
					tableName = nameProp.ToString()
				}
				parent.Release()
			}
			return tableName, columnName
		}
		info.FromTable, info.FromColumn = readColumn("ForeignKeyColumn")
		info.ToTable, info.ToColumn = readColumn("PrimaryKeyColumn")
		item.Release()
		infos = append(infos, info)
	}
	return infos, nil
}

// modelColumn resolves table.column in the data model; callers release it
func (w *oleWorkbook) modelColumn(model *ole.IDispatch, table, column string) (*ole.IDispatch, error) {
	tablesProp, err := oleutil.GetProperty(model, "ModelTables")
	if err != nil {
		return nil, err
	}
	tables := tablesProp.ToIDispatch()
	defer tables.Release()
	tableProp, err := oleutil.GetProperty(tables, "Item", table)
	if err != nil {
		return nil, fmt.Errorf("model table %q not found: %w", table, err)
	}
	modelTable := tableProp.ToIDispatch()
	defer modelTable.Release()
	columnsProp, err := oleutil.GetProperty(modelTable, "ModelTableColumns")
	if err != nil {
		return nil, err
	}
	columns := columnsProp.ToIDispatch()
	defer columns.Release()
	columnProp, err := oleutil.GetProperty(columns, "Item", column)
	if err != nil {
		return nil, fmt.Errorf("column %q not found in model table %q: %w", column, table, err)
	}
	return columnProp.ToIDispatch(), nil
}

func (w *oleWorkbook) AddRelationship(rel *RelationshipInfo) error {
	model, err := w.model()
	if err != nil {
		return err
	}
	defer model.Release()

	foreign, err := w.modelColumn(model, rel.FromTable, rel.FromColumn)
	if err != nil {
		return err
	}
	defer foreign.Release()
	primary, err := w.modelColumn(model, rel.ToTable, rel.ToColumn)
	if err != nil {
		return err
	}
	defer primary.Release()

	relsProp, err := oleutil.GetProperty(model, "ModelRelationships")
	if err != nil {
		return err
	}
	rels := relsProp.ToIDispatch()
	defer rels.Release()
	_, err = oleutil.CallMethod(rels, "Add", foreign, primary)
	return err
}

func (w *oleWorkbook) DeleteRelationship(fromTable, fromColumn, toTable, toColumn string) error {
	existing, err := w.ListRelationships()
	if err != nil {
		return err
	}
	index := -1
	for i, rel := range existing {
		if rel.FromTable == fromTable && rel.FromColumn == fromColumn &&
			rel.ToTable == toTable && rel.ToColumn == toColumn {
			index = i + 1
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("relationship %s.%s -> %s.%s not found",
			fromTable, fromColumn, toTable, toColumn)
	}

	model, err := w.model()
	if err != nil {
		return err
	}
	defer model.Release()
	relsProp, err := oleutil.GetProperty(model, "ModelRelationships")
	if err != nil {
		return err
	}
	rels := relsProp.ToIDispatch()
	defer rels.Release()
	itemProp, err := oleutil.GetProperty(rels, "Item", index)
	if err != nil {
		return err
	}
	item := itemProp.ToIDispatch()
	defer item.Release()
	_, err = oleutil.CallMethod(item, "Delete")
	return err
}
