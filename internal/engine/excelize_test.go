package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestWorkbook(t *testing.T) Workbook {
	t.Helper()
	wb, err := CreateFileWorkbook(filepath.Join(t.TempDir(), "test.xlsx"))
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close(false) })
	return wb
}

func TestValidateNewFileExtension(t *testing.T) {
	assert.NoError(t, ValidateNewFileExtension("/a/b.xlsx"))
	assert.NoError(t, ValidateNewFileExtension("/a/b.xlsm"))
	assert.NoError(t, ValidateNewFileExtension("/a/B.XLSX"))

	for _, path := range []string{"/a/b.csv", "/a/b.xls", "/a/b", "/a/b.xlsx.bak"} {
		assert.Error(t, ValidateNewFileExtension(path), path)
	}
}

func TestParseRange(t *testing.T) {
	x1, y1, x2, y2, err := parseRange("A1:C3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, 3}, []int{x1, y1, x2, y2})

	// Single cell
	x1, y1, x2, y2, err = parseRange("B2")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2}, []int{x1, y1, x2, y2})

	// Reversed bounds are normalized
	x1, y1, x2, y2, err = parseRange("C3:A1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, 3}, []int{x1, y1, x2, y2})

	_, _, _, _, err = parseRange("not-a-range")
	assert.Error(t, err)
}

func TestSheetLifecycle(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.CreateSheet("Data"))
	require.NoError(t, wb.CreateSheet("Scratch"))

	sheets, err := wb.ListSheets()
	require.NoError(t, err)
	require.Len(t, sheets, 3)
	assert.Equal(t, "Sheet1", sheets[0].Name)
	assert.True(t, sheets[0].Visible)

	require.NoError(t, wb.RenameSheet("Scratch", "Archive"))
	require.NoError(t, wb.SetSheetVisible("Archive", false))

	sheets, err = wb.ListSheets()
	require.NoError(t, err)
	for _, sheet := range sheets {
		if sheet.Name == "Archive" {
			assert.False(t, sheet.Visible)
		}
	}

	require.NoError(t, wb.DeleteSheet("Archive"))
	sheets, err = wb.ListSheets()
	require.NoError(t, err)
	assert.Len(t, sheets, 2)
}

func TestCopySheetDuplicatesContent(t *testing.T) {
	wb := createTestWorkbook(t)
	require.NoError(t, wb.SetValues("Sheet1", "A1", [][]any{{"hello"}}))

	require.NoError(t, wb.CopySheet("Sheet1", "Copy"))

	values, err := wb.GetValues("Copy", "A1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"hello"}}, values)
}

func TestValuesRoundTrip(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.SetValues("Sheet1", "B2", [][]any{
		{"Name", "Qty"},
		{"Bolts", 40},
		{"Nuts", 12},
	}))

	values, err := wb.GetValues("Sheet1", "B2:C4")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "Qty"},
		{"Bolts", "40"},
		{"Nuts", "12"},
	}, values)
}

func TestFormulas(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.SetValues("Sheet1", "A1", [][]any{{1}, {2}, {3}}))
	require.NoError(t, wb.SetFormula("Sheet1", "A4", "SUM(A1:A3)"))

	formulas, err := wb.GetFormulas("Sheet1", "A4")
	require.NoError(t, err)
	require.Len(t, formulas, 1)
	assert.Contains(t, formulas[0][0], "SUM(A1:A3)")
}

func TestClearRange(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.SetValues("Sheet1", "A1", [][]any{{"x", "y"}}))
	require.NoError(t, wb.ClearRange("Sheet1", "A1:B1"))

	values, err := wb.GetValues("Sheet1", "A1:B1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"", ""}}, values)
}

func TestFindReplace(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.SetValues("Sheet1", "A1", [][]any{
		{"alpha", "ALPHA"},
		{"beta", "alphabet"},
	}))

	count, err := wb.FindReplace("Sheet1", "alpha", "omega", true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = wb.FindReplace("Sheet1", "ALPHA", "omega", false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTables(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.SetValues("Sheet1", "A1", [][]any{
		{"Name", "Qty"},
		{"Bolts", 40},
	}))
	require.NoError(t, wb.AddTable("Sheet1", "A1:B2", "Inventory"))

	tables, err := wb.ListTables("Sheet1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Inventory", tables[0].Name)

	require.NoError(t, wb.AppendTableRows("Sheet1", "Inventory", [][]any{{"Nuts", 12}}))

	data, err := wb.GetTableData("Sheet1", "Inventory")
	require.NoError(t, err)
	require.Len(t, data, 3)
	assert.Equal(t, []string{"Nuts", "12"}, data[2])

	require.NoError(t, wb.DeleteTable("Inventory"))
	tables, err = wb.ListTables("Sheet1")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestDefinedNames(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.SetDefinedName("Prices", "Sheet1!$A$1:$A$10", ""))

	names, err := wb.ListDefinedNames()
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "Prices", names[0].Name)

	require.NoError(t, wb.DeleteDefinedName("Prices", ""))
	names, err = wb.ListDefinedNames()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMergeUnmerge(t *testing.T) {
	wb := createTestWorkbook(t)

	require.NoError(t, wb.MergeCells("Sheet1", "A1:C1"))
	require.NoError(t, wb.UnmergeCells("Sheet1", "A1:C1"))
}

func TestSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.xlsx")

	wb, err := CreateFileWorkbook(path)
	require.NoError(t, err)
	require.NoError(t, wb.SetValues("Sheet1", "A1", [][]any{{"kept"}}))
	require.NoError(t, wb.Close(true))

	reopened, err := NewFileWorkbook(path)
	require.NoError(t, err)
	defer reopened.Close(false)

	values, err := reopened.GetValues("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"kept"}}, values)
}

func TestCloseIsIdempotent(t *testing.T) {
	wb, err := CreateFileWorkbook(filepath.Join(t.TempDir(), "test.xlsx"))
	require.NoError(t, err)

	require.NoError(t, wb.Close(false))
	require.NoError(t, wb.Close(false))
	assert.False(t, wb.Alive())
}

func TestLiveOnlyOperations(t *testing.T) {
	wb := createTestWorkbook(t)

	_, err := wb.ListConnections()
	assert.ErrorIs(t, err, ErrLiveExcelRequired)
	_, err = wb.ListQueries()
	assert.ErrorIs(t, err, ErrLiveExcelRequired)
	_, err = wb.ListVBAModules()
	assert.ErrorIs(t, err, ErrLiveExcelRequired)
	_, err = wb.ListModelTables()
	assert.ErrorIs(t, err, ErrLiveExcelRequired)
	assert.ErrorIs(t, wb.RefreshAllConnections(), ErrLiveExcelRequired)
	assert.ErrorIs(t, wb.AddMeasure("t", "m", "expr"), ErrLiveExcelRequired)
	_, err = wb.RunMacro("Module1.Main", nil)
	assert.ErrorIs(t, err, ErrLiveExcelRequired)
	_, err = wb.CalculationMode()
	assert.ErrorIs(t, err, ErrLiveExcelRequired)
	assert.ErrorIs(t, wb.SetCalculationMode("manual"), ErrLiveExcelRequired)
	assert.ErrorIs(t, wb.Recalculate(), ErrLiveExcelRequired)
	assert.ErrorIs(t, wb.ScreenshotRange("Sheet1", "A1:B2", "/tmp/shot.png"), ErrLiveExcelRequired)
}

func TestTransferSheet(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.xlsx")
	dstPath := filepath.Join(dir, "dst.xlsx")

	src, err := CreateFileWorkbook(srcPath)
	require.NoError(t, err)
	require.NoError(t, src.CreateSheet("Report"))
	require.NoError(t, src.SetValues("Report", "A1", [][]any{{"moved"}}))
	require.NoError(t, src.Close(true))

	dst, err := CreateFileWorkbook(dstPath)
	require.NoError(t, err)
	require.NoError(t, dst.Close(true))

	require.NoError(t, TransferSheet(srcPath, dstPath, "Report", false))

	check, err := NewFileWorkbook(dstPath)
	require.NoError(t, err)
	defer check.Close(false)
	values, err := check.GetValues("Report", "A1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"moved"}}, values)
}

func TestTransferSheetMoveRemovesSource(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.xlsx")
	dstPath := filepath.Join(dir, "dst.xlsx")

	src, err := CreateFileWorkbook(srcPath)
	require.NoError(t, err)
	require.NoError(t, src.CreateSheet("Report"))
	require.NoError(t, src.Close(true))

	dst, err := CreateFileWorkbook(dstPath)
	require.NoError(t, err)
	require.NoError(t, dst.Close(true))

	require.NoError(t, TransferSheet(srcPath, dstPath, "Report", true))

	check, err := NewFileWorkbook(srcPath)
	require.NoError(t, err)
	defer check.Close(false)
	sheets, err := check.ListSheets()
	require.NoError(t, err)
	for _, sheet := range sheets {
		assert.NotEqual(t, "Report", sheet.Name)
	}
}

func TestTransferSheetRejectsConflicts(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.xlsx")
	dstPath := filepath.Join(dir, "dst.xlsx")

	src, err := CreateFileWorkbook(srcPath)
	require.NoError(t, err)
	require.NoError(t, src.Close(true))

	dst, err := CreateFileWorkbook(dstPath)
	require.NoError(t, err)
	require.NoError(t, dst.Close(true))

	// Both files have Sheet1
	err = TransferSheet(srcPath, dstPath, "Sheet1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	err = TransferSheet(srcPath, dstPath, "NoSuchSheet", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = TransferSheet(filepath.Join(dir, "missing.xlsx"), dstPath, "Sheet1", false)
	assert.Error(t, err)
}
