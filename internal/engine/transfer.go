package engine

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// TransferSheet copies (or moves) one worksheet between two workbook files
// on disk. Both files are opened with the file backend regardless of a live
// Excel instance, so neither file may be held open by a session.
func TransferSheet(sourcePath, targetPath, sheetName string, move bool) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("source file does not exist: %s", sourcePath)
	}
	if _, err := os.Stat(targetPath); err != nil {
		return fmt.Errorf("target file does not exist: %s", targetPath)
	}

	source, err := excelize.OpenFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source workbook: %w", err)
	}
	defer source.Close()

	target, err := excelize.OpenFile(targetPath)
	if err != nil {
		return fmt.Errorf("failed to open target workbook: %w", err)
	}
	defer target.Close()

	srcIndex, err := source.GetSheetIndex(sheetName)
	if err != nil || srcIndex < 0 {
		return fmt.Errorf("sheet %q not found in %s", sheetName, sourcePath)
	}
	if index, _ := target.GetSheetIndex(sheetName); index >= 0 {
		return fmt.Errorf("sheet %q already exists in %s", sheetName, targetPath)
	}

	if _, err := target.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create sheet in target: %w", err)
	}

	// Formulas win over cached values so the target recalculates correctly
	rows, err := source.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to read source sheet: %w", err)
	}
	for y, row := range rows {
		for x, value := range row {
			cell, err := excelize.CoordinatesToCellName(x+1, y+1)
			if err != nil {
				return err
			}
			formula, _ := source.GetCellFormula(sheetName, cell)
			if formula != "" {
				if err := target.SetCellFormula(sheetName, cell, formula); err != nil {
					return err
				}
				continue
			}
			if value == "" {
				continue
			}
			if err := target.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	// Persist the target before touching the source so a failed save never
	// loses the sheet on a move.
	if err := target.Save(); err != nil {
		return fmt.Errorf("failed to save target workbook: %w", err)
	}

	if move {
		// A workbook must keep at least one sheet
		if len(source.GetSheetList()) <= 1 {
			return fmt.Errorf("cannot move the only sheet out of %s", sourcePath)
		}
		if err := source.DeleteSheet(sheetName); err != nil {
			return fmt.Errorf("failed to remove sheet from source: %w", err)
		}
		if err := source.Save(); err != nil {
			return fmt.Errorf("failed to save source workbook: %w", err)
		}
	}
	return nil
}
