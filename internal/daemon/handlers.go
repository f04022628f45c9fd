package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/codefionn/exceld/internal/engine"
	"github.com/codefionn/exceld/internal/protocol"
)

func (r *Router) dispatchSheetTransfer(action string, req *protocol.Request) *protocol.Response {
	var args sheetTransferArgs
	if err := decodeArgs(req.Args, &args); err != nil {
		return protocol.Fail(err.Error())
	}
	if args.SourceFile == "" || args.TargetFile == "" || args.Sheet == "" {
		return protocol.Fail("sourceFile, targetFile and sheet are required")
	}
	move := action == "move-to-file"
	if err := engine.TransferSheet(args.SourceFile, args.TargetFile, args.Sheet, move); err != nil {
		return protocol.Fail(err.Error())
	}
	return protocol.Ok(nil)
}

func sheetHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListSheets()
		},
		"create": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Sheet == "" {
				return nil, fmt.Errorf("sheet is required")
			}
			return nil, wb.CreateSheet(args.Sheet)
		},
		"rename": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetRenameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Sheet == "" || args.NewName == "" {
				return nil, fmt.Errorf("sheet and newName are required")
			}
			return nil, wb.RenameSheet(args.Sheet, args.NewName)
		},
		"delete": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeleteSheet(args.Sheet)
		},
		"copy": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetCopyArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Sheet == "" || args.NewName == "" {
				return nil, fmt.Errorf("sheet and newName are required")
			}
			return nil, wb.CopySheet(args.Sheet, args.NewName)
		},
		"move": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetMoveArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Sheet == "" || args.Before == "" {
				return nil, fmt.Errorf("sheet and before are required")
			}
			return nil, wb.MoveSheet(args.Sheet, args.Before)
		},
		"set-visibility": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetVisibilityArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.SetSheetVisible(args.Sheet, args.Visible)
		},
	}
}

func rangeHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"get-values": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.GetValues(args.Sheet, args.Range)
		},
		"set-values": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeSetValuesArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.StartCell == "" {
				return nil, fmt.Errorf("startCell is required")
			}
			return nil, wb.SetValues(args.Sheet, args.StartCell, args.Values)
		},
		"get-formulas": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.GetFormulas(args.Sheet, args.Range)
		},
		"set-formula": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeSetFormulaArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Cell == "" || args.Formula == "" {
				return nil, fmt.Errorf("cell and formula are required")
			}
			return nil, wb.SetFormula(args.Sheet, args.Cell, args.Formula)
		},
		"format": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeFormatArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.FormatRange(args.Sheet, args.Range, &args.Style)
		},
		"clear": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.ClearRange(args.Sheet, args.Range)
		},
		"merge": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.MergeCells(args.Sheet, args.Range)
		},
		"unmerge": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.UnmergeCells(args.Sheet, args.Range)
		},
		"autofit": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeAutofitArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.StartColumn == "" || args.EndColumn == "" {
				return nil, fmt.Errorf("startColumn and endColumn are required")
			}
			return nil, wb.AutoFitColumns(args.Sheet, args.StartColumn, args.EndColumn)
		},
		"find-replace": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeFindReplaceArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Find == "" {
				return nil, fmt.Errorf("find is required")
			}
			count, err := wb.FindReplace(args.Sheet, args.Find, args.Replace, args.MatchCase)
			if err != nil {
				return nil, err
			}
			return map[string]int{"replacements": count}, nil
		},
		"screenshot": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args rangeScreenshotArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Range == "" || args.OutputPath == "" {
				return nil, fmt.Errorf("range and outputPath are required")
			}
			if err := wb.ScreenshotRange(args.Sheet, args.Range, args.OutputPath); err != nil {
				return nil, err
			}
			return map[string]string{"path": args.OutputPath}, nil
		},
	}
}

func tableHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args tableListArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.ListTables(args.Sheet)
		},
		"create": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args tableAddArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Range == "" || args.Name == "" {
				return nil, fmt.Errorf("range and name are required")
			}
			return nil, wb.AddTable(args.Sheet, args.Range, args.Name)
		},
		"delete": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args tableNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeleteTable(args.Name)
		},
		"get-data": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args tableNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.GetTableData(args.Sheet, args.Name)
		},
		"append-rows": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args tableAppendArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if len(args.Rows) == 0 {
				return nil, fmt.Errorf("rows must not be empty")
			}
			return nil, wb.AppendTableRows(args.Sheet, args.Name, args.Rows)
		},
		"set-style": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args tableStyleArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.SetTableStyle(args.Sheet, args.Name, args.Style)
		},
	}
}

func powerQueryHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListQueries()
		},
		"refresh": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args queryNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Name == "" {
				return nil, fmt.Errorf("name is required")
			}
			return nil, wb.RefreshQuery(args.Name)
		},
	}
}

func pivotTableHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.ListPivotTables(args.Sheet)
		},
		"create": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var opts engine.PivotTableOptions
			if err := decodeArgs(raw, &opts); err != nil {
				return nil, err
			}
			if opts.Name == "" || opts.DataRange == "" || opts.TargetRange == "" {
				return nil, fmt.Errorf("name, dataRange and targetRange are required")
			}
			return nil, wb.AddPivotTable(&opts)
		},
		"delete": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args pivotNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeletePivotTable(args.Sheet, args.Name)
		},
		"refresh": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args pivotNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.RefreshPivotTable(args.Sheet, args.Name)
		},
	}
}

func chartHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.ListCharts(args.Sheet)
		},
		"create": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var opts engine.ChartOptions
			if err := decodeArgs(raw, &opts); err != nil {
				return nil, err
			}
			if opts.Type == "" || len(opts.Series) == 0 {
				return nil, fmt.Errorf("type and at least one series are required")
			}
			return nil, wb.AddChart(&opts)
		},
		"delete": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args chartDeleteArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeleteChart(args.Sheet, args.Name)
		},
	}
}

func chartConfigHandlers() map[string]sessionHandler {
	configure := func(wb engine.Workbook, raw json.RawMessage, keep func(*engine.ChartConfig)) (any, error) {
		var cfg engine.ChartConfig
		if err := decodeArgs(raw, &cfg); err != nil {
			return nil, err
		}
		if cfg.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		keep(&cfg)
		return nil, wb.ConfigureChart(&cfg)
	}
	return map[string]sessionHandler{
		"set-title": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			return configure(wb, raw, func(cfg *engine.ChartConfig) {
				cfg.XAxisTitle, cfg.YAxisTitle, cfg.ShowLegend = nil, nil, nil
			})
		},
		"set-axes": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			return configure(wb, raw, func(cfg *engine.ChartConfig) {
				cfg.Title, cfg.ShowLegend = nil, nil
			})
		},
		"set-legend": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			return configure(wb, raw, func(cfg *engine.ChartConfig) {
				cfg.Title, cfg.XAxisTitle, cfg.YAxisTitle = nil, nil, nil
			})
		},
	}
}

func connectionHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListConnections()
		},
		"refresh-all": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return nil, wb.RefreshAllConnections()
		},
	}
}

func namedRangeHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListDefinedNames()
		},
		"create": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args namedRangeSetArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Name == "" || args.RefersTo == "" {
				return nil, fmt.Errorf("name and refersTo are required")
			}
			return nil, wb.SetDefinedName(args.Name, args.RefersTo, args.Scope)
		},
		"delete": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args namedRangeDeleteArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeleteDefinedName(args.Name, args.Scope)
		},
	}
}

func conditionalFormatHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"set": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args condFormatSetArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if len(args.Rules) == 0 {
				return nil, fmt.Errorf("at least one rule is required")
			}
			return nil, wb.SetConditionalFormat(args.Sheet, args.Range, args.Rules)
		},
		"clear": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args condFormatClearArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.ClearConditionalFormat(args.Sheet, args.Range)
		},
	}
}

func vbaHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"run-macro": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args macroRunArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Macro == "" {
				return nil, fmt.Errorf("macro is required")
			}
			result, err := wb.RunMacro(args.Macro, args.Args)
			if err != nil {
				return nil, err
			}
			return map[string]string{"result": result}, nil
		},
		"list-modules": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListVBAModules()
		},
	}
}

func dataModelHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list-tables": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListModelTables()
		},
		"list-measures": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListMeasures()
		},
		"add-measure": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args measureAddArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Table == "" || args.Name == "" || args.Expression == "" {
				return nil, fmt.Errorf("table, name and expression are required")
			}
			return nil, wb.AddMeasure(args.Table, args.Name, args.Expression)
		},
		"delete-measure": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args measureDeleteArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeleteMeasure(args.Name)
		},
	}
}

func dataModelRelHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return wb.ListRelationships()
		},
		"create": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args relationshipArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.AddRelationship(&engine.RelationshipInfo{
				FromTable:  args.FromTable,
				FromColumn: args.FromColumn,
				ToTable:    args.ToTable,
				ToColumn:   args.ToColumn,
			})
		},
		"delete": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args relationshipArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, wb.DeleteRelationship(args.FromTable, args.FromColumn,
				args.ToTable, args.ToColumn)
		},
	}
}

func slicerHandlers() map[string]sessionHandler {
	return map[string]sessionHandler{
		"list": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sheetNameArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return wb.ListSlicers(args.Sheet)
		},
		"add": func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var opts engine.SlicerOptions
			if err := decodeArgs(raw, &opts); err != nil {
				return nil, err
			}
			if opts.Name == "" || opts.TableName == "" {
				return nil, fmt.Errorf("name and tableName are required")
			}
			return nil, wb.AddSlicer(&opts)
		},
	}
}
