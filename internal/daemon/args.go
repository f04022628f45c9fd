package daemon

import "github.com/codefionn/exceld/internal/engine"

// Argument records for the command vocabulary. Each request's args object is
// decoded into exactly one of these; unknown fields are ignored so older
// clients and newer daemons interoperate.

type sessionCreateArgs struct {
	FilePath       string `json:"filePath"`
	NewFile        bool   `json:"newFile,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type sessionCloseArgs struct {
	Save bool `json:"save,omitempty"`
}

type sessionSaveAsArgs struct {
	FilePath string `json:"filePath"`
}

type sessionRecentArgs struct {
	Limit int `json:"limit,omitempty"`
}

type sessionCalcModeArgs struct {
	Mode string `json:"mode"`
}

type sheetNameArgs struct {
	Sheet string `json:"sheet"`
}

type sheetRenameArgs struct {
	Sheet   string `json:"sheet"`
	NewName string `json:"newName"`
}

type sheetCopyArgs struct {
	Sheet   string `json:"sheet"`
	NewName string `json:"newName"`
}

type sheetMoveArgs struct {
	Sheet  string `json:"sheet"`
	Before string `json:"before"`
}

type sheetVisibilityArgs struct {
	Sheet   string `json:"sheet"`
	Visible bool   `json:"visible"`
}

// sheetTransferArgs addresses two workbook files directly; the actions using
// it are not session-scoped.
type sheetTransferArgs struct {
	SourceFile string `json:"sourceFile"`
	TargetFile string `json:"targetFile"`
	Sheet      string `json:"sheet"`
}

type rangeArgs struct {
	Sheet string `json:"sheet"`
	Range string `json:"range"`
}

type rangeSetValuesArgs struct {
	Sheet     string  `json:"sheet"`
	StartCell string  `json:"startCell"`
	Values    [][]any `json:"values"`
}

type rangeSetFormulaArgs struct {
	Sheet   string `json:"sheet"`
	Cell    string `json:"cell"`
	Formula string `json:"formula"`
}

type rangeFormatArgs struct {
	Sheet string            `json:"sheet"`
	Range string            `json:"range"`
	Style engine.RangeStyle `json:"style"`
}

type rangeAutofitArgs struct {
	Sheet       string `json:"sheet"`
	StartColumn string `json:"startColumn"`
	EndColumn   string `json:"endColumn"`
}

type rangeScreenshotArgs struct {
	Sheet      string `json:"sheet"`
	Range      string `json:"range"`
	OutputPath string `json:"outputPath"`
}

type rangeFindReplaceArgs struct {
	Sheet     string `json:"sheet"`
	Find      string `json:"find"`
	Replace   string `json:"replace"`
	MatchCase bool   `json:"matchCase,omitempty"`
}

type tableListArgs struct {
	Sheet string `json:"sheet"`
}

type tableAddArgs struct {
	Sheet string `json:"sheet"`
	Range string `json:"range"`
	Name  string `json:"name"`
}

type tableNameArgs struct {
	Sheet string `json:"sheet,omitempty"`
	Name  string `json:"name"`
}

type tableAppendArgs struct {
	Sheet string  `json:"sheet"`
	Name  string  `json:"name"`
	Rows  [][]any `json:"rows"`
}

type tableStyleArgs struct {
	Sheet string `json:"sheet"`
	Name  string `json:"name"`
	Style string `json:"style"`
}

type pivotNameArgs struct {
	Sheet string `json:"sheet"`
	Name  string `json:"name"`
}

type chartDeleteArgs struct {
	Sheet string `json:"sheet"`
	Name  string `json:"name"`
}

type condFormatSetArgs struct {
	Sheet string                         `json:"sheet"`
	Range string                         `json:"range"`
	Rules []engine.ConditionalFormatRule `json:"rules"`
}

type condFormatClearArgs struct {
	Sheet string `json:"sheet"`
	Range string `json:"range"`
}

type namedRangeSetArgs struct {
	Name     string `json:"name"`
	RefersTo string `json:"refersTo"`
	Scope    string `json:"scope,omitempty"`
}

type namedRangeDeleteArgs struct {
	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`
}

type queryNameArgs struct {
	Name string `json:"name"`
}

type macroRunArgs struct {
	Macro string   `json:"macro"`
	Args  []string `json:"args,omitempty"`
}

type measureAddArgs struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

type measureDeleteArgs struct {
	Name string `json:"name"`
}

type relationshipArgs struct {
	FromTable  string `json:"fromTable"`
	FromColumn string `json:"fromColumn"`
	ToTable    string `json:"toTable"`
	ToColumn   string `json:"toColumn"`
}
