package engine

import (
	"fmt"
	"os"
	"time"
)

// defaultFactory tries the live-Excel backend first and falls back to the
// file backend, mirroring how clients expect a workbook that is already open
// in Excel to be driven through Excel rather than edited behind its back.
type defaultFactory struct{}

// NewFactory returns the production workbook factory
func NewFactory() Factory {
	return &defaultFactory{}
}

func (defaultFactory) Open(path string, timeout time.Duration) (Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open workbook: %w", err)
	}
	if workbook, err := openLiveWorkbook(path, timeout); err == nil {
		return workbook, nil
	}
	return NewFileWorkbook(path)
}

func (defaultFactory) Create(path string, timeout time.Duration) (Workbook, error) {
	if workbook, err := createLiveWorkbook(path, timeout); err == nil {
		return workbook, nil
	}
	return CreateFileWorkbook(path)
}
