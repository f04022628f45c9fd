package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/codefionn/exceld/internal/engine"
)

// fakeWorkbook implements the parts of engine.Workbook the daemon tests
// exercise. The embedded interface panics on anything unimplemented, which
// the router converts into an error response.
type fakeWorkbook struct {
	engine.Workbook

	mu     sync.Mutex
	path   string
	alive  bool
	saved  int
	closed bool

	sheets   []string
	calcMode string
}

func newFakeWorkbook(path string) *fakeWorkbook {
	return &fakeWorkbook{path: path, alive: true, sheets: []string{"Sheet1"}, calcMode: "automatic"}
}

func (f *fakeWorkbook) BackendName() string { return "fake" }
func (f *fakeWorkbook) Path() string        { return f.path }

func (f *fakeWorkbook) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeWorkbook) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

func (f *fakeWorkbook) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive {
		return fmt.Errorf("engine is gone")
	}
	f.saved++
	return nil
}

func (f *fakeWorkbook) SaveAs(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
	f.saved++
	return nil
}

func (f *fakeWorkbook) Close(save bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if save && f.alive {
		f.saved++
	}
	return nil
}

func (f *fakeWorkbook) ListSheets() ([]engine.SheetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]engine.SheetInfo, 0, len(f.sheets))
	for i, name := range f.sheets {
		infos = append(infos, engine.SheetInfo{Name: name, Index: i, Visible: true})
	}
	return infos, nil
}

func (f *fakeWorkbook) CreateSheet(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sheets {
		if existing == name {
			return fmt.Errorf("sheet %q already exists", name)
		}
	}
	f.sheets = append(f.sheets, name)
	return nil
}

func (f *fakeWorkbook) CalculationMode() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calcMode, nil
}

func (f *fakeWorkbook) SetCalculationMode(mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calcMode = mode
	return nil
}

func (f *fakeWorkbook) ListQueries() ([]engine.QueryInfo, error) {
	return nil, engine.ErrLiveExcelRequired
}

func (f *fakeWorkbook) ScreenshotRange(sheet, rangeRef, outputPath string) error {
	return engine.ErrLiveExcelRequired
}

// fakeFactory hands out fakeWorkbooks and remembers them for inspection
type fakeFactory struct {
	mu      sync.Mutex
	opened  []*fakeWorkbook
	failing bool
}

func (f *fakeFactory) Open(path string, timeout time.Duration) (engine.Workbook, error) {
	return f.make(path)
}

func (f *fakeFactory) Create(path string, timeout time.Duration) (engine.Workbook, error) {
	return f.make(path)
}

func (f *fakeFactory) make(path string) (engine.Workbook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, fmt.Errorf("engine unavailable")
	}
	wb := newFakeWorkbook(path)
	f.opened = append(f.opened, wb)
	return wb, nil
}

func (f *fakeFactory) last() *fakeWorkbook {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}
