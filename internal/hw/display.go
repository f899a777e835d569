package hw

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// 1602 character LCD geometry.
const (
	DefaultRows = 2
	DefaultCols = 16
)

// Display is a character display.
type Display interface {
	Reset() error
	ShowText(text string, row, col int) error
}

// TextDisplay keeps the screen contents in memory and logs every render.
type TextDisplay struct {
	mu   sync.Mutex
	rows int
	cols int
	buf  [][]rune
	log  *slog.Logger
}

var _ Display = (*TextDisplay)(nil)

// NewTextDisplay creates a blank rows x cols display. Non-positive sizes fall
// back to 2x16.
func NewTextDisplay(rows, cols int, log *slog.Logger) *TextDisplay {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	if log == nil {
		log = slog.Default()
	}

	d := &TextDisplay{rows: rows, cols: cols, log: log}
	d.buf = make([][]rune, rows)
	for i := range d.buf {
		d.buf[i] = []rune(strings.Repeat(" ", cols))
	}
	return d
}

// Reset blanks the screen.
func (d *TextDisplay) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, line := range d.buf {
		for i := range line {
			line[i] = ' '
		}
	}
	return nil
}

// ShowText writes text starting at row, col. Text past the last column is cut.
func (d *TextDisplay) ShowText(text string, row, col int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if row < 0 || row >= d.rows || col < 0 || col >= d.cols {
		return fmt.Errorf("row %d col %d on %dx%d: %w", row, col, d.rows, d.cols, ErrOutOfBounds)
	}

	line := d.buf[row]
	for i, r := range []rune(text) {
		if col+i >= d.cols {
			break
		}
		line[col+i] = r
	}

	d.log.Debug("display updated", "row", row, "line", strings.TrimRight(string(line), " "))
	return nil
}

// Line returns the contents of row without trailing blanks.
func (d *TextDisplay) Line(row int) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if row < 0 || row >= d.rows {
		return ""
	}
	return strings.TrimRight(string(d.buf[row]), " ")
}

// Lines returns every row without trailing blanks.
func (d *TextDisplay) Lines() []string {
	lines := make([]string, d.rows)
	for i := range lines {
		lines[i] = d.Line(i)
	}
	return lines
}
