// Package grid holds the button-grid data model: ordered rows of labeled
// button cells, each carrying a kind and a kind-specific payload.
package grid

import (
	"fmt"
	"strings"
)

// Kind is the canonical button kind enum shared by the grid model, the
// extractor and the JSON codec. KindOther only ever appears on extracted
// buttons that could not be classified; it is not accepted in a grid cell.
type Kind string

const (
	KindURL      Kind = "url"
	KindCallback Kind = "callback"
	KindContact  Kind = "contact"
	KindLogin    Kind = "login"
	KindOther    Kind = "other"
)

// ParseKind resolves s against the closed kind set.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindURL, KindCallback, KindContact, KindLogin, KindOther:
		return Kind(s), true
	}
	return "", false
}

// CellKinds are the kinds a grid cell may carry.
var CellKinds = []Kind{KindURL, KindCallback, KindContact, KindLogin}

type Cell struct {
	Label   string `json:"label"`
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
}

type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirUp, DirDown, DirLeft, DirRight:
		return Direction(s), true
	}
	return "", false
}

// ValidationError reports user-correctable input problems. It never
// accompanies a state or grid mutation.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a ValidationError; shared by the composer's guards so
// the whole taxonomy stays one type.
func Validationf(format string, args ...interface{}) error {
	return validationErrorf(format, args...)
}

// Telegram rejects callback data over 64 bytes.
const maxCallbackPayloadLen = 64

// ValidateCell checks label presence and the payload rule for the cell's kind.
func ValidateCell(c Cell) error {
	if strings.TrimSpace(c.Label) == "" {
		return validationErrorf("button label must not be empty")
	}
	return ValidatePayload(c.Kind, c.Payload)
}

// ValidatePayload applies the per-kind payload rule.
func ValidatePayload(kind Kind, payload string) error {
	if payload == "" {
		return validationErrorf("button payload must not be empty")
	}
	switch kind {
	case KindURL:
		if !hasHTTPScheme(payload) {
			return validationErrorf("URL must start with http:// or https://, got %q", payload)
		}
	case KindCallback:
		if len(payload) > maxCallbackPayloadLen {
			return validationErrorf("callback payload exceeds %d bytes", maxCallbackPayloadLen)
		}
	case KindContact:
		if !isDigits(payload) {
			return validationErrorf("contact payload must be a numeric user id, got %q", payload)
		}
	case KindLogin:
		if !strings.HasPrefix(strings.ToLower(payload), "https://") {
			return validationErrorf("login URL must start with https://, got %q", payload)
		}
	default:
		return validationErrorf("unsupported button kind %q", string(kind))
	}
	return nil
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Grid is an ordered 2-D arrangement of cells. The zero value is an empty
// grid; rows may be empty transiently while the user edits.
type Grid struct {
	rows [][]Cell
}

func New() *Grid {
	return &Grid{}
}

// AddRow appends an empty row.
func (g *Grid) AddRow() {
	g.rows = append(g.rows, nil)
}

// AddColumn appends an empty cell slot to the given row; SetCell fills it.
func (g *Grid) AddColumn(row int) error {
	if err := g.checkRow(row); err != nil {
		return err
	}
	g.rows[row] = append(g.rows[row], Cell{})
	return nil
}

// SetCell validates and places a cell at an existing position.
func (g *Grid) SetCell(row, col int, c Cell) error {
	if err := g.checkCell(row, col); err != nil {
		return err
	}
	if err := ValidateCell(c); err != nil {
		return err
	}
	g.rows[row][col] = c
	return nil
}

// AppendCell validates a cell and appends it to the end of the given row.
func (g *Grid) AppendCell(row int, c Cell) error {
	if err := g.checkRow(row); err != nil {
		return err
	}
	if err := ValidateCell(c); err != nil {
		return err
	}
	g.rows[row] = append(g.rows[row], c)
	return nil
}

// MoveCell swaps the cell with its neighbor in the given direction. Moves
// past a boundary are a no-op, not an error.
func (g *Grid) MoveCell(row, col int, dir Direction) error {
	if err := g.checkCell(row, col); err != nil {
		return err
	}
	switch dir {
	case DirLeft:
		if col > 0 {
			g.rows[row][col-1], g.rows[row][col] = g.rows[row][col], g.rows[row][col-1]
		}
	case DirRight:
		if col < len(g.rows[row])-1 {
			g.rows[row][col+1], g.rows[row][col] = g.rows[row][col], g.rows[row][col+1]
		}
	case DirUp:
		if row > 0 && col < len(g.rows[row-1]) {
			g.rows[row-1][col], g.rows[row][col] = g.rows[row][col], g.rows[row-1][col]
		}
	case DirDown:
		if row < len(g.rows)-1 && col < len(g.rows[row+1]) {
			g.rows[row+1][col], g.rows[row][col] = g.rows[row][col], g.rows[row+1][col]
		}
	default:
		return validationErrorf("unknown move direction %q", string(dir))
	}
	return nil
}

// DeleteCell removes the cell and compacts the row so no gap remains.
func (g *Grid) DeleteCell(row, col int) error {
	if err := g.checkCell(row, col); err != nil {
		return err
	}
	g.rows[row] = append(g.rows[row][:col], g.rows[row][col+1:]...)
	return nil
}

// Rows returns a deep copy of the grid's rows.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, len(g.rows))
	for i, row := range g.rows {
		rows[i] = append([]Cell(nil), row...)
	}
	return rows
}

func (g *Grid) RowCount() int {
	return len(g.rows)
}

func (g *Grid) RowLen(row int) int {
	if row < 0 || row >= len(g.rows) {
		return 0
	}
	return len(g.rows[row])
}

// CellCount reports the total number of cells across all rows.
func (g *Grid) CellCount() int {
	n := 0
	for _, row := range g.rows {
		n += len(row)
	}
	return n
}

// HasCells reports whether at least one row is non-empty, the finalization
// requirement.
func (g *Grid) HasCells() bool {
	return g.CellCount() > 0
}

// Flatten returns the cells in row-major order.
func (g *Grid) Flatten() []Cell {
	var cells []Cell
	for _, row := range g.rows {
		cells = append(cells, row...)
	}
	return cells
}

func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	return &Grid{rows: g.Rows()}
}

// Compacted returns a copy with empty rows dropped, the shape sent on finish.
func (g *Grid) Compacted() *Grid {
	out := New()
	for _, row := range g.rows {
		if len(row) == 0 {
			continue
		}
		out.rows = append(out.rows, append([]Cell(nil), row...))
	}
	return out
}

func (g *Grid) checkRow(row int) error {
	if row < 0 || row >= len(g.rows) {
		return validationErrorf("row %d does not exist", row)
	}
	return nil
}

func (g *Grid) checkCell(row, col int) error {
	if err := g.checkRow(row); err != nil {
		return err
	}
	if col < 0 || col >= len(g.rows[row]) {
		return validationErrorf("cell %d in row %d does not exist", col, row)
	}
	return nil
}
