package grid

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
)

// Inline keyboards cannot request a contact directly, so contact cells
// render as a deep link that opens the user's profile.
const contactLinkPrefix = "tg://user?id="

// ImportError reports a keyboard markup whose cells cannot all be resolved
// to a known kind. The grid it was imported against is left untouched.
type ImportError struct {
	Row, Col int
	Reason   string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("malformed keyboard import at row %d col %d: %s", e.Row, e.Col, e.Reason)
}

// ToRenderable serializes the grid, row-major, into the platform keyboard
// shape. Empty rows are preserved so that FromRenderable restores the exact
// structure; Compacted strips them before a grid is sent to the platform.
func (g *Grid) ToRenderable() *telego.InlineKeyboardMarkup {
	keyboard := make([][]telego.InlineKeyboardButton, len(g.rows))
	for i, row := range g.rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, cell := range row {
			buttons = append(buttons, renderCell(cell))
		}
		keyboard[i] = buttons
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

// renderCell maps a kind to its render field through the closed enum; there
// is deliberately no dynamic field lookup here.
func renderCell(c Cell) telego.InlineKeyboardButton {
	btn := telego.InlineKeyboardButton{Text: c.Label}
	switch c.Kind {
	case KindURL:
		btn.URL = c.Payload
	case KindCallback, KindOther:
		btn.CallbackData = c.Payload
	case KindContact:
		btn.URL = contactLinkPrefix + c.Payload
	case KindLogin:
		btn.LoginURL = &telego.LoginURL{URL: c.Payload}
	}
	return btn
}

// FromRenderable reconstructs a grid from a keyboard markup, preserving row
// and column order. A cell that does not resolve to a known kind fails the
// whole import with an ImportError.
func FromRenderable(markup *telego.InlineKeyboardMarkup) (*Grid, error) {
	g := New()
	if markup == nil {
		return g, nil
	}
	for i, row := range markup.InlineKeyboard {
		g.AddRow()
		for j, btn := range row {
			cell, err := resolveButton(btn)
			if err != nil {
				return nil, &ImportError{Row: i, Col: j, Reason: err.Error()}
			}
			g.rows[i] = append(g.rows[i], cell)
		}
	}
	return g, nil
}

func resolveButton(btn telego.InlineKeyboardButton) (Cell, error) {
	if btn.Text == "" {
		return Cell{}, fmt.Errorf("button has no label")
	}
	switch {
	case btn.CallbackData != "":
		return Cell{Label: btn.Text, Kind: KindCallback, Payload: btn.CallbackData}, nil
	case strings.HasPrefix(btn.URL, contactLinkPrefix):
		id := strings.TrimPrefix(btn.URL, contactLinkPrefix)
		if !isDigits(id) {
			return Cell{}, fmt.Errorf("contact link carries non-numeric id %q", id)
		}
		return Cell{Label: btn.Text, Kind: KindContact, Payload: id}, nil
	case btn.URL != "":
		if !hasHTTPScheme(btn.URL) {
			return Cell{}, fmt.Errorf("unsupported URL scheme in %q", btn.URL)
		}
		return Cell{Label: btn.Text, Kind: KindURL, Payload: btn.URL}, nil
	case btn.LoginURL != nil && btn.LoginURL.URL != "":
		return Cell{Label: btn.Text, Kind: KindLogin, Payload: btn.LoginURL.URL}, nil
	}
	return Cell{}, fmt.Errorf("button %q resolves to no known kind", btn.Text)
}
