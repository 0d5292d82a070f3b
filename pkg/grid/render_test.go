package grid

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mymmrac/telego"
)

func TestRenderableRoundTrip(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddRow()
	g.AddRow()
	g.AddRow()
	mustAppend(t, g, 0, Cell{Label: "Visit", Kind: KindURL, Payload: "https://example.com"})
	mustAppend(t, g, 0, Cell{Label: "Menu", Kind: KindCallback, Payload: "open_menu"})
	mustAppend(t, g, 1, Cell{Label: "Me", Kind: KindContact, Payload: "42"})
	mustAppend(t, g, 1, Cell{Label: "Sign in", Kind: KindLogin, Payload: "https://login.example"})
	// Row 2 stays empty; round-trip must preserve it.

	restored, err := FromRenderable(g.ToRenderable())
	if err != nil {
		t.Fatalf("from renderable: %v", err)
	}
	if !reflect.DeepEqual(g.Rows(), restored.Rows()) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", restored.Rows(), g.Rows())
	}
}

func TestToRenderableFieldMapping(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddRow()
	mustAppend(t, g, 0, Cell{Label: "Visit", Kind: KindURL, Payload: "https://example.com"})
	mustAppend(t, g, 0, Cell{Label: "Me", Kind: KindContact, Payload: "42"})
	mustAppend(t, g, 0, Cell{Label: "Sign in", Kind: KindLogin, Payload: "https://login.example"})

	row := g.ToRenderable().InlineKeyboard[0]
	if row[0].URL != "https://example.com" || row[0].CallbackData != "" {
		t.Fatalf("url cell rendered wrong: %+v", row[0])
	}
	if row[1].URL != "tg://user?id=42" {
		t.Fatalf("contact cell rendered wrong: %+v", row[1])
	}
	if row[2].LoginURL == nil || row[2].LoginURL.URL != "https://login.example" {
		t.Fatalf("login cell rendered wrong: %+v", row[2])
	}
}

func TestFromRenderableRejectsUnresolvableCell(t *testing.T) {
	t.Parallel()

	markup := &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{{Text: "OK", CallbackData: "fine"}},
		{{Text: "Pay"}}, // no render field at all
	}}

	_, err := FromRenderable(markup)
	if err == nil {
		t.Fatal("expected import error")
	}
	var imported *ImportError
	if !errors.As(err, &imported) {
		t.Fatalf("expected ImportError, got %T", err)
	}
	if imported.Row != 1 || imported.Col != 0 {
		t.Fatalf("wrong position reported: row %d col %d", imported.Row, imported.Col)
	}
}

func TestFromRenderableNilMarkup(t *testing.T) {
	t.Parallel()

	g, err := FromRenderable(nil)
	if err != nil {
		t.Fatalf("nil markup: %v", err)
	}
	if g.RowCount() != 0 {
		t.Fatalf("expected empty grid, got %d rows", g.RowCount())
	}
}
