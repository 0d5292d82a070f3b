package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/grid"
)

// SchemaError reports import JSON that does not match the export shape. The
// offending input is discarded; nothing else changes.
type SchemaError struct {
	msg string
}

func (e *SchemaError) Error() string {
	return e.msg
}

func schemaErrorf(format string, args ...interface{}) error {
	return &SchemaError{msg: fmt.Sprintf(format, args...)}
}

// ToJSON produces the canonical export form: fixed field order, stable
// indentation, null for absent media/forward.
func ToJSON(m *ExtractedMessage) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON validates and decodes an export document. Any shape violation is
// a SchemaError.
func FromJSON(data []byte) (*ExtractedMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m ExtractedMessage
	if err := dec.Decode(&m); err != nil {
		return nil, schemaErrorf("invalid export JSON: %v", err)
	}
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return nil, schemaErrorf("invalid export JSON: trailing content")
	}

	if m.SourceID <= 0 {
		return nil, schemaErrorf("sourceId must be a positive message id")
	}
	if m.Entities == nil {
		return nil, schemaErrorf("entities field is required")
	}
	if m.Buttons == nil {
		return nil, schemaErrorf("buttons field is required")
	}
	for i, ent := range m.Entities {
		if ent.Type == "" || ent.Offset < 0 || ent.Length <= 0 {
			return nil, schemaErrorf("entity %d is malformed", i)
		}
	}
	for i, btn := range m.Buttons {
		if _, ok := grid.ParseKind(string(btn.Kind)); !ok {
			return nil, schemaErrorf("button %d has unknown kind %q", i, string(btn.Kind))
		}
		if btn.Label == "" {
			return nil, schemaErrorf("button %d has no label", i)
		}
	}
	if m.Media != nil && !knownMediaKind(m.Media.Kind) {
		return nil, schemaErrorf("media kind %q is not recognized", m.Media.Kind)
	}

	return &m, nil
}

// Recreated is the renderable projection of an ExtractedMessage.
type Recreated struct {
	Text     string
	Entities []telego.MessageEntity
	Keyboard *telego.InlineKeyboardMarkup
}

// Recreate projects an extracted message back into something sendable. Each
// button's render field is picked through the canonical kind enum; the flat
// button list comes back as one button per row since the flattening dropped
// the row boundaries.
func Recreate(m *ExtractedMessage) *Recreated {
	out := &Recreated{Text: m.Text}

	for _, ent := range m.Entities {
		out.Entities = append(out.Entities, telego.MessageEntity{
			Type:   ent.Type,
			Offset: ent.Offset,
			Length: ent.Length,
		})
	}

	if len(m.Buttons) == 0 {
		return out
	}

	keyboard := make([][]telego.InlineKeyboardButton, 0, len(m.Buttons))
	for _, b := range m.Buttons {
		btn := telego.InlineKeyboardButton{Text: b.Label}
		switch b.Kind {
		case grid.KindURL:
			btn.URL = b.Payload
		case grid.KindContact:
			btn.URL = "tg://user?id=" + b.Payload
		case grid.KindLogin:
			btn.LoginURL = &telego.LoginURL{URL: b.Payload}
		case grid.KindCallback, grid.KindOther:
			data := b.Payload
			if data == "" {
				data = "noop"
			}
			btn.CallbackData = data
		}
		keyboard = append(keyboard, []telego.InlineKeyboardButton{btn})
	}
	out.Keyboard = &telego.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	return out
}
