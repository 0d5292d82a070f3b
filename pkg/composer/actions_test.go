package composer

import (
	"errors"
	"testing"

	"github.com/vigarepo2/elixir/pkg/grid"
)

func TestParseActionAccepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data string
		want Action
	}{
		{"cell_2", Action{Name: ActionAddCell, Row: 2}},
		{"row", Action{Name: ActionAddRow}},
		{"finish", Action{Name: ActionFinish}},
		{"cancel", Action{Name: ActionCancel}},
		{"noop", Action{Name: ActionNoop}},
		{"kind_contact", Action{Name: ActionPickKind, Kind: grid.KindContact}},
		{"btn_1_2", Action{Name: ActionCellMenu, Row: 1, Col: 2}},
		{"move_1_0_up", Action{Name: ActionMove, Row: 1, Col: 0, Dir: grid.DirUp}},
		{"del_0_3", Action{Name: ActionDelete, Row: 0, Col: 3}},
		{"exp_42", Action{Name: ActionExport, SourceID: 42}},
		{"rec_42", Action{Name: ActionRecreate, SourceID: 42}},
		{"sum_42", Action{Name: ActionSummary, SourceID: 42}},
	}

	for _, tt := range tests {
		got, err := ParseAction(tt.data)
		if err != nil {
			t.Errorf("ParseAction(%q): %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %+v, want %+v", tt.data, got, tt.want)
		}
	}
}

func TestParseActionMalformed(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",            // empty
		"cell",        // missing arity
		"cell_1_2",    // extra argument
		"cell_x",      // non-numeric index
		"cell_-1",     // negative index
		"btn_0",       // short arity
		"btn_a_0",     // non-numeric index
		"move_0_0",    // short arity
		"move_0_0_in", // unknown direction
		"kind_other",  // not choosable in the editor
		"kind_pizza",  // unknown kind
		"exp_0",       // ids start at 1
		"exp_abc",     // non-numeric id
		"del_é_0",     // non-ASCII
	}

	for _, data := range tests {
		_, err := ParseAction(data)
		var malformed *MalformedCallbackError
		if !errors.As(err, &malformed) {
			t.Errorf("ParseAction(%q) err = %v, want MalformedCallbackError", data, err)
		}
	}
}

func TestParseActionUnknownName(t *testing.T) {
	t.Parallel()

	_, err := ParseAction("teleport_1")
	var unknown *UnknownActionError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownActionError", err)
	}
	if unknown.Name != "teleport" {
		t.Fatalf("unknown name = %q", unknown.Name)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantOK   bool
		wantName string
		wantArgs string
	}{
		{"/create", true, "create", ""},
		{"/addbutton Visit | https://example.com", true, "addbutton", "Visit | https://example.com"},
		{"/done@ElixirBot", true, "done", ""},
		{"/export 42", true, "export", "42"},
		{"plain text", false, "", ""},
		{"/", false, "", ""},
		{"not /a command", false, "", ""},
	}

	for _, tt := range tests {
		cmd, ok := ParseCommand(tt.text)
		if ok != tt.wantOK {
			t.Errorf("ParseCommand(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			continue
		}
		if ok && (cmd.Name != tt.wantName || cmd.Args != tt.wantArgs) {
			t.Errorf("ParseCommand(%q) = %+v", tt.text, cmd)
		}
	}
}
