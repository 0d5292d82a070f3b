package composer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vigarepo2/elixir/pkg/grid"
)

// Callback data is a sequence of ASCII tokens joined by "_": the first token
// names the action, the rest are positional arguments with fixed arity.
type ActionName string

const (
	ActionAddCell  ActionName = "cell"   // cell_<row>
	ActionAddRow   ActionName = "row"    // row
	ActionFinish   ActionName = "finish" // finish
	ActionCancel   ActionName = "cancel" // cancel
	ActionPickKind ActionName = "kind"   // kind_<name>
	ActionCellMenu ActionName = "btn"    // btn_<row>_<col>
	ActionMove     ActionName = "move"   // move_<row>_<col>_<dir>
	ActionDelete   ActionName = "del"    // del_<row>_<col>
	ActionExport   ActionName = "exp"    // exp_<sourceId>
	ActionRecreate ActionName = "rec"    // rec_<sourceId>
	ActionSummary  ActionName = "sum"    // sum_<sourceId>
	ActionNoop     ActionName = "noop"   // noop
)

type Action struct {
	Name     ActionName
	Row      int
	Col      int
	Dir      grid.Direction
	Kind     grid.Kind
	SourceID int
}

// MalformedCallbackError reports callback data whose tokens do not match the
// named action's arity or argument types.
type MalformedCallbackError struct {
	Data   string
	Reason string
}

func (e *MalformedCallbackError) Error() string {
	return fmt.Sprintf("malformed callback %q: %s", e.Data, e.Reason)
}

// UnknownActionError reports a well-formed token whose action name has no
// handler.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown callback action %q", e.Name)
}

var actionArity = map[ActionName]int{
	ActionAddCell:  1,
	ActionAddRow:   0,
	ActionFinish:   0,
	ActionCancel:   0,
	ActionPickKind: 1,
	ActionCellMenu: 2,
	ActionMove:     3,
	ActionDelete:   2,
	ActionExport:   1,
	ActionRecreate: 1,
	ActionSummary:  1,
	ActionNoop:     0,
}

// ParseAction validates callback data against the closed action set. Arity
// or type mismatches are MalformedCallbackError; a name outside the set is
// UnknownActionError. Nothing else ever comes back on success.
func ParseAction(data string) (Action, error) {
	if data == "" {
		return Action{}, &MalformedCallbackError{Data: data, Reason: "empty callback data"}
	}
	if !isASCII(data) {
		return Action{}, &MalformedCallbackError{Data: data, Reason: "non-ASCII callback data"}
	}

	tokens := strings.Split(data, "_")
	name := ActionName(tokens[0])
	args := tokens[1:]

	arity, ok := actionArity[name]
	if !ok {
		return Action{}, &UnknownActionError{Name: tokens[0]}
	}
	if len(args) != arity {
		return Action{}, &MalformedCallbackError{
			Data:   data,
			Reason: fmt.Sprintf("action %q wants %d argument(s), got %d", tokens[0], arity, len(args)),
		}
	}

	act := Action{Name: name}
	switch name {
	case ActionAddCell:
		row, err := parseIndex(args[0])
		if err != nil {
			return Action{}, &MalformedCallbackError{Data: data, Reason: err.Error()}
		}
		act.Row = row
	case ActionPickKind:
		kind, ok := grid.ParseKind(args[0])
		if !ok || kind == grid.KindOther {
			return Action{}, &MalformedCallbackError{Data: data, Reason: fmt.Sprintf("unknown button kind %q", args[0])}
		}
		act.Kind = kind
	case ActionMove:
		row, err := parseIndex(args[0])
		if err != nil {
			return Action{}, &MalformedCallbackError{Data: data, Reason: err.Error()}
		}
		col, err := parseIndex(args[1])
		if err != nil {
			return Action{}, &MalformedCallbackError{Data: data, Reason: err.Error()}
		}
		dir, ok := grid.ParseDirection(args[2])
		if !ok {
			return Action{}, &MalformedCallbackError{Data: data, Reason: fmt.Sprintf("unknown direction %q", args[2])}
		}
		act.Row, act.Col, act.Dir = row, col, dir
	case ActionCellMenu, ActionDelete:
		row, err := parseIndex(args[0])
		if err != nil {
			return Action{}, &MalformedCallbackError{Data: data, Reason: err.Error()}
		}
		col, err := parseIndex(args[1])
		if err != nil {
			return Action{}, &MalformedCallbackError{Data: data, Reason: err.Error()}
		}
		act.Row, act.Col = row, col
	case ActionExport, ActionRecreate, ActionSummary:
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return Action{}, &MalformedCallbackError{Data: data, Reason: fmt.Sprintf("bad message id %q", args[0])}
		}
		act.SourceID = id
	}

	return act, nil
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad index %q", s)
	}
	return n, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
