// Package composer drives the multi-turn dialogue that builds a message with
// an inline button grid, and serves the extraction commands that decompose
// inbound messages.
package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/extract"
	"github.com/vigarepo2/elixir/pkg/grid"
	"github.com/vigarepo2/elixir/pkg/logger"
	"github.com/vigarepo2/elixir/pkg/session"
)

// Renderer performs the outbound render calls. The Telegram gateway is the
// production implementation; tests substitute a recorder.
type Renderer interface {
	Send(ctx context.Context, chatID int64, text string, entities []telego.MessageEntity, keyboard *telego.InlineKeyboardMarkup) (messageID int, err error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, keyboard *telego.InlineKeyboardMarkup) error
}

type Composer struct {
	renderer  Renderer
	extractor *extract.Extractor
	cache     *extract.Cache
}

func New(renderer Renderer, extractor *extract.Extractor, cache *extract.Cache) *Composer {
	return &Composer{
		renderer:  renderer,
		extractor: extractor,
		cache:     cache,
	}
}

// turnEnv carries the per-update context through a single handling turn. The
// session is already locked by the caller.
type turnEnv struct {
	sess   *session.Session
	chatID int64
	msg    *telego.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return grid.Validationf(format, args...)
}

// HandleMessage processes one inbound message for a locked session: a
// recognized command dispatches through the command table, anything else is
// free text consulted against the current state.
func (c *Composer) HandleMessage(ctx context.Context, sess *session.Session, msg *telego.Message) error {
	env := &turnEnv{sess: sess, chatID: msg.Chat.ID, msg: msg}

	if cmd, ok := ParseCommand(msg.Text); ok {
		entry, known := commandTable[cmd.Name]
		if !known {
			return validationErrorf("unknown command /%s, try /help", cmd.Name)
		}
		if entry.needsDraft && sess.Message == nil {
			return validationErrorf("no message under construction, start with /create")
		}
		logger.DebugCF("composer", "Dispatching command", map[string]interface{}{
			logger.FieldCommand: cmd.Name,
			logger.FieldState:   string(sess.State),
		})
		return entry.handler(c, ctx, env, cmd.Args)
	}

	return c.handleFreeText(ctx, env)
}

func (c *Composer) handleFreeText(ctx context.Context, env *turnEnv) error {
	sess := env.sess

	switch sess.State {
	case session.StateAwaitingMainText:
		return c.setMainText(ctx, env)

	case session.StateAwaitingButtonLabel:
		label := strings.TrimSpace(env.msg.Text)
		if label == "" {
			return validationErrorf("button label must not be empty")
		}
		sess.Temp.Label = label
		sess.SetState(session.StateAwaitingButtonTarget)
		_, err := c.renderer.Send(ctx, env.chatID,
			fmt.Sprintf("Now send the %s for %q.", payloadPromptNoun(sess.Temp.Kind), label), nil, nil)
		return err

	case session.StateAwaitingButtonTarget:
		return c.appendPendingCell(ctx, env)

	case session.StateBuildingGrid:
		return validationErrorf("use the editor buttons below the draft, or /addbutton, /done, /cancel")

	default:
		// Idle: a plain message is an extraction request.
		return c.extractMessage(ctx, env)
	}
}

// setMainText covers AwaitingMainText -> BuildingGrid: the draft gets its
// text and an empty single-row grid, and the editor is rendered.
func (c *Composer) setMainText(ctx context.Context, env *turnEnv) error {
	text := env.msg.Text
	if strings.TrimSpace(text) == "" {
		return validationErrorf("message text must not be empty")
	}

	g := grid.New()
	g.AddRow()
	env.sess.Message = &session.MessageData{
		Text:      text,
		Grid:      g,
		Entities:  append([]telego.MessageEntity(nil), env.msg.Entities...),
		CreatedAt: time.Now(),
	}
	env.sess.SetState(session.StateBuildingGrid)
	return c.renderEditor(ctx, env)
}

// appendPendingCell covers AwaitingButtonTarget: the payload is validated
// against the selected kind before anything mutates; an invalid payload
// leaves the state where it is so the user can simply resend.
func (c *Composer) appendPendingCell(ctx context.Context, env *turnEnv) error {
	sess := env.sess
	payload := strings.TrimSpace(env.msg.Text)

	cell := grid.Cell{Label: sess.Temp.Label, Kind: sess.Temp.Kind, Payload: payload}
	if err := grid.ValidateCell(cell); err != nil {
		return err
	}
	if err := sess.Message.Grid.AppendCell(sess.Temp.Row, cell); err != nil {
		return err
	}
	sess.SetState(session.StateBuildingGrid)
	return c.renderEditor(ctx, env)
}

// HandleAction processes a parsed callback action for a locked session and
// returns the text to acknowledge the callback with.
func (c *Composer) HandleAction(ctx context.Context, sess *session.Session, chatID int64, act Action) (string, error) {
	env := &turnEnv{sess: sess, chatID: chatID}

	switch act.Name {
	case ActionNoop:
		return "", nil

	case ActionCancel:
		sess.Reset()
		return "Cancelled", nil

	case ActionExport:
		return "", c.sendExport(ctx, env, act.SourceID)
	case ActionRecreate:
		return "", c.sendRecreated(ctx, env, act.SourceID)
	case ActionSummary:
		return "", c.sendSummary(ctx, env, act.SourceID)
	}

	// Everything below edits the draft grid.
	if sess.Message == nil {
		return "", validationErrorf("no message under construction, start with /create")
	}

	switch act.Name {
	case ActionAddCell:
		if act.Row >= sess.Message.Grid.RowCount() {
			return "", validationErrorf("row %d does not exist", act.Row)
		}
		sess.Temp = &session.TempData{Row: act.Row, Kind: grid.KindURL}
		sess.SetState(session.StateAwaitingButtonLabel)
		_, err := c.renderer.Send(ctx, env.chatID,
			"Send the button label. Default kind is URL, pick another below if needed.",
			nil, kindKeyboard())
		return "", err

	case ActionPickKind:
		if sess.Temp == nil {
			return "", validationErrorf("pick a row with ➕ first")
		}
		sess.Temp.Kind = act.Kind
		return "Kind: " + string(act.Kind), nil

	case ActionAddRow:
		sess.Message.Grid.AddRow()
		return "Row added", c.renderEditor(ctx, env)

	case ActionCellMenu:
		return "", c.sendCellMenu(ctx, env, act.Row, act.Col)

	case ActionMove:
		if err := sess.Message.Grid.MoveCell(act.Row, act.Col, act.Dir); err != nil {
			return "", err
		}
		return "", c.renderEditor(ctx, env)

	case ActionDelete:
		if err := sess.Message.Grid.DeleteCell(act.Row, act.Col); err != nil {
			return "", err
		}
		return "Button removed", c.renderEditor(ctx, env)

	case ActionFinish:
		return "", c.finish(ctx, env)
	}

	return "", &UnknownActionError{Name: string(act.Name)}
}

// finish renders the final message and returns the session to Idle. The
// draft is only discarded once the render call succeeded.
func (c *Composer) finish(ctx context.Context, env *turnEnv) error {
	sess := env.sess
	if sess.Message == nil {
		return validationErrorf("no message under construction, start with /create")
	}
	if !sess.Message.Grid.HasCells() {
		return validationErrorf("the grid has no buttons yet, add at least one before finishing")
	}

	keyboard := sess.Message.Grid.Compacted().ToRenderable()
	if _, err := c.renderer.Send(ctx, env.chatID, sess.Message.Text, sess.Message.Entities, keyboard); err != nil {
		return err
	}

	sess.Reset()
	_, err := c.renderer.Send(ctx, env.chatID, "✅ Done! Forward the message above anywhere you like.", nil, nil)
	if err != nil {
		// The final message went out; a lost confirmation is not worth
		// resurrecting the draft for.
		logger.WarnCF("composer", "Finish confirmation failed", map[string]interface{}{
			logger.FieldChatID: env.chatID,
			logger.FieldError:  err.Error(),
		})
	}
	return nil
}

// renderEditor sends or refreshes the draft editor message.
func (c *Composer) renderEditor(ctx context.Context, env *turnEnv) error {
	sess := env.sess
	text := editorText(sess.Message)
	keyboard := editorKeyboard(sess.Message.Grid)

	if sess.RenderedID != 0 {
		err := c.renderer.Edit(ctx, env.chatID, sess.RenderedID, text, keyboard)
		if err == nil {
			return nil
		}
		logger.WarnCF("composer", "Editor edit failed, sending a fresh one", map[string]interface{}{
			logger.FieldChatID: env.chatID,
			logger.FieldError:  err.Error(),
		})
	}

	id, err := c.renderer.Send(ctx, env.chatID, text, nil, keyboard)
	if err != nil {
		return err
	}
	sess.RenderedID = id
	return nil
}

// sendCellMenu offers the move and delete controls for one existing cell.
func (c *Composer) sendCellMenu(ctx context.Context, env *turnEnv, row, col int) error {
	g := env.sess.Message.Grid
	if row >= g.RowCount() || col >= g.RowLen(row) {
		return validationErrorf("cell %d in row %d does not exist", col, row)
	}
	label := g.Rows()[row][col].Label

	keyboard := &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{
			{Text: "⬅", CallbackData: fmt.Sprintf("move_%d_%d_left", row, col)},
			{Text: "⬆", CallbackData: fmt.Sprintf("move_%d_%d_up", row, col)},
			{Text: "⬇", CallbackData: fmt.Sprintf("move_%d_%d_down", row, col)},
			{Text: "➡", CallbackData: fmt.Sprintf("move_%d_%d_right", row, col)},
		},
		{
			{Text: "🗑 Remove", CallbackData: fmt.Sprintf("del_%d_%d", row, col)},
		},
	}}
	_, err := c.renderer.Send(ctx, env.chatID,
		fmt.Sprintf("Button %q: move it or remove it.", label), nil, keyboard)
	return err
}

func editorText(md *session.MessageData) string {
	var b strings.Builder
	b.WriteString("📝 Draft:\n")
	b.WriteString(md.Text)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Buttons: %d in %d row(s). Tap a button to edit it, ➕ to add one.",
		md.Grid.CellCount(), md.Grid.RowCount())
	return b.String()
}

// editorKeyboard renders each grid row as its cells plus a trailing ➕, then
// the global controls. Cell taps open the per-cell move/remove menu.
func editorKeyboard(g *grid.Grid) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for i, row := range g.Rows() {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row)+1)
		for j, cell := range row {
			buttons = append(buttons, telego.InlineKeyboardButton{
				Text:         cell.Label,
				CallbackData: fmt.Sprintf("btn_%d_%d", i, j),
			})
		}
		buttons = append(buttons, telego.InlineKeyboardButton{
			Text:         "➕",
			CallbackData: fmt.Sprintf("cell_%d", i),
		})
		rows = append(rows, buttons)
	}
	rows = append(rows, []telego.InlineKeyboardButton{
		{Text: "➕ Add row", CallbackData: "row"},
	})
	rows = append(rows, []telego.InlineKeyboardButton{
		{Text: "✅ Done", CallbackData: "finish"},
		{Text: "✖ Cancel", CallbackData: "cancel"},
	})
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func kindKeyboard() *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{
			{Text: "🔗 URL", CallbackData: "kind_url"},
			{Text: "⚡ Action", CallbackData: "kind_callback"},
		},
		{
			{Text: "👤 Contact", CallbackData: "kind_contact"},
			{Text: "🔐 Login", CallbackData: "kind_login"},
		},
	}}
}

func payloadPromptNoun(kind grid.Kind) string {
	switch kind {
	case grid.KindCallback:
		return "action token"
	case grid.KindContact:
		return "numeric user id"
	case grid.KindLogin:
		return "https login URL"
	default:
		return "http(s) URL"
	}
}
