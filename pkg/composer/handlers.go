package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/extract"
	"github.com/vigarepo2/elixir/pkg/grid"
	"github.com/vigarepo2/elixir/pkg/logger"
	"github.com/vigarepo2/elixir/pkg/session"
)

const helpText = `🟢 Elixir builds messages with inline button grids.

/create — start a new message
/addbutton Label | https://example.com — quick-add a URL button
/done — finish and render the message
/cancel — drop the draft

Send any other message and I will take it apart: text, entities,
buttons, media and forwarding provenance, ready to export as JSON.

/export <id> — export an extracted message
/import <json> — re-import an export
/recreate <id> — rebuild the message from its extraction
/summary <id> — entity summary`

func (c *Composer) cmdStart(ctx context.Context, env *turnEnv, args string) error {
	_, err := c.renderer.Send(ctx, env.chatID, helpText, nil, nil)
	return err
}

func (c *Composer) cmdHelp(ctx context.Context, env *turnEnv, args string) error {
	_, err := c.renderer.Send(ctx, env.chatID, helpText, nil, nil)
	return err
}

func (c *Composer) cmdCreate(ctx context.Context, env *turnEnv, args string) error {
	sess := env.sess
	sess.Message = nil
	sess.RenderedID = 0
	sess.SetState(session.StateAwaitingMainText)
	_, err := c.renderer.Send(ctx, env.chatID, "Send me the text of the new message.", nil, nil)
	return err
}

func (c *Composer) cmdCancel(ctx context.Context, env *turnEnv, args string) error {
	env.sess.Reset()
	_, err := c.renderer.Send(ctx, env.chatID, "Cancelled.", nil, nil)
	return err
}

func (c *Composer) cmdDone(ctx context.Context, env *turnEnv, args string) error {
	return c.finish(ctx, env)
}

// cmdAddButton is the legacy single-message shortcut: "/addbutton Label |
// target" appends a URL cell to the last row without the intermediate
// awaiting states.
func (c *Composer) cmdAddButton(ctx context.Context, env *turnEnv, args string) error {
	parts := strings.SplitN(args, "|", 2)
	if len(parts) != 2 {
		return validationErrorf("usage: %s", commandTable["addbutton"].usage)
	}
	label := strings.TrimSpace(parts[0])
	payload := strings.TrimSpace(parts[1])

	cell := grid.Cell{Label: label, Kind: grid.KindURL, Payload: payload}
	if err := grid.ValidateCell(cell); err != nil {
		return err
	}

	g := env.sess.Message.Grid
	if g.RowCount() == 0 {
		g.AddRow()
	}
	if err := g.AppendCell(g.RowCount()-1, cell); err != nil {
		return err
	}
	env.sess.SetState(session.StateBuildingGrid)
	return c.renderEditor(ctx, env)
}

func (c *Composer) cmdExport(ctx context.Context, env *turnEnv, args string) error {
	id, err := parseIDArg(args, commandTable["export"].usage)
	if err != nil {
		return err
	}
	return c.sendExport(ctx, env, id)
}

func (c *Composer) cmdImport(ctx context.Context, env *turnEnv, args string) error {
	if strings.TrimSpace(args) == "" {
		return validationErrorf("usage: %s", commandTable["import"].usage)
	}
	m, err := extract.FromJSON([]byte(args))
	if err != nil {
		return err
	}
	c.cache.Put(m)
	_, err = c.renderer.Send(ctx, env.chatID,
		fmt.Sprintf("📥 Imported message %d. /recreate %d to rebuild it.", m.SourceID, m.SourceID),
		nil, extractionKeyboard(m.SourceID))
	return err
}

func (c *Composer) cmdRecreate(ctx context.Context, env *turnEnv, args string) error {
	id, err := parseIDArg(args, commandTable["recreate"].usage)
	if err != nil {
		return err
	}
	return c.sendRecreated(ctx, env, id)
}

func (c *Composer) cmdSummary(ctx context.Context, env *turnEnv, args string) error {
	id, err := parseIDArg(args, commandTable["summary"].usage)
	if err != nil {
		return err
	}
	return c.sendSummary(ctx, env, id)
}

// extractMessage decomposes an arbitrary inbound message, caches the result
// under its source id and replies with a digest plus follow-up buttons.
func (c *Composer) extractMessage(ctx context.Context, env *turnEnv) error {
	m := c.extractor.Extract(env.msg)
	c.cache.Put(m)

	logger.InfoCF("composer", "Message extracted", map[string]interface{}{
		logger.FieldChatID:   env.chatID,
		logger.FieldSourceID: m.SourceID,
	})

	_, err := c.renderer.Send(ctx, env.chatID, extract.FormatSummary(m), nil, extractionKeyboard(m.SourceID))
	return err
}

func (c *Composer) lookupExtracted(sourceID int) (*extract.ExtractedMessage, error) {
	m, ok := c.cache.Get(sourceID)
	if !ok {
		return nil, validationErrorf("no extraction cached for message %d, send the message again", sourceID)
	}
	return m, nil
}

func (c *Composer) sendExport(ctx context.Context, env *turnEnv, sourceID int) error {
	m, err := c.lookupExtracted(sourceID)
	if err != nil {
		return err
	}
	data, err := extract.ToJSON(m)
	if err != nil {
		return err
	}
	_, err = c.renderer.Send(ctx, env.chatID, string(data), nil, nil)
	return err
}

func (c *Composer) sendRecreated(ctx context.Context, env *turnEnv, sourceID int) error {
	m, err := c.lookupExtracted(sourceID)
	if err != nil {
		return err
	}
	r := extract.Recreate(m)
	text := r.Text
	if text == "" {
		text = "(no text)"
	}
	_, err = c.renderer.Send(ctx, env.chatID, text, r.Entities, r.Keyboard)
	return err
}

func (c *Composer) sendSummary(ctx context.Context, env *turnEnv, sourceID int) error {
	m, err := c.lookupExtracted(sourceID)
	if err != nil {
		return err
	}
	_, err = c.renderer.Send(ctx, env.chatID, extract.FormatSummary(m), nil, nil)
	return err
}

func extractionKeyboard(sourceID int) *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{
			{Text: "📤 Export", CallbackData: fmt.Sprintf("exp_%d", sourceID)},
			{Text: "🔁 Recreate", CallbackData: fmt.Sprintf("rec_%d", sourceID)},
			{Text: "📊 Summary", CallbackData: fmt.Sprintf("sum_%d", sourceID)},
		},
	}}
}
