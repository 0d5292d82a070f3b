package composer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/extract"
	"github.com/vigarepo2/elixir/pkg/grid"
	"github.com/vigarepo2/elixir/pkg/session"
)

type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard *telego.InlineKeyboardMarkup
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *telego.InlineKeyboardMarkup
}

// fakeRenderer records render calls and can be told to fail.
type fakeRenderer struct {
	sends  []sentMessage
	edits  []editedMessage
	nextID int
	fail   bool
}

func (f *fakeRenderer) Send(ctx context.Context, chatID int64, text string, entities []telego.MessageEntity, keyboard *telego.InlineKeyboardMarkup) (int, error) {
	if f.fail {
		return 0, errors.New("render failed")
	}
	f.nextID++
	f.sends = append(f.sends, sentMessage{ChatID: chatID, Text: text, Keyboard: keyboard})
	return f.nextID, nil
}

func (f *fakeRenderer) Edit(ctx context.Context, chatID int64, messageID int, text string, keyboard *telego.InlineKeyboardMarkup) error {
	if f.fail {
		return errors.New("render failed")
	}
	f.edits = append(f.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: keyboard})
	return nil
}

func (f *fakeRenderer) lastSend(t *testing.T) sentMessage {
	t.Helper()
	if len(f.sends) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sends[len(f.sends)-1]
}

func newTestComposer(t *testing.T) (*Composer, *fakeRenderer, *extract.Cache) {
	t.Helper()
	extractor, err := extract.NewExtractor(nil)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	cache := extract.NewCache(5 * time.Minute)
	renderer := &fakeRenderer{}
	return New(renderer, extractor, cache), renderer, cache
}

func newTestSession() *session.Session {
	return &session.Session{Key: "1", State: session.StateIdle, ChatID: 10}
}

func textMessage(text string) *telego.Message {
	return &telego.Message{
		MessageID: 100,
		Text:      text,
		Chat:      telego.Chat{ID: 10},
		From:      &telego.User{ID: 1, FirstName: "Test"},
	}
}

func sendText(t *testing.T, c *Composer, sess *session.Session, text string) {
	t.Helper()
	if err := c.HandleMessage(context.Background(), sess, textMessage(text)); err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
}

func fireAction(t *testing.T, c *Composer, sess *session.Session, data string) string {
	t.Helper()
	act, err := ParseAction(data)
	if err != nil {
		t.Fatalf("parse action %q: %v", data, err)
	}
	answer, err := c.HandleAction(context.Background(), sess, sess.ChatID, act)
	if err != nil {
		t.Fatalf("handle action %q: %v", data, err)
	}
	return answer
}

func TestComposeFlowEndToEnd(t *testing.T) {
	t.Parallel()

	c, renderer, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	if sess.State != session.StateAwaitingMainText {
		t.Fatalf("after /create state = %q", sess.State)
	}

	sendText(t, c, sess, "Hello")
	if sess.State != session.StateBuildingGrid {
		t.Fatalf("after text state = %q", sess.State)
	}
	if sess.Message == nil || sess.Message.Grid.RowCount() != 1 || sess.Message.Grid.CellCount() != 0 {
		t.Fatalf("expected one empty row, got %+v", sess.Message)
	}
	if sess.RenderedID == 0 {
		t.Fatal("editor message id not recorded")
	}

	fireAction(t, c, sess, "cell_0")
	if sess.State != session.StateAwaitingButtonLabel {
		t.Fatalf("after cell_0 state = %q", sess.State)
	}
	if sess.Temp == nil || sess.Temp.Row != 0 || sess.Temp.Kind != grid.KindURL {
		t.Fatalf("temp not stashed: %+v", sess.Temp)
	}

	sendText(t, c, sess, "Visit")
	if sess.State != session.StateAwaitingButtonTarget {
		t.Fatalf("after label state = %q", sess.State)
	}

	sendText(t, c, sess, "https://example.com")
	if sess.State != session.StateBuildingGrid {
		t.Fatalf("after target state = %q", sess.State)
	}
	row := sess.Message.Grid.Rows()[0]
	want := grid.Cell{Label: "Visit", Kind: grid.KindURL, Payload: "https://example.com"}
	if len(row) != 1 || row[0] != want {
		t.Fatalf("cell not appended: %v", row)
	}
	if sess.Temp != nil {
		t.Fatal("temp not cleared after append")
	}

	before := len(renderer.sends)
	fireAction(t, c, sess, "finish")
	if sess.State != session.StateIdle || sess.Message != nil {
		t.Fatalf("finish did not reset: state %q", sess.State)
	}

	final := renderer.sends[before]
	if final.Text != "Hello" {
		t.Fatalf("final text = %q", final.Text)
	}
	if final.Keyboard == nil || len(final.Keyboard.InlineKeyboard) != 1 {
		t.Fatalf("final keyboard wrong: %+v", final.Keyboard)
	}
	btn := final.Keyboard.InlineKeyboard[0][0]
	if btn.Text != "Visit" || btn.URL != "https://example.com" {
		t.Fatalf("final button wrong: %+v", btn)
	}
}

func TestFinishOnEmptyGridIsValidationError(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")
	fireAction(t, c, sess, "row") // two rows, all empty

	act, err := ParseAction("finish")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = c.HandleAction(context.Background(), sess, sess.ChatID, act)
	if err == nil {
		t.Fatal("expected validation error for empty grid")
	}
	var validation *grid.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if sess.State != session.StateBuildingGrid {
		t.Fatalf("state changed on failed finish: %q", sess.State)
	}
}

func TestInvalidPayloadKeepsAwaitingTarget(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")
	fireAction(t, c, sess, "cell_0")
	sendText(t, c, sess, "Visit")

	err := c.HandleMessage(context.Background(), sess, textMessage("example.com"))
	if err == nil {
		t.Fatal("expected validation error for bad URL")
	}
	var validation *grid.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if sess.State != session.StateAwaitingButtonTarget {
		t.Fatalf("state changed on invalid payload: %q", sess.State)
	}
	if sess.Message.Grid.CellCount() != 0 {
		t.Fatal("grid mutated on invalid payload")
	}

	// Re-issuing a valid payload recovers.
	sendText(t, c, sess, "https://example.com")
	if sess.State != session.StateBuildingGrid || sess.Message.Grid.CellCount() != 1 {
		t.Fatal("valid payload after error did not append")
	}
}

func TestKindSelectionChangesPayloadRule(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")
	fireAction(t, c, sess, "cell_0")
	if answer := fireAction(t, c, sess, "kind_callback"); answer == "" {
		t.Fatal("kind pick should acknowledge")
	}
	sendText(t, c, sess, "Open")
	sendText(t, c, sess, "open_menu")

	cell := sess.Message.Grid.Rows()[0][0]
	if cell.Kind != grid.KindCallback || cell.Payload != "open_menu" {
		t.Fatalf("callback cell wrong: %+v", cell)
	}
}

func TestCellMenuOffersMoveAndRemoveControls(t *testing.T) {
	t.Parallel()

	c, renderer, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")
	sendText(t, c, sess, "/addbutton First | https://first.example")
	sendText(t, c, sess, "/addbutton Second | https://second.example")

	// The editor refresh renders each cell as its own menu opener.
	if len(renderer.edits) == 0 {
		t.Fatal("editor was never refreshed")
	}
	editor := renderer.edits[len(renderer.edits)-1]
	if got := editor.Keyboard.InlineKeyboard[0][0].CallbackData; got != "btn_0_0" {
		t.Fatalf("editor cell data = %q", got)
	}

	fireAction(t, c, sess, "btn_0_1")
	menu := renderer.lastSend(t)
	if menu.Keyboard == nil || len(menu.Keyboard.InlineKeyboard) != 2 {
		t.Fatalf("cell menu keyboard wrong: %+v", menu.Keyboard)
	}
	var data []string
	for _, row := range menu.Keyboard.InlineKeyboard {
		for _, btn := range row {
			data = append(data, btn.CallbackData)
		}
	}
	want := []string{"move_0_1_left", "move_0_1_up", "move_0_1_down", "move_0_1_right", "del_0_1"}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("cell menu actions = %v", data)
	}
}

func TestMoveActionReordersRow(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")
	sendText(t, c, sess, "/addbutton First | https://first.example")
	sendText(t, c, sess, "/addbutton Second | https://second.example")

	fireAction(t, c, sess, "move_0_1_left")

	row := sess.Message.Grid.Rows()[0]
	if row[0].Label != "Second" || row[1].Label != "First" {
		t.Fatalf("row after move = %+v", row)
	}
}

func TestCellMenuOnMissingCell(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")

	act, err := ParseAction("btn_0_5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = c.HandleAction(context.Background(), sess, sess.ChatID, act)
	var validation *grid.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for missing cell, got %v", err)
	}
}

func TestCommandTableCarriesUsage(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"addbutton", "export", "import", "recreate", "summary"} {
		entry, ok := commandTable[name]
		if !ok {
			t.Fatalf("command %q missing from table", name)
		}
		if entry.usage == "" {
			t.Errorf("command %q has no usage string", name)
		}
	}
}

func TestCancelFromAnyState(t *testing.T) {
	t.Parallel()

	for _, setup := range []string{"/create", "deep"} {
		c, _, _ := newTestComposer(t)
		sess := newTestSession()

		sendText(t, c, sess, "/create")
		if setup == "deep" {
			sendText(t, c, sess, "Hello")
			fireAction(t, c, sess, "cell_0")
			sendText(t, c, sess, "Visit")
		}

		sendText(t, c, sess, "/cancel")
		if sess.State != session.StateIdle || sess.Message != nil || sess.Temp != nil {
			t.Fatalf("cancel from %q left state %q", setup, sess.State)
		}
	}
}

func TestAddButtonShortcutRequiresDraft(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	err := c.HandleMessage(context.Background(), sess, textMessage("/addbutton Visit | https://example.com"))
	if err == nil {
		t.Fatal("expected guard error without a draft")
	}
	var validation *grid.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if sess.State != session.StateIdle {
		t.Fatalf("guard failure changed state: %q", sess.State)
	}
}

func TestAddButtonShortcutAppendsURLCell(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	sendText(t, c, sess, "Hello")
	sendText(t, c, sess, "/addbutton Visit | https://example.com")

	cell := sess.Message.Grid.Rows()[0][0]
	want := grid.Cell{Label: "Visit", Kind: grid.KindURL, Payload: "https://example.com"}
	if cell != want {
		t.Fatalf("shortcut cell wrong: %+v", cell)
	}
	if sess.State != session.StateBuildingGrid {
		t.Fatalf("state after shortcut = %q", sess.State)
	}
}

func TestIdleTextTriggersExtraction(t *testing.T) {
	t.Parallel()

	c, renderer, cache := newTestComposer(t)
	sess := newTestSession()

	msg := textMessage("just some message")
	msg.MessageID = 55
	if err := c.HandleMessage(context.Background(), sess, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if _, ok := cache.Get(55); !ok {
		t.Fatal("extraction not cached")
	}
	reply := renderer.lastSend(t)
	if reply.Keyboard == nil {
		t.Fatal("extraction reply lacks follow-up buttons")
	}
	followUp := reply.Keyboard.InlineKeyboard[0][0]
	if followUp.CallbackData != "exp_55" {
		t.Fatalf("export button data = %q", followUp.CallbackData)
	}
}

func TestExportActionSendsCanonicalJSON(t *testing.T) {
	t.Parallel()

	c, renderer, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "payload text") // cached under message id 100

	fireAction(t, c, sess, "exp_100")
	exported := renderer.lastSend(t)
	restored, err := extract.FromJSON([]byte(exported.Text))
	if err != nil {
		t.Fatalf("exported JSON does not re-import: %v", err)
	}
	if restored.SourceID != 100 || restored.Text != "payload text" {
		t.Fatalf("export round trip wrong: %+v", restored)
	}
}

func TestExpiredExportIsUserVisibleError(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	act, err := ParseAction("exp_999")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = c.HandleAction(context.Background(), sess, sess.ChatID, act)
	var validation *grid.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for missing cache entry, got %v", err)
	}
}

func TestUnknownCommandIsValidationError(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestComposer(t)
	sess := newTestSession()

	err := c.HandleMessage(context.Background(), sess, textMessage("/frobnicate"))
	var validation *grid.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRenderFailureSurfacesBeforeCommit(t *testing.T) {
	t.Parallel()

	c, renderer, _ := newTestComposer(t)
	sess := newTestSession()

	sendText(t, c, sess, "/create")
	renderer.fail = true

	err := c.HandleMessage(context.Background(), sess, textMessage("Hello"))
	if err == nil {
		t.Fatal("expected render failure to propagate")
	}
	// The dispatcher restores the snapshot on error; here we only assert the
	// error escapes so that restore can happen.
	if fmt.Sprintf("%v", err) == "" {
		t.Fatal("empty error")
	}
}
