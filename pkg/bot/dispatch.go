package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/bus"
	"github.com/vigarepo2/elixir/pkg/composer"
	"github.com/vigarepo2/elixir/pkg/grid"
	"github.com/vigarepo2/elixir/pkg/lifecycle"
	"github.com/vigarepo2/elixir/pkg/logger"
	"github.com/vigarepo2/elixir/pkg/session"
)

const maxConcurrentHandlers = 32

// Gateway is the outbound surface the dispatcher and composer render
// through. Telegram is the production implementation.
type Gateway interface {
	composer.Renderer
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Dispatcher consumes updates from the bus, serializes handling per user
// session and routes each update into the composer.
type Dispatcher struct {
	bus           *bus.UpdateBus
	store         session.Store
	comp          *composer.Composer
	gateway       Gateway
	allowFrom     map[string]struct{}
	notifyUnknown bool
	runner        *lifecycle.LoopRunner
	handleSem     chan struct{}
	handleWG      sync.WaitGroup
}

func NewDispatcher(updateBus *bus.UpdateBus, store session.Store, comp *composer.Composer, gateway Gateway, allowFrom []string, notifyUnknown bool) *Dispatcher {
	allowed := make(map[string]struct{}, len(allowFrom))
	for _, id := range allowFrom {
		allowed[id] = struct{}{}
	}
	return &Dispatcher{
		bus:           updateBus,
		store:         store,
		comp:          comp,
		gateway:       gateway,
		allowFrom:     allowed,
		notifyUnknown: notifyUnknown,
		runner:        lifecycle.NewLoopRunner(),
		handleSem:     make(chan struct{}, maxConcurrentHandlers),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.runner.Start(func(stop <-chan struct{}) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			<-stop
			cancel()
		}()

		for {
			update, ok := d.bus.Consume(runCtx)
			if !ok {
				return
			}
			d.dispatchUpdate(runCtx, update)
		}
	})
}

func (d *Dispatcher) Stop() {
	d.runner.Stop()
	d.handleWG.Wait()
}

// dispatchUpdate hands the update to its own goroutine behind the handler
// semaphore so one slow user cannot stall the others.
func (d *Dispatcher) dispatchUpdate(ctx context.Context, update telego.Update) {
	d.handleWG.Add(1)
	go func() {
		defer d.handleWG.Done()

		select {
		case <-ctx.Done():
			return
		case d.handleSem <- struct{}{}:
		}
		defer func() { <-d.handleSem }()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorCF("dispatch", "Recovered panic in update handler", map[string]interface{}{
					"panic":              fmt.Sprintf("%v", r),
					logger.FieldUpdateID: update.UpdateID,
				})
			}
		}()

		d.handleUpdate(ctx, update)
	}()
}

func (d *Dispatcher) handleUpdate(ctx context.Context, update telego.Update) {
	traceID := uuid.NewString()

	switch {
	case update.Message != nil && update.Message.From != nil:
		d.handleMessage(ctx, update.Message, traceID)
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery, traceID)
	default:
		logger.DebugCF("dispatch", "Ignoring unsupported update type", map[string]interface{}{
			logger.FieldUpdateID: update.UpdateID,
			logger.FieldTraceID:  traceID,
		})
	}
}

func (d *Dispatcher) allowed(senderID string) bool {
	if len(d.allowFrom) == 0 {
		return true
	}
	_, ok := d.allowFrom[senderID]
	return ok
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telego.Message, traceID string) {
	senderID := fmt.Sprintf("%d", msg.From.ID)
	if !d.allowed(senderID) {
		logger.WarnCF("dispatch", "Message rejected by allowlist", map[string]interface{}{
			logger.FieldUserID:  senderID,
			logger.FieldTraceID: traceID,
		})
		return
	}

	sess := d.store.GetOrCreate(senderID)
	sess.Lock()
	defer sess.Unlock()

	sess.ChatID = msg.Chat.ID
	snap := sess.Snapshot()

	if err := d.comp.HandleMessage(ctx, sess, msg); err != nil {
		// Unwind so a retry replays against the state the user last saw. The
		// activity clock still moves: a user mid-dialogue fighting validation
		// must not age out under them.
		sess.Restore(snap)
		sess.LastActivity = time.Now()
		d.reportError(ctx, msg.Chat.ID, err, traceID)
		return
	}
	sess.LastActivity = time.Now()
}

func (d *Dispatcher) handleCallback(ctx context.Context, query *telego.CallbackQuery, traceID string) {
	senderID := fmt.Sprintf("%d", query.From.ID)
	if !d.allowed(senderID) {
		_ = d.gateway.AnswerCallback(ctx, query.ID, "")
		return
	}

	msg, accessible := query.Message.(*telego.Message)
	if !accessible {
		_ = d.gateway.AnswerCallback(ctx, query.ID, "That message is too old to act on.")
		return
	}
	chatID := msg.Chat.ID

	act, err := composer.ParseAction(query.Data)
	if err != nil {
		d.answerActionError(ctx, query.ID, err, traceID, query.Data)
		return
	}

	sess := d.store.GetOrCreate(senderID)
	sess.Lock()
	defer sess.Unlock()

	sess.ChatID = chatID
	snap := sess.Snapshot()

	answer, err := d.comp.HandleAction(ctx, sess, chatID, act)
	if err != nil {
		sess.Restore(snap)
		sess.LastActivity = time.Now()
		d.answerActionError(ctx, query.ID, err, traceID, query.Data)
		return
	}
	sess.LastActivity = time.Now()
	_ = d.gateway.AnswerCallback(ctx, query.ID, answer)
}

// answerActionError acknowledges the callback so the client spinner clears,
// attaching a user-visible explanation where the taxonomy calls for one.
func (d *Dispatcher) answerActionError(ctx context.Context, callbackID string, err error, traceID, data string) {
	var (
		validation *grid.ValidationError
		malformed  *composer.MalformedCallbackError
		unknown    *composer.UnknownActionError
	)

	switch {
	case errors.As(err, &validation):
		_ = d.gateway.AnswerCallback(ctx, callbackID, "⚠ "+validation.Error())
	case errors.As(err, &malformed):
		logger.WarnCF("dispatch", "Malformed callback data", map[string]interface{}{
			logger.FieldError:   err.Error(),
			logger.FieldTraceID: traceID,
		})
		_ = d.gateway.AnswerCallback(ctx, callbackID, "⚠ Can't process that button.")
	case errors.As(err, &unknown):
		logger.WarnCF("dispatch", "Unknown callback action", map[string]interface{}{
			logger.FieldAction:  data,
			logger.FieldTraceID: traceID,
		})
		notice := ""
		if d.notifyUnknown {
			notice = "Unsupported action."
		}
		_ = d.gateway.AnswerCallback(ctx, callbackID, notice)
	default:
		logger.ErrorCF("dispatch", "Callback handling failed", map[string]interface{}{
			logger.FieldError:   err.Error(),
			logger.FieldTraceID: traceID,
		})
		_ = d.gateway.AnswerCallback(ctx, callbackID, "Something went wrong, please retry.")
	}
}

// reportError maps a handling failure to the user-visible reply the error
// taxonomy prescribes. Schema and validation problems quote their reason;
// anything else logs and sends a generic retry hint.
func (d *Dispatcher) reportError(ctx context.Context, chatID int64, err error, traceID string) {
	var validation *grid.ValidationError

	text := "Something went wrong, please retry."
	if errors.As(err, &validation) {
		text = "⚠ " + validation.Error()
	} else if userErr, ok := userVisible(err); ok {
		text = userErr
	} else {
		logger.ErrorCF("dispatch", "Update handling failed", map[string]interface{}{
			logger.FieldError:   err.Error(),
			logger.FieldChatID:  chatID,
			logger.FieldTraceID: traceID,
		})
	}

	if _, sendErr := d.gateway.Send(ctx, chatID, text, nil, nil); sendErr != nil {
		logger.WarnCF("dispatch", "Failed to deliver error notice", map[string]interface{}{
			logger.FieldError:   sendErr.Error(),
			logger.FieldChatID:  chatID,
			logger.FieldTraceID: traceID,
		})
	}
}
