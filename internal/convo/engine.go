package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"toko-builder/internal/metrics"
	"toko-builder/internal/nlu"
	"toko-builder/internal/store"
)

// ErrTurnInProgress rejects a submission while a previous turn is still being
// processed.
var ErrTurnInProgress = errors.New("convo: turn already in progress")

// Status banners shown while a turn is running.
const (
	opProcessing = "Memproses pesanmu..."
	opApplying   = "Menerapkan perubahan..."
)

// Generator produces the AI side of one builder turn.
type Generator interface {
	GenerateStoreUpdate(ctx context.Context, userText string, cfg store.Configuration) (nlu.Result, error)
}

// TranscriptStore persists builder chat messages. Persistence failures are
// logged, never surfaced to the turn.
type TranscriptStore interface {
	InsertChatMessage(ctx context.Context, storeID string, msg store.ChatMessage) error
}

// Attachment is an uploaded file travelling with a turn. PreviewURL is a
// locally generated temporary URL; Release frees it and runs exactly once,
// whether the turn succeeds or fails.
type Attachment struct {
	Filename   string
	MIMEType   string
	Data       []byte
	PreviewURL string
	Release    func()
}

func (a *Attachment) release() {
	if a != nil && a.Release != nil {
		a.Release()
	}
}

// TurnResult reports what one submission produced.
type TurnResult struct {
	UserMessage   store.ChatMessage
	AIMessage     store.ChatMessage
	Configuration store.Configuration
	ConfigChanged bool
}

// Config tunes one Engine instance.
type Config struct {
	StoreID  string
	Simulate bool
}

// Engine is the builder-side conversation orchestrator. One turn: append the
// user message, call the generator, merge any configuration delta through the
// shared state, append the AI reply. The transcript is append-only and every
// turn ends with an AI message, also on failure.
type Engine struct {
	state      *store.State
	gen        Generator
	transcript TranscriptStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cfg        Config

	advisorReset func()

	mu        sync.Mutex
	messages  []store.ChatMessage
	busy      bool
	operation string
	lastError string
	selection string
}

// NewEngine wires an orchestrator. transcript may be nil when durable chat
// history is disabled.
func NewEngine(state *store.State, gen Generator, transcript TranscriptStore, logger *slog.Logger, metricRegistry *metrics.Metrics, cfg Config) *Engine {
	return &Engine{
		state:      state,
		gen:        gen,
		transcript: transcript,
		logger:     logger,
		metrics:    metricRegistry,
		cfg:        cfg,
	}
}

// SetAdvisorReset registers the callback that clears the advisor's last-sent
// dedup marker at the start of every turn.
func (e *Engine) SetAdvisorReset(fn func()) {
	e.mu.Lock()
	e.advisorReset = fn
	e.mu.Unlock()
}

// Busy reports whether a turn is running and the current status banner.
func (e *Engine) Busy() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy, e.operation
}

// LastError returns the banner text of the most recent failed turn, empty when
// the last turn succeeded.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Select records which configuration section the owner is focused on. An empty
// name clears the focus.
func (e *Engine) Select(section string) {
	e.mu.Lock()
	e.selection = section
	e.mu.Unlock()
}

// Selection returns the currently focused section name.
func (e *Engine) Selection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Messages returns a copy of the in-memory transcript.
func (e *Engine) Messages() []store.ChatMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]store.ChatMessage, len(e.messages))
	copy(out, e.messages)
	return out
}

// RestoreMessages seeds the in-memory transcript from durable history. Called
// once on startup before any turn runs.
func (e *Engine) RestoreMessages(msgs []store.ChatMessage) {
	e.mu.Lock()
	e.messages = append(e.messages[:0], msgs...)
	e.mu.Unlock()
}

// AppendAdvisory adds a proactive tip card to the transcript as an AI message.
func (e *Engine) AppendAdvisory(ctx context.Context, card store.CardContent) {
	cardCopy := card
	e.append(ctx, store.ChatMessage{
		ID:          store.NewID(),
		Sender:      store.ChatSenderAI,
		Timestamp:   time.Now().UTC(),
		ContentType: store.ContentTypeCard,
		CardContent: &cardCopy,
	})
}

// Submit runs one builder turn. Selection focus and any previous error banner
// are cleared first; the turn then appends the user message, generates, merges
// and appends exactly one AI reply.
func (e *Engine) Submit(ctx context.Context, text string, att *Attachment) (*TurnResult, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		att.release()
		return nil, ErrTurnInProgress
	}
	e.busy = true
	e.operation = opProcessing
	e.lastError = ""
	e.selection = ""
	reset := e.advisorReset
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.operation = ""
		e.mu.Unlock()
	}()
	defer att.release()

	if reset != nil {
		reset()
	}

	userMsg := store.ChatMessage{
		ID:          store.NewID(),
		Sender:      store.ChatSenderUser,
		Text:        text,
		Timestamp:   time.Now().UTC(),
		ContentType: store.ContentTypeText,
	}
	if att != nil {
		userMsg.ContentType = store.ContentTypeCard
		userMsg.CardContent = &store.CardContent{
			Title:        att.Filename,
			Description:  text,
			DocumentName: att.Filename,
			ImageURL:     att.PreviewURL,
		}
	}
	e.append(ctx, userMsg)

	snapshot := e.state.Snapshot()

	var res nlu.Result
	var err error
	if e.cfg.Simulate {
		res = e.simulate(text, att, snapshot)
	} else {
		res, err = e.gen.GenerateStoreUpdate(ctx, text, snapshot)
	}
	if err != nil {
		return nil, e.failTurn(ctx, err)
	}

	hasUpdate := res.ConfigUpdate != nil && !res.ConfigUpdate.IsEmpty()

	// First applied update of a fresh store also picks a visual template, so
	// the owner never stares at the factory look. The factory primary color is
	// the freshness marker.
	if hasUpdate && snapshot.Appearance.PrimaryColor == store.DefaultPrimaryColor {
		tpl := store.AppearanceTemplates[rand.IntN(len(store.AppearanceTemplates))]
		overlayTemplate(res.ConfigUpdate, tpl)
		res.AIMessage = fmt.Sprintf(
			"Perubahanmu sudah kuterapkan, dan kupilihkan gaya tampilan %q biar tokomu makin menarik. Bisa diganti kapan saja!",
			tpl.Name,
		)
	}

	committed := snapshot
	if hasUpdate {
		e.mu.Lock()
		e.operation = opApplying
		e.mu.Unlock()
		committed = e.state.Update(func(cur store.Configuration) store.Configuration {
			return store.Merge(cur, *res.ConfigUpdate)
		})
	}

	aiMsg := store.ChatMessage{
		ID:          store.NewID(),
		Sender:      store.ChatSenderAI,
		Text:        res.AIMessage,
		Timestamp:   time.Now().UTC(),
		ContentType: store.ContentTypeText,
	}
	if res.Card != nil {
		aiMsg.ContentType = store.ContentTypeCard
		aiMsg.CardContent = res.Card
	}
	e.append(ctx, aiMsg)

	if e.metrics != nil {
		e.metrics.BuilderTurns.WithLabelValues("ok").Inc()
	}
	return &TurnResult{
		UserMessage:   userMsg,
		AIMessage:     aiMsg,
		Configuration: committed,
		ConfigChanged: hasUpdate,
	}, nil
}

// failTurn closes a broken turn: the transcript still gets an AI message so no
// user message is left dangling, and the error banner is set for the UI.
func (e *Engine) failTurn(ctx context.Context, cause error) error {
	e.logger.Error("builder turn failed", "error", cause)
	if e.metrics != nil {
		e.metrics.BuilderTurns.WithLabelValues("error").Inc()
		e.metrics.Errors.WithLabelValues("convo").Inc()
	}

	e.append(ctx, store.ChatMessage{
		ID:          store.NewID(),
		Sender:      store.ChatSenderAI,
		Text:        "Waduh, ada kendala saat memproses pesanmu. Coba lagi sebentar ya.",
		Timestamp:   time.Now().UTC(),
		ContentType: store.ContentTypeText,
	})

	e.mu.Lock()
	e.lastError = "Terjadi kesalahan. Coba kirim ulang pesanmu ya."
	e.mu.Unlock()
	return fmt.Errorf("convo: generate turn: %w", cause)
}

func (e *Engine) acknowledge(ctx context.Context, actionID string) store.ChatMessage {
	e.logger.Debug("card action acknowledged", "action_id", actionID)
	msg := store.ChatMessage{
		ID:          store.NewID(),
		Sender:      store.ChatSenderAI,
		Text:        "Siap, sudah kucatat ya!",
		Timestamp:   time.Now().UTC(),
		ContentType: store.ContentTypeText,
	}
	e.append(ctx, msg)
	return msg
}

func (e *Engine) append(ctx context.Context, msg store.ChatMessage) {
	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()

	if e.transcript == nil {
		return
	}
	if err := e.transcript.InsertChatMessage(ctx, e.cfg.StoreID, msg); err != nil {
		e.logger.Error("persist chat message", "message_id", msg.ID, "error", err)
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("transcript").Inc()
		}
	}
}

func overlayTemplate(update *store.PartialConfiguration, tpl store.AppearanceTemplate) {
	dark := store.FlexBool(tpl.Appearance.DarkMode)
	update.Appearance = &store.AppearanceUpdate{
		PrimaryColor: store.FlexString(tpl.Appearance.PrimaryColor),
		FontFamily:   store.FlexString(tpl.Appearance.FontFamily),
		DarkMode:     &dark,
	}
}
