package support

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"toko-builder/internal/metrics"
	"toko-builder/internal/store"
)

// ErrNoConversationSelected is returned when a store owner replies without a
// target conversation. Nothing is mutated in that case.
var ErrNoConversationSelected = errors.New("no conversation selected")

const defaultCustomerName = "Pelanggan"

// Responder generates AI support replies. A nil reply text means "stay
// silent".
type Responder interface {
	GenerateSupportReply(ctx context.Context, customerText string, settings store.AICustomerService, history []store.SupportChatMessage) (string, error)
}

// Outbound pushes owner/agent replies back to the customer's channel.
type Outbound interface {
	SendText(ctx context.Context, customerID, text string) error
}

// Router owns the customer-support threads inside the configuration
// aggregate. All mutations commit through the shared state so they compose
// with concurrent builder-turn updates.
type Router struct {
	state    *store.State
	logger   *slog.Logger
	metrics  *metrics.Metrics
	rsp      Responder
	outbound Outbound

	mu          sync.Mutex
	lastNotice  string
	assistGroup sync.WaitGroup
}

// NewRouter creates a support router.
func NewRouter(state *store.State, rsp Responder, logger *slog.Logger, metricRegistry *metrics.Metrics) *Router {
	return &Router{
		state:   state,
		rsp:     rsp,
		logger:  logger.With("component", "support"),
		metrics: metricRegistry,
	}
}

// SetOutbound wires the channel that delivers replies back to customers.
func (r *Router) SetOutbound(o Outbound) {
	r.outbound = o
}

// Route appends a message to a conversation and returns the conversation id.
// An unresolvable id falls back to the no-id path. A customer message with no
// id creates a new conversation; an owner message with no id fails without
// mutating anything.
func (r *Router) Route(ctx context.Context, conversationID, text, sender, customerName string) (string, error) {
	if sender != store.SenderCustomer && sender != store.SenderStoreOwner && sender != store.SenderAIAgent {
		return "", fmt.Errorf("unknown sender %q", sender)
	}

	now := time.Now()
	var (
		targetID    string
		routeErr    error
		assistConv  *store.SupportConversation
		assistReady bool
	)

	committed := r.state.Update(func(cfg store.Configuration) store.Configuration {
		idx := findConversation(cfg.SupportConversations, conversationID)
		if idx == -1 && sender != store.SenderCustomer {
			routeErr = ErrNoConversationSelected
			return cfg
		}

		if idx == -1 {
			conv := store.SupportConversation{
				ID:           store.NewID(),
				CustomerID:   store.NewID(),
				CustomerName: strings.TrimSpace(customerName),
			}
			if conv.CustomerName == "" {
				conv.CustomerName = defaultCustomerName
			}
			cfg.SupportConversations = append(cfg.SupportConversations, conv)
			idx = len(cfg.SupportConversations) - 1
		}

		conv := &cfg.SupportConversations[idx]
		msg := store.SupportChatMessage{
			ID:             store.NewID(),
			Sender:         sender,
			Text:           text,
			Timestamp:      now,
			ConversationID: conv.ID,
			IsReadByOwner:  sender != store.SenderCustomer,
		}
		conv.Messages = append(conv.Messages, msg)
		conv.LastMessagePreview = store.MessagePreview(text)
		conv.LastMessageTimestamp = now

		switch sender {
		case store.SenderStoreOwner:
			conv.UnreadCount = 0
		default:
			conv.UnreadCount++
		}

		targetID = conv.ID
		if sender == store.SenderCustomer && conv.IsAIAssisted && cfg.AICustomerService.IsEnabled {
			snap := *conv
			snap.Messages = append([]store.SupportChatMessage(nil), conv.Messages...)
			assistConv = &snap
			assistReady = true
		}
		return cfg
	})

	if routeErr != nil {
		return "", routeErr
	}

	if r.metrics != nil {
		r.metrics.SupportMessages.WithLabelValues(sender).Inc()
	}

	if sender != store.SenderCustomer {
		r.deliver(ctx, committed, targetID, text)
	}

	if assistReady && r.rsp != nil {
		settings := committed.AICustomerService
		conv := *assistConv
		r.assistGroup.Add(1)
		go func() {
			defer r.assistGroup.Done()
			r.assist(context.WithoutCancel(ctx), conv, text, settings)
		}()
	}

	return targetID, nil
}

// RouteFromChannel routes an inbound customer-channel message, reusing the
// customer's existing conversation when one exists.
func (r *Router) RouteFromChannel(ctx context.Context, customerID, displayName, text string) (string, error) {
	conversationID := ""
	var bindID string

	snapshot := r.state.Snapshot()
	for _, conv := range snapshot.SupportConversations {
		if conv.CustomerID == customerID {
			conversationID = conv.ID
			break
		}
	}
	if conversationID == "" {
		bindID = customerID
	}

	id, err := r.Route(ctx, conversationID, text, store.SenderCustomer, displayName)
	if err != nil {
		return "", err
	}

	// A fresh conversation was created with a generated customer id; rebind
	// it to the channel identity so future messages land in the same thread.
	if bindID != "" {
		r.state.Update(func(cfg store.Configuration) store.Configuration {
			if idx := findConversation(cfg.SupportConversations, id); idx != -1 {
				cfg.SupportConversations[idx].CustomerID = bindID
			}
			return cfg
		})
	}
	return id, nil
}

// HandleCustomerMessage satisfies the WhatsApp client's inbox interface.
func (r *Router) HandleCustomerMessage(ctx context.Context, customerID, displayName, text string) {
	if _, err := r.RouteFromChannel(ctx, customerID, displayName, text); err != nil {
		r.logger.Error("failed routing channel message", "error", err, "customer", customerID)
		if r.metrics != nil {
			r.metrics.Errors.WithLabelValues("support_channel").Inc()
		}
	}
}

// MarkRead resets the unread counter and flips unread customer messages to
// read. No-op when the conversation does not exist or has nothing unread.
func (r *Router) MarkRead(conversationID string) {
	r.state.Update(func(cfg store.Configuration) store.Configuration {
		idx := findConversation(cfg.SupportConversations, conversationID)
		if idx == -1 {
			return cfg
		}
		conv := &cfg.SupportConversations[idx]
		if conv.UnreadCount == 0 && !hasUnreadCustomerMessages(conv.Messages) {
			return cfg
		}
		for i := range conv.Messages {
			if conv.Messages[i].Sender == store.SenderCustomer {
				conv.Messages[i].IsReadByOwner = true
			}
		}
		conv.UnreadCount = 0
		return cfg
	})
}

// SetAIAssist flips the per-conversation AI-assist flag. No other side
// effects.
func (r *Router) SetAIAssist(conversationID string, enabled bool) {
	r.state.Update(func(cfg store.Configuration) store.Configuration {
		if idx := findConversation(cfg.SupportConversations, conversationID); idx != -1 {
			cfg.SupportConversations[idx].IsAIAssisted = enabled
		}
		return cfg
	})
}

// LastNotice returns and clears the pending owner-facing notice, if any.
func (r *Router) LastNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	notice := r.lastNotice
	r.lastNotice = ""
	return notice
}

// Wait blocks until in-flight AI-assist generations finish. Test helper and
// shutdown hook.
func (r *Router) Wait() {
	r.assistGroup.Wait()
}

// assist generates and lands the AI support reply for a customer message. A
// failure surfaces a notice to the owner; the customer message stays
// persisted regardless.
func (r *Router) assist(ctx context.Context, conv store.SupportConversation, customerText string, settings store.AICustomerService) {
	history := conv.Messages
	if n := len(history); n > 0 && history[n-1].Text == customerText {
		history = history[:n-1]
	}
	reply, err := r.rsp.GenerateSupportReply(ctx, customerText, settings, history)
	if err != nil {
		r.logger.Error("ai assist generation failed", "error", err, "conversation", conv.ID)
		if r.metrics != nil {
			r.metrics.Errors.WithLabelValues("support_assist").Inc()
		}
		r.mu.Lock()
		r.lastNotice = fmt.Sprintf("Balasan AI untuk %s gagal dibuat. Balas manual ya.", conv.CustomerName)
		r.mu.Unlock()
		return
	}
	if reply == "" {
		return
	}
	if _, err := r.Route(ctx, conv.ID, reply, store.SenderAIAgent, ""); err != nil {
		r.logger.Error("failed appending ai reply", "error", err, "conversation", conv.ID)
	}
}

// deliver pushes an owner or agent reply out to the customer channel when one
// is attached.
func (r *Router) deliver(ctx context.Context, cfg store.Configuration, conversationID, text string) {
	if r.outbound == nil {
		return
	}
	idx := findConversation(cfg.SupportConversations, conversationID)
	if idx == -1 {
		return
	}
	customerID := cfg.SupportConversations[idx].CustomerID
	if !strings.Contains(customerID, "@") {
		return
	}
	if err := r.outbound.SendText(ctx, customerID, text); err != nil {
		r.logger.Error("failed delivering reply to channel", "error", err, "conversation", conversationID)
		if r.metrics != nil {
			r.metrics.Errors.WithLabelValues("support_outbound").Inc()
		}
	}
}

func findConversation(conversations []store.SupportConversation, id string) int {
	if id == "" {
		return -1
	}
	for i := range conversations {
		if conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func hasUnreadCustomerMessages(messages []store.SupportChatMessage) bool {
	for _, msg := range messages {
		if msg.Sender == store.SenderCustomer && !msg.IsReadByOwner {
			return true
		}
	}
	return false
}
