package advisor

import (
	"context"
	"log/slog"
	"testing"

	"toko-builder/internal/store"
)

func enabledCtx() Context {
	return Context{DismissedIDs: map[string]bool{}, Enabled: true}
}

func TestEvaluateEmptyProductsOnProductsFocus(t *testing.T) {
	cfg := store.DefaultConfiguration()
	advice := Evaluate(cfg, "products", enabledCtx())
	if advice == nil || advice.ID != AdviceProductsEmpty {
		t.Fatalf("expected %s, got %+v", AdviceProductsEmpty, advice)
	}
	if len(advice.Card.Options) != 3 {
		t.Fatalf("expected primary + dismiss + disable options, got %d", len(advice.Card.Options))
	}
}

func TestEvaluateDisconnectedPaymentsOnPaymentsFocus(t *testing.T) {
	cfg := store.DefaultConfiguration()
	advice := Evaluate(cfg, "payments", enabledCtx())
	if advice == nil || advice.ID != AdvicePaymentsNoProviders {
		t.Fatalf("expected %s, got %+v", AdvicePaymentsNoProviders, advice)
	}

	qris := cfg.PaymentMethods["qris"]
	qris.Status = store.StatusPending
	cfg.PaymentMethods["qris"] = qris
	if advice := Evaluate(cfg, "payments", enabledCtx()); advice != nil {
		t.Fatalf("a pending provider should silence the rule, got %+v", advice)
	}
}

func TestEvaluateIgnoresOtherFocus(t *testing.T) {
	cfg := store.DefaultConfiguration()
	if advice := Evaluate(cfg, "appearance", enabledCtx()); advice != nil {
		t.Fatalf("unexpected advice outside the focused section: %+v", advice)
	}
}

func TestEvaluateRespectsDismissedAndLastSent(t *testing.T) {
	cfg := store.DefaultConfiguration()

	ctx := enabledCtx()
	ctx.DismissedIDs[AdviceProductsEmpty] = true
	if advice := Evaluate(cfg, "products", ctx); advice != nil {
		t.Fatalf("dismissed rule re-emitted: %+v", advice)
	}

	ctx = enabledCtx()
	ctx.LastSentID = AdviceProductsEmpty
	if advice := Evaluate(cfg, "products", ctx); advice != nil {
		t.Fatalf("rule re-announced without a state change: %+v", advice)
	}
}

func TestEvaluateDisabled(t *testing.T) {
	cfg := store.DefaultConfiguration()
	if advice := Evaluate(cfg, "products", Context{Enabled: false}); advice != nil {
		t.Fatalf("disabled advisor emitted advice: %+v", advice)
	}
}

type recordingTranscript struct {
	cards []store.CardContent
}

func (r *recordingTranscript) AppendAdvisory(ctx context.Context, card store.CardContent) {
	r.cards = append(r.cards, card)
}

func TestTickEmitsOnceUntilReset(t *testing.T) {
	transcript := &recordingTranscript{}
	adv := New(transcript, nil, nil, true, slog.Default(), nil)
	cfg := store.DefaultConfiguration()
	ctx := context.Background()

	adv.Tick(ctx, cfg, "products")
	adv.Tick(ctx, cfg, "products")
	if len(transcript.cards) != 1 {
		t.Fatalf("expected exactly one card, got %d", len(transcript.cards))
	}

	adv.ResetLastSent()
	adv.Tick(ctx, cfg, "products")
	if len(transcript.cards) != 2 {
		t.Fatalf("expected re-emission after reset, got %d", len(transcript.cards))
	}
}

func TestTickSuppressedWhileBusy(t *testing.T) {
	transcript := &recordingTranscript{}
	adv := New(transcript, nil, func() bool { return true }, true, slog.Default(), nil)
	adv.Tick(context.Background(), store.DefaultConfiguration(), "products")
	if len(transcript.cards) != 0 {
		t.Fatal("tick must be suppressed while the orchestrator is busy")
	}
}

func TestDismissAndDisable(t *testing.T) {
	transcript := &recordingTranscript{}
	adv := New(transcript, nil, nil, true, slog.Default(), nil)
	ctx := context.Background()
	cfg := store.DefaultConfiguration()

	adv.Dismiss(ctx, AdviceProductsEmpty)
	adv.Tick(ctx, cfg, "products")
	if len(transcript.cards) != 0 {
		t.Fatal("dismissed advisory emitted")
	}

	adv.Tick(ctx, cfg, "payments")
	if len(transcript.cards) != 1 {
		t.Fatal("other advisories should still fire")
	}

	adv.DisableAll(ctx)
	adv.ResetLastSent()
	adv.Tick(ctx, cfg, "payments")
	if len(transcript.cards) != 1 {
		t.Fatal("disabled advisor still emitting")
	}
	if adv.Enabled() {
		t.Fatal("expected advisor disabled")
	}
}
