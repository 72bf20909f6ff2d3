package convo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"toko-builder/internal/nlu"
	"toko-builder/internal/store"
)

type fakeGenerator struct {
	results []nlu.Result
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeGenerator) GenerateStoreUpdate(_ context.Context, userText string, _ store.Configuration) (nlu.Result, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, userText)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res nlu.Result
	if i < len(f.results) {
		res = f.results[i]
	}
	return res, err
}

func newTestEngine(gen Generator) (*Engine, *store.State) {
	state := store.NewState(store.DefaultConfiguration())
	logger := slog.Default()
	return NewEngine(state, gen, nil, logger, nil, Config{StoreID: "toko-1"}), state
}

func nameUpdate(name string) *store.PartialConfiguration {
	return &store.PartialConfiguration{
		BasicInfo: &store.BasicInfoUpdate{StoreName: store.FlexString(name)},
	}
}

func TestSubmitAppliesUpdateAndAppendsMessages(t *testing.T) {
	gen := &fakeGenerator{results: []nlu.Result{
		{AIMessage: "Nama toko sudah kuganti.", ConfigUpdate: nameUpdate("Kopi Senja")},
	}}
	engine, state := newTestEngine(gen)

	res, err := engine.Submit(context.Background(), "ganti nama toko jadi Kopi Senja", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ConfigChanged {
		t.Fatal("expected a configuration change")
	}
	if got := state.Snapshot().BasicInfo.StoreName; got != "Kopi Senja" {
		t.Fatalf("store name = %q, want %q", got, "Kopi Senja")
	}

	msgs := engine.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender != store.ChatSenderUser || msgs[1].Sender != store.ChatSenderAI {
		t.Fatalf("unexpected senders %q then %q", msgs[0].Sender, msgs[1].Sender)
	}
}

func TestFirstUpdateGetsTemplateOverlay(t *testing.T) {
	gen := &fakeGenerator{results: []nlu.Result{
		{AIMessage: "Oke.", ConfigUpdate: nameUpdate("Toko A")},
		{AIMessage: "Oke.", ConfigUpdate: nameUpdate("Toko B")},
	}}
	engine, state := newTestEngine(gen)

	res, err := engine.Submit(context.Background(), "nama toko Toko A", nil)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	first := state.Snapshot().Appearance
	if first.PrimaryColor == store.DefaultPrimaryColor {
		t.Fatalf("primary color still %q after first update", first.PrimaryColor)
	}
	if !strings.Contains(res.AIMessage.Text, "gaya tampilan") {
		t.Fatalf("first reply misses template notice: %q", res.AIMessage.Text)
	}

	res, err = engine.Submit(context.Background(), "nama toko Toko B", nil)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	second := state.Snapshot().Appearance
	if second != first {
		t.Fatalf("appearance changed again on second turn: %+v -> %+v", first, second)
	}
	if strings.Contains(res.AIMessage.Text, "gaya tampilan") {
		t.Fatal("template notice repeated on second turn")
	}
}

func TestFailedTurnStillAppendsAIMessage(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("boom")}}
	engine, state := newTestEngine(gen)

	if _, err := engine.Submit(context.Background(), "halo", nil); err == nil {
		t.Fatal("expected an error")
	}
	msgs := engine.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want user + error reply", len(msgs))
	}
	if msgs[1].Sender != store.ChatSenderAI {
		t.Fatalf("last message sender = %q, want ai", msgs[1].Sender)
	}
	if engine.LastError() == "" {
		t.Fatal("error banner not set")
	}
	if got := state.Snapshot().BasicInfo.StoreName; got != "" {
		t.Fatalf("configuration mutated on failed turn: %q", got)
	}

	// A successful turn clears the banner.
	gen.errs = []error{nil, nil}
	gen.results = []nlu.Result{{}, {AIMessage: "Halo juga!"}}
	if _, err := engine.Submit(context.Background(), "halo lagi", nil); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if engine.LastError() != "" {
		t.Fatalf("error banner survived a good turn: %q", engine.LastError())
	}
}

func TestSubmitClearsSelection(t *testing.T) {
	gen := &fakeGenerator{results: []nlu.Result{{AIMessage: "Oke."}}}
	engine, _ := newTestEngine(gen)

	engine.Select("products")
	if _, err := engine.Submit(context.Background(), "halo", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sel := engine.Selection(); sel != "" {
		t.Fatalf("selection = %q after turn, want cleared", sel)
	}
}

func TestAttachmentReleasedOnFailure(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("boom")}}
	engine, _ := newTestEngine(gen)

	released := 0
	att := &Attachment{Filename: "menu.jpg", PreviewURL: "blob:abc", Release: func() { released++ }}
	if _, err := engine.Submit(context.Background(), "ini fotonya", att); err == nil {
		t.Fatal("expected an error")
	}
	if released != 1 {
		t.Fatalf("release called %d times, want 1", released)
	}

	msgs := engine.Messages()
	if msgs[0].ContentType != store.ContentTypeCard || msgs[0].CardContent.ImageURL != "blob:abc" {
		t.Fatal("user message misses the attachment preview")
	}
}

func TestAttachmentReleasedWhenTurnInProgress(t *testing.T) {
	engine, _ := newTestEngine(&fakeGenerator{})
	engine.mu.Lock()
	engine.busy = true
	engine.mu.Unlock()

	released := 0
	att := &Attachment{Filename: "menu.jpg", PreviewURL: "blob:abc", Release: func() { released++ }}
	if _, err := engine.Submit(context.Background(), "ini fotonya", att); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("err = %v, want ErrTurnInProgress", err)
	}
	if released != 1 {
		t.Fatalf("release called %d times, want 1", released)
	}
	if len(engine.Messages()) != 0 {
		t.Fatal("rejected submission must not append messages")
	}
}

func TestDispatchGuideActionRunsTurn(t *testing.T) {
	gen := &fakeGenerator{results: []nlu.Result{{AIMessage: "Ayo mulai."}}}
	engine, _ := newTestEngine(gen)

	res, err := engine.Dispatch(context.Background(), "guide_add_product", "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls)
	}
	if !strings.Contains(gen.prompts[0], "produk") {
		t.Fatalf("guided prompt = %q", gen.prompts[0])
	}
	if res.AIMessage.Text != "Ayo mulai." {
		t.Fatalf("ai reply = %q", res.AIMessage.Text)
	}
}

func TestDispatchGenericActionAcknowledges(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(gen)

	res, err := engine.Dispatch(context.Background(), "confirm_delete", "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generic action must not hit the generator")
	}
	if res.AIMessage.Sender != store.ChatSenderAI || res.AIMessage.Text == "" {
		t.Fatalf("unexpected acknowledgement: %+v", res.AIMessage)
	}
}

func TestSimulationModeCreatesProductFromAttachment(t *testing.T) {
	state := store.NewState(store.DefaultConfiguration())
	engine := NewEngine(state, nil, nil, slog.Default(), nil, Config{StoreID: "toko-1", Simulate: true})

	att := &Attachment{Filename: "keripik-pisang.jpg", PreviewURL: "blob:img", Release: func() {}}
	res, err := engine.Submit(context.Background(), `tolong tambahkan produk "Keripik Pisang"`, att)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.ConfigChanged {
		t.Fatal("expected a configuration change")
	}
	products := state.Snapshot().Products
	if len(products) != 1 {
		t.Fatalf("catalog has %d products, want 1", len(products))
	}
	if products[0].Name != "Keripik Pisang" {
		t.Fatalf("product name = %q", products[0].Name)
	}
	if res.AIMessage.CardContent == nil || len(res.AIMessage.CardContent.Products) != 1 {
		t.Fatal("success card misses the product summary")
	}
}

func TestSimulationModeKeywordUpdates(t *testing.T) {
	state := store.NewState(store.DefaultConfiguration())
	engine := NewEngine(state, nil, nil, slog.Default(), nil, Config{StoreID: "toko-1", Simulate: true})

	if _, err := engine.Submit(context.Background(), "ganti nama tokoku jadi Dapur Rima", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := state.Snapshot().BasicInfo.StoreName; got != "Dapur Rima" {
		t.Fatalf("store name = %q", got)
	}

	if _, err := engine.Submit(context.Background(), "pakai tema gelap dong", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !state.Snapshot().Appearance.DarkMode {
		t.Fatal("dark mode not enabled")
	}
}

func TestAdvisorResetRunsEveryTurn(t *testing.T) {
	gen := &fakeGenerator{results: []nlu.Result{{AIMessage: "Oke."}, {AIMessage: "Oke."}}}
	engine, _ := newTestEngine(gen)

	resets := 0
	engine.SetAdvisorReset(func() { resets++ })
	for i := 0; i < 2; i++ {
		if _, err := engine.Submit(context.Background(), "halo", nil); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if resets != 2 {
		t.Fatalf("advisor reset ran %d times, want 2", resets)
	}
}
