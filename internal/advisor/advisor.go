package advisor

import (
	"toko-builder/internal/store"
)

// Advisory ids. They key the dismissed set and the persisted state.
const (
	AdvicePaymentsNoProviders = "payments_no_providers_setup"
	AdviceProductsEmpty       = "products_no_products_added"
)

// Action ids offered on every advisory card.
const (
	ActionDismissTip  = "dismiss_tip"
	ActionDisableTips = "disable_tips"
)

// Context carries the advisor's own state into a pure evaluation.
type Context struct {
	DismissedIDs map[string]bool
	LastSentID   string
	Enabled      bool
}

// Advice is an advisory card plus the rule id that produced it.
type Advice struct {
	ID   string
	Card store.CardContent
}

type rule struct {
	focus   string
	id      string
	match   func(store.Configuration) bool
	title   string
	body    string
	primary store.CardOption
}

// Rules are evaluated in order; the first matching undismissed rule wins.
var rules = []rule{
	{
		focus: "payments",
		id:    AdvicePaymentsNoProviders,
		match: func(cfg store.Configuration) bool {
			for _, method := range cfg.PaymentMethods {
				if method.Status != store.StatusDisconnected {
					return false
				}
			}
			return true
		},
		title:   "Belum ada metode pembayaran",
		body:    "Tokomu belum bisa menerima pembayaran. Yuk hubungkan minimal satu metode dulu.",
		primary: store.CardOption{Label: "Atur pembayaran", ActionID: "guide_setup_payments"},
	},
	{
		focus: "products",
		id:    AdviceProductsEmpty,
		match: func(cfg store.Configuration) bool {
			return len(cfg.Products) == 0
		},
		title:   "Katalog masih kosong",
		body:    "Tambahkan produk pertamamu supaya pengunjung ada yang bisa dibeli.",
		primary: store.CardOption{Label: "Tambah produk", ActionID: "guide_add_product"},
	},
}

// Evaluate inspects the configuration and the focused section and returns the
// advisory to emit this tick, or nil. Pure: all advisor state comes in via
// ctx. Dedup against the dismissed set and the last-emitted id prevents
// re-announcing the same tip on every unrelated re-render.
func Evaluate(cfg store.Configuration, focus string, ctx Context) *Advice {
	if !ctx.Enabled {
		return nil
	}
	for _, r := range rules {
		if r.focus != focus || !r.match(cfg) {
			continue
		}
		if ctx.DismissedIDs[r.id] || ctx.LastSentID == r.id {
			continue
		}
		return &Advice{
			ID: r.id,
			Card: store.CardContent{
				Title:       r.title,
				Description: r.body,
				Status:      "info",
				Options: []store.CardOption{
					r.primary,
					{Label: "Sembunyikan tip ini", ActionID: ActionDismissTip, Value: r.id, Variant: "secondary"},
					{Label: "Matikan semua tip", ActionID: ActionDisableTips, Variant: "secondary"},
				},
			},
		}
	}
	return nil
}
