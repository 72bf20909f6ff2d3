package convo

import (
	"context"
	"strings"
	"time"
)

// Card actions prefixed with "guide_" expand into a canned builder prompt and
// run through the normal turn pipeline; everything else gets a short local
// acknowledgement.
const guidePrefix = "guide_"

var guidedPrompts = map[string]string{
	"guide_add_product":    "Bantu aku menambahkan produk pertamaku ya.",
	"guide_setup_payments": "Bantu aku mengatur metode pembayaran untuk tokoku.",
	"guide_setup_shipping": "Bantu aku mengatur pengiriman untuk tokoku.",
}

const ackDelay = 600 * time.Millisecond

// Dispatch handles a tapped card option. value carries the option's payload
// when the card defined one.
func (e *Engine) Dispatch(ctx context.Context, actionID, value string) (*TurnResult, error) {
	if strings.HasPrefix(actionID, guidePrefix) {
		prompt, ok := guidedPrompts[actionID]
		if !ok {
			prompt = "Bantu aku melanjutkan langkah berikutnya ya."
		}
		if value != "" {
			prompt = prompt + " " + value
		}
		return e.Submit(ctx, prompt, nil)
	}

	// Generic acknowledgement. The delay keeps the UI flow readable when the
	// card only confirms a choice with no configuration side effect.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(ackDelay):
	}

	msg := e.acknowledge(ctx, actionID)
	return &TurnResult{AIMessage: msg, Configuration: e.state.Snapshot()}, nil
}
