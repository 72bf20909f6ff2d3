package nlu

import (
	"encoding/json"
	"strings"

	"toko-builder/internal/store"
)

// FallbackMessage replaces an empty aiMessage after every tier has run.
const FallbackMessage = "Maaf, aku lagi kesulitan membaca jawaban AI. Coba kirim ulang ya."

// Result is the normalized outcome of one raw model response.
type Result struct {
	AIMessage    string
	ConfigUpdate *store.PartialConfiguration
	Card         *store.CardContent
}

// envelope mirrors the JSON contract the model is instructed to follow.
type envelope struct {
	AIMessage   string                      `json:"aiMessage"`
	StoreConfig *store.PartialConfiguration `json:"storeConfig"`
	AICard      *store.CardContent          `json:"aiCard"`
}

// Normalize extracts a usable result from raw model output of unknown shape.
// Tiers, first success wins: direct JSON parse, one-level unwrap of a doubly
// wrapped aiMessage, the first balanced {...} span in the text, and finally
// the whole text as a plain chat message. It never fails: garbage degrades to
// a message instead of aborting the turn.
func Normalize(raw string) Result {
	if res, ok := parseEnvelope(raw); ok {
		return finish(res)
	}
	if span := extractJSONObject(raw); span != "" {
		if res, ok := parseEnvelope(span); ok {
			return finish(res)
		}
	}
	return finish(Result{AIMessage: strings.TrimSpace(raw)})
}

func parseEnvelope(s string) (Result, bool) {
	env, ok := decodeEnvelope(s)
	if !ok {
		return Result{}, false
	}

	// The model sometimes wraps its entire answer a second time inside
	// aiMessage. Unwrap one level, never more.
	if env.StoreConfig == nil && env.AICard == nil {
		inner := strings.TrimSpace(env.AIMessage)
		if strings.HasPrefix(inner, "{") {
			if unwrapped, ok := decodeEnvelope(inner); ok {
				env = unwrapped
			}
		}
	}

	return Result{
		AIMessage:    env.AIMessage,
		ConfigUpdate: env.StoreConfig,
		Card:         env.AICard,
	}, true
}

func decodeEnvelope(s string) (envelope, bool) {
	// Shape check on the raw keys first, so an envelope with an explicitly
	// empty aiMessage still counts as a match (and gets the fallback apology)
	// instead of leaking raw JSON into the chat.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return envelope{}, false
	}
	_, hasMessage := keys["aiMessage"]
	_, hasConfig := keys["storeConfig"]
	_, hasCard := keys["aiCard"]
	if !hasMessage && !hasConfig && !hasCard {
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// extractJSONObject returns the first balanced top-level {...} span, or "".
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func finish(res Result) Result {
	if strings.TrimSpace(res.AIMessage) == "" {
		res.AIMessage = FallbackMessage
	}
	return res
}
