package nlu

import (
	"strings"
	"testing"
)

func TestNormalizeDirectJSON(t *testing.T) {
	raw := `{"aiMessage":"Done","storeConfig":{"basicInfo":{"storeName":"Acme"}}}`
	res := Normalize(raw)
	if res.AIMessage != "Done" {
		t.Fatalf("unexpected message: %q", res.AIMessage)
	}
	if res.ConfigUpdate == nil || res.ConfigUpdate.BasicInfo == nil {
		t.Fatal("expected basicInfo update")
	}
	if string(res.ConfigUpdate.BasicInfo.StoreName) != "Acme" {
		t.Fatalf("unexpected store name: %q", res.ConfigUpdate.BasicInfo.StoreName)
	}
}

func TestNormalizeFencedJSONWithProse(t *testing.T) {
	raw := "Sure! ```json\n{\"aiMessage\":\"Done\",\"storeConfig\":{\"basicInfo\":{\"storeName\":\"Acme\"}}}\n```"
	res := Normalize(raw)
	if res.AIMessage != "Done" {
		t.Fatalf("expected embedded JSON to win, got %q", res.AIMessage)
	}
	if res.ConfigUpdate == nil || string(res.ConfigUpdate.BasicInfo.StoreName) != "Acme" {
		t.Fatalf("config update lost: %+v", res.ConfigUpdate)
	}
}

func TestNormalizeDoubleWrapped(t *testing.T) {
	raw := `{"aiMessage":"{\"aiMessage\":\"Halo\",\"storeConfig\":{\"appearance\":{\"primaryColor\":\"#000\"}}}"}`
	res := Normalize(raw)
	if res.AIMessage != "Halo" {
		t.Fatalf("expected one level of unwrapping, got %q", res.AIMessage)
	}
	if res.ConfigUpdate == nil || res.ConfigUpdate.Appearance == nil {
		t.Fatal("inner config update lost")
	}
}

func TestNormalizePlainProse(t *testing.T) {
	res := Normalize("Aku belum paham maksudnya, bisa dijelaskan lagi?")
	if res.ConfigUpdate != nil || res.Card != nil {
		t.Fatal("prose must not produce an update")
	}
	if res.AIMessage != "Aku belum paham maksudnya, bisa dijelaskan lagi?" {
		t.Fatalf("prose should pass through: %q", res.AIMessage)
	}
}

func TestNormalizeTotality(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"{",
		"}{",
		`{"unrelated":true}`,
		`[1,2,3]`,
		"null",
		`{"aiMessage":""}`,
		"text before {\"aiMessage\":\"ok\"} text after",
		strings.Repeat("{", 2000),
	}
	for _, raw := range inputs {
		res := Normalize(raw)
		if strings.TrimSpace(res.AIMessage) == "" {
			t.Fatalf("empty message for input %q", raw)
		}
	}
}

func TestNormalizeEmptyInputUsesFallback(t *testing.T) {
	if res := Normalize(""); res.AIMessage != FallbackMessage {
		t.Fatalf("expected fallback apology, got %q", res.AIMessage)
	}
}

func TestNormalizeCard(t *testing.T) {
	raw := `{"aiMessage":"Pilih ya","aiCard":{"title":"Konfirmasi","options":[{"label":"Lanjut","actionId":"confirm_plan"}]}}`
	res := Normalize(raw)
	if res.Card == nil || res.Card.Title != "Konfirmasi" {
		t.Fatalf("card lost: %+v", res.Card)
	}
	if len(res.Card.Options) != 1 || res.Card.Options[0].ActionID != "confirm_plan" {
		t.Fatalf("card options lost: %+v", res.Card.Options)
	}
}

func TestExtractJSONObject(t *testing.T) {
	if got := extractJSONObject(`noise {"a":{"b":1}} trailing`); got != `{"a":{"b":1}}` {
		t.Fatalf("unexpected span: %q", got)
	}
	if got := extractJSONObject("no json here"); got != "" {
		t.Fatalf("expected empty span, got %q", got)
	}
}
