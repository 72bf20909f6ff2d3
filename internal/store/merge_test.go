package store

import (
	"encoding/json"
	"reflect"
	"testing"
)

func sampleConfiguration() Configuration {
	cfg := DefaultConfiguration()
	cfg.BasicInfo.StoreName = "Toko Daun"
	cfg.BasicInfo.Tagline = "Segar setiap hari"
	cfg.Products = []Product{
		{ID: "p1", Name: "Teh Melati", Price: 15000, StockQuantity: 3, Tags: []string{"minuman"}},
	}
	cfg.Promotions = []Promotion{
		{ID: "promo1", Code: "HEMAT10", DiscountPercentage: 10, IsActive: true},
	}
	qris := cfg.PaymentMethods["qris"]
	qris.Status = StatusConnected
	qris.AccountName = "Toko Daun"
	cfg.PaymentMethods["qris"] = qris
	return cfg
}

func TestMergeEmptyUpdateIsIdentity(t *testing.T) {
	cfg := sampleConfiguration()
	merged := Merge(cfg, PartialConfiguration{})
	if !reflect.DeepEqual(cfg, merged) {
		t.Fatalf("empty merge changed configuration:\nbefore %+v\nafter  %+v", cfg, merged)
	}
}

func TestMergeDoesNotMutateCurrent(t *testing.T) {
	cfg := sampleConfiguration()
	products := []ProductUpdate{{Name: "Kopi Susu", Price: 18000}}
	Merge(cfg, PartialConfiguration{Products: &products})
	if len(cfg.Products) != 1 || cfg.Products[0].Name != "Teh Melati" {
		t.Fatalf("merge mutated the input configuration: %+v", cfg.Products)
	}
}

func TestMergeBasicInfoKeepsNonEmptyCurrent(t *testing.T) {
	cfg := sampleConfiguration()
	merged := Merge(cfg, PartialConfiguration{
		BasicInfo: &BasicInfoUpdate{StoreName: "Toko Baru", Tagline: ""},
	})
	if merged.BasicInfo.StoreName != "Toko Baru" {
		t.Fatalf("expected store name updated, got %q", merged.BasicInfo.StoreName)
	}
	if merged.BasicInfo.Tagline != "Segar setiap hari" {
		t.Fatalf("empty tagline overwrote current value: %q", merged.BasicInfo.Tagline)
	}
}

func TestMergePaymentKeyClosure(t *testing.T) {
	cfg := sampleConfiguration()
	merged := Merge(cfg, PartialConfiguration{
		PaymentMethods: map[string]PaymentMethodUpdate{
			"gopay":       {Status: FlexString(StatusConnected)},
			"evilGateway": {Status: "connected"},
		},
	})
	if len(merged.PaymentMethods) != len(PaymentProviders) {
		t.Fatalf("expected %d providers, got %d", len(PaymentProviders), len(merged.PaymentMethods))
	}
	if _, ok := merged.PaymentMethods["evilGateway"]; ok {
		t.Fatal("unknown provider key leaked into payment methods")
	}
	if merged.PaymentMethods["gopay"].Status != StatusConnected {
		t.Fatalf("gopay not connected: %+v", merged.PaymentMethods["gopay"])
	}
}

func TestMergePaymentStatusDefaultsToDisconnected(t *testing.T) {
	cfg := DefaultConfiguration()
	dana := cfg.PaymentMethods["dana"]
	dana.Status = ""
	cfg.PaymentMethods["dana"] = dana

	merged := Merge(cfg, PartialConfiguration{
		PaymentMethods: map[string]PaymentMethodUpdate{
			"dana": {AccountNumber: "08123456789"},
		},
	})
	got := merged.PaymentMethods["dana"]
	if got.Status != StatusDisconnected {
		t.Fatalf("expected disconnected default, got %q", got.Status)
	}
	if got.AccountNumber != "08123456789" {
		t.Fatalf("account number not merged: %+v", got)
	}
}

func TestMergeProductsReplaceAndNormalize(t *testing.T) {
	cfg := sampleConfiguration()
	var update PartialConfiguration
	raw := `{"products":[{"name":"Kopi Susu","price":"18000","stockQuantity":"5","tags":"bukan-list","isPublished":1}]}`
	if err := json.Unmarshal([]byte(raw), &update); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}

	merged := Merge(cfg, update)
	if len(merged.Products) != 1 {
		t.Fatalf("expected replacement, got %d products", len(merged.Products))
	}
	p := merged.Products[0]
	if p.ID == "" {
		t.Fatal("expected generated product id")
	}
	if p.Price != 18000 {
		t.Fatalf("price not coerced to number: %v", p.Price)
	}
	if p.StockQuantity != 5 {
		t.Fatalf("stock not coerced: %v", p.StockQuantity)
	}
	if p.Tags == nil || len(p.Tags) != 0 {
		t.Fatalf("non-sequence tags should become empty list, got %#v", p.Tags)
	}
	if !p.IsPublished {
		t.Fatal("truthy isPublished should coerce to true")
	}

	// A second merge of the same id-less update must generate a distinct id.
	again := Merge(cfg, update)
	if again.Products[0].ID == p.ID {
		t.Fatalf("two merges produced the same generated id %q", p.ID)
	}
}

func TestMergeNegativeNumbersClampToZero(t *testing.T) {
	cfg := DefaultConfiguration()
	products := []ProductUpdate{{Name: "Rugi", Price: -5, StockQuantity: -1}}
	merged := Merge(cfg, PartialConfiguration{Products: &products})
	if merged.Products[0].Price != 0 || merged.Products[0].StockQuantity != 0 {
		t.Fatalf("negative values not clamped: %+v", merged.Products[0])
	}
}

func TestMergePromotionsClampDiscount(t *testing.T) {
	cfg := DefaultConfiguration()
	promos := []PromotionUpdate{{Code: "GILA", DiscountPercentage: 250}}
	merged := Merge(cfg, PartialConfiguration{Promotions: &promos})
	if merged.Promotions[0].DiscountPercentage != 100 {
		t.Fatalf("discount not clamped: %v", merged.Promotions[0].DiscountPercentage)
	}
	if merged.Promotions[0].ID == "" {
		t.Fatal("expected generated promotion id")
	}
}

func TestMergeDarkModeDefinedness(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Appearance.DarkMode = true

	// Absent darkMode keeps current.
	merged := Merge(cfg, PartialConfiguration{
		Appearance: &AppearanceUpdate{PrimaryColor: "#000000"},
	})
	if !merged.Appearance.DarkMode {
		t.Fatal("absent darkMode must not overwrite")
	}

	// Explicit false overwrites.
	off := FlexBool(false)
	merged = Merge(cfg, PartialConfiguration{
		Appearance: &AppearanceUpdate{DarkMode: &off},
	})
	if merged.Appearance.DarkMode {
		t.Fatal("explicit false darkMode must overwrite")
	}
}

func TestMergeConversationStartersRequireSequence(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.AICustomerService.ConversationStarters = []string{"Halo"}

	var update PartialConfiguration
	if err := json.Unmarshal([]byte(`{"aiCustomerService":{"conversationStarters":"bukan-list"}}`), &update); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	merged := Merge(cfg, update)
	if len(merged.AICustomerService.ConversationStarters) != 1 {
		t.Fatalf("malformed starters replaced current: %#v", merged.AICustomerService.ConversationStarters)
	}

	if err := json.Unmarshal([]byte(`{"aiCustomerService":{"conversationStarters":["A","B"]}}`), &update); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	merged = Merge(cfg, update)
	if len(merged.AICustomerService.ConversationStarters) != 2 {
		t.Fatalf("proper sequence should replace: %#v", merged.AICustomerService.ConversationStarters)
	}
}

func TestFlexStringCoercion(t *testing.T) {
	cases := []struct {
		raw  string
		want FlexString
	}{
		{`"Toko Daun"`, "Toko Daun"},
		{`42`, "42"},
		{`true`, "true"},
		{`null`, ""},
		{`{"a":1}`, ""},
		{`["a","b"]`, ""},
	}
	for _, tc := range cases {
		var f FlexString
		if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if f != tc.want {
			t.Fatalf("coerce %s = %q, want %q", tc.raw, f, tc.want)
		}
	}
}

func TestMergeBasicInfoDiscardsNonScalarStoreName(t *testing.T) {
	cfg := sampleConfiguration()
	var update PartialConfiguration
	if err := json.Unmarshal([]byte(`{"basicInfo":{"storeName":{"a":1}}}`), &update); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	merged := Merge(cfg, update)
	if merged.BasicInfo.StoreName != "Toko Daun" {
		t.Fatalf("object store name leaked into config: %q", merged.BasicInfo.StoreName)
	}
}

func TestMergeDuplicateProductIDsRegenerated(t *testing.T) {
	cfg := DefaultConfiguration()
	products := []ProductUpdate{{ID: "dup", Name: "A"}, {ID: "dup", Name: "B"}}
	merged := Merge(cfg, PartialConfiguration{Products: &products})
	if merged.Products[0].ID == merged.Products[1].ID {
		t.Fatalf("duplicate ids survived: %q", merged.Products[0].ID)
	}
}

func TestMessagePreview(t *testing.T) {
	if got := MessagePreview("pendek"); got != "pendek" {
		t.Fatalf("short text altered: %q", got)
	}
	long := "Halo kak, apakah produk ini masih tersedia untuk dikirim besok?"
	got := MessagePreview(long)
	if len([]rune(got)) != previewMaxLen+3 {
		t.Fatalf("unexpected preview length: %q", got)
	}
}
