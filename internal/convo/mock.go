package convo

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"

	"toko-builder/internal/nlu"
	"toko-builder/internal/store"
)

// Simulation mode answers builder turns locally without touching the model
// API. Deliberately shallow: a handful of keyword heuristics that cover the
// common demo flows.

var (
	createProductRe = regexp.MustCompile(`(?i)\b(tambah(?:kan)?|buat(?:kan)?|bikin|jual|upload)\b.*\b(produk|barang|item)\b`)
	storeNameRe     = regexp.MustCompile(`(?i)nama toko(?:ku|nya)?(?:\s+(?:jadi|menjadi|adalah))?\s+(.+)`)
	taglineRe       = regexp.MustCompile(`(?i)tagline(?:ku|nya)?(?:\s+(?:jadi|menjadi|adalah))?\s+(.+)`)
	hexColorRe      = regexp.MustCompile(`#[0-9a-fA-F]{6}`)
	quotedNameRe    = regexp.MustCompile(`"([^"]+)"`)
)

func (e *Engine) simulate(text string, att *Attachment, snapshot store.Configuration) nlu.Result {
	if att != nil && createProductRe.MatchString(text) {
		return simulateProductCreation(text, att, snapshot)
	}

	update := &store.PartialConfiguration{}
	var replies []string

	if m := storeNameRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(strings.Trim(m[1], `"'.`))
		if update.BasicInfo == nil {
			update.BasicInfo = &store.BasicInfoUpdate{}
		}
		update.BasicInfo.StoreName = store.FlexString(name)
		replies = append(replies, fmt.Sprintf("Nama toko sudah kuganti jadi %q.", name))
	}
	if m := taglineRe.FindStringSubmatch(text); m != nil {
		tagline := strings.TrimSpace(strings.Trim(m[1], `"'.`))
		if update.BasicInfo == nil {
			update.BasicInfo = &store.BasicInfoUpdate{}
		}
		update.BasicInfo.Tagline = store.FlexString(tagline)
		replies = append(replies, fmt.Sprintf("Tagline baru: %q.", tagline))
	}
	if m := hexColorRe.FindString(text); m != "" {
		update.Appearance = &store.AppearanceUpdate{PrimaryColor: store.FlexString(m)}
		replies = append(replies, fmt.Sprintf("Warna utama kuubah ke %s.", m))
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "gelap") || strings.Contains(lower, "dark") {
		dark := store.FlexBool(true)
		if update.Appearance == nil {
			update.Appearance = &store.AppearanceUpdate{
				PrimaryColor: store.FlexString(snapshot.Appearance.PrimaryColor),
				FontFamily:   store.FlexString(snapshot.Appearance.FontFamily),
			}
		}
		update.Appearance.DarkMode = &dark
		replies = append(replies, "Mode gelap sudah aktif.")
	}

	if update.IsEmpty() {
		return nlu.Result{
			AIMessage: "Aku lagi jalan di mode demo, jadi jawabanku terbatas. Mau mulai dari mana?",
			Card: &store.CardContent{
				Title: "Langkah berikutnya",
				Options: []store.CardOption{
					{Label: "Tambah produk", ActionID: "guide_add_product"},
					{Label: "Atur pembayaran", ActionID: "guide_setup_payments"},
				},
			},
		}
	}
	return nlu.Result{
		AIMessage:    strings.Join(replies, " ") + " (mode demo)",
		ConfigUpdate: update,
	}
}

func simulateProductCreation(text string, att *Attachment, snapshot store.Configuration) nlu.Result {
	name := ""
	if m := quotedNameRe.FindStringSubmatch(text); m != nil {
		name = m[1]
	}
	if name == "" {
		name = strings.TrimSuffix(att.Filename, filepath.Ext(att.Filename))
		name = strings.ReplaceAll(name, "_", " ")
		name = strings.ReplaceAll(name, "-", " ")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Produk Baru"
	}

	product := store.ProductUpdate{
		ID:            store.FlexString(store.NewID()),
		Name:          store.FlexString(titleCase(name)),
		Description:   store.FlexString(fmt.Sprintf("Ditambahkan dari berkas %s.", att.Filename)),
		Price:         store.FlexFloat(float64(15000 + rand.IntN(18)*5000)),
		ImageURL:      store.FlexString(att.PreviewURL),
		StockQuantity: store.FlexInt(1 + rand.IntN(20)),
		Tags:          store.FlexStrings{"baru"},
		IsPublished:   store.FlexBool(true),
	}

	// Product lists replace wholesale, so the existing catalog rides along.
	products := append(store.ProductUpdates(snapshot.Products), product)
	normalized := product.Normalize()
	return nlu.Result{
		AIMessage:    fmt.Sprintf("Sudah kutambahkan %q ke katalogmu. (mode demo)", normalized.Name),
		ConfigUpdate: &store.PartialConfiguration{Products: &products},
		Card: &store.CardContent{
			Title:  "Produk ditambahkan",
			Status: "success",
			Products: []store.CardProductSummary{{
				ID:       normalized.ID,
				Name:     normalized.Name,
				Price:    normalized.Price,
				ImageURL: normalized.ImageURL,
			}},
		},
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
