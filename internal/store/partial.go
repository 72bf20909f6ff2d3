package store

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PartialConfiguration is a configuration-shaped delta. Every section is
// optional; absent sections leave the current value untouched. The field types
// tolerate the loose shapes an upstream model tends to emit (numbers as
// strings, booleans as "1", tags as a scalar) instead of failing the parse.
type PartialConfiguration struct {
	BasicInfo            *BasicInfoUpdate               `json:"basicInfo,omitempty"`
	Products             *[]ProductUpdate               `json:"products,omitempty"`
	Promotions           *[]PromotionUpdate             `json:"promotions,omitempty"`
	PaymentMethods       map[string]PaymentMethodUpdate `json:"paymentMethods,omitempty"`
	Appearance           *AppearanceUpdate              `json:"appearance,omitempty"`
	AICustomerService    *AICustomerServiceUpdate       `json:"aiCustomerService,omitempty"`
	SupportConversations *[]SupportConversation         `json:"supportConversations,omitempty"`
}

// IsEmpty reports whether the delta carries no section at all.
func (p PartialConfiguration) IsEmpty() bool {
	return p.BasicInfo == nil &&
		p.Products == nil &&
		p.Promotions == nil &&
		len(p.PaymentMethods) == 0 &&
		p.Appearance == nil &&
		p.AICustomerService == nil &&
		p.SupportConversations == nil
}

// BasicInfoUpdate mirrors BasicInfo with tolerant scalars.
type BasicInfoUpdate struct {
	StoreName      FlexString `json:"storeName"`
	Tagline        FlexString `json:"tagline"`
	ContactEmail   FlexString `json:"contactEmail"`
	ContactPhone   FlexString `json:"contactPhone"`
	Address        FlexString `json:"address"`
	InstagramURL   FlexString `json:"instagramUrl"`
	FacebookURL    FlexString `json:"facebookUrl"`
	TiktokURL      FlexString `json:"tiktokUrl"`
	SeoTitle       FlexString `json:"seoTitle"`
	SeoDescription FlexString `json:"seoDescription"`
}

// ProductUpdate is one incoming catalog entry prior to normalization.
type ProductUpdate struct {
	ID            FlexString  `json:"id"`
	Name          FlexString  `json:"name"`
	Description   FlexString  `json:"description"`
	Price         FlexFloat   `json:"price"`
	ImageURL      FlexString  `json:"imageUrl"`
	Category      FlexString  `json:"category"`
	SKU           FlexString  `json:"sku"`
	StockQuantity FlexInt     `json:"stockQuantity"`
	Tags          FlexStrings `json:"tags"`
	IsFeatured    FlexBool    `json:"isFeatured"`
	IsPublished   FlexBool    `json:"isPublished"`
}

// Normalize fills defaults and coerces the entry into a well-formed Product.
// A missing id gets a generated one.
func (p ProductUpdate) Normalize() Product {
	id := strings.TrimSpace(string(p.ID))
	if id == "" {
		id = NewID()
	}
	price := float64(p.Price)
	if price < 0 {
		price = 0
	}
	stock := int(p.StockQuantity)
	if stock < 0 {
		stock = 0
	}
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Product{
		ID:            id,
		Name:          string(p.Name),
		Description:   string(p.Description),
		Price:         price,
		ImageURL:      string(p.ImageURL),
		Category:      string(p.Category),
		SKU:           string(p.SKU),
		StockQuantity: stock,
		Tags:          tags,
		IsFeatured:    bool(p.IsFeatured),
		IsPublished:   bool(p.IsPublished),
	}
}

// PromotionUpdate is one incoming promotion prior to normalization.
type PromotionUpdate struct {
	ID                 FlexString `json:"id"`
	Code               FlexString `json:"code"`
	Description        FlexString `json:"description"`
	DiscountPercentage FlexFloat  `json:"discountPercentage"`
	IsActive           FlexBool   `json:"isActive"`
}

// Normalize fills defaults and clamps the discount into [0,100].
func (p PromotionUpdate) Normalize() Promotion {
	id := strings.TrimSpace(string(p.ID))
	if id == "" {
		id = NewID()
	}
	discount := float64(p.DiscountPercentage)
	if discount < 0 {
		discount = 0
	}
	if discount > 100 {
		discount = 100
	}
	return Promotion{
		ID:                 id,
		Code:               string(p.Code),
		Description:        string(p.Description),
		DiscountPercentage: discount,
		IsActive:           bool(p.IsActive),
	}
}

// PaymentMethodUpdate carries provider fields to merge. Status left empty
// means "keep current, or disconnected when none".
type PaymentMethodUpdate struct {
	Status        FlexString `json:"status"`
	AccountName   FlexString `json:"accountName"`
	AccountNumber FlexString `json:"accountNumber"`
	Instructions  FlexString `json:"instructions"`
}

// AppearanceUpdate mirrors Appearance. DarkMode distinguishes an explicit
// false from an absent field.
type AppearanceUpdate struct {
	PrimaryColor FlexString `json:"primaryColor"`
	FontFamily   FlexString `json:"fontFamily"`
	DarkMode     *FlexBool  `json:"darkMode"`
}

// AICustomerServiceUpdate mirrors AICustomerService with the same defined-ness
// rule for IsEnabled. ConversationStarters replaces wholesale only when the
// incoming value is a proper sequence.
type AICustomerServiceUpdate struct {
	IsEnabled                *FlexBool   `json:"isEnabled"`
	AgentName                FlexString  `json:"agentName"`
	SystemPrompt             FlexString  `json:"systemPrompt"`
	WelcomeMessage           FlexString  `json:"welcomeMessage"`
	KeyBusinessInfo          FlexString  `json:"keyBusinessInfo"`
	HumanHandoffInstructions FlexString  `json:"humanHandoffInstructions"`
	ConversationStarters     FlexStrings `json:"conversationStarters"`
}

// FlexString accepts a JSON string, number, or boolean. Objects and arrays
// are discarded so malformed model output never leaks raw JSON into a field.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	raw := strings.TrimSpace(string(data))
	if raw == "null" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		*f = ""
		return nil
	}
	*f = FlexString(raw)
	return nil
}

// FlexFloat accepts a JSON number or a numeric string; anything else is zero.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = FlexFloat(parsed)
			return nil
		}
	}
	*f = 0
	return nil
}

// FlexInt accepts a JSON integer, float, or numeric string; anything else is
// zero. Floats are truncated.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = FlexInt(parsed)
			return nil
		}
	}
	*f = 0
	return nil
}

// FlexBool applies truthiness: true, non-zero numbers, and the strings
// "true"/"1"/"yes"/"ya" are true; everything else is false.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.ToLower(strings.TrimSpace(s))
		*f = FlexBool(s == "true" || s == "1" || s == "yes" || s == "ya")
		return nil
	}
	*f = false
	return nil
}

// FlexStrings accepts an array of stringable values. A non-array input yields
// nil so callers can tell "absent or malformed" apart from an empty list.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	var items []FlexString
	if err := json.Unmarshal(data, &items); err != nil {
		*f = nil
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, string(item))
	}
	*f = out
	return nil
}
