package store

import (
	"time"

	"github.com/google/uuid"
)

// Payment provider keys form a closed set: merges never add or remove keys.
var PaymentProviders = []string{"qris", "bankTransfer", "gopay", "dana", "cod"}

// Payment method connection statuses.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusPending      = "pending"
)

// Support message senders.
const (
	SenderCustomer   = "customer"
	SenderStoreOwner = "storeOwner"
	SenderAIAgent    = "aiAgent"
)

// Builder chat senders.
const (
	ChatSenderUser = "user"
	ChatSenderAI   = "ai"
)

// Builder chat content types.
const (
	ContentTypeText = "text"
	ContentTypeCard = "card"
)

// Configuration is the long-lived store aggregate. All six sections are always
// present; merges operate section by section and never drop one.
type Configuration struct {
	BasicInfo            BasicInfo                `json:"basicInfo"`
	Products             []Product                `json:"products"`
	Promotions           []Promotion              `json:"promotions"`
	PaymentMethods       map[string]PaymentMethod `json:"paymentMethods"`
	Appearance           Appearance               `json:"appearance"`
	AICustomerService    AICustomerService        `json:"aiCustomerService"`
	SupportConversations []SupportConversation    `json:"supportConversations"`
}

// BasicInfo carries store identity fields. Empty string is a legal value.
type BasicInfo struct {
	StoreName      string `json:"storeName"`
	Tagline        string `json:"tagline"`
	ContactEmail   string `json:"contactEmail"`
	ContactPhone   string `json:"contactPhone"`
	Address        string `json:"address"`
	InstagramURL   string `json:"instagramUrl"`
	FacebookURL    string `json:"facebookUrl"`
	TiktokURL      string `json:"tiktokUrl"`
	SeoTitle       string `json:"seoTitle"`
	SeoDescription string `json:"seoDescription"`
}

// Product is a catalog entry. ID is unique within the sequence.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	ImageURL      string   `json:"imageUrl"`
	Category      string   `json:"category"`
	SKU           string   `json:"sku"`
	StockQuantity int      `json:"stockQuantity"`
	Tags          []string `json:"tags"`
	IsFeatured    bool     `json:"isFeatured"`
	IsPublished   bool     `json:"isPublished"`
}

// Promotion is a discount code entry.
type Promotion struct {
	ID                 string  `json:"id"`
	Code               string  `json:"code"`
	Description        string  `json:"description"`
	DiscountPercentage float64 `json:"discountPercentage"`
	IsActive           bool    `json:"isActive"`
}

// PaymentMethod holds the connection state for one provider.
type PaymentMethod struct {
	Status        string `json:"status"`
	AccountName   string `json:"accountName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
}

// Appearance holds storefront visual settings.
type Appearance struct {
	PrimaryColor string `json:"primaryColor"`
	FontFamily   string `json:"fontFamily"`
	DarkMode     bool   `json:"darkMode"`
}

// AICustomerService configures the AI support agent.
type AICustomerService struct {
	IsEnabled                bool     `json:"isEnabled"`
	AgentName                string   `json:"agentName"`
	SystemPrompt             string   `json:"systemPrompt"`
	WelcomeMessage           string   `json:"welcomeMessage"`
	KeyBusinessInfo          string   `json:"keyBusinessInfo"`
	HumanHandoffInstructions string   `json:"humanHandoffInstructions"`
	ConversationStarters     []string `json:"conversationStarters"`
}

// SupportConversation is one customer thread. It is created on the first
// customer message and never deleted here.
type SupportConversation struct {
	ID                   string               `json:"id"`
	CustomerID           string               `json:"customerId"`
	CustomerName         string               `json:"customerName"`
	LastMessagePreview   string               `json:"lastMessagePreview"`
	LastMessageTimestamp time.Time            `json:"lastMessageTimestamp"`
	UnreadCount          int                  `json:"unreadCount"`
	IsAIAssisted         bool                 `json:"isAiAssisted"`
	Messages             []SupportChatMessage `json:"messages"`
}

// SupportChatMessage is a single message inside a support thread.
// IsReadByOwner starts false only for customer-authored messages.
type SupportChatMessage struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversationId"`
	IsReadByOwner  bool      `json:"isReadByOwner"`
}

// ChatMessage is one entry of the builder-side transcript. The transcript is
// append-only.
type ChatMessage struct {
	ID          string       `json:"id"`
	Sender      string       `json:"sender"`
	Text        string       `json:"text"`
	Timestamp   time.Time    `json:"timestamp"`
	ContentType string       `json:"contentType"`
	CardContent *CardContent `json:"cardContent,omitempty"`
}

// CardContent is a display-and-intent payload rendered inside a chat message.
// Its action ids are the only coupling back into orchestration.
type CardContent struct {
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	Status        string               `json:"status,omitempty"`
	Options       []CardOption         `json:"options,omitempty"`
	VisualOptions []CardVisualOption   `json:"visualOptions,omitempty"`
	Confirmation  *CardConfirmation    `json:"confirmation,omitempty"`
	Products      []CardProductSummary `json:"products,omitempty"`
	DocumentName  string               `json:"documentName,omitempty"`
	ImageURL      string               `json:"imageUrl,omitempty"`
}

// CardOption is a tappable action inside a card.
type CardOption struct {
	Label    string `json:"label"`
	ActionID string `json:"actionId"`
	Value    string `json:"value,omitempty"`
	Variant  string `json:"variant,omitempty"`
}

// CardVisualOption is an image-backed choice inside a card.
type CardVisualOption struct {
	Label    string `json:"label"`
	ActionID string `json:"actionId"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// CardConfirmation asks the user to confirm or cancel an action.
type CardConfirmation struct {
	Message         string `json:"message"`
	ConfirmActionID string `json:"confirmActionId"`
	CancelActionID  string `json:"cancelActionId"`
}

// CardProductSummary is a lightweight product reference inside a card.
type CardProductSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// NewID returns a fresh unique identifier.
func NewID() string {
	return uuid.NewString()
}

const previewMaxLen = 30

// MessagePreview shortens text to the preview length used on conversation
// list rows.
func MessagePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewMaxLen {
		return text
	}
	return string(runes[:previewMaxLen]) + "..."
}

// Clone returns a deep copy so callers can mutate the result freely.
func (c Configuration) Clone() Configuration {
	out := c
	if c.Products != nil {
		out.Products = make([]Product, len(c.Products))
		for i, p := range c.Products {
			out.Products[i] = p
			if p.Tags != nil {
				out.Products[i].Tags = make([]string, len(p.Tags))
				copy(out.Products[i].Tags, p.Tags)
			}
		}
	}
	if c.Promotions != nil {
		out.Promotions = make([]Promotion, len(c.Promotions))
		copy(out.Promotions, c.Promotions)
	}
	if c.PaymentMethods != nil {
		out.PaymentMethods = make(map[string]PaymentMethod, len(c.PaymentMethods))
		for k, v := range c.PaymentMethods {
			out.PaymentMethods[k] = v
		}
	}
	if c.AICustomerService.ConversationStarters != nil {
		out.AICustomerService.ConversationStarters = make([]string, len(c.AICustomerService.ConversationStarters))
		copy(out.AICustomerService.ConversationStarters, c.AICustomerService.ConversationStarters)
	}
	if c.SupportConversations != nil {
		out.SupportConversations = make([]SupportConversation, len(c.SupportConversations))
		for i, conv := range c.SupportConversations {
			out.SupportConversations[i] = conv
			if conv.Messages != nil {
				out.SupportConversations[i].Messages = make([]SupportChatMessage, len(conv.Messages))
				copy(out.SupportConversations[i].Messages, conv.Messages)
			}
		}
	}
	return out
}
