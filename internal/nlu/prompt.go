package nlu

import (
	"encoding/json"
	"fmt"
	"strings"

	"toko-builder/internal/store"
)

// builderSystemInstruction pins the model to the exact response envelope the
// normalizer expects. Responses that drift from it still pass through the
// layered fallback, but a tight contract keeps that path rare.
const builderSystemInstruction = `You are the configuration assistant of an online store builder.
The merchant describes their store in everyday language (usually Indonesian); you answer in the merchant's language and produce configuration updates.

Respond with VALID JSON ONLY, no markdown fences, no prose outside the JSON, using exactly this envelope:
{"aiMessage": "<reply to show the merchant>", "storeConfig": {...}, "aiCard": {...}}

Rules:
- "aiMessage" is required and must never be empty.
- "storeConfig" is a partial store configuration: include ONLY the sections you change. Sections: basicInfo, products, promotions, paymentMethods, appearance, aiCustomerService.
- All keys are camelCase. Use empty arrays/objects instead of omitting a collection you intend to clear. No extra top-level fields.
- "products" and "promotions" always carry the COMPLETE new sequence, never a partial patch. Introduce at most 3 new products per turn.
- paymentMethods keys are limited to: qris, bankTransfer, gopay, dana, cod. Status is one of connected, disconnected, pending.
- "aiCard" is optional and describes a rich card: {"title", "description", "status", "options": [{"label", "actionId"}]}.
- Never invent prices or contact details the merchant did not give you; leave those fields out instead.`

// BuildBuilderPrompt concatenates the serialized current configuration with
// the merchant's utterance.
func BuildBuilderPrompt(cfg store.Configuration, userText string) string {
	var sb strings.Builder
	sb.WriteString("Current store configuration:\n")
	data, err := json.Marshal(cfg)
	if err != nil {
		sb.WriteString("{}")
	} else {
		sb.Write(data)
	}
	sb.WriteString("\n\nMerchant says:\n")
	sb.WriteString(userText)
	return sb.String()
}

// BuildSupportSystemInstruction turns the store's AI customer service
// settings into a system instruction for the support agent.
func BuildSupportSystemInstruction(settings store.AICustomerService) string {
	var sb strings.Builder
	agent := settings.AgentName
	if agent == "" {
		agent = "Asisten Toko"
	}
	fmt.Fprintf(&sb, "You are %s, the customer support agent of an online store. Reply in the customer's language, briefly and helpfully.\n", agent)
	if settings.SystemPrompt != "" {
		sb.WriteString(settings.SystemPrompt)
		sb.WriteString("\n")
	}
	if settings.KeyBusinessInfo != "" {
		sb.WriteString("Business info:\n")
		sb.WriteString(settings.KeyBusinessInfo)
		sb.WriteString("\n")
	}
	if settings.HumanHandoffInstructions != "" {
		sb.WriteString("When you cannot help, hand off to a human like this:\n")
		sb.WriteString(settings.HumanHandoffInstructions)
		sb.WriteString("\n")
	}
	sb.WriteString("If no reply is appropriate, answer with exactly NO_RESPONSE.")
	return sb.String()
}

// BuildSupportPrompt renders the recent thread plus the new customer message.
func BuildSupportPrompt(customerText string, history []store.SupportChatMessage) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		start := 0
		if len(history) > 10 {
			start = len(history) - 10
		}
		for _, msg := range history[start:] {
			fmt.Fprintf(&sb, "[%s] %s\n", msg.Sender, msg.Text)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Customer says:\n")
	sb.WriteString(customerText)
	return sb.String()
}
