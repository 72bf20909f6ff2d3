package store

// Merge applies a partial update onto the current configuration and returns a
// new value. It never mutates current. Collections replace wholesale, scalars
// merge field by field; the asymmetry is deliberate, since the upstream model
// emits whole product/promotion batches per turn rather than per-item deltas.
func Merge(current Configuration, update PartialConfiguration) Configuration {
	next := current.Clone()

	if update.BasicInfo != nil {
		next.BasicInfo = mergeBasicInfo(next.BasicInfo, *update.BasicInfo)
	}
	if update.Products != nil {
		next.Products = normalizeProducts(*update.Products)
	}
	if update.Promotions != nil {
		next.Promotions = normalizePromotions(*update.Promotions)
	}
	if update.PaymentMethods != nil {
		next.PaymentMethods = mergePaymentMethods(next.PaymentMethods, update.PaymentMethods)
	}
	if update.Appearance != nil {
		next.Appearance = mergeAppearance(next.Appearance, *update.Appearance)
	}
	if update.AICustomerService != nil {
		next.AICustomerService = mergeAICustomerService(next.AICustomerService, *update.AICustomerService)
	}
	if update.SupportConversations != nil {
		replaced := make([]SupportConversation, len(*update.SupportConversations))
		for i, conv := range *update.SupportConversations {
			replaced[i] = conv
			if conv.Messages != nil {
				replaced[i].Messages = make([]SupportChatMessage, len(conv.Messages))
				copy(replaced[i].Messages, conv.Messages)
			}
		}
		next.SupportConversations = replaced
	}

	return next
}

// mergeBasicInfo keeps the incoming value only when non-empty: an AI turn that
// mentions just the store name must not clobber unrelated identity fields.
func mergeBasicInfo(current BasicInfo, update BasicInfoUpdate) BasicInfo {
	pick := func(incoming FlexString, current string) string {
		if string(incoming) != "" {
			return string(incoming)
		}
		return current
	}
	return BasicInfo{
		StoreName:      pick(update.StoreName, current.StoreName),
		Tagline:        pick(update.Tagline, current.Tagline),
		ContactEmail:   pick(update.ContactEmail, current.ContactEmail),
		ContactPhone:   pick(update.ContactPhone, current.ContactPhone),
		Address:        pick(update.Address, current.Address),
		InstagramURL:   pick(update.InstagramURL, current.InstagramURL),
		FacebookURL:    pick(update.FacebookURL, current.FacebookURL),
		TiktokURL:      pick(update.TiktokURL, current.TiktokURL),
		SeoTitle:       pick(update.SeoTitle, current.SeoTitle),
		SeoDescription: pick(update.SeoDescription, current.SeoDescription),
	}
}

func normalizeProducts(updates []ProductUpdate) []Product {
	out := make([]Product, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for _, update := range updates {
		product := update.Normalize()
		for seen[product.ID] {
			product.ID = NewID()
		}
		seen[product.ID] = true
		out = append(out, product)
	}
	return out
}

func normalizePromotions(updates []PromotionUpdate) []Promotion {
	out := make([]Promotion, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for _, update := range updates {
		promo := update.Normalize()
		for seen[promo.ID] {
			promo.ID = NewID()
		}
		seen[promo.ID] = true
		out = append(out, promo)
	}
	return out
}

// mergePaymentMethods only touches keys already in the fixed provider set;
// unknown keys in the update are dropped so the map can never grow.
func mergePaymentMethods(current map[string]PaymentMethod, updates map[string]PaymentMethodUpdate) map[string]PaymentMethod {
	out := make(map[string]PaymentMethod, len(current))
	for key, method := range current {
		out[key] = method
	}
	for key, update := range updates {
		method, known := out[key]
		if !known {
			continue
		}
		if s := string(update.Status); s != "" {
			method.Status = s
		}
		if s := string(update.AccountName); s != "" {
			method.AccountName = s
		}
		if s := string(update.AccountNumber); s != "" {
			method.AccountNumber = s
		}
		if s := string(update.Instructions); s != "" {
			method.Instructions = s
		}
		if method.Status == "" {
			method.Status = StatusDisconnected
		}
		out[key] = method
	}
	return out
}

func mergeAppearance(current Appearance, update AppearanceUpdate) Appearance {
	out := current
	if s := string(update.PrimaryColor); s != "" {
		out.PrimaryColor = s
	}
	if s := string(update.FontFamily); s != "" {
		out.FontFamily = s
	}
	// Explicit false overwrites, absent does not.
	if update.DarkMode != nil {
		out.DarkMode = bool(*update.DarkMode)
	}
	return out
}

func mergeAICustomerService(current AICustomerService, update AICustomerServiceUpdate) AICustomerService {
	out := current
	if update.IsEnabled != nil {
		out.IsEnabled = bool(*update.IsEnabled)
	}
	if s := string(update.AgentName); s != "" {
		out.AgentName = s
	}
	if s := string(update.SystemPrompt); s != "" {
		out.SystemPrompt = s
	}
	if s := string(update.WelcomeMessage); s != "" {
		out.WelcomeMessage = s
	}
	if s := string(update.KeyBusinessInfo); s != "" {
		out.KeyBusinessInfo = s
	}
	if s := string(update.HumanHandoffInstructions); s != "" {
		out.HumanHandoffInstructions = s
	}
	if update.ConversationStarters != nil {
		out.ConversationStarters = append(make([]string, 0, len(update.ConversationStarters)), update.ConversationStarters...)
	}
	return out
}

// ProductUpdates converts existing products back into update form so a caller
// can append to the sequence through the replace-wholesale channel.
func ProductUpdates(products []Product) []ProductUpdate {
	out := make([]ProductUpdate, 0, len(products))
	for _, p := range products {
		out = append(out, ProductUpdate{
			ID:            FlexString(p.ID),
			Name:          FlexString(p.Name),
			Description:   FlexString(p.Description),
			Price:         FlexFloat(p.Price),
			ImageURL:      FlexString(p.ImageURL),
			Category:      FlexString(p.Category),
			SKU:           FlexString(p.SKU),
			StockQuantity: FlexInt(p.StockQuantity),
			Tags:          FlexStrings(p.Tags),
			IsFeatured:    FlexBool(p.IsFeatured),
			IsPublished:   FlexBool(p.IsPublished),
		})
	}
	return out
}
