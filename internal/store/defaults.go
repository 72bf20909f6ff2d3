package store

// Factory defaults. The primary color doubles as the "fresh session" marker
// used by the one-shot template overlay.
const (
	DefaultPrimaryColor = "#4338CA"
	DefaultFontFamily   = "Inter"
)

// AppearanceTemplate is a named visual preset offered during onboarding.
type AppearanceTemplate struct {
	Name       string
	Appearance Appearance
}

// AppearanceTemplates are the non-default presets one of which is overlaid on
// the first successful configuration update of a session.
var AppearanceTemplates = []AppearanceTemplate{
	{Name: "Senja", Appearance: Appearance{PrimaryColor: "#EA580C", FontFamily: "Poppins"}},
	{Name: "Laut", Appearance: Appearance{PrimaryColor: "#0E7490", FontFamily: "Nunito"}},
	{Name: "Rimba", Appearance: Appearance{PrimaryColor: "#15803D", FontFamily: "Lora"}},
	{Name: "Malam", Appearance: Appearance{PrimaryColor: "#7C3AED", FontFamily: "Sora", DarkMode: true}},
}

// DefaultConfiguration returns the aggregate a brand-new store starts from.
// Every top-level section and every payment provider key is present.
func DefaultConfiguration() Configuration {
	methods := make(map[string]PaymentMethod, len(PaymentProviders))
	for _, provider := range PaymentProviders {
		methods[provider] = PaymentMethod{Status: StatusDisconnected}
	}
	return Configuration{
		BasicInfo:      BasicInfo{},
		Products:       []Product{},
		Promotions:     []Promotion{},
		PaymentMethods: methods,
		Appearance: Appearance{
			PrimaryColor: DefaultPrimaryColor,
			FontFamily:   DefaultFontFamily,
		},
		AICustomerService: AICustomerService{
			AgentName:            "Asisten Toko",
			WelcomeMessage:       "Halo! Ada yang bisa kami bantu?",
			ConversationStarters: []string{},
		},
		SupportConversations: []SupportConversation{},
	}
}
