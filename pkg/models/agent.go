package models

const (
	DefaultPrimaryColor   = "#1e3a8a"
	DefaultSecondaryColor = "#3b82f6"
)

// AgentProfile is the branding and routing record served by the config endpoint
type AgentProfile struct {
	Name           string `json:"name"`
	Agency         string `json:"agency"`
	Company        string `json:"company"`
	Photo          string `json:"photo"`
	Facebook       string `json:"facebook,omitempty"`
	Instagram      string `json:"instagram,omitempty"`
	TikTok         string `json:"tiktok,omitempty"`
	WhatsApp       string `json:"whatsapp"`
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	HargaURL       string `json:"hargaUrl"`
	LeadsURL       string `json:"leadsUrl"`
	Error          string `json:"error,omitempty"`
}

// Theme returns the profile colors with the defaults filled in
func (p AgentProfile) Theme() (primary, secondary string) {
	primary, secondary = p.PrimaryColor, p.SecondaryColor
	if primary == "" {
		primary = DefaultPrimaryColor
	}
	if secondary == "" {
		secondary = DefaultSecondaryColor
	}
	return primary, secondary
}

// BenefitItem is one descriptive line on a plan card
type BenefitItem struct {
	Icon  string `json:"icon"`
	Text  string `json:"text"`
	Value string `json:"value,omitempty"`
}

// BenefitCatalog maps product variant names (nova, novaCI, chinta, ...) to their benefit lines
type BenefitCatalog map[string][]BenefitItem
