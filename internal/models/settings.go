package models

// Settings are the user preferences shared with the popup and options pages.
type Settings struct {
	EnableNotifications  bool `json:"enableNotifications"`
	BypassRequiresHold   bool `json:"bypassRequiresHold"`
	BypassHoldDurationMS int  `json:"bypassHoldDuration"`
	ShowStats            bool `json:"showStats"`
	QuickFocusDuration   int  `json:"quickFocusDuration"`
	DeepFocusDuration    int  `json:"deepFocusDuration"`

	// Hash of the API token; never returned by the API.
	APITokenHash string `json:"apiTokenHash,omitempty"`
}

// DefaultSettings returns the settings seeded on first start.
func DefaultSettings() Settings {
	return Settings{
		EnableNotifications:  true,
		BypassRequiresHold:   true,
		BypassHoldDurationMS: 3000,
		ShowStats:            true,
		QuickFocusDuration:   25,
		DeepFocusDuration:    DeepFocusThresholdMinutes,
	}
}

// Public returns a copy safe to hand to API consumers.
func (s Settings) Public() Settings {
	s.APITokenHash = ""
	return s
}
