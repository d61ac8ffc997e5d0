package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// DefaultSecretsPrefix is prepended to every secret variable name,
// e.g. DESIYATRA_TWILIO_AUTH_TOKEN.
const DefaultSecretsPrefix = "DESIYATRA"

// Secrets are credentials that should not live in the YAML file.
type Secrets struct {
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `envconfig:"TWILIO_FROM_NUMBER"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	ArchiveDSN       string `envconfig:"ARCHIVE_DSN"`
}

func LoadSecrets(prefix string) (Secrets, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultSecretsPrefix
	}
	var s Secrets
	if err := envconfig.Process(prefix, &s); err != nil {
		return Secrets{}, fmt.Errorf("config: secrets: %w", err)
	}
	return s, nil
}

// ApplySecrets copies non-empty secrets over the matching settings. Values
// already present in the file win, so a file can pin a test credential.
func (c *Config) ApplySecrets(s Secrets) {
	if strings.EqualFold(c.Transports.Provider, "twilio") {
		c.Transports.Settings = setIfEmpty(c.Transports.Settings, "account_sid", s.TwilioAccountSID)
		c.Transports.Settings = setIfEmpty(c.Transports.Settings, "auth_token", s.TwilioAuthToken)
		c.Transports.Settings = setIfEmpty(c.Transports.Settings, "from_number", s.TwilioFromNumber)
	}
	if strings.EqualFold(c.STT.Provider, "deepgram") {
		c.STT.Settings = setIfEmpty(c.STT.Settings, "api_key", s.DeepgramAPIKey)
	}
	if strings.EqualFold(c.Intent.Provider, "openai") {
		c.Intent.Settings = setIfEmpty(c.Intent.Settings, "api_key", s.OpenAIAPIKey)
	}
	if c.Outcome.ArchiveDSN == "" {
		c.Outcome.ArchiveDSN = s.ArchiveDSN
	}
}

func setIfEmpty(settings map[string]any, key, value string) map[string]any {
	if value == "" {
		return settings
	}
	if settings == nil {
		settings = map[string]any{}
	}
	if cur, ok := settings[key].(string); ok && strings.TrimSpace(cur) != "" {
		return settings
	}
	settings[key] = value
	return settings
}
