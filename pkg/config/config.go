// Package config loads the bargainer YAML config with viper, expands ${ENV}
// references and overlays secrets taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/desiyatra/bargainer/pkg/composer"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/offer"
)

// keyDelimiter replaces viper's default "." because composer template keys
// such as "counter.early" contain dots.
const keyDelimiter = "::"

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Negotiation NegotiationConfig `mapstructure:"negotiation"`
	Session     SessionConfig     `mapstructure:"session"`
	Transcript  TranscriptConfig  `mapstructure:"transcript"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Composer    ComposerConfig    `mapstructure:"composer"`
	Intent      IntentConfig      `mapstructure:"intent"`
	Transports  ProviderConfig    `mapstructure:"transports"`
	STT         ProviderConfig    `mapstructure:"stt"`
	Outcome     OutcomeConfig     `mapstructure:"outcome"`
	Privacy     PrivacyConfig     `mapstructure:"privacy"`
}

type NegotiationConfig struct {
	Currency                   string  `mapstructure:"currency"`
	Unit                       string  `mapstructure:"unit"`
	TargetPrice                int64   `mapstructure:"target_price"`
	FloorBound                 int64   `mapstructure:"floor_bound"`
	CeilingBound               int64   `mapstructure:"ceiling_bound"`
	MaxRounds                  int     `mapstructure:"max_rounds"`
	TolerancePercent           float64 `mapstructure:"tolerance_percent"`
	DecayFactor                float64 `mapstructure:"decay_factor"`
	AnchorRatio                float64 `mapstructure:"anchor_ratio"`
	ConfidenceThreshold        float64 `mapstructure:"confidence_threshold"`
	ClarificationAttemptsLimit int     `mapstructure:"clarification_attempts_limit"`
	NoOfferTurnLimit           int     `mapstructure:"no_offer_turn_limit"`
	VendorStyle                string  `mapstructure:"vendor_style"`
}

type SessionConfig struct {
	PerTurnTimeoutSeconds int    `mapstructure:"per_turn_timeout_seconds"`
	CallTimeoutSeconds    int    `mapstructure:"call_timeout_seconds"`
	MaxConcurrentCalls    int    `mapstructure:"max_concurrent_calls"`
	Language              string `mapstructure:"language"`
}

type TranscriptConfig struct {
	Replacements map[string]string `mapstructure:"replacements"`
}

type ExtractorConfig struct {
	AdjacentCertainty float64 `mapstructure:"adjacent_certainty"`
	DetachedCertainty float64 `mapstructure:"detached_certainty"`
}

type ComposerConfig struct {
	Seed      uint64                         `mapstructure:"seed"`
	Templates map[string]map[string][]string `mapstructure:"templates"`
}

// IntentConfig picks the vendor intent classifier. Extra phrases extend the
// keyword lists, which also back the remote classifier.
type IntentConfig struct {
	Provider       string         `mapstructure:"provider"`
	Settings       map[string]any `mapstructure:"settings"`
	DeclinePhrases []string       `mapstructure:"decline_phrases"`
	AgreePhrases   []string       `mapstructure:"agree_phrases"`
}

// ProviderConfig names a provider and carries its free-form settings, decoded
// later by the provider package.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type OutcomeConfig struct {
	ArchiveDSN    string `mapstructure:"archive_dsn"`
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// Load reads path (YAML) on top of the defaults. An empty path loads defaults
// only, which still fail validation until prices are set.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	expandEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func key(parts ...string) string { return strings.Join(parts, keyDelimiter) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault(key("negotiation", "currency"), "INR")
	v.SetDefault(key("negotiation", "unit"), string(offer.UnitPerTrip))
	v.SetDefault(key("negotiation", "max_rounds"), negotiation.DefaultMaxRounds)
	v.SetDefault(key("negotiation", "tolerance_percent"), negotiation.DefaultTolerancePercent)
	v.SetDefault(key("negotiation", "decay_factor"), negotiation.DefaultDecayFactor)
	v.SetDefault(key("negotiation", "anchor_ratio"), negotiation.DefaultAnchorRatio)
	v.SetDefault(key("negotiation", "confidence_threshold"), negotiation.DefaultConfidenceThreshold)
	v.SetDefault(key("negotiation", "clarification_attempts_limit"), negotiation.DefaultClarificationLimit)
	v.SetDefault(key("negotiation", "no_offer_turn_limit"), negotiation.DefaultNoOfferTurnLimit)

	v.SetDefault(key("session", "per_turn_timeout_seconds"), 20)
	v.SetDefault(key("session", "call_timeout_seconds"), 300)
	v.SetDefault(key("session", "max_concurrent_calls"), 10)
	v.SetDefault(key("session", "language"), string(composer.LangHinglish))

	v.SetDefault(key("extractor", "adjacent_certainty"), offer.DefaultAdjacentCertainty)
	v.SetDefault(key("extractor", "detached_certainty"), offer.DefaultDetachedCertainty)

	v.SetDefault(key("intent", "provider"), "keyword")
	v.SetDefault(key("transports", "provider"), "twilio")
	v.SetDefault(key("stt", "provider"), "deepgram")

	v.SetDefault(key("outcome", "artifacts_dir"), "artifacts")
	v.SetDefault(key("outcome", "retention_days"), 30)
	v.SetDefault(key("privacy", "redact_pii"), true)
}

func expandEnv(cfg *Config) {
	cfg.Outcome.ArchiveDSN = os.ExpandEnv(cfg.Outcome.ArchiveDSN)
	cfg.Outcome.ArtifactsDir = os.ExpandEnv(cfg.Outcome.ArtifactsDir)
	for k, val := range cfg.Transcript.Replacements {
		cfg.Transcript.Replacements[k] = os.ExpandEnv(val)
	}
	cfg.Intent.Settings = expandSettings(cfg.Intent.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
	cfg.STT.Settings = expandSettings(cfg.STT.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		return expandSettings(val)
	default:
		return v
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	if err := c.Negotiation.Terms().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.PerTurnTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("session.per_turn_timeout_seconds must be positive"))
	}
	if c.Session.CallTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("session.call_timeout_seconds must be positive"))
	}
	if c.Session.MaxConcurrentCalls <= 0 {
		errs = append(errs, errors.New("session.max_concurrent_calls must be positive"))
	}
	if _, ok := composer.ParseLanguage(c.Session.Language); !ok {
		errs = append(errs, fmt.Errorf("session.language %q is not hindi, hinglish or english", c.Session.Language))
	}
	errs = append(errs, oneOf("intent.provider", c.Intent.Provider, "keyword", "openai"))
	errs = append(errs, oneOf("transports.provider", c.Transports.Provider, "twilio", "mock"))
	errs = append(errs, oneOf("stt.provider", c.STT.Provider, "deepgram", "mock", "none"))
	if c.Outcome.RetentionDays < 0 {
		errs = append(errs, errors.New("outcome.retention_days must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func oneOf(path, value string, allowed ...string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s %q must be one of %s", path, value, strings.Join(allowed, ", "))
}

// Terms converts the negotiation section, filling unset knobs with defaults.
func (n NegotiationConfig) Terms() negotiation.Terms {
	return negotiation.Terms{
		Currency:            n.Currency,
		Unit:                offer.ParseUnit(n.Unit),
		TargetPrice:         offer.Amount(n.TargetPrice),
		FloorBound:          offer.Amount(n.FloorBound),
		CeilingBound:        offer.Amount(n.CeilingBound),
		MaxRounds:           n.MaxRounds,
		TolerancePercent:    n.TolerancePercent,
		DecayFactor:         n.DecayFactor,
		AnchorRatio:         n.AnchorRatio,
		ConfidenceThreshold: n.ConfidenceThreshold,
		ClarificationLimit:  n.ClarificationAttemptsLimit,
		NoOfferTurnLimit:    n.NoOfferTurnLimit,
		VendorStyle:         negotiation.ParseVendorStyle(n.VendorStyle),
	}.WithDefaults()
}

func (s SessionConfig) PerTurnTimeout() time.Duration {
	return time.Duration(s.PerTurnTimeoutSeconds) * time.Second
}

func (s SessionConfig) CallTimeout() time.Duration {
	return time.Duration(s.CallTimeoutSeconds) * time.Second
}

// Lang returns the configured language, falling back to Hinglish.
func (s SessionConfig) Lang() composer.Language {
	if l, ok := composer.ParseLanguage(s.Language); ok {
		return l
	}
	return composer.LangHinglish
}

// Retention is how long timeline artifacts are kept. Zero disables purging.
func (o OutcomeConfig) Retention() time.Duration {
	return time.Duration(o.RetentionDays) * 24 * time.Hour
}
