// Package config loads run configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/DalmoMendonca/integral-bots/pkg/llm"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Credential length limits.
const (
	MinHandleLen   = 3
	MinPasswordLen = 8
)

// Config is the full run configuration.
type Config struct {
	// Budgets
	MaxPostsPerRun   int `env:"MAX_POSTS_PER_RUN" envDefault:"7"`
	MaxRepliesPerRun int `env:"MAX_REPLIES_PER_RUN" envDefault:"6"`
	ReplyFloor       int `env:"REPLY_FLOOR" envDefault:"2"`

	// Notifications
	NotificationLookback   time.Duration `env:"NOTIFICATION_LOOKBACK" envDefault:"24h"`
	NotificationFetchLimit int           `env:"NOTIFICATION_FETCH_LIMIT" envDefault:"25"`

	// State
	StatePath               string `env:"STATE_PATH" envDefault:"data/state.json"`
	SeenTopicCap            int    `env:"SEEN_TOPIC_CAP" envDefault:"200"`
	AnsweredNotificationCap int    `env:"ANSWERED_NOTIFICATION_CAP" envDefault:"250"`
	PersistEachUnit         bool   `env:"PERSIST_EACH_UNIT" envDefault:"true"`

	// Collaborators
	CallTimeout     time.Duration `env:"CALL_TIMEOUT" envDefault:"20s"`
	LearningDB      string        `env:"LEARNING_DB" envDefault:"data/learning.db"`
	JournalDir      string        `env:"JOURNAL_DIR" envDefault:"data/journal"`
	MetricsTextfile string        `env:"METRICS_TEXTFILE"`
	PersonasFile    string        `env:"PERSONAS_FILE"`

	// Sources
	FeedMaxPerFeed  int           `env:"FEED_MAX_PER_FEED" envDefault:"8"`
	FeedConcurrency int           `env:"FEED_CONCURRENCY" envDefault:"6"`
	FeedExtras      int           `env:"FEED_EXTRAS" envDefault:"3"`
	FeedTimeout     time.Duration `env:"FEED_TIMEOUT" envDefault:"15s"`
	TrendingLimit   int           `env:"TRENDING_LIMIT" envDefault:"20"`

	// Bluesky
	BskyService   string `env:"BSKY_SERVICE" envDefault:"https://bsky.social"`
	BskyPublicAPI string `env:"BSKY_PUBLIC_API" envDefault:"https://public.api.bsky.app"`

	// Language model
	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"auto"`
	GoogleAPIKey  string `env:"GOOGLE_API_KEY"`
	GoogleModel   string `env:"GOOGLE_MODEL" envDefault:"gemini-2.5-flash"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	// Credentials holds the personas that have both a handle and an app
	// password, keyed by persona id.
	Credentials map[types.PersonaID]types.Credentials `env:"-"`
}

// LoadEnv loads .env and .env.local without overriding variables already
// set in the process environment.
func LoadEnv(logger logrus.FieldLogger) {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		if logger != nil {
			logger.Debugf("Loaded env file %s", file)
		}
	}
}

// Load parses the environment and the credentials of the given personas,
// then validates the result. Errors wrap types.ErrConfiguration.
func Load(ids []types.PersonaID) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, types.Wrap(types.ErrConfiguration, fmt.Errorf("parse env: %w", err))
	}
	creds, err := LoadCredentials(ids, os.Getenv)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PersonasFileFromEnv returns PERSONAS_FILE. The persona registry is needed
// before Load because it names the credential variables.
func PersonasFileFromEnv() string {
	return strings.TrimSpace(os.Getenv("PERSONAS_FILE"))
}

// CredentialVars returns the handle and password variable names for id.
func CredentialVars(id types.PersonaID) (handle, password string) {
	key := strings.ToUpper(string(id))
	return "BSKY_" + key + "_HANDLE", "BSKY_" + key + "_APP_PASSWORD"
}

// LoadCredentials reads BSKY_<ID>_HANDLE and BSKY_<ID>_APP_PASSWORD for each
// persona. A persona with neither or only one is inactive; one with both
// but too short is a configuration error.
func LoadCredentials(ids []types.PersonaID, getenv func(string) string) (map[types.PersonaID]types.Credentials, error) {
	creds := make(map[types.PersonaID]types.Credentials)
	for _, id := range ids {
		hv, pv := CredentialVars(id)
		handle := types.NormalizeHandle(getenv(hv))
		password := strings.TrimSpace(getenv(pv))
		if handle == "" || password == "" {
			continue
		}
		if len(handle) < MinHandleLen {
			return nil, types.Wrapf(types.ErrConfiguration, "%s must be at least %d characters", hv, MinHandleLen)
		}
		if len(password) < MinPasswordLen {
			return nil, types.Wrapf(types.ErrConfiguration, "%s must be at least %d characters", pv, MinPasswordLen)
		}
		creds[id] = types.Credentials{Handle: handle, AppPassword: password}
	}
	return creds, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.MaxPostsPerRun >= 1 && c.MaxPostsPerRun <= 50, "MAX_POSTS_PER_RUN must be in 1..50, got %d", c.MaxPostsPerRun)
	check(c.MaxRepliesPerRun >= 0 && c.MaxRepliesPerRun <= 30, "MAX_REPLIES_PER_RUN must be in 0..30, got %d", c.MaxRepliesPerRun)
	check(c.ReplyFloor >= 0, "REPLY_FLOOR must not be negative, got %d", c.ReplyFloor)
	check(c.NotificationLookback >= 0, "NOTIFICATION_LOOKBACK must not be negative")
	check(c.NotificationFetchLimit >= 1 && c.NotificationFetchLimit <= 100, "NOTIFICATION_FETCH_LIMIT must be in 1..100, got %d", c.NotificationFetchLimit)
	check(c.SeenTopicCap >= 100 && c.SeenTopicCap <= 300, "SEEN_TOPIC_CAP must be in 100..300, got %d", c.SeenTopicCap)
	check(c.AnsweredNotificationCap >= 100 && c.AnsweredNotificationCap <= 300, "ANSWERED_NOTIFICATION_CAP must be in 100..300, got %d", c.AnsweredNotificationCap)
	check(c.CallTimeout > 0, "CALL_TIMEOUT must be positive")
	check(strings.TrimSpace(c.StatePath) != "", "STATE_PATH is required")
	check(c.FeedMaxPerFeed >= 1, "FEED_MAX_PER_FEED must be positive")
	check(c.FeedConcurrency >= 1, "FEED_CONCURRENCY must be positive")
	check(c.FeedExtras >= 0, "FEED_EXTRAS must not be negative")
	check(c.TrendingLimit >= 0, "TRENDING_LIMIT must not be negative")

	switch strings.ToLower(strings.TrimSpace(c.LLMProvider)) {
	case "", llm.ProviderAuto, llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderTemplate:
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER must be auto, gemini, openai or template, got %q", c.LLMProvider))
	}

	if len(problems) > 0 {
		return types.Wrapf(types.ErrConfiguration, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// Budget returns the run-wide budget.
func (c *Config) Budget() types.RunBudget {
	return types.RunBudget{MaxPostsPerRun: c.MaxPostsPerRun, MaxRepliesPerRun: c.MaxRepliesPerRun}
}

// LLM returns the provider configuration.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider:      c.LLMProvider,
		GoogleAPIKey:  c.GoogleAPIKey,
		GoogleModel:   c.GoogleModel,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIModel:   c.OpenAIModel,
		OpenAIBaseURL: c.OpenAIBaseURL,
		Temperature:   0.9,
	}
}
