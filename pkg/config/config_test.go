package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

var ids = []types.PersonaID{"RUTH", "BRYCE", "JERRY"}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MAX_POSTS_PER_RUN", "MAX_REPLIES_PER_RUN", "REPLY_FLOOR", "NOTIFICATION_LOOKBACK",
		"SEEN_TOPIC_CAP", "ANSWERED_NOTIFICATION_CAP", "CALL_TIMEOUT", "LLM_PROVIDER",
		"STATE_PATH", "PERSIST_EACH_UNIT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	for _, id := range ids {
		h, p := CredentialVars(id)
		t.Setenv(h, "")
		t.Setenv(p, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BSKY_RUTH_HANDLE", "@ruth.bsky.social")
	t.Setenv("BSKY_RUTH_APP_PASSWORD", "abcd-efgh-ijkl")
	t.Setenv("BSKY_BRYCE_HANDLE", "bryce.bsky.social") // no password: inactive

	cfg, err := Load(ids)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxPostsPerRun != 7 || cfg.MaxRepliesPerRun != 6 || cfg.ReplyFloor != 2 {
		t.Errorf("budgets = %d/%d/%d", cfg.MaxPostsPerRun, cfg.MaxRepliesPerRun, cfg.ReplyFloor)
	}
	if cfg.NotificationLookback != 24*time.Hour || cfg.CallTimeout != 20*time.Second {
		t.Errorf("durations = %v/%v", cfg.NotificationLookback, cfg.CallTimeout)
	}
	if cfg.SeenTopicCap != 200 || cfg.AnsweredNotificationCap != 250 || !cfg.PersistEachUnit {
		t.Errorf("state settings = %+v", cfg)
	}
	if cfg.StatePath != "data/state.json" || cfg.BskyService != "https://bsky.social" {
		t.Errorf("paths = %q %q", cfg.StatePath, cfg.BskyService)
	}
	if len(cfg.Credentials) != 1 || cfg.Credentials["RUTH"].Handle != "ruth.bsky.social" {
		t.Errorf("credentials = %+v", cfg.Credentials)
	}
	if b := cfg.Budget(); b.MaxPostsPerRun != 7 || b.MaxRepliesPerRun != 6 {
		t.Errorf("budget = %+v", b)
	}
	if l := cfg.LLM(); l.Provider != "auto" || l.GoogleModel != "gemini-2.5-flash" || l.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("llm = %+v", l)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"posts too high":   {"MAX_POSTS_PER_RUN", "51"},
		"posts zero":       {"MAX_POSTS_PER_RUN", "0"},
		"replies too high": {"MAX_REPLIES_PER_RUN", "31"},
		"cap too small":    {"SEEN_TOPIC_CAP", "50"},
		"answered cap":     {"ANSWERED_NOTIFICATION_CAP", "301"},
		"provider":         {"LLM_PROVIDER", "claude"},
		"not a number":     {"MAX_POSTS_PER_RUN", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load(ids)
			if !errors.Is(err, types.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	env := map[string]string{
		"BSKY_RUTH_HANDLE":        "ruth.bsky.social",
		"BSKY_RUTH_APP_PASSWORD":  "long-enough",
		"BSKY_JERRY_APP_PASSWORD": "only-password",
	}
	creds, err := LoadCredentials(ids, func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 1 {
		t.Errorf("creds = %+v", creds)
	}

	env["BSKY_BRYCE_HANDLE"] = "bryce.bsky.social"
	env["BSKY_BRYCE_APP_PASSWORD"] = "short"
	_, err = LoadCredentials(ids, func(k string) string { return env[k] })
	if !errors.Is(err, types.ErrConfiguration) || !strings.Contains(err.Error(), "BSKY_BRYCE_APP_PASSWORD") {
		t.Errorf("expected short password error, got %v", err)
	}
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("INTEGRAL_TEST_A=file\nINTEGRAL_TEST_B=file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INTEGRAL_TEST_A", "process")
	t.Setenv("INTEGRAL_TEST_B", "")
	os.Unsetenv("INTEGRAL_TEST_B")

	LoadEnv(nil)
	if got := os.Getenv("INTEGRAL_TEST_A"); got != "process" {
		t.Errorf("process value overridden: %q", got)
	}
	if got := os.Getenv("INTEGRAL_TEST_B"); got != "file" {
		t.Errorf("file value not loaded: %q", got)
	}
}
