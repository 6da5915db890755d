package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PRODHUB_OWNER", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Driver)
	}
	if len(cfg.Calendar.Exclude) != 1 || cfg.Calendar.Exclude[0] != "birthday" {
		t.Fatalf("unexpected exclusions: %v", cfg.Calendar.Exclude)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
driver: sqlite
dsn: /tmp/x.db
owner: alice
timezone: Europe/Istanbul
calendar:
  exclude: [birthday, anniversary]
  timeout: 5s
suggest:
  model: gemini-test
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRODHUB_OWNER", "bob")
	t.Setenv("PRODHUB_SUGGEST_TIMEOUT", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DSN != "/tmp/x.db" {
		t.Fatalf("dsn = %q", cfg.DSN)
	}
	if cfg.Owner != "bob" {
		t.Fatalf("env should override owner, got %q", cfg.Owner)
	}
	if cfg.Calendar.Timeout != 5*time.Second {
		t.Fatalf("calendar timeout = %v", cfg.Calendar.Timeout)
	}
	if cfg.Suggest.Timeout != 90*time.Second || cfg.Suggest.Model != "gemini-test" {
		t.Fatalf("unexpected suggest config: %+v", cfg.Suggest)
	}
	if len(cfg.Calendar.Exclude) != 2 {
		t.Fatalf("unexpected exclusions: %v", cfg.Calendar.Exclude)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.String() != "Europe/Istanbul" {
		t.Fatalf("location = %s", loc)
	}
}

func TestEnvClearsExclusions(t *testing.T) {
	t.Setenv("PRODHUB_CALENDAR_EXCLUDE", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calendar.Exclude == nil || len(cfg.Calendar.Exclude) != 0 {
		t.Fatalf("expected empty non-nil exclusions, got %#v", cfg.Calendar.Exclude)
	}
}

func TestInvalidEnv(t *testing.T) {
	t.Setenv("PRODHUB_WATCH_FILE", "maybe")
	t.Setenv("PRODHUB_CALENDAR_TIMEOUT", "soon")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"PRODHUB_WATCH_FILE", "PRODHUB_CALENDAR_TIMEOUT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %s", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres without dsn should fail")
	}
	cfg = Default()
	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown timezone should fail")
	}
	cfg = Default()
	cfg.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Owner = "carol"
	cfg.Calendar.Token = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "carol" || got.Calendar.Token != "secret" {
		t.Fatalf("unexpected config: %+v", got)
	}
}

func TestWithSettings(t *testing.T) {
	cfg := Default()
	got, err := cfg.WithSettings(map[string]string{
		SettingTimezone:        "Europe/Istanbul",
		SettingCalendarExclude: "birthday, holiday",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Timezone != "Europe/Istanbul" {
		t.Fatalf("timezone = %q", got.Timezone)
	}
	if len(got.Calendar.Exclude) != 2 || got.Calendar.Exclude[1] != "holiday" {
		t.Fatalf("exclude = %v", got.Calendar.Exclude)
	}
	if len(cfg.Calendar.Exclude) != 1 {
		t.Fatal("receiver should not change")
	}

	got, err = cfg.WithSettings(map[string]string{SettingCalendarExclude: ""})
	if err != nil {
		t.Fatal(err)
	}
	if got.Calendar.Exclude == nil || len(got.Calendar.Exclude) != 0 {
		t.Fatalf("empty setting should clear exclusions, got %#v", got.Calendar.Exclude)
	}

	if _, err := cfg.WithSettings(map[string]string{SettingTimezone: "Mars/Olympus"}); err == nil {
		t.Fatal("invalid stored timezone should fail")
	}
}
