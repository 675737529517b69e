package app

import (
	"testing"

	"chatwatch/internal/config"
)

func boolPtr(v bool) *bool { return &v }

func TestMapNotifyDefaults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		cfg         config.NotifyConfig
		wantEnabled bool
	}{
		{name: "omitted section defaults to desktop", cfg: config.NotifyConfig{}, wantEnabled: true},
		{name: "desktop off, no telegram", cfg: config.NotifyConfig{Desktop: boolPtr(false)}, wantEnabled: false},
		{
			name:        "desktop off, telegram on",
			cfg:         config.NotifyConfig{Desktop: boolPtr(false), Telegram: config.TelegramNotify{Enabled: true}},
			wantEnabled: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := mapNotify(&config.Config{Notify: tt.cfg})
			if got.Enabled != tt.wantEnabled {
				t.Fatalf("Enabled = %v, want %v", got.Enabled, tt.wantEnabled)
			}
		})
	}
}

func TestMapLoggingFallsBackToConsole(t *testing.T) {
	t.Parallel()
	got := mapLogging(&config.Config{})
	if !got.Console {
		t.Fatal("empty logging section must still log to console")
	}

	got = mapLogging(&config.Config{Logging: config.LoggingConfig{File: config.LoggingFile{Enabled: true, Path: "x.log"}}})
	if got.Console {
		t.Fatal("explicit file-only config must not force console")
	}
}

func TestSitesChanged(t *testing.T) {
	t.Parallel()
	a := &config.Config{Sites: []config.SiteConfig{{Name: "demo", User: "u", Token: "t"}}}
	same := &config.Config{Sites: []config.SiteConfig{{Name: "demo", User: "u", Token: "t"}}}
	rotated := &config.Config{Sites: []config.SiteConfig{{Name: "demo", User: "u", Token: "t2"}}}
	extra := &config.Config{Sites: append([]config.SiteConfig{}, a.Sites[0], config.SiteConfig{Name: "work", User: "w", Token: "t"})}

	if sitesChanged(a, same) {
		t.Fatal("identical site lists flagged as changed")
	}
	if !sitesChanged(a, rotated) {
		t.Fatal("token rotation not detected")
	}
	if !sitesChanged(a, extra) {
		t.Fatal("added site not detected")
	}
}

func TestWatchTaskName(t *testing.T) {
	t.Parallel()
	if got := watchTaskName("demo"); got != "watch.demo" {
		t.Fatalf("watchTaskName = %q", got)
	}
}
