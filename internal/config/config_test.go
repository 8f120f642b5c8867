package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creatorpulse/discovery/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  host: localhost
  user: discovery
  dbname: discovery
redis:
  addr: localhost:6379
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Address != ":8085" {
		t.Errorf("Server.Address = %q, want default", cfg.Server.Address)
	}
	if cfg.Server.ReadTimeout != 10*time.Second || cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("server timeouts = %v/%v, want defaults", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Database.Port != "5432" || cfg.Database.SSLMode != "disable" {
		t.Errorf("database defaults = %q/%q", cfg.Database.Port, cfg.Database.SSLMode)
	}
	if cfg.Redis.Prefix != "discovery" {
		t.Errorf("Redis.Prefix = %q, want discovery", cfg.Redis.Prefix)
	}
	if cfg.Engine.SafetyLimit != 20 {
		t.Errorf("Engine.SafetyLimit = %d, want 20", cfg.Engine.SafetyLimit)
	}
	if cfg.Engine.ReinvokeDelay != 3*time.Second {
		t.Errorf("Engine.ReinvokeDelay = %v, want 3s", cfg.Engine.ReinvokeDelay)
	}
	if cfg.Engine.MaxDeliveries != 5 {
		t.Errorf("Engine.MaxDeliveries = %d, want 5", cfg.Engine.MaxDeliveries)
	}
	if cfg.Elasticsearch.Index != "discovered_creators" {
		t.Errorf("Elasticsearch.Index = %q", cfg.Elasticsearch.Index)
	}
}

func TestLoadReadsFullConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
debug: true
server:
  address: ":9090"
  read_timeout: 5s
database:
  host: db.internal
  port: "5433"
  user: svc
  password: secret
  dbname: creators
  sslmode: require
redis:
  addr: redis.internal:6379
  prefix: disco
engine:
  safety_limit: 8
  reinvoke_delay: 500ms
  promote_interval: 2s
  max_deliveries: 3
platforms:
  tiktok:
    base_url: https://tiktok-api.internal
    rate_limit_rps: 2.5
    page_size: 30
  youtube:
    base_url: https://yt-api.internal
elasticsearch:
  enabled: true
  url: http://es.internal:9200
  index: creators
`))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !cfg.Debug {
		t.Error("Debug not set")
	}
	if cfg.Server.Address != ":9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.Port != "5433" || cfg.Database.SSLMode != "require" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Engine.SafetyLimit != 8 || cfg.Engine.ReinvokeDelay != 500*time.Millisecond {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Platforms.TikTok.RateLimitRPS != 2.5 || cfg.Platforms.TikTok.PageSize != 30 {
		t.Errorf("tiktok = %+v", cfg.Platforms.TikTok)
	}
	if !cfg.Elasticsearch.Enabled || cfg.Elasticsearch.Index != "creators" {
		t.Errorf("elasticsearch = %+v", cfg.Elasticsearch)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "env-secret")
	t.Setenv("TIKTOK_API_KEY", "tt-key")
	t.Setenv("APP_DEBUG", "yes")
	t.Setenv("DISCOVERY_API_PORT", "7070")

	cfg, err := config.Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Database.Password != "env-secret" {
		t.Errorf("Database.Password = %q, want env override", cfg.Database.Password)
	}
	if cfg.Platforms.TikTok.APIKey != "tt-key" {
		t.Errorf("TikTok.APIKey = %q, want env override", cfg.Platforms.TikTok.APIKey)
	}
	if !cfg.Debug {
		t.Error("APP_DEBUG=yes should enable debug")
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("Server.Address = %q, want port override", cfg.Server.Address)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "missing database host",
			yaml: `
database:
  user: svc
  dbname: d
redis:
  addr: localhost:6379
`,
			wantMsg: "database.host",
		},
		{
			name: "missing redis addr",
			yaml: `
database:
  host: localhost
  user: svc
  dbname: d
`,
			wantMsg: "redis.addr",
		},
		{
			name: "negative safety limit",
			yaml: minimalConfig + `
engine:
  safety_limit: -1
`,
			wantMsg: "safety_limit",
		},
		{
			name: "elasticsearch enabled without url",
			yaml: minimalConfig + `
elasticsearch:
  enabled: true
`,
			wantMsg: "elasticsearch.url",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error = %v, want mention of %s", err, tc.wantMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("Load() of a missing file should fail")
	}
}
