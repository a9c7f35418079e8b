package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath        = "/config"
	defaultDynamicConfigFile = "dynamic.yml"
	defaultSettleDelay       = 3 * time.Second
	defaultProvider          = "adguard"
	defaultTimeout           = 10 * time.Second
	defaultRetryDelay        = 5 * time.Second
	defaultTTL               = 300
	defaultMetricsAddr       = ":9090"
	defaultLogLevel          = "info"
	defaultLogEnv            = "prod"
)

// ErrMissing is returned by Validate when required settings are absent.
var ErrMissing = errors.New("missing required configuration")

type Config struct {
	// SyncInterval triggers a periodic full resync. Zero disables it.
	SyncInterval time.Duration `yaml:"syncInterval"`
	SettleDelay  time.Duration `yaml:"settleDelay"`
	Log          Log           `yaml:"log"`
	Traefik      Traefik       `yaml:"traefik"`
	DNS          DNS           `yaml:"dns"`
	AdGuard      AdGuard       `yaml:"adguard"`
	Cloudflare   Cloudflare    `yaml:"cloudflare"`
	Reconcile    Reconcile     `yaml:"reconcile"`
	Verify       Verify        `yaml:"verify"`
	Metrics      Metrics       `yaml:"metrics"`
}

type Traefik struct {
	ConfigPath        string `yaml:"configPath"`
	DynamicConfigFile string `yaml:"dynamicConfigFile"`
}

// DynamicConfig is the full path of the watched routing file.
func (t Traefik) DynamicConfig() string {
	return filepath.Join(t.ConfigPath, t.DynamicConfigFile)
}

type DNS struct {
	Provider string `yaml:"provider"`
	// Target is the rewrite answer owned by this service.
	Target     string        `yaml:"target"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

type AdGuard struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Cloudflare struct {
	Token string   `yaml:"token"`
	Zones []string `yaml:"zones"`
	TTL   int      `yaml:"ttl"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type Reconcile struct {
	DryRun           bool     `yaml:"dryRun"`
	ProtectedRecords []string `yaml:"protectedRecords"`
}

type Verify struct {
	// Server is a host:port DNS server queried after changes are applied. Empty disables verification.
	Server string `yaml:"server"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			_ = f.Close()
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.Traefik.ConfigPath == "" {
		cfg.Traefik.ConfigPath = defaultConfigPath
	}
	if cfg.Traefik.DynamicConfigFile == "" {
		cfg.Traefik.DynamicConfigFile = defaultDynamicConfigFile
	}
	if cfg.DNS.Provider == "" {
		cfg.DNS.Provider = defaultProvider
	}
	if cfg.DNS.Timeout == 0 {
		cfg.DNS.Timeout = defaultTimeout
	}
	if cfg.DNS.RetryDelay == 0 {
		cfg.DNS.RetryDelay = defaultRetryDelay
	}
	if cfg.Cloudflare.TTL == 0 {
		cfg.Cloudflare.TTL = defaultTTL
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = defaultMetricsAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
}

// Override from environment if set
func (cfg *Config) applyEnv() {
	if url := os.Getenv("ADGUARD_URL"); url != "" {
		cfg.AdGuard.URL = strings.TrimRight(url, "/")
	}
	if user := os.Getenv("ADGUARD_USER"); user != "" {
		cfg.AdGuard.User = user
	}
	if password := os.Getenv("ADGUARD_PASSWORD"); password != "" {
		cfg.AdGuard.Password = password
	}
	if target := os.Getenv("TRAEFIK_IP"); target != "" {
		cfg.DNS.Target = target
	}
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		cfg.Traefik.ConfigPath = configPath
	}
	if file := os.Getenv("DYNAMIC_CONFIG_FILE"); file != "" {
		cfg.Traefik.DynamicConfigFile = file
	}
	if syncInterval := os.Getenv("SYNC_INTERVAL"); syncInterval != "" {
		if interval, err := time.ParseDuration(syncInterval); err == nil {
			cfg.SyncInterval = interval
		} else {
			slog.Default().Warn("fail parse sync interval to duration from string", "interval", syncInterval, "error", err)
		}
	}
	if settle := os.Getenv("SYNC_SETTLE_DELAY"); settle != "" {
		if delay, err := time.ParseDuration(settle); err == nil {
			cfg.SettleDelay = delay
		} else {
			slog.Default().Warn("fail parse settle delay to duration from string", "delay", settle, "error", err)
		}
	}
	if dryRun := os.Getenv("SYNC_DRYRUN"); dryRun != "" {
		if v, err := strconv.ParseBool(dryRun); err == nil {
			cfg.Reconcile.DryRun = v
		} else {
			slog.Default().Warn("fail parse dryrun to bool from string", "dryrun", dryRun)
		}
	}
	if protectedRecords := os.Getenv("SYNC_PROTECTED_RECORDS"); protectedRecords != "" {
		cfg.Reconcile.ProtectedRecords = splitList(protectedRecords)
	}
	if dnsProvider := os.Getenv("SYNC_DNS_PROVIDER"); dnsProvider != "" {
		cfg.DNS.Provider = strings.ToLower(dnsProvider)
	}
	if token := os.Getenv("CLOUDFLARE_TOKEN"); token != "" {
		cfg.Cloudflare.Token = token
	}
	if zones := os.Getenv("CLOUDFLARE_ZONES"); zones != "" {
		cfg.Cloudflare.Zones = splitList(zones)
	}
	if server := os.Getenv("VERIFY_SERVER"); server != "" {
		cfg.Verify.Server = server
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if loglevel := os.Getenv("LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
}

// Validate reports every required setting that is missing for the selected provider.
func (cfg *Config) Validate() error {
	var missing []string
	if cfg.DNS.Target == "" {
		missing = append(missing, "TRAEFIK_IP")
	}

	switch cfg.DNS.Provider {
	case "adguard":
		if cfg.AdGuard.URL == "" {
			missing = append(missing, "ADGUARD_URL")
		}
		if cfg.AdGuard.User == "" {
			missing = append(missing, "ADGUARD_USER")
		}
		if cfg.AdGuard.Password == "" {
			missing = append(missing, "ADGUARD_PASSWORD")
		}
	case "cloudflare":
		if cfg.Cloudflare.Token == "" {
			missing = append(missing, "CLOUDFLARE_TOKEN")
		}
		if len(cfg.Cloudflare.Zones) == 0 {
			missing = append(missing, "CLOUDFLARE_ZONES")
		}
	default:
		return fmt.Errorf("unknown dns provider %q", cfg.DNS.Provider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
