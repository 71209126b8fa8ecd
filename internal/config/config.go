package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kraklabs/mirror-sync/internal/reconcile"
)

// Config holds everything one sync-engine invocation needs, sourced from
// flags with an environment variable fallback for each.
type Config struct {
	TargetsFile    string
	RootDir        string
	CacheFile      string
	LockFile       string
	LogLevel       string
	MetricsAddr    string
	MetricsPath    string
	Parallelism    int
	InventoryTTL   time.Duration
	UpdateCheckTTL time.Duration
	TokenCheckTTL  time.Duration
	MissingRemote  reconcile.MissingRemotePolicy
	Force          bool
	Refresh        bool
	AllowedHosts   []string
}

func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("mirror-sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.TargetsFile, "targets-file", envOrDefault("TARGETS_FILE", "targets.yaml"), "path to the YAML targets list")
	fs.StringVar(&cfg.RootDir, "root-dir", envOrDefault("ROOT_DIR", "/mnt/git-mirrors"), "directory holding bare git mirrors")
	fs.StringVar(&cfg.CacheFile, "cache-file", envOrDefault("CACHE_FILE", "mirror-sync-cache.json"), "path to the persistent cache document")
	fs.StringVar(&cfg.LockFile, "lock-file", envOrDefault("LOCK_FILE", "mirror-sync.lock"), "path to the run lock file")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level: debug,info,warn,error")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envOrDefault("METRICS_ADDR", ":9090"), "listen address for the Prometheus metrics endpoint")
	fs.StringVar(&cfg.MetricsPath, "metrics-path", envOrDefault("METRICS_PATH", "/metrics"), "path for Prometheus metrics")
	fs.IntVar(&cfg.Parallelism, "parallelism", envOrDefaultInt("PARALLELISM", 4), "number of repos synced concurrently")
	fs.BoolVar(&cfg.Force, "force", envOrDefaultBool("FORCE", false), "bypass day-bucket scheduling and per-target backoff")
	fs.BoolVar(&cfg.Refresh, "refresh", envOrDefaultBool("REFRESH", false), "bypass the inventory TTL and force a fresh provider listing")

	missingRemoteStr := fs.String("missing-remote-policy", envOrDefault("MISSING_REMOTE_POLICY", "skip"), "policy for repos no longer listed by the provider: skip|archive|remove|prompt")
	inventoryTTLStr := fs.String("inventory-ttl", envOrDefault("INVENTORY_TTL", "15m"), "inventory TTL duration; parsed and validated only, the inventory loader always uses a fixed 15m TTL")
	updateCheckTTLStr := fs.String("update-check-ttl", envOrDefault("UPDATE_CHECK_TTL", "24h"), "update-check interval; parsed and validated only, no update check runs")
	tokenCheckTTLStr := fs.String("token-check-ttl", envOrDefault("TOKEN_CHECK_TTL", "1h"), "token-check interval; parsed and validated only, no credential re-validation runs")
	allowedHostsStr := fs.String("allowed-hosts", envOrDefault("ALLOWED_HOSTS", ""), "comma-separated list of provider hosts; parsed only, targets are not filtered by it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if cfg.InventoryTTL, err = time.ParseDuration(*inventoryTTLStr); err != nil {
		return nil, fmt.Errorf("invalid inventory-ttl: %w", err)
	}
	if cfg.UpdateCheckTTL, err = time.ParseDuration(*updateCheckTTLStr); err != nil {
		return nil, fmt.Errorf("invalid update-check-ttl: %w", err)
	}
	if cfg.TokenCheckTTL, err = time.ParseDuration(*tokenCheckTTLStr); err != nil {
		return nil, fmt.Errorf("invalid token-check-ttl: %w", err)
	}

	cfg.AllowedHosts = splitCommaList(*allowedHostsStr)

	if err := validateMissingRemotePolicy(*missingRemoteStr); err != nil {
		return nil, err
	}
	cfg.MissingRemote = reconcile.MissingRemotePolicy(*missingRemoteStr)

	if cfg.Parallelism < 1 {
		return nil, errors.New("parallelism must be at least 1")
	}
	if cfg.TargetsFile == "" {
		return nil, errors.New("targets-file is required")
	}

	return cfg, nil
}

func validateMissingRemotePolicy(v string) error {
	switch reconcile.MissingRemotePolicy(v) {
	case reconcile.PolicySkip, reconcile.PolicyArchive, reconcile.PolicyRemove, reconcile.PolicyPrompt:
		return nil
	default:
		return fmt.Errorf("unknown missing-remote-policy: %s", v)
	}
}

func splitCommaList(v string) []string {
	var out []string
	for _, h := range strings.Split(v, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envOrDefaultInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}
