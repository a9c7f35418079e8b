package traefik

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"regexp"

	"github.com/evanofslack/adguard-dns-sync/internal/source"
	"gopkg.in/yaml.v3"
)

var hostRule = regexp.MustCompile("Host\\(`([^`]+)`\\)")

// Source reads router hosts from a Traefik dynamic configuration file.
type Source struct {
	path string
}

var _ source.Source = (*Source)(nil)

func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Path() string {
	return s.path
}

// Hosts returns every host named in a Host(`...`) matcher of any router rule.
// Read and parse failures are logged and yield an empty set.
func (s *Source) Hosts(ctx context.Context) source.Hosts {
	hosts := source.NewHosts()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("Config file not found, waiting", "path", s.path)
		return hosts
	}
	if err != nil {
		slog.Default().Error("Failed to read config file", "path", s.path, "error", err)
		return hosts
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Default().Error("Failed to parse config file", "path", s.path, "error", err)
		return hosts
	}
	if cfg.HTTP == nil || cfg.HTTP.Routers == nil {
		slog.Default().Warn("Config file has no http routers", "path", s.path)
		return hosts
	}

	for name, r := range cfg.HTTP.Routers {
		router, ok := r.(map[string]any)
		if !ok {
			slog.Default().Debug("Skipping router that is not a mapping", "router", name)
			continue
		}
		rule, ok := router["rule"].(string)
		if !ok {
			slog.Default().Debug("Skipping router without string rule", "router", name)
			continue
		}
		for _, host := range ExtractHosts(rule) {
			hosts.Add(host)
		}
	}

	slog.Default().Debug("Extracted hosts from config", "path", s.path, "count", len(hosts))
	return hosts
}

// ExtractHosts returns the hosts of all Host(`...`) matchers in a router rule, in order of appearance.
func ExtractHosts(rule string) []string {
	var hosts []string
	for _, m := range hostRule.FindAllStringSubmatch(rule, -1) {
		hosts = append(hosts, m[1])
	}
	return hosts
}
