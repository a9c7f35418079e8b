package traefik

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestHosts(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name: "single host per router",
			content: `
http:
  routers:
    grafana:
      rule: "Host(` + "`grafana.example.com`" + `)"
      service: grafana
    sonarr:
      rule: "Host(` + "`sonarr.example.com`" + `)"
      service: sonarr
`,
			expected: []string{"grafana.example.com", "sonarr.example.com"},
		},
		{
			name: "multiple hosts in one rule",
			content: `
http:
  routers:
    web:
      rule: "Host(` + "`a.example.com`" + `) || Host(` + "`b.example.com`" + `) && PathPrefix(` + "`/api`" + `)"
`,
			expected: []string{"a.example.com", "b.example.com"},
		},
		{
			name: "duplicate hosts across routers",
			content: `
http:
  routers:
    web:
      rule: "Host(` + "`app.example.com`" + `)"
    web-secure:
      rule: "Host(` + "`app.example.com`" + `) && PathPrefix(` + "`/admin`" + `)"
`,
			expected: []string{"app.example.com"},
		},
		{
			name: "rules without host matchers",
			content: `
http:
  routers:
    api:
      rule: "PathPrefix(` + "`/api`" + `)"
    regexp:
      rule: "HostRegexp(` + "`{sub:[a-z]+}.example.com`" + `)"
    norule:
      service: noop
    scalar: "not-a-router"
`,
			expected: []string{},
		},
		{
			name: "non-string rule skips only that router",
			content: `
http:
  routers:
    broken:
      rule: [1, 2]
    web:
      rule: "Host(` + "`web.example.com`" + `)"
`,
			expected: []string{"web.example.com"},
		},
		{
			name: "unrelated sections ignored",
			content: `
tcp:
  routers:
    db:
      rule: "HostSNI(` + "`db.example.com`" + `)"
http:
  middlewares:
    auth:
      basicAuth:
        users: ["admin"]
  routers:
    dash:
      rule: "Host(` + "`dash.example.com`" + `)"
      middlewares: [auth]
`,
			expected: []string{"dash.example.com"},
		},
		{
			name:     "json document",
			content:  `{"http": {"routers": {"web": {"rule": "Host(` + "`json.example.com`" + `)"}}}}`,
			expected: []string{"json.example.com"},
		},
		{
			name: "missing routers",
			content: `
http:
  services:
    web:
      loadBalancer: {}
`,
			expected: []string{},
		},
		{
			name:     "missing http",
			content:  "entryPoints: {}\n",
			expected: []string{},
		},
		{
			name:     "empty document",
			content:  "",
			expected: []string{},
		},
		{
			name:     "invalid yaml",
			content:  "http: [routers: {",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dynamic.yml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			hosts := New(path).Hosts(context.Background())
			if got := hosts.Sorted(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected hosts %v but got %v", tt.expected, got)
			}
		})
	}
}

func TestHostsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yml")
	s := New(path)
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
	hosts := s.Hosts(context.Background())
	if hosts == nil {
		t.Fatal("expected empty set, got nil")
	}
	if len(hosts) != 0 {
		t.Errorf("expected no hosts, got %v", hosts.Sorted())
	}
}

func TestExtractHosts(t *testing.T) {
	tests := []struct {
		rule string
		want []string
	}{
		{"Host(`a.example.com`)", []string{"a.example.com"}},
		{"Host(`a.example.com`) || Host(`b.example.com`)", []string{"a.example.com", "b.example.com"}},
		{"(Host(`a.example.com`) && Path(`/x`)) || Host(`c.example.com`)", []string{"a.example.com", "c.example.com"}},
		{"Host(\"quoted.example.com\")", nil},
		{"Host(``)", nil},
		{"PathPrefix(`/`)", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			if got := ExtractHosts(tt.rule); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractHosts(%q) = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}
