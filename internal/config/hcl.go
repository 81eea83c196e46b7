package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// HCLLoader is the HCL implementation of Loader.
type HCLLoader struct{}

// NewHCLLoader creates a new HCL configuration loader.
func NewHCLLoader() *HCLLoader {
	return &HCLLoader{}
}

// fileRoot is the top-level schema of a configuration file.
type fileRoot struct {
	BaseURL       *string        `hcl:"base_url,optional"`
	BaseBundle    *string        `hcl:"base_bundle,optional"`
	ManifestAsset *string        `hcl:"manifest_asset,optional"`
	CacheDir      *string        `hcl:"cache_dir,optional"`
	Parallelism   *int           `hcl:"parallelism,optional"`
	Strict        *bool          `hcl:"strict,optional"`
	Preload       []string       `hcl:"preload,optional"`
	HTTP          *httpBlock     `hcl:"http,block"`
	SocketIO      *socketIOBlock `hcl:"socketio,block"`
}

type httpBlock struct {
	Timeout   *string           `hcl:"timeout,optional"`
	UserAgent *string           `hcl:"user_agent,optional"`
	Headers   map[string]string `hcl:"headers,optional"`
	RateLimit *float64          `hcl:"rate_limit,optional"`
	Burst     *int              `hcl:"burst,optional"`
}

type socketIOBlock struct {
	URL                string  `hcl:"url"`
	Namespace          *string `hcl:"namespace,optional"`
	Event              *string `hcl:"event,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
	ConnectTimeout     *string `hcl:"connect_timeout,optional"`
}

// Load parses and evaluates the file at path.
func (l *HCLLoader) Load(ctx context.Context, path string, vars Vars) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL config loader started.", "path", path, "platform", vars.Platform)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(file.Body, path, vars)
}

// Parse evaluates configuration source held in memory.
func Parse(src []byte, filename string, vars Vars) (*Model, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}
	return decode(file.Body, filename, vars)
}

func decode(body hcl.Body, filename string, vars Vars) (*Model, error) {
	var root fileRoot
	diags := gohcl.DecodeBody(body, EvalContext(vars), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}

	m := &Model{
		BaseURL:       deref(root.BaseURL),
		BaseBundle:    deref(root.BaseBundle),
		ManifestAsset: deref(root.ManifestAsset),
		CacheDir:      deref(root.CacheDir),
		Parallelism:   deref(root.Parallelism),
		Strict:        deref(root.Strict),
		Preload:       root.Preload,
	}

	if h := root.HTTP; h != nil {
		timeout, err := parseDuration(h.Timeout, "http.timeout")
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", filename, err)
		}
		m.HTTP = HTTP{
			Timeout:   timeout,
			UserAgent: deref(h.UserAgent),
			Headers:   h.Headers,
			RateLimit: deref(h.RateLimit),
			Burst:     deref(h.Burst),
		}
	}

	if s := root.SocketIO; s != nil {
		timeout, err := parseDuration(s.ConnectTimeout, "socketio.connect_timeout")
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", filename, err)
		}
		m.SocketIO = &SocketIO{
			URL:                s.URL,
			Namespace:          deref(s.Namespace),
			Event:              deref(s.Event),
			InsecureSkipVerify: deref(s.InsecureSkipVerify),
			ConnectTimeout:     timeout,
		}
	}
	return m, nil
}

// EvalContext builds the evaluation context for configuration expressions.
func EvalContext(vars Vars) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(vars.Env))
	for _, kv := range vars.Env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"platform": cty.StringVal(vars.Platform),
			"env":      cty.ObjectVal(env),
		},
	}
}

func parseDuration(s *string, field string) (time.Duration, error) {
	if s == nil || *s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, *s, err)
	}
	return d, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
