// Package config loads YAML scan profiles. A profile captures a
// repeatable scan setup so CLI invocations stay short; flags override
// profile values. Credential values may reference environment
// variables with ${VAR} so secrets stay out of profile files.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Auth kinds accepted in a profile and on the CLI.
const (
	AuthNone   = ""
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthAPIKey = "apikey"
)

// Output formats for scan reports.
const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

// AuthProfile describes how the scanner authenticates against the
// target. Credentials support ${VAR} environment expansion.
type AuthProfile struct {
	Kind        string            `yaml:"kind"`
	Credentials map[string]string `yaml:"credentials"`
}

// OutputProfile controls where and how results are written.
type OutputProfile struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Profile is one scan configuration file.
type Profile struct {
	Target      string        `yaml:"target"`
	Auth        AuthProfile   `yaml:"auth"`
	Probes      []string      `yaml:"probes"`
	Endpoints   []string      `yaml:"endpoints"`
	Concurrency int           `yaml:"concurrency"`
	RateLimit   float64       `yaml:"rate_limit"`
	Timeout     Duration      `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	Output      OutputProfile `yaml:"output"`
}

// Duration wraps time.Duration so profiles can say "10s" or "2m".
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a profile with scanner defaults applied.
func Default() *Profile {
	p := &Profile{}
	p.applyDefaults()
	return p
}

func (p *Profile) applyDefaults() {
	if p.Concurrency <= 0 {
		p.Concurrency = defaults.ConcurrencyLow
	}
	if p.RateLimit <= 0 {
		p.RateLimit = defaults.ConcurrencyMedium
	}
	if p.Timeout <= 0 {
		p.Timeout = Duration(duration.HTTPScanning)
	}
	if len(p.Probes) == 0 {
		p.Probes = []string{"all"}
	}
	if p.Output.Format == "" {
		p.Output.Format = formatFromPath(p.Output.Path)
	}
}

// Load reads and validates a profile file. A missing file yields the
// default profile so a profile path is always optional.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes profile bytes, expands credential environment
// references, applies defaults, and validates.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: failed to parse profile: %w", err)
	}

	for key, value := range p.Auth.Credentials {
		p.Auth.Credentials[key] = expandEnvString(value)
	}

	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks enum fields. Target presence is checked at the CLI
// layer because a flag may supply it.
func (p *Profile) Validate() error {
	switch p.Auth.Kind {
	case AuthNone, AuthBearer, AuthBasic, AuthAPIKey:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAuthKind, p.Auth.Kind)
	}
	switch p.Output.Format {
	case "", FormatJSON, FormatPDF:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, p.Output.Format)
	}
	return nil
}

func formatFromPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return FormatPDF
	}
	return FormatJSON
}

// expandEnvString replaces ${VAR} with the host environment value.
func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
