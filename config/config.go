// Package config loads the sidecar's tuning from YAML.
//
// Every section has a default, so an empty file (or no file) is a working
// config. Class blocks start from the top-level tunables and doctrine and
// override only the keys they set; their rules are added to the top-level
// rules.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/perception"
	"github.com/nstehr/vimy/vimy-bot/roles"
	"github.com/nstehr/vimy/vimy-bot/rules"
)

// DefaultSocket is where the sidecar listens unless told otherwise.
const DefaultSocket = "/tmp/vimy-bot.sock"

// Environment overrides.
const (
	EnvSocket = "VIMY_SOCKET"
	EnvDebug  = "VIMY_DEBUG"
	EnvConfig = "VIMY_CONFIG"
)

type Config struct {
	Socket     string                `yaml:"socket"`
	Workers    int                   `yaml:"workers"`
	Match      Match                 `yaml:"match"`
	Policy     Policy                `yaml:"policy"`
	Perception perception.Thresholds `yaml:"perception"`
	Tunables   roles.Tunables        `yaml:"tunables"`
	Doctrine   rules.Doctrine        `yaml:"doctrine"`
	// Facts are game-side fact names to register so rules can watch them.
	Facts []string        `yaml:"facts"`
	Rules []rules.SetSpec `yaml:"rules"`

	RawClasses map[string]yaml.Node `yaml:"classes"`
	// Classes holds the resolved class blocks, keyed by class name.
	Classes map[string]Class `yaml:"-"`
}

// Match holds per-match switches.
type Match struct {
	Debug bool `yaml:"debug"`
	// DiagEvery is the per-agent diagnostics interval in ticks; 0 disables.
	DiagEvery int `yaml:"diag_every"`
	// AdaptEvery is the doctrine strategist interval in ticks; 0 disables.
	AdaptEvery int `yaml:"adapt_every"`
}

// Policy is the YAML form of decision.Policy.
type Policy struct {
	PreemptMargin   float64 `yaml:"preempt_margin"`
	CooldownSeconds float64 `yaml:"cooldown_seconds"`
	ReevaluateEvery int     `yaml:"reevaluate_every"`
	OverrideScore   float64 `yaml:"override_score"`
}

// Decision converts to the evaluator's policy.
func (p Policy) Decision() decision.Policy {
	return decision.Policy{
		PreemptMargin:   p.PreemptMargin,
		Cooldown:        time.Duration(p.CooldownSeconds * float64(time.Second)),
		ReevaluateEvery: p.ReevaluateEvery,
		OverrideScore:   p.OverrideScore,
	}
}

// Class is one class's resolved tuning.
type Class struct {
	Tunables roles.Tunables  `yaml:"tunables"`
	Doctrine rules.Doctrine  `yaml:"doctrine"`
	Rules    []rules.SetSpec `yaml:"rules"`
}

// Default returns the built-in config.
func Default() *Config {
	dp := decision.DefaultPolicy()
	return &Config{
		Socket:  DefaultSocket,
		Workers: 4,
		Match:   Match{DiagEvery: 200},
		Policy: Policy{
			PreemptMargin:   dp.PreemptMargin,
			CooldownSeconds: dp.Cooldown.Seconds(),
			ReevaluateEvery: dp.ReevaluateEvery,
			OverrideScore:   dp.OverrideScore,
		},
		Perception: perception.DefaultThresholds(),
		Tunables:   roles.DefaultTunables(),
		Doctrine:   rules.DefaultDoctrine(),
		Classes:    make(map[string]Class),
	}
}

// Path picks the config file: the flag value, else $VIMY_CONFIG.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfig)
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and resolves class blocks. It does
// not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := registerFacts(cfg.Facts); err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.RawClasses)) {
		node := cfg.RawClasses[name]
		cl := Class{Tunables: cfg.Tunables, Doctrine: cfg.Doctrine}
		if err := node.Decode(&cl); err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
		cfg.Classes[name] = cl
	}
	return cfg, nil
}

func registerFacts(names []string) error {
	for _, name := range names {
		if name == "" {
			return errors.New("empty fact name")
		}
		if _, err := condition.Register(name); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides the socket and debug switch from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvSocket); v != "" {
		c.Socket = v
	}
	if v := getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Match.Debug = debug
	}
	return nil
}

// Validate clamps numbers into range and rejects what cannot be clamped:
// unknown classes and an empty socket path.
func (c *Config) Validate() error {
	if c.Socket == "" {
		return errors.New("socket path is empty")
	}
	c.Workers = min(max(c.Workers, 1), 64)
	c.Match.DiagEvery = max(c.Match.DiagEvery, 0)
	c.Match.AdaptEvery = max(c.Match.AdaptEvery, 0)

	c.Policy.PreemptMargin = min(max(c.Policy.PreemptMargin, 0), 1)
	c.Policy.CooldownSeconds = min(max(c.Policy.CooldownSeconds, 0), 60)
	c.Policy.ReevaluateEvery = min(max(c.Policy.ReevaluateEvery, 0), 1000)
	c.Policy.OverrideScore = min(max(c.Policy.OverrideScore, 0.5), 2)

	c.Perception.Validate()
	c.Tunables.Validate()
	c.Doctrine.Validate()
	for name, cl := range c.Classes {
		if _, err := roles.Lookup(name); err != nil {
			return fmt.Errorf("classes: %w", err)
		}
		cl.Tunables.Validate()
		cl.Doctrine.Validate()
		c.Classes[name] = cl
	}
	return nil
}

// Class returns the tuning for a class: its own block if it has one, the
// top-level tuning otherwise. Top-level rules come first.
func (c *Config) Class(name string) Class {
	cl, ok := c.Classes[name]
	if !ok {
		return Class{Tunables: c.Tunables, Doctrine: c.Doctrine, Rules: slices.Clone(c.Rules)}
	}
	cl.Rules = append(slices.Clone(c.Rules), cl.Rules...)
	return cl
}

// Check compiles every class's rule sets against that class's actions.
func (c *Config) Check() error {
	var errs []error
	for _, name := range roles.Classes() {
		role, err := roles.Lookup(name)
		if err != nil {
			return err
		}
		cl := c.Class(name)
		if err := rules.Check(cl.Rules, role.Actions(cl.Tunables)); err != nil {
			errs = append(errs, fmt.Errorf("class %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
