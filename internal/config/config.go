package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/logger"
)

// Config holds the server settings and the scenario definitions.
type Config struct {
	// ServerAddress is the gRPC address of the simulator server.
	ServerAddress string `yaml:"server_addr"`
	// MetricsAddress is where the Prometheus handler listens; empty disables it.
	MetricsAddress string `yaml:"metrics_addr"`
	// Timeout bounds every RPC issued by the control CLI.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum zap level.
	LogLevel string `yaml:"log_level"`

	Geofence   GeofenceConfig   `yaml:"geofence"`
	Emergency  EmergencyConfig  `yaml:"emergency"`
	Credential CredentialConfig `yaml:"credential"`
}

// Step is one declared cascade step.
type Step struct {
	Delay    time.Duration `yaml:"delay"`
	Category string        `yaml:"category"`
	Message  string        `yaml:"message"`
}

// Zone is a display-only map circle.
type Zone struct {
	Name         string  `yaml:"name"`
	Lat          float64 `yaml:"lat"`
	Lng          float64 `yaml:"lng"`
	RadiusMeters float64 `yaml:"radius_m"`
}

// Point is a position on the normalized emergency map.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// GeofenceConfig configures the danger-zone breach scenario.
type GeofenceConfig struct {
	Tourist       string `yaml:"tourist"`
	Location      string `yaml:"location"`
	SafeZones     []Zone `yaml:"safe_zones"`
	DangerZone    Zone   `yaml:"danger_zone"`
	OnEnterDanger []Step `yaml:"on_enter_danger"`
	OnApprove     []Step `yaml:"on_approve"`
}

// MotionConfig configures the simulated tourist walk.
type MotionConfig struct {
	Seed   uint64        `yaml:"seed"`
	Period time.Duration `yaml:"period"`
	Jitter float64       `yaml:"jitter"`
	Min    float64       `yaml:"min"`
	Max    float64       `yaml:"max"`
	Start  Point         `yaml:"start"`
}

// EmergencyConfig configures the inactivity and signal-loss scenario.
type EmergencyConfig struct {
	TouristID    string       `yaml:"tourist_id"`
	Region       string       `yaml:"region"`
	LastSeen     string       `yaml:"last_seen"`
	Motion       MotionConfig `yaml:"motion"`
	OnInactive   []Step       `yaml:"on_inactive"`
	OnSignalLost []Step       `yaml:"on_signal_lost"`
}

// CredentialConfig configures the tourist ID issued by the credential scenario.
type CredentialConfig struct {
	Holder           string    `yaml:"holder"`
	ValidFrom        time.Time `yaml:"valid_from"`
	ValidTo          time.Time `yaml:"valid_to"`
	KYCType          string    `yaml:"kyc_type"`
	KYCNumber        string    `yaml:"kyc_number"`
	EmergencyContact string    `yaml:"emergency_contact"`
	MedicalInfo      string    `yaml:"medical_info"`
	BlockID          uint64    `yaml:"block_id"`
	BlockHash        string    `yaml:"block_hash"`
	OnIssue          []Step    `yaml:"on_issue"`
	OnExpire         []Step    `yaml:"on_expire"`
}

const (
	// DefaultConfigFilename is the conventional settings filename.
	DefaultConfigFilename = "tourist-safety.yaml"

	// DefaultTimeout is the default duration for RPCs.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600
)

//go:embed defaults.yaml
var defaults []byte

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerAddressRequired is returned when the server address is missing.
	errServerAddressRequired = errors.New("server address must be provided")
	// errInvalidStep is returned for malformed cascade steps.
	errInvalidStep = errors.New("invalid cascade step")
	// errInvalidMotion is returned for an unusable motion configuration.
	errInvalidMotion = errors.New("invalid motion configuration")
	// errInvalidValidity is returned when a credential validity window is inverted.
	errInvalidValidity = errors.New("credential valid_to precedes valid_from")
	// errUnknownLogLevel is returned for an unparsable log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns the embedded demo configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaults, &cfg); err != nil {
		panic(fmt.Sprintf("embedded defaults are broken: %v", err))
	}

	if err := Validate(&cfg); err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}

	return &cfg
}

// Load reads path on top of the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks cfg and fills defaults for optional fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServerAddress == "" {
		return errServerAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}

	if cfg.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	cascades := map[string][]Step{
		"geofence.on_enter_danger": cfg.Geofence.OnEnterDanger,
		"geofence.on_approve":      cfg.Geofence.OnApprove,
		"emergency.on_inactive":    cfg.Emergency.OnInactive,
		"emergency.on_signal_lost": cfg.Emergency.OnSignalLost,
		"credential.on_issue":      cfg.Credential.OnIssue,
		"credential.on_expire":     cfg.Credential.OnExpire,
	}

	for name, steps := range cascades {
		if err := validateSteps(name, steps); err != nil {
			return err
		}
	}

	// The issue cascade doubles as the processing delay and must not be empty.
	if len(cfg.Credential.OnIssue) == 0 {
		return fmt.Errorf("%w: credential.on_issue needs at least one step", errInvalidStep)
	}

	if err := validateMotion(&cfg.Emergency.Motion); err != nil {
		return err
	}

	if cfg.Credential.ValidTo.Before(cfg.Credential.ValidFrom) {
		return errInvalidValidity
	}

	return nil
}

func validateSteps(name string, steps []Step) error {
	for i, step := range steps {
		if step.Delay < 0 {
			return fmt.Errorf("%w: %s[%d]: negative delay", errInvalidStep, name, i)
		}

		if step.Message == "" {
			return fmt.Errorf("%w: %s[%d]: empty message", errInvalidStep, name, i)
		}

		if _, err := safety.ParseCategory(step.Category); err != nil {
			return fmt.Errorf("%w: %s[%d]: %w", errInvalidStep, name, i, err)
		}
	}

	return nil
}

func validateMotion(m *MotionConfig) error {
	if m.Period <= 0 {
		m.Period = 2 * time.Second
	}

	switch {
	case m.Min >= m.Max:
		return fmt.Errorf("%w: min must be below max", errInvalidMotion)
	case m.Jitter < 0:
		return fmt.Errorf("%w: jitter must not be negative", errInvalidMotion)
	case m.Start.X < m.Min || m.Start.X > m.Max || m.Start.Y < m.Min || m.Start.Y > m.Max:
		return fmt.Errorf("%w: start is outside the bounds", errInvalidMotion)
	}

	return nil
}
