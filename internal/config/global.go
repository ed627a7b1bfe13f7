// internal/config/global.go
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/open-edge-platform/devenv-composer/internal/config/validate"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

var log = logger.Logger()

// GlobalConfig holds tool-level settings shared by every command.
type GlobalConfig struct {
	ConfigDir string `yaml:"config_dir" json:"config_dir"` // Registry, hardware profiles and package lists (default: ./config)
	StateDir  string `yaml:"state_dir" json:"state_dir"`   // Saved plans and run records

	Distro      string   `yaml:"distro" json:"distro"`                               // auto, arch or ubuntu
	Profile     string   `yaml:"profile,omitempty" json:"profile,omitempty"`         // Hardware profile id
	Preferences []string `yaml:"preferences,omitempty" json:"preferences,omitempty"` // Opt-in tokens such as gaming
	DryRun      bool     `yaml:"dry_run" json:"dry_run"`                             // Print commands instead of running them
	AURHelper   string   `yaml:"aur_helper" json:"aur_helper"`                       // yay or paru
	Verify      bool     `yaml:"verify_signatures" json:"verify_signatures"`         // Require detached signatures on registry and profiles
	Keyring     string   `yaml:"keyring,omitempty" json:"keyring,omitempty"`         // Public keyring used when verify_signatures is on

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig controls basic logging behavior
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`                   // debug, info (default), warn or error
	File  string `yaml:"file,omitempty" json:"file,omitempty"` // Optional log file path for teeing output to disk
}

const (
	DistroAuto   = "auto"
	DistroArch   = "arch"
	DistroUbuntu = "ubuntu"
)

var (
	globalInstance *GlobalConfig
	globalMutex    sync.RWMutex
	once           sync.Once
)

// SetGlobal sets the global config instance (call once at startup in main.go)
func SetGlobal(config *GlobalConfig) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalInstance = config
}

// Global returns the global config instance
func Global() *GlobalConfig {
	once.Do(func() {
		globalMutex.Lock()
		defer globalMutex.Unlock()
		if globalInstance == nil {
			globalInstance = DefaultGlobalConfig()
		}
	})

	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalInstance
}

// DefaultGlobalConfig returns a GlobalConfig with sensible defaults
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		ConfigDir: "./config",
		StateDir:  defaultStateDir(),
		Distro:    DistroAuto,
		AURHelper: "yay",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "devenv-composer")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "devenv-composer")
	}
	return "./state"
}

// LoadGlobalConfig loads configuration from the specified path
func LoadGlobalConfig(configPath string) (*GlobalConfig, error) {
	config := DefaultGlobalConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		if errors.Is(err, os.ErrPermission) {
			log.Warnf("Config file %s is not accessible (%v); using defaults", configPath, err)
			return config, nil
		}
		return nil, fmt.Errorf("accessing config file %s: %w", configPath, err)
	}

	data, err := security.SafeReadFile(configPath, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	// Decoding drops unknown keys, so the schema sees the raw document.
	var rawJSON []byte
	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		if rawJSON, err = sigsyaml.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
		rawJSON = data
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	if trimmed := bytes.TrimSpace(rawJSON); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := validate.ValidateConfigJSON(trimmed); err != nil {
			log.Errorf("Schema validation failed: %v", err)
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		log.Errorf("Config validation failed: %v", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// SaveGlobalConfigWithComments saves the configuration with descriptive
// comments. Used by the config init command.
func (gc *GlobalConfig) SaveGlobalConfigWithComments(configPath string) error {
	if configPath == "" {
		return fmt.Errorf("config path is empty")
	}

	dir := filepath.Dir(configPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	jsonData, err := json.Marshal(gc)
	if err != nil {
		return fmt.Errorf("converting config to JSON for validation: %w", err)
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		return fmt.Errorf("config validation failed before save: %w", err)
	}

	if err := security.SafeWriteFile(configPath, []byte(gc.renderCommentedYAML()), 0600, security.RejectSymlinks); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (gc *GlobalConfig) renderCommentedYAML() string {
	var b strings.Builder

	b.WriteString("# devenv-composer - Global Configuration\n")
	b.WriteString("# Tool-level settings. Components and package lists live under config_dir.\n\n")

	fmt.Fprintf(&b, "config_dir: %q\n", gc.ConfigDir)
	b.WriteString("# Directory holding component-deps.json, hardware-profiles.json and\n")
	b.WriteString("# packages/<distro>/<component>.lst (default: ./config)\n\n")

	fmt.Fprintf(&b, "state_dir: %q\n", gc.StateDir)
	b.WriteString("# Saved plans and install run records\n\n")

	fmt.Fprintf(&b, "distro: %q\n", gc.Distro)
	b.WriteString("# auto (read /etc/os-release), arch or ubuntu\n\n")

	if gc.Profile != "" {
		fmt.Fprintf(&b, "profile: %q\n", gc.Profile)
	} else {
		b.WriteString("# profile: \"asus-laptop\"\n")
	}
	b.WriteString("# Hardware profile id from hardware-profiles.json merged into detected facts\n\n")

	if len(gc.Preferences) > 0 {
		b.WriteString("preferences:\n")
		for _, p := range gc.Preferences {
			fmt.Fprintf(&b, "  - %q\n", p)
		}
	} else {
		b.WriteString("# preferences:\n#   - \"gaming\"\n")
	}
	b.WriteString("# Opt-in tokens; entries marked |gaming are only installed when listed here\n\n")

	fmt.Fprintf(&b, "dry_run: %t\n", gc.DryRun)
	b.WriteString("# Print the commands of a plan instead of running them\n\n")

	fmt.Fprintf(&b, "aur_helper: %q\n", gc.AURHelper)
	b.WriteString("# AUR helper used on Arch: yay or paru\n\n")

	fmt.Fprintf(&b, "verify_signatures: %t\n", gc.Verify)
	if gc.Keyring != "" {
		fmt.Fprintf(&b, "keyring: %q\n", gc.Keyring)
	} else {
		b.WriteString("# keyring: \"/etc/devenv-composer/trusted.asc\"\n")
	}
	b.WriteString("# When on, registry and profile files need a detached .asc or .sig signature\n")
	b.WriteString("# made by a key in keyring\n\n")

	b.WriteString("# Logging configuration\n")
	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", gc.Logging.Level)
	b.WriteString("  # debug, info, warn or error\n")
	if gc.Logging.File != "" {
		fmt.Fprintf(&b, "  file: %q\n", gc.Logging.File)
		b.WriteString("  # Tee logs to this file in addition to stderr (overwritten on each run)\n")
	}

	return b.String()
}

// Validate checks the configuration for consistency and normalizes fields.
// It does not set defaults; that's done in DefaultGlobalConfig().
func (gc *GlobalConfig) Validate() error {
	if strings.TrimSpace(gc.ConfigDir) == "" {
		return fmt.Errorf("config_dir cannot be empty")
	}
	if strings.TrimSpace(gc.StateDir) == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}

	gc.Distro = strings.ToLower(strings.TrimSpace(gc.Distro))
	if gc.Distro == "" {
		gc.Distro = DistroAuto
	}
	validDistros := []string{DistroAuto, DistroArch, DistroUbuntu}
	if !slice.Contains(validDistros, gc.Distro) {
		return fmt.Errorf("invalid distro %q, must be one of: %s", gc.Distro, strings.Join(validDistros, ", "))
	}

	validHelpers := []string{"yay", "paru"}
	if gc.AURHelper != "" && !slice.Contains(validHelpers, gc.AURHelper) {
		return fmt.Errorf("invalid aur_helper %q, must be one of: %s", gc.AURHelper, strings.Join(validHelpers, ", "))
	}

	if gc.Verify && strings.TrimSpace(gc.Keyring) == "" {
		return fmt.Errorf("verify_signatures requires a keyring")
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !slice.Contains(validLevels, gc.Logging.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s",
			gc.Logging.Level, strings.Join(validLevels, ", "))
	}

	gc.Preferences = slice.NormalizeTokens(gc.Preferences)
	gc.Logging.File = strings.TrimSpace(gc.Logging.File)
	return nil
}

// GetConfigPaths returns the standard configuration file paths to check
func GetConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()

	paths := []string{
		"devenv-composer.yml",
		".devenv-composer.yml",
		"devenv-composer.yaml",
		".devenv-composer.yaml",
	}

	if homeDir != "" {
		paths = append(paths,
			filepath.Join(homeDir, ".devenv-composer", "config.yml"),
			filepath.Join(homeDir, ".devenv-composer", "config.yaml"),
			filepath.Join(homeDir, ".config", "devenv-composer", "config.yml"),
			filepath.Join(homeDir, ".config", "devenv-composer", "config.yaml"),
		)
	}

	paths = append(paths,
		"/etc/devenv-composer/config.yml",
		"/etc/devenv-composer/config.yaml",
	)

	return paths
}

// FindConfigFile searches for a configuration file in standard locations
func FindConfigFile() string {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func ConfigDir() (string, error) {
	configDir, err := filepath.Abs(Global().ConfigDir)
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return configDir, nil
}

func StateDir() (string, error) {
	stateDir, err := filepath.Abs(Global().StateDir)
	if err != nil {
		return "", fmt.Errorf("resolving state directory: %w", err)
	}
	return stateDir, nil
}
