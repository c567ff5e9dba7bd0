package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tablestore/internal/httpapi"
	"github.com/mesh-intelligence/tablestore/internal/paths"
	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// Config keys.
const (
	cfgKeyBackend         = "backend"
	cfgKeyDataDir         = "data_dir"
	cfgKeyListenAddr      = "listen_addr"
	cfgKeyLogLevel        = "log_level"
	cfgKeyShutdownTimeout = "shutdown_timeout"
	cfgKeyBusyTimeout     = "busy_timeout"
	cfgKeyJWTSecret       = "auth.jwt_secret"
	cfgKeyIssuer          = "auth.issuer"
	cfgKeyAudience        = "auth.audience"
)

// envPrefix prefixes every environment override, e.g. TABLESTORE_LISTEN_ADDR
// or TABLESTORE_AUTH_JWT_SECRET.
const envPrefix = "TABLESTORE"

// Defaults written to a new config.yaml and used for missing keys.
const (
	defaultListenAddr      = "127.0.0.1:8080"
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 10 * time.Second
)

// settings is the resolved configuration for one command run.
type settings struct {
	Backend         string        `mapstructure:"backend"`
	DataDir         string        `mapstructure:"data_dir"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	Auth            authSettings  `mapstructure:"auth"`
}

type authSettings struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// storeConfig returns the backend configuration.
func (s settings) storeConfig() types.Config {
	return types.Config{
		Backend:     s.Backend,
		DataDir:     s.DataDir,
		BusyTimeout: s.BusyTimeout,
	}
}

// serverOptions returns the HTTP server options.
func (s settings) serverOptions() httpapi.Options {
	return httpapi.Options{
		Auth: httpapi.AuthConfig{
			Secret:   s.Auth.JWTSecret,
			Issuer:   s.Auth.Issuer,
			Audience: s.Auth.Audience,
		},
		ShutdownTimeout: s.ShutdownTimeout,
	}
}

// newViper returns a viper instance with defaults and environment
// overrides, reading config.yaml from configDir when present.
func newViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyShutdownTimeout, defaultShutdownTimeout)
	v.SetDefault(cfgKeyBusyTimeout, types.DefaultBusyTimeout)
	v.SetDefault(cfgKeyJWTSecret, "")
	v.SetDefault(cfgKeyIssuer, "")
	v.SetDefault(cfgKeyAudience, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// A missing config.yaml is not an error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// decodeSettings unmarshals v into settings.
func decodeSettings(v *viper.Viper) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}

// configFile is the structure written to config.yaml by init.
type configFile struct {
	Backend         string         `yaml:"backend"`
	DataDir         string         `yaml:"data_dir,omitempty"`
	ListenAddr      string         `yaml:"listen_addr"`
	LogLevel        string         `yaml:"log_level"`
	ShutdownTimeout string         `yaml:"shutdown_timeout"`
	Auth            configFileAuth `yaml:"auth"`
}

type configFileAuth struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. It reports whether a file was written.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend:         types.BackendSQLite,
		DataDir:         dataDir,
		ListenAddr:      defaultListenAddr,
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout.String(),
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# tablestore configuration. Every key can be overridden with a\n# TABLESTORE_ environment variable, e.g. TABLESTORE_LISTEN_ADDR.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return false, err
	}
	return true, nil
}
