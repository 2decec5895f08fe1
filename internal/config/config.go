package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. ARMOREE_DB_HOST.
const EnvPrefix = "ARMOREE"

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	DB struct {
		URL            string        `mapstructure:"url"`
		Host           string        `mapstructure:"host"`
		Port           int           `mapstructure:"port"`
		User           string        `mapstructure:"user"`
		Password       string        `mapstructure:"password"`
		Name           string        `mapstructure:"name"`
		SSLMode        string        `mapstructure:"sslmode"`
		ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	} `mapstructure:"db"`
	Auth struct {
		Issuer          string `mapstructure:"issuer"`
		ClientID        string `mapstructure:"client_id"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Telemetry struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"telemetry"`
	Tenant struct {
		TemplatePath   string        `mapstructure:"template_path"`
		ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
		CacheTTL       time.Duration `mapstructure:"cache_ttl"`
		CacheSize      int           `mapstructure:"cache_size"`
	} `mapstructure:"tenant"`

	// ConfigFile is the config file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")
	v.SetDefault("dev_mode_bypass", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("db.url", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "armoree")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.connect_timeout", 30*time.Second)

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.swagger_client_id", "")

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("telemetry.otlp_endpoint", "")

	v.SetDefault("tenant.template_path", "")
	v.SetDefault("tenant.resolve_timeout", 5*time.Second)
	v.SetDefault("tenant.cache_ttl", 5*time.Minute)
	v.SetDefault("tenant.cache_size", 10000)
}

// LoadConfig loads the configuration from an optional .env file, an optional
// config.yaml and the environment, in increasing order of precedence.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.ConfigFile = v.ConfigFileUsed()

	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values LoadConfig cannot default its way out of.
func (c *Config) Validate() error {
	if c.DB.ConnectTimeout <= 0 {
		return errors.New("db.connect_timeout must be positive")
	}
	if c.Tenant.ResolveTimeout <= 0 {
		return errors.New("tenant.resolve_timeout must be positive")
	}
	if c.Tenant.CacheSize < 0 {
		return errors.New("tenant.cache_size must not be negative")
	}
	return nil
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.ToUpper(c.Environment) == "DEV"
}

// DatabaseURL returns db.url when set, otherwise a URL assembled from the
// individual db.* keys.
func (c *Config) DatabaseURL() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}
	if c.DB.Password != "" {
		u.User = url.UserPassword(c.DB.User, c.DB.Password)
	} else {
		u.User = url.User(c.DB.User)
	}
	return u.String()
}

// normalizeIssuer strips surrounding whitespace and any trailing slash so the
// issuer can be pasted straight from the identity provider console.
func normalizeIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
