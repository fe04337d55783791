package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Owner struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"owner"`
	NATS struct {
		URL     string `mapstructure:"url"`
		Enabled bool   `mapstructure:"enabled"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Gateway struct {
		APIURL     string `mapstructure:"apiUrl"`
		IDInstance string `mapstructure:"idInstance"`
		APIToken   string `mapstructure:"apiToken"`
	} `mapstructure:"gateway"`
	Gemini struct {
		APIKey string `mapstructure:"apiKey"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"gemini"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Bot      BotConfig      `mapstructure:"bot"`
	Metrics  struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

// DispatchConfig holds the campaign dispatcher pacing settings
type DispatchConfig struct {
	MinSendDelay time.Duration `mapstructure:"minSendDelay"` // lower bound of the random inter-send delay
	MaxSendDelay time.Duration `mapstructure:"maxSendDelay"` // upper bound of the random inter-send delay
	LogLines     int           `mapstructure:"logLines"`     // rolling dispatch log size
}

// BotConfig holds the autonomous conversation poller settings
type BotConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`     // cycle cadence
	HistoryLimit int           `mapstructure:"historyLimit"` // messages fetched per chat
	PoolSize     int           `mapstructure:"poolSize"`     // contacts handled concurrently per cycle
	SeenCacheCap int           `mapstructure:"seenCacheCap"` // processed message id cache capacity
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)
	v.SetDefault("nats.enabled", true)
	v.SetDefault("database.postgresAutoMigrate", true)
	v.SetDefault("gateway.apiUrl", "https://api.green-api.com")
	v.SetDefault("gemini.model", "gemini-2.5-flash")

	// Dispatcher defaults
	v.SetDefault("dispatch.minSendDelay", 15*time.Second)
	v.SetDefault("dispatch.maxSendDelay", 45*time.Second)
	v.SetDefault("dispatch.logLines", 5)

	// Bot defaults
	v.SetDefault("bot.enabled", true)
	v.SetDefault("bot.interval", 15*time.Second)
	v.SetDefault("bot.historyLimit", 20)
	v.SetDefault("bot.poolSize", 1)
	v.SetDefault("bot.seenCacheCap", 10000)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/zapmarketing")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if owner := os.Getenv("OWNER_ID"); owner != "" {
		v.Set("owner.id", owner)
	}
	if id := os.Getenv("GREENAPI_ID_INSTANCE"); id != "" {
		v.Set("gateway.idInstance", id)
	}
	if token := os.Getenv("GREENAPI_API_TOKEN"); token != "" {
		v.Set("gateway.apiToken", token)
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		v.Set("gemini.apiKey", key)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Owner.ID == "" {
		return fmt.Errorf("owner.id is required (set OWNER_ID)")
	}
	if c.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgresDSN is required (set POSTGRES_DSN)")
	}
	if c.Dispatch.MinSendDelay <= 0 {
		return fmt.Errorf("dispatch.minSendDelay must be positive, got %s", c.Dispatch.MinSendDelay)
	}
	if c.Dispatch.MaxSendDelay < c.Dispatch.MinSendDelay {
		return fmt.Errorf("dispatch.maxSendDelay %s is below dispatch.minSendDelay %s",
			c.Dispatch.MaxSendDelay, c.Dispatch.MinSendDelay)
	}
	if c.Bot.Interval <= 0 {
		return fmt.Errorf("bot.interval must be positive, got %s", c.Bot.Interval)
	}
	if c.Bot.PoolSize <= 0 {
		return fmt.Errorf("bot.poolSize must be positive, got %d", c.Bot.PoolSize)
	}
	return nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
