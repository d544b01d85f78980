package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	"uit-client/internal"
	"uit-client/internal/pbs"
	"uit-client/internal/uit"

	configutil "github.com/NYCU-SDC/summer/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config.yaml"

var (
	ErrTokenRequired  = errors.New("token is required unless local is set")
	ErrTargetRequired = errors.New("system or login_node is required unless local is set")
	ErrTargetConflict = errors.New("system and login_node are mutually exclusive")
)

type Config struct {
	Debug            bool          `yaml:"debug"              envconfig:"DEBUG"`
	APIURL           string        `yaml:"api_url"            envconfig:"UIT_API_URL"         validate:"omitempty,url"`
	Token            string        `yaml:"token"              envconfig:"UIT_TOKEN"`
	System           string        `yaml:"system"             envconfig:"UIT_SYSTEM"`
	LoginNode        string        `yaml:"login_node"         envconfig:"UIT_LOGIN_NODE"      validate:"omitempty,regexp=^[A-Za-z0-9][A-Za-z0-9.-]*$"`
	Local            bool          `yaml:"local"              envconfig:"UIT_LOCAL"`
	Retries          int           `yaml:"retries"            envconfig:"UIT_RETRIES"         validate:"gte=0"`
	RetryDelay       time.Duration `yaml:"retry_delay"        envconfig:"UIT_RETRY_DELAY"     validate:"gte=0"`
	RequestTimeout   time.Duration `yaml:"request_timeout"    envconfig:"UIT_REQUEST_TIMEOUT" validate:"gte=0"`
	LocalTempDir     string        `yaml:"local_temp_dir"     envconfig:"UIT_LOCAL_TEMP_DIR"`
	OtelCollectorUrl string        `yaml:"otel_collector_url" envconfig:"OTEL_COLLECTOR_URL"`
}

type LogBuffer struct {
	buffer []logEntry
}

type logEntry struct {
	msg  string
	err  error
	meta map[string]string
}

func NewConfigLogger() *LogBuffer {
	return &LogBuffer{}
}

func (cl *LogBuffer) Warn(msg string, err error, meta map[string]string) {
	cl.buffer = append(cl.buffer, logEntry{msg: msg, err: err, meta: meta})
}

func (cl *LogBuffer) Len() int {
	return len(cl.buffer)
}

func (cl *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, e := range cl.buffer {
		var fields []zap.Field
		if e.err != nil {
			fields = append(fields, zap.Error(e.err))
		}
		for k, v := range e.meta {
			fields = append(fields, zap.String(k, v))
		}
		logger.Warn(e.msg, fields...)
	}
	cl.buffer = nil
}

func Default() *Config {
	return &Config{
		APIURL:         uit.DefaultAPIURL,
		Retries:        uit.DefaultRetries,
		RetryDelay:     uit.DefaultRetryDelay,
		RequestTimeout: uit.DefaultRequestTimeout,
	}
}

func (c *Config) Validate() error {
	if err := internal.ValidateStruct(internal.NewValidator(), c); err != nil {
		return err
	}

	if c.Local {
		return nil
	}

	if c.Token == "" {
		return ErrTokenRequired
	}
	if c.System == "" && c.LoginNode == "" {
		return ErrTargetRequired
	}
	if c.System != "" && c.LoginNode != "" {
		return ErrTargetConflict
	}
	if c.System != "" {
		return pbs.ValidateSystem(strings.ToLower(c.System))
	}

	return nil
}

// RetryPolicy is the gateway retry policy described by the config.
func (c *Config) RetryPolicy() uit.RetryPolicy {
	return uit.RetryPolicy{Retries: c.Retries, Delay: c.RetryDelay}
}

// Load layers defaults, the yaml file at path, .env and the environment, and finally the flags the
// user set. Problems are buffered until a logger exists.
func Load(path string, flags *pflag.FlagSet) (Config, *LogBuffer) {
	logger := NewConfigLogger()

	config := Default()

	var err error

	config, err = FromFile(path, config, logger)
	if err != nil {
		logger.Warn("Failed to load config from file", err, map[string]string{"path": path})
	}

	config, err = FromEnv(config, logger)
	if err != nil {
		logger.Warn("Failed to load config from env", err, map[string]string{"path": ".env"})
	}

	if flags != nil {
		config, err = FromFlags(config, flags)
		if err != nil {
			logger.Warn("Failed to load config from flags", err, map[string]string{"path": "flags"})
		}
	}

	return *config, logger
}

func FromFile(filePath string, config *Config, logger *LogBuffer) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			logger.Warn("Failed to close config file", err, map[string]string{"path": filePath})
		}
	}(file)

	fileConfig := Config{}
	if err := yaml.NewDecoder(file).Decode(&fileConfig); err != nil {
		return config, err
	}

	return configutil.Merge[Config](config, &fileConfig)
}

func FromEnv(config *Config, logger *LogBuffer) (*Config, error) {
	if err := godotenv.Overload(); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("No .env file found", err, map[string]string{"path": ".env"})
		} else {
			return config, err
		}
	}

	envConfig := &Config{
		Debug:            os.Getenv("DEBUG") == "true",
		APIURL:           os.Getenv("UIT_API_URL"),
		Token:            os.Getenv("UIT_TOKEN"),
		System:           os.Getenv("UIT_SYSTEM"),
		LoginNode:        os.Getenv("UIT_LOGIN_NODE"),
		Local:            os.Getenv("UIT_LOCAL") == "true",
		LocalTempDir:     os.Getenv("UIT_LOCAL_TEMP_DIR"),
		OtelCollectorUrl: os.Getenv("OTEL_COLLECTOR_URL"),
	}

	if value := os.Getenv("UIT_RETRIES"); value != "" {
		retries, err := strconv.Atoi(value)
		if err != nil {
			logger.Warn("Invalid UIT_RETRIES", err, map[string]string{"value": value})
		} else {
			envConfig.Retries = retries
		}
	}
	for name, target := range map[string]*time.Duration{
		"UIT_RETRY_DELAY":     &envConfig.RetryDelay,
		"UIT_REQUEST_TIMEOUT": &envConfig.RequestTimeout,
	} {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			logger.Warn("Invalid duration in environment", err, map[string]string{"name": name, "value": value})
			continue
		}
		*target = d
	}

	return configutil.Merge[Config](config, envConfig)
}

// RegisterFlags adds the config keys to flags. Flag names match the yaml keys.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Bool("debug", false, "debug mode")
	flags.String("api_url", "", "UIT+ API base url")
	flags.String("token", "", "UIT+ access token")
	flags.String("system", "", "HPC system to connect to")
	flags.String("login_node", "", "login node to connect to, instead of a random node of --system")
	flags.Bool("local", false, "run commands on this machine instead of through the gateway")
	flags.Int("retries", 0, "retries on a transient gateway routing fault")
	flags.Duration("retry_delay", 0, "pause before each retry")
	flags.Duration("request_timeout", 0, "timeout of one gateway request")
	flags.String("local_temp_dir", "", "local directory for rendered scripts before upload")
	flags.String("otel_collector_url", "", "OpenTelemetry collector URL")
}

// FromFlags applies the flags the user changed. Changed flags win even when set to a zero value.
func FromFlags(config *Config, flags *pflag.FlagSet) (*Config, error) {
	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "debug":
			config.Debug, err = flags.GetBool(f.Name)
		case "api_url":
			config.APIURL, err = flags.GetString(f.Name)
		case "token":
			config.Token, err = flags.GetString(f.Name)
		case "system":
			config.System, err = flags.GetString(f.Name)
		case "login_node":
			config.LoginNode, err = flags.GetString(f.Name)
		case "local":
			config.Local, err = flags.GetBool(f.Name)
		case "retries":
			config.Retries, err = flags.GetInt(f.Name)
		case "retry_delay":
			config.RetryDelay, err = flags.GetDuration(f.Name)
		case "request_timeout":
			config.RequestTimeout, err = flags.GetDuration(f.Name)
		case "local_temp_dir":
			config.LocalTempDir, err = flags.GetString(f.Name)
		case "otel_collector_url":
			config.OtelCollectorUrl, err = flags.GetString(f.Name)
		}
		if err != nil {
			errs = append(errs, err)
		}
	})

	return config, errors.Join(errs...)
}
