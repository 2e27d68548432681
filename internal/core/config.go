package core

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the client.
type Config struct {
	// Name to log in with. Must be unique among the users connected to the server.
	Username string `mapstructure:"username"`

	Server struct {
		// Hostname or IP address of the game server.
		Host string `mapstructure:"host"`
		// Port on which the game server accepts connections.
		Port int `mapstructure:"port"`
		// Transport used to reach the server. Options: tcp, websocket
		Transport string `mapstructure:"transport"`
		// HTTP path of the WebSocket endpoint (websocket transport only).
		WebsocketPath string `mapstructure:"websocket_path"`
		// How long to wait for the connection and the login reply. Zero waits forever.
		LoginTimeout time.Duration `mapstructure:"login_timeout"`
	} `mapstructure:"server"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stderr.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Invites struct {
		// How long an invitation we sent is remembered while waiting for an answer.
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"invites"`

	History struct {
		// Database engine for the game history. Options: sqlite, postgres. Blank disables it.
		Engine string `mapstructure:"engine"`
		// Database file (sqlite only).
		Filename string `mapstructure:"filename"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Name     string `mapstructure:"name"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"history"`

	Debugging struct {
		// Start the pprof and metrics HTTP server.
		Enabled bool `mapstructure:"enabled"`
		// Port on localhost for the debug HTTP server.
		Port int `mapstructure:"port"`
		// Dump every envelope sent or received to the log at debug level.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "NOUGHTS"

// Transports understood by server.transport.
const (
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 1500)
	v.SetDefault("server.transport", TransportTCP)
	v.SetDefault("server.websocket_path", "/ws")
	v.SetDefault("server.login_timeout", 0)
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("invites.ttl", 2*time.Minute)
	v.SetDefault("history.filename", "history.db")
	v.SetDefault("history.port", 5432)
	v.SetDefault("history.sslmode", "disable")
	v.SetDefault("debugging.port", 4000)
}

// LoadConfig reads config.yaml from configPath if one exists, then applies
// environment variables (NOUGHTS_<SECTION>_<KEY>) and any flags set in flags.
// Flags are bound by their long name, so "server.host" overrides the same key.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, server.host can be set using: <envVarPrefix>_SERVER_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, config.validate()
}

func (c *Config) validate() error {
	switch c.Server.Transport {
	case TransportTCP, TransportWebsocket:
	default:
		return fmt.Errorf("unsupported transport %q", c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// ServerAddress returns host:port of the game server.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection string for the history database.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.History.Host,
		c.History.Port,
		c.History.Name,
		c.History.Username,
		c.History.Password,
		c.History.SSLMode,
	)
}
