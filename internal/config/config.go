package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Profinet ProfinetConfig `mapstructure:"profinet"`
	Device   DeviceConfig   `mapstructure:"device"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ThreadConfig struct {
	Priority  int `mapstructure:"priority"`
	StackSize int `mapstructure:"stack_size"`
}

type ProfinetConfig struct {
	CycleTime           time.Duration `mapstructure:"cycle_time"`
	MainInterface       string        `mapstructure:"main_interface"`
	Interfaces          []string      `mapstructure:"interfaces"`
	StorageDirectory    string        `mapstructure:"storage_directory"`
	SNMPThread          ThreadConfig  `mapstructure:"snmp_thread"`
	EthThread           ThreadConfig  `mapstructure:"eth_thread"`
	BGWorkerThread      ThreadConfig  `mapstructure:"bg_worker_thread"`
	CycleTimerPriority  int           `mapstructure:"cycle_timer_priority"`
	CycleWorkerPriority int           `mapstructure:"cycle_worker_priority"`
}

// DeviceConfig points to the declarative device description.
type DeviceConfig struct {
	Description string `mapstructure:"description"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Auth Configuration
type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	APIKeyHash     string        `mapstructure:"api_key_hash"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Database       string        `mapstructure:"database"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	MaxConnections int           `mapstructure:"max_connections"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Environment Variables mit Prefix OPD_
	v.SetEnvPrefix("OPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := profinet.DefaultProperties()

	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("profinet.cycle_time", defaults.CycleTime.String())
	v.SetDefault("profinet.main_interface", defaults.MainNetworkInterface)
	v.SetDefault("profinet.snmp_thread.priority", defaults.SNMPThread.Priority)
	v.SetDefault("profinet.snmp_thread.stack_size", defaults.SNMPThread.StackSize)
	v.SetDefault("profinet.eth_thread.priority", defaults.EthThread.Priority)
	v.SetDefault("profinet.eth_thread.stack_size", defaults.EthThread.StackSize)
	v.SetDefault("profinet.bg_worker_thread.priority", defaults.BGWorkerThread.Priority)
	v.SetDefault("profinet.bg_worker_thread.stack_size", defaults.BGWorkerThread.StackSize)
	v.SetDefault("profinet.cycle_timer_priority", defaults.CycleTimerPriority)
	v.SetDefault("profinet.cycle_worker_priority", defaults.CycleWorkerPriority)

	v.SetDefault("logging.level", "info")

	// Auth Defaults
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	v.SetDefault("auth.access_token_ttl", "60m")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.connect_timeout", "5s")
}

// Properties converts the section into runtime properties.
func (c *ProfinetConfig) Properties() profinet.Properties {
	return profinet.Properties{
		CycleTime:            c.CycleTime,
		MainNetworkInterface: c.MainInterface,
		NetworkInterfaces:    c.Interfaces,
		StorageDirectory:     c.StorageDirectory,
		SNMPThread:           stack.ThreadSettings(c.SNMPThread),
		EthThread:            stack.ThreadSettings(c.EthThread),
		BGWorkerThread:       stack.ThreadSettings(c.BGWorkerThread),
		CycleTimerPriority:   c.CycleTimerPriority,
		CycleWorkerPriority:  c.CycleWorkerPriority,
	}
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

const devSecret = "dev-secret-change-in-production-min-32-chars"

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return devSecret
	}
	return secret
}

func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != devSecret && len(secret) >= 32
}
