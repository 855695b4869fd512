// Package config loads qchat settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ledzpl/qchat/internal/chat"
)

// Config holds the process settings.
type Config struct {
	Addr              string        `env:"QCHAT_ADDR,default=:5000" validate:"required"`
	SSHAddr           string        `env:"QCHAT_SSH_ADDR"`
	HostKeyPath       string        `env:"QCHAT_HOST_KEY,default=configs/ssh_host_ed25519"`
	MaxClients        int           `env:"QCHAT_MAX_CLIENTS,default=20" validate:"min=1"`
	MaxLoginLength    int           `env:"QCHAT_MAX_LOGIN_LENGTH,default=256" validate:"min=1"`
	LineBufferSize    int           `env:"QCHAT_LINE_BUFFER_SIZE,default=4096" validate:"min=16"`
	DeliveryQueueSize int           `env:"QCHAT_DELIVERY_QUEUE_SIZE,default=1024" validate:"min=1"`
	WriteTimeout      time.Duration `env:"QCHAT_WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	ShutdownTimeout   time.Duration `env:"QCHAT_SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	LogLevel          string        `env:"QCHAT_LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// ChatOptions maps the settings onto the chat core limits.
func (c Config) ChatOptions() chat.Options {
	return chat.Options{
		Capacity:          c.MaxClients,
		MaxLoginLength:    c.MaxLoginLength,
		LineBufferSize:    c.LineBufferSize,
		DeliveryQueueSize: c.DeliveryQueueSize,
		WriteTimeout:      c.WriteTimeout,
	}
}

type flagValues struct {
	envFile    string
	addr       string
	sshAddr    string
	hostKey    string
	maxClients int
	logLevel   string
}

func newFlagSet() (*pflag.FlagSet, *flagValues) {
	values := &flagValues{}
	fs := pflag.NewFlagSet("qchat", pflag.ContinueOnError)
	fs.StringVar(&values.envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	fs.StringVar(&values.addr, "addr", "", "TCP address for line-mode clients (overrides QCHAT_ADDR)")
	fs.StringVar(&values.sshAddr, "ssh-addr", "", "TCP address for SSH clients, empty to disable (overrides QCHAT_SSH_ADDR)")
	fs.StringVar(&values.hostKey, "host-key", "", "Path to the SSH host private key, generated if missing (overrides QCHAT_HOST_KEY)")
	fs.IntVar(&values.maxClients, "max-clients", 0, "Registry capacity (overrides QCHAT_MAX_CLIENTS)")
	fs.StringVar(&values.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (overrides QCHAT_LOG_LEVEL)")
	return fs, values
}

// Load parses args, loads the dotenv file if present and decodes the process
// environment.
func Load(args []string) (Config, error) {
	fs, values := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}

	if err := godotenv.Load(values.envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) || fs.Changed("env-file") {
			return Config{}, fmt.Errorf("config: load %s: %w", values.envFile, err)
		}
	}

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("config: read environment: %w", err)
	}
	return resolve(fs, values, es)
}

// Parse decodes es and applies the flags in args. It never touches the
// process environment.
func Parse(args []string, es env.EnvSet) (Config, error) {
	fs, values := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}
	return resolve(fs, values, es)
}

func resolve(fs *pflag.FlagSet, values *flagValues, es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode environment: %w", err)
	}

	if fs.Changed("addr") {
		cfg.Addr = values.addr
	}
	if fs.Changed("ssh-addr") {
		cfg.SSHAddr = values.sshAddr
	}
	if fs.Changed("host-key") {
		cfg.HostKeyPath = values.hostKey
	}
	if fs.Changed("max-clients") {
		cfg.MaxClients = values.maxClients
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = values.logLevel
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
