package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/yanglinqiang/ignite"
	"github.com/yanglinqiang/ignite/logger"
	"github.com/yanglinqiang/ignite/logger/zerologsink"
	"github.com/yanglinqiang/ignite/thin"
)

const defaultConfigPath = "~/.ignitectl.ini"

// globalOptions are the flags shared by every command. Flags override the config file, which
// overrides IGNITE_* environment variables.
type globalOptions struct {
	configPath string
	addresses  []string
	username   string
	password   string
	timeout    time.Duration
	logLevel   string
}

func (o *globalOptions) register(f *pflag.FlagSet) {
	f.StringVar(&o.configPath, "config", defaultConfigPath, "Path of the INI configuration file")
	f.StringSliceVar(&o.addresses, "addresses", nil, "Addresses of the cluster nodes")
	f.StringVar(&o.username, "user", "", "User name")
	f.StringVar(&o.password, "password", "", "Password")
	f.DurationVar(&o.timeout, "timeout", 10*time.Second, "Timeout of every request")
	f.StringVar(&o.logLevel, "log-level", "off", "Log level: trace, debug, info, warn, error or off")
}

// loadConfig merges the environment, the config file and the flags.
func (o *globalOptions) loadConfig(flags *pflag.FlagSet) (thin.Config, error) {
	cfg, err := thin.LoadEnv("")
	if err != nil {
		return thin.Config{}, err
	}
	path, err := homedir.Expand(o.configPath)
	if err != nil {
		return thin.Config{}, fmt.Errorf("invalid config path %s: %w", o.configPath, err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if cfg, err = thin.LoadINI(path); err != nil {
			return thin.Config{}, err
		}
	} else if flags.Changed("config") {
		return thin.Config{}, fmt.Errorf("config file %s not found", path)
	}
	if flags.Changed("addresses") {
		cfg.Addresses = o.addresses
	}
	if flags.Changed("user") {
		cfg.Username = o.username
	}
	if flags.Changed("password") {
		cfg.Password = o.password
	}
	if flags.Changed("timeout") || cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = o.timeout
	}
	// logging goes through the sink set up by connect
	cfg.LogLevel = ""
	if cfg.Name == "" {
		cfg.Name = "ignitectl"
	}
	return cfg, nil
}

func (o *globalOptions) sink(stderr io.Writer) (logger.Sink, error) {
	lvl, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	return zerologsink.New(zl, lvl), nil
}

// connect opens a thin client connection configured by the flags.
func (o *globalOptions) connect(ctx context.Context, flags *pflag.FlagSet, stderr io.Writer) (ignite.Ignite, error) {
	sink, err := o.sink(stderr)
	if err != nil {
		return ignite.Ignite{}, err
	}
	cfg, err := o.loadConfig(flags)
	if err != nil {
		return ignite.Ignite{}, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return ignite.Ignite{}, err
	}
	opts = append(opts, thin.WithLoggingSink(sink))
	return thin.Connect(ctx, opts...)
}
