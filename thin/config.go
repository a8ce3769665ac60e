package thin

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/ini.v1"

	"github.com/yanglinqiang/ignite/logger"
)

// DefaultEnvPrefix is the prefix of the environment variables read by [LoadEnv].
const DefaultEnvPrefix = "IGNITE_"

// Config is a serializable client configuration. It can be filled from environment variables,
// an INI file or a generic map and turned into options with [Config.Options].
//
//	[client]
//	addresses = 127.0.0.1:10800, 127.0.0.1:10801
//	request_timeout = 5s
//
//	[attributes]
//	app = billing
type Config struct {
	Name                  string            `env:"NAME" ini:"name" mapstructure:"name"`
	Addresses             []string          `env:"ADDRESSES" envSeparator:"," ini:"addresses" delim:"," mapstructure:"addresses"`
	ShuffleAddresses      bool              `env:"SHUFFLE_ADDRESSES" envDefault:"true" ini:"shuffle_addresses" mapstructure:"shuffle_addresses"`
	Username              string            `env:"USERNAME" ini:"username" mapstructure:"username"`
	Password              string            `env:"PASSWORD" ini:"password" mapstructure:"password"`
	RequestTimeout        time.Duration     `env:"REQUEST_TIMEOUT" ini:"request_timeout" mapstructure:"request_timeout"`
	RetryLimit            int               `env:"RETRY_LIMIT" ini:"retry_limit" mapstructure:"retry_limit"`
	ProtocolVersion       string            `env:"PROTOCOL_VERSION" ini:"protocol_version" mapstructure:"protocol_version"`
	LogLevel              string            `env:"LOG_LEVEL" ini:"log_level" mapstructure:"log_level"`
	NearCacheBytes        int64             `env:"NEAR_CACHE_BYTES" ini:"near_cache_bytes" mapstructure:"near_cache_bytes"`
	NearCacheTTL          time.Duration     `env:"NEAR_CACHE_TTL" ini:"near_cache_ttl" mapstructure:"near_cache_ttl"`
	TLSCertFile           string            `env:"TLS_CERT_FILE" ini:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile            string            `env:"TLS_KEY_FILE" ini:"tls_key_file" mapstructure:"tls_key_file"`
	TLSCAFile             string            `env:"TLS_CA_FILE" ini:"tls_ca_file" mapstructure:"tls_ca_file"`
	TLSInsecureSkipVerify bool              `env:"TLS_INSECURE_SKIP_VERIFY" ini:"tls_insecure_skip_verify" mapstructure:"tls_insecure_skip_verify"`
	Attributes            map[string]string `env:"ATTRIBUTES" ini:"-" mapstructure:"attributes"`
}

// DefaultConfig returns the configuration [Start] uses when no options are given.
func DefaultConfig() Config {
	return Config{
		Addresses:        []string{fmt.Sprintf("127.0.0.1:%d", defaultPort)},
		ShuffleAddresses: true,
	}
}

// LoadEnv reads the configuration from environment variables with the given prefix,
// [DefaultEnvPrefix] if empty. Maps are written as key1:value1,key2:value2.
func LoadEnv(prefix string) (Config, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	cfg := DefaultConfig()
	cfg.Addresses = nil
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = DefaultConfig().Addresses
	}
	return cfg, nil
}

// LoadINI reads the configuration from the [client] section of an INI file. Client attributes
// are read from the [attributes] section.
func LoadINI(source interface{}) (Config, error) {
	f, err := ini.Load(source)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load ini: %w", err)
	}
	cfg := DefaultConfig()
	if err = f.Section("client").MapTo(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to map [client] section: %w", err)
	}
	if f.HasSection("attributes") {
		cfg.Attributes = f.Section("attributes").KeysHash()
	}
	return cfg, nil
}

// LoadMap decodes the configuration from a generic map, as produced by JSON or YAML decoders.
// Durations may be given as strings ("5s"), addresses as a list or a comma separated string.
func LoadMap(m map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err = decoder.Decode(m); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Options converts the configuration into client options.
func (cfg Config) Options() ([]ClientConfigurationOption, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("no addresses configured")
	}
	opts := []ClientConfigurationOption{
		WithAddresses(cfg.Addresses...),
		WithShuffleAddresses(cfg.ShuffleAddresses),
		WithRequestTimeout(cfg.RequestTimeout),
		WithRetryLimit(cfg.RetryLimit),
	}
	if cfg.Name != "" {
		opts = append(opts, WithInstanceName(cfg.Name))
	}
	if cfg.Username != "" {
		opts = append(opts, WithCredentials(cfg.Username, cfg.Password))
	}
	for k, v := range cfg.Attributes {
		opts = append(opts, WithClientAttribute(k, v))
	}
	if cfg.ProtocolVersion != "" {
		ver, ok := ParseVersion(cfg.ProtocolVersion)
		if !ok {
			return nil, fmt.Errorf("invalid protocol version %q", cfg.ProtocolVersion)
		}
		opts = append(opts, WithProtocolContext(ver, UserAttributesFeature))
	}
	if cfg.LogLevel != "" {
		lvl, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		sink, err := logger.NewWriterSink(os.Stderr, component, lvl)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithLoggingSink(sink))
	}
	if cfg.NearCacheBytes > 0 {
		opts = append(opts, WithNearCache(NearCacheConfig{MaxBytes: cfg.NearCacheBytes, TTL: cfg.NearCacheTTL}))
	}
	if cfg.TLSCertFile != "" || cfg.TLSCAFile != "" || cfg.TLSInsecureSkipVerify {
		opts = append(opts, WithTls(cfg.tlsConfig))
	}
	return opts, nil
}

func (cfg Config) tlsConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.TLSInsecureSkipVerify, //nolint:gosec
	}
	if cfg.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
