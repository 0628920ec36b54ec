package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Issuer      IssuerConfig      `mapstructure:"issuer"`
	Coprocessor CoprocessorConfig `mapstructure:"coprocessor"`
	Token       TokenConfig       `mapstructure:"token"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"` // debug, release, test
	Metrics bool   `mapstructure:"metrics"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, postgres
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// IssuerConfig holds the HMAC credentials of the party allowed to mint.
type IssuerConfig struct {
	AccessKey string `mapstructure:"access_key"`
	Secret    string `mapstructure:"secret"`
}

type CoprocessorConfig struct {
	MasterKey string `mapstructure:"master_key"` // 32-byte hex, derives ciphertext sealing keys
	SignerKey string `mapstructure:"signer_key"` // secp256k1 hex, signs input proofs
	ChainID   uint64 `mapstructure:"chain_id"`
}

type TokenConfig struct {
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
	Address  string `mapstructure:"address"`
}

type VaultConfig struct {
	Address string        `mapstructure:"address"`
	MaxLock time.Duration `mapstructure:"max_lock"` // 0 = unbounded
}

type LedgerConfig struct {
	InsufficientBalancePolicy string `mapstructure:"insufficient_balance_policy"` // clamp, zero
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Validate checks values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.driver: unsupported value %q", c.Storage.Driver)
	}
	switch c.Ledger.InsufficientBalancePolicy {
	case "clamp", "zero":
	default:
		return fmt.Errorf("ledger.insufficient_balance_policy: unsupported value %q", c.Ledger.InsufficientBalancePolicy)
	}
	if !common.IsHexAddress(c.Token.Address) {
		return fmt.Errorf("token.address: %q is not a hex address", c.Token.Address)
	}
	if !common.IsHexAddress(c.Vault.Address) {
		return fmt.Errorf("vault.address: %q is not a hex address", c.Vault.Address)
	}
	if strings.EqualFold(c.Token.Address, c.Vault.Address) {
		return fmt.Errorf("token.address and vault.address must differ")
	}
	if c.Vault.MaxLock < 0 {
		return fmt.Errorf("vault.max_lock must not be negative")
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ZKV_.
// Nested keys use underscore: ZKV_DATABASE_HOST, ZKV_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.metrics", true)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "zkvault")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "zkvault")
	v.SetDefault("issuer.access_key", "")
	v.SetDefault("issuer.secret", "")
	v.SetDefault("coprocessor.master_key", "")
	v.SetDefault("coprocessor.signer_key", "")
	v.SetDefault("coprocessor.chain_id", 31337)
	v.SetDefault("token.name", "Confidential USDT")
	v.SetDefault("token.symbol", "cUSDT")
	v.SetDefault("token.decimals", 6)
	v.SetDefault("token.address", "0x00000000000000000000000000000000000c0de1")
	v.SetDefault("vault.address", "0x00000000000000000000000000000000000c0de2")
	v.SetDefault("vault.max_lock", "0s")
	v.SetDefault("ledger.insufficient_balance_policy", "clamp")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// ZKV_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ZKV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine, env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
