// Package config resolves daemon and tool settings from flags, with
// environment variables (optionally loaded from a .env file) as defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"

	"token-ledger/internal/domain"
	"token-ledger/internal/logging"
)

// Environment variable names.
const (
	EnvName           = "LEDGER_NAME"
	EnvSymbol         = "LEDGER_SYMBOL"
	EnvInitialSupply  = "LEDGER_INITIAL_SUPPLY"
	EnvDecimals       = "LEDGER_DECIMALS"
	EnvDeployer       = "LEDGER_DEPLOYER"
	EnvDeployerKey    = "LEDGER_DEPLOYER_PUBKEY"
	EnvPostgresDSN    = "POSTGRES_DSN"
	EnvClickhouseDSN  = "CLICKHOUSE_DSN"
	EnvHTTPAddr       = "HTTP_ADDR"
	EnvLogEnv         = "LOG_ENV"
	EnvLogLevel       = "LOG_LEVEL"
	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"
	EnvUseMemory      = "USE_MEMORY"
)

// Defaults mirror the reference deployment: GeneralHQ, 1,000,000 whole units.
const (
	DefaultName           = "GeneralHQ"
	DefaultSymbol         = "GHQ"
	DefaultInitialSupply  = "1000000"
	DefaultHTTPAddr       = ":8080"
	DefaultRateLimitRPS   = 20.0
	DefaultRateLimitBurst = 40
	DefaultExportInterval = 500 * time.Millisecond
)

// Config holds resolved settings.
type Config struct {
	Name          string
	Symbol        string
	InitialSupply *uint256.Int
	Decimals      uint8
	Deployer      domain.Account

	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	HTTPAddr       string
	RateLimitRPS   float64
	RateLimitBurst int
	ExportInterval time.Duration

	Logging logging.Config
}

// raw holds flag values before validation.
type raw struct {
	name, symbol, supply, decimals string
	deployer, deployerKey         string
	postgresDSN, clickhouseDSN    string
	useMemory                     bool
	httpAddr                      string
	rps                           float64
	burst                         int
	exportInterval                time.Duration
	logEnv, logLevel              string
}

// LoadEnvFile loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Parse reads flags from args, using environment variables as defaults,
// and validates the result.
func Parse(name string, args []string) (*Config, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)

	var r raw
	flags.StringVar(&r.name, "name", envOr(EnvName, DefaultName), "Token name")
	flags.StringVar(&r.symbol, "symbol", envOr(EnvSymbol, DefaultSymbol), "Token symbol")
	flags.StringVar(&r.supply, "initial-supply", envOr(EnvInitialSupply, DefaultInitialSupply), "Initial supply in whole units")
	flags.StringVar(&r.decimals, "decimals", envOr(EnvDecimals, strconv.Itoa(int(domain.DefaultDecimals))), "Decimal places")
	flags.StringVar(&r.deployer, "deployer", os.Getenv(EnvDeployer), "Deployer account (0x-prefixed hex)")
	flags.StringVar(&r.deployerKey, "deployer-pubkey", os.Getenv(EnvDeployerKey), "Deployer ed25519 public key (base58)")
	flags.StringVar(&r.postgresDSN, "postgres-dsn", os.Getenv(EnvPostgresDSN), "PostgreSQL connection string")
	flags.StringVar(&r.clickhouseDSN, "clickhouse-dsn", os.Getenv(EnvClickhouseDSN), "ClickHouse connection string (optional)")
	flags.BoolVar(&r.useMemory, "use-memory", envBool(EnvUseMemory), "Use in-memory storage instead of PostgreSQL")
	flags.StringVar(&r.httpAddr, "http-addr", envOr(EnvHTTPAddr, DefaultHTTPAddr), "HTTP listen address")
	flags.Float64Var(&r.rps, "rate-limit-rps", envFloat(EnvRateLimitRPS, DefaultRateLimitRPS), "Write requests per second per client")
	flags.IntVar(&r.burst, "rate-limit-burst", envInt(EnvRateLimitBurst, DefaultRateLimitBurst), "Write request burst per client")
	flags.DurationVar(&r.exportInterval, "export-interval", DefaultExportInterval, "Journal exporter retry interval")
	flags.StringVar(&r.logEnv, "log-env", envOr(EnvLogEnv, string(logging.EnvironmentProduction)), "Logger profile (production, development, local)")
	flags.StringVar(&r.logLevel, "log-level", os.Getenv(EnvLogLevel), "Log level override")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return r.resolve()
}

func (r raw) resolve() (*Config, error) {
	cfg := &Config{
		Name:           strings.TrimSpace(r.name),
		Symbol:         strings.TrimSpace(r.symbol),
		PostgresDSN:    r.postgresDSN,
		ClickhouseDSN:  r.clickhouseDSN,
		UseMemory:      r.useMemory,
		HTTPAddr:       r.httpAddr,
		RateLimitRPS:   r.rps,
		RateLimitBurst: r.burst,
		ExportInterval: r.exportInterval,
		Logging: logging.Config{
			Environment: logging.Environment(r.logEnv),
			Level:       r.logLevel,
		},
	}

	supply, err := domain.ParseAmount(r.supply)
	if err != nil {
		return nil, fmt.Errorf("initial supply: %w", err)
	}
	cfg.InitialSupply = supply

	decimals, err := strconv.ParseUint(r.decimals, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("decimals %q: must be 0-255", r.decimals)
	}
	cfg.Decimals = uint8(decimals)

	switch {
	case r.deployer != "" && r.deployerKey != "":
		return nil, fmt.Errorf("set only one of %s and %s", EnvDeployer, EnvDeployerKey)
	case r.deployer != "":
		if cfg.Deployer, err = domain.ParseAccount(r.deployer); err != nil {
			return nil, fmt.Errorf("deployer: %w", err)
		}
	case r.deployerKey != "":
		pub, err := domain.ParsePublicKey(r.deployerKey)
		if err != nil {
			return nil, fmt.Errorf("deployer public key: %w", err)
		}
		if cfg.Deployer, err = domain.AccountFromPublicKey(pub); err != nil {
			return nil, fmt.Errorf("deployer public key: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, errors.New("token name is required"))
	}
	if c.Symbol == "" {
		errs = append(errs, errors.New("token symbol is required"))
	}
	if c.Deployer.IsNull() {
		errs = append(errs, fmt.Errorf("%s or %s is required", EnvDeployer, EnvDeployerKey))
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		errs = append(errs, errors.New("--postgres-dsn is required (use --use-memory for in-memory storage)"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("--http-addr is required"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}
	if c.ExportInterval <= 0 {
		errs = append(errs, errors.New("export interval must be positive"))
	}
	switch c.Logging.Environment {
	case logging.EnvironmentProduction, logging.EnvironmentDevelopment, logging.EnvironmentLocal:
	default:
		errs = append(errs, fmt.Errorf("invalid log environment %q", c.Logging.Environment))
	}

	return errors.Join(errs...)
}

// Genesis builds the genesis record for the configured token.
func (c *Config) Genesis(createdAt time.Time) *domain.Genesis {
	return &domain.Genesis{
		Name:          c.Name,
		Symbol:        c.Symbol,
		Decimals:      c.Decimals,
		InitialSupply: domain.CloneAmount(c.InitialSupply),
		Deployer:      c.Deployer,
		CreatedAt:     createdAt.UnixMilli(),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}
