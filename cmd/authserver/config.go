package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/service/auth"
)

const (
	defaultListenAddr       = "localhost:8000"
	defaultLoggingLevel     = logger.LevelInfo
	defaultEnvironment      = logger.EnvProd
	defaultRefreshTransport = auth.TransportCookie
	defaultRequestTimeout   = 10 * time.Second
	defaultCleanupInterval  = time.Hour
)

// DSN to run with in-process storage. Data is lost on restart
const memoryDSN = "memory://"

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the auth service will be run
	ListenAddr string

	// Database to connect to. 'memory://' for in-process storage
	DatabaseDSN string

	// Secret key to sign JWT tokens
	SecretKey string

	// Key to fingerprint stored tokens. Derived from SecretKey if empty
	FingerprintKey string

	// Token lifetimes. Token manager defaults are used if zero
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// How refresh token travels: 'cookie' or 'header'
	RefreshTransport string

	// Replace refresh token on every refresh
	RotateRefresh bool

	// Redis to cache blacklist lookups. Cache disabled if empty
	RedisAddr string

	// Origins allowed to call the api from browser
	CORSOrigins []string

	// Upper bound of request handling time
	RequestTimeout time.Duration

	// How often expired tokens are deleted
	CleanupInterval time.Duration

	// Environment: 'dev' or 'prod'. Production enables secure cookies and json logs
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		Environment:      defaultEnvironment,
		RefreshTransport: defaultRefreshTransport,
		RequestTimeout:   defaultRequestTimeout,
		CleanupInterval:  defaultCleanupInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"JWT_SECRET":            setString(&c.SecretKey),
		"TOKEN_FINGERPRINT_KEY": setString(&c.FingerprintKey),
		"ACCESS_TOKEN_TTL":      setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":     setDuration(&c.RefreshTTL),
		"REFRESH_TRANSPORT":     setString(&c.RefreshTransport),
		"ROTATE_REFRESH":        setBool(&c.RotateRefresh),
		"REDIS_ADDR":            setString(&c.RedisAddr),
		"CORS_ORIGINS":          setList(&c.CORSOrigins),
		"REQUEST_TIMEOUT":       setDuration(&c.RequestTimeout),
		"CLEANUP_INTERVAL":      setDuration(&c.CleanupInterval),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authserver", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string ('memory://' for in-process storage)")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign tokens")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVar(&c.RefreshTransport, "refresh-transport", c.RefreshTransport, "Refresh token transport (cookie, header)")
	fs.BoolVar(&c.RotateRefresh, "rotate-refresh", c.RotateRefresh, "Rotate refresh token on every refresh")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address to cache blacklist lookups")
	fs.StringSliceVar(&c.CORSOrigins, "cors", c.CORSOrigins, "Allowed CORS origins")
	fs.DurationVar(&c.RequestTimeout, "timeout", c.RequestTimeout, "Request handling timeout")
	fs.DurationVar(&c.CleanupInterval, "cleanup-interval", c.CleanupInterval, "Expired tokens cleanup interval")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}

	switch c.RefreshTransport {
	case auth.TransportCookie, auth.TransportHeader:
	default:
		errs = append(errs, fmt.Errorf("unknown refresh transport %q", c.RefreshTransport))
	}

	switch c.Environment {
	case logger.EnvDev, logger.EnvProd:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == logger.EnvProd
}
