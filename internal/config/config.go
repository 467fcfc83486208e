package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"canteen/internal/cart"
)

const configEnv = "CANTEEN_CONFIG"

// Client configures canteenctl.
type Client struct {
	APIURL         string        `yaml:"api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CookieFile     string        `yaml:"cookie_file"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	NoColor        bool          `yaml:"no_color"`
	Cart           cart.Policy   `yaml:"cart"`
}

// Server configures canteen-devserver.
type Server struct {
	RunAddress          string        `yaml:"run_address"`
	JWTSecret           string        `yaml:"jwt_secret"`
	CookieName          string        `yaml:"cookie_name"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	PaymentTimeout      time.Duration `yaml:"payment_timeout"`
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	LogLevel            string        `yaml:"log_level"`
	LogFormat           string        `yaml:"log_format"`
	Seed                bool          `yaml:"seed"`
}

func defaultCookieFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".canteen-cookies"
	}
	return filepath.Join(home, ".canteen", "cookies")
}

// NewClient reads the client configuration. Later sources win: built-in
// defaults, the YAML file named by -config or CANTEEN_CONFIG, flags, then
// environment variables. fs is left parsed so the caller can read its
// remaining arguments.
func NewClient(fs *flag.FlagSet, args []string) (*Client, error) {
	cfg := &Client{
		APIURL:         "http://localhost:8000",
		RequestTimeout: 15 * time.Second,
		CookieFile:     defaultCookieFile(),
		LogLevel:       "warn",
		LogFormat:      "text",
	}
	path, err := loadFile(args, cfg)
	if err != nil {
		return nil, err
	}

	fs.String("config", path, "YAML config file")
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "API base URL")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.StringVar(&cfg.CookieFile, "cookies", cfg.CookieFile, "session cookie file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colored output")
	fs.IntVar(&cfg.Cart.MaxQuantity, "max-qty", cfg.Cart.MaxQuantity, "maximum quantity per cart item (0 = no limit)")
	fs.IntVar(&cfg.Cart.MaxItems, "max-items", cfg.Cart.MaxItems, "maximum distinct items in the cart (0 = no limit)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.APIURL = getEnv("CANTEEN_API_URL", cfg.APIURL)
	cfg.CookieFile = getEnv("CANTEEN_COOKIEFILE", cfg.CookieFile)
	cfg.LogLevel = getEnv("CANTEEN_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("CANTEEN_LOG_FORMAT", cfg.LogFormat)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.NoColor = true
	}
	if cfg.RequestTimeout, err = getEnvDuration("CANTEEN_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.Cart.MaxQuantity, err = getEnvInt("CANTEEN_MAX_QTY", cfg.Cart.MaxQuantity); err != nil {
		return nil, err
	}
	if cfg.Cart.MaxItems, err = getEnvInt("CANTEEN_MAX_ITEMS", cfg.Cart.MaxItems); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Client) Validate() error {
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Cart.MaxQuantity < 0 || c.Cart.MaxItems < 0 {
		return errors.New("cart limits cannot be negative")
	}
	return nil
}

// NewServer reads the dev server configuration with the same precedence
// as NewClient.
func NewServer(fs *flag.FlagSet, args []string) (*Server, error) {
	cfg := &Server{
		RunAddress:          "localhost:8000",
		JWTSecret:           "super-secret-jwt-key",
		CookieName:          "access_token",
		TokenTTL:            24 * time.Hour,
		PaymentTimeout:      10 * time.Minute,
		ExpirySweepInterval: 30 * time.Second,
		LogLevel:            "info",
		LogFormat:           "text",
		Seed:                true,
	}
	path, err := loadFile(args, cfg)
	if err != nil {
		return nil, err
	}

	fs.String("config", path, "YAML config file")
	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "server address and port")
	fs.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "jwt signing key")
	fs.DurationVar(&cfg.PaymentTimeout, "payment-timeout", cfg.PaymentTimeout, "time a student has to pay an accepted order")
	fs.DurationVar(&cfg.ExpirySweepInterval, "sweep", cfg.ExpirySweepInterval, "payment expiry sweep interval")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "load demo canteens, menus and users")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.RunAddress = getEnv("RUN_ADDRESS", cfg.RunAddress)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if cfg.PaymentTimeout, err = getEnvDuration("PAYMENT_TIMEOUT", cfg.PaymentTimeout); err != nil {
		return nil, err
	}
	if cfg.ExpirySweepInterval, err = getEnvDuration("EXPIRY_SWEEP_INTERVAL", cfg.ExpirySweepInterval); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Server) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.PaymentTimeout <= 0 || c.ExpirySweepInterval <= 0 || c.TokenTTL <= 0 {
		return errors.New("timeouts and intervals must be positive")
	}
	return nil
}

// loadFile decodes the YAML config named in args or the environment into
// out and returns its path.
func loadFile(args []string, out any) (string, error) {
	path := configPath(args)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return "", fmt.Errorf("parse config %s: %w", path, err)
	}
	return path, nil
}

// configPath finds -config before the flag set is parsed, so the file can
// supply flag defaults.
func configPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		if !strings.HasPrefix(a, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getEnv(configEnv, "")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
