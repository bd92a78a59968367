package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Backend names accepted by the storage, cache and rate limit sections.
const (
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// Config represents the application configuration structure.
// Every field can be set from the YAML file and overridden by the environment
// variable named in its env tag.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`
	// LogLevel overrides the environment's default log level when set.
	LogLevel string `env:"LOG_LEVEL" yaml:"logLevel"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"30s" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"1m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout bounds a single request end to end, outbound lookups and retries included
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"45s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MaxBodyBytes caps request bodies of the JSON endpoints
		MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" env-default:"65536" yaml:"maxBodyBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
		// EnablePprof mounts net/http/pprof under /debug/pprof/
		EnablePprof bool `env:"HTTP_ENABLE_PPROF" env-default:"false" yaml:"enablePprof"`
		// ContentSecurityPolicy is sent on every API response
		ContentSecurityPolicy string `env:"HTTP_CSP" env-default:"default-src 'none'; frame-ancestors 'none'" yaml:"contentSecurityPolicy"` //nolint: lll
		// StrictTransportSecurity is sent on every API response; empty disables the header
		StrictTransportSecurity string `env:"HTTP_HSTS" env-default:"max-age=31536000; includeSubDomains" yaml:"strictTransportSecurity"` //nolint: lll
	} `yaml:"http"`

	// CORS configures which browser origins may call the API
	CORS struct {
		// AllowedOrigins lists allowed origins; "*" allows any origin
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:"," yaml:"allowedOrigins"`
		// MaxAge is how long, in seconds, browsers may cache a preflight response
		MaxAge int `env:"CORS_MAX_AGE" env-default:"300" yaml:"maxAge"`
	} `yaml:"cors"`

	// Storage selects where feedback and scan logs are persisted
	Storage struct {
		// Backend is either "postgres" or "file"
		Backend string `env:"STORAGE_BACKEND" env-default:"postgres" yaml:"backend"`
		// Dir is the directory of the append-only files used by the file backend
		Dir string `env:"STORAGE_DIR" env-default:"data" yaml:"dir"`
	} `yaml:"storage"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"exposureshield" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"exposureshield" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"exposureshield" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"2" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// Redis is only dialed when a cache or rate limit backend is "redis"
	Redis struct {
		// URL is a redis:// or rediss:// connection URL
		URL string `env:"REDIS_URL" yaml:"url"`
		// PoolSize is the maximum number of socket connections
		PoolSize int `env:"REDIS_POOL_SIZE" env-default:"20" yaml:"poolSize"`
		// KeyPrefix namespaces every key written by the service
		KeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"exposureshield:" yaml:"keyPrefix"`
	} `yaml:"redis"`

	// Cache configures the TTL store shared by the lookup clients and the replay guard
	Cache struct {
		// Backend is either "memory" or "redis"
		Backend string `env:"CACHE_BACKEND" env-default:"memory" yaml:"backend"`
		// MaxEntriesPerShard bounds the memory backend; zero means unbounded
		MaxEntriesPerShard int `env:"CACHE_MAX_ENTRIES_PER_SHARD" env-default:"4096" yaml:"maxEntriesPerShard"`
	} `yaml:"cache"`

	// RateLimit configures the sliding window limits per action
	RateLimit struct {
		// Backend is either "memory" or "redis"
		Backend string `env:"RATE_LIMIT_BACKEND" env-default:"memory" yaml:"backend"`
		// ReapInterval is how often idle in-memory buckets are removed
		ReapInterval time.Duration `env:"RATE_LIMIT_REAP_INTERVAL" env-default:"1m" yaml:"reapInterval"`
		// Scan limits POST /scan
		Scan struct {
			Limit  int           `env:"RATE_LIMIT_SCAN_LIMIT" env-default:"8" yaml:"limit"`
			Window time.Duration `env:"RATE_LIMIT_SCAN_WINDOW" env-default:"60s" yaml:"window"`
		} `yaml:"scan"`
		// Feedback limits POST /feedback
		Feedback struct {
			Limit  int           `env:"RATE_LIMIT_FEEDBACK_LIMIT" env-default:"3" yaml:"limit"`
			Window time.Duration `env:"RATE_LIMIT_FEEDBACK_WINDOW" env-default:"60s" yaml:"window"`
		} `yaml:"feedback"`
		// Challenge limits GET /feedback/captcha
		Challenge struct {
			Limit  int           `env:"RATE_LIMIT_CHALLENGE_LIMIT" env-default:"30" yaml:"limit"`
			Window time.Duration `env:"RATE_LIMIT_CHALLENGE_WINDOW" env-default:"60s" yaml:"window"`
		} `yaml:"challenge"`
	} `yaml:"rateLimit"`

	// Challenge configures the signed arithmetic challenge of the feedback form
	Challenge struct {
		// Secret is the HMAC key; it is required and must be shared by all instances
		Secret string `env:"CHALLENGE_SECRET" yaml:"secret"`
		// TTL is how long an issued challenge stays valid
		TTL time.Duration `env:"CHALLENGE_TTL" env-default:"300s" yaml:"ttl"`
		// MinOperand is the smallest operand that can be drawn
		MinOperand int `env:"CHALLENGE_MIN_OPERAND" env-default:"2" yaml:"minOperand"`
		// MaxOperand is the largest operand that can be drawn
		MaxOperand int `env:"CHALLENGE_MAX_OPERAND" env-default:"9" yaml:"maxOperand"`
		// ReplayGuard makes every challenge single-use by remembering verified signatures until they expire
		ReplayGuard bool `env:"CHALLENGE_REPLAY_GUARD" env-default:"false" yaml:"replayGuard"`
		// ReplayMaxEntries bounds the in-memory replay guard; new tokens are refused while it is full of live ones
		ReplayMaxEntries int `env:"CHALLENGE_REPLAY_MAX_ENTRIES" env-default:"65536" yaml:"replayMaxEntries"`
	} `yaml:"challenge"`

	// Turnstile configures the optional Cloudflare Turnstile alternative to the challenge
	Turnstile struct {
		// Enabled accepts Turnstile tokens on the feedback endpoint
		Enabled bool `env:"TURNSTILE_ENABLED" env-default:"false" yaml:"enabled"`
		// SecretKey is the site's Turnstile secret
		SecretKey string `env:"TURNSTILE_SECRET_KEY" yaml:"secretKey"`
		// VerifyURL is the siteverify endpoint
		VerifyURL string `env:"TURNSTILE_VERIFY_URL" env-default:"https://challenges.cloudflare.com/turnstile/v0/siteverify" yaml:"verifyUrl"` //nolint: lll
		// Timeout bounds a single verification call
		Timeout time.Duration `env:"TURNSTILE_TIMEOUT" env-default:"5s" yaml:"timeout"`
	} `yaml:"turnstile"`

	// PwnedPasswords configures the k-anonymity password range lookup
	PwnedPasswords struct {
		// Enabled turns the password source on
		Enabled bool `env:"PWNED_PASSWORDS_ENABLED" env-default:"true" yaml:"enabled"`
		// BaseURL is the API root; the prefix is requested at BaseURL/range/{prefix}
		BaseURL string `env:"PWNED_PASSWORDS_BASE_URL" env-default:"https://api.pwnedpasswords.com" yaml:"baseUrl"`
		// CacheTTL is how long a range body is reused
		CacheTTL time.Duration `env:"PWNED_PASSWORDS_CACHE_TTL" env-default:"600s" yaml:"cacheTtl"`
		// Timeout bounds a single range request
		Timeout time.Duration `env:"PWNED_PASSWORDS_TIMEOUT" env-default:"5s" yaml:"timeout"`
	} `yaml:"pwnedPasswords"`

	// HIBP configures the remote breach directory
	HIBP struct {
		// Enabled turns the remote directory on; it then requires APIKey
		Enabled bool `env:"HIBP_ENABLED" env-default:"true" yaml:"enabled"`
		// APIKey is sent in the hibp-api-key header
		APIKey string `env:"HIBP_API_KEY" yaml:"apiKey"`
		// BaseURL is the API root
		BaseURL string `env:"HIBP_BASE_URL" env-default:"https://haveibeenpwned.com/api/v3" yaml:"baseUrl"`
		// UserAgent identifies the service to the directory, which rejects anonymous clients
		UserAgent string `env:"HIBP_USER_AGENT" env-default:"ExposureShield/1.0 (contact@exposureshield.com)" yaml:"userAgent"` //nolint: lll
		// Timeout bounds a single HTTP attempt
		Timeout time.Duration `env:"HIBP_TIMEOUT" env-default:"5s" yaml:"timeout"`
		// MaxAttempts is the total number of attempts when the directory answers 429
		MaxAttempts int `env:"HIBP_MAX_ATTEMPTS" env-default:"3" yaml:"maxAttempts"`
		// DefaultRetryAfter is the wait used when a 429 carries no Retry-After hint
		DefaultRetryAfter time.Duration `env:"HIBP_DEFAULT_RETRY_AFTER" env-default:"3s" yaml:"defaultRetryAfter"`
		// MaxBackoff caps every wait between attempts
		MaxBackoff time.Duration `env:"HIBP_MAX_BACKOFF" env-default:"10s" yaml:"maxBackoff"`
		// CacheTTL is how long an answer for an address is reused; zero disables caching
		CacheTTL time.Duration `env:"HIBP_CACHE_TTL" env-default:"5m" yaml:"cacheTtl"`
	} `yaml:"hibp"`

	// Dataset configures the curated local breach table
	Dataset struct {
		// Path is a JSON or YAML file; empty or missing means an empty table
		Path string `env:"DATASET_PATH" yaml:"path"`
	} `yaml:"dataset"`

	// ScanLog configures the record kept for every evaluation
	ScanLog struct {
		// Enabled stores a scan log row per evaluation
		Enabled bool `env:"SCAN_LOG_ENABLED" env-default:"false" yaml:"enabled"`
		// HashSecret keys the HMAC applied to email addresses before storage
		HashSecret string `env:"SCAN_LOG_HASH_SECRET" yaml:"hashSecret"`
	} `yaml:"scanLog"`

	// Notify configures the email sent for each feedback message
	Notify struct {
		// Enabled queues a notification job per feedback message
		Enabled bool `env:"NOTIFY_ENABLED" env-default:"false" yaml:"enabled"`
		// SendGridAPIKey authenticates against the mail API
		SendGridAPIKey string `env:"SENDGRID_API_KEY" yaml:"sendGridApiKey"`
		// BaseURL is the mail API root
		BaseURL string `env:"SENDGRID_BASE_URL" env-default:"https://api.sendgrid.com" yaml:"baseUrl"`
		// From is the sender address
		From string `env:"NOTIFY_FROM" yaml:"from"`
		// To is the recipient address
		To string `env:"NOTIFY_TO" yaml:"to"`
		// Timeout bounds a single send
		Timeout time.Duration `env:"NOTIFY_TIMEOUT" env-default:"10s" yaml:"timeout"`
		// MaxAttempts is how many times a failed notification job is retried
		MaxAttempts int `env:"NOTIFY_MAX_ATTEMPTS" env-default:"5" yaml:"maxAttempts"`
		// MaxWorkers is the concurrency of the notification queue
		MaxWorkers int `env:"NOTIFY_MAX_WORKERS" env-default:"4" yaml:"maxWorkers"`
	} `yaml:"notify"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load reads variables from a .env file in the working directory when there is
// one, then fills a Config from the YAML file at configPath and the
// environment. A missing YAML file is not an error: the environment and the
// defaults are used instead.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not read .env file: %w", err)
	}

	var cfg Config
	if _, statErr := os.Stat(configPath); errors.Is(statErr, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read config from env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every missing secret and inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Challenge.Secret == "" {
		errs = append(errs, errors.New("challenge.secret is required"))
	}
	if c.Challenge.MinOperand < 0 || c.Challenge.MaxOperand < c.Challenge.MinOperand {
		errs = append(errs, errors.New("challenge operand range is invalid"))
	}
	if c.Challenge.TTL <= 0 {
		errs = append(errs, errors.New("challenge.ttl must be positive"))
	}
	if c.Challenge.ReplayGuard && c.Cache.Backend != BackendRedis && c.Challenge.ReplayMaxEntries <= 0 {
		errs = append(errs, errors.New("challenge.replayMaxEntries must be positive when the replay guard is in memory"))
	}
	if c.HIBP.Enabled && c.HIBP.APIKey == "" {
		errs = append(errs, errors.New("hibp.apiKey is required when hibp is enabled"))
	}
	if c.HIBP.Enabled && c.HTTP.RequestTimeout > 0 {
		if worst := c.HIBPWorstCase(); worst >= c.HTTP.RequestTimeout {
			errs = append(errs, fmt.Errorf(
				"hibp retries can take %s, which does not fit in http.requestTimeout %s", worst, c.HTTP.RequestTimeout))
		}
	}
	if c.Turnstile.Enabled && c.Turnstile.SecretKey == "" {
		errs = append(errs, errors.New("turnstile.secretKey is required when turnstile is enabled"))
	}
	if c.ScanLog.Enabled && c.ScanLog.HashSecret == "" {
		errs = append(errs, errors.New("scanLog.hashSecret is required when scan logs are enabled"))
	}
	if c.Notify.Enabled {
		if c.Notify.SendGridAPIKey == "" || c.Notify.From == "" || c.Notify.To == "" {
			errs = append(errs, errors.New("notify requires sendGridApiKey, from and to"))
		}
		if c.Storage.Backend != BackendPostgres {
			errs = append(errs, errors.New("notify requires the postgres storage backend"))
		}
	}

	switch c.Storage.Backend {
	case BackendPostgres, BackendFile:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	for name, backend := range map[string]string{"cache": c.Cache.Backend, "rateLimit": c.RateLimit.Backend} {
		switch backend {
		case BackendMemory:
		case BackendRedis:
			if c.Redis.URL == "" {
				errs = append(errs, fmt.Errorf("%s backend redis requires redis.url", name))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown %s backend %q", name, backend))
		}
	}

	return errors.Join(errs...)
}

// HIBPWorstCase is the longest a directory lookup can take: every attempt
// running into its timeout, with the longest backoff between attempts.
func (c *Config) HIBPWorstCase() time.Duration {
	attempts := max(c.HIBP.MaxAttempts, 1)

	return time.Duration(attempts)*c.HIBP.Timeout + time.Duration(attempts-1)*c.HIBP.MaxBackoff
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.RateLimit.Backend == BackendRedis
}
