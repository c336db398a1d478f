package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/email/mailgun"
	"github.com/efish/efish/internal/email/postmark"
	"github.com/efish/efish/internal/email/smtp"
	"github.com/efish/efish/internal/krypto"
	"github.com/efish/efish/internal/logging"
	"github.com/efish/efish/internal/task"
	"github.com/efish/efish/internal/web"
)

const (
	storeSQLite = "sqlite"
	storeMongo  = "mongo"

	emailLog      = "log"
	emailPostmark = "postmark"
	emailMailgun  = "mailgun"
	emailSMTP     = "smtp"

	defaultEnvFile = ".env"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	cookieKeys      []krypto.Key
	// viewDir loads the views from disk on every request when set.
	viewDir string
	server  web.ServerConfig
}

// dbConfig is the configuration of the stores.
type dbConfig struct {
	driver         string
	file           string
	migrate        bool
	blindIndexSalt krypto.Key
	encryptionKeys []krypto.Key
}

type mongoConfig struct {
	uri      string
	database string
}

// redisConfig is the configuration of the Redis token ledger, it's only
// used when addr is set.
type redisConfig struct {
	addr     string
	password krypto.Secret
	db       int
}

type emailConfig struct {
	driver   string
	viewDir  string
	service  email.ServiceConfig
	postmark postmark.Settings
	mailgun  mailgun.Settings
	smtp     smtp.Settings
}

type logConfig struct {
	level        slog.Level
	logstashAddr string
}

// config is the configuration for the server command.
type config struct {
	baseURL   *url.URL
	secretKey krypto.Key
	log       logConfig
	http      httpConfig
	db        dbConfig
	mongo     mongoConfig
	redis     redisConfig
	auth      auth.ServiceConfig
	tasks     task.ServiceConfig
	email     emailConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		baseURL: must(url.Parse("http://localhost:8888")),
		log: logConfig{
			level: slog.LevelInfo,
		},
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			server: web.ServerConfig{
				Environment:       "production",
				SecureCookie:      true,
				ResetRateInterval: time.Second * 20,
				ResetRateBurst:    5,
			},
		},
		db: dbConfig{
			driver:  storeSQLite,
			file:    "efish.db",
			migrate: true,
		},
		mongo: mongoConfig{
			uri:      "mongodb://localhost:27017",
			database: "efish",
		},
		auth: auth.ServiceConfig{
			ResetTokenExpiry: time.Hour,
		},
		tasks: task.ServiceConfig{
			PerPage: task.DefaultPerPage,
		},
		email: emailConfig{
			driver: emailLog,
			postmark: postmark.Settings{
				APIURL:        must(url.Parse("https://api.postmarkapp.com")),
				MessageStream: "outbound",
			},
			mailgun: mailgun.Settings{
				APIHost: "api.mailgun.net",
			},
			smtp: smtp.Settings{
				Port: "587",
			},
		},
	}
}

// requiredKeys are the env variables that have no sane default.
var requiredKeys = []string{
	"SECRET_KEY",
	"HTTP_COOKIE_KEYS",
	"HTTP_CSRF_KEY",
	"DB_BLIND_INDEX_SALT",
	"DB_ENCRYPTION_KEYS",
	"EMAIL_FROM",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"APP_ENV": func(v string, c *config) error {
		return confNonEmpty(v, &c.http.server.Environment)
	},
	"BASE_URL": func(v string, c *config) error {
		return confAbsURL(v, &c.baseURL)
	},
	"SECRET_KEY": func(v string, c *config) error {
		return confKey(v, &c.secretKey)
	},
	"LOG_LEVEL": func(v string, c *config) error {
		l, err := logging.ParseLevel(v)
		if err != nil {
			return err
		}
		c.log.level = l
		return nil
	},
	"LOGSTASH_TCP_ADDR": func(v string, c *config) error {
		c.log.logstashAddr = v
		return nil
	},
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_COOKIE_KEYS": func(v string, c *config) error {
		return confKeys(v, &c.http.cookieKeys)
	},
	"HTTP_CSRF_KEY": func(v string, c *config) error {
		return confKey(v, &c.http.server.CSRFKey)
	},
	"HTTP_SECURE_COOKIE": func(v string, c *config) error {
		return confBool(v, &c.http.server.SecureCookie)
	},
	"HTTP_VIEW_DIR": func(v string, c *config) error {
		c.http.viewDir = v
		return nil
	},
	"HTTP_RESET_RATE_INTERVAL": func(v string, c *config) error {
		return confDuration(v, &c.http.server.ResetRateInterval, 0, math.MaxInt64)
	},
	"HTTP_RESET_RATE_BURST": func(v string, c *config) error {
		return confInt(v, &c.http.server.ResetRateBurst, 1, 1000)
	},
	"STORE_DRIVER": func(v string, c *config) error {
		return confOneOf(v, &c.db.driver, storeSQLite, storeMongo)
	},
	"DB_FILENAME": func(v string, c *config) error {
		return confNonEmpty(v, &c.db.file)
	},
	"DB_MIGRATE": func(v string, c *config) error {
		return confBool(v, &c.db.migrate)
	},
	"DB_BLIND_INDEX_SALT": func(v string, c *config) error {
		return confKey(v, &c.db.blindIndexSalt)
	},
	"DB_ENCRYPTION_KEYS": func(v string, c *config) error {
		return confKeys(v, &c.db.encryptionKeys)
	},
	"MONGO_URI": func(v string, c *config) error {
		if !strings.HasPrefix(v, "mongodb://") && !strings.HasPrefix(v, "mongodb+srv://") {
			return errors.New("expected a mongodb:// or mongodb+srv:// uri")
		}
		c.mongo.uri = v
		return nil
	},
	"MONGO_DATABASE": func(v string, c *config) error {
		return confNonEmpty(v, &c.mongo.database)
	},
	"REDIS_ADDR": func(v string, c *config) error {
		c.redis.addr = v
		return nil
	},
	"REDIS_PASSWORD": func(v string, c *config) error {
		c.redis.password = krypto.NewSecret(v)
		return nil
	},
	"REDIS_DB": func(v string, c *config) error {
		return confInt(v, &c.redis.db, 0, 15)
	},
	"AUTH_RESET_TOKEN_EXPIRY": func(v string, c *config) error {
		return confDuration(v, &c.auth.ResetTokenExpiry, time.Minute, 7*24*time.Hour)
	},
	"AUTH_RESET_SINGLE_USE": func(v string, c *config) error {
		return confBool(v, &c.auth.SingleUseResetTokens)
	},
	"TASKS_PER_PAGE": func(v string, c *config) error {
		return confInt(v, &c.tasks.PerPage, 1, 100)
	},
	"EMAIL_DRIVER": func(v string, c *config) error {
		return confOneOf(v, &c.email.driver, emailLog, emailPostmark, emailMailgun, emailSMTP)
	},
	"EMAIL_FROM": func(v string, c *config) error {
		addr, err := email.ParseAddress(v)
		if err != nil {
			return err
		}
		c.email.service.From = addr
		return nil
	},
	"EMAIL_VIEW_DIR": func(v string, c *config) error {
		c.email.viewDir = v
		return nil
	},
	"POSTMARK_API_URL": func(v string, c *config) error {
		return confAbsURL(v, &c.email.postmark.APIURL)
	},
	"POSTMARK_SERVER_TOKEN": func(v string, c *config) error {
		c.email.postmark.ServerToken = krypto.NewSecret(v)
		return nil
	},
	"POSTMARK_MESSAGE_STREAM": func(v string, c *config) error {
		return confNonEmpty(v, &c.email.postmark.MessageStream)
	},
	"MAILGUN_API_HOST": func(v string, c *config) error {
		return confNonEmpty(v, &c.email.mailgun.APIHost)
	},
	"MAILGUN_DOMAIN": func(v string, c *config) error {
		return confNonEmpty(v, &c.email.mailgun.Domain)
	},
	"MAILGUN_USERNAME": func(v string, c *config) error {
		c.email.mailgun.Username = v
		return nil
	},
	"MAILGUN_PASSWORD": func(v string, c *config) error {
		c.email.mailgun.Password = krypto.NewSecret(v)
		return nil
	},
	"SMTP_HOST": func(v string, c *config) error {
		return confNonEmpty(v, &c.email.smtp.Host)
	},
	"SMTP_PORT": func(v string, c *config) error {
		var port int
		err := confInt(v, &port, 1, math.MaxUint16)
		if err != nil {
			return err
		}
		c.email.smtp.Port = strconv.Itoa(port)
		return nil
	},
	"SMTP_USERNAME": func(v string, c *config) error {
		c.email.smtp.Username = v
		return nil
	},
	"SMTP_PASSWORD": func(v string, c *config) error {
		c.email.smtp.Password = krypto.NewSecret(v)
		return nil
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// Variables from the .env file (or the file in ENV_FILE) are loaded first,
// they never overwrite variables that are already set.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work. Every invalid variable is reported, not just
// the first one.
func configFromEnv() (config, error) {
	c := defaultConfig()

	err := loadEnvFile()
	if err != nil {
		return c, err
	}

	var errs []error
	for _, key := range requiredKeys {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	return c, errors.Join(errs...)
}

func loadEnvFile() error {
	file, explicit := os.LookupEnv("ENV_FILE")
	if !explicit {
		file = defaultEnvFile
	}

	err := godotenv.Load(file)
	if err == nil {
		return nil
	}

	// Only a missing default file is fine, a missing explicit one is a
	// typo waiting to happen.
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}

	return fmt.Errorf("failed to load env file %s: %w", file, err)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

// confInt attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confInt(v string, tgt *int, min, max int) error {
	i, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if i < min || i > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", i, min, max)
	}

	*tgt = i

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

func confNonEmpty(v string, tgt *string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("can't be empty")
	}

	*tgt = v

	return nil
}

func confOneOf(v string, tgt *string, options ...string) error {
	for _, o := range options {
		if v == o {
			*tgt = v
			return nil
		}
	}

	return fmt.Errorf("%q is not one of %s", v, strings.Join(options, ", "))
}

// confAbsURL parses an absolute URL, it needs a scheme and a host.
func confAbsURL(v string, tgt **url.URL) error {
	u, err := url.Parse(v)
	if err != nil {
		return err
	}

	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q needs a scheme and a host", v)
	}

	*tgt = u

	return nil
}

func confKey(v string, tgt *krypto.Key) error {
	k, err := krypto.ParseKey(v)
	if err != nil {
		return err
	}

	*tgt = k

	return nil
}

func confKeys(v string, tgt *[]krypto.Key) error {
	keys, err := krypto.ParseKeys(v)
	if err != nil {
		return err
	}

	*tgt = keys

	return nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
