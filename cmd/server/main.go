// Command server runs the efish web application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/efish/efish/assets"
	"github.com/efish/efish/internal"
	"github.com/efish/efish/internal/account"
	accountdb "github.com/efish/efish/internal/account/db"
	"github.com/efish/efish/internal/auth"
	authdb "github.com/efish/efish/internal/auth/db"
	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/db/migrate"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/email/mailgun"
	"github.com/efish/efish/internal/email/postmark"
	"github.com/efish/efish/internal/email/smtp"
	emailview "github.com/efish/efish/internal/email/view"
	"github.com/efish/efish/internal/krypto"
	"github.com/efish/efish/internal/logging"
	"github.com/efish/efish/internal/mongostore"
	"github.com/efish/efish/internal/redisledger"
	"github.com/efish/efish/internal/task"
	taskdb "github.com/efish/efish/internal/task/db"
	"github.com/efish/efish/internal/web"
	"github.com/efish/efish/internal/web/sessions"
	"github.com/efish/efish/internal/web/view"
	"github.com/efish/efish/migrations"
)

// emailClientTimeout bounds the requests to the email APIs.
const emailClientTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := logging.New(w, slog.LevelInfo, nil)

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	if cfg.log.logstashAddr != "" {
		lw, err := logging.NewLogstashWriter(cfg.log.logstashAddr, logging.DefaultLogstashConfig())
		if err != nil {
			logger.Error("failed to create logstash writer", "error", err)
			return 1
		}

		defer func() {
			if err := lw.Close(); err != nil {
				logger.Error("failed to close logstash writer", "error", err)
			}
		}()

		logger = logging.New(w, cfg.log.level, lw)
	} else {
		logger = logging.New(w, cfg.log.level, nil)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "driver", cfg.db.driver, "error", err)
		return 1
	}

	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close stores", "error", err)
		}
	}()

	srv, err := newHTTPServer(cfg, logger, st)
	if err != nil {
		logger.Error("failed to create http server", "error", err)
		return 1
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"store", cfg.db.driver,
			"emailDriver", cfg.email.driver,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

func newHTTPServer(cfg config, logger *slog.Logger, st *stores) (*http.Server, error) {
	sender, err := newEmailSender(cfg.email, logger)
	if err != nil {
		return nil, err
	}

	var emailRenderer email.Renderer
	if cfg.email.viewDir != "" {
		logger.Info("loading email templates from disk", "dir", cfg.email.viewDir)
		emailRenderer = emailview.NewFSRenderer(os.DirFS(cfg.email.viewDir))
	} else {
		emailRenderer, err = emailview.NewMemRenderer(assets.EmailFS)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email templates: %w", err)
		}
	}

	mailer, err := email.NewService(emailRenderer, sender, cfg.email.service)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}

	signer, err := krypto.NewTimedSigner(cfg.secretKey, auth.PasswordResetPurpose)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}

	accounts := account.NewService(st.accounts)

	authSvc, err := auth.NewService(auth.ServiceDeps{
		Store:    st.users,
		Accounts: accounts,
		Mailer:   mailer,
		Links:    web.Links{BaseURL: cfg.baseURL},
		Signer:   signer,
		Ledger:   st.ledger,
		ErrFunc: func(err error) {
			logger.Error("auth service error", "error", err)
		},
	}, cfg.auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	sessionStore, err := sessions.NewCookieStore(cfg.http.cookieKeys, cfg.http.server.SecureCookie)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	var viewRenderer web.ViewRenderer
	if cfg.http.viewDir != "" {
		// Views are parsed on every request, so they can be edited
		// without restarting the server.
		logger.Info("loading templates from disk", "dir", cfg.http.viewDir)
		viewRenderer = view.NewFSRenderer(os.DirFS(cfg.http.viewDir))
	} else {
		viewRenderer, err = view.NewMemRenderer(assets.TemplateFS)
		if err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
	}

	server := web.NewServer(&web.ServerDeps{
		Logger:         logger,
		ViewRenderer:   viewRenderer,
		AuthService:    authSvc,
		AccountService: accounts,
		TaskService:    task.NewService(st.tasks, cfg.tasks),
		SessionStore:   sessionStore,
		DistFS:         assets.DistFS,
	}, cfg.http.server)

	return &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler:      server,
	}, nil
}

// stores are the storage backends of the services.
type stores struct {
	users    auth.Store
	accounts account.Store
	tasks    task.Store
	ledger   auth.TokenLedger
	closers  []func() error
}

func (s *stores) close() error {
	var errs []error
	// Close in reverse order of opening.
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openStores opens the store selected by STORE_DRIVER. Consumed reset
// tokens are kept in Redis when REDIS_ADDR is set, otherwise in the
// store itself.
func openStores(ctx context.Context, cfg config, logger *slog.Logger) (*stores, error) {
	var (
		st  *stores
		err error
	)

	switch cfg.db.driver {
	case storeMongo:
		st, err = openMongo(ctx, cfg)
	default:
		st, err = openSQLite(ctx, cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	if cfg.redis.addr == "" {
		return st, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.redis.addr,
		Password: string(cfg.redis.password.SecretValue()),
		DB:       cfg.redis.db,
	})
	st.closers = append(st.closers, client.Close)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping redis: %w", err), st.close())
	}

	logger.Info("using redis token ledger", "addr", cfg.redis.addr)
	st.ledger = redisledger.New(client, redisledger.DefaultPrefix)

	return st, nil
}

func openSQLite(ctx context.Context, cfg config, logger *slog.Logger) (*stores, error) {
	st := &stores{}

	writeDB, err := db.OpenSQLite(cfg.db.file, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open write db: %w", err)
	}
	st.closers = append(st.closers, writeDB.Close)

	readDB, err := db.OpenSQLite(cfg.db.file, false)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open read db: %w", err), st.close())
	}
	st.closers = append(st.closers, readDB.Close)

	if cfg.db.migrate {
		logger.Info("attempting to migrate database", "file", cfg.db.file)

		ran, err := migrate.RunFS(ctx, writeDB, migrations.FS, migrate.Metadata{
			AppVersion: internal.Version(),
			Timestamp:  time.Now(),
		})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to migrate database: %w", err), st.close())
		}

		for _, m := range ran {
			logger.Info("migration ran", "sequence", m.Sequence, "filename", m.Filename)
		}
	}

	encryptor, err := krypto.NewEncryptor(cfg.db.encryptionKeys)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create encryptor: %w", err), st.close())
	}

	st.users = authdb.New(writeDB, readDB, encryptor, cfg.db.blindIndexSalt)
	st.accounts = accountdb.New(writeDB, readDB)
	st.tasks = taskdb.New(writeDB, readDB)
	st.ledger = authdb.NewLedger(writeDB)

	return st, nil
}

func openMongo(ctx context.Context, cfg config) (*stores, error) {
	client, err := mongostore.Connect(ctx, cfg.mongo.uri)
	if err != nil {
		return nil, err
	}

	st := &stores{
		closers: []func() error{
			func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return client.Disconnect(ctx)
			},
		},
	}

	ms, err := mongostore.New(ctx, client, cfg.mongo.database)
	if err != nil {
		return nil, errors.Join(err, st.close())
	}

	st.users = ms
	st.accounts = ms
	st.tasks = ms
	st.ledger = ms

	return st, nil
}

// newEmailSender creates the sender selected by EMAIL_DRIVER and checks
// that it has the settings it needs.
func newEmailSender(cfg emailConfig, logger *slog.Logger) (email.Sender, error) {
	client := &http.Client{Timeout: emailClientTimeout}

	switch cfg.driver {
	case emailPostmark:
		if cfg.postmark.ServerToken.IsZero() {
			return nil, errors.New("POSTMARK_SERVER_TOKEN is required for the postmark driver")
		}
		return postmark.NewSender(client, cfg.postmark), nil
	case emailMailgun:
		if cfg.mailgun.Domain == "" || cfg.mailgun.Password.IsZero() {
			return nil, errors.New("MAILGUN_DOMAIN and MAILGUN_PASSWORD are required for the mailgun driver")
		}
		return mailgun.NewSender(client, cfg.mailgun), nil
	case emailSMTP:
		if cfg.smtp.Host == "" {
			return nil, errors.New("SMTP_HOST is required for the smtp driver")
		}
		return smtp.NewSender(cfg.smtp), nil
	default:
		logger.Warn("emails are logged instead of sent, they contain sensitive data")
		return email.NewLogSender(logger), nil
	}
}
