package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	brokerauth "github.com/goliatone/broker-auth"
	"github.com/goliatone/broker-auth/provider/devtoken"
	"github.com/goliatone/broker-auth/provider/firebase"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config *brokerauth.Config
	bunDB  *bun.DB
	repo   brokerauth.RepositoryManager
	srv    *fiber.App
	logger *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	_ = godotenv.Load()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("broker-auth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := brokerauth.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		lgr.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		if err := app.srv.Listen(fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil {
			lgr.Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		lgr.Error("shutdown error", "error", err)
	}

	if err := app.bunDB.Close(); err != nil {
		lgr.Error("db close error", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.DSN)
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := RunMigrations(ctx, db, app.GetLogger("migrations")); err != nil {
		return err
	}

	repo := brokerauth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.bunDB = db
	app.repo = repo

	return nil
}

// RunMigrations applies the embedded schema files in lexical order. The
// statements are idempotent, so replaying on every boot is safe.
func RunMigrations(ctx context.Context, db *bun.DB, logger glog.Logger) error {
	root := "data/sql/migrations"

	var files []string
	err := fs.WalkDir(brokerauth.GetMigrationsFS(), root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		raw, err := fs.ReadFile(brokerauth.GetMigrationsFS(), file)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		logger.Info("applied migration", "file", file)
	}

	return nil
}

func NewProvider(ctx context.Context, app *App) (brokerauth.IdentityProvider, error) {
	switch app.config.Provider {
	case "firebase":
		return firebase.NewIdentityProvider(ctx, firebase.ConfigFromEnv())
	case "devtoken":
		return devtoken.NewIdentityProvider(app.config.DevTokenSecret)
	default:
		return nil, fmt.Errorf("unknown auth provider: %s", app.config.Provider)
	}
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config

	provider, err := NewProvider(ctx, app)
	if err != nil {
		return err
	}

	users := app.repo.Users()
	allowlist := brokerauth.NewAllowlist(
		strings.Join(cfg.AllowedPhones, ","),
		strings.Join(cfg.AdminPhones, ","),
	)

	notifier := brokerauth.NewWebhookNotifier(cfg.WebhookURLs,
		brokerauth.WithNotifierLogger(app.GetLogger("notify")),
	)

	issuer := brokerauth.NewSessionIssuer(provider, users, allowlist,
		brokerauth.WithSessionTTL(cfg.SessionTTL()),
		brokerauth.WithPendingNotifier(notifier),
		brokerauth.WithIssuerLogger(app.GetLogger("issuer")),
	)

	sessions := brokerauth.NewSessionValidator(provider, users,
		brokerauth.WithCookieName(cfg.CookieName),
		brokerauth.WithValidatorLogger(app.GetLogger("sessions")),
	)

	controller := brokerauth.NewHTTPController(issuer, sessions, users, provider,
		brokerauth.WithControllerLogger(app.GetLogger("http")),
		brokerauth.WithSecureCookies(cfg.IsProduction()),
		brokerauth.WithDevWebhook(!cfg.IsProduction()),
	)

	srv := fiber.New(fiber.Config{
		AppName:               "broker-auth",
		DisableStartupMessage: cfg.IsProduction(),
	})

	if len(cfg.AllowedOrigins) > 0 {
		srv.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,PATCH,OPTIONS",
			AllowHeaders:     "Content-Type,X-Request-Id",
			AllowCredentials: true,
		}))
	}

	srv.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	controller.RegisterRoutes(srv)

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
