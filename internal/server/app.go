// Package server assembles the chatterbox server from its parts: storage,
// services, the HTTP API with the websocket relay, the gRPC health port and
// background jobs. It also handles graceful shutdown on SIGINT, SIGTERM and
// SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/avatars"
	"github.com/dmitrijs2005/chatterbox/internal/server/config"
	"github.com/dmitrijs2005/chatterbox/internal/server/events"
	"github.com/dmitrijs2005/chatterbox/internal/server/httpapi"
	"github.com/dmitrijs2005/chatterbox/internal/server/mail"
	"github.com/dmitrijs2005/chatterbox/internal/server/metrics"
	"github.com/dmitrijs2005/chatterbox/internal/server/realtime"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatterbox/internal/server/services"
	"github.com/dmitrijs2005/chatterbox/internal/server/tracing"

	gs "github.com/dmitrijs2005/chatterbox/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager

	userService    *services.UserService
	otpService     *services.OTPService
	chatService    *services.ChatService
	messageService *services.MessageService

	hub       *realtime.Hub
	broker    realtime.Broker
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	m := metrics.New()
	publisher := newPublisher(c)
	broker := newBroker(c, logger)

	var presigner services.AvatarPresigner
	if c.S3Bucket != "" {
		presigner = avatars.NewS3Presigner(c)
	}

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		repos:          repos,
		userService:    services.NewUserService(db, repos, c, presigner, logger),
		otpService:     services.NewOTPService(db, repos, c, newMailer(c, logger), logger),
		chatService:    services.NewChatService(db, repos, logger),
		messageService: services.NewMessageService(db, repos, logger, services.WithPublisher(publisher), services.WithCreatedCounter(m.MessagesCreated)),
		hub:            realtime.NewHub(broker, logger),
		broker:         broker,
		publisher:      publisher,
		metrics:        m,
	}, nil
}

// newMailer sends through SMTP when a host is configured and logs otherwise.
func newMailer(c *config.Config, logger logging.Logger) services.Mailer {
	if c.SMTPHost != "" {
		return mail.NewSMTPMailer(c)
	}
	return mail.NewLogMailer(logger)
}

func newPublisher(c *config.Config) events.Publisher {
	if c.KafkaBrokers != "" {
		return events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
	}
	return events.NopPublisher{}
}

func newBroker(c *config.Config, logger logging.Logger) realtime.Broker {
	if c.RedisAddr != "" {
		return realtime.NewRedisBroker(c.RedisAddr, logger)
	}
	return realtime.NewLocalBroker()
}

// Handler returns the full HTTP handler: API routes, relay and metrics.
func (app *App) Handler() http.Handler {
	relay := realtime.NewRelay(app.hub, app.config.ClientOrigin, app.metrics, app.logger)

	return httpapi.NewRouter(httpapi.Deps{
		Users:        app.userService,
		OTPs:         app.otpService,
		Chats:        app.chatService,
		Messages:     app.messageService,
		Socket:       relay.Handler(),
		Metrics:      app.metrics.Handler(),
		Observer:     app.metrics,
		ClientOrigin: app.config.ClientOrigin,
		Log:          app.logger,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// prepare checks the database and brings the schema up to date.
func (app *App) prepare(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("relay broker: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	defer app.close()

	shutdownTracing, err := tracing.Setup(ctx, app.config.OTLPEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	if err := app.prepare(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.otpService.RunSweeper(ctx, app.config.OTPSweepInterval)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")

	return nil
}

func (app *App) close() {
	if err := app.publisher.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing event publisher", "error", err)
	}
	if err := app.broker.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing relay broker", "error", err)
	}
	_ = app.db.Close()
}
