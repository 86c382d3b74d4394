package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/auth"
	authPostgres "github.com/ortizpassos/trustpay/internal/auth/postgres"
	"github.com/ortizpassos/trustpay/internal/card"
	cardPostgres "github.com/ortizpassos/trustpay/internal/card/postgres"
	"github.com/ortizpassos/trustpay/internal/core/events"
	"github.com/ortizpassos/trustpay/internal/gateway"
	"github.com/ortizpassos/trustpay/internal/installment"
	"github.com/ortizpassos/trustpay/internal/merchant"
	merchantPostgres "github.com/ortizpassos/trustpay/internal/merchant/postgres"
	"github.com/ortizpassos/trustpay/internal/transaction"
	transactionBolt "github.com/ortizpassos/trustpay/internal/transaction/bolt"
	transactionPostgres "github.com/ortizpassos/trustpay/internal/transaction/postgres"
	"github.com/ortizpassos/trustpay/internal/transport"
	"github.com/ortizpassos/trustpay/internal/transport/rest"
	"github.com/ortizpassos/trustpay/internal/transport/swagger"
	"github.com/ortizpassos/trustpay/internal/user"
	userPostgres "github.com/ortizpassos/trustpay/internal/user/postgres"
	"github.com/ortizpassos/trustpay/internal/vault"
	"github.com/ortizpassos/trustpay/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle user and merchant API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies is the fully wired application shared by the server and the maintenance commands.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Logger   *slog.Logger
	EventBus *events.EventBus

	Vault        *vault.Vault
	Merchants    *merchant.Service
	Users        *user.Service
	Cards        *card.Service
	Auth         *auth.Service
	Transactions *transaction.Service

	checks  []rest.Check
	closers []func() error
}

func (d *Dependencies) Close() {
	// closers run in reverse so the database goes last
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error("failed to release resource", "error", err)
		}
	}
}

func startHTTPServer() {
	cfg := mustLoadConfig()

	deps, err := initializeDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router, err := setupRoutes(deps)
	if err != nil {
		deps.Close()
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "storage", cfg.Storage.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.EventBus.Wait()
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := swagger.Load(ctx, deps.Config.Server.OpenAPIPath)
	if err != nil {
		return nil, err
	}

	base := transport.NewBaseHandler(deps.Logger)
	authenticator := merchant.NewAuthenticator(deps.Merchants, deps.Config.Merchant.SignatureTolerance, deps.Logger)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Auth:        auth.NewHandler(base, deps.Auth),
		User:        user.NewHandler(base, deps.Users),
		Card:        card.NewHandler(base, deps.Cards),
		Transaction: transaction.NewHandler(base, deps.Transactions),
		Health:      rest.NewHealthHandler(deps.checks...),
		OpenAPI:     doc,
		Merchant:    authenticator,
	}, rest.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		Logger:         deps.Logger,
	})
	return router, nil
}

func initializeDependencies(cfg *internal.Config) (*Dependencies, error) {
	lg := logger.L()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps := &Dependencies{
		Config:  cfg,
		DB:      db,
		Logger:  lg,
		checks:  []rest.Check{{Name: "database", Ping: db.PingContext}},
		closers: []func() error{db.Close},
	}

	gormDB, err := initGorm(db)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	deps.Gorm = gormDB

	// the service refuses to start without a usable key
	v, err := vault.New([]byte(cfg.Vault.EncryptionKey))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}
	deps.Vault = v

	txRepo, err := initTransactionStore(deps)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.EventBus = events.NewEventBus(lg)
	transaction.NewEventHandler(lg).RegisterEventHandlers(deps.EventBus)

	deps.Merchants = merchant.NewService(merchantPostgres.NewMerchantRepository(gormDB), v, lg)
	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AccessTokenDuration, cfg.Security.RefreshTokenDuration)
	deps.Auth = auth.NewService(authPostgres.NewRepository(gormDB), tokens, cfg.Security.BCryptCost, lg)
	deps.Users = user.NewService(userPostgres.NewRepository(gormDB), deps.Auth, lg)
	deps.Cards = card.NewService(cardPostgres.NewCardRepository(gormDB), v, lg)

	simulator := gateway.NewSimulator(gateway.Config{
		ApprovalRate:   cfg.Payment.ApprovalRate,
		CardLatencyMin: cfg.Payment.CardLatencyMin,
		CardLatencyMax: cfg.Payment.CardLatencyMax,
		PixLatencyMin:  cfg.Payment.PixLatencyMin,
		PixLatencyMax:  cfg.Payment.PixLatencyMax,
		PixExpiry:      cfg.Payment.PixExpiry,
	}, lg)
	calculator := installment.NewCalculator(cfg.Payment.MonthlyInterestRate, cfg.Payment.MaxInstallments)

	deps.Transactions = transaction.NewService(txRepo, simulator, calculator, transaction.Config{
		PixExpiry:      cfg.Payment.PixExpiry,
		GatewayTimeout: cfg.Payment.GatewayTimeout,
	}, lg,
		transaction.WithCardStore(deps.Cards),
		transaction.WithRecipientDirectory(deps.Users),
		transaction.WithPublisher(deps.EventBus),
	)

	return deps, nil
}

func initTransactionStore(deps *Dependencies) (transaction.Repository, error) {
	switch deps.Config.Storage.Driver {
	case "bolt":
		repo, err := transactionBolt.Open(deps.Config.Storage.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open transaction store: %w", err)
		}
		deps.checks = append(deps.checks, rest.Check{Name: "transaction_store", Ping: repo.Ping})
		deps.closers = append(deps.closers, repo.Close)
		return repo, nil
	default:
		return transactionPostgres.NewTransactionRepository(deps.Gorm), nil
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the already-open pool so both share one set of connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
