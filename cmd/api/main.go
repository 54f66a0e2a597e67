package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zayar/simplecashflow/internal/auth"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/idempotency"
	"github.com/zayar/simplecashflow/internal/integration"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/outbox"
	"github.com/zayar/simplecashflow/internal/purchases"
	"github.com/zayar/simplecashflow/internal/reports"
	"github.com/zayar/simplecashflow/internal/sales"
	"github.com/zayar/simplecashflow/internal/tenant"
)

// Config holds the application configuration
type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	IntegrationKey string
	AccessExpiry   time.Duration
	LinkExpiry     time.Duration
	AllowedOrigins []string
	EdgeLimits     auth.LimitConfig
	PublicLimits   auth.LimitConfig
}

func main() {
	_ = godotenv.Load()

	// Configure logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		log.Warn().Str("level", logLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg := loadConfig()

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("Connected to database")

	// Initialize services
	tokenService := auth.NewTokenService(cfg.JWTSecret, cfg.IntegrationKey, cfg.AccessExpiry, cfg.LinkExpiry)
	outboxRepo := outbox.NewRepository(pool)
	ledgerService := ledger.NewService(pool, outboxRepo)
	inventoryService := inventory.NewService(pool, ledgerService)
	tenantService := tenant.NewService(pool, ledgerService, inventory.NewPostgresRepository(pool))
	salesService := sales.NewService(pool, ledgerService, inventoryService, outboxRepo)
	purchasesService := purchases.NewService(pool, ledgerService, inventoryService, outboxRepo)
	integrationService := integration.NewService(pool, salesService, inventoryService, ledgerService)
	reportsService := reports.NewService(pool)
	idempotencyStore := idempotency.NewStore(pool)

	handlers := &Handlers{
		pool:               pool,
		tokenService:       tokenService,
		tenantService:      tenantService,
		ledgerService:      ledgerService,
		inventoryService:   inventoryService,
		salesService:       salesService,
		purchasesService:   purchasesService,
		integrationService: integrationService,
		reportsService:     reportsService,
		idempotencyStore:   idempotencyStore,
	}

	r := setupRouter(cfg, handlers, tokenService)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("Starting server")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func loadConfig() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change-me-in-production"
		log.Warn().Msg("Using default JWT_SECRET - change this in production!")
	}

	integrationKey := os.Getenv("INTEGRATION_KEY")
	if integrationKey == "" {
		log.Warn().Msg("INTEGRATION_KEY not set - external POS endpoints disabled")
	}

	origins := os.Getenv("ALLOWED_ORIGINS")
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}

	edgeLimits := auth.EdgeLimits()
	if rpm, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPM"), 64); err == nil && rpm > 0 {
		edgeLimits.RequestsPerMinute = rpm
	}
	if burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && burst > 0 {
		edgeLimits.Burst = burst
	}

	return &Config{
		Port:           port,
		DatabaseURL:    dbURL,
		JWTSecret:      jwtSecret,
		IntegrationKey: integrationKey,
		AccessExpiry:   15 * time.Minute,
		LinkExpiry:     30 * 24 * time.Hour,
		AllowedOrigins: allowedOrigins,
		EdgeLimits:     edgeLimits,
		PublicLimits:   auth.PublicLimits(),
	}
}

func setupRouter(cfg *Config, h *Handlers, tokenService *auth.TokenService) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(securityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Integration-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimiter := auth.NewRateLimiter(cfg.EdgeLimits)
	publicLimiter := auth.NewRateLimiter(cfg.PublicLimits)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	// Anonymous invoice view by signed token
	r.Group(func(r chi.Router) {
		r.Use(publicLimiter.Middleware)
		r.Get("/public/invoices/{token}", h.GetPublicInvoice)
	})

	// External POS integration, authenticated by shared secret
	r.Route("/integrations/piti/companies/{tenantID}", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(tokenService.IntegrationMiddleware)
		r.Use(h.IntegrationTenantContext)
		r.Post("/sales", h.ImportPitiSale)
		r.Post("/refunds", h.ImportPitiRefund)
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(tokenService.Middleware)

		r.Post("/companies", h.CreateCompany)

		r.Route("/companies/{tenantID}", func(r chi.Router) {
			r.Use(h.TenantContext)

			r.Get("/", h.GetCompany)
			r.Post("/period-close", h.SetPeriodClose)

			// Chart of accounts
			r.Get("/accounts", h.ListAccounts)
			r.Post("/accounts", h.CreateAccount)
			r.Get("/accounts/{accountID}", h.GetAccount)
			r.Post("/accounts/{accountID}/deactivate", h.DeactivateAccount)
			r.Delete("/accounts/{accountID}", h.DeleteAccount)

			// Customers & vendors
			r.Post("/customers", h.CreateCustomer)
			r.Post("/vendors", h.CreateVendor)

			// Items
			r.Get("/items", h.ListItems)
			r.Post("/items", h.CreateItem)

			// Invoices
			r.Post("/invoices", h.CreateInvoice)
			r.Get("/invoices/{invoiceID}", h.GetInvoice)
			r.Post("/invoices/{invoiceID}/post", h.PostInvoice)
			r.Post("/invoices/{invoiceID}/void", h.VoidInvoice)
			r.Post("/invoices/{invoiceID}/payments", h.RecordPayment)
			r.Post("/invoices/{invoiceID}/payments/{paymentID}/void", h.VoidPayment)
			r.Post("/invoices/{invoiceID}/public-link", h.CreateInvoicePublicLink)

			// Credit notes & customer advances
			r.Post("/credit-notes", h.IssueCreditNote)
			r.Post("/credit-notes/{creditNoteID}/apply", h.ApplyCreditNote)
			r.Post("/customer-advances", h.ReceiveCustomerAdvance)
			r.Post("/customer-advances/{advanceID}/apply", h.ApplyCustomerAdvance)

			// Purchase bills
			r.Post("/purchase-bills", h.CreateBill)
			r.Get("/purchase-bills/{billID}", h.GetBill)
			r.Post("/purchase-bills/{billID}/post", h.PostBill)
			r.Post("/purchase-bills/{billID}/void", h.VoidBill)
			r.Post("/purchase-bills/{billID}/payments", h.RecordBillPayment)
			r.Post("/purchase-bills/{billID}/payments/{paymentID}/void", h.VoidBillPayment)

			// Vendor credits & advances
			r.Post("/vendor-credits", h.IssueVendorCredit)
			r.Post("/vendor-credits/{creditID}/apply", h.ApplyVendorCredit)
			r.Post("/vendor-advances", h.PayVendorAdvance)
			r.Post("/vendor-advances/{advanceID}/apply", h.ApplyVendorAdvance)

			// Inventory
			r.Post("/inventory/adjustments", h.AdjustStock)
			r.Get("/inventory/balances/{locationID}/{itemID}", h.GetStockBalance)

			// Reports
			r.Get("/reports/profit-loss", h.GetProfitLoss)
			r.Get("/reports/balance-sheet", h.GetBalanceSheet)
			r.Get("/reports/receivables-summary", h.GetReceivablesSummary)
			r.Get("/reports/payables-summary", h.GetPayablesSummary)
			r.Get("/reports/receivables-aging", h.GetReceivablesAging)
			r.Get("/reports/payables-aging", h.GetPayablesAging)
			r.Get("/reports/accounts/{accountID}/transactions", h.GetAccountTransactions)
		})
	})

	return r
}

// securityHeaders sets the baseline security response headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
