package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/microfin/pkg/config"
	"github.com/mcclellann/microfin/pkg/ledger"
	"github.com/mcclellann/microfin/pkg/quote"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/sirupsen/logrus"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	quotes  *quote.Service
	storage store.Storage // Keep a reference to the storage to close it
	log     *logrus.Logger
}

func NewServer(s store.Storage, l *ledger.Ledger, q *quote.Service, log *logrus.Logger) *Server {
	return &Server{
		ledger:  l,
		quotes:  q,
		storage: s,
		log:     log,
	}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	router.HandleFunc("/quotes", s.quoteHandler).Methods("POST")

	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PATCH")
	router.HandleFunc("/loans/{id}/schedule", s.scheduleHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/transitions", s.transitionHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/cancel", s.cancelLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payments", s.submitPaymentHandler).Methods("POST")

	router.HandleFunc("/references/{reference}", s.referenceHandler).Methods("GET")

	router.HandleFunc("/payments/{id}/approve", s.approvePaymentHandler).Methods("POST")
	router.HandleFunc("/payments/{id}/reject", s.rejectPaymentHandler).Methods("POST")
	return router
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Request completed")
	})
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}

// newQuoteCache uses Redis when an address is configured and reachable, and
// falls back to an in-process cache otherwise.
func newQuoteCache(addr string, logger *logrus.Logger) quote.Cache {
	if addr == "" {
		return quote.NewMemoryCache()
	}
	rc := quote.NewRedisCache(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		logger.WithError(err).WithField("addr", addr).Warn("Redis unavailable, caching quotes in memory")
		rc.Close()
		return quote.NewMemoryCache()
	}
	return rc
}

func main() {
	logger := newLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger = newLogger(cfg.LogLevel)

	sqlStore, err := store.NewSQLStore(cfg.DBDriver, cfg.DBConn, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize store: %v", err)
	}
	defer sqlStore.Close()

	l := ledger.NewLedger(sqlStore, cfg.Ledger(), logger)
	q := quote.NewService(newQuoteCache(cfg.RedisAddr, logger), cfg.QuoteCacheTTL, logger)
	server := NewServer(sqlStore, l, q, logger)

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Server failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	l.WaitNotifications()
}
