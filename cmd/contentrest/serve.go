package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/auth"
	"github.com/kailas-cloud/contentrest/internal/config"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/jsonapi"
	logpkg "github.com/kailas-cloud/contentrest/internal/logger"
	"github.com/kailas-cloud/contentrest/internal/metrics"
	chiTransport "github.com/kailas-cloud/contentrest/internal/transport/chi"
	contentuc "github.com/kailas-cloud/contentrest/internal/usecase/content"
	healthuc "github.com/kailas-cloud/contentrest/internal/usecase/health"
	"github.com/kailas-cloud/contentrest/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, env, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(env, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return serve(cmd.Context(), cfg, env, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, env string, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("Starting contentrest API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("content types: %w", err)
	}

	// Register content metrics explicitly (no init())
	metrics.RegisterContentMetrics()

	backend, err := openBackend(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer backend.close()
	logger.Info("Content store ready", zap.String("driver", cfg.Database.Driver))

	directory, tokens, err := buildAuth(cfg)
	if err != nil {
		return err
	}

	contentSvc := contentuc.New(registry, backend.store, buildGate(cfg.Permissions)).
		WithDefaults(query.Defaults{
			Status:  cfg.REST.Defaults.Status,
			Limit:   cfg.REST.Defaults.Limit,
			MaxSize: cfg.REST.Defaults.MaxPageSize,
			Sort:    cfg.REST.Defaults.Sort,
		}).
		WithEditorStatus(cfg.REST.EditorStatus)
	if cfg.REST.SoftDelete.Enabled {
		contentSvc = contentSvc.WithSoftDelete(cfg.REST.SoftDelete.Status)
	}

	serializer := jsonapi.NewSerializer(registry, jsonapi.Config{
		BaseURL:       cfg.REST.Canonical,
		Endpoint:      cfg.REST.Endpoint,
		FilesPath:     cfg.REST.FilesPath,
		ThumbWidth:    cfg.REST.Thumbnail.Width,
		ThumbHeight:   cfg.REST.Thumbnail.Height,
		PrefetchLimit: cfg.REST.PrefetchLimit,
	})

	healthSvc := healthuc.New(backend.pinger, backend.indexes)

	server := chiTransport.NewServer(contentSvc, serializer, healthSvc, tokens, directory, chiTransport.Options{
		Endpoint: cfg.REST.Endpoint,
		CORS: chiTransport.CORSOptions{
			Enabled:     cfg.REST.CORS.Enabled,
			AllowOrigin: cfg.REST.CORS.AllowOrigin,
		},
		Token: chiTransport.TokenOptions{
			RequestHeader:  cfg.Auth.JWT.RequestHeaderName,
			ResponseHeader: cfg.Auth.JWT.ResponseHeaderName,
			Prefix:         cfg.Auth.JWT.Prefix,
			UserParam:      cfg.Auth.JWT.UserParam,
			PassParam:      cfg.Auth.JWT.PassParam,
		},
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", addr), zap.String("endpoint", cfg.REST.Endpoint))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func buildGate(perms map[string]config.RoleConfig) *auth.Gate {
	roles := make(map[string]auth.Policy, len(perms))
	for role, rc := range perms {
		p := auth.Policy{Actions: rc.Actions}
		for _, t := range rc.Transitions {
			p.Transitions = append(p.Transitions, auth.Transition{Type: t.Type, From: t.From, To: t.To})
		}
		roles[role] = p
	}
	return auth.NewGate(roles)
}

// buildAuth returns the user directory and, when a JWT secret is set, the
// token service. Without a secret login is disabled.
func buildAuth(cfg *config.Config) (*auth.Directory, *auth.TokenService, error) {
	users := make([]auth.User, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users = append(users, auth.User{Name: u.Name, PasswordHash: u.PasswordHash, Roles: u.Roles})
	}
	keys := make([]auth.APIKey, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys = append(keys, auth.APIKey{Key: k.Key, Name: k.Name, Roles: k.Roles})
	}
	directory := auth.NewDirectory(users, keys)

	if cfg.Auth.JWT.Secret == "" {
		return directory, nil, nil
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWT.Secret, time.Duration(cfg.Auth.JWT.LifetimeSec)*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("token service: %w", err)
	}
	return directory, tokens, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", jsonapi.MediaTypeJSON)
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(jsonapi.ErrorDocument{
						Message: "internal error",
						Errors: []jsonapi.ErrorObject{{
							Status: "500",
							Code:   "internal_error",
							Title:  "internal error",
						}},
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
