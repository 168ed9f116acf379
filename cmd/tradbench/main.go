// CLAUDE:SUMMARY Entry point for the translation workbench HTTP service — config, slog, Basic Auth, optional MCP stdio.
package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tradbench/httpapi"
	"github.com/hazyhaar/tradbench/translate"
	"github.com/hazyhaar/tradbench/workbench"
)

type appConfig struct {
	Listen     string           `yaml:"listen"`
	Translator translate.Config `yaml:"translator"`
	Workbench  workbench.Config `yaml:"workbench"`
	HTTP       httpapi.Config   `yaml:"http"`
	Auth       authConfig       `yaml:"auth"`
}

type authConfig struct {
	// User enables Basic Auth when non-empty. The password is verified
	// against PasswordHash (bcrypt).
	User         string `yaml:"user"`
	PasswordHash string `yaml:"password_hash"`
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{Listen: ":8080"}

	if path := env("CONFIG", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Env overrides.
	if port := env("PORT", ""); port != "" {
		cfg.Listen = ":" + port
	}
	if key := env("TRANSLATE_API_KEY", ""); key != "" {
		cfg.Translator.APIKey = key
	}
	if endpoint := env("TRANSLATE_ENDPOINT", ""); endpoint != "" {
		cfg.Translator.Endpoint = endpoint
	}
	if model := env("TRANSLATE_MODEL", ""); model != "" {
		cfg.Translator.Model = model
	}
	if user := env("AUTH_USER", ""); user != "" {
		cfg.Auth.User = user
	}
	if password := env("AUTH_PASSWORD", ""); password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return cfg, fmt.Errorf("hash password: %w", err)
		}
		cfg.Auth.PasswordHash = string(hash)
	}
	return cfg, nil
}

func main() {
	logger := setupLogger(env("LOG_LEVEL", "info"))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg.Workbench.Translator = translate.New(cfg.Translator)
	cfg.Workbench.Logger = logger
	wb, err := workbench.New(cfg.Workbench)
	if err != nil {
		logger.Error("workbench", "error", err)
		os.Exit(1)
	}
	defer wb.Close()

	go wb.Run(ctx)

	// Optional MCP over stdio.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "tradbench",
			Version: "1.0.0",
		}, nil)
		wb.RegisterMCP(mcpSrv)
		go func() {
			logger.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("MCP stdio", "error", err)
			}
		}()
	}

	cfg.HTTP.Logger = logger
	var handler http.Handler = httpapi.NewServer(wb, cfg.HTTP).Router()
	if cfg.Auth.User != "" {
		handler = basicAuth(cfg.Auth, handler)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("tradbench listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}
	logger.Info("tradbench stopped")
}

func basicAuth(cfg authConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="tradbench"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
