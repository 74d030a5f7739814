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

	firebase "firebase.google.com/go/v4"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/PabloGalante/chatrelay/internal/adapters/auth"
	httpadapter "github.com/PabloGalante/chatrelay/internal/adapters/http"
	"github.com/PabloGalante/chatrelay/internal/adapters/llm"
	"github.com/PabloGalante/chatrelay/internal/adapters/lock"
	firestorestore "github.com/PabloGalante/chatrelay/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatrelay/internal/adapters/storage/rtdb"
	sqlitestore "github.com/PabloGalante/chatrelay/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/session"
	"github.com/PabloGalante/chatrelay/internal/config"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	observability.Configure(os.Stdout, cfg.LogLevel)
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	sessionSvc := session.NewService(deps.sessions, deps.messages, deps.locker)
	chatSvc := conversation.NewService(
		deps.llm, deps.sessions, deps.messages, deps.locker,
		conversation.WithHistoryLimit(cfg.HistoryLimit),
		conversation.WithCompletionTimeout(cfg.LLMTimeout),
	)

	e := httpadapter.NewServer(httpadapter.ServerConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Verifier:       deps.verifier,
	}, sessionSvc, chatSvc)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("chatrelay listening",
		"port", cfg.Port,
		"auth", cfg.AuthBackend,
		"store", cfg.StoreBackend,
		"llm", cfg.LLMProvider,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down gracefully", "error", err)
	}

	log.Info("chatrelay stopped")
	return nil
}

type deps struct {
	sessions domain.SessionStore
	messages domain.MessageStore
	locker   domain.SessionLocker
	verifier domain.TokenVerifier
	llm      domain.CompletionProvider

	closers []func() error
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			observability.Logger().Warn("close failed", "error", err)
		}
	}
}

func buildDeps(ctx context.Context, cfg *config.Config) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	var gcpOpts []option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		gcpOpts = append(gcpOpts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	}

	var app *firebase.App
	if cfg.UsesFirebase() {
		app, err = firebase.NewApp(ctx, &firebase.Config{
			ProjectID:   cfg.GCPProjectID,
			DatabaseURL: cfg.FirebaseDatabaseURL,
		}, gcpOpts...)
		if err != nil {
			return nil, fmt.Errorf("initializing firebase: %w", err)
		}
	}

	if err := d.buildStores(ctx, cfg, app, gcpOpts); err != nil {
		return nil, err
	}
	if err := d.buildVerifier(ctx, cfg, app); err != nil {
		return nil, err
	}
	if err := d.buildLocker(ctx, cfg); err != nil {
		return nil, err
	}
	if err := d.buildLLM(ctx, cfg); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *deps) buildStores(ctx context.Context, cfg *config.Config, app *firebase.App, gcpOpts []option.ClientOption) error {
	log := observability.Logger()

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		var fsStore *firestorestore.Store
		if app != nil {
			client, err := app.Firestore(ctx)
			if err != nil {
				return fmt.Errorf("initializing firestore store: %w", err)
			}
			fsStore = firestorestore.NewStoreFromClient(client)
		} else {
			var err error
			fsStore, err = firestorestore.NewStore(ctx, cfg.GCPProjectID, gcpOpts...)
			if err != nil {
				return fmt.Errorf("initializing firestore store: %w", err)
			}
		}
		d.closers = append(d.closers, fsStore.Close)
		// 1 store, implements 2 interfaces
		d.sessions, d.messages = fsStore, fsStore

	case config.StoreRTDB:
		log.Info("using realtime database storage", "url", cfg.FirebaseDatabaseURL)
		client, err := app.Database(ctx)
		if err != nil {
			return fmt.Errorf("initializing realtime database: %w", err)
		}
		store := rtdb.NewStore(client)
		d.sessions, d.messages = store, store

	case config.StoreSQLite:
		log.Info("using sqlite storage", "dsn", cfg.SQLiteDSN)
		store, err := sqlitestore.NewStore(cfg.SQLiteDSN)
		if err != nil {
			return fmt.Errorf("initializing sqlite store: %w", err)
		}
		d.closers = append(d.closers, store.Close)
		d.sessions, d.messages = store, store

	default:
		log.Info("using in-memory storage")
		d.sessions = memstore.NewSessionStore()
		d.messages = memstore.NewMessageStore()
	}
	return nil
}

func (d *deps) buildVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	switch cfg.AuthBackend {
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("initializing firebase auth: %w", err)
		}
		d.verifier = auth.NewFirebaseVerifier(client)
	default:
		v, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return err
		}
		d.verifier = v
	}
	return nil
}

func (d *deps) buildLocker(ctx context.Context, cfg *config.Config) error {
	if cfg.RedisURL == "" {
		d.locker = lock.NewLocal()
		return nil
	}
	r, err := lock.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("initializing redis lock: %w", err)
	}
	d.closers = append(d.closers, r.Close)
	d.locker = r
	return nil
}

func (d *deps) buildLLM(ctx context.Context, cfg *config.Config) error {
	log := observability.Logger()

	switch cfg.LLMProvider {
	case config.LLMGemini:
		log.Info("using gemini completion provider", "model", cfg.GeminiModel, "vertex", cfg.GeminiUseVertex)
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			UseVertex: cfg.GeminiUseVertex,
			Project:   cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			Model:     cfg.GeminiModel,
		})
		if err != nil {
			return fmt.Errorf("initializing gemini client: %w", err)
		}
		d.llm = client

	case config.LLMOpenAI:
		log.Info("using openai completion provider", "model", cfg.OpenAIModel)
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return fmt.Errorf("initializing openai client: %w", err)
		}
		d.llm = client

	default:
		log.Info("using mock completion provider")
		d.llm = llm.NewMockLLM()
	}
	return nil
}
