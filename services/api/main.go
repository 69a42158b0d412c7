// Сервис доски соседей: анкеты, поиск, запросы на знакомство, события,
// сообщения с индикатором набора и каналом изменений по WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dormlink/internal/config"
	"github.com/dormlink/internal/handler"
	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/push"
	"github.com/dormlink/internal/realtime"
	"github.com/dormlink/internal/repository"
	"github.com/dormlink/internal/startup"
	"github.com/dormlink/internal/storage"
	"github.com/dormlink/internal/storage/memory"
	"github.com/dormlink/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()
	cfg.MustValidate(*dev)

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}

	// После рестарта никто не онлайн: флаги выставляются заново живыми клиентами.
	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := pool.Exec(resetCtx, "UPDATE profiles SET is_online = false"); err != nil {
		logger.Errorf("reset online status: %v", err)
	}
	resetCancel()
	logger.Info("database connected, migrations applied")

	var sessions storage.SessionStore
	if *dev {
		sessions = memory.New()
		logger.Info("sessions: in-memory store (-dev)")
	} else {
		sessions = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
	}
	defer sessions.Close()

	hub := realtime.NewHub(nil, cfg.MaxWSConnections)

	accountRepo := repository.NewAccountRepository(pool)
	profileRepo := repository.NewProfileRepository(pool, hub)
	interestRepo := repository.NewInterestRepository(pool)
	matchRepo := repository.NewMatchRepository(pool, hub)
	eventRepo := repository.NewEventRepository(pool, hub)
	convRepo := repository.NewConversationRepository(pool, hub)
	msgRepo := repository.NewMessageRepository(pool, hub)
	typingRepo := repository.NewTypingRepository(pool, hub)
	pushRepo := repository.NewPushSubscriptionRepository(pool)
	hub.SetPresence(profileRepo)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	if cfg.PushVAPIDPublicKey == "" || cfg.PushVAPIDPrivateKey == "" {
		if keys, err := push.EnsureVAPIDKeys(""); err == nil {
			cfg.PushVAPIDPublicKey = keys.PublicKey
			cfg.PushVAPIDPrivateKey = keys.PrivateKey
		} else {
			logger.Infof("VAPID: не удалось загрузить/сгенерировать ключи: %v — push отключены", err)
		}
	}
	pushSender := push.NewSender(pushRepo, cfg.PushVAPIDPublicKey, cfg.PushVAPIDPrivateKey)

	authH := handler.NewAuthHandler(accountRepo, profileRepo, sessions)
	profileH := handler.NewProfileHandler(profileRepo, interestRepo)
	matchH := handler.NewMatchHandler(matchRepo, profileRepo)
	eventH := handler.NewEventHandler(eventRepo)
	convH := handler.NewConversationHandler(convRepo, msgRepo, matchRepo, profileRepo)
	msgH := handler.NewMessageHandler(convH, msgRepo, convRepo, profileRepo, hub, pushSender)
	typingH := handler.NewTypingHandler(convH, typingRepo)
	pushH := handler.NewPushHandler(pushRepo, cfg.PushVAPIDPublicKey)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(cfg.APIAnonKey))

		r.Post("/api/auth/register", authH.Register)
		r.Post("/api/auth/login", authH.Login)
		r.Get("/api/push/vapid-public", pushH.VAPIDPublic)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(sessions))

			r.Post("/api/auth/logout", authH.Logout)
			r.Get("/api/auth/me", authH.GetMe)

			r.Get("/api/interests", profileH.ListInterests)
			r.Put("/api/profiles/me", profileH.UpsertProfile)
			r.Put("/api/profiles/me/presence", profileH.UpdatePresence)
			r.Get("/api/profiles", profileH.SearchProfiles)
			r.Get("/api/profiles/{id}", profileH.GetProfile)

			r.Get("/api/matches", matchH.ListMatches)
			r.Post("/api/matches", matchH.CreateMatch)
			r.Post("/api/matches/{id}/accept", matchH.AcceptMatch)
			r.Delete("/api/matches/{id}", matchH.RejectMatch)

			r.Get("/api/events", eventH.ListEvents)
			r.Post("/api/events", eventH.CreateEvent)
			r.Post("/api/events/{id}/join", eventH.JoinEvent)
			r.Delete("/api/events/{id}/join", eventH.LeaveEvent)

			r.Get("/api/conversations", convH.ListConversations)
			r.Post("/api/conversations", convH.OpenConversation)
			r.Get("/api/conversations/{id}/messages", msgH.GetMessages)
			r.Post("/api/conversations/{id}/messages", msgH.SendMessage)
			r.Post("/api/conversations/{id}/read", msgH.MarkRead)
			r.Put("/api/conversations/{id}/typing", typingH.SetTyping)

			r.Post("/api/push/subscribe", pushH.Subscribe)
			r.Delete("/api/push/subscribe", pushH.Unsubscribe)

			r.Get("/ws", wsH.ServeWS)
		})
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := migrations.Files.ReadFile(e.Name())
		if err != nil {
			logger.Errorf("read migration %s: %v", e.Name(), err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", e.Name(), err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "dormlink"
		password = "dormlink_secret"
		database = "dormlink"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
