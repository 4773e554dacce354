package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/auth"
	"github.com/cinevault/apiserver/internal/db"
	"github.com/cinevault/apiserver/internal/handlers"
	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/mailer"
	"github.com/cinevault/apiserver/internal/metrics"
	"github.com/cinevault/apiserver/internal/mq"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/internal/storage"
	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/internal/store/memstore"
	"github.com/cinevault/apiserver/internal/store/mongostore"
	"github.com/cinevault/apiserver/internal/video"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	closers    []func(context.Context) error
}

type repositories struct {
	users    services.UserRepository
	movies   services.MovieRepository
	comments services.CommentRepository
	ratings  services.RatingRepository
}

// New wires every dependency selected by cfg and builds the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	return build(ctx, cfg, &Server{})
}

// build wires onto s. Any failure releases what s has already opened.
func build(ctx context.Context, cfg config.Config, s *Server) (*Server, error) {
	checks := make(map[string]handlers.HealthCheck)

	repos, err := s.openRepositories(ctx, cfg.Database, checks)
	if err != nil {
		s.closeAll(ctx)
		return nil, err
	}

	sender, err := s.openMailer(ctx, cfg)
	if err != nil {
		s.closeAll(ctx)
		return nil, err
	}

	var mirror services.ThumbnailMirror
	if cfg.ObjectStorage.Backend != config.BackendNone {
		objects, err := storage.Open(ctx, cfg.ObjectStorage)
		if err != nil {
			s.closeAll(ctx)
			return nil, err
		}
		if closer, ok := objects.(io.Closer); ok {
			s.closers = append(s.closers, func(context.Context) error { return closer.Close() })
		}
		mirror = storage.NewThumbnailMirror(objects, nil, cfg.ObjectStorage.PublicBaseURL, cfg.ObjectStorage.MaxImageBytes)
	}

	var provider services.VideoProvider
	if cfg.YouTube.APIKey != "" {
		client, err := video.NewYouTubeClient(ctx, cfg.YouTube)
		if err != nil {
			s.closeAll(ctx)
			return nil, err
		}
		provider = client
	} else {
		logging.Warn().Msg("YOUTUBE_API_KEY not set, video search disabled")
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		s.closeAll(ctx)
		return nil, err
	}
	policy := auth.NewPasswordPolicy()

	userService := services.NewUserService(repos.users, hasher, policy)
	authService := services.NewAuthService(services.AuthConfig{
		Users:         repos.users,
		Hasher:        hasher,
		Policy:        policy,
		Tokens:        auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL),
		Guard:         auth.NewLoginGuard(auth.NewMemoryAttemptCounter(), cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutDuration),
		Denylist:      auth.NewMemoryDenylist(),
		Mailer:        sender,
		AppURL:        cfg.Auth.AppURL,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
	})
	commentService := services.NewCommentService(repos.comments)
	ratingService := services.NewRatingService(repos.ratings)
	movieService := services.NewMovieService(repos.movies, mirror)
	videoService := services.NewVideoService(provider)

	authHandler := handlers.NewAuthHandler(userService, authService, handlers.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.IsProduction(),
		TTL:    cfg.Auth.SessionTTL,
	}, cfg.Auth.RevealUnknownEmail)
	requireSession := authHandler.RequireSession
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	sensitive := httprate.LimitByIP(cfg.Server.AuthRateLimit, cfg.Server.RateLimitWindow)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger,
		middleware.Recoverer,
		metrics.Middleware,
		middleware.Timeout(timeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	router.Get("/healthz", handlers.Health(checks))
	router.Handle("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow))

		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, sensitive)
		})
		r.Route("/comments", func(r chi.Router) {
			handlers.CommentRouter(r, commentService, requireSession)
		})
		r.Route("/ratings", func(r chi.Router) {
			handlers.RatingRouter(r, ratingService, requireSession)
		})
		r.Route("/movies", func(r chi.Router) {
			handlers.MovieRouter(r, movieService, requireSession)
		})
		r.Route("/thumbnails", func(r chi.Router) {
			handlers.ThumbnailRouter(r, movieService)
		})
		r.Route("/videos", func(r chi.Router) {
			handlers.VideoRouter(r, videoService)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) openRepositories(ctx context.Context, cfg config.DatabaseConfig, checks map[string]handlers.HealthCheck) (repositories, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return repositories{}, err
		}
		s.closers = append(s.closers, func(context.Context) error { return conn.Close() })
		checks["postgres"] = conn.PingContext
		return repositories{
			users:    store.NewUserRepository(conn),
			movies:   store.NewMovieRepository(conn),
			comments: store.NewCommentRepository(conn),
			ratings:  store.NewRatingRepository(conn),
		}, nil

	case config.DriverMongo:
		client, database, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return repositories{}, err
		}
		s.closers = append(s.closers, client.Disconnect)
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		repos, err := mongostore.New(ctx, database)
		if err != nil {
			return repositories{}, err
		}
		return repositories{
			users:    repos.Users,
			movies:   repos.Movies,
			comments: repos.Comments,
			ratings:  repos.Ratings,
		}, nil

	case config.DriverMemory:
		logging.Warn().Msg("using in-memory storage, data is lost on restart")
		st := memstore.New()
		return repositories{
			users:    st.Users(),
			movies:   st.Movies(),
			comments: st.Comments(),
			ratings:  st.Ratings(),
		}, nil
	}
	return repositories{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// openMailer picks the queue when one is configured, then SMTP, then the log-only mailer.
func (s *Server) openMailer(ctx context.Context, cfg config.Config) (mailer.Sender, error) {
	if cfg.Queue.Backend != config.BackendNone {
		queue, err := mq.Open(ctx, cfg.Queue)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return queue.Close() })
		return mailer.NewQueueMailer(queue, cfg.Queue.MailChannel), nil
	}
	if cfg.SMTP.Enabled() {
		return mailer.NewSMTPMailer(cfg.SMTP)
	}
	logging.Warn().Msg("no SMTP or queue configured, reset emails are only logged")
	return mailer.LogMailer{}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeAll(ctx)
	return err
}

func (s *Server) closeAll(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logging.Warn().Err(err).Msg("close dependency")
		}
	}
	s.closers = nil
}
