package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/docquiz/internal/api"
	"github.com/victornm/docquiz/internal/content"
	"github.com/victornm/docquiz/internal/dedup"
	"github.com/victornm/docquiz/internal/event"
	"github.com/victornm/docquiz/internal/leaderboard"
	"github.com/victornm/docquiz/internal/llm"
	"github.com/victornm/docquiz/internal/question"
	"github.com/victornm/docquiz/internal/scoring"
	"github.com/victornm/docquiz/internal/session"
	"github.com/victornm/docquiz/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level string
	}

	Redis struct {
		Cache       RedisConfig
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Postgres struct {
		Content PostgresConfig
	}

	LLM llm.Config

	Quiz struct {
		DedupThreshold  float64
		ExcerptCacheTTL time.Duration
		IdleTTL         time.Duration
		SweepInterval   time.Duration
		SearchTerms     []string
	}
}

// DefaultConfig returns the values used for every key the config file leaves out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Log.Level = "info"

	c.Redis.Cache = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "docquiz"}
	c.Redis.Leaderboard = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "docquiz"}
	c.Redis.Pubsub = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "docquiz"}

	c.Postgres.Content = PostgresConfig{Addr: "localhost:5432", User: "postgres", Name: "docquiz"}

	c.LLM.Provider = llm.ProviderNone
	c.LLM.Timeout = 30 * time.Second

	c.Quiz.DedupThreshold = dedup.DefaultThreshold
	c.Quiz.ExcerptCacheTTL = 10 * time.Minute
	c.Quiz.IdleTTL = 2 * time.Hour
	c.Quiz.SweepInterval = time.Minute
	c.Quiz.SearchTerms = slices.Clone(content.DefaultSearchTerms)

	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			cache       redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			content *pgxpool.Pool
		}
	}

	service struct {
		session     *session.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
	grpc *grpc.Server

	done chan struct{}
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c, done: make(chan struct{})}

	if err := s.initLogger(); err != nil {
		return nil, fmt.Errorf("server: init logger: %w", err)
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initLogger() error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.c.Log.Level)); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(c RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.cache, err = connect(s.c.Redis.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(c PostgresConfig) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.content, err = connect(s.c.Postgres.Content)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := content.NewStore(content.Config{
		DB:          s.infra.postgres.content,
		SearchTerms: s.c.Quiz.SearchTerms,
	})
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	excerpts := content.NewCache(content.CacheConfig{
		Source: store,
		Redis:  s.infra.redis.cache,
		Prefix: s.c.Redis.Cache.Prefix,
		TTL:    s.c.Quiz.ExcerptCacheTTL,
	})

	client, err := llm.New(ctx, s.c.LLM)
	if err != nil {
		return err
	}

	// without a model every question comes from the curated lists and scores are lexical
	var (
		questionOracle question.Oracle
		scoringOracle  scoring.Oracle
	)
	if client.Enabled() {
		questionOracle, scoringOracle = client, client
	} else {
		slog.WarnContext(ctx, "server: no language model configured")
	}

	s.service.session = session.NewService(session.Config{
		EventBus:  s.eb,
		Documents: store,
		Questions: question.NewPipeline(question.Config{
			Oracle:  questionOracle,
			Context: excerpts,
			Filter:  dedup.New(s.c.Quiz.DedupThreshold),
		}),
		Evaluator: scoring.NewEvaluator(scoring.Config{
			Oracle:  scoringOracle,
			Context: excerpts,
		}),
		IdleTTL: s.c.Quiz.IdleTTL,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.AccessLog())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	api.New(api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.sweep(ctx)
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// sweep drops idle sessions until the server shuts down.
func (s *Server) sweep(ctx context.Context) {
	interval := s.c.Quiz.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.service.session.Sweep(ctx)
		}
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(s.done)

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.session.Close()
	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.cache, s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.WarnContext(ctx, "server: close redis failed", "error", err)
		}
	}
	s.infra.postgres.content.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
