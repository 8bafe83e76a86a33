package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/event"
	"github.com/victornm/docquiz/internal/leaderboard"
	"github.com/victornm/docquiz/internal/session"
)

type Config struct {
	GRPC         *grpc.Server
	HTTP         gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ss *session.Service
	ls *leaderboard.Service

	redis  Redis
	prefix string

	broker   *Broker
	upgrader websocket.Upgrader
}

func New(c Config) *API {
	a := &API{
		ss:     c.Session,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
		broker: NewBroker(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}

	// gRPC APIs
	if c.GRPC != nil {
		c.GRPC.RegisterService(&quizServiceDesc, grpcServer{a: a})
	}

	// HTTP APIs
	if c.HTTP != nil {
		a.registerRoutes(c.HTTP)
	}

	// Register event handlers
	for _, name := range []string{
		domain.EventNameGameStarted,
		domain.EventNameQuestionAsked,
		domain.EventNameRoundScored,
		domain.EventNameGameFinished,
	} {
		c.EventBus.Subscribe(name, func(ctx context.Context, e event.Event) error {
			return a.PublishGameEvent(ctx, e)
		})
	}

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}
