package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/victornm/docquiz/internal/api"
	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/event"
	"github.com/victornm/docquiz/internal/leaderboard"
	"github.com/victornm/docquiz/internal/question"
	"github.com/victornm/docquiz/internal/scoring"
	"github.com/victornm/docquiz/internal/session"
)

const prefix = "dq"

type harness struct {
	engine *gin.Engine
	redis  redis.UniversalClient
	conn   *grpc.ClientConn
}

func makeHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	eb := event.NewBus()
	ss := session.NewService(session.Config{
		EventBus:  eb,
		Documents: fakeDocuments{"doc-1": true},
		Questions: question.NewPipeline(question.Config{}),
		Evaluator: scoring.NewEvaluator(scoring.Config{Oracle: fixedOracle("6")}),
	})
	ls := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   prefix,
	})

	engine := gin.New()
	gs := grpc.NewServer()
	api.New(api.Config{
		GRPC:         gs,
		HTTP:         engine,
		EventBus:     eb,
		Session:      ss,
		Leaderboard:  ls,
		Redis:        rc,
		PubsubPrefix: prefix,
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		gs.Stop()
		ss.Close()
		eb.Stop()
	})

	return &harness{engine: engine, redis: rc, conn: conn}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) start(t *testing.T) domain.Session {
	t.Helper()

	w := h.do(t, http.MethodPost, "/v1/games", api.StartGameRequest{DocumentRef: "doc-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.Session](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type fakeDocuments map[string]bool

func (f fakeDocuments) Exists(_ context.Context, ref string) (bool, error) {
	return f[ref], nil
}

type fixedOracle string

func (o fixedOracle) Complete(context.Context, string, string) (string, error) {
	return string(o), nil
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
