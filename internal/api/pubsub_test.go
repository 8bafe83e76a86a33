package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/docquiz/internal/domain"
)

type notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func TestAPI_PublishesGameNotifications(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := makeHarness(t)

	// session IDs are random, so listen on every game channel
	sub := h.redis.PSubscribe(ctx, prefix+":game:*")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	ss := h.start(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/games/"+ss.SessionID+"/next", nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/games/"+ss.SessionID+"/answer", map[string]any{"answer": answer}).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/games/"+ss.SessionID+"/finish", nil).Code)

	want := []string{
		domain.EventNameGameStarted,
		domain.EventNameQuestionAsked,
		domain.EventNameRoundScored,
		domain.EventNameGameFinished,
		domain.EventNameLeaderboardUpdated,
	}

	got := make(map[string]notification)
	for len(got) < len(want) {
		select {
		case msg := <-ch:
			assert.Equal(t, prefix+":game:"+ss.SessionID, msg.Channel)

			var n notification
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			got[n.Event] = n
		case <-ctx.Done():
			t.Fatalf("received %d of %d notifications", len(got), len(want))
		}
	}

	for _, name := range want {
		assert.Contains(t, got, name)
	}

	var finished domain.Session
	require.NoError(t, json.Unmarshal(got[domain.EventNameGameFinished].Data, &finished))
	assert.Equal(t, domain.StatusFinished, finished.Status)
	assert.Len(t, finished.RoundHistory, 1)

	assert.JSONEq(t,
		`{"documentRef":"doc-1","entries":[{"sessionId":"`+ss.SessionID+`","score":"6"}]}`,
		string(got[domain.EventNameLeaderboardUpdated].Data),
	)
}
