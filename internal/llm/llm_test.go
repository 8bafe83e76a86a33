package llm_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/docquiz/internal/errors"
	"github.com/victornm/docquiz/internal/llm"
)

func TestClient_Complete(t *testing.T) {
	tests := map[string]struct {
		backend fakeBackend
		timeout time.Duration
		assert  func(t *testing.T, out string, err error)
	}{
		"completion is trimmed": {
			backend: fakeBackend{out: "  What is a mutex?\n"},
			assert: func(t *testing.T, out string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "What is a mutex?", out)
			},
		},
		"blank completion is a failure": {
			backend: fakeBackend{out: " \n\t"},
			assert: func(t *testing.T, out string, err error) {
				require.ErrorIs(t, err, llm.ErrEmptyCompletion)
				assert.True(t, errors.IsUpstream(err))
			},
		},
		"backend error is upstream": {
			backend: fakeBackend{err: stderrors.New("429 too many requests")},
			assert: func(t *testing.T, out string, err error) {
				assert.True(t, errors.IsUpstream(err))
				assert.Empty(t, out)
			},
		},
		"slow backend hits the timeout": {
			backend: fakeBackend{wait: true},
			timeout: 20 * time.Millisecond,
			assert: func(t *testing.T, out string, err error) {
				require.ErrorIs(t, err, context.DeadlineExceeded)
				assert.True(t, errors.IsUpstream(err))
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := llm.NewClient(tt.backend, tt.timeout)
			out, err := c.Complete(context.Background(), "prompt", "doc-1")
			tt.assert(t, out, err)
		})
	}
}

func TestNew(t *testing.T) {
	c, err := llm.New(context.Background(), llm.Config{Provider: llm.ProviderNone})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	_, err = c.Complete(context.Background(), "prompt", "doc-1")
	require.ErrorIs(t, err, llm.ErrDisabled)

	assert.True(t, llm.NewClient(fakeBackend{}, 0).Enabled())

	_, err = llm.New(context.Background(), llm.Config{Provider: "openai"})
	require.Error(t, err)

	_, err = llm.New(context.Background(), llm.Config{Provider: llm.ProviderArk})
	require.Error(t, err, "ark requires credentials")

	_, err = llm.New(context.Background(), llm.Config{Provider: llm.ProviderGenAI})
	require.Error(t, err, "genai requires an api key")
}

type fakeBackend struct {
	out  string
	err  error
	wait bool
}

func (fakeBackend) Name() string { return "fake" }

func (f fakeBackend) Generate(ctx context.Context, _ string) (string, error) {
	if f.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}
