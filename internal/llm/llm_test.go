package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/talgya/automon-world/internal/agents"
)

func anthropicServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.System)
		assert.Len(t, req.Messages, 1)

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientComplete(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, `{"content":[{"text":"{\"action\":\"rest\",\"reasoning\":\"tired\"}"}],"usage":{"input_tokens":3,"output_tokens":4}}`)
	c := NewClient("test-key", WithBaseURL(srv.URL))

	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Contains(t, out, `"rest"`)
}

func TestClientStatusError(t *testing.T) {
	srv := anthropicServer(t, http.StatusServiceUnavailable, `overloaded`)
	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Complete(context.Background(), "sys", "user")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "anthropic", se.Provider)
	assert.Equal(t, "overloaded", se.Body)
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient("")
	assert.Nil(t, c)
	assert.False(t, c.Enabled())

	_, err := c.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientRateLimit(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, `{"content":[{"text":"ok"}]}`)
	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(1))

	_, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClientHonoursContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	c := NewClient("test-key", WithBaseURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "sys", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    agents.Decision
		wantErr bool
	}{
		{
			name: "plain object",
			in:   `{"action":"eat","target":"trail_ration","reasoning":"hungry"}`,
			want: agents.Decision{Action: "eat", Target: "trail_ration", Reasoning: "hungry"},
		},
		{
			name: "null target",
			in:   `{"action":"rest","target":null,"reasoning":"tired"}`,
			want: agents.Decision{Action: "rest", Reasoning: "tired"},
		},
		{
			name: "json fence",
			in:   "```json\n{\"action\":\"Explore\",\"reasoning\":\"curious\"}\n```",
			want: agents.Decision{Action: "explore", Reasoning: "curious"},
		},
		{
			name: "bare fence",
			in:   "  ```\n{\"action\":\"rest\",\"reasoning\":\"tired\"}```\n",
			want: agents.Decision{Action: "rest", Reasoning: "tired"},
		},
		{name: "prose around object", in: `Sure! {"action":"rest","reasoning":"tired"} hope that helps`, wantErr: true},
		{name: "prose before object", in: `Here you go: {"action":"rest","reasoning":"tired"}`, wantErr: true},
		{name: "prose inside fence", in: "```json\nSure! {\"action\":\"rest\",\"reasoning\":\"x\"}\n```", wantErr: true},
		{name: "prose after fence", in: "```json\n{\"action\":\"rest\",\"reasoning\":\"x\"}\n``` hope that helps", wantErr: true},
		{name: "unterminated fence", in: "```json\n{\"action\":\"rest\",\"reasoning\":\"x\"}", wantErr: true},
		{name: "two objects", in: `{"action":"rest","reasoning":"x"} {"action":"eat","reasoning":"y"}`, wantErr: true},
		{name: "missing reasoning", in: `{"action":"rest"}`, wantErr: true},
		{name: "missing action", in: `{"reasoning":"hmm"}`, wantErr: true},
		{name: "empty action", in: `{"action":"","reasoning":"hmm"}`, wantErr: true},
		{name: "blank action", in: `{"action":"  ","reasoning":"hmm"}`, wantErr: true},
		{name: "numeric target", in: `{"action":"buy","target":3,"reasoning":"x"}`, wantErr: true},
		{name: "not json", in: `I think I will rest.`, wantErr: true},
		{name: "broken json", in: `{"action": "rest", "reasoning": }`, wantErr: true},
		{name: "array", in: `[{"action":"rest","reasoning":"x"}]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDecisionPrompt(t *testing.T) {
	c := &agents.Context{
		Trainer:      &agents.Trainer{ID: "t1", Name: "Ash", Health: 90, Energy: 50, Hunger: 40, Gold: 12},
		Location:     agents.LocationView{ID: "river_delta", Name: "River Delta", Biome: "river_delta", Danger: 1},
		LegalActions: []string{"rest", "fish"},
		RecentEvents: []string{"Ash caught a raw fish"},
		Clock:        agents.Clock{Tick: 5, Day: 1, TimeOfDay: "dawn", Weather: "rain"},
	}
	system, user, err := BuildDecisionPrompt(c)
	require.NoError(t, err)

	assert.Contains(t, system, "You are Ash")
	assert.Contains(t, user, "Legal actions here: rest, fish")
	assert.Contains(t, user, "- Ash caught a raw fish")
	assert.Contains(t, user, "Weather: rain")

	i := strings.Index(user, "{")
	require.Positive(t, i)
	var decoded map[string]any
	line := user[i:]
	line = line[:strings.Index(line, "\n")]
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Contains(t, decoded, "legal_actions")
}

func TestClassifyGeminiError(t *testing.T) {
	err := classifyGeminiError(status.Error(codes.ResourceExhausted, "quota"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 429, se.Code)

	err = classifyGeminiError(status.Error(codes.DeadlineExceeded, "slow"))
	assert.False(t, errors.As(err, &se))

	err = classifyGeminiError(errors.New("dial tcp: refused"))
	assert.False(t, errors.As(err, &se))
}

func TestGeminiNotConfigured(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, g)

	_, err = g.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
