package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/session"
	"github.com/verte-zerg/keyrace/internal/store"
)

type staticTexts []string

func (s staticTexts) Generate(model.TestConfig) ([]string, error) {
	return append([]string(nil), s...), nil
}

type testEnv struct {
	srv  *httptest.Server
	feed *leaderboard.Feed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	feed := leaderboard.NewFeed()
	s := New(Options{
		Auth:        auth.NewService(auth.NewUsers(db), auth.NewPasswords(4), auth.NewTokens("test-secret", time.Hour)),
		Leaderboard: leaderboard.NewService(leaderboard.NewSQLStore(db), feed),
		Feed:        feed,
		Texts:       staticTexts{"hi", "yo"},
		DB:          db,
		Log:         zerolog.Nop(),
	})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, feed: feed}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) register(t *testing.T, username string) auth.Session {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Username: username, Email: username + "@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[auth.Session](t, resp)
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[map[string]map[string]any](t, resp)
	assert.Equal(t, "NOT_FOUND", body["error"]["code"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "ada")
	assert.Equal(t, "ada", reg.User.Username)

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{Login: "ada@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[auth.Session](t, resp)

	resp = env.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, reg.User, decode[auth.Identity](t, resp))

	resp = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Username: "ada", Email: "other@example.com", Password: "secret1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestValidationErrorShape(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "a"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "username")
	assert.Contains(t, body.Error.Fields, "email")
}

func TestScoresAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ada := env.register(t, "ada")
	grace := env.register(t, "grace")

	resp := env.do(t, http.MethodPost, "/api/scores", "", map[string]any{"wpm": 50, "accuracy": 90, "mode": "quote"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	thirty, twentyFive := 30, 25
	resp = env.do(t, http.MethodPost, "/api/scores", ada.Token, scoreRequest{
		WPM: 70, Accuracy: 96, Mode: model.ModeTime, Time: &thirty, Words: &twentyFive,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[leaderboard.Entry](t, resp)
	assert.Equal(t, ada.User.UserID, entry.UserID)
	require.NotNil(t, entry.Time)
	assert.Equal(t, 30, *entry.Time)
	assert.Nil(t, entry.Words, "a time score does not keep a word count")

	// The token decides who submitted, not the body.
	resp = env.do(t, http.MethodPost, "/api/scores", grace.Token, leaderboard.Score{
		UserID: ada.User.UserID, Username: "ada", WPM: 90, Accuracy: 99, Mode: model.ModeQuote,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "grace", decode[leaderboard.Entry](t, resp).Username)

	resp = env.do(t, http.MethodPost, "/api/scores", ada.Token, scoreRequest{WPM: 10, Accuracy: 150, Mode: model.ModeQuote})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]leaderboard.Entry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "grace", entries[0].Username)
	assert.Equal(t, "ada", entries[1].Username)

	resp = env.do(t, http.MethodGet, "/api/leaderboard?mode=time&limit=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries = decode[[]leaderboard.Entry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, 70, entries[0].WPM)

	resp = env.do(t, http.MethodGet, "/api/leaderboard?mode=zen", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientAgainstServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	anon := leaderboard.NewClient(env.srv.URL, "")
	sess, err := anon.Register(ctx, auth.RegisterRequest{Username: "linus", Email: "linus@example.com", Password: "secret1"})
	require.NoError(t, err)

	c := leaderboard.NewClient(env.srv.URL, sess.Token)
	id, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "linus", id.Username)

	_, err = c.Submit(ctx, leaderboard.ScoreFrom(id.UserID, id.Username, model.TestState{
		Config:     model.TestConfig{Mode: model.ModeWords, Words: 25},
		IsFinished: true,
		Stats:      model.TestStats{WPM: 55, Accuracy: 97},
	}))
	require.NoError(t, err)

	entries, err := anon.Top(ctx, leaderboard.Query{Mode: model.ModeWords})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Words)
	assert.Equal(t, 25, *entries[0].Words)
}

func readMessage(t *testing.T, conn *websocket.Conn) OutMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg OutMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestFeedStreamsSubmittedScores(t *testing.T) {
	env := newTestEnv(t)
	ada := env.register(t, "ada")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/feed"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.feed.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/scores", ada.Token, scoreRequest{WPM: 42, Accuracy: 91, Mode: model.ModeQuote})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := readMessage(t, conn)
	assert.Equal(t, TypeEntry, msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, 42, msg.Entry.WPM)
}

func TestHostedSessionSavesFinishedTest(t *testing.T) {
	env := newTestEnv(t)
	ada := env.register(t, "ada")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/session?mode=words&words=2&token="+ada.Token), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, TypeState, first.Type)
	assert.Equal(t, model.PhaseIdle, first.State.Phase)
	require.Len(t, first.State.Words, 2)

	for _, r := range "hi yo " {
		require.NoError(t, conn.WriteJSON(InMessage{Type: ActionInput, Char: string(r)}))
	}

	var finished *StateView
	var saved *leaderboard.Entry
	for saved == nil {
		msg := readMessage(t, conn)
		switch msg.Type {
		case TypeState:
			if msg.State.Phase == model.PhaseFinished {
				finished = msg.State
			}
		case TypeSaved:
			saved = msg.Entry
		case TypeError:
			// A zero-WPM result is refused; anything else is a failure.
			require.Contains(t, msg.Message, "wpm is zero")
			return
		}
	}
	require.NotNil(t, finished)
	assert.Equal(t, 4, finished.Stats.CorrectChars)
	assert.Equal(t, "ada", saved.Username)
	assert.Equal(t, model.ModeWords, saved.Mode)
}

func TestHostedSessionRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/session?mode=quote"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(InMessage{Type: ActionInput, Char: "ab"}))
	assert.Equal(t, TypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InMessage{Type: "dance"}))
	assert.Equal(t, TypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InMessage{Type: ActionInput, Char: "h"}))
	msg := readMessage(t, conn)
	require.Equal(t, TypeState, msg.Type)
	assert.Equal(t, model.PhaseActive, msg.State.Phase)

	require.NoError(t, conn.WriteJSON(InMessage{Type: ActionReset}))
	for {
		msg = readMessage(t, conn)
		if msg.Type == TypeState && msg.State.Phase == model.PhaseIdle {
			break
		}
	}
	assert.Equal(t, 0, msg.State.CurrentCharIndex)
}

func TestHostedSessionBadParams(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/ws/session?mode=words&words=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDialFeed(t *testing.T) {
	env := newTestEnv(t)
	ada := env.register(t, "ada")

	ctx, cancel := context.WithCancel(context.Background())
	entries, err := DialFeed(ctx, wsURL(env.srv.URL, "/ws/feed"), zerolog.Nop())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.feed.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/scores", ada.Token, scoreRequest{WPM: 64, Accuracy: 93, Mode: model.ModeQuote})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case e := <-entries:
		assert.Equal(t, 64, e.WPM)
		assert.Equal(t, "ada", e.Username)
	case <-time.After(5 * time.Second):
		t.Fatal("no entry received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-entries
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHostedSessionDropsStatesAfterFinish(t *testing.T) {
	sess, err := session.New(model.TestConfig{Mode: model.ModeWords, Words: 1}, staticTexts{"hi"},
		session.WithTickInterval(0))
	require.NoError(t, err)
	defer sess.Close()
	h := &hostedSession{sess: sess, c: newWSClient(nil, zerolog.Nop())}

	active := sess.HandleInput('h')
	sess.HandleInput('i')
	final := sess.HandleInput(' ')
	require.True(t, final.IsFinished)

	h.pushState(final)
	h.pushState(active)
	require.Len(t, h.c.send, 1)

	var msg OutMessage
	require.NoError(t, json.Unmarshal(<-h.c.send, &msg))
	require.NotNil(t, msg.State)
	assert.Equal(t, model.PhaseFinished, msg.State.Phase)
}
