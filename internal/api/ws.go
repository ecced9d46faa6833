package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/session"
)

const (
	pingInterval   = 30 * time.Second
	readDeadline   = 60 * time.Second
	writeDeadline  = 10 * time.Second
	sendBuffer     = 64
	maxMessageSize = 4096
	saveTimeout    = 10 * time.Second
)

// buildUpgrader creates a websocket upgrader with origin validation.
// An empty allowedOrigins permits all origins.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Message types sent over websockets.
const (
	TypeEntry = "entry"
	TypeState = "state"
	TypeSaved = "saved"
	TypeError = "error"
)

// Message types accepted on /ws/session.
const (
	ActionInput     = "input"
	ActionBackspace = "backspace"
	ActionFinish    = "finish"
	ActionReset     = "reset"
	ActionRestart   = "restart"
)

// OutMessage is the envelope for every server message.
type OutMessage struct {
	Type    string             `json:"type"`
	Entry   *leaderboard.Entry `json:"entry,omitempty"`
	State   *StateView         `json:"state,omitempty"`
	Message string             `json:"message,omitempty"`
}

// InMessage is a client action on a hosted session.
type InMessage struct {
	Type string `json:"type"`
	Char string `json:"char,omitempty"`
}

// CharView is one character of a hosted test.
type CharView struct {
	Char   string           `json:"char"`
	Status model.CharStatus `json:"status"`
	Typed  string           `json:"typed,omitempty"`
}

// WordView is one word of a hosted test.
type WordView struct {
	Word       string     `json:"word"`
	Chars      []CharView `json:"chars"`
	IsActive   bool       `json:"is_active"`
	IsComplete bool       `json:"is_complete"`
}

// StateView is the wire form of a TestState.
type StateView struct {
	Generation       uint64          `json:"generation"`
	Phase            model.Phase     `json:"phase"`
	Mode             model.Mode      `json:"mode"`
	Words            []WordView      `json:"words"`
	UserInput        string          `json:"user_input"`
	CurrentWordIndex int             `json:"current_word_index"`
	CurrentCharIndex int             `json:"current_char_index"`
	Stats            model.TestStats `json:"stats"`
	RemainingMs      int64           `json:"remaining_ms,omitempty"`
}

func newStateView(st model.TestState, gen uint64, remaining time.Duration) *StateView {
	view := &StateView{
		Generation:       gen,
		Phase:            st.Phase(),
		Mode:             st.Config.Mode,
		Words:            make([]WordView, len(st.Words)),
		UserInput:        st.UserInput,
		CurrentWordIndex: st.CurrentWordIndex,
		CurrentCharIndex: st.CurrentCharIndex,
		Stats:            st.Stats,
		RemainingMs:      remaining.Milliseconds(),
	}
	for i, w := range st.Words {
		chars := make([]CharView, len(w.Characters))
		for j, ch := range w.Characters {
			cv := CharView{Char: string(ch.Char), Status: ch.Status}
			if ch.HasTyped {
				cv.Typed = string(ch.Typed)
			}
			chars[j] = cv
		}
		view.Words[i] = WordView{Word: w.Word, Chars: chars, IsActive: w.IsActive, IsComplete: w.IsComplete}
	}
	return view
}

// wsClient serializes writes to one connection through a send queue.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

func newWSClient(conn *websocket.Conn, log zerolog.Logger) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// enqueue queues msg for writing. Messages are dropped when the client is
// gone or its queue is full.
func (c *wsClient) enqueue(msg OutMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode websocket message")
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("websocket send queue full, dropping message")
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readLoop calls handle for every text message until the peer goes away.
func (c *wsClient) readLoop(handle func([]byte)) {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		if handle != nil {
			handle(data)
		}
	}
}

// handleFeed streams newly submitted leaderboard entries.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context()).With().Str("ws", "feed").Logger()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := newWSClient(conn, log)
	entries, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	go c.writePump()
	go c.readLoop(nil)
	log.Debug().Msg("feed subscriber connected")

	for {
		select {
		case <-c.done:
			log.Debug().Msg("feed subscriber disconnected")
			return
		case e, ok := <-entries:
			if !ok {
				c.close()
				return
			}
			entry := e
			c.enqueue(OutMessage{Type: TypeEntry, Entry: &entry})
		}
	}
}

// sessionConfig builds a TestConfig from ?mode=&time=&words=&quote=.
func sessionConfig(r *http.Request) (model.TestConfig, error) {
	q := r.URL.Query()
	cfg := model.TestConfig{Mode: model.ModeTime, Time: 30, Words: 25}
	if raw := q.Get("mode"); raw != "" {
		mode, err := model.ParseMode(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	for key, dst := range map[string]*int{"time": &cfg.Time, "words": &cfg.Words, "quote": &cfg.QuoteID} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, err
		}
		*dst = n
	}
	return cfg, cfg.Validate()
}

// hostedSession is one websocket-driven typing test.
type hostedSession struct {
	srv  *Server
	sess *session.Session
	c    *wsClient
	id   auth.Identity
	log  zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
	// finishedGen is the generation whose final state was pushed; later
	// in-progress states for it are stale.
	finishedGen uint64
}

// handleSession hosts a typing test on the server. Finished tests are saved
// for authenticated connections.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	cfg, err := sessionConfig(r)
	if err != nil {
		handleError(w, r, apperr.BadRequest("invalid session parameters: "+err.Error()))
		return
	}
	id := identityFromContext(r.Context())
	log := zerolog.Ctx(r.Context()).With().Str("ws", "session").Str("user_id", id.UserID).Logger()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	h := &hostedSession{srv: s, c: newWSClient(conn, log), id: id, log: log}
	sess, err := session.New(cfg, s.texts,
		session.WithClock(s.clock),
		session.WithTickInterval(s.tickInterval),
		session.WithLogger(log),
		session.WithNotify(h.onUpdate),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to start hosted session")
		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		_ = conn.WriteJSON(OutMessage{Type: TypeError, Message: err.Error()})
		_ = conn.Close()
		return
	}
	h.sess = sess
	go h.c.writePump()
	defer h.shutdown()

	log.Info().Str("mode", string(cfg.Mode)).Msg("hosted session started")
	h.pushState(sess.Snapshot())
	h.c.readLoop(h.handleMessage)
}

func (h *hostedSession) shutdown() {
	h.stopTimer()
	h.sess.Close()
	h.c.close()
}

func (h *hostedSession) handleMessage(data []byte) {
	var msg InMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.c.enqueue(OutMessage{Type: TypeError, Message: "invalid message"})
		return
	}
	switch msg.Type {
	case ActionInput:
		r, size := utf8.DecodeRuneInString(msg.Char)
		if r == utf8.RuneError || size != len(msg.Char) {
			h.c.enqueue(OutMessage{Type: TypeError, Message: "char must be a single character"})
			return
		}
		before := h.sess.Snapshot().Phase()
		st := h.sess.HandleInput(r)
		if before == model.PhaseIdle && st.Phase() == model.PhaseActive {
			h.startTimer(st)
		}
		if !st.IsFinished {
			h.pushState(st)
		}
	case ActionBackspace:
		h.pushState(h.sess.HandleBackspace())
	case ActionFinish:
		// Finishing an idle test is a no-op and produces no notification.
		if st := h.sess.Finish(); !st.IsFinished {
			h.pushState(st)
		}
	case ActionReset:
		h.stopTimer()
		st, err := h.sess.Reset()
		if err != nil {
			h.c.enqueue(OutMessage{Type: TypeError, Message: err.Error()})
			return
		}
		h.pushState(st)
	case ActionRestart:
		h.stopTimer()
		h.pushState(h.sess.Restart())
	default:
		h.c.enqueue(OutMessage{Type: TypeError, Message: "unknown message type: " + msg.Type})
	}
}

// startTimer arms the time-mode countdown for the current generation.
func (h *hostedSession) startTimer(st model.TestState) {
	if st.Config.Mode != model.ModeTime {
		return
	}
	gen := h.sess.Generation()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(time.Duration(st.Config.Time)*time.Second, func() {
		h.sess.Expire(gen)
	})
}

func (h *hostedSession) stopTimer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// onUpdate receives ticks and the terminal snapshot from the session.
func (h *hostedSession) onUpdate(st model.TestState) {
	h.pushState(st)
	if !st.IsFinished {
		return
	}
	h.stopTimer()
	if !h.id.IsAuthenticated || h.srv.leaderboard == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	entry, err := h.srv.leaderboard.SaveScore(ctx, h.id, st)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to save hosted score")
		h.c.enqueue(OutMessage{Type: TypeError, Message: err.Error()})
		return
	}
	h.c.enqueue(OutMessage{Type: TypeSaved, Entry: &entry})
}

func (h *hostedSession) pushState(st model.TestState) {
	var gen uint64
	var remaining time.Duration
	if h.sess != nil {
		gen = h.sess.Generation()
		remaining = h.sess.Remaining()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if st.IsFinished {
		h.finishedGen = gen
	} else if gen != 0 && gen == h.finishedGen {
		return
	}
	h.c.enqueue(OutMessage{Type: TypeState, State: newStateView(st, gen, remaining)})
}
