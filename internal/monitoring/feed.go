package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/llmwire/llmwire/internal/universal"
)

// TranslationEvent describes one completed translation, published to feed
// subscribers for live inspection.
type TranslationEvent struct {
	Time          time.Time          `json:"time"`
	From          universal.Provider `json:"from"`
	To            universal.Provider `json:"to"`
	Model         string             `json:"model"`
	RequestBytes  int                `json:"request_bytes"`
	OutputBytes   int                `json:"output_bytes"`
	Quality       int                `json:"quality"` // reconstruction quality 0-100
	ExactRebuild  bool               `json:"exact_rebuild"`
	Duration      time.Duration      `json:"duration"`
	MessageCount  int                `json:"message_count"`
	ToolCount     int                `json:"tool_count"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// writeTimeout bounds a single send to one subscriber so a slow reader
// cannot stall Publish.
const writeTimeout = 2 * time.Second

// Feed broadcasts translation events to websocket subscribers.
// Subscribers attach via the HTTP handler; slow or dead subscribers are
// dropped rather than blocking publishers.
type Feed struct {
	mu   sync.RWMutex
	subs map[*websocket.Conn]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request and keeps the connection subscribed until
// the peer closes it.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("feed subscriber upgrade failed")
		return
	}

	f.mu.Lock()
	f.subs[conn] = struct{}{}
	f.mu.Unlock()

	// Drain reads so pings are answered; returning removes the subscriber.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	f.mu.Lock()
	delete(f.subs, conn)
	f.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
}

// Publish sends an event to every subscriber. Failing subscribers are
// dropped.
func (f *Feed) Publish(ev TranslationEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("feed event marshal failed")
		return
	}

	f.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(f.subs))
	for conn := range f.subs {
		conns = append(conns, conn)
	}
	f.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			f.mu.Lock()
			delete(f.subs, conn)
			f.mu.Unlock()
			conn.Close(websocket.StatusPolicyViolation, "write timeout")
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
