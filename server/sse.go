package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/r3labs/sse/v2"

	"github.com/conductorhq/conductor/eventbus"
)

// sseBridge forwards eventbus.Bus events onto an r3labs/sse/v2 stream per
// session, one stream per active GET /sessions/{id}/events connection
// (grounded on r3labs/sse's publish/subscribe model, as used for the MCP
// HTTP transport's server push — here adapted so the bus, not a single
// client loop, is the publisher of record).
type sseBridge struct {
	bus *eventbus.Bus
	srv *sse.Server

	mu       sync.Mutex
	refCount map[string]int
}

func newSSEBridge(bus *eventbus.Bus) *sseBridge {
	srv := sse.New()
	srv.AutoReplay = false
	return &sseBridge{bus: bus, srv: srv, refCount: make(map[string]int)}
}

func (b *sseBridge) acquireStream(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refCount[sessionID] == 0 {
		b.srv.CreateStream(sessionID)
	}
	b.refCount[sessionID]++
}

func (b *sseBridge) releaseStream(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refCount[sessionID]--
	if b.refCount[sessionID] <= 0 {
		delete(b.refCount, sessionID)
		b.srv.RemoveStream(sessionID)
	}
}

// handleSessionEvents streams one session's mission lifecycle events as
// Server-Sent Events until the client disconnects.
func (b *sseBridge) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	ch, unsubscribe := b.bus.Subscribe(sessionID)
	defer unsubscribe()

	b.acquireStream(sessionID)
	defer b.releaseStream(sessionID)

	ctx := r.Context()
	go func() {
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				b.srv.Publish(sessionID, &sse.Event{Event: []byte(ev.Type), Data: data})
			case <-ctx.Done():
				return
			}
		}
	}()

	// r3labs/sse reads the stream ID from the "stream" query parameter;
	// the API's route names it as a path parameter, so it's rewritten here.
	q := r.URL.Query()
	q.Set("stream", sessionID)
	r.URL.RawQuery = q.Encode()

	b.srv.ServeHTTP(w, r)
}
