package main

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sprite/internal/delivery"
	"sprite/internal/event"
)

const eventWriteTimeout = 10 * time.Second

// eventsHandler streams delivery events as JSON over a websocket. The
// optional agent query parameter limits the stream to one agent, and
// replay=1 sends the retained history first.
type eventsHandler struct {
	events *event.Bus[delivery.Event]
}

func (h *eventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "delivery events unavailable", http.StatusServiceUnavailable)
		return
	}
	agentID := strings.TrimSpace(r.URL.Query().Get("agent"))
	matches := func(ev delivery.Event) bool {
		return agentID == "" || ev.Agent == agentID
	}

	output, cancel := h.events.SubscribeFiltered(matches)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     isLoopbackOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	write := func(ev delivery.Event) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
			return false
		}
		return conn.WriteJSON(ev) == nil
	}
	if r.URL.Query().Get("replay") == "1" {
		for _, ev := range h.events.History() {
			if matches(ev) && !write(ev) {
				return
			}
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-output:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			if !write(ev) {
				return
			}
		case <-done:
			return
		}
	}
}

// isLoopbackOrigin accepts non-browser clients and pages served from the
// local machine.
func isLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
