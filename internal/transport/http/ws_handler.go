package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"photo-quiz-service/internal/app"
	"photo-quiz-service/internal/domain"
)

// ImageResolver finds the file behind a pool image reference.
type ImageResolver interface {
	Resolve(ref string) (string, bool)
}

type WSHandler struct {
	service  *app.QuizService
	images   ImageResolver
	prefix   string
	tick     time.Duration
	verbose  bool
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, images ImageResolver, opts Options) *WSHandler {
	tick := opts.Tick
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	return &WSHandler{
		service: service,
		images:  images,
		prefix:  opts.Prefix,
		tick:    tick,
		verbose: opts.Verbose,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Choice string `json:"choice"`
}

type welcomePayload struct {
	PlayerID string       `json:"playerId"`
	State    statePayload `json:"state"`
}

// statePayload is a snapshot plus the URL the browser can fetch the photo from.
type statePayload struct {
	domain.Snapshot
	ImageURL string `json:"imageUrl,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
// Clients send begin, answer and restart; the server pushes a state message after
// every transition and drives deadlines with its own ticker.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		playerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	joined, err := h.service.Join(ctx, playerID)
	if err != nil {
		log.Printf("join %s: %v", playerID, err)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	h.logf("JOIN: player %s from %s", playerID, r.RemoteAddr)

	updates, cancel, err := h.service.Subscribe(ctx, playerID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	tickerDone := make(chan struct{})

	// drop ends the connection when its session is gone; the read loop then unwinds.
	var dropOnce sync.Once
	drop := func(reason string) {
		dropOnce.Do(func() {
			log.Printf("ws %s: closing connection: %s", playerID, reason)
			_ = conn.Close()
		})
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// The welcome message goes out before any forwarded update.
	send <- outboundMessage[any]{Type: "welcome", Payload: welcomePayload{PlayerID: playerID, State: h.state(joined)}}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					drop("subscription closed")
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: h.state(update)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Polls the authoritative deadline; transitions reach the client through updates.
	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, changed, err := h.service.Tick(ctx, playerID); err != nil {
					drop(err.Error())
					return
				} else if changed {
					h.logf("TICK: player %s advanced", playerID)
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handle(ctx, playerID, inbound, send)
	}

	close(closeSignals)
	<-updatesDone
	<-tickerDone
	close(send)
	<-writerDone
	h.logf("LEAVE: player %s", playerID)
}

func (h *WSHandler) handle(ctx context.Context, playerID string, inbound inboundMessage, send chan<- outboundMessage[any]) {
	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}

	switch inbound.Type {
	case "begin":
		if _, err := h.service.Begin(ctx, playerID); err != nil {
			fail(err)
			return
		}
		h.logf("BEGIN: player %s", playerID)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid answer payload"))
			return
		}
		_, outcome, err := h.service.Submit(ctx, playerID, payload.Choice)
		if err != nil {
			fail(err)
			return
		}
		if outcome != nil {
			send <- outboundMessage[any]{Type: "answerResult", Payload: outcome}
		}
	case "restart":
		if _, err := h.service.Restart(ctx, playerID); err != nil {
			fail(err)
		}
	default:
		fail(errors.New("unsupported message type"))
	}
}

func (h *WSHandler) state(snap domain.Snapshot) statePayload {
	out := statePayload{Snapshot: snap}
	if snap.Question == nil || h.images == nil {
		return out
	}
	if _, ok := h.images.Resolve(snap.Question.ImageRef); ok {
		out.ImageURL = h.prefix + "/images/" + (&url.URL{Path: snap.Question.ImageRef}).EscapedPath()
	}
	return out
}

func (h *WSHandler) logf(format string, args ...any) {
	if !h.verbose {
		return
	}
	log.Printf(format, args...)
}
