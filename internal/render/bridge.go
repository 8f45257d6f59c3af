// Package render connects the annotation engine to an external
// renderer process. The renderer owns pixels and token layout; this
// side owns annotation state. A websocket carries render-completion
// and click events inbound and styling commands outbound.
package render

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Annotator is the slice of the engine the bridge drives from inbound
// renderer events.
type Annotator interface {
	PageRendered(pageNumber int, tokens []string)
	SelectAt(pageNumber, tokenIndex int)
	Deselect()
}

// inboundFrame is a renderer-to-engine message.
type inboundFrame struct {
	Type       string   `json:"type"`
	Tokens     []string `json:"tokens,omitempty"`
	Page       int      `json:"page,omitempty"`
	TokenIndex int      `json:"token_index,omitempty"`
}

// outboundFrame is an engine-to-renderer styling command.
type outboundFrame struct {
	Type         string `json:"type"`
	AnnotationID string `json:"annotation_id,omitempty"`
	Style        string `json:"style,omitempty"`
	Color        string `json:"color,omitempty"`
	Page         int    `json:"page,omitempty"`
	Start        int    `json:"start,omitempty"`
	End          int    `json:"end,omitempty"`
	Selected     bool   `json:"selected,omitempty"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second

	// Token lists for dense pages run large; well above the renderer's
	// worst observed frame.
	maxFrameSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		// The renderer connects from a local process, not a browser page.
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Bridge implements service.RenderSurface over a websocket session with
// the renderer. It caches the latest token list per page so the engine
// can re-read tokens during retry chains without a renderer round trip.
type Bridge struct {
	mu        sync.Mutex
	pages     map[int][]string
	clients   map[string]*client
	annotator Annotator
}

// NewBridge creates a bridge with no connected renderer.
func NewBridge() *Bridge {
	return &Bridge{
		pages:   make(map[int][]string),
		clients: make(map[string]*client),
	}
}

// Bind attaches the engine after construction. The engine needs the
// bridge as its surface, so the two are wired in two steps.
func (b *Bridge) Bind(a Annotator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.annotator = a
}

// Tokens returns the renderer's latest token list for a page.
func (b *Bridge) Tokens(pageNumber int) ([]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tokens, ok := b.pages[pageNumber]
	return tokens, ok
}

// TagRange pushes a styling command to the renderer.
func (b *Bridge) TagRange(pageNumber int, rng model.TokenRange, tag model.Tag) {
	b.broadcast(outboundFrame{
		Type:         "tag",
		AnnotationID: tag.AnnotationID,
		Page:         pageNumber,
		Start:        rng.Start,
		End:          rng.End,
		Style:        string(tag.Type),
		Color:        tag.Color,
		Selected:     tag.Selected,
	})
}

// ClearTag tells the renderer to remove an annotation's styling.
func (b *Bridge) ClearTag(annotationID string) {
	b.broadcast(outboundFrame{Type: "clear_tag", AnnotationID: annotationID})
}

// ScrollTo asks the renderer to bring a page into view.
func (b *Bridge) ScrollTo(pageNumber int) {
	b.broadcast(outboundFrame{Type: "scroll", Page: pageNumber})
}

// ServeHTTP upgrades the connection and runs the session pumps.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
	}

	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()

	slog.Info("renderer connected", "client_id", c.id, "remote", r.RemoteAddr)

	go b.writePump(c)
	b.readPump(c)
}

func (b *Bridge) readPump(c *client) {
	defer b.dropClient(c)

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("renderer connection lost", "client_id", c.id, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("dropping malformed renderer frame", "client_id", c.id, "error", err)
			continue
		}

		if err := b.dispatch(frame); err != nil {
			slog.Warn("dropping renderer frame", "client_id", c.id, "type", frame.Type, "error", err)
		}
	}
}

// dispatch routes one inbound frame to the engine.
func (b *Bridge) dispatch(frame inboundFrame) error {
	b.mu.Lock()
	annotator := b.annotator
	b.mu.Unlock()
	if annotator == nil {
		return fmt.Errorf("no engine bound")
	}

	switch frame.Type {
	case "page_rendered":
		if frame.Page < 1 {
			return fmt.Errorf("invalid page %d", frame.Page)
		}
		b.mu.Lock()
		b.pages[frame.Page] = frame.Tokens
		b.mu.Unlock()
		annotator.PageRendered(frame.Page, frame.Tokens)
		return nil

	case "token_clicked":
		if frame.Page < 1 || frame.TokenIndex < 0 {
			return fmt.Errorf("invalid click at page %d index %d", frame.Page, frame.TokenIndex)
		}
		annotator.SelectAt(frame.Page, frame.TokenIndex)
		return nil

	case "clear_selection":
		annotator.Deselect()
		return nil

	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func (b *Bridge) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) dropClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c.id]; ok {
		delete(b.clients, c.id)
		close(c.send)
	}
	b.mu.Unlock()

	_ = c.conn.Close()
	slog.Info("renderer disconnected", "client_id", c.id)
}

// broadcast sends an outbound frame to every connected renderer. A
// client that cannot keep up is dropped rather than allowed to block
// styling for the others.
func (b *Bridge) broadcast(frame outboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("failed to encode styling frame", "type", frame.Type, "error", err)
		return
	}

	b.mu.Lock()
	var stalled []*client
	for _, c := range b.clients {
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(b.clients, c.id)
		close(c.send)
	}
	b.mu.Unlock()

	for _, c := range stalled {
		slog.Warn("dropping stalled renderer client", "client_id", c.id)
		_ = c.conn.Close()
	}
}
