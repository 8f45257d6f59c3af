package render

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// recordingAnnotator captures engine calls made by the bridge.
type recordingAnnotator struct {
	mu       sync.Mutex
	rendered []int
	tokens   map[int][]string
	clicks   [][2]int
	deselect int
}

func newRecordingAnnotator() *recordingAnnotator {
	return &recordingAnnotator{tokens: make(map[int][]string)}
}

func (r *recordingAnnotator) PageRendered(pageNumber int, tokens []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, pageNumber)
	r.tokens[pageNumber] = tokens
}

func (r *recordingAnnotator) SelectAt(pageNumber, tokenIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, [2]int{pageNumber, tokenIndex})
}

func (r *recordingAnnotator) Deselect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deselect++
}

func (r *recordingAnnotator) snapshot() (rendered []int, clicks [][2]int, deselect int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.rendered...), append([][2]int(nil), r.clicks...), r.deselect
}

func dialBridge(t *testing.T, bridge *Bridge) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(bridge)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBridgeDispatch(t *testing.T) {
	bridge := NewBridge()
	annotator := newRecordingAnnotator()
	bridge.Bind(annotator)
	conn := dialBridge(t, bridge)

	frames := []inboundFrame{
		{Type: "page_rendered", Page: 1, Tokens: []string{"alpha", "beta"}},
		{Type: "token_clicked", Page: 1, TokenIndex: 1},
		{Type: "clear_selection"},
	}
	for _, frame := range frames {
		require.NoError(t, conn.WriteJSON(frame))
	}

	require.Eventually(t, func() bool {
		rendered, clicks, deselect := annotator.snapshot()
		return len(rendered) == 1 && len(clicks) == 1 && deselect == 1
	}, 2*time.Second, 5*time.Millisecond)

	rendered, clicks, _ := annotator.snapshot()
	assert.Equal(t, []int{1}, rendered)
	assert.Equal(t, [][2]int{{1, 1}}, clicks)

	// The bridge caches the latest tokens for engine retry reads.
	tokens, ok := bridge.Tokens(1)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "beta"}, tokens)
	_, ok = bridge.Tokens(2)
	assert.False(t, ok)
}

func TestBridgeIgnoresBadFrames(t *testing.T) {
	bridge := NewBridge()
	annotator := newRecordingAnnotator()
	bridge.Bind(annotator)
	conn := dialBridge(t, bridge)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "warp_speed"}))
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "page_rendered", Page: 0}))
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "token_clicked", Page: 1, TokenIndex: -4}))

	// A valid frame after the garbage still gets through.
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "page_rendered", Page: 2, Tokens: []string{"x"}}))

	require.Eventually(t, func() bool {
		rendered, _, _ := annotator.snapshot()
		return len(rendered) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rendered, clicks, deselect := annotator.snapshot()
	assert.Equal(t, []int{2}, rendered)
	assert.Empty(t, clicks)
	assert.Zero(t, deselect)
}

func TestBridgePushesStylingFrames(t *testing.T) {
	bridge := NewBridge()
	bridge.Bind(newRecordingAnnotator())
	conn := dialBridge(t, bridge)

	// Give the server a moment to register the client.
	require.Eventually(t, func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return len(bridge.clients) == 1
	}, 2*time.Second, 5*time.Millisecond)

	bridge.TagRange(3, model.TokenRange{Start: 1, End: 4}, model.Tag{
		AnnotationID: "ann-1",
		Type:         model.AnnotationHighlight,
		Color:        "#FACC15",
		Selected:     true,
	})
	bridge.ClearTag("ann-1")
	bridge.ScrollTo(7)

	read := func() outboundFrame {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame outboundFrame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	}

	tag := read()
	assert.Equal(t, "tag", tag.Type)
	assert.Equal(t, "ann-1", tag.AnnotationID)
	assert.Equal(t, 3, tag.Page)
	assert.Equal(t, 1, tag.Start)
	assert.Equal(t, 4, tag.End)
	assert.Equal(t, "highlight", tag.Style)
	assert.Equal(t, "#FACC15", tag.Color)
	assert.True(t, tag.Selected)

	clear := read()
	assert.Equal(t, "clear_tag", clear.Type)
	assert.Equal(t, "ann-1", clear.AnnotationID)

	scroll := read()
	assert.Equal(t, "scroll", scroll.Type)
	assert.Equal(t, 7, scroll.Page)
}

func TestBridgeWithoutEngineBound(t *testing.T) {
	bridge := NewBridge()
	conn := dialBridge(t, bridge)

	// Frames before Bind are dropped, not fatal.
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "page_rendered", Page: 1, Tokens: []string{"x"}}))

	annotator := newRecordingAnnotator()
	bridge.Bind(annotator)
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "page_rendered", Page: 1, Tokens: []string{"x"}}))

	require.Eventually(t, func() bool {
		rendered, _, _ := annotator.snapshot()
		return len(rendered) == 1
	}, 2*time.Second, 5*time.Millisecond)
}
