package webchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostudy/bookbot/internal/domain"
	"github.com/gostudy/bookbot/internal/logging"
)

func wsServer(t *testing.T, ch *Channel) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(ch.HandleWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAndHello(t *testing.T, wsURL, user string) *websocket.Conn {
	t.Helper()
	socket, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { socket.Close() })

	require.NoError(t, socket.WriteJSON(Frame{Type: "hello", User: user, Name: "Tester"}))
	return socket
}

func collectEvents(ch *Channel) <-chan domain.InboundEvent {
	events := make(chan domain.InboundEvent, 16)
	ch.OnEvent(func(event domain.InboundEvent) {
		events <- event
	})
	return events
}

func waitEvent(t *testing.T, events <-chan domain.InboundEvent) domain.InboundEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.InboundEvent{}
	}
}

func TestInboundFrames(t *testing.T) {
	ch := New(nil, logging.Nop())
	events := collectEvents(ch)
	socket := dialAndHello(t, wsServer(t, ch), "user-1")

	require.NoError(t, socket.WriteJSON(Frame{Type: "start"}))
	event := waitEvent(t, events)
	assert.Equal(t, domain.EventStart, event.Kind)
	assert.Equal(t, "webchat", event.ChannelID)
	assert.Equal(t, "user-1", event.From)
	assert.Equal(t, "user-1", event.ChatID)

	require.NoError(t, socket.WriteJSON(Frame{Type: "text", Body: "🇬🇧 English"}))
	event = waitEvent(t, events)
	assert.Equal(t, domain.EventText, event.Kind)
	assert.Equal(t, "🇬🇧 English", event.Body)

	require.NoError(t, socket.WriteJSON(Frame{Type: "select", Data: "book:2026-09-01T10:00:00Z"}))
	event = waitEvent(t, events)
	assert.Equal(t, domain.EventSelect, event.Kind)
	assert.Equal(t, "book:2026-09-01T10:00:00Z", event.Data)
}

func TestSendDeliversToConnectedUser(t *testing.T) {
	ch := New(nil, logging.Nop())
	collectEvents(ch)
	socket := dialAndHello(t, wsServer(t, ch), "user-1")

	// hello is processed asynchronously; wait for registration
	require.Eventually(t, func() bool {
		return ch.Status().Connected
	}, 2*time.Second, 10*time.Millisecond)

	err := ch.Send(context.Background(), domain.OutboundMessage{
		ChannelID: "webchat",
		To:        "user-1",
		Body:      "✅ Available time slots:",
		Buttons:   []domain.Button{{Label: "2026-09-01 10:00:00", Data: "book:2026-09-01T10:00:00Z"}},
	})
	require.NoError(t, err)

	var frame Frame
	socket.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, socket.ReadJSON(&frame))
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, "✅ Available time slots:", frame.Body)
	require.Len(t, frame.Buttons, 1)
	assert.Equal(t, "book:2026-09-01T10:00:00Z", frame.Buttons[0].Data)
}

func TestSendToUnknownUser(t *testing.T) {
	ch := New(nil, logging.Nop())

	err := ch.Send(context.Background(), domain.OutboundMessage{To: "ghost"})
	assert.Error(t, err)
}

func TestHelloRequired(t *testing.T) {
	ch := New(nil, logging.Nop())
	events := collectEvents(ch)
	wsURL := wsServer(t, ch)

	socket, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer socket.Close()

	// first frame is not a hello, connection gets dropped
	require.NoError(t, socket.WriteJSON(Frame{Type: "text", Body: "hi"}))
	socket.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = socket.ReadMessage()
	assert.Error(t, err)

	select {
	case <-events:
		t.Fatal("no event should be delivered before hello")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnknownFrameType(t *testing.T) {
	ch := New(nil, logging.Nop())
	collectEvents(ch)
	socket := dialAndHello(t, wsServer(t, ch), "user-1")

	require.NoError(t, socket.WriteJSON(Frame{Type: "dance"}))

	var frame Frame
	socket.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, socket.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
}
