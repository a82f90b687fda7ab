package transport

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

	"github.com/c360/enginelink/errors"
	"github.com/c360/enginelink/pkg/retry"
)

// collector records channel events for assertions.
type collector struct {
	opened  chan struct{}
	closed  chan int
	errored chan error
	frames  chan Frame
}

func newCollector() *collector {
	return &collector{
		opened:  make(chan struct{}, 4),
		closed:  make(chan int, 4),
		errored: make(chan error, 4),
		frames:  make(chan Frame, 16),
	}
}

func (c *collector) HandleOpened()           { c.opened <- struct{}{} }
func (c *collector) HandleClosed(code int)   { c.closed <- code }
func (c *collector) HandleErrored(err error) { c.errored <- err }
func (c *collector) HandleMessage(f Frame)   { c.frames <- f }

// echoServer upgrades connections and echoes every text frame back,
// plus one binary frame per text frame received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
					return
				}
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFrame(t *testing.T, c *collector) Frame {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func TestWebSocketChannel_OpenSendReceive(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	channel := NewWebSocketChannel(WithRetry(retry.Config{MaxAttempts: 1}))
	events := newCollector()
	sub := channel.Subscribe(events)
	defer sub.Cancel()

	require.NoError(t, channel.Open(context.Background(), wsURL(server)))
	defer channel.Close()

	select {
	case <-events.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for opened event")
	}

	require.NoError(t, channel.SendText(`{"type":"command","id":"1"}`))

	textFrame := waitFrame(t, events)
	assert.Equal(t, FrameText, textFrame.Kind)
	assert.Contains(t, textFrame.Text, `"id":"1"`)

	binFrame := waitFrame(t, events)
	assert.Equal(t, FrameBinary, binFrame.Kind)
	assert.Equal(t, []byte{0x01, 0x02}, binFrame.Data)
}

func TestWebSocketChannel_SendBeforeOpen(t *testing.T) {
	channel := NewWebSocketChannel()
	err := channel.SendText("hello")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.ErrorIs(t, err, errors.ErrChannelNotOpen)
}

func TestWebSocketChannel_LocalCloseReportsClosed(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	channel := NewWebSocketChannel(WithRetry(retry.Config{MaxAttempts: 1}))
	events := newCollector()
	channel.Subscribe(events)

	require.NoError(t, channel.Open(context.Background(), wsURL(server)))
	require.NoError(t, channel.Close())

	select {
	case code := <-events.closed:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for closed event")
	}

	// Closed channels reject further sends.
	err := channel.SendText("late")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestWebSocketChannel_PeerCloseDeliversCode(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
			time.Now().Add(time.Second))
		conn.Close()
	}))
	defer server.Close()

	channel := NewWebSocketChannel(WithRetry(retry.Config{MaxAttempts: 1}))
	events := newCollector()
	channel.Subscribe(events)

	require.NoError(t, channel.Open(context.Background(), wsURL(server)))
	defer channel.Close()

	select {
	case code := <-events.closed:
		assert.Equal(t, websocket.CloseGoingAway, code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for closed event")
	}
}

func TestWebSocketChannel_DialFailure(t *testing.T) {
	channel := NewWebSocketChannel(
		WithDialTimeout(500*time.Millisecond),
		WithRetry(retry.Config{MaxAttempts: 1}))

	err := channel.Open(context.Background(), "ws://127.0.0.1:1/nothing")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestWebSocketChannel_ReopenRejected(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	channel := NewWebSocketChannel(WithRetry(retry.Config{MaxAttempts: 1}))
	require.NoError(t, channel.Open(context.Background(), wsURL(server)))
	require.Error(t, channel.Open(context.Background(), wsURL(server)))
	require.NoError(t, channel.Close())

	// A closed channel is single-use.
	require.Error(t, channel.Open(context.Background(), wsURL(server)))
}

func TestFakeChannel_ErrorKnobsSafeWhileSending(t *testing.T) {
	channel := NewFakeChannel()
	require.NoError(t, channel.Open(context.Background(), "fake://engine"))

	failure := assert.AnError
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = channel.SendText("frame")
			_ = channel.SendBinary([]byte{0x01})
		}
	}()
	// Flip the knobs while sends are in flight; the race detector verifies
	// the fake serializes access.
	for i := 0; i < 200; i++ {
		channel.SetSendErr(failure)
		channel.SetSendErr(nil)
	}
	<-done

	channel.SetSendErr(failure)
	assert.ErrorIs(t, channel.SendText("after"), failure)
	channel.SetOpenErr(failure)
	assert.ErrorIs(t, channel.Open(context.Background(), "fake://engine"), failure)
}

func TestSubscription_CancelStopsDelivery(t *testing.T) {
	channel := NewFakeChannel()
	events := newCollector()
	sub := channel.Subscribe(events)
	require.Equal(t, 1, channel.SubscriberCount())

	sub.Cancel()
	sub.Cancel() // idempotent
	assert.Equal(t, 0, channel.SubscriberCount())

	channel.EmitMessage(Frame{Kind: FrameText, Text: "ignored"})
	select {
	case <-events.frames:
		t.Fatal("cancelled subscription still received a frame")
	case <-time.After(50 * time.Millisecond):
	}
}
