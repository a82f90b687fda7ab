package transport

import (
	"context"
	"sync"

	"github.com/c360/enginelink/errors"
)

// FakeChannel is an in-memory Channel for tests. Tests drive the remote
// side with the Emit helpers and inspect what the client sent through
// SentText/SentBinary.
type FakeChannel struct {
	mu         sync.Mutex
	subs       map[int]EventHandler
	nextID     int
	open       bool
	closed     bool
	sentText   []string
	sentBinary [][]byte

	openErr        error
	sendErr        error
	suppressOpened bool
}

// NewFakeChannel creates an unopened fake channel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{subs: make(map[int]EventHandler)}
}

// SetOpenErr makes Open fail with err. Pass nil to clear.
func (c *FakeChannel) SetOpenErr(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

// SetSendErr makes SendText and SendBinary fail with err. Pass nil to clear.
func (c *FakeChannel) SetSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// SuppressOpened disables the automatic opened event on Open, letting a test
// fire it manually to exercise slow connects.
func (c *FakeChannel) SuppressOpened() {
	c.mu.Lock()
	c.suppressOpened = true
	c.mu.Unlock()
}

// Open marks the channel open and fires the opened event.
func (c *FakeChannel) Open(_ context.Context, _ string) error {
	c.mu.Lock()
	if c.openErr != nil {
		err := c.openErr
		c.mu.Unlock()
		return err
	}
	c.open = true
	suppress := c.suppressOpened
	c.mu.Unlock()
	if !suppress {
		c.EmitOpened()
	}
	return nil
}

// Subscribe registers h and returns its handle.
func (c *FakeChannel) Subscribe(h EventHandler) Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = h
	c.mu.Unlock()
	return &fakeSubscription{channel: c, id: id}
}

// SendText records one text frame.
func (c *FakeChannel) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.open || c.closed {
		return errors.WrapTransport(errors.ErrChannelNotOpen, "FakeChannel", "SendText", "write frame")
	}
	c.sentText = append(c.sentText, text)
	return nil
}

// SendBinary records one binary frame.
func (c *FakeChannel) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.open || c.closed {
		return errors.WrapTransport(errors.ErrChannelNotOpen, "FakeChannel", "SendBinary", "write frame")
	}
	c.sentBinary = append(c.sentBinary, data)
	return nil
}

// Close marks the channel closed.
func (c *FakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (c *FakeChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SentText returns the text frames sent so far.
func (c *FakeChannel) SentText() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sentText...)
}

// SentBinary returns the binary frames sent so far.
func (c *FakeChannel) SentBinary() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sentBinary...)
}

// SubscriberCount reports how many handlers are currently attached.
func (c *FakeChannel) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// EmitOpened fires the opened event on all subscribers.
func (c *FakeChannel) EmitOpened() {
	c.dispatch(func(h EventHandler) { h.HandleOpened() })
}

// EmitClosed fires the closed event on all subscribers.
func (c *FakeChannel) EmitClosed(code int) {
	c.dispatch(func(h EventHandler) { h.HandleClosed(code) })
}

// EmitErrored fires the errored event on all subscribers.
func (c *FakeChannel) EmitErrored(err error) {
	c.dispatch(func(h EventHandler) { h.HandleErrored(err) })
}

// EmitMessage delivers a frame to all subscribers.
func (c *FakeChannel) EmitMessage(frame Frame) {
	c.dispatch(func(h EventHandler) { h.HandleMessage(frame) })
}

func (c *FakeChannel) dispatch(fn func(EventHandler)) {
	c.mu.Lock()
	handlers := make([]EventHandler, 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		fn(h)
	}
}

type fakeSubscription struct {
	channel *FakeChannel
	id      int
	once    sync.Once
}

// Cancel detaches the handler.
func (s *fakeSubscription) Cancel() {
	s.once.Do(func() {
		s.channel.mu.Lock()
		delete(s.channel.subs, s.id)
		s.channel.mu.Unlock()
	})
}
