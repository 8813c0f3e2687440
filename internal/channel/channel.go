// Package channel models the shared broadcast medium that pairing runs over.
//
// A Bus delivers every frame written by one participant to all the others,
// which matches a radio link where any vehicle in range observes the traffic.
// An optional Interceptor allows tests to play the adversary by dropping,
// altering, replaying or injecting frames in transit.
package channel

import (
	"sync"

	"code.roadauth.org/golang/internal/transport"
)

const (
	// feedBacklog bounds how many undelivered frames a Feed may accumulate.
	feedBacklog = 64
)

// Interceptor rewrites frames in transit.
//
// It receives the name of the writing participant and the frame, and returns
// the frames to deliver in its place. Returning nil drops the frame, returning
// several frames injects extra traffic, returning the frame twice replays it.
type Interceptor func(from string, frame []byte) [][]byte

// Bus is an in process broadcast medium.
//
// Every frame written to one Feed is delivered to all other Feeds joined to
// the Bus. The writer never receives its own frames.
type Bus struct {
	mut         sync.Mutex
	feeds       map[string]*Feed
	interceptor Interceptor
	closed      bool
}

// NewBus returns an open Bus with no participants.
func NewBus() *Bus {
	return &Bus{feeds: make(map[string]*Feed)}
}

// SetInterceptor installs fn on the Bus. Passing nil restores direct delivery.
func (self *Bus) SetInterceptor(fn Interceptor) {
	self.mut.Lock()
	defer self.mut.Unlock()

	self.interceptor = fn
}

// Join adds a participant to the Bus and returns its Feed.
// It errors if name is already joined or the Bus is closed.
func (self *Bus) Join(name string) (*Feed, error) {
	self.mut.Lock()
	defer self.mut.Unlock()

	if self.closed {
		return nil, closedError("bus is closed")
	}
	if _, found := self.feeds[name]; found {
		return nil, newError("participant %q already joined", name)
	}

	feed := &Feed{
		name:   name,
		bus:    self,
		frames: make(chan []byte, feedBacklog),
	}
	self.feeds[name] = feed

	return feed, nil
}

// Close shuts the Bus down. Pending reads on all Feeds fail with ErrClosed.
func (self *Bus) Close() {
	self.mut.Lock()
	defer self.mut.Unlock()

	if self.closed {
		return
	}
	self.closed = true
	for _, feed := range self.feeds {
		close(feed.frames)
	}
}

// broadcast delivers frame from the named participant to all other Feeds.
func (self *Bus) broadcast(from string, frame []byte) error {
	self.mut.Lock()
	defer self.mut.Unlock()

	if self.closed {
		return closedError("bus is closed")
	}

	frames := [][]byte{frame}
	if nil != self.interceptor {
		frames = self.interceptor(from, frame)
	}

	for _, f := range frames {
		for name, feed := range self.feeds {
			if name == from {
				continue
			}
			select {
			case feed.frames <- f:
			default:
				return newError("feed %q backlog overflow", name)
			}
		}
	}

	return nil
}

// Feed is one participant view of a Bus. It implements transport.Transport.
type Feed struct {
	name   string
	bus    *Bus
	frames chan []byte
}

// Name returns the participant name the Feed was joined with.
func (self *Feed) Name() string {
	return self.name
}

// ReadBytes blocks until a frame is delivered to the Feed.
// It errors with ErrClosed once the Bus is closed and the backlog is drained.
func (self *Feed) ReadBytes() ([]byte, error) {
	frame, ok := <-self.frames
	if !ok {
		return nil, closedError("bus is closed")
	}

	return frame, nil
}

// WriteBytes broadcasts data to all other Bus participants.
func (self *Feed) WriteBytes(data []byte) error {
	// copy so that later mutations by the writer do not race with readers
	frame := make([]byte, len(data))
	copy(frame, data)

	return self.bus.broadcast(self.name, frame)
}

var _ transport.Transport = &Feed{}

// FilterTransport wraps a Transport and discards read frames rejected by Keep.
//
// On a broadcast medium a participant observes traffic belonging to other
// sessions. Wrapping its Feed in a FilterTransport keeps the protocol state
// machine blind to frames it is not a party to.
type FilterTransport struct {
	transport.Transport
	Keep func(frame []byte) bool
}

// ReadBytes returns the next frame accepted by Keep.
func (self FilterTransport) ReadBytes() ([]byte, error) {
	for {
		frame, err := self.Transport.ReadBytes()
		if nil != err {
			return nil, err
		}
		if nil == self.Keep || self.Keep(frame) {
			return frame, nil
		}
	}
}

var _ transport.Transport = FilterTransport{}
