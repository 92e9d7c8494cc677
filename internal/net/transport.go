// Package net relays surface events between PatternBoard instances on the
// local network so a second screen can follow a session live.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PatternBoard/internal/applog"
	"PatternBoard/internal/state"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	// maxMessage bounds one event, preview image included.
	maxMessage = 2 << 20
)

// Peer is one connected websocket client.
type Peer struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

func newPeer(conn *websocket.Conn) *Peer {
	return &Peer{conn: conn, send: make(chan []byte, sendBuffer), addr: conn.RemoteAddr().String()}
}

func (p *Peer) writeLoop() {
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			p.conn.Close()
			for range p.send {
			}
			return
		}
	}
	p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.conn.Close()
}

// Relay is the host side: it streams every locally published event to all
// peers, and hands events from one peer to the local bus and to the others.
type Relay struct {
	bus      *state.Bus
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu    sync.RWMutex
	peers map[*Peer]struct{}
}

// NewRelay returns a relay attached to bus. Close detaches it.
func NewRelay(bus *state.Bus) *Relay {
	return &Relay{
		bus:      bus,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      applog.Component("relay"),
		peers:    make(map[*Peer]struct{}),
	}
}

// Peers returns the number of connected clients.
func (r *Relay) Peers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Relay) add(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p] = struct{}{}
	r.log.Info("client connected", "addr", p.addr)
}

func (r *Relay) remove(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p]; !ok {
		return
	}
	delete(r.peers, p)
	close(p.send)
	r.log.Info("client disconnected", "addr", p.addr)
}

// Broadcast queues data for every peer except exclude. Peers whose queue
// is full miss the message rather than stall the publisher.
func (r *Relay) Broadcast(data []byte, exclude *Peer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for p := range r.peers {
		if p == exclude {
			continue
		}
		select {
		case p.send <- data:
		default:
			r.log.Warn("dropping event for slow client", "addr", p.addr)
		}
	}
}

// ServeHTTP upgrades the request and serves the peer until it leaves.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessage)
	p := newPeer(conn)
	r.add(p)
	go p.writeLoop()
	defer r.remove(p)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.log.Debug("read failed", "addr", p.addr, "err", err)
			}
			return
		}
		var e state.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			r.log.Warn("bad event", "addr", p.addr, "err", err)
			continue
		}
		r.bus.Deliver(e)
		r.Broadcast(msg, p)
	}
}

// Attach starts streaming local events to peers and returns a function
// that stops it.
func (r *Relay) Attach() (detach func()) {
	site := r.bus.Site()
	return r.bus.Subscribe(func(e state.Event) {
		if e.Site != site {
			return
		}
		data, err := json.Marshal(e)
		if err != nil {
			r.log.Error("encode event", "err", err)
			return
		}
		r.Broadcast(data, nil)
	})
}

// Close disconnects every peer.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p := range r.peers {
		delete(r.peers, p)
		close(p.send)
	}
}

// Serve listens on port and serves the relay at /ws until ctx ends. It
// returns once the listener is bound, with the bound address.
func Serve(ctx context.Context, r *Relay, port int) (net.Addr, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", r)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	detach := r.Attach()

	go func() {
		<-ctx.Done()
		detach()
		r.Close()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("relay stopped", "err", err)
		}
	}()
	r.log.Info("relay listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Client follows a relay: remote events go to the local bus and local
// events go to the relay.
type Client struct {
	conn   *websocket.Conn
	detach func()
	done   chan struct{}
	mu     sync.Mutex
}

// Dial connects to a relay at url, e.g. ws://host:8888/ws.
func Dial(ctx context.Context, url string, bus *state.Bus) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessage)
	c := &Client{conn: conn, done: make(chan struct{})}
	log := applog.Component("relay")
	site := bus.Site()
	c.detach = bus.Subscribe(func(e state.Event) {
		if e.Site != site {
			return
		}
		if err := c.send(e); err != nil {
			log.Warn("send event", "err", err)
		}
	})
	go func() {
		defer close(c.done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var e state.Event
			if err := json.Unmarshal(msg, &e); err != nil {
				log.Warn("bad event", "err", err)
				continue
			}
			bus.Deliver(e)
		}
	}()
	log.Info("connected to relay", "url", url)
	return c, nil
}

func (c *Client) send(e state.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(e)
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close leaves the relay.
func (c *Client) Close() error {
	c.detach()
	c.mu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	<-c.done
	c.conn.Close()
	return err
}
