package receiver

import (
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// Relay is a websocket endpoint forwarding every message from one client
// to all other connected clients. Devices stream into it and browsers or
// recorders listen.
type Relay struct {
	lock    sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewRelay creates a Relay.
func NewRelay() *Relay {
	return &Relay{clients: make(map[*websocket.Conn]struct{})}
}

// Handler returns the websocket handler.
func (r *Relay) Handler() websocket.Handler {
	return websocket.Handler(r.serve)
}

// Clients returns the number of connected clients.
func (r *Relay) Clients() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.clients)
}

func (r *Relay) serve(ws *websocket.Conn) {
	r.lock.Lock()
	r.clients[ws] = struct{}{}
	r.lock.Unlock()
	glog.Infof("relay: client %s connected", ws.Request().RemoteAddr)
	defer func() {
		r.lock.Lock()
		delete(r.clients, ws)
		r.lock.Unlock()
		ws.Close()
		glog.Infof("relay: client %s disconnected", ws.Request().RemoteAddr)
	}()
	for {
		var msg []byte
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			return
		}
		r.broadcast(ws, msg)
	}
}

func (r *Relay) broadcast(from *websocket.Conn, msg []byte) {
	r.lock.Lock()
	targets := make([]*websocket.Conn, 0, len(r.clients))
	for c := range r.clients {
		if c != from {
			targets = append(targets, c)
		}
	}
	r.lock.Unlock()
	for _, c := range targets {
		if err := websocket.Message.Send(c, msg); err != nil {
			glog.V(2).Infof("relay: send to %s: %v", c.Request().RemoteAddr, err)
		}
	}
}
