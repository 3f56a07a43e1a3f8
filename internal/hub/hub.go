// Package hub keeps at most one live lobby per draft session.
package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/creature-draft-backend/internal/lobby"
)

var ErrStopped = errors.New("hub stopped")

// Factory builds the lobby for a session. The hub passes the onClose hook
// the lobby must run when it stops.
type Factory func(ctx context.Context, sessionID string, onClose func(*lobby.Lobby)) *lobby.Lobby

type HubMsg interface{ isHubMsg() }

type GetLobby struct {
	SessionID string
	Reply     chan *lobby.Lobby
}

type EnsureLobby struct {
	SessionID string
	Reply     chan *lobby.Lobby
}

// RemoveLobby drops the entry only while it still points at Lobby.
type RemoveLobby struct {
	SessionID string
	Lobby     *lobby.Lobby
}

type CountLobbies struct {
	Reply chan int
}

type ShutdownHub struct{}

func (GetLobby) isHubMsg()     {}
func (EnsureLobby) isHubMsg()  {}
func (RemoveLobby) isHubMsg()  {}
func (CountLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	factory Factory
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, factory Factory) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		factory: factory,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed after the hub has stopped every lobby it owned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Ensure returns the running lobby for sessionID, starting one if needed.
func (h *Hub) Ensure(ctx context.Context, sessionID string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, EnsureLobby{SessionID: sessionID, Reply: reply}); err != nil {
		return nil, err
	}
	return h.recv(ctx, reply)
}

// Get returns the running lobby for sessionID or nil.
func (h *Hub) Get(ctx context.Context, sessionID string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{SessionID: sessionID, Reply: reply}); err != nil {
		return nil, err
	}
	return h.recv(ctx, reply)
}

func (h *Hub) Shutdown(ctx context.Context) error {
	if err := h.send(ctx, ShutdownHub{}); err != nil && !errors.Is(err, ErrStopped) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) recv(ctx context.Context, reply <-chan *lobby.Lobby) (*lobby.Lobby, error) {
	select {
	case lb := <-reply:
		return lb, nil
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onClose runs on the stopping lobby's goroutine.
func (h *Hub) onClose(lb *lobby.Lobby) {
	select {
	case h.inbox <- RemoveLobby{SessionID: lb.SessionID(), Lobby: lb}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetLobby:
				lb := h.lobbies[msg.SessionID]
				if lb != nil && lb.Closed() {
					lb = nil
				}
				msg.Reply <- lb // May be nil

			case EnsureLobby:
				// A lobby that stopped but whose RemoveLobby is still queued
				// gets replaced here.
				if lb := h.lobbies[msg.SessionID]; lb != nil && !lb.Closed() {
					msg.Reply <- lb
					break
				}
				lb := h.factory(h.ctx, msg.SessionID, h.onClose)
				h.lobbies[msg.SessionID] = lb
				msg.Reply <- lb

			case RemoveLobby:
				if h.lobbies[msg.SessionID] == msg.Lobby {
					delete(h.lobbies, msg.SessionID)
				}

			case CountLobbies:
				msg.Reply <- len(h.lobbies)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	h.cancel()
	for _, lb := range h.lobbies {
		lb.Close()
	}
	for _, lb := range h.lobbies {
		<-lb.Done()
	}
	clear(h.lobbies)
}
