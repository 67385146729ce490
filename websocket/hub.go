package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTypingTimeout = 5 * time.Second

var errClientClosed = errors.New("relay: client closed")

type typingKey struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}

type typingState struct {
	peer      uuid.UUID
	expiresAt time.Time
}

// Hub is the relay's registry of live clients keyed by user, plus the typing
// indicator state. Everything it tracks is in memory and best effort.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	typing  map[typingKey]typingState

	typingTimeout time.Duration
	backplane     Backplane
	nodeID        string
	now           func() time.Time
	started       bool
}

type Option func(*Hub)

func WithBackplane(b Backplane) Option {
	return func(h *Hub) { h.backplane = b }
}

func WithTypingTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.typingTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:       make(map[uuid.UUID]map[*Client]struct{}),
		typing:        make(map[typingKey]typingState),
		typingTimeout: DefaultTypingTimeout,
		nodeID:        uuid.NewString(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to the backplane, if any, and pumps remote envelopes to
// local clients until ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	if h.backplane == nil {
		return nil
	}
	envs, err := h.backplane.Subscribe(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()

	go func() {
		for env := range envs {
			if env.Origin == h.nodeID {
				continue
			}
			h.deliverLocal(env.UserID, env.Payload)
		}
		h.mu.Lock()
		h.started = false
		h.mu.Unlock()
	}()
	return nil
}

// Register adds c and starts its write loop. The client unregisters itself
// when the loop ends.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set := h.clients[c.UserID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	log.Printf("Client registered: %s (%s)", c.UserID, c.ID)
	go c.writeLoop(h.Unregister)
}

// Unregister is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := false
	if set, ok := h.clients[c.UserID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			removed = true
		}
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	c.Close()
	if removed {
		log.Printf("Client unregistered: %s (%s)", c.UserID, c.ID)
	}
}

func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Emit sends ev to every live client of userID. Local clients get it
// directly; with a running backplane it is also published for the other
// nodes. Users without a live client are skipped silently.
func (h *Hub) Emit(ctx context.Context, userID uuid.UUID, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.deliverLocal(userID, payload)

	h.mu.RLock()
	viaBackplane := h.backplane != nil && h.started
	h.mu.RUnlock()
	if !viaBackplane {
		return nil
	}
	return h.backplane.Publish(ctx, Envelope{Origin: h.nodeID, UserID: userID, Payload: payload})
}

// SendTo queues ev for one client only.
func (h *Hub) SendTo(c *Client, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !c.enqueue(payload) {
		return errClientClosed
	}
	return nil
}

func (h *Hub) deliverLocal(userID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		if c.enqueue(payload) {
			delivered++
		} else {
			log.Printf("relay: dropping slow client %s (%s)", c.UserID, c.ID)
		}
	}
	return delivered
}

// StartTyping moves (conversationID, typist) to typing and tells peer. A
// repeat while already typing only extends the deadline.
func (h *Hub) StartTyping(ctx context.Context, conversationID, typist, peer uuid.UUID) bool {
	key := typingKey{ConversationID: conversationID, UserID: typist}
	now := h.now()

	h.mu.Lock()
	_, already := h.typing[key]
	h.typing[key] = typingState{peer: peer, expiresAt: now.Add(h.typingTimeout)}
	h.mu.Unlock()

	if already {
		return false
	}
	h.emitTyping(ctx, EventUserTyping, peer, key)
	return true
}

// StopTyping moves (conversationID, typist) back to idle, telling the peer if
// it was typing.
func (h *Hub) StopTyping(ctx context.Context, conversationID, typist uuid.UUID) bool {
	key := typingKey{ConversationID: conversationID, UserID: typist}

	h.mu.Lock()
	state, ok := h.typing[key]
	delete(h.typing, key)
	h.mu.Unlock()

	if !ok {
		return false
	}
	h.emitTyping(ctx, EventUserStopTyping, state.peer, key)
	return true
}

// ExpireTyping resets every indicator whose deadline has passed and returns
// how many it reset.
func (h *Hub) ExpireTyping(ctx context.Context) int {
	now := h.now()
	expired := make(map[typingKey]typingState)

	h.mu.Lock()
	for key, state := range h.typing {
		if !now.Before(state.expiresAt) {
			expired[key] = state
			delete(h.typing, key)
		}
	}
	h.mu.Unlock()

	for key, state := range expired {
		h.emitTyping(ctx, EventUserStopTyping, state.peer, key)
	}
	return len(expired)
}

func (h *Hub) IsTyping(conversationID, typist uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.typing[typingKey{ConversationID: conversationID, UserID: typist}]
	return ok
}

func (h *Hub) emitTyping(ctx context.Context, eventType string, peer uuid.UUID, key typingKey) {
	ev := Event{Type: eventType, Data: TypingPayload{ConversationID: key.ConversationID, UserID: key.UserID}}
	if err := h.Emit(ctx, peer, ev); err != nil {
		log.Printf("relay: %s to %s: %v", eventType, peer, err)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[uuid.UUID]map[*Client]struct{})
	h.typing = make(map[typingKey]typingState)
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	if h.backplane != nil {
		if err := h.backplane.Close(); err != nil {
			log.Printf("relay: closing backplane: %v", err)
		}
	}
}
