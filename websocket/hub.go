package websocket

import (
	"context"
	"log"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	TestID uuid.UUID
	Conn   Conn
}

// FinishedEvent is pushed to every teacher watching the attempt's test.
type FinishedEvent struct {
	Type           string               `json:"type"`
	AttemptID      uuid.UUID            `json:"attempt_id"`
	TestID         uuid.UUID            `json:"test_id"`
	StudentID      uuid.UUID            `json:"student_id"`
	AttemptNo      int                  `json:"attempt_no"`
	Grade          float64              `json:"grade"`
	CorrectCount   int                  `json:"correct_count"`
	TotalQuestions int                  `json:"total_questions"`
	FinishReason   *models.FinishReason `json:"finish_reason,omitempty"`
	FinishedAt     *time.Time           `json:"finished_at"`
}

// Hub fans finished attempts out to live result subscribers, grouped by test.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan FinishedEvent
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    map[uuid.UUID]map[*Client]struct{}{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan FinishedEvent, 64),
		done:       make(chan struct{}),
	}
}

// Register subscribes c. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// AttemptFinished queues the event without blocking the finishing request. A full queue drops it.
func (h *Hub) AttemptFinished(_ context.Context, a models.TestAttempt) {
	ev := FinishedEvent{
		Type:           "attempt_finished",
		AttemptID:      a.ID,
		TestID:         a.TestID,
		StudentID:      a.StudentID,
		AttemptNo:      a.AttemptNo,
		CorrectCount:   a.CorrectCount,
		TotalQuestions: a.TotalQuestions,
		FinishReason:   a.FinishReason,
		FinishedAt:     a.FinishedAt,
	}
	if a.Grade != nil {
		ev.Grade = *a.Grade
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("⚠️ Live feed queue full, dropped attempt %s", a.ID)
	}
}

// Run owns the subscriber map until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, subs := range h.clients {
				for c := range subs {
					_ = c.Conn.Close()
				}
			}
			return
		case c := <-h.register:
			log.Printf("Live results client %s watching test %s", c.UserID, c.TestID)
			subs, ok := h.clients[c.TestID]
			if !ok {
				subs = map[*Client]struct{}{}
				h.clients[c.TestID] = subs
			}
			subs[c] = struct{}{}
		case c := <-h.unregister:
			h.remove(c)
		case ev := <-h.broadcast:
			for c := range h.clients[ev.TestID] {
				if err := c.Conn.WriteJSON(ev); err != nil {
					log.Printf("Error sending live result to client %s: %v", c.UserID, err)
					_ = c.Conn.Close()
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	subs, ok := h.clients[c.TestID]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.clients, c.TestID)
	}
}

// IsCloseError reports a normal client disconnect.
func IsCloseError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure)
}
