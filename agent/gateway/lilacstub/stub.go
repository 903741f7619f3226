// Package lilacstub is an in-process stand-in for the remote ordering agent.
// It serves the same /start, /chat and /order routes over gin and answers
// each turn through a pluggable Responder.
package lilacstub

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

// Turn is what a Responder sees for one /chat call.
type Turn struct {
	OrderID string
	Number  int
	Input   string
	Goal    []orderx.Item
	Order   []orderx.Item
}

// Responder produces the agent reply and the new order for a turn.
type Responder func(Turn) (reply string, order []orderx.Item)

type session struct {
	location string
	goal     []orderx.Item
	order    []orderx.Item
	messages []message
	turns    int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Option func(*Stub)

// WithToken makes every route require "x-api-key: Bearer <token>".
func WithToken(token string) Option {
	return func(s *Stub) { s.token = strings.TrimSpace(token) }
}

// WithFailures makes the next n /chat calls answer with status.
func WithFailures(n, status int) Option {
	return func(s *Stub) {
		s.failures = n
		s.failStatus = status
	}
}

type Stub struct {
	mu         sync.Mutex
	respond    Responder
	sessions   map[string]*session
	expected   map[string][]orderx.Item
	seq        int
	token      string
	failures   int
	failStatus int
	engine     *gin.Engine
}

func New(respond Responder, opts ...Option) *Stub {
	if respond == nil {
		respond = EchoGoal()
	}
	s := &Stub{
		respond:  respond,
		sessions: map[string]*session{},
		expected: map[string][]orderx.Item{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.auth)
	r.POST("/start", s.start)
	r.POST("/chat", s.chat)
	r.GET("/order/:id", s.order)
	s.engine = r
	return s
}

func (s *Stub) Handler() http.Handler {
	return s.engine
}

// Expect tells the stub which goal the customer of orderID is after.
// Responders read it from Turn.Goal.
func (s *Stub) Expect(orderID string, goal []orderx.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[orderID]; ok {
		sess.goal = orderx.CloneAll(goal)
		return
	}
	s.expected[orderID] = orderx.CloneAll(goal)
}

// Turns reports how many /chat calls an order has received.
func (s *Stub) Turns(orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[orderID]; ok {
		return sess.turns
	}
	return 0
}

func (s *Stub) auth(c *gin.Context) {
	if s.token == "" {
		c.Next()
		return
	}
	if c.GetHeader("x-api-key") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	c.Next()
}

type startRequest struct {
	Location string `json:"location" binding:"required"`
}

func (s *Stub) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("stub-order-%d", s.seq)
	s.sessions[id] = &session{
		location: req.Location,
		goal:     s.expected[id],
		order:    []orderx.Item{},
		messages: []message{},
	}
	delete(s.expected, id)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"orderId": id})
}

type chatRequest struct {
	OrderID  string `json:"orderId" binding:"required"`
	Input    string `json:"input"`
	Location string `json:"location"`
}

func (s *Stub) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		c.JSON(s.failStatus, gin.H{"error": "injected failure"})
		return
	}

	sess, ok := s.sessions[req.OrderID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown order " + req.OrderID})
		return
	}

	sess.turns++
	reply, order := s.respond(Turn{
		OrderID: req.OrderID,
		Number:  sess.turns,
		Input:   req.Input,
		Goal:    orderx.CloneAll(sess.goal),
		Order:   orderx.CloneAll(sess.order),
	})
	if order == nil {
		order = []orderx.Item{}
	}
	sess.order = order
	sess.messages = append(sess.messages,
		message{Role: "user", Content: req.Input},
		message{Role: "assistant", Content: reply},
	)

	c.JSON(http.StatusOK, gin.H{
		"messages": sess.messages,
		"order":    sess.order,
	})
}

func (s *Stub) order(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown order " + c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": sess.order})
}
