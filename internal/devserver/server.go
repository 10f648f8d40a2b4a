package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/omochice/toy-socket-relay/internal/endpoint"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

const outgoingBuffer = 16

// Server serves the relay endpoint.
type Server struct {
	address string
	hub     *Hub
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Server listening on address.
func New(address string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		hub:     NewHub(logger.Named("hub")),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Hub returns the server's client hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes: the relay endpoint and a health check.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())
	router.GET(endpoint.Path, s.handleWebSocket)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": s.hub.ClientCount(),
		})
	})
	return router
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler()}
	s.mu.Unlock()

	s.logger.Info("relay server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, listener := s.server, s.listener
	s.mu.Unlock()

	if srv == nil {
		return errors.New("server is not listening")
	}

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes every client with 1001 and shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.hub.CloseAll(ctx, protocol.CloseGoingAway, "server shutting down")

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}

	s.cancel()
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(c *gin.Context) {
	wsConn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("failed to accept websocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		Conn:     NewConn(wsConn, c.Request.RemoteAddr),
		Outgoing: make(chan protocol.Frame, outgoingBuffer),
	}
	s.hub.Register(client)
	s.logger.Info("client connected", zap.String("client", client.ID), zap.String("remote", client.Conn.RemoteAddr()))

	s.wg.Add(2)
	go s.writeLoop(client)
	go s.readLoop(client)
}

func (s *Server) readLoop(client *Client) {
	defer s.wg.Done()
	defer s.hub.Unregister(client)

	for {
		f, err := client.Conn.Read(s.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && s.ctx.Err() == nil {
				s.logger.Debug("read failed", zap.String("client", client.ID), zap.Error(err))
			}
			s.logger.Info("client disconnected", zap.String("client", client.ID))
			return
		}
		s.hub.Broadcast(f)
	}
}

func (s *Server) writeLoop(client *Client) {
	defer s.wg.Done()

	for f := range client.Outgoing {
		if err := client.Conn.Write(s.ctx, f); err != nil {
			s.logger.Debug("failed to write to client", zap.String("client", client.ID), zap.Error(err))
			return
		}
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
