package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"

	"matchboard-server/internal/chess"
	"matchboard-server/internal/tictactoe"
)

// Config comes from the environment (a local .env is loaded automatically).
type Config struct {
	Port        int           `env:"PORT" envDefault:"8080"`
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT" envDefault:"10s"`
	RateLimit   int           `env:"RATE_LIMIT" envDefault:"20"`
	RateWindow  time.Duration `env:"RATE_WINDOW" envDefault:"1s"`
}

// Server owns all matchmaking state: the connection registry shared by
// every variant, and one engine (queue + sessions) per game variant. It is
// constructed once at startup and handed by reference to the handlers.
type Server struct {
	cfg         Config
	registry    *ConnectionRegistry
	engines     map[string]*SessionManager
	rateLimiter *RateLimiter
}

func NewServer() (*Server, *http.Server) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	srv := &Server{
		cfg:      cfg,
		registry: NewConnectionRegistry(),
		engines: map[string]*SessionManager{
			"chess":     NewSessionManager(chess.New()),
			"tictactoe": NewSessionManager(tictactoe.New()),
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// Shutdown tells every connected player the server is going away and
// closes their sockets, which runs each connection's normal disconnect
// cleanup path.
func (s *Server) Shutdown(ctx context.Context) error {
	conns := s.registry.All()
	log.Printf("Shutting down, notifying %d connected players", len(conns))

	for _, conn := range conns {
		s.send(conn, ctx, ServerMessage{
			Type: "error",
			Payload: ErrorMessage{
				Message: "Server shutting down",
				Code:    "SERVER_SHUTDOWN",
			},
		})
		conn.Close(websocket.StatusGoingAway, "Server shutting down")
	}
	return nil
}
