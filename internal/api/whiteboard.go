package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/teris-io/shortid"
)

type WhiteboardApp struct {
	log             *log.Logger
	repo            database.Repository
	srv             *http.Server
	bs              *server.BoardServer
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
	newConnId       func() string
}

func NewWhiteboardApp(mux *http.ServeMux, logger *log.Logger, bs *server.BoardServer, repo database.Repository, cfg *config.Config) *WhiteboardApp {
	s := &WhiteboardApp{
		log:             logger,
		repo:            repo,
		bs:              bs,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
		newConnId:       uuid.NewString,
	}

	mux.HandleFunc("POST /api/rooms", s.noStore(s.createRoom))
	mux.HandleFunc("GET /api/rooms/{roomId}", s.noStore(s.getRoom))
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *WhiteboardApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *WhiteboardApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
