package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
)

const (
	repoTimeout     = 5 * time.Second
	maxShortIdTries = 3
)

type CreateRoomResponse struct {
	RoomId string `json:"room_id"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *WhiteboardApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *WhiteboardApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	s.writeJson(w, errResp.StatusCode, errResp)
}

// createRoom hands out an unused private room id. The room itself is created
// by the first connection that joins it, which becomes its creator.
func (s *WhiteboardApp) createRoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), repoTimeout)
	defer cancel()

	for range maxShortIdTries {
		sid, err := s.generateShortId()
		if err != nil {
			s.log.Print("generateShortId:", err)
			s.writeError(w, NewInternalServerError(err))
			return
		}

		_, err = s.repo.GetRoom(ctx, sid)
		switch {
		case errors.Is(err, database.ErrRoomNotFound):
			s.writeJson(w, http.StatusCreated, CreateRoomResponse{RoomId: sid})
			return
		case err != nil:
			s.log.Printf("GetRoom %q: %v", sid, err)
			s.writeError(w, NewInternalServerError(err))
			return
		}

		s.log.Printf("room id %q already taken", sid)
	}

	s.writeError(w, NewInternalServerError(fmt.Errorf("no free room id after %d tries", maxShortIdTries)))
}

func (s *WhiteboardApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")

	ctx, cancel := context.WithTimeout(r.Context(), repoTimeout)
	defer cancel()

	room, err := s.repo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			s.writeError(w, NewNotFoundError())
			return
		}

		s.log.Printf("GetRoom %q: %v", roomId, err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, room.Info())
}

func (s *WhiteboardApp) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), repoTimeout)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		s.log.Println("health check:", err)
		s.writeError(w, NewServiceUnavailableError(err))
		return
	}

	s.writeJson(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *WhiteboardApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

func (s *WhiteboardApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(s.connectionId(r.URL.Query().Get("token")), conn, s.bs, s.log)
	if err := s.bs.RegisterClient(client); err != nil {
		// the resumed identity connected again in the meantime
		s.log.Printf("RegisterClient %q: %v", client.Id(), err)
		client = server.NewClient(s.newConnId(), conn, s.bs, s.log)
		if err := s.bs.RegisterClient(client); err != nil {
			s.log.Printf("RegisterClient %q: %v", client.Id(), err)
			conn.Close()
			return
		}
	}

	token, err := s.createConnectionToken(client.Id(), defaultTokenExpiration)
	if err != nil {
		s.log.Println("createConnectionToken:", err)
	}
	client.SendConnected(token)

	go client.Write()
	go client.Read()
}
