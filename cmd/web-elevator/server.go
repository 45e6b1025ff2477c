package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"go-sweep-elevator/pkg/elevator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// CallRequest is the body of POST /call.
type CallRequest struct {
	Floor int  `json:"floor"`
	Up    bool `json:"up"`
	Down  bool `json:"down"`
}

// AdmissionResponse reports what the car did with a request.
type AdmissionResponse struct {
	Result   string `json:"result"`
	Accepted bool   `json:"accepted"`
}

// StopDTO is the wire form of a pending stop.
type StopDTO struct {
	Floor int  `json:"floor"`
	Up    bool `json:"up"`
	Down  bool `json:"down"`
}

// StateDTO is the wire form of a car snapshot.
type StateDTO struct {
	Floor       int       `json:"floor"`
	Door        string    `json:"door"`
	DoorCommand string    `json:"doorCommand"`
	Stops       []StopDTO `json:"stops"`
}

func newStateDTO(s elevator.State) StateDTO {
	stops := make([]StopDTO, 0, len(s.Stops))
	for _, st := range s.Stops {
		stops = append(stops, StopDTO{Floor: st.Floor, Up: st.WantsUp, Down: st.WantsDown})
	}
	return StateDTO{
		Floor:       s.Floor,
		Door:        string(s.Door),
		DoorCommand: s.DoorCommand.String(),
		Stops:       stops,
	}
}

func newAdmissionResponse(a elevator.Admission) AdmissionResponse {
	return AdmissionResponse{Result: a.String(), Accepted: a.Accepted()}
}

type server struct {
	car *elevator.Car
	hub *hub
}

func newServer(car *elevator.Car, h *hub) *server {
	return &server{car: car, hub: h}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /call", s.handleCall)
	mux.HandleFunc("POST /select_floor", s.handleSelectFloor)
	mux.HandleFunc("POST /set_doors_command", s.handleSetDoorsCommand)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := s.car.RequestHallCall(req.Floor, req.Up, req.Down)
	writeJSON(w, http.StatusOK, newAdmissionResponse(res))
}

func (s *server) handleSelectFloor(w http.ResponseWriter, r *http.Request) {
	var floor int
	if !decodeBody(w, r, &floor) {
		return
	}
	res := s.car.RequestFloorSelection(floor)
	writeJSON(w, http.StatusOK, newAdmissionResponse(res))
}

func (s *server) handleSetDoorsCommand(w http.ResponseWriter, r *http.Request) {
	var cmd elevator.DoorCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	s.car.RequestDoorCommand(cmd)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateDTO(s.car.Snapshot()))
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	newSession(conn, s.car, s.hub).HandleMessages()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("Failed to parse request", "path", r.URL.Path, "error", err)
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
