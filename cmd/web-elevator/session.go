package main

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"go-sweep-elevator/pkg/elevator"
)

// ClientMessage is a request sent over the WebSocket.
// 클라이언트 메시지 타입 정의
type ClientMessage struct {
	Action  string `json:"action"`
	Floor   int    `json:"floor,omitempty"`
	Up      bool   `json:"up,omitempty"`
	Down    bool   `json:"down,omitempty"`
	Command string `json:"command,omitempty"`
}

// ServerMessage is pushed to the client: a state snapshot, an event, or the
// result of an action.
type ServerMessage struct {
	Type      string      `json:"type"`
	EventType string      `json:"eventType,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Result    string      `json:"result,omitempty"`
	State     *StateDTO   `json:"state,omitempty"`
}

// ElevatorSession manages one WebSocket connection to the shared car.
// ElevatorSession은 공유 엘리베이터와의 WebSocket 연결을 관리합니다.
type ElevatorSession struct {
	conn        *websocket.Conn
	car         *elevator.Car
	events      <-chan elevator.Event
	unsubscribe func()
	mu          sync.Mutex // serializes writes
	done        chan struct{}
}

func newSession(conn *websocket.Conn, car *elevator.Car, h *hub) *ElevatorSession {
	events, unsubscribe := h.subscribe()
	return &ElevatorSession{
		conn:        conn,
		car:         car,
		events:      events,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
}

// HandleMessages reads client actions until the connection closes.
func (s *ElevatorSession) HandleMessages() {
	slog.Info("Session started", "remote_addr", s.conn.RemoteAddr())
	defer func() {
		close(s.done)
		s.unsubscribe()
		_ = s.conn.Close()
		slog.Info("Session ended", "remote_addr", s.conn.RemoteAddr())
	}()

	go s.eventListener()
	s.sendState()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("Failed to parse message", "error", err)
			continue
		}

		s.handleAction(msg)
	}
}

func (s *ElevatorSession) handleAction(msg ClientMessage) {
	slog.Debug("Action received", "action", msg.Action, "payload", msg)

	switch msg.Action {
	case "call":
		res := s.car.RequestHallCall(msg.Floor, msg.Up, msg.Down)
		s.writeJSON(ServerMessage{Type: "result", Result: res.String()})
	case "selectFloor":
		res := s.car.RequestFloorSelection(msg.Floor)
		s.writeJSON(ServerMessage{Type: "result", Result: res.String()})
	case "setDoors":
		cmd, err := elevator.ParseDoorCommand(msg.Command)
		if err != nil {
			slog.Warn("Invalid door command via WS", "command", msg.Command, "error", err)
			s.writeJSON(ServerMessage{Type: "error", Result: err.Error()})
			return
		}
		s.car.RequestDoorCommand(cmd)
		s.writeJSON(ServerMessage{Type: "result", Result: "Accepted"})
	case "getState":
		s.sendState()
	default:
		slog.Warn("Unknown action", "action", msg.Action)
	}
}

func (s *ElevatorSession) eventListener() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.sendEvent(event)
			s.sendState()
		}
	}
}

func (s *ElevatorSession) sendState() {
	state := newStateDTO(s.car.Snapshot())
	s.writeJSON(ServerMessage{Type: "state", State: &state})
}

func (s *ElevatorSession) sendEvent(event elevator.Event) {
	s.writeJSON(ServerMessage{
		Type:      "event",
		EventType: string(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp.Format("15:04:05"),
	})
}

func (s *ElevatorSession) writeJSON(msg ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		slog.Error("Failed to write JSON message", "error", err)
	}
}
