// Package elevator implements the control logic of a single elevator car.
// 이 패키지는 단일 엘리베이터 카의 제어 로직을 구현합니다.
// 스윕(Sweep) 정책으로 층별 이동을 결정하고, 정지 상태에서만 문을 조작합니다.
package elevator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiendc/go-deepcopy"
)

var (
	// ErrInvalidConfig is returned by New for unusable configurations.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrTickInProgress is returned when Tick is called while another tick runs.
	ErrTickInProgress = errors.New("tick already in progress")
	// ErrTickAborted wraps the interruption that ended a tick early.
	ErrTickAborted = errors.New("tick aborted")
)

// EventType represents the category of an elevator event.
// EventType는 엘리베이터 이벤트의 카테고리를 나타냅니다.
type EventType string

const (
	EventFloorChange  EventType = "FloorChange"
	EventDoorChange   EventType = "DoorChange"
	EventArrived      EventType = "Arrived"
	EventStopAdmitted EventType = "StopAdmitted"
	EventDoorCommand  EventType = "DoorCommand"
	EventTickAborted  EventType = "TickAborted"
)

// Event carries the state change information.
// Event는 시스템 내에서 발생한 상태 변화 정보를 담고 있습니다.
type Event struct {
	Type      EventType
	Payload   interface{}
	Timestamp time.Time
}

// ArrivedPayload carries detail for arrival events.
// ArrivedPayload는 도착 이벤트의 세부 정보를 담고 있습니다.
type ArrivedPayload struct {
	Floor     int
	Direction Direction
}

// Config holds immutable configuration parameters.
// Config는 시스템 시작 시 설정되며, 런타임 중에 변경되지 않습니다.
type Config struct {
	ID             string
	MinFloor       int           // 최저 층
	MaxFloor       int           // 최고 층
	InitialFloor   int           // 초기 층
	TravelTime     time.Duration // 한 층 이동 시간
	DoorSpeed      time.Duration // 문 열림/닫힘 동작 시간
	DoorOpenTime   time.Duration // 문 열림 후 자동 닫힘까지 대기 시간
	DoorSettleTime time.Duration // 문 닫힘 후 출발까지 대기 시간
	EventBuffer    int           // 이벤트 채널 버퍼 크기
}

// DefaultConfig returns the delays of the reference installation.
func DefaultConfig() Config {
	return Config{
		ID:             "car-1",
		MinFloor:       1,
		MaxFloor:       10,
		InitialFloor:   1,
		TravelTime:     time.Second,
		DoorSpeed:      time.Second,
		DoorOpenTime:   5 * time.Second,
		DoorSettleTime: 2 * time.Second,
		EventBuffer:    1000,
	}
}

// State is a point-in-time copy of the car for observers.
type State struct {
	Floor       int
	Door        DoorStatus
	DoorCommand DoorCommand
	Stops       []Stop
}

// Car is the single elevator car.
// The mutex guards stops and doorCommand only and is never held across a
// delay. floor and doorOpen are written by the tick routine alone.
// Car는 단일 엘리베이터 카입니다. 뮤텍스는 대기 정지 목록과 문 명령만 보호합니다.
type Car struct {
	Config Config

	// --- Shared with admission (mu 보호) ---
	mu          sync.Mutex
	stops       map[int]Stop
	doorCommand DoorCommand

	// --- Written by the tick routine only ---
	floor    atomic.Int64
	doorOpen atomic.Bool
	ticking  atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error

	// --- Observability ---
	logger            *slog.Logger
	eventCh           chan Event
	droppedEventCount atomic.Uint64
}

// New initializes a new Car instance with strict validation.
// 잘못된 설정(예: Min > Max)이 감지되면 즉시 에러를 반환합니다 (Fail Fast).
func New(config Config) (*Car, error) {
	if config.MinFloor > config.MaxFloor {
		return nil, fmt.Errorf("%w: MinFloor (%d) > MaxFloor (%d)", ErrInvalidConfig, config.MinFloor, config.MaxFloor)
	}
	if config.InitialFloor == ReservedFloor {
		return nil, fmt.Errorf("%w: InitialFloor cannot be the reserved floor %d", ErrInvalidConfig, ReservedFloor)
	}
	if config.InitialFloor < config.MinFloor || config.InitialFloor > config.MaxFloor {
		return nil, fmt.Errorf("%w: InitialFloor (%d) outside [%d, %d]", ErrInvalidConfig, config.InitialFloor, config.MinFloor, config.MaxFloor)
	}
	if config.TravelTime < 0 || config.DoorSpeed < 0 || config.DoorOpenTime < 0 || config.DoorSettleTime < 0 {
		return nil, fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 1000
	}

	c := &Car{
		Config:  config,
		stops:   make(map[int]Stop),
		sleep:   sleepContext,
		eventCh: make(chan Event, config.EventBuffer),
		logger:  slog.Default().With("id", config.ID),
	}
	c.floor.Store(int64(config.InitialFloor))

	c.logger.Info("Elevator initialized",
		"min", config.MinFloor,
		"max", config.MaxFloor,
		"init_floor", config.InitialFloor,
	)
	return c, nil
}

// CurrentFloor returns the current floor without locking.
// CurrentFloor는 현재 층을 반환합니다.
func (c *Car) CurrentFloor() int {
	return int(c.floor.Load())
}

// DoorStatus returns the actual door state without locking.
// DoorStatus는 실제 문 상태를 반환합니다.
func (c *Car) DoorStatus() DoorStatus {
	if c.doorOpen.Load() {
		return DoorOpen
	}
	return DoorClosed
}

// DoorCommand returns the pending door command.
func (c *Car) DoorCommand() DoorCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doorCommand
}

// PendingStops returns a copy of the pending stops sorted by floor.
// PendingStops는 대기 중인 정지 목록의 복사본을 층 순서로 반환합니다.
func (c *Car) PendingStops() []Stop {
	c.mu.Lock()
	stops, err := cloneStops(c.stops)
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("Failed to copy pending stops", "error", err)
		return nil
	}

	out := make([]Stop, 0, len(stops))
	for _, f := range sortedFloors(stops) {
		out = append(out, stops[f])
	}
	return out
}

// Snapshot returns a complete snapshot of the car status.
// Snapshot은 엘리베이터의 전체 상태 스냅샷을 반환합니다.
func (c *Car) Snapshot() State {
	return State{
		Floor:       c.CurrentFloor(),
		Door:        c.DoorStatus(),
		DoorCommand: c.DoorCommand(),
		Stops:       c.PendingStops(),
	}
}

// Events returns the read-only channel for state change notifications.
// Events는 상태 변경 알림을 위한 읽기 전용 채널을 반환합니다.
func (c *Car) Events() <-chan Event {
	return c.eventCh
}

// DroppedEventCount returns diagnostic metric for channel health.
// DroppedEventCount는 버퍼 오버플로우로 버려진 이벤트 수를 반환합니다.
func (c *Car) DroppedEventCount() uint64 {
	return c.droppedEventCount.Load()
}

// publishEvent sends an event to the channel without blocking logic.
// 채널이 가득 차면 이벤트를 버리고 메트릭을 증가시킵니다 (System Stability).
func (c *Car) publishEvent(eventType EventType, payload interface{}) {
	event := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case c.eventCh <- event:
	default:
		dropped := c.droppedEventCount.Add(1)
		// Log rarely to avoid disk I/O flooding
		if dropped%100 == 1 {
			c.logger.Error("Event Channel Saturated", "dropped", dropped, "type", eventType)
		}
	}
}

// RequestHallCall registers a call from a landing with its direction intent.
// Invalid floors and calls without a direction are ignored.
// RequestHallCall은 승강장 호출을 등록합니다. 유효하지 않은 요청은 조용히 무시됩니다.
func (c *Car) RequestHallCall(floor int, up, down bool) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := validateFloor(floor, c.CurrentFloor(), c.Config.MinFloor, c.Config.MaxFloor)
	if res == Accepted {
		res = mergeHallCall(c.stops, floor, up, down)
	}

	if !res.Accepted() {
		c.logger.Debug("Hall call ignored", "floor", floor, "up", up, "down", down, "reason", res)
		return res
	}
	c.logger.Info("Hall Call registered", "floor", floor, "up", up, "down", down, "result", res)
	c.publishEvent(EventStopAdmitted, c.stops[floor])
	return res
}

// RequestFloorSelection registers a floor chosen inside the car.
// The car stops there whatever its direction of approach.
// RequestFloorSelection은 카 내부에서 선택한 층을 등록합니다.
func (c *Car) RequestFloorSelection(floor int) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := validateFloor(floor, c.CurrentFloor(), c.Config.MinFloor, c.Config.MaxFloor)
	if res != Accepted {
		c.logger.Debug("Floor selection ignored", "floor", floor, "reason", res)
		return res
	}

	if _, ok := c.stops[floor]; ok {
		res = Merged
	}
	c.stops[floor] = Stop{Floor: floor, WantsUp: true, WantsDown: true}
	c.logger.Info("Car Call registered", "floor", floor, "result", res)
	c.publishEvent(EventStopAdmitted, c.stops[floor])
	return res
}

// RequestDoorCommand stores cmd in the door command slot.
// It takes effect once the car is stationary.
// RequestDoorCommand는 문 명령을 저장합니다. 카가 정지했을 때 처리됩니다.
func (c *Car) RequestDoorCommand(cmd DoorCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doorCommand = cmd
	c.logger.Info("Door command set", "command", cmd)
	c.publishEvent(EventDoorCommand, cmd)
}

// cloneStops deep-copies the stop map for use outside the lock.
func cloneStops(src map[int]Stop) (map[int]Stop, error) {
	dst := make(map[int]Stop, len(src))
	if err := deepcopy.Copy(&dst, src); err != nil {
		return nil, fmt.Errorf("copy stops: %w", err)
	}
	return dst, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
