package elevator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

const (
	testTravel = 10 * time.Millisecond
	testSpeed  = time.Second
	testOpen   = 5 * time.Second
	testSettle = 2 * time.Second
)

// newTestCar builds a car whose delays are recorded instead of slept.
func newTestCar(t *testing.T, initialFloor int) (*Car, *[]time.Duration) {
	t.Helper()
	c, err := New(Config{
		ID:             "test",
		MinFloor:       -2,
		MaxFloor:       10,
		InitialFloor:   initialFloor,
		TravelTime:     testTravel,
		DoorSpeed:      testSpeed,
		DoorOpenTime:   testOpen,
		DoorSettleTime: testSettle,
	})
	if err != nil {
		t.Fatalf("Failed to create car: %v", err)
	}

	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return c, &delays
}

func drainEvents(c *Car) []Event {
	var events []Event
	for {
		select {
		case e := <-c.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func arrivals(events []Event) []int {
	var floors []int
	for _, e := range events {
		if e.Type == EventArrived {
			floors = append(floors, e.Payload.(ArrivedPayload).Floor)
		}
	}
	return floors
}

// assertNoMoveWhileOpen fails if a floor change happens between a door
// opening and the following close.
func assertNoMoveWhileOpen(t *testing.T, events []Event) {
	t.Helper()
	open := false
	for _, e := range events {
		switch e.Type {
		case EventDoorChange:
			open = e.Payload.(DoorStatus) == DoorOpen
		case EventFloorChange:
			if open {
				t.Fatalf("Floor changed to %v while doors were open", e.Payload)
			}
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"min above max", Config{MinFloor: 5, MaxFloor: 1, InitialFloor: 3}},
		{"reserved initial floor", Config{MinFloor: -1, MaxFloor: 5, InitialFloor: 0}},
		{"initial out of range", Config{MinFloor: 1, MaxFloor: 5, InitialFloor: 6}},
		{"negative delay", Config{MinFloor: 1, MaxFloor: 5, InitialFloor: 1, DoorSpeed: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	c, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create car: %v", err)
	}
	if c.CurrentFloor() != 1 {
		t.Errorf("Expected initial floor 1, got %d", c.CurrentFloor())
	}
	if c.DoorStatus() != DoorClosed {
		t.Errorf("Expected door closed, got %s", c.DoorStatus())
	}
	if c.DoorCommand() != DoorCommandNone {
		t.Errorf("Expected no door command, got %s", c.DoorCommand())
	}
	if len(c.PendingStops()) != 0 {
		t.Errorf("Expected no stops, got %+v", c.PendingStops())
	}
}

func TestAdmission_InvalidFloorsIgnored(t *testing.T) {
	c, _ := newTestCar(t, 1)

	for _, f := range []int{0, 1, -3, 11, 100} {
		if res := c.RequestHallCall(f, true, true); res.Accepted() {
			t.Errorf("Hall call to %d: expected rejection, got %s", f, res)
		}
		if res := c.RequestFloorSelection(f); res.Accepted() {
			t.Errorf("Selection of %d: expected rejection, got %s", f, res)
		}
	}

	if stops := c.PendingStops(); len(stops) != 0 {
		t.Errorf("Expected pending stops unchanged, got %+v", stops)
	}
}

func TestAdmission_HallCallWithoutDirection(t *testing.T) {
	c, _ := newTestCar(t, 1)

	if res := c.RequestHallCall(4, false, false); res != RejectedNoDirection {
		t.Errorf("Expected RejectedNoDirection, got %s", res)
	}
	if stops := c.PendingStops(); len(stops) != 0 {
		t.Errorf("Expected no phantom stop, got %+v", stops)
	}
}

func TestAdmission_Idempotent(t *testing.T) {
	once, _ := newTestCar(t, 1)
	once.RequestHallCall(6, true, false)

	twice, _ := newTestCar(t, 1)
	twice.RequestHallCall(6, true, false)
	twice.RequestHallCall(6, true, false)

	if !reflect.DeepEqual(once.PendingStops(), twice.PendingStops()) {
		t.Errorf("Expected %+v, got %+v", once.PendingStops(), twice.PendingStops())
	}
}

func TestAdmission_MergeEqualsSelection(t *testing.T) {
	merged, _ := newTestCar(t, 1)
	merged.RequestHallCall(6, true, false)
	if res := merged.RequestHallCall(6, false, true); res != Merged {
		t.Errorf("Expected Merged, got %s", res)
	}

	selected, _ := newTestCar(t, 1)
	if res := selected.RequestFloorSelection(6); res != Accepted {
		t.Errorf("Expected Accepted, got %s", res)
	}

	want := []Stop{{Floor: 6, WantsUp: true, WantsDown: true}}
	if !reflect.DeepEqual(merged.PendingStops(), want) {
		t.Errorf("Merged: expected %+v, got %+v", want, merged.PendingStops())
	}
	if !reflect.DeepEqual(selected.PendingStops(), want) {
		t.Errorf("Selected: expected %+v, got %+v", want, selected.PendingStops())
	}
}

func TestAdmission_SelectionOverwritesHallCall(t *testing.T) {
	c, _ := newTestCar(t, 1)
	c.RequestHallCall(-2, false, true)
	if res := c.RequestFloorSelection(-2); res != Merged {
		t.Errorf("Expected Merged, got %s", res)
	}

	want := []Stop{{Floor: -2, WantsUp: true, WantsDown: true}}
	if got := c.PendingStops(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestPendingStops_IsCopy(t *testing.T) {
	c, _ := newTestCar(t, 1)
	c.RequestHallCall(3, true, false)

	stops := c.PendingStops()
	stops[0].WantsDown = true

	if c.PendingStops()[0].WantsDown {
		t.Error("Mutating the returned slice changed the car's stops")
	}
}

func TestTick_Idle(t *testing.T) {
	c, delays := newTestCar(t, 4)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if c.CurrentFloor() != 4 {
		t.Errorf("Expected floor 4, got %d", c.CurrentFloor())
	}
	if len(*delays) != 0 {
		t.Errorf("Expected no delays while idle, got %v", *delays)
	}
}

func TestTick_SweepUp(t *testing.T) {
	c, _ := newTestCar(t, 1)
	c.RequestHallCall(3, true, false)
	c.RequestHallCall(5, true, false)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	events := drainEvents(c)
	if got := arrivals(events); !reflect.DeepEqual(got, []int{3, 5}) {
		t.Errorf("Expected stops at [3 5], got %v", got)
	}
	if c.CurrentFloor() != 5 {
		t.Errorf("Expected floor 5, got %d", c.CurrentFloor())
	}
	if stops := c.PendingStops(); len(stops) != 0 {
		t.Errorf("Expected no pending stops, got %+v", stops)
	}
	if c.DoorStatus() != DoorClosed || c.DoorCommand() != DoorCommandNone {
		t.Errorf("Expected closed door and no command, got %s / %s", c.DoorStatus(), c.DoorCommand())
	}
	assertNoMoveWhileOpen(t, events)

	// Idle afterwards.
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if events := drainEvents(c); len(events) != 0 {
		t.Errorf("Expected idle tick, got events %+v", events)
	}
}

func TestTick_SkipsOppositeDirectionOnTheWay(t *testing.T) {
	c, _ := newTestCar(t, 1)
	c.RequestHallCall(3, false, true)
	c.RequestHallCall(5, true, false)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	// 5 first (floor 3 passed going up), then 3 on the return sweep.
	if got := arrivals(drainEvents(c)); !reflect.DeepEqual(got, []int{5, 3}) {
		t.Errorf("Expected stops at [5 3], got %v", got)
	}
	if c.CurrentFloor() != 3 {
		t.Errorf("Expected floor 3, got %d", c.CurrentFloor())
	}
}

func TestTick_TargetAlwaysStops(t *testing.T) {
	c, _ := newTestCar(t, 1)
	c.RequestHallCall(5, false, true)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if got := arrivals(drainEvents(c)); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("Expected stop at [5], got %v", got)
	}
}

func TestTick_SweepDown(t *testing.T) {
	c, _ := newTestCar(t, 8)
	c.RequestHallCall(6, true, false)
	c.RequestHallCall(4, false, true)
	c.RequestHallCall(-1, true, false)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	// Down to -1 picking up 4 (wants down), skipping 6 (wants up); then up to 6.
	if got := arrivals(drainEvents(c)); !reflect.DeepEqual(got, []int{4, -1, 6}) {
		t.Errorf("Expected stops at [4 -1 6], got %v", got)
	}
	if c.CurrentFloor() != 6 {
		t.Errorf("Expected floor 6, got %d", c.CurrentFloor())
	}
}

func TestTick_SweepPassesThroughReservedFloor(t *testing.T) {
	c, _ := newTestCar(t, 2)
	c.RequestFloorSelection(-2)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	var floors []int
	for _, e := range drainEvents(c) {
		if e.Type == EventFloorChange {
			floors = append(floors, e.Payload.(int))
		}
	}
	if want := []int{1, 0, -1, -2}; !reflect.DeepEqual(floors, want) {
		t.Errorf("Expected floor changes %v, got %v", want, floors)
	}
}

func TestTick_DoorReconciliation(t *testing.T) {
	c, delays := newTestCar(t, 2)

	var during []DoorStatus
	var commandDuring DoorCommand
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		if d == testOpen {
			during = append(during, c.DoorStatus())
			commandDuring = c.DoorCommand()
		}
		return nil
	}

	c.RequestDoorCommand(DoorCommandOpen)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if !reflect.DeepEqual(during, []DoorStatus{DoorOpen}) {
		t.Errorf("Expected door OPEN during dwell, got %v", during)
	}
	if commandDuring != DoorCommandClose {
		t.Errorf("Expected auto close command during dwell, got %s", commandDuring)
	}
	want := []time.Duration{testSpeed, testOpen, testSpeed, testSettle}
	if !reflect.DeepEqual(*delays, want) {
		t.Errorf("Expected delays %v, got %v", want, *delays)
	}
	if c.DoorStatus() != DoorClosed || c.DoorCommand() != DoorCommandNone {
		t.Errorf("Expected closed door and no command, got %s / %s", c.DoorStatus(), c.DoorCommand())
	}

	for _, e := range drainEvents(c) {
		if e.Type == EventFloorChange {
			t.Errorf("Unexpected movement during door sequence: %+v", e)
		}
	}
	if c.CurrentFloor() != 2 {
		t.Errorf("Expected floor 2, got %d", c.CurrentFloor())
	}
}

func TestTick_DoorCommandAlreadySatisfied(t *testing.T) {
	c, delays := newTestCar(t, 2)
	c.RequestDoorCommand(DoorCommandClose)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if c.DoorCommand() != DoorCommandNone {
		t.Errorf("Expected command cleared, got %s", c.DoorCommand())
	}
	if len(*delays) != 0 {
		t.Errorf("Expected no door delays, got %v", *delays)
	}
}

func TestTick_OpenDoorClosedBeforeMoving(t *testing.T) {
	c, _ := newTestCar(t, 2)

	// An OPEN request during the dwell leaves the door open.
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if d == testOpen {
			c.RequestDoorCommand(DoorCommandOpen)
		}
		return nil
	}
	c.RequestDoorCommand(DoorCommandOpen)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if c.DoorStatus() != DoorOpen {
		t.Fatalf("Expected door held open, got %s", c.DoorStatus())
	}

	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	c.RequestFloorSelection(4)
	drainEvents(c)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	events := drainEvents(c)
	if len(events) == 0 || events[0].Type != EventDoorChange || events[0].Payload.(DoorStatus) != DoorClosed {
		t.Errorf("Expected door to close before the first move, got %+v", events)
	}
	assertNoMoveWhileOpen(t, events)
	if c.CurrentFloor() != 4 {
		t.Errorf("Expected floor 4, got %d", c.CurrentFloor())
	}
}

func TestTick_AdmissionDuringSweepServedOnReturn(t *testing.T) {
	c, _ := newTestCar(t, 1)
	admitted := false
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if d == testOpen && !admitted && c.CurrentFloor() == 3 {
			admitted = true
			if res := c.RequestFloorSelection(2); res != Accepted {
				t.Errorf("Expected Accepted during tick, got %s", res)
			}
		}
		return nil
	}
	c.RequestHallCall(3, true, false)
	c.RequestHallCall(5, true, false)
	drainEvents(c)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if got := arrivals(drainEvents(c)); !reflect.DeepEqual(got, []int{3, 5, 2}) {
		t.Errorf("Expected stops at [3 5 2], got %v", got)
	}
}

func TestTick_StopAtCurrentFloorServedInPlace(t *testing.T) {
	c, _ := newTestCar(t, 1)
	// Only reachable through a race with the tick; inject directly.
	c.stops[1] = Stop{Floor: 1, WantsUp: true}

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if got := arrivals(drainEvents(c)); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("Expected stop at [1], got %v", got)
	}
	if stops := c.PendingStops(); len(stops) != 0 {
		t.Errorf("Expected no pending stops, got %+v", stops)
	}
}

func TestTick_RejectsOverlap(t *testing.T) {
	c, _ := newTestCar(t, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c.sleep = func(ctx context.Context, d time.Duration) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	}
	c.RequestFloorSelection(3)

	done := make(chan error, 1)
	go func() { done <- c.Tick(context.Background()) }()
	<-entered

	if err := c.Tick(context.Background()); !errors.Is(err, ErrTickInProgress) {
		t.Errorf("Expected ErrTickInProgress, got %v", err)
	}

	// Admission must not wait for the blocked tick.
	admitted := make(chan Admission, 1)
	go func() { admitted <- c.RequestHallCall(7, false, true) }()
	select {
	case res := <-admitted:
		if res != Accepted {
			t.Errorf("Expected Accepted, got %s", res)
		}
	case <-time.After(time.Second):
		t.Fatal("Admission blocked while tick was waiting")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if c.CurrentFloor() != 7 {
		t.Errorf("Expected floor 7, got %d", c.CurrentFloor())
	}
}

func TestTick_AbortedByContext(t *testing.T) {
	c, _ := newTestCar(t, 1)
	c.sleep = sleepContext
	c.RequestDoorCommand(DoorCommandOpen)
	drainEvents(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Tick(ctx)
	if !errors.Is(err, ErrTickAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected aborted tick wrapping context.Canceled, got %v", err)
	}
	if c.DoorStatus() != DoorClosed {
		t.Errorf("Expected door untouched, got %s", c.DoorStatus())
	}

	events := drainEvents(c)
	if len(events) != 1 || events[0].Type != EventTickAborted {
		t.Errorf("Expected a single TickAborted event, got %+v", events)
	}
}

func TestPublishEvent_DropsWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventBuffer = 1
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create car: %v", err)
	}

	c.RequestFloorSelection(3)
	c.RequestFloorSelection(4)
	c.RequestFloorSelection(5)

	if got := c.DroppedEventCount(); got != 2 {
		t.Errorf("Expected 2 dropped events, got %d", got)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("Expected nil for zero delay, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext did not return on cancellation")
	}
}

func TestTick_UnknownDoorCommandDiscarded(t *testing.T) {
	c, delays := newTestCar(t, 1)
	c.RequestDoorCommand(DoorCommand(42))

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if c.DoorCommand() != DoorCommandNone {
		t.Errorf("Expected command cleared, got %d", c.DoorCommand())
	}
	if len(*delays) != 0 {
		t.Errorf("Expected no door delays, got %v", *delays)
	}
}
