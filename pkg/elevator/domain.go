package elevator

import (
	"fmt"
	"sort"
	"strings"
)

// --- Domain Entities & Value Objects ---

// ReservedFloor is never a valid call target, whatever the configured bounds.
const ReservedFloor = 0

// Direction indicates the vertical movement vector.
// Direction은 수직 이동 벡터를 나타냅니다.
type Direction string

const (
	DirUp   Direction = "Up"
	DirDown Direction = "Down"
	DirNone Direction = "None"
)

// DoorStatus represents the physical state of the door.
// DoorStatus는 문의 물리 상태를 나타냅니다.
type DoorStatus string

const (
	DoorOpen   DoorStatus = "OPEN"
	DoorClosed DoorStatus = "CLOSED"
)

// DoorCommand is the content of the pending door command slot.
// DoorCommandNone means the slot is empty.
// DoorCommand는 대기 중인 문 명령입니다. DoorCommandNone은 명령이 없음을 뜻합니다.
type DoorCommand int

const (
	DoorCommandNone DoorCommand = iota
	DoorCommandOpen
	DoorCommandClose
)

func (c DoorCommand) String() string {
	switch c {
	case DoorCommandOpen:
		return "OPEN"
	case DoorCommandClose:
		return "CLOSE"
	default:
		return "NONE"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c DoorCommand) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the wire names "OPEN" and "CLOSE" (case-insensitive).
// An empty slot cannot be requested from outside.
func (c *DoorCommand) UnmarshalText(text []byte) error {
	cmd, err := ParseDoorCommand(string(text))
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// ParseDoorCommand converts a wire name into a DoorCommand.
func ParseDoorCommand(s string) (DoorCommand, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN":
		return DoorCommandOpen, nil
	case "CLOSE":
		return DoorCommandClose, nil
	}
	return DoorCommandNone, fmt.Errorf("unknown door command %q", s)
}

// Stop is the merged pending intent for one floor.
// Stop은 한 층에 대한 대기 중인 요청(상행/하행)을 병합한 기록입니다.
type Stop struct {
	Floor     int
	WantsUp   bool
	WantsDown bool
}

// Matches reports whether a car travelling in dir should pick this stop up.
func (s Stop) Matches(dir Direction) bool {
	switch dir {
	case DirUp:
		return s.WantsUp
	case DirDown:
		return s.WantsDown
	}
	return false
}

// Admission is the outcome of a call or selection request.
// Rejections are silent for the car; the value only informs the caller.
// Admission은 호출/선택 요청의 처리 결과입니다.
type Admission int

const (
	Accepted Admission = iota
	Merged
	RejectedCurrentFloor
	RejectedReservedFloor
	RejectedOutOfRange
	RejectedNoDirection
)

func (a Admission) String() string {
	return [...]string{
		"Accepted",
		"Merged",
		"RejectedCurrentFloor",
		"RejectedReservedFloor",
		"RejectedOutOfRange",
		"RejectedNoDirection",
	}[a]
}

// Accepted reports whether the request changed or confirmed a pending stop.
func (a Admission) Accepted() bool {
	return a == Accepted || a == Merged
}

// Sweep is one committed directional run of the car.
// Dir is DirNone when the nearest stop is the car's own floor.
type Sweep struct {
	Dir    Direction
	Target int
}

// The functions below are pure planning logic.
// No mutex, No channel, No time.

// validateFloor checks a requested floor against the bounds, the reserved
// floor and the car position.
func validateFloor(floor, current, minFloor, maxFloor int) Admission {
	switch {
	case floor == ReservedFloor:
		return RejectedReservedFloor
	case floor < minFloor || floor > maxFloor:
		return RejectedOutOfRange
	case floor == current:
		return RejectedCurrentFloor
	}
	return Accepted
}

// mergeHallCall ORs the direction flags into an existing stop, or inserts a
// new one when at least one flag is set. The floor must already be valid.
func mergeHallCall(stops map[int]Stop, floor int, up, down bool) Admission {
	if s, ok := stops[floor]; ok {
		s.WantsUp = s.WantsUp || up
		s.WantsDown = s.WantsDown || down
		stops[floor] = s
		return Merged
	}
	if !up && !down {
		return RejectedNoDirection
	}
	stops[floor] = Stop{Floor: floor, WantsUp: up, WantsDown: down}
	return Accepted
}

// planSweep picks the next sweep from the pending stops.
// The car heads for the lowest pending floor; going up it runs on to the
// highest one, going down the lowest floor is itself the target.
func planSweep(stops map[int]Stop, floor int) (Sweep, bool) {
	if len(stops) == 0 {
		return Sweep{}, false
	}
	floors := sortedFloors(stops)
	near := floors[0]

	switch {
	case floor < near:
		return Sweep{Dir: DirUp, Target: floors[len(floors)-1]}, true
	case floor > near:
		return Sweep{Dir: DirDown, Target: near}, true
	}
	return Sweep{Dir: DirNone, Target: floor}, true
}

// shouldStop decides whether the car halts at floor during sw.
// The sweep target always stops; other floors need a same-direction stop.
func shouldStop(stop Stop, found bool, floor int, sw Sweep) bool {
	if floor == sw.Target {
		return true
	}
	return found && stop.Matches(sw.Dir)
}

// sortedFloors returns sorted list of pending floors.
func sortedFloors(stops map[int]Stop) []int {
	floors := make([]int, 0, len(stops))
	for f := range stops {
		floors = append(floors, f)
	}
	sort.Ints(floors)
	return floors
}
