package elevator

import (
	"context"
	"fmt"
)

// Tick runs one evaluation of the car: pending door command first, then
// sweeps until no stop is pending. It blocks for the whole sequence.
// A tick interrupted through ctx is aborted and reported as ErrTickAborted.
// Tick은 문 명령을 처리한 뒤, 대기 중인 정지가 없을 때까지 스윕을 수행합니다.
func (c *Car) Tick(ctx context.Context) error {
	if !c.ticking.CompareAndSwap(false, true) {
		return ErrTickInProgress
	}
	defer c.ticking.Store(false)

	if err := c.run(ctx); err != nil {
		c.logger.Warn("Tick aborted", "floor", c.CurrentFloor(), "door", c.DoorStatus(), "error", err)
		c.publishEvent(EventTickAborted, err.Error())
		return fmt.Errorf("%w: %w", ErrTickAborted, err)
	}
	return nil
}

func (c *Car) run(ctx context.Context) error {
	if err := c.resolveDoors(ctx); err != nil {
		return err
	}

	for {
		sw, ok := c.nextSweep()
		if !ok {
			return nil
		}

		if sw.Dir == DirNone {
			// 현재 층의 정지 요청은 제자리에서 처리
			if err := c.stopAt(ctx, sw.Target, DirNone); err != nil {
				return err
			}
			continue
		}

		if err := c.runSweep(ctx, sw); err != nil {
			return err
		}
	}
}

// nextSweep plans from the current pending stops. A stop at the car's own
// floor is consumed here and served in place.
func (c *Car) nextSweep() (Sweep, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sw, ok := planSweep(c.stops, c.CurrentFloor())
	if ok && sw.Dir == DirNone {
		delete(c.stops, sw.Target)
	}
	return sw, ok
}

// runSweep moves the car one floor at a time towards sw.Target, stopping on
// the way for same-direction stops. The target is fixed at commit time.
func (c *Car) runSweep(ctx context.Context, sw Sweep) error {
	start := c.CurrentFloor()
	step := 1
	if sw.Dir == DirDown {
		step = -1
	}
	c.logger.Info("Sweep committed", "dir", sw.Dir, "from", start, "target", sw.Target)

	for remaining := (sw.Target - start) * step; remaining > 0; remaining-- {
		// [Safety Guard] 문이 열려 있으면 먼저 닫고 이동
		if err := c.ensureDoorsClosed(ctx); err != nil {
			return err
		}
		if err := c.sleep(ctx, c.Config.TravelTime); err != nil {
			return err
		}

		floor, stop := c.advance(sw, step)
		if stop {
			if err := c.stopAt(ctx, floor, sw.Dir); err != nil {
				return err
			}
		}
	}
	return nil
}

// advance moves the car one floor and consumes the stop there if the car
// must halt. The floor is published under the lock so admissions never
// accept the floor the car is standing on.
func (c *Car) advance(sw Sweep, step int) (int, bool) {
	c.mu.Lock()
	floor := c.CurrentFloor() + step
	c.floor.Store(int64(floor))
	s, found := c.stops[floor]
	stop := shouldStop(s, found, floor, sw)
	if stop {
		delete(c.stops, floor)
	}
	c.mu.Unlock()

	c.logger.Debug("Moving", "dir", sw.Dir, "floor", floor, "target", sw.Target)
	c.publishEvent(EventFloorChange, floor)
	return floor, stop
}

// stopAt runs the arrival sequence: announce, then a full open/auto-close
// door cycle before movement resumes.
func (c *Car) stopAt(ctx context.Context, floor int, dir Direction) error {
	c.logger.Info("Arrived at floor", "floor", floor, "dir", dir)
	c.publishEvent(EventArrived, ArrivedPayload{Floor: floor, Direction: dir})

	c.setDoorCommand(DoorCommandOpen)
	return c.resolveDoors(ctx)
}
