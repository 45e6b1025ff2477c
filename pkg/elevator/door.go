package elevator

import "context"

// resolveDoors manages the Door State Machine until the command slot is empty.
// Transitions: Closed -> Open (command becomes Close) -> Closed.
// It only runs while the car is stationary.
func (c *Car) resolveDoors(ctx context.Context) error {
	for {
		cmd := c.DoorCommand()
		switch cmd {
		case DoorCommandNone:
			return nil

		case DoorCommandOpen:
			if c.DoorStatus() == DoorOpen {
				c.clearDoorCommand(cmd)
				continue
			}
			if err := c.openDoors(ctx); err != nil {
				return err
			}

		case DoorCommandClose:
			if c.DoorStatus() == DoorClosed {
				c.clearDoorCommand(cmd)
				continue
			}
			if err := c.closeDoors(ctx); err != nil {
				return err
			}

		default:
			c.logger.Warn("Discarding unknown door command", "command", int(cmd))
			c.clearDoorCommand(cmd)
		}
	}
}

// openDoors opens the door and schedules the automatic close.
func (c *Car) openDoors(ctx context.Context) error {
	if err := c.sleep(ctx, c.Config.DoorSpeed); err != nil {
		return err
	}
	c.setDoor(DoorOpen)
	c.setDoorCommand(DoorCommandClose)
	c.logger.Info("Doors are now fully OPEN", "hold_duration", c.Config.DoorOpenTime)
	return c.sleep(ctx, c.Config.DoorOpenTime)
}

// closeDoors closes the door and clears the close command.
func (c *Car) closeDoors(ctx context.Context) error {
	if err := c.sleep(ctx, c.Config.DoorSpeed); err != nil {
		return err
	}
	c.setDoor(DoorClosed)
	c.clearDoorCommand(DoorCommandClose)
	c.logger.Info("Doors are now fully CLOSED")
	return c.sleep(ctx, c.Config.DoorSettleTime)
}

// ensureDoorsClosed closes an open door before a movement step.
func (c *Car) ensureDoorsClosed(ctx context.Context) error {
	if c.DoorStatus() == DoorClosed {
		return nil
	}
	c.logger.Debug("Closing doors before moving")
	c.setDoorCommand(DoorCommandClose)
	return c.resolveDoors(ctx)
}

// setDoor updates the door state and publishes an event.
func (c *Car) setDoor(status DoorStatus) {
	if c.DoorStatus() == status {
		return
	}
	c.doorOpen.Store(status == DoorOpen)
	c.publishEvent(EventDoorChange, status)
}

func (c *Car) setDoorCommand(cmd DoorCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doorCommand = cmd
}

// clearDoorCommand empties the slot only if it still holds cmd, so a command
// stored concurrently by RequestDoorCommand is not lost.
func (c *Car) clearDoorCommand(cmd DoorCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doorCommand == cmd {
		c.doorCommand = DoorCommandNone
	}
}
