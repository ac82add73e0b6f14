package nest

import (
	"context"
	"fmt"
	"math"
)

// Thermostat is the synchronization unit for one Nest thermostat.
//
// It is not safe for concurrent use; the Controller serializes access.
type Thermostat struct {
	info     NodeInfo
	sessions *SessionHolder
	host     Host
	logger   Logger
	handlers map[CommandKind]commandHandler

	snapshot Snapshot
}

func newThermostat(info NodeInfo, sessions *SessionHolder, host Host, logger Logger) *Thermostat {
	t := &Thermostat{
		info:     info,
		sessions: sessions,
		host:     host,
		logger:   orNop(logger),
		// Assume reachable until the first guard says otherwise.
		snapshot: Snapshot{Online: true},
	}
	t.handlers = t.commandTable()
	return t
}

// Address returns the unit's local address.
func (t *Thermostat) Address() string { return t.info.Address }

// Info returns the identity of the unit.
func (t *Thermostat) Info() NodeInfo { return t.info }

// Snapshot returns the last pushed driver values.
func (t *Thermostat) Snapshot() Snapshot { return t.snapshot }

// ensureConnected is the connectivity guard run before every poll and command.
//
// It returns false when the device could not be read (transport failure or
// malformed response); the unit is then marked offline and the caller must
// abort. A device that answers but reports itself offline triggers a session
// re-establishment. Other failures are returned.
func (t *Thermostat) ensureConnected(ctx context.Context) (bool, error) {
	dev, err := t.sessions.Current().Thermostat(ctx, t.info.DeviceID)
	if err != nil {
		if isTransient(err) {
			t.markOffline(err)
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", t.info.Address, err)
	}

	if !dev.Online {
		t.logger.Warn("thermostat reports offline, re-establishing session",
			"address", t.info.Address)
		if _, err := t.sessions.Reconnect(ctx); err != nil {
			t.markOffline(err)
			return false, nil
		}
	}
	return true, nil
}

func (t *Thermostat) markOffline(err error) {
	t.snapshot.Online = false
	t.emit(DriverOnline, 0)
	t.logger.Error("connectivity check failed", "address", t.info.Address, "error", err)
}

// emit pushes one driver value to Core. Publish failures are logged only.
func (t *Thermostat) emit(name string, value float64) {
	if err := t.host.SetDriver(t.info.Address, newDriver(name, value)); err != nil {
		t.logger.Warn("failed to set driver",
			"address", t.info.Address,
			"driver", name,
			"error", err)
	}
}

// Update pulls the remote state and pushes every driver.
// Transient failures are logged and absorbed; other failures are returned.
func (t *Thermostat) Update(ctx context.Context) error {
	_, err := t.sync(ctx)
	return err
}

// sync runs Update and reports whether every driver was pushed.
func (t *Thermostat) sync(ctx context.Context) (bool, error) {
	ok, err := t.ensureConnected(ctx)
	if err != nil || !ok {
		return false, err
	}

	sess := t.sessions.Current()
	st, err := sess.Structure(ctx, t.info.StructureID)
	if err != nil {
		return false, t.absorb("update", err)
	}
	dev, err := sess.Thermostat(ctx, t.info.DeviceID)
	if err != nil {
		return false, t.absorb("update", err)
	}

	next := project(st, dev)

	t.snapshot.Away = next.Away
	t.snapshot.Mode = next.Mode
	t.emit(DriverMode, next.Mode)

	t.snapshot.Fan = next.Fan
	t.emit(DriverFan, next.Fan)

	t.snapshot.Online = next.Online
	t.emit(DriverOnline, boolCode(next.Online))

	t.snapshot.Humidity = next.Humidity
	t.emit(DriverHumidity, next.Humidity)

	t.snapshot.HVACState = next.HVACState
	t.emit(DriverHVACState, next.HVACState)

	t.snapshot.SetpointHigh = next.SetpointHigh
	t.snapshot.SetpointLow = next.SetpointLow
	t.emit(DriverCoolSetpt, next.SetpointHigh)
	t.emit(DriverHeatSetpt, next.SetpointLow)

	t.snapshot.Ambient = next.Ambient
	t.emit(DriverAmbient, next.Ambient)

	return true, nil
}

// absorb logs transient failures and returns nil for them.
func (t *Thermostat) absorb(op string, err error) error {
	if isTransient(err) {
		t.logger.Error(op+" aborted", "address", t.info.Address, "error", err)
		return nil
	}
	return fmt.Errorf("%s %s: %w", op, t.info.Address, err)
}

// Execute runs one command through the command table.
func (t *Thermostat) Execute(ctx context.Context, cmd Command) error {
	handler, ok := t.handlers[cmd.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
	return handler(ctx, cmd)
}

func (t *Thermostat) guard(ctx context.Context) error {
	ok, err := t.ensureConnected(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceUnreachable, t.info.Address)
	}
	return nil
}

func (t *Thermostat) mutationFailed(op string, err error) error {
	return fmt.Errorf("%s %s: %w", op, t.info.Address, err)
}

func (t *Thermostat) setMode(ctx context.Context, cmd Command) error {
	if cmd.Value == nil {
		return fmt.Errorf("%w: %s", ErrMissingValue, cmd.Kind)
	}
	if err := t.guard(ctx); err != nil {
		return err
	}
	code := int(*cmd.Value)
	name, ok := modeName(code)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMode, code)
	}

	t.logger.Info("setting mode", "address", t.info.Address, "mode", name)

	sess := t.sessions.Current()
	if name == modeAway {
		if err := sess.SetAway(ctx, t.info.StructureID, true); err != nil {
			return t.mutationFailed("set away", err)
		}
		t.snapshot.Away = true
	} else {
		if err := sess.SetAway(ctx, t.info.StructureID, false); err != nil {
			return t.mutationFailed("set away", err)
		}
		t.snapshot.Away = false
		if err := sess.SetMode(ctx, t.info.DeviceID, name); err != nil {
			return t.mutationFailed("set mode", err)
		}
	}

	t.snapshot.Mode = float64(code)
	t.emit(DriverMode, float64(code))
	return nil
}

func (t *Thermostat) setFan(ctx context.Context, cmd Command) error {
	if cmd.Value == nil {
		return fmt.Errorf("%w: %s", ErrMissingValue, cmd.Kind)
	}
	if err := t.guard(ctx); err != nil {
		return err
	}
	raw := math.Trunc(*cmd.Value)
	on := raw == 1

	t.logger.Info("setting fan", "address", t.info.Address, "on", on)

	if err := t.sessions.Current().SetFan(ctx, t.info.DeviceID, on); err != nil {
		return t.mutationFailed("set fan", err)
	}

	t.snapshot.Fan = raw
	t.emit(DriverFan, raw)
	return nil
}

// setHigh sets the upper setpoint, or raises it by one without a value.
func (t *Thermostat) setHigh(ctx context.Context, cmd Command) error {
	if err := t.guard(ctx); err != nil {
		return err
	}
	sess := t.sessions.Current()
	dev, err := sess.Thermostat(ctx, t.info.DeviceID)
	if err != nil {
		return t.mutationFailed("set high", err)
	}

	var value float64
	if dev.IsHeatCool() {
		if cmd.Value != nil {
			value = math.Trunc(*cmd.Value)
		} else {
			value = math.Trunc(dev.TargetHigh + 1)
		}
		t.logger.Info("setting upper bound", "address", t.info.Address, "value", value)
		err = sess.SetTargetRange(ctx, t.info.DeviceID, dev.TargetLow, value)
	} else {
		if cmd.Value != nil {
			value = math.Trunc(*cmd.Value)
		} else {
			value = math.Trunc(dev.Target + 1)
		}
		t.logger.Info("setting target", "address", t.info.Address, "value", value)
		err = sess.SetTarget(ctx, t.info.DeviceID, value)
	}
	if err != nil {
		return t.mutationFailed("set high", err)
	}

	t.snapshot.SetpointHigh = value
	t.emit(DriverCoolSetpt, value)
	return nil
}

// setLow sets the lower setpoint, or lowers it by one without a value.
// The nudge rounds (current - 1) where setHigh truncates (current + 1).
func (t *Thermostat) setLow(ctx context.Context, cmd Command) error {
	if err := t.guard(ctx); err != nil {
		return err
	}
	sess := t.sessions.Current()
	dev, err := sess.Thermostat(ctx, t.info.DeviceID)
	if err != nil {
		return t.mutationFailed("set low", err)
	}

	var value float64
	if dev.IsHeatCool() {
		if cmd.Value != nil {
			value = math.Trunc(*cmd.Value)
		} else {
			value = roundSetpoint(dev.TargetLow - 1)
		}
		t.logger.Info("setting lower bound", "address", t.info.Address, "value", value)
		err = sess.SetTargetRange(ctx, t.info.DeviceID, value, dev.TargetHigh)
	} else {
		if cmd.Value != nil {
			value = math.Trunc(*cmd.Value)
		} else {
			value = roundSetpoint(dev.Target - 1)
		}
		t.logger.Info("setting target", "address", t.info.Address, "value", value)
		err = sess.SetTarget(ctx, t.info.DeviceID, value)
	}
	if err != nil {
		return t.mutationFailed("set low", err)
	}

	t.snapshot.SetpointLow = value
	t.emit(DriverHeatSetpt, value)
	return nil
}

// query re-syncs and then reports every driver whether or not it changed.
func (t *Thermostat) query(ctx context.Context, _ Command) error {
	if err := t.Update(ctx); err != nil {
		return err
	}
	if err := t.host.ReportDrivers(t.info.Address, t.snapshot.Drivers()); err != nil {
		return fmt.Errorf("reporting drivers for %s: %w", t.info.Address, err)
	}
	return nil
}

func (t *Thermostat) beep(_ context.Context, _ Command) error {
	t.logger.Info("beep boop", "address", t.info.Address)
	return nil
}
