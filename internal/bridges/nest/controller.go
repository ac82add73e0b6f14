package nest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-nest/internal/device"
)

// Registry persists discovered thermostats so they survive restarts.
// *device.SQLiteRepository satisfies it.
type Registry interface {
	Upsert(ctx context.Context, t *device.Thermostat) error
	List(ctx context.Context) ([]device.Thermostat, error)
}

// StateRecorder receives a unit's snapshot after every complete sync or
// successful command.
type StateRecorder interface {
	RecordState(ctx context.Context, node NodeInfo, snapshot Snapshot, source string)
}

// ControllerOptions holds the collaborators of a Controller.
type ControllerOptions struct {
	// Sessions holds the shared Nest session. Required.
	Sessions *SessionHolder

	// Host receives driver updates and node announcements. Required.
	Host Host

	// Registry is optional; without it discovered units are not persisted.
	Registry Registry

	// Recorder is optional.
	Recorder StateRecorder

	Logger Logger
}

// ThermostatStatus is a read-only view of one unit.
type ThermostatStatus struct {
	NodeInfo
	Snapshot Snapshot `json:"snapshot"`
}

// ControllerStats are cumulative counters since start.
type ControllerStats struct {
	Thermostats     int    `json:"thermostats"`
	Polls           uint64 `json:"polls"`
	PollFailures    uint64 `json:"poll_failures"`
	Commands        uint64 `json:"commands"`
	CommandFailures uint64 `json:"command_failures"`
	Reconnects      uint64 `json:"reconnects"`
}

// Controller is the registry of synchronization units.
//
// Every entry point holds one mutex, so discovery, polls, commands and
// queries never overlap. Units are only ever added.
type Controller struct {
	mu    sync.Mutex
	units map[string]*Thermostat

	sessions *SessionHolder
	host     Host
	registry Registry
	recorder StateRecorder
	logger   Logger

	unitCount       atomic.Int64
	polls           atomic.Uint64
	pollFailures    atomic.Uint64
	commands        atomic.Uint64
	commandFailures atomic.Uint64
}

// NewController creates an empty controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session holder is required")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("host is required")
	}
	return &Controller{
		units:    make(map[string]*Thermostat),
		sessions: opts.Sessions,
		host:     opts.Host,
		registry: opts.Registry,
		recorder: opts.Recorder,
		logger:   orNop(opts.Logger),
	}, nil
}

// LoadRegistry creates units for every persisted thermostat without
// contacting the API. It returns the number of units added.
func (c *Controller) LoadRegistry(ctx context.Context) (int, error) {
	if c.registry == nil {
		return 0, nil
	}
	rows, err := c.registry.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading thermostat registry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, row := range rows {
		if _, ok := c.units[row.Address]; ok {
			continue
		}
		c.addUnit(NodeInfo{
			Address:       row.Address,
			Name:          row.Name,
			DeviceID:      row.DeviceID,
			StructureID:   row.StructureID,
			StructureName: row.StructureName,
		})
		added++
	}
	if added > 0 {
		c.logger.Info("loaded thermostats from registry", "count", added)
	}
	return added, nil
}

// Discover enumerates every structure and thermostat on the account and
// adds a unit for each address not yet known. New units are persisted,
// announced and synced once. Known addresses are skipped.
func (c *Controller) Discover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("discovering nest thermostats")

	sess := c.sessions.Current()
	structures, err := sess.Structures(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing structures: %w", ErrDiscoveryFailed, err)
	}

	for _, st := range structures {
		c.logger.Info("structure found", "structure", st.Name, "structure_id", st.ID)

		devices, err := sess.StructureThermostats(ctx, st.ID)
		if err != nil {
			return fmt.Errorf("%w: listing thermostats of %s: %w", ErrDiscoveryFailed, st.ID, err)
		}

		for _, dev := range devices {
			address := Address(dev.DeviceID)
			c.logger.Info("found thermostat", "name", dev.Name, "serial", dev.DeviceID, "address", address)

			if _, ok := c.units[address]; ok {
				c.logger.Info("thermostat already configured, skipping", "name", dev.Name, "address", address)
				continue
			}

			info := NodeInfo{
				Address:       address,
				Name:          dev.Name,
				DeviceID:      dev.DeviceID,
				StructureID:   st.ID,
				StructureName: st.Name,
			}
			unit := c.addUnit(info)
			c.persist(ctx, info)
			if err := c.host.AddNode(info); err != nil {
				c.logger.Warn("failed to announce thermostat", "address", address, "error", err)
			}

			c.logger.Info("thermostat ready", "name", dev.Name, "address", address, "ambient", dev.Ambient)
			if err := c.syncUnit(ctx, unit, device.StateHistorySourcePoll); err != nil {
				c.logger.Error("initial sync failed", "address", address, "error", err)
			}
		}
	}
	return nil
}

// LongPoll syncs every unit once. A failing unit is logged and the next
// one still runs. It returns the number of units that failed.
func (c *Controller) LongPoll(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.polls.Add(1)
	failed := 0
	for _, address := range c.sortedAddressesLocked() {
		if ctx.Err() != nil {
			break
		}
		if err := c.syncUnit(ctx, c.units[address], device.StateHistorySourcePoll); err != nil {
			failed++
			c.pollFailures.Add(1)
			c.logger.Error("poll failed", "address", address, "error", err)
		}
	}
	return failed
}

// Dispatch runs a command against one unit.
func (c *Controller) Dispatch(ctx context.Context, address string, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands.Add(1)
	err := c.dispatchLocked(ctx, address, cmd)
	if err != nil {
		c.commandFailures.Add(1)
	}
	return err
}

func (c *Controller) dispatchLocked(ctx context.Context, address string, cmd Command) (err error) {
	unit, ok := c.units[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, address)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s on %s panicked: %v", cmd.Kind, address, r)
		}
	}()

	if err := unit.Execute(ctx, cmd); err != nil {
		return err
	}

	source := device.StateHistorySourceCommand
	if cmd.Kind == CommandQuery {
		source = device.StateHistorySourceQuery
	}
	c.record(ctx, unit, source)
	return nil
}

// DispatchController runs a controller-level command: DISCOVER, or QUERY
// to re-report every unit.
func (c *Controller) DispatchController(ctx context.Context, name string) error {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case CommandDiscover:
		return c.Discover(ctx)
	case "QUERY":
		failed := c.QueryAll(ctx)
		if len(failed) > 0 {
			return fmt.Errorf("query failed for %d thermostats", len(failed))
		}
		return nil
	default:
		return fmt.Errorf("%w: %q on controller", ErrUnknownCommand, name)
	}
}

// Query re-syncs one unit and re-reports all its drivers.
func (c *Controller) Query(ctx context.Context, address string) error {
	return c.Dispatch(ctx, address, Command{Kind: CommandQuery})
}

// QueryAll queries every unit and returns the failures by address.
func (c *Controller) QueryAll(ctx context.Context) map[string]error {
	c.mu.Lock()
	addresses := c.sortedAddressesLocked()
	c.mu.Unlock()

	failed := make(map[string]error)
	for _, address := range addresses {
		if err := c.Query(ctx, address); err != nil {
			failed[address] = err
		}
	}
	return failed
}

// Thermostats returns every unit ordered by address.
func (c *Controller) Thermostats() []ThermostatStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ThermostatStatus, 0, len(c.units))
	for _, address := range c.sortedAddressesLocked() {
		u := c.units[address]
		out = append(out, ThermostatStatus{NodeInfo: u.Info(), Snapshot: u.Snapshot()})
	}
	return out
}

// Thermostat returns one unit.
func (c *Controller) Thermostat(address string) (ThermostatStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.units[address]
	if !ok {
		return ThermostatStatus{}, false
	}
	return ThermostatStatus{NodeInfo: u.Info(), Snapshot: u.Snapshot()}, true
}

// Count returns the number of units without waiting for a running operation.
func (c *Controller) Count() int {
	return int(c.unitCount.Load())
}

// Stats returns cumulative counters.
func (c *Controller) Stats() ControllerStats {
	return ControllerStats{
		Thermostats:     c.Count(),
		Polls:           c.polls.Load(),
		PollFailures:    c.pollFailures.Load(),
		Commands:        c.commands.Load(),
		CommandFailures: c.commandFailures.Load(),
		Reconnects:      c.sessions.Reconnects(),
	}
}

func (c *Controller) addUnit(info NodeInfo) *Thermostat {
	unit := newThermostat(info, c.sessions, c.host, c.logger)
	c.units[info.Address] = unit
	c.unitCount.Store(int64(len(c.units)))
	return unit
}

// syncUnit runs one unit's sync, converting a panic into an error.
func (c *Controller) syncUnit(ctx context.Context, unit *Thermostat, source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync of %s panicked: %v", unit.Address(), r)
		}
	}()

	synced, err := unit.sync(ctx)
	if err != nil {
		return err
	}
	if synced {
		c.record(ctx, unit, source)
	}
	return nil
}

func (c *Controller) record(ctx context.Context, unit *Thermostat, source string) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordState(ctx, unit.Info(), unit.Snapshot(), source)
}

func (c *Controller) persist(ctx context.Context, info NodeInfo) {
	if c.registry == nil {
		return
	}
	err := c.registry.Upsert(ctx, &device.Thermostat{
		Address:       info.Address,
		DeviceID:      info.DeviceID,
		StructureID:   info.StructureID,
		Name:          info.Name,
		StructureName: info.StructureName,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("failed to persist thermostat", "address", info.Address, "error", err)
	}
}

func (c *Controller) sortedAddressesLocked() []string {
	out := make([]string, 0, len(c.units))
	for address := range c.units {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}
