package nest

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Host is the controller-side surface the units report through.
type Host interface {
	// SetDriver records one driver value; implementations may skip
	// publishing when the value is unchanged.
	SetDriver(address string, d Driver) error

	// ReportDrivers publishes every given driver unconditionally.
	ReportDrivers(address string, drivers []Driver) error

	// AddNode announces a newly discovered thermostat.
	AddNode(node NodeInfo) error
}

// NodeInfo identifies a thermostat node.
type NodeInfo struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	DeviceID      string `json:"device_id"`
	StructureID   string `json:"structure_id"`
	StructureName string `json:"structure_name,omitempty"`
}

// MQTTHost implements Host over the Gray Logic bridge topics.
//
// Each address keeps a cache of driver values. SetDriver publishes the
// retained state message only when a value changed; ReportDrivers always
// publishes.
type MQTTHost struct {
	mqtt     MQTTClient
	bridgeID string

	stateCache   map[string]map[string]Driver
	stateCacheMu sync.Mutex
}

// NewMQTTHost creates a host publishing through client.
func NewMQTTHost(client MQTTClient, bridgeID string) *MQTTHost {
	return &MQTTHost{
		mqtt:       client,
		bridgeID:   bridgeID,
		stateCache: make(map[string]map[string]Driver),
	}
}

// SetDriver implements Host.
func (h *MQTTHost) SetDriver(address string, d Driver) error {
	h.stateCacheMu.Lock()
	drivers := h.driversFor(address)
	prev, seen := drivers[d.Name]
	if seen && prev.Value == d.Value && prev.UOM == d.UOM {
		h.stateCacheMu.Unlock()
		return nil
	}
	drivers[d.Name] = d
	msg := h.stateMessageLocked(address)
	h.stateCacheMu.Unlock()

	return h.publishState(address, msg)
}

// ReportDrivers implements Host.
func (h *MQTTHost) ReportDrivers(address string, drivers []Driver) error {
	h.stateCacheMu.Lock()
	cached := h.driversFor(address)
	for _, d := range drivers {
		cached[d.Name] = d
	}
	msg := h.stateMessageLocked(address)
	h.stateCacheMu.Unlock()

	return h.publishState(address, msg)
}

// AddNode implements Host.
func (h *MQTTHost) AddNode(node NodeInfo) error {
	payload, err := json.Marshal(NewDiscoveryMessage(h.bridgeID, node))
	if err != nil {
		return fmt.Errorf("marshal discovery: %w", err)
	}
	if err := h.mqtt.Publish(DiscoveryTopic(), payload, 1, false); err != nil {
		return fmt.Errorf("publish discovery: %w", err)
	}
	return nil
}

// Drivers returns a copy of the cached drivers for an address.
func (h *MQTTHost) Drivers(address string) map[string]Driver {
	h.stateCacheMu.Lock()
	defer h.stateCacheMu.Unlock()
	out := make(map[string]Driver, len(h.stateCache[address]))
	for k, v := range h.stateCache[address] {
		out[k] = v
	}
	return out
}

// ClearStateCache forgets every cached value so the next SetDriver publishes.
// Called after an MQTT reconnect because retained state may have been lost.
func (h *MQTTHost) ClearStateCache() {
	h.stateCacheMu.Lock()
	defer h.stateCacheMu.Unlock()
	for address := range h.stateCache {
		h.stateCache[address] = make(map[string]Driver)
	}
}

func (h *MQTTHost) driversFor(address string) map[string]Driver {
	drivers, ok := h.stateCache[address]
	if !ok {
		drivers = make(map[string]Driver)
		h.stateCache[address] = drivers
	}
	return drivers
}

func (h *MQTTHost) stateMessageLocked(address string) StateMessage {
	drivers := h.stateCache[address]
	state := make(map[string]any, len(drivers))
	uoms := make(map[string]int, len(drivers))
	for name, d := range drivers {
		state[name] = d.Value
		uoms[name] = d.UOM
	}
	return NewStateMessage(address, state, uoms)
}

func (h *MQTTHost) publishState(address string, msg StateMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := h.mqtt.Publish(StateTopic(address), payload, 1, true); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}
