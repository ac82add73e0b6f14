// Package nest implements the Nest thermostat bridge for Gray Logic.
//
// It keeps a local projection of every cloud thermostat on the account in
// step with the Nest API and turns Gray Logic commands into API mutations.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │   Nest Bridge   │   HTTPS
//	│      Core       │◄────────►│   (this pkg)    │◄────────► Nest API
//	└─────────────────┘          └─────────────────┘
//
// A Controller owns the registry of synchronization units, one Thermostat
// per device, keyed by a 14-character address derived from the serial.
// Each unit projects the remote device onto a fixed set of numeric drivers
// (CLIMD, CLISPC, CLISPH, CLIFS, CLIHUM, CLIHCS, GV1, GV3, GV4, ST) and
// translates commands back into remote mutations.
//
// # Connectivity guard
//
// Every poll and every command starts by reading the device. Transport
// failures mark the unit offline (GV4=0) and abort the operation for this
// cycle. A device that answers but reports itself offline causes the shared
// session to be re-established for all units.
//
// # Thread Safety
//
// Controller entry points are serialized by a single mutex; Thermostat units
// are only ever driven through the Controller.
package nest
