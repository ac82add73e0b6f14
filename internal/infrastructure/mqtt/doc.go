// Package mqtt provides MQTT client connectivity for the Nest bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// The bridge talks to the Gray Logic core exclusively over MQTT:
//
//	Gray Logic Core ↔ MQTT Broker ↔ Nest bridge ↔ Nest cloud API
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT,
//	    mqtt.WithLogger(logger),
//	    mqtt.WithWill(mqtt.Will{Topic: "graylogic/health/nest", Payload: lwt, QoS: 1, Retained: true}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/command/nest/#", 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
//
// TLS is required for production deployments (cfg.Broker.TLS=true);
// anonymous access is only for local development.
package mqtt
