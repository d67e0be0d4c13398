// Package mqtt provides MQTT broker connectivity for homehub.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with broker acknowledgement
//   - Topic subscriptions that survive reconnects
//   - A retained presence topic with a last-will offline message
//
// The heater/fan appliance talks to homehub only through this client: its
// state topics are subscribed here and its /set command topics are
// published here.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("appliance/heaterfan/hf1/state/+", 1,
//	    func(topic string, payload []byte) error {
//	        return listener.Deliver(topic, payload)
//	    })
package mqtt
