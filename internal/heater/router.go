package heater

import (
	"context"
	"fmt"
)

// write is one outbound property write.
type write struct {
	prop  Property
	topic string
	value Value
}

// Execute validates cmd, plans its writes from the current state and
// publishes them in order. The first failed write aborts the rest; earlier
// writes stay applied.
//
// Returns:
//   - ErrInvalidCommand: cmd failed validation
//   - ErrNotConnected: the appliance is not connected; nothing was written
//   - ErrUnknownProperty: a target property has not been reported yet;
//     nothing was written
//   - ErrTransport: a write failed
func (a *Appliance) Execute(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if a.ConnState() == Disconnected {
		return ErrNotConnected
	}

	writes, err := a.plan(cmd)
	if err != nil {
		return err
	}

	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload := w.value.Payload()
		if err := a.transport.Publish(w.topic, payload, commandQoS, false); err != nil {
			a.logger.Error("heater command write failed", "topic", w.topic, "command", cmd.String(), "error", err)
			return fmt.Errorf("%w: %s: %w", ErrTransport, w.topic, err)
		}
		a.logger.Info("heater command sent", "topic", w.topic, "payload", string(payload))
		if a.auditor != nil {
			a.auditor.WriteCommand(a.deviceID, w.prop.String(), string(payload), a.now())
		}
	}
	return nil
}

// plan resolves every topic before anything is sent.
func (a *Appliance) plan(cmd Command) ([]write, error) {
	if cmd.Kind != CmdHeater {
		prop, _ := cmd.Property()
		key, _, ok := a.store.Lookup(prop)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, prop)
		}
		return []write{{prop: prop, topic: SetTopic(key), value: cmd.Value}}, nil
	}

	powerKey, power, ok := a.store.Lookup(PropPowerOn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, PropPowerOn)
	}
	if cmd.Thermostat == ThermostatOff {
		return []write{{prop: PropPowerOn, topic: SetTopic(powerKey), value: Bool(false)}}, nil
	}

	heaterKey, _, ok := a.store.Lookup(PropHeater)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, PropHeater)
	}

	var writes []write
	if on, _ := power.AsBool(); !on {
		writes = append(writes, write{prop: PropPowerOn, topic: SetTopic(powerKey), value: Bool(true)})
	}
	writes = append(writes, write{
		prop:  PropHeater,
		topic: SetTopic(heaterKey),
		value: Bool(cmd.Thermostat == ThermostatHeating),
	})
	return writes, nil
}
