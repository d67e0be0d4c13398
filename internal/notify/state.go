package notify

import (
	"net/url"
	"strconv"
)

// Thermostat states in the homebridge webhook format.
const (
	ThermostatOff     = 0
	ThermostatHeating = 1
	ThermostatCooling = 2
)

// ApplianceState is the full state of a heater/fan pushed after every refresh.
// Properties the appliance has not reported yet are zero.
type ApplianceState struct {
	DeviceID           string
	PowerOn            bool
	Heating            bool
	Oscillate          bool
	FanSpeed           int
	CurrentTemperature int
	TargetTemperature  int
}

// CurrentState folds power and heating into a thermostat state.
func (s ApplianceState) CurrentState() int {
	switch {
	case !s.PowerOn:
		return ThermostatOff
	case s.Heating:
		return ThermostatHeating
	default:
		return ThermostatCooling
	}
}

// StatePusher sends appliance state to a homebridge webhook endpoint.
// The appliance is exposed as two accessories: a thermostat "t-<device>"
// and a fan "<device>".
type StatePusher struct {
	base       *url.URL
	dispatcher *Dispatcher
	logger     Logger
}

// NewStatePusher returns a pusher for baseURL. An empty baseURL yields a
// pusher that only logs.
func NewStatePusher(baseURL string, d *Dispatcher, logger Logger) (*StatePusher, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	p := &StatePusher{dispatcher: d, logger: logger}
	if baseURL == "" {
		return p, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	p.base = u
	return p, nil
}

// PushApplianceState dispatches the six state requests and returns at once.
func (p *StatePusher) PushApplianceState(s ApplianceState) {
	if p.base == nil {
		p.logger.Debug("appliance state push skipped, no state url", "device_id", s.DeviceID)
		return
	}
	p.dispatcher.DispatchAll("appliance_state", p.URLs(s))
}

// URLs builds the six state requests in a fixed order: current
// temperature, target temperature and current state for the thermostat,
// then speed, power and swing mode for the fan.
func (p *StatePusher) URLs(s ApplianceState) []string {
	thermostat := "t-" + s.DeviceID
	return []string{
		p.build(thermostat, "currentTemperature", strconv.Itoa(s.CurrentTemperature)),
		p.build(thermostat, "targetTemperature", strconv.Itoa(s.TargetTemperature)),
		p.build(thermostat, "currentState", strconv.Itoa(s.CurrentState())),
		p.build(s.DeviceID, "speed", strconv.Itoa(s.FanSpeed)),
		p.build(s.DeviceID, "state", boolDigit(s.PowerOn)),
		p.build(s.DeviceID, "swingMode", boolDigit(s.Oscillate)),
	}
}

func (p *StatePusher) build(accessory, key, value string) string {
	u := *p.base
	q := u.Query()
	q.Set("accessoryId", accessory)
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
