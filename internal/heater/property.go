package heater

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TopicPrefix is the namespace for heater/fan appliances.
const TopicPrefix = "appliance/heaterfan"

// Property is one appliance property.
type Property int

const (
	PropPowerOn Property = iota + 1
	PropMode
	PropTargetTemperature
	PropCurrentTemperature
	PropFanSpeed
	PropOscillate
	PropTimer
	PropSilent
	PropHeater
	PropVentHeat
	PropHeatStatus
	PropError
)

// Properties lists every property in topic-table order.
var Properties = []Property{
	PropPowerOn,
	PropMode,
	PropTargetTemperature,
	PropCurrentTemperature,
	PropFanSpeed,
	PropOscillate,
	PropTimer,
	PropSilent,
	PropHeater,
	PropVentHeat,
	PropHeatStatus,
	PropError,
}

// Mode values accepted by the appliance.
const (
	ModeNormal  = "normal"
	ModeNatural = "natural"
	ModeSleep   = "sleep"
)

// Heat status values reported by the appliance.
const (
	HeatIdle   = "idle"
	HeatActive = "active"
)

type decoder func(payload []byte) (Value, error)

type propertySpec struct {
	suffix string
	decode decoder
}

// propertyTable is the closed suffix table. A suffix not listed here is
// ErrUnknownTopic.
var propertyTable = map[Property]propertySpec{
	PropPowerOn:            {"power_on", decodeBool},
	PropMode:               {"mode", decodeEnum(ModeNormal, ModeNatural, ModeSleep)},
	PropTargetTemperature:  {"target_temperature", decodeUint(255)},
	PropCurrentTemperature: {"current_temperature", decodeUint(255)},
	PropFanSpeed:           {"fan_speed", decodeUint(255)},
	PropOscillate:          {"oscillate", decodeBool},
	PropTimer:              {"timer", decodeUint(65535)},
	PropSilent:             {"silent", decodeBool},
	PropHeater:             {"heater", decodeBool},
	PropVentHeat:           {"vent_heat", decodeBool},
	PropHeatStatus:         {"heat_status", decodeEnum(HeatIdle, HeatActive)},
	PropError:              {"error", decodeUint(255)},
}

var bySuffix = func() map[string]Property {
	m := make(map[string]Property, len(propertyTable))
	for p, spec := range propertyTable {
		m[spec.suffix] = p
	}
	return m
}()

// Suffix returns the topic suffix, e.g. "power_on".
func (p Property) Suffix() string {
	return propertyTable[p].suffix
}

func (p Property) String() string {
	if s := p.Suffix(); s != "" {
		return s
	}
	return fmt.Sprintf("property(%d)", int(p))
}

// StateTopic returns the canonical key for a property of a device.
func StateTopic(deviceID string, p Property) string {
	return TopicPrefix + "/" + deviceID + "/state/" + p.Suffix()
}

// SetTopic returns the write topic for a canonical key.
func SetTopic(key string) string {
	return key + "/set"
}

// ParseProperty resolves the property of a state topic from its last segment.
func ParseProperty(topic string) (Property, error) {
	suffix := topic
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		suffix = topic[i+1:]
	}
	p, ok := bySuffix[suffix]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return p, nil
}

// Decode parses a payload into the property's value type.
func Decode(p Property, payload []byte) (Value, error) {
	spec, ok := propertyTable[p]
	if !ok {
		return Value{}, fmt.Errorf("%w: %v", ErrUnknownTopic, p)
	}
	v, err := spec.decode(bytes.TrimSpace(payload))
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s: %w", ErrDecode, spec.suffix, err)
	}
	return v, nil
}

func decodeBool(payload []byte) (Value, error) {
	var b bool
	if err := json.Unmarshal(payload, &b); err != nil {
		return Value{}, err
	}
	return Bool(b), nil
}

func decodeUint(limit int) decoder {
	return func(payload []byte) (Value, error) {
		var n int
		if err := json.Unmarshal(payload, &n); err != nil {
			return Value{}, err
		}
		if n < 0 || n > limit {
			return Value{}, fmt.Errorf("%d out of range 0..%d", n, limit)
		}
		return Int(n), nil
	}
}

func decodeEnum(allowed ...string) decoder {
	return func(payload []byte) (Value, error) {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return Value{}, err
		}
		for _, a := range allowed {
			if s == a {
				return Enum(s), nil
			}
		}
		return Value{}, fmt.Errorf("%q is not one of %v", s, allowed)
	}
}
