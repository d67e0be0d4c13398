package heater

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ThermostatState is the composite heating command.
type ThermostatState int

const (
	ThermostatOff     ThermostatState = 0
	ThermostatHeating ThermostatState = 1
	ThermostatCooling ThermostatState = 2
	// ThermostatAuto exists in the homebridge protocol but the appliance
	// has no automatic mode; commands carrying it are rejected.
	ThermostatAuto ThermostatState = 3
)

func (t ThermostatState) String() string {
	switch t {
	case ThermostatOff:
		return "off"
	case ThermostatHeating:
		return "heating"
	case ThermostatCooling:
		return "cooling"
	case ThermostatAuto:
		return "auto"
	default:
		return fmt.Sprintf("thermostat(%d)", int(t))
	}
}

// CommandKind names the nine command variants. The names double as the
// JSON discriminator.
type CommandKind string

const (
	CmdPowerOn           CommandKind = "PowerOn"
	CmdMode              CommandKind = "Mode"
	CmdTargetTemperature CommandKind = "TargetTemperature"
	CmdFanSpeed          CommandKind = "FanSpeed"
	CmdOscillate         CommandKind = "Oscillate"
	CmdTimer             CommandKind = "Timer"
	CmdSilent            CommandKind = "Silent"
	CmdHeater            CommandKind = "Heater"
	CmdVentHeat          CommandKind = "VentHeat"
)

// Fan speed bounds accepted by the appliance.
const (
	MinFanSpeed = 1
	MaxFanSpeed = 10
)

// commandProperty maps each simple command to the property it writes.
var commandProperty = map[CommandKind]Property{
	CmdPowerOn:           PropPowerOn,
	CmdMode:              PropMode,
	CmdTargetTemperature: PropTargetTemperature,
	CmdFanSpeed:          PropFanSpeed,
	CmdOscillate:         PropOscillate,
	CmdTimer:             PropTimer,
	CmdSilent:            PropSilent,
	CmdHeater:            PropHeater,
	CmdVentHeat:          PropVentHeat,
}

// Command is one request to change the appliance.
//
// On the wire a command is a JSON object with exactly one key naming the
// variant:
//
//	{"PowerOn": true}
//	{"Mode": "sleep"}
//	{"FanSpeed": 3}
//	{"Oscillate": 1}
//	{"Heater": 1}
type Command struct {
	Kind CommandKind

	// Value holds the payload of simple commands.
	Value Value

	// Thermostat holds the payload of CmdHeater.
	Thermostat ThermostatState
}

// PowerOn switches the appliance on or off.
func PowerOn(on bool) Command { return Command{Kind: CmdPowerOn, Value: Bool(on)} }

// SetMode selects normal, natural or sleep mode.
func SetMode(mode string) Command { return Command{Kind: CmdMode, Value: Enum(mode)} }

// TargetTemperature sets the thermostat target in degrees Celsius.
func TargetTemperature(t int) Command { return Command{Kind: CmdTargetTemperature, Value: Int(t)} }

// FanSpeed sets the fan step, 1 to 10.
func FanSpeed(speed int) Command { return Command{Kind: CmdFanSpeed, Value: Int(speed)} }

// Oscillate turns swing on or off.
func Oscillate(on bool) Command { return Command{Kind: CmdOscillate, Value: Bool(on)} }

// Timer sets the off timer in minutes.
func Timer(minutes int) Command { return Command{Kind: CmdTimer, Value: Int(minutes)} }

// Silent toggles silent mode.
func Silent(on bool) Command { return Command{Kind: CmdSilent, Value: Bool(on)} }

// VentHeat toggles the vent heat flag.
func VentHeat(on bool) Command { return Command{Kind: CmdVentHeat, Value: Bool(on)} }

// Thermostat requests a composite Off, Heating or Cooling state.
func Thermostat(s ThermostatState) Command { return Command{Kind: CmdHeater, Thermostat: s} }

// Property returns the property the command writes. For CmdHeater this is
// the heater flag; the power write it may need is decided by the router.
func (c Command) Property() (Property, bool) {
	p, ok := commandProperty[c.Kind]
	return p, ok
}

// Validate checks the variant and payload range.
func (c Command) Validate() error {
	switch c.Kind {
	case CmdPowerOn, CmdOscillate, CmdSilent, CmdVentHeat:
		if c.Value.Kind() != KindBool {
			return fmt.Errorf("%w: %s needs a boolean", ErrInvalidCommand, c.Kind)
		}
	case CmdMode:
		m, ok := c.Value.AsEnum()
		if !ok || (m != ModeNormal && m != ModeNatural && m != ModeSleep) {
			return fmt.Errorf("%w: mode must be normal, natural or sleep", ErrInvalidCommand)
		}
	case CmdTargetTemperature:
		return checkRange(c, 0, 255)
	case CmdFanSpeed:
		return checkRange(c, MinFanSpeed, MaxFanSpeed)
	case CmdTimer:
		return checkRange(c, 0, 65535)
	case CmdHeater:
		switch c.Thermostat {
		case ThermostatOff, ThermostatHeating, ThermostatCooling:
		default:
			return fmt.Errorf("%w: thermostat state %s not supported", ErrInvalidCommand, c.Thermostat)
		}
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidCommand, c.Kind)
	}
	return nil
}

func checkRange(c Command, lo, hi int) error {
	n, ok := c.Value.AsInt()
	if !ok || n < lo || n > hi {
		return fmt.Errorf("%w: %s must be %d..%d", ErrInvalidCommand, c.Kind, lo, hi)
	}
	return nil
}

// ParseCommand decodes and validates a JSON command.
func ParseCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		if errors.Is(err, ErrInvalidCommand) {
			return Command{}, err
		}
		// Syntax errors are reported before UnmarshalJSON runs.
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return c, nil
}

// UnmarshalJSON decodes the single-key wire form and validates it.
func (c *Command) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("%w: expected exactly one variant, got %d", ErrInvalidCommand, len(obj))
	}

	var (
		key string
		raw json.RawMessage
	)
	for k, v := range obj {
		key, raw = k, v
	}

	out := Command{Kind: CommandKind(key)}
	var err error
	switch out.Kind {
	case CmdPowerOn, CmdSilent, CmdVentHeat:
		out.Value, err = decodeBool(raw)
	case CmdOscillate:
		out.Value, err = decodeOscillate(raw)
	case CmdMode:
		var s string
		err = json.Unmarshal(raw, &s)
		out.Value = Enum(s)
	case CmdTargetTemperature, CmdFanSpeed, CmdTimer:
		var n int
		err = json.Unmarshal(raw, &n)
		out.Value = Int(n)
	case CmdHeater:
		var n int
		err = json.Unmarshal(raw, &n)
		out.Thermostat = ThermostatState(n)
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidCommand, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCommand, key, err)
	}
	if err := out.Validate(); err != nil {
		return err
	}

	*c = out
	return nil
}

// decodeOscillate accepts 0/1 as well as a JSON boolean.
func decodeOscillate(raw json.RawMessage) (Value, error) {
	switch string(bytes.TrimSpace(raw)) {
	case "0":
		return Bool(false), nil
	case "1":
		return Bool(true), nil
	}
	v, err := decodeBool(raw)
	if err != nil {
		return Value{}, fmt.Errorf("want 0, 1 or a boolean")
	}
	return v, nil
}

// MarshalJSON emits the single-key wire form.
func (c Command) MarshalJSON() ([]byte, error) {
	if c.Kind == CmdHeater {
		return json.Marshal(map[string]int{string(c.Kind): int(c.Thermostat)})
	}
	return json.Marshal(map[string]Value{string(c.Kind): c.Value})
}

func (c Command) String() string {
	if c.Kind == CmdHeater {
		return string(c.Kind) + "(" + c.Thermostat.String() + ")"
	}
	return string(c.Kind) + "(" + c.Value.String() + ")"
}
