package heater

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Command
	}{
		{"power", `{"PowerOn": true}`, PowerOn(true)},
		{"mode", `{"Mode": "natural"}`, SetMode(ModeNatural)},
		{"target temperature", `{"TargetTemperature": 22}`, TargetTemperature(22)},
		{"fan speed", `{"FanSpeed": 10}`, FanSpeed(10)},
		{"oscillate numeric", `{"Oscillate": 1}`, Oscillate(true)},
		{"oscillate bool", `{"Oscillate": false}`, Oscillate(false)},
		{"timer", `{"Timer": 90}`, Timer(90)},
		{"silent", `{"Silent": true}`, Silent(true)},
		{"vent heat", `{"VentHeat": false}`, VentHeat(false)},
		{"thermostat cooling", `{"Heater": 2}`, Thermostat(ThermostatCooling)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not an object", `[1]`},
		{"truncated object", `{`},
		{"empty body", ``},
		{"not json", `not json`},
		{"empty object", `{}`},
		{"two variants", `{"PowerOn": true, "Silent": true}`},
		{"unknown variant", `{"Turbo": true}`},
		{"wrong payload type", `{"PowerOn": "yes"}`},
		{"fan speed zero", `{"FanSpeed": 0}`},
		{"fan speed above max", `{"FanSpeed": 11}`},
		{"unknown mode", `{"Mode": "eco"}`},
		{"oscillate two", `{"Oscillate": 2}`},
		{"thermostat auto", `{"Heater": 3}`},
		{"timer overflow", `{"Timer": 65536}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.json))
			assert.ErrorIs(t, err, ErrInvalidCommand)
		})
	}
}

func TestCommand_MarshalJSON(t *testing.T) {
	for _, cmd := range []Command{PowerOn(true), SetMode(ModeSleep), FanSpeed(4), Thermostat(ThermostatHeating)} {
		data, err := json.Marshal(cmd)
		require.NoError(t, err)
		back, err := ParseCommand(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, cmd, back)
	}
}

func TestValue_Payload(t *testing.T) {
	assert.Equal(t, "true", string(Bool(true).Payload()))
	assert.Equal(t, "7", string(Int(7).Payload()))
	assert.Equal(t, `"sleep"`, string(Enum("sleep").Payload()))
}
