package heater

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
	"github.com/nerrad567/homehub/internal/notify"
)

// readingLabels maps the properties exported as gauge readings to their
// kind and unit labels.
var readingLabels = []struct {
	prop Property
	kind string
	unit string
}{
	{PropPowerOn, "power_on", "onoff"},
	{PropCurrentTemperature, "temperature", "celsius"},
	{PropFanSpeed, "fan_speed", "steps"},
	{PropOscillate, "oscillate", "onoff"},
}

// Defaults sent to the webhook for properties not reported yet.
const (
	defaultFanSpeed    = 1
	defaultTemperature = 1
)

func (a *Appliance) scheduleRefresh() {
	if a.debounce <= 0 {
		a.Refresh()
		return
	}

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	if a.refreshTimer != nil {
		return
	}
	a.refreshTimer = time.AfterFunc(a.debounce, func() {
		a.refreshMu.Lock()
		a.refreshTimer = nil
		a.refreshMu.Unlock()
		a.Refresh()
	})
}

// Refresh publishes the derived readings and starts the full-state push,
// both from one snapshot.
func (a *Appliance) Refresh() {
	snap := a.store.Snapshot()

	if a.pusher != nil {
		go a.pusher.PushApplianceState(ApplianceState(a.deviceID, snap))
	}

	for _, r := range Readings(a.identity, snap) {
		if err := a.bus.Publish(r); err != nil {
			a.logger.Error("heater reading not published", "labels", r.Labels, "error", err)
			return
		}
	}
}

// Readings derives gauge readings from a snapshot. Properties not yet
// reported produce nothing.
func Readings(id uuid.UUID, snap Snapshot) []bus.Reading {
	var out []bus.Reading
	for _, rl := range readingLabels {
		v, ok := snap.Value(rl.prop)
		if !ok {
			continue
		}
		f, ok := v.Float()
		if !ok {
			continue
		}
		out = append(out, bus.Reading{
			ID:     id,
			Value:  bus.Scalar(f),
			Labels: []string{rl.kind, rl.unit},
		})
	}
	return out
}

// ApplianceState folds a snapshot into the webhook state. The heater
// counts as heating while heat_status is active or vent heat is on.
func ApplianceState(deviceID string, snap Snapshot) notify.ApplianceState {
	heatActive := false
	if v, ok := snap.Value(PropHeatStatus); ok {
		s, _ := v.AsEnum()
		heatActive = s == HeatActive
	}
	return notify.ApplianceState{
		DeviceID:           deviceID,
		PowerOn:            snap.Bool(PropPowerOn, false),
		Heating:            heatActive || snap.Bool(PropVentHeat, false),
		Oscillate:          snap.Bool(PropOscillate, false),
		FanSpeed:           snap.Int(PropFanSpeed, defaultFanSpeed),
		CurrentTemperature: snap.Int(PropCurrentTemperature, defaultTemperature),
		TargetTemperature:  snap.Int(PropTargetTemperature, defaultTemperature),
	}
}
