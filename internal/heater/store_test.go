package heater

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDevice = "dev1"

func stateTopic(p Property) string { return StateTopic(testDevice, p) }

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 4; i++ {
		h.Append(RawMessage{Topic: fmt.Sprintf("m%d", i)})
	}

	require.Equal(t, 3, h.Len())
	msgs := h.Messages()
	assert.Equal(t, []string{"m2", "m3", "m4"}, []string{msgs[0].Topic, msgs[1].Topic, msgs[2].Topic})
}

func TestHistory_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, NewHistory(0).Cap())
}

func TestHistory_BoundedFIFOProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("keeps the last cap messages in order", prop.ForAll(
		func(capacity, inserts int) bool {
			h := NewHistory(capacity)
			for i := 0; i < inserts; i++ {
				h.Append(RawMessage{Topic: fmt.Sprint(i)})
			}
			want := inserts
			if want > capacity {
				want = capacity
			}
			msgs := h.Messages()
			if h.Len() != want || len(msgs) != want {
				return false
			}
			first := inserts - want
			for i, m := range msgs {
				if m.Topic != fmt.Sprint(first+i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

func TestParseProperty(t *testing.T) {
	p, err := ParseProperty(stateTopic(PropFanSpeed))
	require.NoError(t, err)
	assert.Equal(t, PropFanSpeed, p)

	_, err = ParseProperty("appliance/heaterfan/dev1/state/turbo")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		prop    Property
		payload string
		want    Value
		wantErr bool
	}{
		{PropPowerOn, "true", Bool(true), false},
		{PropPowerOn, " false\n", Bool(false), false},
		{PropPowerOn, "1", Value{}, true},
		{PropFanSpeed, "3", Int(3), false},
		{PropFanSpeed, "256", Value{}, true},
		{PropFanSpeed, "-1", Value{}, true},
		{PropTimer, "600", Int(600), false},
		{PropMode, `"sleep"`, Enum(ModeSleep), false},
		{PropMode, `"turbo"`, Value{}, true},
		{PropHeatStatus, `"active"`, Enum(HeatActive), false},
	}

	for _, tt := range tests {
		t.Run(tt.prop.String()+"/"+tt.payload, func(t *testing.T) {
			got, err := Decode(tt.prop, []byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_UpdateReplaces(t *testing.T) {
	s := NewStore(10)
	now := time.Now()

	_, err := s.Update(stateTopic(PropFanSpeed), []byte("2"), now)
	require.NoError(t, err)
	e, err := s.Update(stateTopic(PropFanSpeed), []byte("5"), now)
	require.NoError(t, err)
	assert.Equal(t, Int(5), e.Value)

	snap := s.Snapshot()
	assert.Len(t, snap.Entries, 1)
	assert.Equal(t, 5, snap.Int(PropFanSpeed, 0))

	key, v, ok := s.Lookup(PropFanSpeed)
	require.True(t, ok)
	assert.Equal(t, stateTopic(PropFanSpeed), key)
	assert.Equal(t, Int(5), v)
}

func TestStore_BadMessagesKeptInHistory(t *testing.T) {
	s := NewStore(10)

	_, err := s.Update("appliance/heaterfan/dev1/state/turbo", []byte("1"), time.Now())
	assert.ErrorIs(t, err, ErrUnknownTopic)
	_, err = s.Update(stateTopic(PropPowerOn), []byte("maybe"), time.Now())
	assert.ErrorIs(t, err, ErrDecode)

	assert.Equal(t, 2, s.HistoryLen())
	assert.Empty(t, s.Snapshot().Entries)
	_, _, ok := s.Lookup(PropPowerOn)
	assert.False(t, ok)
}

func TestStore_Complete(t *testing.T) {
	s := NewStore(len(Properties))
	payloads := map[Property]string{
		PropMode:       `"normal"`,
		PropHeatStatus: `"idle"`,
	}
	for i, p := range Properties {
		assert.False(t, s.Complete(), "complete after %d of %d properties", i, len(Properties))
		payload, ok := payloads[p]
		if !ok {
			payload = "0"
			if v, _ := Decode(p, []byte("false")); v.Kind() == KindBool {
				payload = "false"
			}
		}
		_, err := s.Update(stateTopic(p), []byte(payload), time.Now())
		require.NoError(t, err, p.String())
	}
	assert.True(t, s.Complete())
}

func TestSnapshot_Defaults(t *testing.T) {
	var snap Snapshot
	assert.True(t, snap.Bool(PropPowerOn, true))
	assert.Equal(t, 7, snap.Int(PropFanSpeed, 7))
}
