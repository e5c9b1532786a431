package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elijahnyp/light_agent/state"
)

func light(id string, on bool, brightness int) state.Light {
	s := state.OFF
	if on {
		s = state.ON
	}
	return state.Light{ID: id, State: s, Brightness: brightness}
}

func building(daylight float64, outage bool, rooms ...state.Room) *state.BuildingState {
	return &state.BuildingState{DaylightIntensity: daylight, PowerOutage: outage, Rooms: rooms}
}

func commandsFor(plan Plan, lightID string) []PlannedCommand {
	var out []PlannedCommand
	for _, c := range plan.Commands {
		if c.Command.LightID == lightID {
			out = append(out, c)
		}
	}
	return out
}

func TestTargetBrightness_ExampleValue(t *testing.T) {
	assert.Equal(t, 50, TargetBrightness(0.707, DefaultSettings()))
}

func TestTargetBrightness_Bounds(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 100, TargetBrightness(0, s))
	assert.Equal(t, 30, TargetBrightness(1, s))
	assert.Equal(t, 100, TargetBrightness(-0.5, s), "clamped to max")
	assert.Equal(t, 30, TargetBrightness(2, s), "clamped to min")

	s.MinBrightness, s.MaxBrightness = 60, 60
	assert.Equal(t, 60, TargetBrightness(0.4, s))
}

func TestTargetBrightness_MonotonicNonIncreasing(t *testing.T) {
	for _, s := range []Settings{
		DefaultSettings(),
		{MinBrightness: 0, MaxBrightness: 100},
		{MinBrightness: 10, MaxBrightness: 20},
	} {
		prev := TargetBrightness(0, s)
		for i := 1; i <= 1000; i++ {
			b := TargetBrightness(float64(i)/1000, s)
			require.LessOrEqualf(t, b, prev, "daylight %v with %+v", float64(i)/1000, s)
			require.GreaterOrEqual(t, b, s.MinBrightness)
			require.LessOrEqual(t, b, s.MaxBrightness)
			prev = b
		}
	}
}

func TestDecide_PowerOutageOverridesOccupancy(t *testing.T) {
	b := building(0.2, true,
		state.Room{ID: "busy", PeopleCount: 5, Lights: []state.Light{light("b1", true, 80), light("b2", false, 0)}},
		state.Room{ID: "empty", PeopleCount: 0, Lights: []state.Light{light("e1", true, 50)}},
	)

	plan := Decide(b, DefaultSettings())

	require.Len(t, plan.Rooms, 2)
	for _, d := range plan.Rooms {
		assert.False(t, d.On, "room %s", d.RoomID)
		assert.Nil(t, d.Brightness)
		assert.Equal(t, ReasonPowerOutage, d.Reason)
	}

	require.Len(t, plan.Commands, 2)
	assert.Equal(t, state.TurnOff("b1"), plan.Commands[0].Command)
	assert.Equal(t, ActionTurnOff, plan.Commands[0].Action)
	assert.Equal(t, state.TurnOff("e1"), plan.Commands[1].Command)
	assert.Empty(t, commandsFor(plan, "b2"), "light already off")
}

func TestDecide_OccupiedRoomTurnsOnWithBrightness(t *testing.T) {
	b := building(0.707, false,
		state.Room{ID: "room-101", Name: "Conference", PeopleCount: 2, Lights: []state.Light{light("l1", false, 0), light("l2", false, 0)}},
	)

	plan := Decide(b, DefaultSettings())

	require.Len(t, plan.Rooms, 1)
	d := plan.Rooms[0]
	assert.True(t, d.On)
	require.NotNil(t, d.Brightness)
	assert.Equal(t, 50, *d.Brightness)
	assert.Equal(t, "2 people in room", d.Reason)
	assert.Equal(t, "Conference", d.RoomName)

	require.Len(t, plan.Commands, 2)
	for _, c := range plan.Commands {
		assert.Equal(t, ActionTurnOn, c.Action)
		assert.Equal(t, state.ON, c.Command.State)
		require.NotNil(t, c.Command.Brightness)
		assert.Equal(t, 50, *c.Command.Brightness)
	}
}

func TestDecide_EmptyRoomTurnsOffWithoutBrightness(t *testing.T) {
	b := building(0.1, false,
		state.Room{ID: "r", PeopleCount: 0, Lights: []state.Light{light("l1", true, 90)}},
	)

	plan := Decide(b, DefaultSettings())

	require.Len(t, plan.Commands, 1)
	c := plan.Commands[0]
	assert.Equal(t, ActionTurnOff, c.Action)
	assert.Equal(t, state.OFF, c.Command.State)
	assert.Nil(t, c.Command.Brightness)
	assert.Equal(t, ReasonRoomEmpty, c.Reason)
	assert.Equal(t, 90, c.PreviousBrightness)
}

func TestDecide_NoCommandWhenAlreadyInTargetState(t *testing.T) {
	b := building(0.707, false,
		state.Room{ID: "on", PeopleCount: 1, Lights: []state.Light{light("l1", true, 50)}},
		state.Room{ID: "off", PeopleCount: 0, Lights: []state.Light{light("l2", false, 0), light("l3", false, 75)}},
	)

	plan := Decide(b, DefaultSettings())

	assert.Empty(t, plan.Commands)
	assert.Len(t, plan.Rooms, 2)
}

func TestDecide_BrightnessAdjustment(t *testing.T) {
	b := building(1.0, false,
		state.Room{ID: "r", PeopleCount: 3, Lights: []state.Light{light("l1", true, 100)}},
	)

	plan := Decide(b, DefaultSettings())

	require.Len(t, plan.Commands, 1)
	c := plan.Commands[0]
	assert.Equal(t, ActionBrightness, c.Action)
	assert.Equal(t, 30, *c.Command.Brightness)
	assert.Equal(t, 100, c.PreviousBrightness)
	assert.Equal(t, "brightness l1: 100% -> 30%", c.String())
}

func TestDecide_BrightnessTolerance(t *testing.T) {
	s := DefaultSettings()
	s.BrightnessTolerance = 5
	b := building(0.707, false,
		state.Room{ID: "r", PeopleCount: 1, Lights: []state.Light{
			light("near", true, 54),
			light("far", true, 56),
		}},
	)

	plan := Decide(b, s)

	assert.Empty(t, commandsFor(plan, "near"))
	assert.Len(t, commandsFor(plan, "far"), 1)
}

func TestDecide_AutoBrightnessDisabled(t *testing.T) {
	s := DefaultSettings()
	s.AutoBrightness = false
	b := building(0.9, false,
		state.Room{ID: "r", PeopleCount: 1, Lights: []state.Light{
			light("off", false, 0),
			light("on", true, 100),
		}},
	)

	plan := Decide(b, s)

	assert.Nil(t, plan.Rooms[0].Brightness)
	require.Len(t, plan.Commands, 1, "lit light is not touched")
	c := plan.Commands[0]
	assert.Equal(t, "off", c.Command.LightID)
	assert.Equal(t, state.ON, c.Command.State)
	assert.Nil(t, c.Command.Brightness)
	assert.Equal(t, "on off (1 people in room)", c.String())
}

func TestDecide_DarkFlagFollowsThreshold(t *testing.T) {
	room := state.Room{ID: "r", PeopleCount: 1, Lights: []state.Light{}}

	s := DefaultSettings()
	assert.True(t, DecideRoom(room, building(0.29, false), s).Dark)
	assert.False(t, DecideRoom(room, building(0.3, false), s).Dark)

	s.DaylightThreshold = 0.8
	assert.True(t, DecideRoom(room, building(0.5, false), s).Dark)
}

func TestDecide_RoomWithoutLights(t *testing.T) {
	b := building(0.5, false, state.Room{ID: "hall", PeopleCount: 4, Lights: []state.Light{}})

	plan := Decide(b, DefaultSettings())

	assert.Len(t, plan.Rooms, 1)
	assert.True(t, plan.Rooms[0].On)
	assert.Empty(t, plan.Commands)
}

func TestDecide_Idempotent(t *testing.T) {
	b := building(0.4, false,
		state.Room{ID: "a", PeopleCount: 2, Lights: []state.Light{light("a1", false, 0)}},
		state.Room{ID: "b", PeopleCount: 0, Lights: []state.Light{light("b1", true, 40)}},
	)

	assert.Equal(t, Decide(b, DefaultSettings()), Decide(b, DefaultSettings()))
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		valid  bool
	}{
		{"Defaults", func(s *Settings) {}, true},
		{"Zero interval", func(s *Settings) { s.PollInterval = 0 }, false},
		{"Threshold too high", func(s *Settings) { s.DaylightThreshold = 1.2 }, false},
		{"Threshold negative", func(s *Settings) { s.DaylightThreshold = -0.1 }, false},
		{"Threshold edge", func(s *Settings) { s.DaylightThreshold = 1 }, true},
		{"Min above max", func(s *Settings) { s.MinBrightness = 90; s.MaxBrightness = 80 }, false},
		{"Max above 100", func(s *Settings) { s.MaxBrightness = 120 }, false},
		{"Negative min", func(s *Settings) { s.MinBrightness = -1 }, false},
		{"Negative tolerance", func(s *Settings) { s.BrightnessTolerance = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			}
		})
	}
}
