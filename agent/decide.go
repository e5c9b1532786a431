package agent

import (
	"fmt"

	"github.com/elijahnyp/light_agent/state"
)

type Action string

const (
	ActionTurnOn     Action = "turn_on"
	ActionTurnOff    Action = "turn_off"
	ActionBrightness Action = "brightness"
)

const (
	ReasonPowerOutage = "power outage"
	ReasonRoomEmpty   = "room empty"
)

// RoomDecision is the desired lighting of one room for one cycle.
type RoomDecision struct {
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	PeopleCount int    `json:"people_count"`
	On          bool   `json:"on"`
	// nil when the lights go off or auto brightness is disabled
	Brightness *int   `json:"brightness,omitempty"`
	Reason     string `json:"reason"`
	Dark       bool   `json:"dark"`
}

// PlannedCommand is a command together with why it is being sent.
type PlannedCommand struct {
	Command            state.Command `json:"command"`
	Action             Action        `json:"action"`
	RoomID             string        `json:"room_id"`
	Reason             string        `json:"reason"`
	PreviousBrightness int           `json:"previous_brightness"`
}

func (p PlannedCommand) String() string {
	switch p.Action {
	case ActionBrightness:
		return fmt.Sprintf("brightness %s: %d%% -> %d%%", p.Command.LightID, p.PreviousBrightness, *p.Command.Brightness)
	case ActionTurnOn:
		if p.Command.Brightness != nil {
			return fmt.Sprintf("on %s (%s, brightness %d%%)", p.Command.LightID, p.Reason, *p.Command.Brightness)
		}
		return fmt.Sprintf("on %s (%s)", p.Command.LightID, p.Reason)
	default:
		return fmt.Sprintf("off %s (%s)", p.Command.LightID, p.Reason)
	}
}

// Plan is the outcome of evaluating one snapshot.
type Plan struct {
	Rooms    []RoomDecision   `json:"rooms"`
	Commands []PlannedCommand `json:"commands"`
}

// TargetBrightness interpolates linearly from MaxBrightness at daylight 0
// down to MinBrightness at daylight 1, truncating toward zero.
func TargetBrightness(daylight float64, s Settings) int {
	span := float64(s.MaxBrightness - s.MinBrightness)
	b := int(float64(s.MaxBrightness) - daylight*span)
	if b < s.MinBrightness {
		b = s.MinBrightness
	}
	if b > s.MaxBrightness {
		b = s.MaxBrightness
	}
	return b
}

// DecideRoom applies the rules in priority order: power outage, occupancy,
// empty room.
func DecideRoom(room state.Room, b *state.BuildingState, s Settings) RoomDecision {
	d := RoomDecision{
		RoomID:      room.ID,
		RoomName:    room.DisplayName(),
		PeopleCount: room.PeopleCount,
		Dark:        b.DaylightIntensity < s.DaylightThreshold,
	}
	switch {
	case b.PowerOutage:
		d.Reason = ReasonPowerOutage
	case room.PeopleCount > 0:
		d.On = true
		d.Reason = fmt.Sprintf("%d people in room", room.PeopleCount)
		if s.AutoBrightness {
			d.Brightness = state.Brightness(TargetBrightness(b.DaylightIntensity, s))
		}
	default:
		d.Reason = ReasonRoomEmpty
	}
	return d
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// commandFor returns the command moving light l to decision d, if any.
func commandFor(l state.Light, d RoomDecision, s Settings) (PlannedCommand, bool) {
	pc := PlannedCommand{
		RoomID:             d.RoomID,
		Reason:             d.Reason,
		PreviousBrightness: l.Brightness,
	}
	switch {
	case !d.On && l.IsOn():
		pc.Action = ActionTurnOff
		pc.Command = state.TurnOff(l.ID)
	case d.On && !l.IsOn():
		pc.Action = ActionTurnOn
		pc.Command = state.TurnOn(l.ID, d.Brightness)
	case d.On && d.Brightness != nil && abs(l.Brightness-*d.Brightness) > s.BrightnessTolerance:
		pc.Action = ActionBrightness
		pc.Command = state.TurnOn(l.ID, d.Brightness)
	default:
		return PlannedCommand{}, false
	}
	return pc, true
}

// Decide evaluates every room of the snapshot and lists the commands needed
// to bring the lights in line with the decisions. It has no side effects.
func Decide(b *state.BuildingState, s Settings) Plan {
	plan := Plan{
		Rooms:    make([]RoomDecision, 0, len(b.Rooms)),
		Commands: []PlannedCommand{},
	}
	for _, room := range b.Rooms {
		d := DecideRoom(room, b, s)
		plan.Rooms = append(plan.Rooms, d)
		for _, l := range room.Lights {
			if pc, ok := commandFor(l, d, s); ok {
				plan.Commands = append(plan.Commands, pc)
			}
		}
	}
	return plan
}
