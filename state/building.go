// Package state holds the building snapshot reported by the simulator and
// the light control commands sent back to it.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrInvalidState is returned when a snapshot is missing fields or carries
// out of range values. Such a snapshot is never acted upon.
var ErrInvalidState = errors.New("invalid building state")

type LightState string

const (
	ON  LightState = "ON"
	OFF LightState = "OFF"
)

func (s LightState) Valid() bool {
	return s == ON || s == OFF
}

type Light struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"roomId,omitempty"`
	State      LightState `json:"state"`
	Brightness int        `json:"brightness"`
}

func (l Light) IsOn() bool {
	return l.State == ON
}

type Room struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	PeopleCount int     `json:"peopleCount"`
	Lights      []Light `json:"lights"`
}

// DisplayName falls back to the room id when the simulator sends no name.
func (r Room) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// LightsOn returns how many lights are on and their average brightness.
func (r Room) LightsOn() (count int, avgBrightness float64) {
	total := 0
	for _, l := range r.Lights {
		if l.IsOn() {
			count++
			total += l.Brightness
		}
	}
	if count > 0 {
		avgBrightness = float64(total) / float64(count)
	}
	return count, avgBrightness
}

type BuildingState struct {
	SimulationTime      time.Time `json:"simulationTime,omitempty"`
	DaylightIntensity   float64   `json:"daylightIntensity"`
	ExternalTemperature float64   `json:"externalTemperature"`
	PowerOutage         bool      `json:"powerOutage"`
	Rooms               []Room    `json:"rooms"`
	// non-fatal problems found while decoding
	Warnings []string `json:"-"`
}

// wire types use pointers so that a missing field can be told apart from a
// zero value
type wireLight struct {
	ID         *string `json:"id"`
	RoomID     string  `json:"roomId"`
	State      *string `json:"state"`
	Brightness *int    `json:"brightness"`
}

type wireRoom struct {
	ID          *string      `json:"id"`
	Name        string       `json:"name"`
	PeopleCount *int         `json:"peopleCount"`
	Lights      *[]wireLight `json:"lights"`
}

type wireState struct {
	SimulationTime      json.RawMessage `json:"simulationTime"`
	DaylightIntensity   *float64        `json:"daylightIntensity"`
	ExternalTemperature *float64        `json:"externalTemperature"`
	PowerOutage         *bool           `json:"powerOutage"`
	Rooms               *[]wireRoom     `json:"rooms"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// simulation time layouts, tried in order; the last two carry no zone and
// are read as UTC
var simulationTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseSimulationTime accepts RFC 3339 as well as ISO 8601 timestamps
// without a zone.
func ParseSimulationTime(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range simulationTimeLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Decode reads one JSON snapshot from r and validates it. Anything after the
// snapshot other than whitespace is rejected.
func Decode(r io.Reader) (*BuildingState, error) {
	var w wireState
	dec := json.NewDecoder(r)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: decoding json: %v", ErrInvalidState, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalid("unexpected data after snapshot")
	}
	return w.toState()
}

// Parse is Decode for an in-memory document.
func Parse(data []byte) (*BuildingState, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: decoding json: %v", ErrInvalidState, err)
	}
	return w.toState()
}

func (w wireState) toState() (*BuildingState, error) {
	if w.DaylightIntensity == nil {
		return nil, invalid("missing daylightIntensity")
	}
	if w.PowerOutage == nil {
		return nil, invalid("missing powerOutage")
	}
	if w.Rooms == nil {
		return nil, invalid("missing rooms")
	}
	s := &BuildingState{
		DaylightIntensity: *w.DaylightIntensity,
		PowerOutage:       *w.PowerOutage,
		Rooms:             make([]Room, 0, len(*w.Rooms)),
	}
	s.decodeSimulationTime(w.SimulationTime)
	if w.ExternalTemperature != nil {
		s.ExternalTemperature = *w.ExternalTemperature
	}
	for i, wr := range *w.Rooms {
		room, err := wr.toRoom(i)
		if err != nil {
			return nil, err
		}
		s.Rooms = append(s.Rooms, room)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeSimulationTime is lenient: the time is informational, so a value
// that cannot be read leaves it zero and adds a warning.
func (s *BuildingState) decodeSimulationTime(raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("simulationTime %s is not a string", raw))
		return
	}
	if v == "" {
		return
	}
	t, err := ParseSimulationTime(v)
	if err != nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("unreadable simulationTime %q: %v", v, err))
		return
	}
	s.SimulationTime = t
}

func (wr wireRoom) toRoom(idx int) (Room, error) {
	if wr.ID == nil {
		return Room{}, invalid("room %d: missing id", idx)
	}
	if wr.PeopleCount == nil {
		return Room{}, invalid("room %q: missing peopleCount", *wr.ID)
	}
	if wr.Lights == nil {
		return Room{}, invalid("room %q: missing lights", *wr.ID)
	}
	room := Room{
		ID:          *wr.ID,
		Name:        wr.Name,
		PeopleCount: *wr.PeopleCount,
		Lights:      make([]Light, 0, len(*wr.Lights)),
	}
	for j, wl := range *wr.Lights {
		if wl.ID == nil {
			return Room{}, invalid("room %q light %d: missing id", room.ID, j)
		}
		if wl.State == nil {
			return Room{}, invalid("light %q: missing state", *wl.ID)
		}
		if wl.Brightness == nil {
			return Room{}, invalid("light %q: missing brightness", *wl.ID)
		}
		room.Lights = append(room.Lights, Light{
			ID:         *wl.ID,
			RoomID:     wl.RoomID,
			State:      LightState(*wl.State),
			Brightness: *wl.Brightness,
		})
	}
	return room, nil
}

// Validate checks value ranges. Decode calls it; callers building a
// BuildingState by hand can call it too.
func (s *BuildingState) Validate() error {
	if s.DaylightIntensity < 0 || s.DaylightIntensity > 1 {
		return invalid("daylightIntensity %v out of range [0,1]", s.DaylightIntensity)
	}
	for _, room := range s.Rooms {
		if room.ID == "" {
			return invalid("room with empty id")
		}
		if room.PeopleCount < 0 {
			return invalid("room %q: negative peopleCount %d", room.ID, room.PeopleCount)
		}
		for _, l := range room.Lights {
			if l.ID == "" {
				return invalid("room %q: light with empty id", room.ID)
			}
			if !l.State.Valid() {
				return invalid("light %q: unknown state %q", l.ID, l.State)
			}
			if l.Brightness < 0 || l.Brightness > 100 {
				return invalid("light %q: brightness %d out of range [0,100]", l.ID, l.Brightness)
			}
		}
	}
	return nil
}
