package state

import (
	"encoding/json"
	"fmt"
)

// Command asks the simulator to switch one light. Brightness is only ever
// carried with an ON command.
type Command struct {
	LightID    string     `json:"lightId"`
	State      LightState `json:"state"`
	Brightness *int       `json:"brightness,omitempty"`
}

func TurnOn(lightID string, brightness *int) Command {
	return Command{LightID: lightID, State: ON, Brightness: brightness}
}

func TurnOff(lightID string) Command {
	return Command{LightID: lightID, State: OFF}
}

func (c Command) MarshalJSON() ([]byte, error) {
	type wire Command
	w := wire(c)
	if w.State != ON {
		w.Brightness = nil
	}
	return json.Marshal(w)
}

func (c Command) String() string {
	if c.State == ON && c.Brightness != nil {
		return fmt.Sprintf("%s %s @%d%%", c.LightID, c.State, *c.Brightness)
	}
	return fmt.Sprintf("%s %s", c.LightID, c.State)
}

// Brightness returns a pointer to b, for building ON commands.
func Brightness(b int) *int {
	return &b
}
