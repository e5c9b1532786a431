package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/elijahnyp/light_agent/agent"
	. "github.com/elijahnyp/light_agent/util"
)

const clearScreen = "\033[H\033[2J"

// Console prints cycle reports for a human watching the agent. In quiet mode
// only the actions taken are printed.
type Console struct {
	out   io.Writer
	mu    sync.Mutex
	quiet bool
	clear bool
}

func NewConsole(out io.Writer, quiet, clear bool) *Console {
	return &Console{out: out, quiet: quiet, clear: clear}
}

func (c *Console) SetQuiet(quiet bool) {
	c.mu.Lock()
	c.quiet = quiet
	c.mu.Unlock()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (c *Console) PrintConfig(url string, s agent.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("light agent configuration\n")
	c.printf("  simulator url:     %s\n", url)
	c.printf("  interval:          %v\n", s.PollInterval)
	c.printf("  daylight threshold: %.0f%%\n", s.DaylightThreshold*100)
	c.printf("  auto brightness:   %s\n\n", yesNo(s.AutoBrightness))
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		Logger.Debug().Msgf("console write failed: %v", err)
	}
}

func (c *Console) Render(r agent.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quiet {
		c.renderActions(r)
		return
	}
	if r.State == nil {
		// the agent already logged why
		return
	}
	if c.clear {
		c.printf(clearScreen)
	}
	c.renderStatus(r)
	c.renderRooms(r)
	if len(r.Actions) > 0 {
		c.printf("\nactions:\n")
		c.renderActions(r)
	}
	c.printf("\n")
}

func (c *Console) renderStatus(r agent.Report) {
	b := r.State
	simTime := "-"
	if !b.SimulationTime.IsZero() {
		simTime = b.SimulationTime.Format("2006-01-02 15:04:05")
	}
	outage := "no"
	if b.PowerOutage {
		outage = "YES"
	}
	c.printf("simulation time:     %s\n", simTime)
	c.printf("daylight:            %.1f%%\n", b.DaylightIntensity*100)
	c.printf("outside temperature: %.1f°C\n", b.ExternalTemperature)
	c.printf("power outage:        %s\n\n", outage)
}

func (c *Console) renderRooms(r agent.Report) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tPEOPLE\tLIGHTS\tBRIGHTNESS\tDECISION")
	for i, room := range r.State.Rooms {
		lights := "-"
		brightness := "-"
		if len(room.Lights) > 0 {
			on, avg := room.LightsOn()
			lights = fmt.Sprintf("%d/%d", on, len(room.Lights))
			if on > 0 {
				brightness = fmt.Sprintf("%.0f%%", avg)
			}
		}
		decision := ""
		if i < len(r.Rooms) {
			decision = describeDecision(r.Rooms[i])
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", room.DisplayName(), room.PeopleCount, lights, brightness, decision)
	}
	if err := tw.Flush(); err != nil {
		Logger.Debug().Msgf("console write failed: %v", err)
	}
}

func describeDecision(d agent.RoomDecision) string {
	var sb strings.Builder
	if d.On {
		sb.WriteString("on")
		if d.Brightness != nil {
			fmt.Fprintf(&sb, " %d%%", *d.Brightness)
		}
	} else {
		sb.WriteString("off")
	}
	fmt.Fprintf(&sb, " (%s)", d.Reason)
	return sb.String()
}

func (c *Console) renderActions(r agent.Report) {
	for _, a := range r.Actions {
		if a.Ok() {
			c.printf("  %s\n", a.String())
		} else {
			c.printf("  FAILED %s: %s\n", a.String(), a.Error)
		}
	}
}
