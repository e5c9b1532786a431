// Package agent decides the lighting of every room from a building snapshot
// and drives the fetch, decide, send loop against the simulator.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elijahnyp/light_agent/state"
	"github.com/elijahnyp/light_agent/util"
)

type StateFetcher interface {
	FetchState(ctx context.Context) (*state.BuildingState, error)
}

type CommandSender interface {
	SendCommand(ctx context.Context, cmd state.Command) error
}

// ActionResult is a planned command after it has been sent.
type ActionResult struct {
	PlannedCommand
	Error string `json:"error,omitempty"`
}

func (r ActionResult) Ok() bool {
	return r.Error == ""
}

// Report describes one cycle. State is nil when the fetch failed.
type Report struct {
	CycleID  string               `json:"cycle_id"`
	Time     time.Time            `json:"time"`
	State    *state.BuildingState `json:"state,omitempty"`
	Rooms    []RoomDecision       `json:"rooms"`
	Actions  []ActionResult       `json:"actions"`
	Error    string               `json:"error,omitempty"`
	Duration time.Duration        `json:"duration"`
}

func (r Report) Succeeded() int {
	n := 0
	for _, a := range r.Actions {
		if a.Ok() {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Actions) - r.Succeeded()
}

type Agent struct {
	fetcher   StateFetcher
	sender    CommandSender
	mu        sync.RWMutex
	settings  Settings
	listeners []func(Report)
	last      *Report
	now       func() time.Time
}

func New(fetcher StateFetcher, sender CommandSender, settings Settings) *Agent {
	return &Agent{
		fetcher:  fetcher,
		sender:   sender,
		settings: settings,
		now:      time.Now,
	}
}

func (a *Agent) Settings() Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// UpdateSettings takes effect from the next cycle.
func (a *Agent) UpdateSettings(s Settings) {
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	util.Logger.Info().Msgf("settings updated: interval=%v threshold=%.2f auto_brightness=%v brightness=%d..%d",
		s.PollInterval, s.DaylightThreshold, s.AutoBrightness, s.MinBrightness, s.MaxBrightness)
}

// AddListener registers a callback run after every cycle, on the loop
// goroutine. Listeners must not block.
func (a *Agent) AddListener(l func(Report)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *Agent) LastReport() (Report, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return Report{}, false
	}
	return *a.last, true
}

// RunCycle performs a single fetch, decide, send pass. Failures are logged
// and recorded in the report; nothing is retried.
func (a *Agent) RunCycle(ctx context.Context) Report {
	settings := a.Settings()
	start := a.now()
	report := Report{
		CycleID: uuid.NewString(),
		Time:    start,
		Rooms:   []RoomDecision{},
		Actions: []ActionResult{},
	}
	log := util.Logger.With().Str("cycle", report.CycleID).Logger()

	b, err := a.fetcher.FetchState(ctx)
	if err != nil {
		report.Error = err.Error()
		if ctx.Err() != nil {
			log.Debug().Msgf("fetch interrupted: %v", err)
		} else {
			log.Warn().Msgf("unable to fetch simulator state, skipping cycle: %v", err)
		}
		return a.finish(report, start)
	}
	report.State = b

	plan := Decide(b, settings)
	report.Rooms = plan.Rooms
	log.Trace().Msgf("daylight=%.3f outage=%v rooms=%d commands=%d",
		b.DaylightIntensity, b.PowerOutage, len(b.Rooms), len(plan.Commands))

	for _, pc := range plan.Commands {
		result := ActionResult{PlannedCommand: pc}
		if err := a.sender.SendCommand(ctx, pc.Command); err != nil {
			result.Error = err.Error()
			log.Error().Msgf("command %s failed: %v", pc.Command, err)
		} else {
			log.Info().Str("room", pc.RoomID).Msg(pc.String())
		}
		report.Actions = append(report.Actions, result)
	}
	return a.finish(report, start)
}

func (a *Agent) finish(report Report, start time.Time) Report {
	report.Duration = a.now().Sub(start)
	a.mu.Lock()
	a.last = &report
	listeners := append([]func(Report){}, a.listeners...)
	a.mu.Unlock()
	for _, l := range listeners {
		l(report)
	}
	return report
}

// Run loops until ctx is cancelled, sleeping the poll interval after every
// cycle whatever its outcome.
func (a *Agent) Run(ctx context.Context) error {
	util.Logger.Info().Msgf("light agent running, polling every %v", a.Settings().PollInterval)
	for {
		if ctx.Err() != nil {
			break
		}
		a.RunCycle(ctx)
		timer := time.NewTimer(a.Settings().PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	util.Logger.Info().Msg("light agent stopped")
	return nil
}
