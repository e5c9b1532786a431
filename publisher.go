package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/elijahnyp/light_agent/agent"
	"github.com/elijahnyp/light_agent/state"
	. "github.com/elijahnyp/light_agent/util"
)

const (
	readvertiseInterval = 5 * time.Minute
	reportQueueSize     = 4
)

type cycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	Time       time.Time `json:"time"`
	Error      string    `json:"error,omitempty"`
	Actions    int       `json:"actions"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	DurationMs int64     `json:"duration_ms"`
}

// ReportPublisher mirrors every cycle onto MQTT: a summary per cycle plus
// retained outage, room and light state that is only resent on change.
// Reports are queued by Publish and sent from Run.
type ReportPublisher struct {
	reports chan agent.Report

	mu         sync.Mutex
	sent       map[string]string
	advertised map[string]bool
	building   *state.BuildingState

	publish   func(topic string, retained bool, payload interface{}) error
	connected func() bool
	advertise func(b *state.BuildingState)
}

func NewReportPublisher() *ReportPublisher {
	return &ReportPublisher{
		reports:    make(chan agent.Report, reportQueueSize),
		sent:       make(map[string]string),
		advertised: make(map[string]bool),
		publish:    Publish,
		connected:  MQTTConnected,
		advertise: func(b *state.BuildingState) {
			AdvertiseHA(b, Client)
		},
	}
}

func onOff(on bool) string {
	if on {
		return string(state.ON)
	}
	return string(state.OFF)
}

// Publish is an agent listener. It never blocks: when Run falls behind the
// oldest queued report is dropped.
func (p *ReportPublisher) Publish(r agent.Report) {
	for {
		select {
		case p.reports <- r:
			return
		default:
		}
		select {
		case dropped := <-p.reports:
			Logger.Debug().Msgf("mqtt publisher behind, dropping cycle %s", dropped.CycleID)
		default:
		}
	}
}

// lightStates is what each light is after the cycle: the observed state,
// replaced by the commanded one only where the command went through.
func lightStates(r agent.Report) map[string]state.LightState {
	states := make(map[string]state.LightState)
	for _, room := range r.State.Rooms {
		for _, l := range room.Lights {
			states[l.ID] = l.State
		}
	}
	for _, a := range r.Actions {
		if a.Ok() {
			states[a.Command.LightID] = a.Command.State
		}
	}
	return states
}

func (p *ReportPublisher) publishReport(r agent.Report) {
	if !p.connected() {
		return
	}
	summary := cycleSummary{
		CycleID:    r.CycleID,
		Time:       r.Time,
		Error:      r.Error,
		Actions:    len(r.Actions),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		DurationMs: r.Duration.Milliseconds(),
	}
	if data, err := json.Marshal(summary); err == nil {
		if err := p.publish(CycleTopic(), false, data); err != nil {
			Logger.Warn().Msgf("Error publishing cycle summary: %v", err)
		}
	}
	if r.State == nil {
		return
	}

	p.mu.Lock()
	p.building = r.State
	newLights := false
	for _, room := range r.State.Rooms {
		for _, l := range room.Lights {
			if !p.advertised[l.ID] {
				p.advertised[l.ID] = true
				newLights = true
			}
		}
	}
	p.mu.Unlock()
	if newLights {
		Logger.Debug().Msg("new lights seen, advertising to home assistant")
		p.advertise(r.State)
	}

	p.publishChanged(PowerOutageTopic(), onOff(r.State.PowerOutage))
	lights := lightStates(r)
	for i, room := range r.State.Rooms {
		if i < len(r.Rooms) {
			if data, err := json.Marshal(r.Rooms[i]); err == nil {
				p.publishChanged(RoomStateTopic(room.ID), string(data))
			}
		}
		for _, l := range room.Lights {
			p.publishChanged(LightStateTopic(room.ID, l.ID), string(lights[l.ID]))
		}
	}
}

func (p *ReportPublisher) publishChanged(topic, payload string) {
	p.mu.Lock()
	if p.sent[topic] == payload {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if err := p.publish(topic, true, payload); err != nil {
		Logger.Warn().Msgf("Error publishing %s: %v", topic, err)
		return
	}
	p.mu.Lock()
	p.sent[topic] = payload
	p.mu.Unlock()
}

// Readvertise resends discovery for the last known building and forgets what
// was published so the next cycle resends all retained state.
func (p *ReportPublisher) Readvertise() {
	p.mu.Lock()
	b := p.building
	p.sent = make(map[string]string)
	p.mu.Unlock()
	if b == nil || !p.connected() {
		return
	}
	Logger.Debug().Msg("Advertising Home Assistant discovery messages")
	p.advertise(b)
}

func (p *ReportPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(readvertiseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-p.reports:
			p.publishReport(r)
		case <-ticker.C:
			p.Readvertise()
		}
	}
}
