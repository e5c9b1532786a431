package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/elijahnyp/light_agent/agent"
	. "github.com/elijahnyp/light_agent/util"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("light_agent", pflag.ContinueOnError)
	fs.StringP("url", "u", "http://localhost:8080", "simulator base URL")
	fs.Float64P("interval", "i", 0.5, "polling interval in seconds")
	fs.BoolP("quiet", "q", false, "only print actions, no status table")
	fs.Float64P("daylight-threshold", "d", 0.3, "daylight threshold (0.0-1.0)")
	fs.Bool("no-auto-brightness", false, "disable automatic brightness")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("config", "", "config file (default: search for light_agent.{yaml,json,toml})")
	return fs
}

var flagKeys = map[string]string{
	"simulator_url":      "url",
	"poll_interval":      "interval",
	"quiet":              "quiet",
	"daylight_threshold": "daylight-threshold",
	"log_level":          "log-level",
}

// bindFlags makes explicitly set flags override file and environment values.
func bindFlags(fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		if err := Config.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	if fs.Changed("no-auto-brightness") {
		disabled, err := fs.GetBool("no-auto-brightness")
		if err != nil {
			return err
		}
		Config.Set("auto_brightness", !disabled)
	}
	return nil
}

func settingsFromConfig() (agent.Settings, error) {
	s := agent.Settings{
		PollInterval:        Seconds("poll_interval"),
		DaylightThreshold:   Config.GetFloat64("daylight_threshold"),
		AutoBrightness:      Config.GetBool("auto_brightness"),
		MinBrightness:       Config.GetInt("min_brightness"),
		MaxBrightness:       Config.GetInt("max_brightness"),
		BrightnessTolerance: Config.GetInt("brightness_tolerance"),
	}
	return s, s.Validate()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "light_agent: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	LogInit("info")
	configFile, _ := fs.GetString("config")
	SetupConfig(configFile)
	if err := bindFlags(fs); err != nil {
		return err
	}
	LogInit(Config.GetString("log_level"))

	settings, err := settingsFromConfig()
	if err != nil {
		return err
	}

	// simulator url and timeout are read once; changing them needs a restart
	client := NewSimulatorClient(Config.GetString("simulator_url"), Seconds("http_timeout"))
	lightAgent := agent.New(client, client, settings)

	console := NewConsole(os.Stdout, Config.GetBool("quiet"), isatty.IsTerminal(os.Stdout.Fd()))
	console.PrintConfig(client.BaseURL(), settings)
	lightAgent.AddListener(console.Render)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := NewHub()
	go hub.Run(ctx)
	lightAgent.AddListener(hub.BroadcastReport)

	monitor := NewMonitorServer()
	NewWebHandlers(lightAgent, hub).Register(monitor)
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}

	publisher := NewReportPublisher()
	RegisterMQTTConnectHook("haadvertise", func(c MQTT.Client) {
		publisher.Readvertise()
	})
	if err := MqttInit(); err != nil {
		Logger.Error().Msgf("mqtt unavailable, continuing without it: %v", err)
	}
	lightAgent.AddListener(publisher.Publish)
	go publisher.Run(ctx)

	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		s, err := settingsFromConfig()
		if err != nil {
			Logger.Error().Msgf("ignoring new config: %v", err)
			return
		}
		lightAgent.UpdateSettings(s)
	})
	RegisterNewConfigListener(func() { console.SetQuiet(Config.GetBool("quiet")) })
	RegisterNewConfigListener(func() { monitor.Restart() })
	RegisterNewConfigListener(func() {
		if err := MqttInit(); err != nil {
			Logger.Error().Msgf("Error reconnecting mqtt: %v", err)
		}
	})

	Logger.Info().Msg("ready")
	err = lightAgent.Run(ctx)

	monitor.Shutdown(context.Background())
	MqttClose()
	return err
}
