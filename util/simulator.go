package util

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elijahnyp/light_agent/state"
)

const (
	StatePath   = "/api/state"
	ControlPath = "/api/lights/control"
)

// ErrUnexpectedStatus is wrapped by errors for non-2xx simulator replies.
var ErrUnexpectedStatus = errors.New("unexpected status from simulator")

// SimulatorClient talks to the building simulator's REST API.
type SimulatorClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSimulatorClient(baseURL string, timeout time.Duration) *SimulatorClient {
	return &SimulatorClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *SimulatorClient) BaseURL() string {
	return c.baseURL
}

func closeBody(resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		Logger.Warn().Msgf("Error closing response body: %v", closeErr)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode > 299 || resp.StatusCode < 200 {
		// drain a little of the body for the log line
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// FetchState retrieves and validates the current building snapshot.
func (c *SimulatorClient) FetchState(ctx context.Context) (*state.BuildingState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+StatePath, nil)
	if err != nil {
		return nil, fmt.Errorf("building state request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching state: %w", err)
	}
	defer closeBody(resp)
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("fetching state: %w", err)
	}
	s, err := state.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetching state: %w", err)
	}
	for _, w := range s.Warnings {
		Logger.Debug().Msg(w)
	}
	return s, nil
}

// SendCommand posts a single light command.
func (c *SimulatorClient) SendCommand(ctx context.Context, cmd state.Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command for %s: %w", cmd.LightID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ControlPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building control request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending command for %s: %w", cmd.LightID, err)
	}
	defer closeBody(resp)
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("sending command for %s: %w", cmd.LightID, err)
	}
	// body is not interesting, but drain it so the connection can be reused
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		Logger.Debug().Msgf("Error draining control response: %v", err)
	}
	return nil
}
