package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// remoteResponse mirrors §6's remote-solver-service response contract.
type remoteResponse struct {
	Status         string             `json:"status"`
	ObjectiveValue float64            `json:"objectiveValue"`
	Columns        map[string]column  `json:"columns"`
	SolveTimeMs    int64              `json:"solveTimeMs"`
	Error          string             `json:"error"`
}

type column struct {
	Primal float64 `json:"Primal"`
}

// HTTPClient implements RemoteClient against the §6 remote solver service:
// a stateless HTTPS endpoint accepting the LP-format text as a
// text/plain body and returning the JSON contract above.
type HTTPClient struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPClient builds a remote solver client. timeout should match the
// wrapper's Config.RemoteTimeout (~5 minutes per §4.6).
func NewHTTPClient(url string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "solver.remote").Logger(),
	}
}

// RemoteResult is the raw remote-solver response translated just enough to
// be solver-agnostic; the wrapper resolves Columns into (account, rep)
// assignments via the Problem's reverse map, since the HTTP client itself
// has no knowledge of variable semantics.
type RemoteResult struct {
	Status      Status
	Objective   float64
	Columns     map[string]float64 // LP variable name -> primal value
	SolveTimeMs int64
	Error       string
}

// Solve posts lpText to the remote service and translates its response
// into a RemoteResult.
func (c *HTTPClient) Solve(ctx context.Context, lpText string) (RemoteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(lpText))
	if err != nil {
		return RemoteResult{}, fmt.Errorf("building remote solver request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("remote solver request failed")
		return RemoteResult{}, fmt.Errorf("remote solver request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteResult{}, fmt.Errorf("reading remote solver response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return RemoteResult{}, fmt.Errorf("remote solver returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return RemoteResult{}, fmt.Errorf("decoding remote solver response: %w", err)
	}

	if parsed.Error != "" {
		return RemoteResult{Status: StatusError, Error: parsed.Error}, nil
	}

	columns := make(map[string]float64, len(parsed.Columns))
	for name, col := range parsed.Columns {
		columns[name] = col.Primal
	}

	return RemoteResult{
		Status:      mapRemoteStatus(parsed.Status),
		Objective:   parsed.ObjectiveValue,
		Columns:     columns,
		SolveTimeMs: parsed.SolveTimeMs,
	}, nil
}

// mapRemoteStatus translates the remote service's status strings into the
// wrapper's Status enum, per §4.6.
func mapRemoteStatus(raw string) Status {
	switch raw {
	case "Optimal":
		return StatusOptimal
	case "Infeasible":
		return StatusInfeasible
	case "Time limit":
		return StatusTimeout
	default:
		return StatusError
	}
}
