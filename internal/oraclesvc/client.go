package oraclesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jaskrrish/go-cascade/internal/cascade"
)

// RemoteOracle is a cascade.ParityOracle that asks a Server over HTTP. It
// never holds Alice's key; every query is a round trip. It satisfies the
// Open Question in spec.md about severing the oracle from Alice's full
// key by construction — there is no field here it could leak from.
type RemoteOracle struct {
	baseURL    string
	runID      uuid.UUID
	httpClient *http.Client
	calls      uint64
}

// NewRemoteOracle returns a RemoteOracle that talks to the Server
// listening at baseURL (e.g. "http://localhost:8090") about the run
// identified by runID, as printed by cascade-server on startup.
func NewRemoteOracle(baseURL string, runID uuid.UUID) *RemoteOracle {
	return &RemoteOracle{
		baseURL: baseURL,
		runID:   runID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CorrectRangeParity implements cascade.ParityOracle by POSTing to
// Server's run-scoped parity endpoint. The iteration number is read off
// the view's shuffle so the server can pick the matching registered
// permutation.
func (o *RemoteOracle) CorrectRangeParity(view *cascade.ShuffledView, startBitNr, endBitNr uint32) (uint8, error) {
	req := ParityRequest{
		CorrelationID: uuid.NewString(),
		IterationNr:   view.Shuffle().IterationNr(),
		StartBitNr:    startBitNr,
		EndBitNr:      endBitNr,
	}

	var resp ParityResponse
	url := fmt.Sprintf("%s/v1/oracle/runs/%s/parity", o.baseURL, o.runID)
	if err := o.postJSON(url, req, &resp); err != nil {
		return 0, err
	}

	o.calls++
	return resp.Parity, nil
}

// ReportCompletion tells the server that the reconciliation it is
// hosting finished, attaching the final Summary for later retrieval via
// the run status endpoint.
func (o *RemoteOracle) ReportCompletion(summary cascade.Summary) error {
	url := fmt.Sprintf("%s/v1/runs/%s/complete", o.baseURL, o.runID)
	return o.postJSON(url, completeRunRequest{Summary: summary}, nil)
}

// ReportFailure tells the server that the reconciliation it is hosting
// aborted with the given error.
func (o *RemoteOracle) ReportFailure(reconcileErr error) error {
	url := fmt.Sprintf("%s/v1/runs/%s/fail", o.baseURL, o.runID)
	return o.postJSON(url, failRunRequest{Error: reconcileErr.Error()}, nil)
}

// postJSON POSTs body as JSON to url and, if out is non-nil, decodes the
// response into it. A non-2xx response is turned into
// cascade.ErrOracleUnavailable wrapping the server's error message.
func (o *RemoteOracle) postJSON(url string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("oraclesvc: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.httpClient.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("oraclesvc: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", cascade.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%w: oracle returned %d: %s", cascade.ErrOracleUnavailable, resp.StatusCode, errResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oraclesvc: decode response: %w", err)
	}
	return nil
}

// CallCount implements cascade.ParityOracle.
func (o *RemoteOracle) CallCount() uint64 {
	return o.calls
}
