package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client is a small convenience wrapper for submitting an InferenceRequest
// to a coordinator's HTTP surface and polling its status, the Go-idiomatic
// equivalent of the original source's client_helper.rs. It is an internal
// convenience for manual smoke testing, not the out-of-scope browser/
// WebSocket bridge.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client targeting baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: http.DefaultClient}
}

// SubmitRequest posts req to "<base>/requests" and returns the coordinator's
// acknowledgement.
func (c *Client) SubmitRequest(ctx context.Context, req InferenceRequest) (InferenceResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return InferenceResponse{}, fmt.Errorf("coordinator client: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/requests", bytes.NewReader(body))
	if err != nil {
		return InferenceResponse{}, fmt.Errorf("coordinator client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return InferenceResponse{}, fmt.Errorf("coordinator client: submit: %w", err)
	}
	defer resp.Body.Close()

	var out InferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return InferenceResponse{}, fmt.Errorf("coordinator client: decode response: %w", err)
	}
	return out, nil
}

// PollStatus fetches the in-flight PipelineState for requestID from
// "<base>/requests/<id>".
func (c *Client) PollStatus(ctx context.Context, requestID string) (PipelineState, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/requests/"+requestID, nil)
	if err != nil {
		return PipelineState{}, fmt.Errorf("coordinator client: build request: %w", err)
	}

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return PipelineState{}, fmt.Errorf("coordinator client: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return PipelineState{}, fmt.Errorf("coordinator client: request %s not found", requestID)
	}

	var state PipelineState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return PipelineState{}, fmt.Errorf("coordinator client: decode status: %w", err)
	}
	return state, nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
