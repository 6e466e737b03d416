package vmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPClient is a [Client] talking to VM API over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPClient creates a client for a VM API rooted at baseURL.
// A nil client means [http.DefaultClient].
func NewHTTPClient(baseURL string, client *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid VM API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid VM API URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPClient{
		baseURL: u,
		client:  client,
	}, nil
}

// ListVms calls `GET /vms` once. Any failure to get a well-formed answer is reported as [ErrUnavailable].
func (c *HTTPClient) ListVms(ctx context.Context, query ListVmsInput) ([]Vm, error) {
	values, err := query.Values()
	if err != nil {
		return nil, err
	}

	target := c.baseURL.JoinPath("vms")
	target.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list VMs returned %v", ErrUnavailable, resp.Status)
	}

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode VM list: %w", ErrUnavailable, err)
	}

	vms := make([]Vm, 0, len(records))
	for _, record := range records {
		vms = append(vms, decodeVm(record))
	}

	return vms, nil
}

// decodeVm decodes a single record as far as it can.
// A record with values of unexpected types is returned with [Vm.Malformed] set rather than dropped.
func decodeVm(record json.RawMessage) Vm {
	var vm Vm
	if err := json.Unmarshal(record, &vm); err != nil {
		vm.Malformed = err.Error()
	}

	return vm
}
