// Package sioma is the client for the SIOMA platform API: the finca/lote
// catalog consumed by validation runs and the submit endpoint that receives
// validated spots.
package sioma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sioma/spot-ingest/internal/pkg/httpretry"
	"github.com/sioma/spot-ingest/internal/spots"
)

const DefaultTimeout = 30 * time.Second

// Client talks to the SIOMA REST API with bearer-token auth and retries.
type Client struct {
	baseURL    string
	token      string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a SIOMA API client. A nil doer gets the default
// retrying client with a 30s timeout.
func NewClient(baseURL, token string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.New(&http.Client{Timeout: DefaultTimeout}, 3)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: doer,
	}
}

// Finca is one plantation from the catalog.
type Finca struct {
	ID     json.Number `json:"id"`
	Nombre string      `json:"nombre"`
}

// wireLote matches the catalog payload; ids may arrive as numbers.
type wireLote struct {
	ID     json.Number `json:"id"`
	Nombre string      `json:"nombre"`
	Sigla  string      `json:"sigla"`
}

// Fincas returns the plantations visible to the configured token.
func (c *Client) Fincas(ctx context.Context) ([]Finca, error) {
	var fincas []Finca
	if err := c.get(ctx, "/fincas", nil, &fincas); err != nil {
		return nil, fmt.Errorf("fetch fincas: %w", err)
	}
	return fincas, nil
}

// Lotes returns the lote catalog, optionally scoped to one finca. The
// result order is the upstream order; callers treat it as read-only for the
// duration of a validation run.
func (c *Client) Lotes(ctx context.Context, fincaID string) ([]spots.Lote, error) {
	params := url.Values{}
	if fincaID != "" {
		params.Set("finca_id", fincaID)
	}

	var wire []wireLote
	if err := c.get(ctx, "/lotes", params, &wire); err != nil {
		return nil, fmt.Errorf("fetch lotes: %w", err)
	}

	lotes := make([]spots.Lote, len(wire))
	for i, l := range wire {
		lotes[i] = spots.Lote{ID: l.ID.String(), Nombre: l.Nombre, Sigla: l.Sigla}
	}
	return lotes, nil
}

// Submit uploads validated spots and returns the upstream response body.
func (c *Client) Submit(ctx context.Context, rows []spots.CleanedRow) (map[string]any, error) {
	payload, err := json.Marshal(map[string]any{"data": rows})
	if err != nil {
		return nil, fmt.Errorf("encode submit payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	var response map[string]any
	if err := c.do(req, &response); err != nil {
		return nil, fmt.Errorf("submit to sioma: %w", err)
	}
	return response, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, target any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	return c.do(req, target)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sioma API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
