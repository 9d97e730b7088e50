package remote

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

	"bakerybms/client/internal/domain"
)

// Client mirrors ledger mutations to the backend. Every call classifies
// its failure as either a ConnectivityError (no response) or an
// ApplicationError (error response), which is the signal the offline
// reconciliation policy keys on.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

func New(baseURL string, session *Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		session: session,
	}
}

func (c *Client) do(ctx context.Context, method string, path string, in any) (*http.Response, error) {
	op := method + " " + path

	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	if c.session != nil && c.session.ExpiringSoon() {
		// Best effort: a failed proactive refresh falls through to the
		// 401-triggered path below.
		_ = c.session.Refresh(ctx)
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, &ConnectivityError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
		_ = resp.Body.Close()
		if err := c.session.Refresh(ctx); err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, method, path, payload)
		if err != nil {
			return nil, &ConnectivityError{Op: op, Err: err}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			defer resp.Body.Close()
			c.session.Logout()
			return nil, &ApplicationError{Status: resp.StatusCode, Message: "authorization failed after refresh"}
		}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, &ApplicationError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method string, path string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.http.Do(req)
}

// errorMessage pulls the server-provided message out of an error response
// body of the form {"error": "..."}.
func errorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return ""
	}
	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Error != "" {
			return decoded.Error
		}
		if decoded.Message != "" {
			return decoded.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// record decodes the response body into T when the server supplied one.
// A 204 or empty body yields nil, meaning "no authoritative record".
func record[T any](resp *http.Response) (*T, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	resp, err := c.do(ctx, http.MethodPost, "/products", p)
	if err != nil {
		return nil, err
	}
	return record[domain.Product](resp)
}

func (c *Client) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	resp, err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), patch)
	if err != nil {
		return nil, err
	}
	return record[domain.Product](resp)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *Client) CreateIngredient(ctx context.Context, ing domain.Ingredient) (*domain.Ingredient, error) {
	resp, err := c.do(ctx, http.MethodPost, "/ingredients", ing)
	if err != nil {
		return nil, err
	}
	return record[domain.Ingredient](resp)
}

func (c *Client) UpdateIngredient(ctx context.Context, id string, patch domain.IngredientPatch) (*domain.Ingredient, error) {
	resp, err := c.do(ctx, http.MethodPut, "/ingredients/"+url.PathEscape(id), patch)
	if err != nil {
		return nil, err
	}
	return record[domain.Ingredient](resp)
}

func (c *Client) DeleteIngredient(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/ingredients/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *Client) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	resp, err := c.do(ctx, http.MethodPost, "/sales", sale)
	if err != nil {
		return nil, err
	}
	return record[domain.Sale](resp)
}

func (c *Client) CreateExpense(ctx context.Context, e domain.Expense) (*domain.Expense, error) {
	resp, err := c.do(ctx, http.MethodPost, "/expenses", e)
	if err != nil {
		return nil, err
	}
	return record[domain.Expense](resp)
}

func (c *Client) SaveSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	resp, err := c.do(ctx, http.MethodPut, "/settings", settings)
	if err != nil {
		return nil, err
	}
	return record[domain.Settings](resp)
}

// FetchDashboard pulls the backend's aggregate view of the full entity
// set, used to seed a fresh device.
func (c *Client) FetchDashboard(ctx context.Context) (*domain.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/reports/dashboard", nil)
	if err != nil {
		return nil, err
	}
	return record[domain.Snapshot](resp)
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return err
}
