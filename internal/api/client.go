package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/wms-platform/picker-terminal/internal/apperrors"
	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
)

// TokenSource supplies the bearer token for authenticated requests. An empty
// token omits the Authorization header (login is the only such call).
type TokenSource interface {
	Token() string
}

// Config holds API client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns sensible client defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Client is a typed wrapper around the picking backend's REST API. All calls
// run through a circuit breaker so a dead backend fails fast instead of
// stalling the picker on every action; application-level rejections (4xx) do
// not count as breaker failures.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// errBody is the backend's error response envelope
type errBody struct {
	Message string `json:"message"`
}

// NewClient creates a Client
func NewClient(config Config, tokens TokenSource, logger *logging.Logger) *Client {
	log := logger.WithComponent("api")

	settings := gobreaker.Settings{
		Name:    "picking-backend",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: config.Timeout},
		tokens:  tokens,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  log,
	}
}

// do executes one JSON request and decodes the response into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, apperrors.ErrInternal("building request").Wrap(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, apperrors.ErrTimeout(method + " " + path).Wrap(err)
			}
			return nil, apperrors.ErrServiceUnavailable("picking backend").Wrap(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperrors.ErrServiceUnavailable("picking backend").Wrap(err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, apperrors.NewAppError(apperrors.CodeServiceUnavailable,
				backendMessage(data, "backend error"), resp.StatusCode)
		}
		return &response{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperrors.ErrServiceUnavailable("picking backend").Wrap(err)
		}
		c.logger.WithError(err).Warn("Request failed", "method", method, "path", path)
		return err
	}

	resp := result.(*response)
	if resp.status >= http.StatusBadRequest {
		return c.statusError(resp)
	}

	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return apperrors.ErrInternal("decoding response").Wrap(err)
		}
	}
	return nil
}

type response struct {
	status int
	body   []byte
}

// statusError maps a 4xx response to an application error
func (c *Client) statusError(resp *response) error {
	switch resp.status {
	case http.StatusUnauthorized:
		return apperrors.ErrSessionExpired()
	case http.StatusNotFound:
		return apperrors.NewAppError(apperrors.CodeNotFound,
			backendMessage(resp.body, "resource not found"), resp.status)
	default:
		return apperrors.NewAppError(apperrors.CodeValidationError,
			backendMessage(resp.body, "request rejected"), resp.status)
	}
}

func backendMessage(body []byte, fallback string) string {
	var eb errBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	return fallback
}

// User identifies the logged-in picker
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoginResponse carries the session token issued for a PIN login
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login authenticates a picker by ID and PIN
func (c *Client) Login(ctx context.Context, pickerID, pin string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login/pin", map[string]string{
		"pickerId": pickerID,
		"pin":      pin,
	}, &resp)
	return resp, err
}

// Logout invalidates the session server-side
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// MyBatches fetches the batches assigned to the logged-in picker
func (c *Client) MyBatches(ctx context.Context) ([]domain.BatchSummary, error) {
	var batches []domain.BatchSummary
	err := c.do(ctx, http.MethodGet, "/batches/my-batches", nil, &batches)
	return batches, err
}

// BatchDetail fetches the full batch payload
func (c *Client) BatchDetail(ctx context.Context, batchID string) (domain.BatchDetail, error) {
	var detail domain.BatchDetail
	err := c.do(ctx, http.MethodGet, "/batches/"+batchID, nil, &detail)
	return detail, err
}

// StartBatch marks a batch in progress
func (c *Client) StartBatch(ctx context.Context, batchID string) error {
	return c.do(ctx, http.MethodPost, "/batches/"+batchID+"/start", nil, nil)
}

// CompleteBatch marks a batch complete
func (c *Client) CompleteBatch(ctx context.Context, batchID string) error {
	return c.do(ctx, http.MethodPost, "/batches/"+batchID+"/complete", nil, nil)
}

// toteResponse is the backend's tote assignment reply
type toteResponse struct {
	ToteBarcode string `json:"toteBarcode"`
}

// GetToteForOrder assigns or verifies a tote for an order and returns the
// barcode the backend recorded.
func (c *Client) GetToteForOrder(ctx context.Context, batchID, orderID, toteBarcode string) (string, error) {
	var resp toteResponse
	err := c.do(ctx, http.MethodPost, "/batches/"+batchID+"/orders/"+orderID+"/get-tote", map[string]string{
		"toteBarcode": toteBarcode,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ToteBarcode, nil
}

// itemStateResponse is the backend's authoritative item state after a
// pick or exception confirmation
type itemStateResponse struct {
	QuantityPicked int    `json:"quantityPicked"`
	Status         string `json:"status"`
}

func (r itemStateResponse) toDomain() domain.ItemState {
	return domain.ItemState{
		Picked: r.QuantityPicked,
		Status: domain.NormalizeItemStatus(r.Status),
	}
}

// ConfirmPick reports a picked quantity for a line item
func (c *Client) ConfirmPick(ctx context.Context, batchID, lineItemID string, quantity int, location, method string) (domain.ItemState, error) {
	var resp itemStateResponse
	err := c.do(ctx, http.MethodPost, "/batches/"+batchID+"/line-items/"+lineItemID+"/pick", map[string]any{
		"quantity": quantity,
		"location": location,
		"method":   method,
	}, &resp)
	if err != nil {
		return domain.ItemState{}, err
	}
	return resp.toDomain(), nil
}

// MarkOversized flags a line item as oversized stock
func (c *Client) MarkOversized(ctx context.Context, batchID, lineItemID, location string) (domain.ItemState, error) {
	var resp itemStateResponse
	err := c.do(ctx, http.MethodPost, "/batches/"+batchID+"/line-items/"+lineItemID+"/oversized", map[string]any{
		"location": location,
		"quantity": 1,
	}, &resp)
	if err != nil {
		return domain.ItemState{}, err
	}
	return resp.toDomain(), nil
}

// MarkNoneRemaining flags a line item as out of stock at the shelf
func (c *Client) MarkNoneRemaining(ctx context.Context, batchID, lineItemID, notes string) (domain.ItemState, error) {
	var resp itemStateResponse
	err := c.do(ctx, http.MethodPost, "/batches/"+batchID+"/line-items/"+lineItemID+"/none-remaining", map[string]string{
		"notes": notes,
	}, &resp)
	if err != nil {
		return domain.ItemState{}, err
	}
	return resp.toDomain(), nil
}

// ScanToteLocation confirms a tote's routing destination scan
func (c *Client) ScanToteLocation(ctx context.Context, batchID, toteBarcode, location string) error {
	return c.do(ctx, http.MethodPost, "/batches/"+batchID+"/totes/scan", map[string]string{
		"toteBarcode": toteBarcode,
		"location":    location,
	}, nil)
}
