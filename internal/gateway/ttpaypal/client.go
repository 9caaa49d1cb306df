// internal/gateway/ttpaypal/client.go
package ttpaypal

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

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/config"
)

const (
	tokenPath  = "/wp-json/jwt-auth/v1/token"
	pluginPath = "/wp-json/ttpaypal/v1"
)

// Client talks to the TTPayPal WordPress plugin. Every call except Login
// carries the user's gateway JWT as a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

func NewClient(cfg config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		newBackOff: defaultBackOff,
	}
}

// WithBackOff replaces the retry policy used for idempotent reads.
func (c *Client) WithBackOff(fn func() backoff.BackOff) *Client {
	c.newBackOff = fn
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second
	return b
}

type LoginResponse struct {
	Token           string `json:"token"`
	UserEmail       string `json:"user_email"`
	UserNicename    string `json:"user_nicename"`
	UserDisplayName string `json:"user_display_name"`
}

type StatusResponse struct {
	Linked   bool            `json:"linked"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	WalletID string          `json:"wallet_id"`
	UserID   json.Number     `json:"user_id,omitempty"`
}

type LinkResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	WalletID string      `json:"wallet_id"`
	UserID   json.Number `json:"user_id,omitempty"`
}

type TransferRequest struct {
	Amount      decimal.Decimal
	Reference   string
	Description string
}

type TransferResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	TransactionID string          `json:"transaction_id"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

type Limits struct {
	PerTransaction decimal.Decimal `json:"per_transaction_limit"`
	Monthly        decimal.Decimal `json:"monthly_limit"`
	WalletMax      decimal.Decimal `json:"wallet_max"`
}

type transferPayload struct {
	Amount      json.Number `json:"amount"`
	Reference   string      `json:"reference"`
	Description string      `json:"description,omitempty"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, tokenPath, "", body, &out, false); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{StatusCode: http.StatusBadGateway, Code: "empty_token", Message: "gateway returned no token"}
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, token string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, pluginPath+"/status", token, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Link(ctx context.Context, token string, limeyUserID uuid.UUID) (*LinkResponse, error) {
	var out LinkResponse
	body := map[string]string{"limey_user_id": limeyUserID.String()}
	if err := c.do(ctx, http.MethodPost, pluginPath+"/link", token, body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit credits the user's external wallet.
func (c *Client) Deposit(ctx context.Context, token string, req TransferRequest) (*TransferResponse, error) {
	return c.transfer(ctx, token, "/deposit", req)
}

// Withdraw debits the user's external wallet.
func (c *Client) Withdraw(ctx context.Context, token string, req TransferRequest) (*TransferResponse, error) {
	return c.transfer(ctx, token, "/withdraw", req)
}

func (c *Client) transfer(ctx context.Context, token, path string, req TransferRequest) (*TransferResponse, error) {
	body := transferPayload{
		Amount:      json.Number(req.Amount.StringFixed(2)),
		Reference:   req.Reference,
		Description: req.Description,
	}

	var out TransferResponse
	if err := c.do(ctx, http.MethodPost, pluginPath+path, token, body, &out, false); err != nil {
		return nil, err
	}
	if !out.Success {
		message := out.Message
		if message == "" {
			message = "transaction declined"
		}
		return nil, &Error{StatusCode: http.StatusUnprocessableEntity, Code: "ttpaypal_declined", Message: message}
	}
	return &out, nil
}

func (c *Client) Unlink(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, pluginPath+"/unlink", token, struct{}{}, nil, false)
}

func (c *Client) UserLimits(ctx context.Context, token string) (*Limits, error) {
	var out Limits
	if err := c.do(ctx, http.MethodGet, pluginPath+"/user-limits", token, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request. Reads pass retry=true and are retried on 429 and
// 5xx responses; writes are sent exactly once.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}, retry bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to reach gateway: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read gateway response: %w", err))
		}

		if resp.StatusCode >= http.StatusBadRequest {
			gwErr := parseError(resp.StatusCode, respBody)
			if retryable(resp.StatusCode) {
				logrus.WithFields(logrus.Fields{
					"path":   path,
					"status": resp.StatusCode,
				}).Warn("Gateway request failed, retrying")
				return gwErr
			}
			return backoff.Permanent(gwErr)
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode gateway response: %w", err))
		}
		return nil
	}

	if !retry {
		err := operation()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
