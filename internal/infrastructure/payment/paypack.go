package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"momo-checkout/internal/domain"
)

const DefaultPaypackURL = "https://payments.paypack.rw/api"

type PaypackConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// paypackGateway talks to the Paypack merchant API. Access tokens are
// cached and refreshed shortly before they expire.
type paypackGateway struct {
	cfg  PaypackConfig
	http *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewPaypackGateway(cfg PaypackConfig) PaymentGateway {
	return newPaypackGateway(cfg, &http.Client{Timeout: cfg.Timeout})
}

func newPaypackGateway(cfg PaypackConfig, client *http.Client) *paypackGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPaypackURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &paypackGateway{cfg: cfg, http: client, now: time.Now}
}

type authorizeResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Expires int64  `json:"expires"`
}

type cashInBody struct {
	Amount float64 `json:"amount"`
	Number string  `json:"number"`
}

type cashInResponse struct {
	Ref    string  `json:"ref"`
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
	Kind   string  `json:"kind"`
}

type eventsResponse struct {
	Transactions []Event `json:"transactions"`
	Offset       int     `json:"offset"`
	Limit        int     `json:"limit"`
	Total        int     `json:"total"`
}

func (g *paypackGateway) CashIn(ctx context.Context, req CashInRequest) (string, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return "", err
	}
	body := cashInBody{Amount: req.Amount.InexactFloat64(), Number: req.Number}
	headers := map[string]string{"X-Webhook-Mode": req.Environment}

	var out cashInResponse
	if err := g.do(ctx, "cashin", http.MethodPost, "/transactions/cashin", token, headers, body, &out); err != nil {
		return "", err
	}
	if out.Ref == "" {
		return "", &domain.GatewayError{Op: "cashin", Err: errors.New("response carried no transaction ref")}
	}
	return out.Ref, nil
}

func (g *paypackGateway) Events(ctx context.Context, offset, limit int) ([]Event, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var out eventsResponse
	if err := g.do(ctx, "events", http.MethodGet, "/events/transactions?"+q.Encode(), token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

func (g *paypackGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// refresh a little early so a token never expires mid-request
	if g.token != "" && g.now().Add(30*time.Second).Before(g.expiresAt) {
		return g.token, nil
	}

	body := map[string]string{
		"client_id":     g.cfg.ClientID,
		"client_secret": g.cfg.ClientSecret,
	}
	var out authorizeResponse
	if err := g.do(ctx, "authorize", http.MethodPost, "/auth/agents/authorize", "", nil, body, &out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", &domain.GatewayError{Op: "authorize", Err: errors.New("empty access token")}
	}
	g.token = out.Access
	g.expiresAt = time.Unix(out.Expires, 0)
	return g.token, nil
}

func (g *paypackGateway) do(ctx context.Context, op, method, path, token string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &domain.GatewayError{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := g.http.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return &domain.GatewayError{
			Op:         op,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("provider rejected request: %s", strings.TrimSpace(string(msg))),
		}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &domain.GatewayError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
