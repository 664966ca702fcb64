package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Frozenguru/stk/config"
	"github.com/Frozenguru/stk/models"
	"github.com/Frozenguru/stk/telemetry"
)

const (
	oauthPath       = "/oauth/v1/generate?grant_type=client_credentials"
	processPath     = "/mpesa/stkpush/v1/processrequest"
	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"
)

// HTTPDoer issues outbound requests. Satisfied by *http.Client; tests
// substitute their own transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PushParams is the caller-supplied part of an STK push.
type PushParams struct {
	Phone       string
	Amount      int
	Reference   string
	Description string
}

// Client talks to the Daraja gateway for a single merchant shortcode.
// Every push fetches a fresh access token; tokens are never cached.
type Client struct {
	cfg  config.Config
	http HTTPDoer
	log  *zap.Logger
	now  func() time.Time
}

func NewClient(cfg config.Config, doer HTTPDoer, log *zap.Logger) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	return &Client{
		cfg:  cfg,
		http: doer,
		log:  log,
		now:  time.Now,
	}
}

// AccessToken fetches a short-lived bearer token from the OAuth endpoint.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("create access token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send access token request: %w", err)
	}
	defer resp.Body.Close()
	telemetry.GatewayLatency.WithLabelValues("token").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get access token: HTTP %d", resp.StatusCode)
	}

	var tokenResponse models.AccessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", fmt.Errorf("decode access token response: %w", err)
	}

	return tokenResponse.AccessToken, nil
}

// Timestamp returns the current UTC time as the 14-digit string Daraja
// expects. Sub-second precision is dropped, not rounded.
func (c *Client) Timestamp() string {
	return c.now().UTC().Format(timestampLayout)
}

// Password derives the request password from the shortcode, passkey and
// timestamp.
func (c *Client) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp))
}

// STKPush initiates a payment prompt on the customer's phone and returns
// the gateway's response body untouched so the caller can relay it.
func (c *Client) STKPush(ctx context.Context, p PushParams) ([]byte, error) {
	accessToken, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.Timestamp()
	stkRequest := models.STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.Password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            p.Amount,
		PartyA:            p.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       p.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  p.Reference,
		TransactionDesc:   p.Description,
	}

	jsonData, err := json.Marshal(stkRequest)
	if err != nil {
		return nil, fmt.Errorf("encode STK push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+processPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create STK push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send STK push: %w", err)
	}
	defer resp.Body.Close()
	telemetry.GatewayLatency.WithLabelValues("stkpush").Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read STK push response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("STK push rejected: HTTP %d: %s", resp.StatusCode, body)
	}

	var stkResponse models.STKPushResponse
	if err := json.Unmarshal(body, &stkResponse); err != nil {
		c.log.Warn("STK push response is not the expected shape", zap.Error(err))
	} else {
		c.log.Info("STK push accepted",
			zap.String("merchant_request_id", stkResponse.MerchantRequestID),
			zap.String("checkout_request_id", stkResponse.CheckoutRequestID),
		)
	}

	return body, nil
}
