package kucoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"trading-assistant/pkg/exchanges/common"
)

const successCode = "200000"

// Config holds KuCoin credentials and endpoints.
type Config struct {
	APIKey         string
	APISecret      string
	APIPassphrase  string
	KeyVersion     int
	SpotBaseURL    string
	FuturesBaseURL string
	Timeout        time.Duration
}

// Client is a KuCoin REST client covering spot and futures.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	signer      Signer
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
	log         zerolog.Logger
}

// New builds a client. Missing credentials are not an error here; signed
// calls fail with common.ErrMissingCredentials instead.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.SpotBaseURL == "" {
		cfg.SpotBaseURL = "https://api.kucoin.com"
	}
	if cfg.FuturesBaseURL == "" {
		cfg.FuturesBaseURL = "https://api-futures.kucoin.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.KeyVersion == 0 {
		cfg.KeyVersion = 2
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
	c.timeSync = common.NewTimeSync(c.ServerTime, log)
	// Public REST quota: 2000 requests per 30s window until headers say otherwise.
	c.rateLimiter = common.NewRateLimiter(2000, log)
	c.signer = Signer{
		Key:        cfg.APIKey,
		Secret:     cfg.APISecret,
		Passphrase: cfg.APIPassphrase,
		KeyVersion: cfg.KeyVersion,
		Clock:      c.timeSync.Now,
	}
	return c
}

// HasCredentials reports whether signed endpoints can be called.
func (c *Client) HasCredentials() bool {
	return c.signer.Ready()
}

// StartTimeSync keeps the signing clock aligned with the exchange until ctx ends.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// RateLimitUsage exposes the last reported quota usage.
func (c *Client) RateLimitUsage() (used int, limit int, percentage float64) {
	return c.rateLimiter.GetUsage()
}

// ServerTime fetches the exchange clock in unix milliseconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	var ts int64
	if err := c.doPublic(ctx, common.MarketSpot, "/api/v1/timestamp", &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) baseURL(m common.MarketType) string {
	if m == common.MarketFutures {
		return c.cfg.FuturesBaseURL
	}
	return c.cfg.SpotBaseURL
}

func (c *Client) doPublic(ctx context.Context, m common.MarketType, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(m)+path, nil)
	if err != nil {
		return common.TransportError("GET "+path, err)
	}
	return c.do(req, path, out)
}

// doSigned signs and sends in one step so the timestamp stays fresh.
func (c *Client) doSigned(ctx context.Context, m common.MarketType, method, path string, payload any, out any) error {
	if !c.signer.Ready() {
		return common.ErrMissingCredentials
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL(m)+path, bytes.NewReader(body))
	if err != nil {
		return common.TransportError(method+" "+path, err)
	}
	signed := c.signer.Sign(method, path, string(body))
	signed.Apply(req)
	c.log.Debug().Object("request", signed).Msg("kucoin signed request")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	op := req.Method + " " + path
	res, err := c.httpClient.Do(req)
	if err != nil {
		return common.TransportError(op, err)
	}
	defer res.Body.Close()

	c.rateLimiter.UpdateFromHeaders(
		res.Header.Get("gw-ratelimit-limit"),
		res.Header.Get("gw-ratelimit-remaining"),
		res.Header.Get("gw-ratelimit-reset"),
	)

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return common.TransportError(op, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Code == "" {
		if err == nil {
			err = fmt.Errorf("status %d: missing response code", res.StatusCode)
		}
		return common.TransportError(op, err)
	}
	if env.Code != successCode {
		return &common.APIError{Code: env.Code, Message: env.Msg, HTTPStatus: res.StatusCode}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if dst, ok := out.(*json.RawMessage); ok {
		*dst = append((*dst)[:0], env.Data...)
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return common.TransportError(op, fmt.Errorf("decode data: %w", err))
	}
	return nil
}
