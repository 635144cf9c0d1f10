package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/infra/logger"
)

// Config defines the connection parameters for the cloud API.
type Config struct {
	BaseURL        string `json:"base_url"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://aldesiotsuite-aldeswebapi.azurewebsites.net"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("cloud: username and password are required")
	}
	return nil
}

// Product is the device record returned by the products endpoint. The four
// week planning lists hold the raw schedule entries for program slots A-D.
type Product struct {
	Modem        string    `json:"modem"`
	Reference    string    `json:"reference"`
	SerialNumber string    `json:"serial_number"`
	Indicator    Indicator `json:"indicator"`
}

// Indicator carries the schedule-related attributes of a product.
type Indicator struct {
	WeekPlanning  []schedule.Entry `json:"week_planning"`
	WeekPlanning2 []schedule.Entry `json:"week_planning2"`
	WeekPlanning3 []schedule.Entry `json:"week_planning3"`
	WeekPlanning4 []schedule.Entry `json:"week_planning4"`
}

// Planning returns the raw entries for the given program slot letter.
func (p Product) Planning(program string) []schedule.Entry {
	switch strings.ToUpper(program) {
	case "A":
		return p.Indicator.WeekPlanning
	case "B":
		return p.Indicator.WeekPlanning2
	case "C":
		return p.Indicator.WeekPlanning3
	case "D":
		return p.Indicator.WeekPlanning4
	default:
		return nil
	}
}

// StatPoint is a single sample from the statistics endpoint.
type StatPoint struct {
	Date           string  `json:"date"`
	ConsumptionKWh float64 `json:"consumption_kwh"`
}

// Client talks to the manufacturer cloud. It authenticates with a password
// grant, re-authenticates transparently on 401 responses and keeps the last
// successful GET payloads as an emergency cache used when a request fails.
type Client struct {
	cfg  Config
	http *http.Client
	log  logger.Logger

	mu    sync.Mutex
	token string
	cache map[string][]byte
}

// NewClient creates a Client from the configuration. No network call is made
// until the first request.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:   logger.New("cloud_client"),
		cache: make(map[string][]byte),
	}, nil
}

// Authenticate retrieves an access token. It is also called automatically
// when a request is rejected with 401.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: authentication request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloud: authentication failed with status %d", resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("cloud: decode token response: %w", err)
	}
	c.mu.Lock()
	c.token = body.AccessToken
	c.mu.Unlock()
	c.log.Infof("authenticated with cloud API")
	return nil
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return "Bearer " + c.token
}

// request executes one HTTP call with the auth interceptor: a 401 triggers a
// re-authentication and a single replay.
func (c *Client) request(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	do := func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.bearer())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.http.Do(req)
	}

	resp, err := do()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		resp, err = do()
		if err != nil {
			return nil, err
		}
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloud: %s %s failed with status %d", method, path, resp.StatusCode)
	}
	return data, nil
}

// do wraps request with exponential backoff. Successful GET payloads are
// cached; when every attempt fails the cached payload, regardless of age, is
// returned as a degraded fallback.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var data []byte
	op := func() error {
		var err error
		data, err = c.request(ctx, method, path, payload)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)), ctx)
	err := backoff.Retry(op, bo)
	cacheKey := method + ":" + path
	if err != nil {
		c.mu.Lock()
		cached, ok := c.cache[cacheKey]
		c.mu.Unlock()
		if ok && method == http.MethodGet {
			c.log.Warnf("using cached response for %s after error: %v", path, err)
			return cached, nil
		}
		return nil, err
	}
	if method == http.MethodGet {
		c.mu.Lock()
		c.cache[cacheKey] = data
		c.mu.Unlock()
	}
	return data, nil
}

const productsPath = "/aldesoc/v5/users/me/products"

// FetchData retrieves the first product of the account, which carries the
// planning attributes the schedule store hydrates from. A missing product is
// reported as an error, not a panic.
func (c *Client) FetchData(ctx context.Context) (*Product, error) {
	data, err := c.do(ctx, http.MethodGet, productsPath, nil)
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("cloud: decode products: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("cloud: no products for account")
	}
	return &products[0], nil
}

// SendCommand posts a JSON-RPC command to the device.
func (c *Client) SendCommand(ctx context.Context, modem, method string, id int, param string) error {
	payload, err := json.Marshal(struct {
		JSONRPC string   `json:"jsonrpc"`
		Method  string   `json:"method"`
		ID      int      `json:"id"`
		Params  []string `json:"params"`
	}{JSONRPC: "2.0", Method: method, ID: id, Params: []string{param}})
	if err != nil {
		return err
	}
	c.log.Infof("sending command %s to modem %s", method, modem)
	_, err = c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/commands", productsPath, modem), payload)
	return err
}

// ChangeWeekPlanning replaces one program slot of the device with the encoded
// 504-character schedule. program selects the slot via the command name
// changePlanningMode{A..D}.
func (c *Client) ChangeWeekPlanning(ctx context.Context, modem, encoded, program string) error {
	if len(encoded) != schedule.EncodedLen {
		return fmt.Errorf("cloud: encoded schedule must be %d characters, got %d", schedule.EncodedLen, len(encoded))
	}
	return c.SendCommand(ctx, modem, "changePlanningMode"+strings.ToUpper(program), 1, encoded)
}

// Statistics returns consumption samples between two dates in the cloud date
// format yyyyMMddHHmmssZ. Granularity is day, week or month.
func (c *Client) Statistics(ctx context.Context, modem, start, end, granularity string) ([]StatPoint, error) {
	path := fmt.Sprintf("%s/%s/statistics/%s/%s/%s", productsPath, modem, start, end, granularity)
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var points []StatPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("cloud: decode statistics: %w", err)
	}
	return points, nil
}

// ScheduleApplier adapts the cloud client to the submission controller's
// Applier interface. Modem maps an entity identifier to the modem the cloud
// addresses commands to.
type ScheduleApplier struct {
	Client *Client
	Modem  func(entityID string) string
}

// Apply pushes the encoded schedule to the program slot of the entity's
// device.
func (a ScheduleApplier) Apply(ctx context.Context, target, encoded, program string) error {
	modem := target
	if a.Modem != nil {
		modem = a.Modem(target)
	}
	return a.Client.ChangeWeekPlanning(ctx, modem, encoded, program)
}
