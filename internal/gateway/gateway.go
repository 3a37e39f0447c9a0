// Package gateway posts filing responses to the originating application's
// REST rule gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Lllllllleong/efilingbridge/internal/models"
)

// RuleCode is the gateway rule that consumes review filing responses.
const RuleCode = "Interface_OFS_ProcessReviewFilingResponseMessages"

const paramName = "rfResponseJson"

// Config locates the gateway and its credentials.
type Config struct {
	URL         string
	HealthURL   string
	Login       string
	Password    string
	CheckHealth bool
	Timeout     time.Duration
}

// Client sends FilingResponses to the gateway.
type Client struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

// Reply is the gateway's business answer nested inside its rule response.
type Reply struct {
	Code           string
	Status         string
	ClientMessages []string
	ServerMessages []string
}

// Accepted reports whether the gateway processed the response.
func (r Reply) Accepted() bool { return r.Code == "200" }

type param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ruleRequest struct {
	RuleCode    string `json:"ruleCode"`
	InputParams struct {
		Params []param `json:"params"`
	} `json:"inputParams"`
}

type ruleResponse struct {
	Params []param `json:"params"`
}

type interfaceResponse struct {
	EResponse struct {
		Code    string `json:"code"`
		Status  string `json:"status"`
		Message struct {
			Client []string `json:"client"`
			Server []string `json:"server"`
		} `json:"message"`
	} `json:"eResponse"`
}

// NewClient builds a gateway client. The timeout defaults to 30 seconds.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("gateway URL must be set")
	}
	if config.CheckHealth && config.HealthURL == "" {
		return nil, fmt.Errorf("gateway health URL must be set when health checks are enabled")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: config.Timeout},
		config: config,
		logger: logger,
	}, nil
}

// Envelope encodes resp the way the gateway rule expects it: a single
// parameter whose value is the JSON text {"rfResponse": resp}.
func Envelope(resp models.FilingResponse) ([]byte, error) {
	inner, err := marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filing response: %w", err)
	}
	wrapped, err := marshal(map[string]json.RawMessage{"rfResponse": inner})
	if err != nil {
		return nil, fmt.Errorf("failed to encode filing response wrapper: %w", err)
	}
	var req ruleRequest
	req.RuleCode = RuleCode
	req.InputParams.Params = []param{{Name: paramName, Value: string(wrapped)}}
	return marshal(req)
}

// Send posts resp and decodes the gateway's nested reply. An error means the
// response was not delivered; a delivered response can still be rejected,
// which the caller learns from Reply.Accepted.
func (c *Client) Send(ctx context.Context, resp models.FilingResponse) (Reply, error) {
	payload, err := Envelope(resp)
	if err != nil {
		return Reply{}, err
	}
	if c.config.CheckHealth {
		status, err := c.Health(ctx)
		if err != nil {
			return Reply{}, err
		}
		c.logger.Info("Gateway health status.", "status", status)
	}

	body, err := c.do(ctx, http.MethodPost, c.config.URL, payload)
	if err != nil {
		return Reply{}, err
	}
	return decodeReply(body)
}

// Health calls the gateway status endpoint and returns its body.
func (c *Client) Health(ctx context.Context) (string, error) {
	if c.config.HealthURL == "" {
		return "", fmt.Errorf("gateway health URL is not configured")
	}
	body, err := c.do(ctx, http.MethodGet, c.config.HealthURL, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, models.Wrap(models.KindTransport, "gateway", err)
	}
	req.SetBasicAuth(c.config.Login, c.config.Password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.Wrap(models.KindTransport, "gateway", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.Wrap(models.KindTransport, "gateway", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.Errorf(models.KindTransport, "gateway", "API call failed with status code: %d", resp.StatusCode)
	}
	return body, nil
}

func decodeReply(body []byte) (Reply, error) {
	var rule ruleResponse
	if err := json.Unmarshal(body, &rule); err != nil {
		return Reply{}, models.Wrap(models.KindValidation, "gateway", fmt.Errorf("failed to decode rule response: %w", err))
	}
	if len(rule.Params) == 0 {
		return Reply{}, nil
	}
	var inner interfaceResponse
	if err := json.Unmarshal([]byte(rule.Params[0].Value), &inner); err != nil {
		return Reply{}, models.Wrap(models.KindValidation, "gateway", fmt.Errorf("failed to decode interface response: %w", err))
	}
	return Reply{
		Code:           inner.EResponse.Code,
		Status:         inner.EResponse.Status,
		ClientMessages: inner.EResponse.Message.Client,
		ServerMessages: inner.EResponse.Message.Server,
	}, nil
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
