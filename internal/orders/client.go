// Package orders pulls purchase-order lines from the ERP order feed.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shipmatch/internal"
	"shipmatch/internal/config"
	"shipmatch/internal/logging"
	"shipmatch/internal/util"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	log        *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type linesPayload struct {
	Lines      []map[string]any `json:"lines"`
	NextCursor *string          `json:"nextCursor"`
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.OrderTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.OrderRateLimitRPS),
		log:        logging.OrNop(log),
		sleep:      sleepCtx,
	}
}

// ListOrderLines follows the feed cursor until it is exhausted. A zero since
// fetches every open line.
func (c *Client) ListOrderLines(ctx context.Context, since time.Time) ([]internal.OrderLine, error) {
	all := make([]internal.OrderLine, 0)
	seen := map[string]struct{}{}
	var cursor string

	for {
		query := map[string]string{}
		if !since.IsZero() {
			query["updatedSince"] = since.UTC().Format(time.RFC3339)
		}
		if cursor != "" {
			query["cursor"] = cursor
		}

		body, err := c.fetchJSON(ctx, "orders/lines", query)
		if err != nil {
			return nil, err
		}

		var payload linesPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Lines {
			line, err := toOrderLine(raw)
			if err != nil {
				c.log.Debug("skipping order line", zap.Error(err))
				continue
			}
			all = append(all, line)
		}

		if payload.NextCursor == nil || *payload.NextCursor == "" || len(payload.Lines) == 0 {
			break
		}
		if _, ok := seen[*payload.NextCursor]; ok {
			break
		}
		seen[*payload.NextCursor] = struct{}{}
		cursor = *payload.NextCursor
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.OrderAPIToken) == "" {
		return nil, errors.New("missing ORDER_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.OrderAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	attempts := c.cfg.OrderMaxRetryAttempt
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.OrderAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < attempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				c.log.Warn("order feed retry", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
				if err := c.sleep(ctx, backoff); err != nil {
					return nil, err
				}
				lastErr = fmt.Errorf("order feed status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("order feed error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("order feed unsuccessful: %s %s", apiResp.Message, string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("order feed request failed")
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toOrderLine(raw map[string]any) (internal.OrderLine, error) {
	id := toString(raw["id"])
	if id == "" {
		return internal.OrderLine{}, errors.New("missing id")
	}
	qty, ok := toFloat(raw["orderedQty"])
	if !ok {
		return internal.OrderLine{}, fmt.Errorf("line %s: missing orderedQty", id)
	}

	rawJSON, _ := json.Marshal(raw)
	line := internal.OrderLine{
		LineID:    id,
		UpdatedAt: toString(raw["updatedAt"]),
		RawJSON:   string(rawJSON),
	}
	line.OrderedQty = qty
	line.Customer = toString(raw["customer"])
	line.CanonicalCustomer = util.NormalizeKeyPart(util.FirstNonEmpty(toString(raw["canonicalCustomer"]), line.Customer))
	line.CustomerPO = toString(raw["poNumber"])
	line.CustomerAltPO = toString(raw["altPoNumber"])
	line.Style = toString(raw["style"])
	line.PatternID = toString(raw["patternId"])
	line.Color = toString(raw["color"])
	line.Size = toString(raw["size"])
	line.AliasRelatedItem = toString(raw["relatedItem"])
	return line, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		if p := util.ParseQty(t); p != nil {
			return *p, true
		}
	}
	return 0, false
}
