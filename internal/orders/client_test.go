package orders

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"shipmatch/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg := config.Config{
		OrderAPIToken:        "test",
		OrderAPIBaseURL:      "https://erp.example.test/api/v2",
		OrderRateLimitRPS:    1000,
		OrderMaxRetryAttempt: 3,
	}
	client := NewClient(cfg, nil)
	client.httpClient = &http.Client{Transport: rt}
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func TestListOrderLinesWithRetryAndCursor(t *testing.T) {
	attempt := 0
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/v2/orders/lines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("updatedSince"); got != "2026-01-01T00:00:00Z" {
			t.Fatalf("updatedSince=%q", got)
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Fatalf("missing auth header")
		}
		attempt++
		switch attempt {
		case 1:
			return jsonResponse(http.StatusServiceUnavailable, map[string]any{"error": "busy"}), nil
		case 2:
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"lines": []map[string]any{
					{"id": "L1", "customer": "Acme Corp", "poNumber": "PO100", "style": "ABC", "color": "RED", "size": "M", "orderedQty": 10},
					{"id": "", "orderedQty": 1},
				},
				"nextCursor": "c2",
			}}), nil
		default:
			if r.URL.Query().Get("cursor") != "c2" {
				t.Fatalf("cursor=%q", r.URL.Query().Get("cursor"))
			}
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"lines": []map[string]any{
					{"id": 77, "canonicalCustomer": "bear", "altPoNumber": "ALT-1", "orderedQty": "1,500"},
				},
				"nextCursor": nil,
			}}), nil
		}
	})

	lines, err := client.ListOrderLines(context.Background(), since)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("len=%d", len(lines))
	}
	if lines[0].CanonicalCustomer != "ACME CORP" || lines[0].OrderedQty != 10 || lines[0].CustomerPO != "PO100" {
		t.Fatalf("line0=%+v", lines[0])
	}
	if lines[1].LineID != "77" || lines[1].CanonicalCustomer != "BEAR" || lines[1].OrderedQty != 1500 {
		t.Fatalf("line1=%+v", lines[1])
	}
}

func TestListOrderLinesNonRetryable(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusUnauthorized, map[string]any{"error": "denied"}), nil
	})

	_, err := client.ListOrderLines(context.Background(), time.Time{})
	if err == nil || !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestListOrderLinesRequiresToken(t *testing.T) {
	client := NewClient(config.Config{OrderAPIBaseURL: "https://erp.example.test"}, nil)
	if _, err := client.ListOrderLines(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected token error")
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected cancellation")
	}
}
