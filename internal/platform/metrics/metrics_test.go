package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

var _ ports.OperationObserver = (*Collector)(nil)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	return string(body)
}

func TestCollectorCountsOperationsByOutcome(t *testing.T) {
	c := NewCollector()
	c.ObserveOperation("buy_item", "ok", 5*time.Millisecond)
	c.ObserveOperation("buy_item", "ok", 7*time.Millisecond)
	c.ObserveOperation("buy_item", "rejected", time.Millisecond)

	body := scrape(t, c)
	for _, series := range []string{
		`nftmarket_operations_total{operation="buy_item",outcome="ok"} 2`,
		`nftmarket_operations_total{operation="buy_item",outcome="rejected"} 1`,
		`nftmarket_operation_duration_seconds_count{operation="buy_item"} 3`,
	} {
		if !strings.Contains(body, series) {
			t.Fatalf("expected %q in metrics output", series)
		}
	}
}

func TestCollectorCountsDrops(t *testing.T) {
	c := NewCollector()
	c.ObserveDroppedEvent(entities.EventItemBought)
	c.ObserveBusDrop("marketplace.item_bought")
	c.ObserveBusDrop("marketplace.item_bought")

	body := scrape(t, c)
	for _, series := range []string{
		`nftmarket_events_dropped_total{kind="marketplace.item_bought"} 1`,
		`nftmarket_bus_dropped_total{topic="marketplace.item_bought"} 2`,
	} {
		if !strings.Contains(body, series) {
			t.Fatalf("expected %q in metrics output", series)
		}
	}
}

func TestCollectorsAreIsolated(t *testing.T) {
	first := NewCollector()
	second := NewCollector()
	first.ObserveOperation("list_item", "ok", time.Millisecond)

	if strings.Contains(scrape(t, second), `operation="list_item"`) {
		t.Fatal("expected samples to stay on their own registry")
	}
}
