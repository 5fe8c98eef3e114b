package realtime

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
)

func testEvent() *events.Event {
	return &events.Event{
		TransactionCode: "TXN-123",
		Status:          "shipped",
		PreviousStatus:  "funds_held",
		BuyerID:         "buyer_1",
		SellerID:        "seller_1",
	}
}

func TestSubscriptionFiltering(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"all events", Subscription{AllEvents: true}, true},
		{"matching code", Subscription{TransactionCodes: []string{"TXN-123"}}, true},
		{"other code", Subscription{TransactionCodes: []string{"TXN-999"}}, false},
		{"matching status", Subscription{Statuses: []string{"shipped", "delivered"}}, true},
		{"other status", Subscription{Statuses: []string{"completed"}}, false},
		{"buyer watches own deals", Subscription{UserIDs: []string{"buyer_1"}}, true},
		{"seller watches own deals", Subscription{UserIDs: []string{"seller_1"}}, true},
		{"stranger sees nothing", Subscription{UserIDs: []string{"buyer_9"}}, false},
		{"code and status must both match", Subscription{
			TransactionCodes: []string{"TXN-123"},
			Statuses:         []string{"completed"},
		}, false},
		{"empty filters match everything", Subscription{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{sub: tt.sub}
			assert.Equal(t, tt.want, c.wants(testEvent()))
		})
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	h := NewHub(slog.New(slog.DiscardHandler))

	// Nothing drains broadcast; overfilling it must drop, not block.
	for i := 0; i < 300; i++ {
		h.Emit(context.Background(), *testEvent())
	}
}

func TestStatsOnFreshHub(t *testing.T) {
	h := NewHub(slog.New(slog.DiscardHandler))

	stats := h.Stats()

	assert.Equal(t, 0, stats["connectedClients"])
	assert.Equal(t, int64(0), stats["totalClients"])
}
