package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "Tradyxa/pkg/kafka"
)

func TestSpotTicksHandlerMergesQuotes(t *testing.T) {
	docs := newMemDocs()
	docs.live = `{"spot_prices":{"TCS.NS":{"spot_price":4000,"change_percent":1}},"source":"feeder"}`
	h := NewSpotTicksHandler("tradyxa.spot", docs, nil, nil)
	h.now = clock
	ctx := context.Background()

	assert.Equal(t, "tradyxa.spot", h.Topic())
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"spot","symbol":"reliance","spot_price":2950,"change_percent":0.8,"timestamp":"2025-03-14T10:29:00Z"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"NIFTY","spot_price":22500}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"vix","vix":14.2}`)))

	doc := docs.liveDoc(t)
	price, pct, ok := doc.Quote("RELIANCE.NS")
	require.True(t, ok)
	assert.Equal(t, 2950.0, price)
	assert.Equal(t, 0.8, pct)
	assert.Equal(t, "2025-03-14T10:29:00Z", doc.SpotPrices["RELIANCE.NS"].Timestamp)

	price, pct, ok = doc.Quote("^NSEI")
	require.True(t, ok)
	assert.Equal(t, 22500.0, price)
	assert.Zero(t, pct)
	assert.Equal(t, fixedNow.Format(time.RFC3339), doc.SpotPrices["^NSEI"].Timestamp)

	_, _, ok = doc.Quote("TCS.NS")
	assert.True(t, ok, "existing quotes are kept")
	vix, ok := doc.VIXValue()
	require.True(t, ok)
	assert.Equal(t, 14.2, vix)
	assert.Contains(t, doc.Extra, "source")

	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"TCS","spot_price":4010,"timestamp":"1741948140000"}`)))
	assert.Equal(t, "2025-03-14T10:29:00Z", docs.liveDoc(t).SpotPrices["TCS.NS"].Timestamp, "unix millis are normalised")
}

func TestSpotTicksHandlerRejectsBadMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{name: "not json", msg: `spot,TCS,4000`},
		{name: "unknown type", msg: `{"type":"trade","symbol":"TCS","spot_price":1}`},
		{name: "missing symbol", msg: `{"type":"spot","spot_price":1}`},
		{name: "zero price", msg: `{"type":"spot","symbol":"TCS","spot_price":0}`},
		{name: "missing price", msg: `{"type":"spot","symbol":"TCS"}`},
		{name: "unsafe symbol", msg: `{"type":"spot","symbol":"../x","spot_price":1}`},
		{name: "negative vix", msg: `{"type":"vix","vix":-2}`},
		{name: "missing vix", msg: `{"type":"vix"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := newMemDocs()
			metrics := newCountingMetrics()
			h := NewSpotTicksHandler("spot", docs, metrics, nil)

			err := h.Handle(context.Background(), []byte(tt.msg))
			require.Error(t, err)
			var perm *pkgkafka.PermanentError
			assert.True(t, errors.As(err, &perm))
			assert.Equal(t, []string{"spot_message"}, metrics.malformed)
			assert.Empty(t, docs.live)
		})
	}
}
