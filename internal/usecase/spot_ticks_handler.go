package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/services/symbols"
	xhttp "Tradyxa/pkg/http"
	pkgkafka "Tradyxa/pkg/kafka"
	applogger "Tradyxa/pkg/logger"
	"Tradyxa/pkg/util"
)

var (
	errMissingSymbol = errors.New("spot message without symbol")
	errBadPrice      = errors.New("spot price must be positive")
	errBadVIX        = errors.New("vix must be positive")
)

// SpotTicksHandler folds spot and VIX updates from Kafka into the live
// document. Messages that can never be applied are marked permanent so the
// consumer routes them to the DLQ without retrying.
type SpotTicksHandler struct {
	topic   string
	docs    domrepo.DocumentStore
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

func NewSpotTicksHandler(topic string, docs domrepo.DocumentStore, metrics domrepo.Metrics, l *applogger.Logger) *SpotTicksHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SpotTicksHandler{topic: topic, docs: docs, metrics: metrics, l: l, now: time.Now}
}

func (h *SpotTicksHandler) Topic() string { return h.topic }

func (h *SpotTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m models.SpotMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordMalformed("spot_message")
		return pkgkafka.Permanent(fmt.Errorf("decode spot message: %w", err))
	}
	if err := validateSpot(ctx, &m); err != nil {
		h.metrics.RecordMalformed("spot_message")
		return pkgkafka.Permanent(err)
	}
	// RFC3339 or unix seconds/millis; anything else is stamped with now
	ts := util.ParseTimeDefault(m.Timestamp, h.now()).UTC().Format(time.RFC3339)

	start := time.Now()
	var key string
	err := h.docs.UpdateLive(ctx, func(doc *models.LiveDocument) {
		switch m.Type {
		case models.SpotTypeVIX:
			key = "india_vix"
			doc.SetVIX(*m.VIX, ts)
		default:
			key = symbols.LiveSymbol(m.Symbol)
			var pct float64
			if m.ChangePercent != nil {
				pct = *m.ChangePercent
			}
			doc.SetQuote(key, *m.SpotPrice, pct, ts)
		}
	})
	h.metrics.RecordLatency("live_update", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("live_update")
		return fmt.Errorf("update live document: %w", err)
	}
	h.l.Debug("live document updated", applogger.String("type", m.Type), applogger.String("key", key))
	return nil
}

func validateSpot(ctx context.Context, m *models.SpotMessage) error {
	if err := xhttp.ValidateStruct(ctx, m); err != nil {
		return fmt.Errorf("invalid spot message: %w", err)
	}
	switch m.Type {
	case models.SpotTypeVIX:
		if m.VIX == nil || *m.VIX <= 0 {
			return errBadVIX
		}
	default:
		if symbols.Canonical(m.Symbol) == "" {
			return errMissingSymbol
		}
		if !symbols.Valid(symbols.LiveSymbol(m.Symbol)) {
			return fmt.Errorf("invalid spot symbol %q", m.Symbol)
		}
		if m.SpotPrice == nil || *m.SpotPrice <= 0 {
			return errBadPrice
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SpotTicksHandler)(nil)
