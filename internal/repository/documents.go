package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"

	domrepo "Tradyxa/internal/domain/repository"
	applogger "Tradyxa/pkg/logger"
)

const (
	tickerDir      = "ticker"
	slippageSuffix = "_slippage"

	kindTicker   = "ticker"
	kindSlippage = "slippage"
	kindLive     = "live"
)

// Option configures a document store.
type Option func(*decoder)

func WithLogger(l *applogger.Logger) Option {
	return func(d *decoder) {
		if l != nil {
			d.l = l
		}
	}
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(d *decoder) {
		if m != nil {
			d.metrics = m
		}
	}
}

// decoder turns raw document bytes into models. Content that is empty, not
// a JSON object or otherwise unparseable is logged and reported as absent.
type decoder struct {
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func newDecoder(opts []Option) decoder {
	d := decoder{l: applogger.Nop(), metrics: domrepo.NopMetrics{}}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d decoder) decode(data []byte, kind, name string, dest interface{}) bool {
	trimmed := bytes.TrimSpace(data)
	var err error
	switch {
	case len(trimmed) == 0:
		err = fmt.Errorf("empty document")
	case trimmed[0] != '{':
		err = fmt.Errorf("document is not a JSON object")
	default:
		err = json.Unmarshal(trimmed, dest)
	}
	if err != nil {
		d.l.Warn("malformed document ignored",
			applogger.String("kind", kind),
			applogger.String("name", name),
			applogger.Error(err),
		)
		d.metrics.RecordMalformed(kind)
		return false
	}
	return true
}

func (d decoder) unreadable(kind, name string, err error) {
	d.l.Warn("document unreadable, treated as absent",
		applogger.String("kind", kind),
		applogger.String("name", name),
		applogger.Error(err),
	)
	d.metrics.RecordError("document_read")
}

// tickerKey is the slash-separated location of a ticker document relative
// to the data root.
func tickerKey(symbol string) string {
	return path.Join(tickerDir, symbol+".json")
}

func slippageKey(symbol string) string {
	return path.Join(tickerDir, symbol+slippageSuffix+".json")
}
