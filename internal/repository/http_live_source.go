package repository

import (
	"context"
	"time"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	xhttp "Tradyxa/pkg/http"
	applogger "Tradyxa/pkg/logger"
)

// HTTPLiveSource fetches the live document from a remote URL. Timeouts and
// failures yield no document rather than an error.
type HTTPLiveSource struct {
	decoder
	url     string
	timeout time.Duration
	client  *xhttp.Client
}

var _ domrepo.LiveSource = (*HTTPLiveSource)(nil)

// the live document holds one quote per tracked symbol
const maxLiveBytes = 1 << 20

func NewHTTPLiveSource(url string, timeout time.Duration, opts ...Option) *HTTPLiveSource {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPLiveSource{
		decoder: newDecoder(opts),
		url:     url,
		timeout: timeout,
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithMaxBodySize(maxLiveBytes),
			xhttp.WithHeader("User-Agent", "tradyxa-live"),
		),
	}
}

func (s *HTTPLiveSource) ReadLive(ctx context.Context) (*models.LiveDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.client.Fetch(ctx, s.url)
	if err != nil {
		s.l.Warn("live source unavailable", applogger.String("url", s.url), applogger.Error(err))
		s.metrics.RecordError("live_fetch")
		return nil, nil
	}
	var doc models.LiveDocument
	if !s.decode(body, kindLive, s.url, &doc) {
		return nil, nil
	}
	return &doc, nil
}
