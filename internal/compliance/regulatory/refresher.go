package regulatory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/metrics"
)

// Refresher periodically pulls regulation records from an external
// endpoint and merges the valid ones into the store. A failed fetch is
// logged and swallowed: the in-memory set is never replaced with
// partial data, and the next tick retries.
type Refresher struct {
	logger   *zap.Logger
	store    *RegulationStore
	client   *retryablehttp.Client
	url      string
	token    string
	interval time.Duration
	metrics  *metrics.Metrics

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	inFlight atomic.Bool
}

// NewRefresher creates a refresher polling url every interval with
// bearer-token auth. The HTTP client carries a bounded timeout so a
// stalled endpoint cannot wedge the refresh loop.
func NewRefresher(logger *zap.Logger, store *RegulationStore, url, token string, interval time.Duration, m *metrics.Metrics) *Refresher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil

	return &Refresher{
		logger:   logger,
		store:    store,
		client:   client,
		url:      url,
		token:    token,
		interval: interval,
		metrics:  m,
	}
}

// Start launches the refresh loop. Calling Start on a running
// refresher is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					r.logger.Error("regulation refresh failed", zap.Error(err))
				}
			}
		}
	}()
	r.logger.Info("regulation refresher started", zap.Duration("interval", r.interval))
}

// Stop cancels the refresh loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	r.logger.Info("regulation refresher stopped")
}

// Refresh performs one fetch-and-merge cycle. Only one refresh runs at
// a time; a second concurrent call returns immediately.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer r.inFlight.Store(false)

	records, err := r.fetch(ctx)
	if err != nil {
		r.observe("error")
		return &compliance.ExternalFetchError{URL: r.url, Err: err}
	}

	merged := 0
	for _, rec := range records {
		if err := r.store.Add(ctx, rec); err != nil {
			r.logger.Warn("skipping invalid fetched regulation",
				zap.String("regulation_id", rec.ID),
				zap.Error(err))
			continue
		}
		merged++
	}
	r.observe("ok")
	r.logger.Info("regulations refreshed",
		zap.Int("fetched", len(records)),
		zap.Int("merged", merged))
	return nil
}

func (r *Refresher) fetch(ctx context.Context) ([]Regulation, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errStatus(resp.StatusCode)
	}

	var records []Regulation
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

type errStatus int

func (e errStatus) Error() string {
	return fmt.Sprintf("unexpected status %d", int(e))
}

func (r *Refresher) observe(status string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RefreshTotal.WithLabelValues(status).Inc()
}
