package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/evansenter/agent-event-bus/pkg/metrics"
	"github.com/evansenter/agent-event-bus/pkg/router"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/evansenter/agent-event-bus/pkg/types"
	"github.com/rs/zerolog"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, prefixed
// with "sha256=".
const SignatureHeader = "X-Event-Bus-Signature"

const (
	workerCount    = 8
	queueSize      = 256
	initialBackoff = 1 * time.Second
)

// errAborted marks deliveries abandoned because the webhook was disabled or
// deleted between enqueue and attempt.
var errAborted = errors.New("webhook no longer active")

// delivery is one (webhook, event) pair awaiting delivery. The webhook is
// referenced by id so its active flag is re-read before each attempt.
type delivery struct {
	webhookID int64
	event     *types.Event
}

// Config controls delivery behavior.
type Config struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxAttempts is the total number of POSTs per delivery, including
	// the first.
	MaxAttempts int
}

// DefaultConfig returns the documented delivery defaults: a 10 second
// request timeout and 3 total attempts with 1s/2s backoff between them.
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
	}
}

// Dispatcher delivers events to matching webhooks asynchronously. A fixed
// worker pool drains a bounded queue; the publish path never blocks on HTTP.
// Delivery is at-least-once per process lifetime: there is no durable
// outbox, and in-flight deliveries are abandoned on shutdown.
type Dispatcher struct {
	store  storage.Store
	client *http.Client
	cfg    Config
	logger zerolog.Logger

	queue  chan delivery
	stopCh chan struct{}
	wg     sync.WaitGroup

	initialBackoff time.Duration
}

// NewDispatcher creates a dispatcher with the default delivery config.
func NewDispatcher(store storage.Store) *Dispatcher {
	return NewDispatcherWithConfig(store, DefaultConfig())
}

// NewDispatcherWithConfig creates a dispatcher with a custom delivery config.
func NewDispatcherWithConfig(store storage.Store, cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Dispatcher{
		store:          store,
		client:         &http.Client{Timeout: cfg.Timeout},
		cfg:            cfg,
		logger:         log.WithComponent("dispatcher"),
		queue:          make(chan delivery, queueSize),
		stopCh:         make(chan struct{}),
		initialBackoff: initialBackoff,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info().Int("workers", workerCount).Msg("Dispatcher started")
}

// Stop shuts the workers down. Queued and in-flight deliveries are dropped.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
	d.logger.Info().Msg("Dispatcher stopped")
}

// Enqueue schedules delivery of the event to every matching active webhook.
// It never blocks: when the queue is full, deliveries are dropped with a
// warning.
func (d *Dispatcher) Enqueue(event *types.Event) {
	hooks, err := d.store.ListWebhooks(true)
	if err != nil {
		d.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to list webhooks")
		return
	}

	for _, w := range router.MatchingWebhooks(hooks, event) {
		select {
		case d.queue <- delivery{webhookID: w.ID, event: event}:
		case <-d.stopCh:
			return
		default:
			d.logger.Warn().
				Int64("webhook_id", w.ID).
				Int64("event_id", event.ID).
				Msg("Delivery queue full, dropping delivery")
			metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Abandon retry waits when the dispatcher stops.
	go func() {
		select {
		case <-d.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := metrics.NewTimer()
	err := d.deliver(ctx, job.webhookID, job.event)
	timer.ObserveDuration(metrics.WebhookDeliveryDuration)

	switch {
	case err == nil:
		metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	case errors.Is(err, errAborted):
		metrics.WebhookDeliveries.WithLabelValues("aborted").Inc()
		d.logger.Debug().
			Int64("webhook_id", job.webhookID).
			Int64("event_id", job.event.ID).
			Msg("Delivery aborted, webhook disabled or deleted")
	default:
		metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
		d.logger.Error().Err(err).
			Int64("webhook_id", job.webhookID).
			Int64("event_id", job.event.ID).
			Msg("Webhook delivery failed, retries exhausted")
	}
}

// deliver POSTs the event to the webhook, retrying transient failures with
// exponential backoff up to the configured attempt budget. The webhook's
// active flag is re-read before every attempt.
func (d *Dispatcher) deliver(ctx context.Context, webhookID int64, event *types.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.initialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempt := func() error {
		webhook, err := d.store.GetWebhook(webhookID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return backoff.Permanent(errAborted)
			}
			return err
		}
		if !webhook.Active {
			return backoff.Permanent(errAborted)
		}
		return d.post(ctx, webhook, body)
	}

	retries := uint64(d.cfg.MaxAttempts - 1)
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
}

// post performs one HTTP attempt. Any status below 400 is success; anything
// else, including connection failures and timeouts, is retryable.
func (d *Dispatcher) post(ctx context.Context, webhook *types.Webhook, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if webhook.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(body, webhook.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the lowercase hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
