package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mdversion/internal/config"
	"mdversion/internal/domain"
	"mdversion/internal/engine"
	"mdversion/internal/logger"
	"mdversion/internal/metrics"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	log      *logger.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	mu      sync.Mutex
	cursors map[int]int64
}

// StartWebhooks polls the audit log and posts new events to the configured webhooks until ctx is
// done. The returned func blocks until the dispatcher has stopped. Hooks start at the newest event,
// so history is never replayed.
func StartWebhooks(ctx context.Context, e engine.Engine, log *logger.Logger, m *metrics.Metrics) (wait func()) {
	d := newWebhookDispatcher(e, log, m)
	if d == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.run(ctx)
	}()
	return func() { <-done }
}

func newWebhookDispatcher(e engine.Engine, log *logger.Logger, m *metrics.Metrics) *webhookDispatcher {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	return &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log.Component("webhooks"),
		metrics:  m,
		interval: defaultWebhookInterval,
		cursors:  make(map[int]int64),
	}
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	evts, err := d.engine.EventsAfter(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		d.log.Error().Err(err).Msg("fetch events failed")
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range evts {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		err := d.postEvent(ctx, hook, evt)
		d.metrics.RecordWebhookDelivery(err)
		if err != nil {
			// stop here so the event is retried on the next tick
			d.log.Warn().Err(err).Str("url", hook.URL).Int64("event_id", evt.ID).Msg("webhook delivery failed")
			return
		}
		d.log.Debug().Str("url", hook.URL).Int64("event_id", evt.ID).Str("event", evt.Type).Msg("webhook delivered")
		d.setCursor(idx, evt.ID)
	}
}

func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("init cursor failed")
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	DocType       string          `json:"doc_type,omitempty"`
	DocName       string          `json:"doc_name,omitempty"`
	EntityKind    string          `json:"entity_kind"`
	EntityID      string          `json:"entity_id,omitempty"`
	ActorID       string          `json:"actor_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	TS            string          `json:"ts"`
	Payload       json.RawMessage `json:"payload"`
	PayloadRaw    string          `json:"payload_raw,omitempty"`
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage(`{}`)
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage(evt.Payload)
		} else {
			raw = evt.Payload
		}
	}
	data, err := json.Marshal(webhookEvent{
		ID:            evt.ID,
		Type:          evt.Type,
		DocType:       evt.DocType,
		DocName:       evt.DocName,
		EntityKind:    evt.EntityKind,
		EntityID:      evt.EntityID,
		ActorID:       evt.ActorID,
		CorrelationID: evt.CorrelationID,
		TS:            evt.TS,
		Payload:       payload,
		PayloadRaw:    raw,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != d.client.Timeout {
			client = &http.Client{Timeout: timeout}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mdversion-Event", evt.Type)
	req.Header.Set("X-Mdversion-Event-Id", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Mdversion-Delivery", uuid.NewString())
	if evt.CorrelationID != "" {
		req.Header.Set(correlationHeader, evt.CorrelationID)
	}
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Mdversion-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
