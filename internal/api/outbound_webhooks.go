package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/cenkalti/backoff/v4"
)

// EventWebhookTest тестовое событие, отправляемое вручную через REST
const EventWebhookTest = "webhook.test"

// OutboundWebhook внешний получатель событий реестра миров
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required,url"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // типы событий или "*"
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // секунды на попытку
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	Delivered    int        `json:"delivered"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent тело запроса к webhook'у
type OutboundWebhookEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	ServerID  string          `json:"server_id"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// OutboundWebhookManager пересылает события шины подписанным webhook'ам
type OutboundWebhookManager struct {
	mu            sync.RWMutex
	webhooks      map[uint64]*OutboundWebhook
	nextID        uint64
	serverID      string
	httpClient    *http.Client
	retryInterval time.Duration

	eventQueue chan OutboundWebhookEvent
	sub        eventbus.Subscription
	sending    sync.WaitGroup
	worker     sync.WaitGroup
	closed     bool
}

// NewOutboundWebhookManager создает менеджер и запускает воркер очереди
func NewOutboundWebhookManager(serverID string) *OutboundWebhookManager {
	owm := &OutboundWebhookManager{
		webhooks:      make(map[uint64]*OutboundWebhook),
		nextID:        1,
		serverID:      serverID,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		retryInterval: time.Second,
		eventQueue:    make(chan OutboundWebhookEvent, 1000),
	}
	owm.worker.Add(1)
	go owm.eventWorker()
	return owm
}

// EventTypes типы событий, доступные для подписки
func (owm *OutboundWebhookManager) EventTypes() []string {
	return []string{
		relworld.EventWorldCreated,
		relworld.EventWorldTranslated,
		relworld.EventWorldRemoved,
		EventWebhookTest,
	}
}

// Attach подписывает менеджер на события реестра в шине
func (owm *OutboundWebhookManager) Attach(bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: owm.EventTypes()},
		func(ctx context.Context, ev *eventbus.Envelope) {
			owm.enqueue(OutboundWebhookEvent{
				EventID:   ev.ID,
				EventType: ev.EventType,
				Timestamp: ev.Timestamp.Unix(),
				ServerID:  owm.serverID,
				Source:    ev.Source,
				Data:      json.RawMessage(ev.Payload),
			})
		})
	if err != nil {
		return fmt.Errorf("webhooks: подписка на шину: %w", err)
	}
	owm.sub = sub
	return nil
}

// AddWebhook добавляет новый webhook
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true
	webhook.LastUsed = nil
	webhook.Delivered, webhook.FailureCount = 0, 0

	if webhook.Timeout <= 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount < 0 {
		webhook.RetryCount = 0
	}

	owm.webhooks[webhook.ID] = &webhook
	return webhook
}

// GetWebhooks возвращает копии webhook'ов по возрастанию ID
func (owm *OutboundWebhookManager) GetWebhooks() []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	out := make([]OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		out = append(out, *webhook)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetWebhook возвращает копию webhook'а по ID
func (owm *OutboundWebhookManager) GetWebhook(id uint64) (OutboundWebhook, bool) {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return OutboundWebhook{}, false
	}
	return *webhook, true
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	if _, exists := owm.webhooks[id]; !exists {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

// SendEvent ставит событие в очередь рассылки
func (owm *OutboundWebhookManager) SendEvent(eventType, source string, data json.RawMessage) {
	owm.enqueue(OutboundWebhookEvent{
		EventType: eventType,
		Timestamp: time.Now().Unix(),
		ServerID:  owm.serverID,
		Source:    source,
		Data:      data,
	})
}

func (owm *OutboundWebhookManager) enqueue(event OutboundWebhookEvent) {
	owm.mu.RLock()
	defer owm.mu.RUnlock()
	if owm.closed {
		return
	}
	select {
	case owm.eventQueue <- event:
	default:
		logging.Warn("⚠️  Очередь webhook'ов переполнена, событие %s пропущено", event.EventType)
	}
}

// Close отписывается от шины и дожидается отправок в полёте
func (owm *OutboundWebhookManager) Close() {
	owm.mu.Lock()
	if owm.closed {
		owm.mu.Unlock()
		return
	}
	owm.closed = true
	close(owm.eventQueue)
	owm.mu.Unlock()

	if owm.sub != nil {
		owm.sub.Unsubscribe()
	}
	owm.worker.Wait()
	owm.sending.Wait()
}

func (owm *OutboundWebhookManager) eventWorker() {
	defer owm.worker.Done()
	for event := range owm.eventQueue {
		owm.processEvent(event)
	}
}

func (owm *OutboundWebhookManager) processEvent(event OutboundWebhookEvent) {
	owm.mu.RLock()
	var targets []OutboundWebhook
	for _, webhook := range owm.webhooks {
		if webhook.Active && isSubscribedToEvent(webhook, event.EventType) {
			targets = append(targets, *webhook)
		}
	}
	owm.mu.RUnlock()

	for _, webhook := range targets {
		owm.sending.Add(1)
		go func(webhook OutboundWebhook) {
			defer owm.sending.Done()
			owm.sendToWebhook(webhook, event)
		}(webhook)
	}
}

func isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribed := range webhook.Events {
		if subscribed == eventType || subscribed == "*" {
			return true
		}
	}
	return false
}

func (owm *OutboundWebhookManager) sendToWebhook(webhook OutboundWebhook, event OutboundWebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		logging.Error("❌ Ошибка маршалинга события для webhook %s: %v", webhook.Name, err)
		return
	}

	attempt := 0
	post := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Related-World-Server/1.0")
		req.Header.Set("X-Event-Type", event.EventType)
		req.Header.Set("X-Server-ID", event.ServerID)
		if webhook.Secret != "" {
			req.Header.Set("X-Webhook-Signature", generateSignature(body, webhook.Secret))
		}

		resp, err := owm.httpClient.Do(req)
		if err != nil {
			logging.Warn("⚠️  Попытка %d/%d для webhook %s: %v", attempt, webhook.RetryCount+1, webhook.Name, err)
			return err
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			logging.Warn("⚠️  Webhook %s вернул статус %d на попытке %d", webhook.Name, resp.StatusCode, attempt)
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = owm.retryInterval
	err = backoff.Retry(post, backoff.WithMaxRetries(policy, uint64(webhook.RetryCount)))
	if err == nil {
		logging.Debug("✅ Событие %s отправлено в webhook %s", event.EventType, webhook.Name)
	} else {
		logging.Warn("❌ Событие %s не доставлено в webhook %s: %v", event.EventType, webhook.Name, err)
	}

	owm.mu.Lock()
	if stored, ok := owm.webhooks[webhook.ID]; ok {
		now := time.Now()
		stored.LastUsed = &now
		if err == nil {
			stored.Delivered++
		} else {
			stored.FailureCount++
		}
	}
	owm.mu.Unlock()
}

// generateSignature HMAC-SHA256 подпись тела запроса
func generateSignature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
