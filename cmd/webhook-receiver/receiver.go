package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/related-world/internal/api"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/gin-gonic/gin"
)

// receiver принимает события реестра миров и ведёт последнее известное состояние миров
type receiver struct {
	secret string

	mu     sync.Mutex
	worlds map[string]relworld.Descriptor
	count  int
}

func newReceiver(secret string) *receiver {
	return &receiver{secret: secret, worlds: make(map[string]relworld.Descriptor)}
}

func (rc *receiver) routes(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":     "Webhook приемник запущен",
			"endpoints":   []string{"/webhook", "/worlds"},
			"server_time": time.Now().Unix(),
		})
	})
	r.POST("/webhook", rc.handleWebhook)
	r.GET("/worlds", rc.handleWorlds)
}

func (rc *receiver) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка чтения запроса"})
		return
	}

	if rc.secret != "" && !validSignature(body, rc.secret, c.GetHeader("X-Webhook-Signature")) {
		logging.Warn("🚫 Неверная подпись webhook от %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверная подпись"})
		return
	}

	var event api.OutboundWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный JSON"})
		return
	}

	switch event.EventType {
	case relworld.EventWorldCreated, relworld.EventWorldTranslated:
		var desc relworld.Descriptor
		if err := json.Unmarshal(event.Data, &desc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные мира"})
			return
		}
		rc.mu.Lock()
		rc.worlds[desc.Name] = desc
		rc.mu.Unlock()
		logging.Info("🌍 %s: %s origin=%v (сервер %s)", event.EventType, desc.Name, desc.Origin, event.ServerID)
	case relworld.EventWorldRemoved:
		var desc relworld.Descriptor
		if err := json.Unmarshal(event.Data, &desc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные мира"})
			return
		}
		rc.mu.Lock()
		delete(rc.worlds, desc.Name)
		rc.mu.Unlock()
		logging.Info("🗑️  Мир %s удалён (сервер %s)", desc.Name, event.ServerID)
	case api.EventWebhookTest:
		logging.Info("🧪 Тестовое событие от %s: %s", event.ServerID, string(event.Data))
	default:
		logging.Info("ℹ️  Неизвестное событие: %s", event.EventType)
	}

	rc.mu.Lock()
	rc.count++
	rc.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "received",
		"event_type":  event.EventType,
		"received_at": time.Now().Unix(),
	})
}

func (rc *receiver) handleWorlds(c *gin.Context) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	worlds := make([]relworld.Descriptor, 0, len(rc.worlds))
	for _, d := range rc.worlds {
		worlds = append(worlds, d)
	}
	c.JSON(http.StatusOK, gin.H{"worlds": worlds, "received": rc.count})
}

func validSignature(body []byte, secret, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
