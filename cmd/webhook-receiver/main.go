package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/annel0/related-world/internal/logging"
	"github.com/gin-gonic/gin"
)

func main() {
	port := flag.Int("port", 3000, "порт приемника")
	secret := flag.String("secret", os.Getenv("RELWORLD_WEBHOOK_SECRET"), "секрет для проверки X-Webhook-Signature")
	flag.Parse()

	if err := logging.InitDefaultLogger("webhook-receiver"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %d %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	newReceiver(*secret).routes(r)

	logging.Info("✅ Webhook приемник запущен на http://localhost:%d", *port)
	if err := r.Run(fmt.Sprintf(":%d", *port)); err != nil {
		logging.Error("Ошибка запуска сервера: %v", err)
	}
}
