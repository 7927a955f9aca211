// Package main запускает имитацию внешней платёжной системы.
// Сервис отвечает со случайной задержкой до секунды и изредка отказывает,
// что позволяет проверять таймауты и компенсацию на стороне сервиса заказов.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type chargeResponse struct {
	PaymentID string `json:"payment_id"`
}

func main() {
	addr := flag.String("a", "localhost:8081", "address and port for payment gateway")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	r := chi.NewRouter()

	r.Post("/api/payments", func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)

		if rand.Intn(100) == 1 {
			sugar.Warnw("charge rejected")
			http.Error(w, "payment failed", http.StatusInternalServerError)
			return
		}

		paymentID := uuid.NewString()
		sugar.Infow("charge accepted", "paymentID", paymentID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chargeResponse{PaymentID: paymentID})
	})

	r.Post("/api/payments/{paymentID}/cancel", func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)

		paymentID := chi.URLParam(req, "paymentID")

		if rand.Intn(100) == 1 {
			sugar.Warnw("cancel rejected", "paymentID", paymentID)
			http.Error(w, "payment cancellation failed", http.StatusInternalServerError)
			return
		}

		sugar.Infow("cancel accepted", "paymentID", paymentID)
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    *addr,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	sugar.Infow("starting payment gateway stub", "addr", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("server error", "error", err.Error())
	}
}
