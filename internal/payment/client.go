// Package payment предоставляет клиент внешней платёжной системы.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
)

// Client инкапсулирует HTTP-взаимодействие с платёжной системой.
// Каждый вызов ограничен собственным таймаутом; любой отказ, сетевая ошибка
// или истечение таймаута сворачиваются в единую бизнес-ошибку PAY001 —
// вызывающая сторона не различает таймаут и отказ, потому что реакция
// одинакова: подтверждённое состояние не сохраняется.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	chargeTimeout time.Duration
	cancelTimeout time.Duration
}

type chargeResponse struct {
	PaymentID string `json:"payment_id"`
}

// NewClient создаёт HTTP-клиент платёжной системы по указанному адресу.
// Таймауты списания и отмены настраиваются независимо.
func NewClient(baseURL string, chargeTimeout, cancelTimeout time.Duration) *Client {
	if chargeTimeout <= 0 {
		chargeTimeout = 3 * time.Second
	}
	if cancelTimeout <= 0 {
		cancelTimeout = 3 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		chargeTimeout: chargeTimeout,
		cancelTimeout: cancelTimeout,
	}
}

// Charge выполняет списание и возвращает идентификатор платежа,
// выданный внешней системой. Идентификатор выпускается заново при каждом
// вызове; клиент не дедуплицирует повторы.
func (c *Client) Charge(ctx context.Context) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("payment client not configured: %w", apperr.ErrPaymentFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.chargeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/payments", c.normalizedBase())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", apperr.ErrPaymentFailed)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("charge request: %w", apperr.ErrPaymentFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("charge status %d: %w", resp.StatusCode, apperr.ErrPaymentFailed)
	}

	var result chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode charge response: %w", apperr.ErrPaymentFailed)
	}

	if result.PaymentID == "" {
		return "", fmt.Errorf("empty payment id: %w", apperr.ErrPaymentFailed)
	}

	return result.PaymentID, nil
}

// Cancel отменяет ранее выполненное списание по идентификатору платежа.
func (c *Client) Cancel(ctx context.Context, paymentID string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("payment client not configured: %w", apperr.ErrPaymentFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cancelTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/payments/%s/cancel", c.normalizedBase(), paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", apperr.ErrPaymentFailed)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel request: %w", apperr.ErrPaymentFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cancel status %d: %w", resp.StatusCode, apperr.ErrPaymentFailed)
	}

	return nil
}

func (c *Client) normalizedBase() string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}
