// Package geo предоставляет клиент внешнего сервиса расстояний.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrAddressNotFound возвращается, если сервис не знает адрес.
var ErrAddressNotFound = errors.New("address not found")

const maxAttempts = 3

// Client инкапсулирует HTTP-взаимодействие с сервисом расстояний.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// DistanceResponse описывает ответ сервиса расстояний.
type DistanceResponse struct {
	ZoneID     int64           `json:"zone_id"`
	AddressID  int64           `json:"address_id"`
	DistanceKm decimal.Decimal `json:"distance_km"`
}

// NewClient создаёт HTTP-клиент сервиса расстояний по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Distance возвращает расстояние от зоны до адреса в километрах.
// На ответ 429 клиент ждёт Retry-After и повторяет запрос.
func (c *Client) Distance(ctx context.Context, zoneID, addressID int64) (decimal.Decimal, error) {
	if c == nil || c.baseURL == "" {
		return decimal.Zero, fmt.Errorf("distance client not configured")
	}

	for attempt := 1; ; attempt++ {
		res, retryAfter, err := c.fetch(ctx, zoneID, addressID)
		if err != nil {
			return decimal.Zero, err
		}
		if res != nil {
			return res.DistanceKm, nil
		}
		if attempt == maxAttempts {
			return decimal.Zero, fmt.Errorf("distance service rate limited after %d attempts", attempt)
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return decimal.Zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// fetch выполняет один запрос. Для 429 возвращает nil-ответ и время ожидания.
func (c *Client) fetch(ctx context.Context, zoneID, addressID int64) (*DistanceResponse, time.Duration, error) {
	url := fmt.Sprintf("%s/api/zones/%d/addresses/%d/distance", c.baseURL, zoneID, addressID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil && seconds >= 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, retryAfter, nil
	case http.StatusNotFound:
		return nil, 0, fmt.Errorf("%w: zone %d address %d", ErrAddressNotFound, zoneID, addressID)
	default:
		return nil, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result DistanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	if result.DistanceKm.IsNegative() {
		return nil, 0, fmt.Errorf("negative distance %s", result.DistanceKm)
	}

	return &result, 0, nil
}
