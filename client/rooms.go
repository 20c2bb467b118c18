package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dosage/replication"
)

var httpClient = &http.Client{
	Timeout:   10 * time.Second,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

// CreateRoom はリレーに新しいルームを作らせ、そのコードを返します。
func CreateRoom(ctx context.Context, relayURL string) (replication.Room, error) {
	endpoint := strings.TrimRight(relayURL, "/") + "/rooms"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return replication.Room{}, fmt.Errorf("build request: %w", err)
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return replication.Room{}, fmt.Errorf("create room: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		return replication.Room{}, fmt.Errorf("create room: unexpected status %s", res.Status)
	}
	var body struct {
		Code      string                 `json:"code"`
		CreatedAt time.Time              `json:"createdAt"`
		Status    replication.RoomStatus `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return replication.Room{}, fmt.Errorf("decode room: %w", err)
	}
	return replication.Room{Code: body.Code, CreatedAt: body.CreatedAt, Status: body.Status}, nil
}
