package database

import (
	"context"
	"time"
)

// HealthStatus reports database connectivity and pool statistics,
// surfaced at GET /health per spec §6. Grounded on the teacher's
// pkg/database.HealthStatus/Health.
type HealthStatus struct {
	Status        string `json:"status"`
	ResponseTime  int64  `json:"response_time_ms"`
	AcquiredConns int32  `json:"acquired_conns"`
	IdleConns     int32  `json:"idle_conns"`
	MaxConns      int32  `json:"max_conns"`
}

// Health pings the pool and reports its current statistics.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	if err := c.Pool.Ping(ctx); err != nil {
		return &HealthStatus{
			Status:       "down",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stat := c.Pool.Stat()
	return &HealthStatus{
		Status:        "ok",
		ResponseTime:  time.Since(start).Milliseconds(),
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		MaxConns:      stat.MaxConns(),
	}, nil
}
