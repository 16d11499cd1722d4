package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

type Filter struct {
	Limit    int
	FeedID   string
	Severity string
	Since    *time.Time // matches alerts last seen at or after this time
}

// HistoryRecord is one archived alert with the window it was seen active.
type HistoryRecord struct {
	FeedID      string    `json:"feed_id"`
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Area        string    `json:"area"`
	Sent        string    `json:"sent"`
	EndsExpires string    `json:"ends_expires"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

type HistoryRepository interface {
	RecordAlerts(ctx context.Context, snap *models.Snapshot) error
	GetByID(ctx context.Context, feedID, id string) (*HistoryRecord, error)
	ListAlerts(ctx context.Context, opts Filter) ([]HistoryRecord, error)
}
