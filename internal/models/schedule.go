package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	IntervalHourly  = "hourly"
	IntervalDaily   = "daily"
	IntervalWeekly  = "weekly"
	IntervalMonthly = "monthly"
)

// Schedule is a recurring auto-post of one category into one chat.
type Schedule struct {
	ChatID    int64      `json:"chatId" db:"chat_id"`
	Category  string     `json:"category" db:"category"`
	Interval  string     `json:"interval" db:"interval"`
	Active    bool       `json:"active" db:"active"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	LastPost  *time.Time `json:"lastPost,omitempty" db:"last_post"`
}

// JobID is the stable identifier of the schedule's timer job.
func (s Schedule) JobID() string {
	return fmt.Sprintf("schedule_%d_%s_%s", s.ChatID, s.Category, s.Interval)
}

// ParseInterval resolves a named interval or a custom number of minutes.
func ParseInterval(interval string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case IntervalHourly:
		return time.Hour, nil
	case IntervalDaily:
		return 24 * time.Hour, nil
	case IntervalWeekly:
		return 7 * 24 * time.Hour, nil
	case IntervalMonthly:
		return 30 * 24 * time.Hour, nil
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(interval))
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	return time.Duration(minutes) * time.Minute, nil
}
