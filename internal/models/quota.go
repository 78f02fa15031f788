package models

import "time"

// RateLimitWindow is one fixed window per (user, endpoint). Expired windows
// are recycled in place rather than deleted.
type RateLimitWindow struct {
	ID           uint   `gorm:"primarykey"`
	UserID       uint   `gorm:"not null;uniqueIndex:uk_rate_limit_user_endpoint,priority:1"`
	Endpoint     string `gorm:"type:varchar(50);not null;uniqueIndex:uk_rate_limit_user_endpoint,priority:2"`
	RequestCount int    `gorm:"not null;default:0"`
	WindowStart  time.Time
	WindowEnd    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// DailyMediaUsage counts successful finalizes per user and day. Keyed by the
// date string so the counter resets implicitly at midnight.
type DailyMediaUsage struct {
	ID         uint   `gorm:"primarykey"`
	UserID     uint   `gorm:"not null;uniqueIndex:uk_daily_usage_user_day,priority:1"`
	Day        string `gorm:"type:varchar(10);not null;uniqueIndex:uk_daily_usage_user_day,priority:2"` // 2006-01-02
	ImageCount int    `gorm:"not null;default:0"`
	VideoCount int    `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}

// UsageDay formats a time as a daily usage key.
func UsageDay(t time.Time) string {
	return t.Format("2006-01-02")
}

// CountFor returns the counter for the given media type.
func (d *DailyMediaUsage) CountFor(mediaType MediaType) int {
	if mediaType == MediaTypeVideo {
		return d.VideoCount
	}
	return d.ImageCount
}
