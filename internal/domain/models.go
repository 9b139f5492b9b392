// Package domain defines the persistence models for waitlist sign-ups and
// rate-limit windows. These types are mapped with GORM and shared by the
// repository, rate limiter, and service layers.
package domain

import "time"

// MaxUserAgentLen caps the stored user agent (in runes).
const MaxUserAgentLen = 500

// WaitlistEntry represents one subscription to the product waitlist.
// An email address can only appear once (enforced by a unique index).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: lowercased, sanitized address; unique across all rows.
//   - SubscribedAt: time the entry was accepted (UTC).
//   - Source: constant tag naming the intake channel (e.g. "landing_page").
//   - IPAddress: source address the request was attributed to.
//   - UserAgent: client user agent, truncated to MaxUserAgentLen.
type WaitlistEntry struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"         gorm:"type:varchar(254);not null;uniqueIndex:ux_waitlist_email"`
	SubscribedAt time.Time `json:"subscribed_at" gorm:"not null;index"`
	Source       string    `json:"source"        gorm:"type:varchar(64);not null"`
	IPAddress    string    `json:"ip_address"    gorm:"type:varchar(64)"`
	UserAgent    string    `json:"user_agent"    gorm:"type:varchar(500)"`
}

// TableName returns the database table name for WaitlistEntry.
func (WaitlistEntry) TableName() string { return "waitlist" }

// RateLimitWindow is the shared, SQL-backed form of a fixed-window counter.
// One row exists per rate-limit key; WindowStartMs is epoch milliseconds.
// Columns avoid the SQL words "key" and "count" so raw upserts stay portable.
type RateLimitWindow struct {
	Key           string `gorm:"column:bucket_key;type:varchar(128);primaryKey"`
	Count         int    `gorm:"column:hits;not null;default:0"`
	WindowStartMs int64  `gorm:"column:window_start_ms;not null;index"`
}

// TableName implements the GORM tabler interface.
func (RateLimitWindow) TableName() string { return "rate_limit_windows" }
