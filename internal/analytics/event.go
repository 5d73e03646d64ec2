package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Tolerance window for accepted event timestamps, relative to processing time.
const (
	maxEventAge  = 24 * time.Hour
	maxEventSkew = 5 * time.Minute
)

// HitEvent is an immutable record of one redirect observation. Enrichment
// fields are optional; absent values are empty strings.
type HitEvent struct {
	Code       string    `json:"code"`
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	Referrer   string    `json:"referrer,omitempty"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"deviceType,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
}

// ErrEventOutsideWindow is returned for events too old or too far in the future.
var ErrEventOutsideWindow = errors.New("event timestamp outside tolerance window")

// Validate rejects events missing required fields or timestamped outside
// [now-24h, now+5m].
func (e *HitEvent) Validate(now time.Time) error {
	if e.Code == "" || e.IP == "" || e.UserAgent == "" || e.Timestamp.IsZero() {
		return fmt.Errorf("hit event missing required fields (code=%q)", e.Code)
	}

	if e.Timestamp.Before(now.Add(-maxEventAge)) || e.Timestamp.After(now.Add(maxEventSkew)) {
		return ErrEventOutsideWindow
	}

	return nil
}

// Day returns the event's UTC calendar-day key.
func (e *HitEvent) Day() string {
	return e.Timestamp.UTC().Format("2006-01-02")
}

// VisitorHash derives the anonymized visitor token: the first 16 hex
// characters of SHA-256 over "ip:userAgent". Deliberately not reversible.
func VisitorHash(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + ":" + userAgent))

	return hex.EncodeToString(sum[:])[:16]
}
