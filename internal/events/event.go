// Package events defines the click-event payload and the non-blocking
// publisher/consumer pair that move it across the message bus (C6, C7).
package events

import "time"

// ClickEvent is the message payload recorded for every redirect (§3,
// Click event). RequestID extends the Python reference's event shape; it
// gives the at-least-once consumer (I1) a natural dedup key alongside
// (code, timestamp, ip_address).
type ClickEvent struct {
	Code        string    `json:"code"`
	Timestamp   time.Time `json:"timestamp"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
	Referrer    string    `json:"referrer"`
	OriginalURL string    `json:"original_url"`
	RequestID   string    `json:"request_id"`
}
