package messages

import "time"

// NotifyResultEvent is published by the notifier-service at the end (or
// failure) of a webhook delivery attempt.
type NotifyResultEvent struct {
	RegionID  string    `json:"region_id"`
	EventID   string    `json:"event_id"`
	Endpoint  string    `json:"endpoint"`
	Status    string    `json:"status"`   // "OK" | "FAIL"
	Attempts  int       `json:"attempts"` // delivery attempts, retries included
	Reason    string    `json:"reason"`   // "delivered" | "rejected" | "timeout"
	Timestamp time.Time `json:"timestamp"`
}
