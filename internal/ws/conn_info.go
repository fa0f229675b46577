package ws

import "time"

// ConnInfo describes one subscriber connection for metrics and audit events.
type ConnInfo struct {
	ConnID      string
	ActorID     string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
