package proto

import "encoding/json"

const (
	TopicDispatch    = "dispatch"
	TopicSettings    = "settings"
	TopicMaintenance = "maintenance"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Event is what the broker fans out to feed subscribers.
type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // UNIX timestamp in seconds
}

// DispatchEvent records the outcome of one send. Status "sent" only means the
// datagram was handed to the OS; there is no delivery confirmation.
type DispatchEvent struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"` // "media", "question", "raw"
	Artisan    string   `json:"artisan,omitempty"`
	Command    Command  `json:"command"`
	Endpoint   Endpoint `json:"endpoint"`
	Generation uint64   `json:"generation,omitempty"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}

type SettingsEvent struct {
	Endpoint  Endpoint `json:"endpoint"`
	Timestamp int64    `json:"timestamp"`
}

type MaintenanceEvent struct {
	Action    string `json:"action"` // "prompt", "unlock", "lock", "denied"
	Timestamp int64  `json:"timestamp"`
}
