package domain

// DocumentSummary is the list view of a document.
type DocumentSummary struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	VersionCount  int    `json:"version_count"`
	LatestVersion int    `json:"latest_version"`
	ActiveVersion *int   `json:"active_version,omitempty"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

// Event is an audit log entry for a mutation.
type Event struct {
	ID            int64  `json:"id"`
	TS            string `json:"ts" format:"date-time"`
	Type          string `json:"type"`
	DocType       string `json:"doc_type,omitempty"`
	DocName       string `json:"doc_name,omitempty"`
	EntityKind    string `json:"entity_kind"`
	EntityID      string `json:"entity_id,omitempty"`
	ActorID       string `json:"actor_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
