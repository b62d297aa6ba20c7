// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// RekeyTask asks a worker to re-verify the sort keys of an entity's subtree
// and refresh its search documents. Keys are already rewritten by the request
// that enqueued the task; the worker is the catch-up path for the index.
type RekeyTask struct {
	EntityID string `json:"entity_id"`
	Bundle   string `json:"bundle"`
	// Reason is informational only, e.g. "reparent" or "label".
	Reason string `json:"reason"`
}

// Key identifies the task for retry accounting.
func (t RekeyTask) Key() string {
	return "rekey:" + t.EntityID
}
