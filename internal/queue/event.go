// Package queue defines message payloads exchanged over the message broker.
package queue

// AuditQueueName is the durable queue audit events are published to.
const AuditQueueName = "auth.events"

// AuditEvent is published after an audit record was written to the logins
// collection.  It repeats the record so consumers never need the database.
type AuditEvent struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	IP        string `json:"ip"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}
