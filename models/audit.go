package models

import "time"

// AuditEvent is one entry of the security audit trail. Meta holds redacted
// free-form metadata; the well-known identity fields are lifted out so the
// store can index them.
type AuditEvent struct {
	ID       string         `bson:"_id,omitempty" json:"-"`
	Ts       time.Time      `bson:"ts" json:"ts"`
	Event    string         `bson:"event" json:"event"`
	UserID   string         `bson:"userId,omitempty" json:"user_id,omitempty"`
	Username string         `bson:"username,omitempty" json:"username,omitempty"`
	Email    string         `bson:"email,omitempty" json:"email,omitempty"`
	IP       string         `bson:"ip,omitempty" json:"ip,omitempty"`
	Meta     map[string]any `bson:"meta,omitempty" json:"meta,omitempty"`
}
