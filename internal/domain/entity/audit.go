package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// System actor for events emitted by background workers rather than a user.
const ActorSystem = "system"

// AuditEvent is a structured, fire-and-forget event written to the tenant's
// audit collection.
type AuditEvent struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	EventType string                 `bson:"event_type" json:"event_type"`
	Actor     string                 `bson:"actor" json:"actor"`
	Resource  string                 `bson:"resource" json:"resource"`
	Action    string                 `bson:"action" json:"action"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
}
