package domain

import "time"

// BroadcastStatus is the lifecycle state of a broadcast run.
type BroadcastStatus string

const (
	BroadcastPending    BroadcastStatus = "pending"
	BroadcastInProgress BroadcastStatus = "in_progress"
	// BroadcastCompleted means every recipient has been scheduled, not that
	// every delivery has finished. See BroadcastProgress.Delivered.
	BroadcastCompleted BroadcastStatus = "completed"
)

// RecipientStatus is the delivery state of one (broadcast, user) pair.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// Broadcast forwards one source message (FromChatID, MessageID) to every
// eligible user. A broadcast exclusively owns its recipients.
type Broadcast struct {
	ID            uint            `json:"id"             gorm:"primaryKey"`
	FromChatID    int64           `json:"from_chat_id"   gorm:"not null"`
	MessageID     int             `json:"message_id"     gorm:"not null"`
	Status        BroadcastStatus `json:"status"         gorm:"type:varchar(16);not null;default:'pending';index"`
	ScheduledTime *time.Time      `json:"scheduled_time,omitempty" gorm:"index"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Recipients []BroadcastRecipient `json:"-" gorm:"foreignKey:BroadcastID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Broadcast.
func (Broadcast) TableName() string { return "broadcasts" }

// Runnable reports whether Start may process the broadcast.
func (b Broadcast) Runnable() bool {
	return b.Status == BroadcastPending || b.Status == BroadcastInProgress
}

// BroadcastRecipient records the delivery of a broadcast to one user.
// There is exactly one row per (broadcast, user).
type BroadcastRecipient struct {
	ID           uint            `json:"id"            gorm:"primaryKey"`
	BroadcastID  uint            `json:"broadcast_id"  gorm:"not null;uniqueIndex:ux_recipient_broadcast_user,priority:1;index:idx_recipient_status,priority:1"`
	UserID       uint            `json:"user_id"       gorm:"not null;uniqueIndex:ux_recipient_broadcast_user,priority:2"`
	Status       RecipientStatus `json:"status"        gorm:"type:varchar(16);not null;default:'pending';index:idx_recipient_status,priority:2"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BroadcastRecipient.
func (BroadcastRecipient) TableName() string { return "broadcast_recipients" }

// Deliverable reports whether a fan-out pass should schedule this recipient.
func (r BroadcastRecipient) Deliverable() bool {
	return r.Status == RecipientPending || r.Status == RecipientFailed
}

// BroadcastProgress summarizes recipient outcomes for one broadcast.
type BroadcastProgress struct {
	BroadcastID uint            `json:"broadcast_id"`
	Status      BroadcastStatus `json:"status"`
	Total       int64           `json:"total"`
	Pending     int64           `json:"pending"`
	Sent        int64           `json:"sent"`
	Failed      int64           `json:"failed"`
	// Delivered is true once scheduling finished and no recipient is pending.
	Delivered bool `json:"delivered"`
}
