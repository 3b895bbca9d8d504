package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	UserID         string    `dynamodbav:"user_id"`                   // owner; keys are not shared across users
	OrderID        string    `dynamodbav:"order_id,omitempty"`        // set once the checkout settles
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`   // replayed verbatim for DONE keys
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // e.g., 200
	Attempts       int       `dynamodbav:"attempts"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}
