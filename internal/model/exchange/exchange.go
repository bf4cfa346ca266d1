package exchange

import "time"

// Outcome labels how an inbound message was answered.
type Outcome string

const (
	OutcomeIntroduction      Outcome = "introduction"
	OutcomeQuotaExceeded     Outcome = "quota_exceeded"
	OutcomeAnswered          Outcome = "answered"
	OutcomeNoAnswer          Outcome = "no_answer"
	OutcomeBackendFailure    Outcome = "backend_failure"
	OutcomeUnexpectedFailure Outcome = "unexpected_failure"
	OutcomeDispatchFailure   Outcome = "dispatch_failure"
)

// Exchange persists one relayed question and the reply sent for it.
type Exchange struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"index" json:"eventId"`
	UserID    string    `gorm:"index:idx_exchange_user_time,priority:1" json:"userId"`
	Intent    string    `json:"intent"`
	Outcome   Outcome   `json:"outcome"`
	Request   string    `json:"request"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `gorm:"index:idx_exchange_user_time,priority:2" json:"createdAt"`
}

// TableName implements the GORM tabler interface.
func (Exchange) TableName() string { return "exchanges" }
