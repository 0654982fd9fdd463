package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Action is the kind of change an ExpenseEvent reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ExpenseEvent announces that a user's expense set changed. Consumers reload
// the whole set rather than trusting the event payload.
type ExpenseEvent struct {
	Username  string    `json:"username"`
	Action    Action    `json:"action"`
	ExpenseID string    `json:"expense_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(username string, action Action, expenseID string) *ExpenseEvent {
	return &ExpenseEvent{
		Username:  username,
		Action:    action,
		ExpenseID: expenseID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates an event body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Username == "" {
		return nil, errors.New("expense event without username")
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, errors.New("expense event with unknown action " + string(msg.Action))
	}
	return &msg, nil
}
