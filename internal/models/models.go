package models

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Task{},
		&TaskSubmission{},
		&Deposit{},
		&Withdrawal{},
		&AdminAdjustment{},
		&Transaction{},
	}
}
