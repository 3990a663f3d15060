// internal/models/customer.go
package models

import "time"

// Customer is the insured client. Looked up (or lazily created) by
// lowercased email during intake.
type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// CustomerWithPolicies is the payment-board read model: a customer plus
// every submission linked to them, newest first.
type CustomerWithPolicies struct {
	Customer Customer     `json:"customer"`
	Policies []Submission `json:"policies"`
}
