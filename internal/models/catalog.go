// internal/models/catalog.go
package models

// PolicyCatalogEntry is one canonical policy type. Free-text input from
// the intake form must resolve to exactly one entry.
type PolicyCatalogEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Agency is the sales organization an intermediary belongs to.
type Agency struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Intermediary is the agent who filed a submission. Email is the natural
// key; a record is created on first sight of a new email.
type Intermediary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	AgencyID string `json:"agencyId"`
}
