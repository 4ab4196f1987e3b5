// Package client provides a Go client for the Reclaim HTTP API.
// It has no dependencies beyond the standard library so it can be
// embedded in agents and tooling without pulling in the server stack.
package client

import (
	"fmt"
	"time"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Credential is the result of registering an API key. The raw key is
// returned once and never stored server-side.
type Credential struct {
	APIKey  string `json:"apiKey"`
	KeyID   string `json:"keyId"`
	Address string `json:"address"`
}

// Pool is the reward pool state. Amounts are decimal strings like "12.34".
type Pool struct {
	Balance   string    `json:"balance"`
	Funded    string    `json:"funded"`
	Paid      string    `json:"paid"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStats is an identity's cumulative ledger view.
type UserStats struct {
	Identity        string    `json:"identity"`
	AccountsCleaned int64     `json:"accountsCleaned"`
	Sessions        int64     `json:"sessions"`
	RewardsEarned   string    `json:"rewardsEarned"`
	Pending         string    `json:"pending"`
	LastActive      time.Time `json:"lastActive"`
}

// Session is one recorded cleanup report.
type Session struct {
	Reporter     string    `json:"reporter"`
	SessionID    int64     `json:"sessionId"`
	Accounts     int64     `json:"accounts"`
	Base         string    `json:"base"`
	Bonus        string    `json:"bonus"`
	Total        string    `json:"total"`
	BonusApplied bool      `json:"bonusApplied"`
	Settled      bool      `json:"settled"`
	ReportedAt   time.Time `json:"reportedAt"`
}

// SessionPage is one page of a reporter's sessions, newest first.
type SessionPage struct {
	Sessions   []Session `json:"sessions"`
	Count      int       `json:"count"`
	NextCursor string    `json:"nextCursor"`
	HasMore    bool      `json:"hasMore"`
}

// Preview prices a hypothetical batch without recording anything.
type Preview struct {
	Accounts     int64  `json:"accounts"`
	Base         string `json:"base"`
	Bonus        string `json:"bonus"`
	Total        string `json:"total"`
	BonusApplied bool   `json:"bonusApplied"`
}

// Payout is the result of a claim.
type Payout struct {
	Identity  string `json:"identity"`
	SessionID int64  `json:"sessionId,omitempty"`
	Paid      string `json:"paid"`
}

// Account is a stored account record.
type Account struct {
	Address      string    `json:"address"`
	Payload      string    `json:"payload"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// CleanupStatus is the mark state of an account. ConfirmationCode is
// populated only when the caller is allowed to see it.
type CleanupStatus struct {
	Account          string    `json:"account"`
	Marked           bool      `json:"marked"`
	MarkedBy         string    `json:"markedBy,omitempty"`
	MarkedAt         time.Time `json:"markedAt,omitempty"`
	ConfirmationCode string    `json:"confirmationCode,omitempty"`
}
