// Package cleanup tracks managed accounts and their cleanup lifecycle.
//
// Flow:
//  1. Account owner writes account data → record created
//  2. Owner (or the deployment owner) marks the account with a
//     confirmation code → mark created, counter incremented
//  3. Mark is cancelled (back to unmarked) or confirmed with the code
//     (record and mark removed)
//  4. The deployment owner can force-remove a record at any point,
//     bypassing the confirmation code
package cleanup

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAlreadyMarked        = errors.New("account already marked for cleanup")
	ErrNotMarked            = errors.New("account is not marked for cleanup")
	ErrConfirmationMismatch = errors.New("confirmation code does not match")
	ErrUnauthorized         = errors.New("not authorized for this operation")
	ErrPayloadTooLarge      = errors.New("account payload exceeds size limit")
)

// AccountRecord is a managed account's stored state.
type AccountRecord struct {
	Address      string    `json:"address"`
	Payload      string    `json:"payload"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Mark is a pending declaration of intent to clean up an account,
// gated by a confirmation code chosen by the marker.
type Mark struct {
	Account          string    `json:"account"`
	MarkedBy         string    `json:"markedBy"`
	ConfirmationCode string    `json:"-"` // stored as given; exposed only to authorized callers
	MarkedAt         time.Time `json:"markedAt"`
}

// Store persists account records and cleanup marks.
//
// At most one active mark exists per account. PurgeAccount removes the
// record and any mark in one atomic step so the mark counter can never
// drift from the set of live marks.
type Store interface {
	GetAccount(ctx context.Context, address string) (*AccountRecord, error)
	UpsertAccount(ctx context.Context, address, payload string) (*AccountRecord, error)

	GetMark(ctx context.Context, account string) (*Mark, error)
	CreateMark(ctx context.Context, m *Mark) error
	DeleteMark(ctx context.Context, account string) error

	// PurgeAccount deletes the account record and, if present, its mark.
	// Returns whether a mark was removed.
	PurgeAccount(ctx context.Context, account string) (markRemoved bool, err error)

	ActiveMarkCount(ctx context.Context) (int64, error)
}

// Request/response types for handlers.

// WriteDataRequest is the request body for POST /v1/accounts/data.
type WriteDataRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// MarkRequest is the request body for POST /v1/cleanup/mark.
type MarkRequest struct {
	Account          string `json:"account" binding:"required"`
	ConfirmationCode string `json:"confirmationCode" binding:"required"`
}

// CancelRequest is the request body for POST /v1/cleanup/cancel.
type CancelRequest struct {
	Account string `json:"account" binding:"required"`
}

// ConfirmRequest is the request body for POST /v1/cleanup/confirm.
type ConfirmRequest struct {
	Account          string `json:"account" binding:"required"`
	ConfirmationCode string `json:"confirmationCode" binding:"required"`
}

// ForceRequest is the request body for POST /v1/cleanup/force.
type ForceRequest struct {
	Account string `json:"account" binding:"required"`
}
