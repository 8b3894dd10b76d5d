// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Salt and PasswordHash are hex strings produced by auth.PasswordService.
// They carry `json:"-"` so a User can be written straight to a response
// without leaking credential material.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Salt         string    `json:"-"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
