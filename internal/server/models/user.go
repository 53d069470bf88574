package models

import "time"

type User struct {
	ID             string
	UserName       string
	PasswordHash   string
	CurrentVersion int64
	CreatedAt      time.Time
}
