package usecase

import "errors"

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrUserNotFound     = errors.New("user not found in database")
	ErrTitleRequired    = errors.New("title is required when adding to favorites")
	ErrUserUpdateFailed = errors.New("user update failed")
)
