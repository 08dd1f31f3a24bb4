package repository

import "github.com/pkg/errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateEmail   = errors.New("leader email already registered")
	ErrDuplicateCode    = errors.New("team code already taken")
	ErrDuplicateTeamID  = errors.New("team id already taken")
	ErrAlreadyCheckedIn = errors.New("team already checked in")
)
