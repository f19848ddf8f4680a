package service

import "errors"

// Sentinel errors for the service layer. Handlers collapse NotFound, Expired
// and Forbidden into one user-facing message so a non-owner cannot probe
// whether a token exists.
var (
	ErrNotFound        = errors.New("reference not found")
	ErrExpired         = errors.New("reference has expired")
	ErrForbidden       = errors.New("reference belongs to another principal")
	ErrNothingToCommit = errors.New("no files collected")
	ErrWrongPIN        = errors.New("wrong pin")
	ErrNonNumericPIN   = errors.New("pin must contain only digits")
)
