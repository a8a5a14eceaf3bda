package repository

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidInput    = errors.New("invalid input parameters")
)
