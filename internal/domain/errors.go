package domain

import "errors"

var ErrInvalidInput = errors.New("invalid input")
