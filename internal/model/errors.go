package model

import "errors"

var ErrInsufficientStock = errors.New("insufficient stock")
