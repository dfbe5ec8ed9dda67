package payroll

import "errors"

var (
	ErrInvalidPolicy = errors.New("invalid hours policy")
)
