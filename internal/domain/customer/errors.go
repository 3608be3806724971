package customer

import "errors"

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerBlocked  = errors.New("customer is blocked")
)
