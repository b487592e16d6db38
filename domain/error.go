// Package domain defines error types for the allocation system.
package domain

import (
	"errors"
	"fmt"
)

// OutOfStockError is returned when no batch can take an order line
type OutOfStockError struct {
	SKU string
}

// Error implements the error interface for OutOfStockError
func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock for sku %s", e.SKU)
}

// Is allows proper error type checking with errors.Is()
func (e *OutOfStockError) Is(target error) bool {
	_, ok := target.(*OutOfStockError)
	return ok
}

// BatchNotFoundError is returned when a batch with the given reference is not found
type BatchNotFoundError struct {
	Reference string
}

// Error implements the error interface for BatchNotFoundError
func (e *BatchNotFoundError) Error() string {
	return fmt.Sprintf("batch not found: ref=%s", e.Reference)
}

// Is allows proper error type checking with errors.Is()
func (e *BatchNotFoundError) Is(target error) bool {
	_, ok := target.(*BatchNotFoundError)
	return ok
}

// InvalidBatchError is returned when batch validation fails
type InvalidBatchError struct {
	Field  string
	Reason string
	Value  interface{}
}

// Error implements the error interface for InvalidBatchError
func (e *InvalidBatchError) Error() string {
	return fmt.Sprintf("invalid batch: field=%s, reason=%s, value=%v", e.Field, e.Reason, e.Value)
}

// Is allows proper error type checking with errors.Is()
func (e *InvalidBatchError) Is(target error) bool {
	_, ok := target.(*InvalidBatchError)
	return ok
}

// DuplicateBatchError is returned when adding a batch with an existing reference
type DuplicateBatchError struct {
	Reference string
}

// Error implements the error interface for DuplicateBatchError
func (e *DuplicateBatchError) Error() string {
	return fmt.Sprintf("duplicate batch: ref=%s already exists", e.Reference)
}

// Is allows proper error type checking with errors.Is()
func (e *DuplicateBatchError) Is(target error) bool {
	_, ok := target.(*DuplicateBatchError)
	return ok
}

// NewOutOfStockError creates a new OutOfStockError
func NewOutOfStockError(sku string) error {
	return &OutOfStockError{SKU: sku}
}

// NewBatchNotFoundError creates a new BatchNotFoundError
func NewBatchNotFoundError(ref string) error {
	return &BatchNotFoundError{Reference: ref}
}

// NewInvalidBatchError creates a new InvalidBatchError
func NewInvalidBatchError(field, reason string, value interface{}) error {
	return &InvalidBatchError{
		Field:  field,
		Reason: reason,
		Value:  value,
	}
}

// NewDuplicateBatchError creates a new DuplicateBatchError
func NewDuplicateBatchError(ref string) error {
	return &DuplicateBatchError{Reference: ref}
}

// IsOutOfStockError checks if an error is an OutOfStockError
func IsOutOfStockError(err error) bool {
	var oos *OutOfStockError
	return errors.As(err, &oos)
}

// IsBatchNotFoundError checks if an error is a BatchNotFoundError
func IsBatchNotFoundError(err error) bool {
	var bnf *BatchNotFoundError
	return errors.As(err, &bnf)
}

// IsInvalidBatchError checks if an error is an InvalidBatchError
func IsInvalidBatchError(err error) bool {
	var ibe *InvalidBatchError
	return errors.As(err, &ibe)
}

// IsDuplicateBatchError checks if an error is a DuplicateBatchError
func IsDuplicateBatchError(err error) bool {
	var dbe *DuplicateBatchError
	return errors.As(err, &dbe)
}
