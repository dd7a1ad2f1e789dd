package registry

import "fmt"

// NotFoundError reports a lookup of an executor ID the registry has never
// seen. It enables typed error discrimination via errors.As.
type NotFoundError struct {
	ExecutorID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("executor %s not found", e.ExecutorID)
}

// CapacityError reports a reservation attempt against an executor already at
// its maximum concurrent load. Expected under concurrency; callers retry.
type CapacityError struct {
	ExecutorID string
	MaxLoad    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("executor %s at capacity (max %d)", e.ExecutorID, e.MaxLoad)
}

// NotAvailableError reports a reservation attempt against an executor whose
// availability state blocks new assignments (Busy or Offline).
type NotAvailableError struct {
	ExecutorID   string
	Availability Availability
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("executor %s not available (%s)", e.ExecutorID, e.Availability)
}

// ValidationError reports a malformed executor definition at registration
// time. Rejected before storage, never reaches dispatch.
type ValidationError struct {
	ExecutorID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("executor %s invalid: %s", e.ExecutorID, e.Reason)
}
