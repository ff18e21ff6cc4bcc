package catalogue

import "errors"

var (
	ErrInvalidVATRate   = errors.New("catalogue: invalid VAT rate")
	ErrInvalidPlan      = errors.New("catalogue: invalid plan definition")
	ErrNoFreePlan       = errors.New("catalogue: free plan is not defined")
	ErrDuplicatePlan    = errors.New("catalogue: duplicate plan id")
	ErrLoadFailed       = errors.New("catalogue: failed to load plans")
	ErrSeedFailed       = errors.New("catalogue: failed to seed plans")
	ErrSeedNotSupported = errors.New("catalogue: source does not support seeding")
)
