package assets

import "errors"

var (
	ErrInvalidRef     = errors.New("invalid asset reference")
	ErrNotFound       = errors.New("asset not found")
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrUnknownCar     = errors.New("unknown car")
)
