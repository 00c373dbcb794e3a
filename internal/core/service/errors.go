package service

import "errors"

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrOrderNotFound    = errors.New("order not found")
	ErrStockNotFound    = errors.New("stock record not found")
	ErrStockConflict    = errors.New("stock modified concurrently")
	ErrUnknownMaterial  = errors.New("unknown material")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrLaneClosed       = errors.New("write lane closed")
)
