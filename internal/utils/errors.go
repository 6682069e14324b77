package util

import "errors"

var (
	ErrInvalidPageId       = errors.New("invalid page id")
	ErrInvalidPoolSize     = errors.New("invalid pool size")
	ErrInvalidInitialPages = errors.New("initial pages must be positive")
	ErrPageOutOfBounds     = errors.New("page out of bounds")
	ErrShortRead           = errors.New("read less than a full page")
	ErrReadOnly            = errors.New("database is read-only")
	ErrOutBoundOfFrame     = errors.New("frame idx out of bound")
	ErrNoFreeFrame         = errors.New("no free frames")
	ErrBlockIndexRange     = errors.New("block slot index out of range")
)
