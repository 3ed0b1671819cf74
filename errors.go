package iso

import "github.com/bgrewell/iso9660-studio/pkg/isoerr"

// Sentinel errors returned by the facade and its supporting packages,
// re-exported from pkg/isoerr so callers only need this package to compare
// with errors.Is. Every returned error wraps one of these with %w, keeping
// the original cause and the sentinel both reachable.
var (
	ErrInvalidArgument        = isoerr.ErrInvalidArgument
	ErrNotFound               = isoerr.ErrNotFound
	ErrAlreadyExists          = isoerr.ErrAlreadyExists
	ErrNotAFile               = isoerr.ErrNotAFile
	ErrNotADirectory          = isoerr.ErrNotADirectory
	ErrBadMagic               = isoerr.ErrBadMagic
	ErrBadVersion             = isoerr.ErrBadVersion
	ErrTruncatedDescriptor    = isoerr.ErrTruncatedDescriptor
	ErrRecordCrossesBoundary  = isoerr.ErrRecordCrossesBoundary
	ErrInconsistentBothEndian = isoerr.ErrInconsistentBothEndian
	ErrSinkClosed             = isoerr.ErrSinkClosed
	ErrSourceIO               = isoerr.ErrSourceIO
	ErrNotOpen                = isoerr.ErrNotOpen
	ErrAlreadyOpen            = isoerr.ErrAlreadyOpen
)
