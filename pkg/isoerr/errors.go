// Package isoerr defines the closed set of sentinel errors every package in
// this module returns. It sits at the bottom of the import graph so the
// parse-side packages (descriptor, directory, encoding, parser) can wrap the
// same values the facade's callers compare against with errors.Is.
package isoerr

import "errors"

var (
	ErrInvalidArgument        = errors.New("iso9660: invalid argument")
	ErrNotFound               = errors.New("iso9660: not found")
	ErrAlreadyExists          = errors.New("iso9660: already exists")
	ErrNotAFile               = errors.New("iso9660: not a file")
	ErrNotADirectory          = errors.New("iso9660: not a directory")
	ErrBadMagic               = errors.New("iso9660: bad standard identifier")
	ErrBadVersion             = errors.New("iso9660: bad volume descriptor version")
	ErrTruncatedDescriptor    = errors.New("iso9660: truncated volume descriptor")
	ErrRecordCrossesBoundary  = errors.New("iso9660: directory record crosses a sector boundary")
	ErrInconsistentBothEndian = errors.New("iso9660: little-endian and big-endian copies disagree")
	ErrSinkClosed             = errors.New("iso9660: write sink closed")
	ErrSourceIO               = errors.New("iso9660: source read error")
	ErrNotOpen                = errors.New("iso9660: image not open")
	ErrAlreadyOpen            = errors.New("iso9660: image already open")
)
