// Package memory provides in-process repositories for running without a
// database. Every repository is safe for concurrent use and hands out
// copies, never references to stored values.
package memory

import "github.com/go-faster/errors"

// ErrDuplicate is returned when creating a record whose ID already exists.
var ErrDuplicate = errors.New("duplicate id")

func errDuplicate(kind, id string) error {
	return errors.Wrapf(ErrDuplicate, "%s %s", kind, id)
}
