package sqlite

import (
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// classify maps SQLite constraint failures onto the store's error kinds, so
// that a writer losing a race on a unique name sees the same error as one
// rejected by a pre-check. Other errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %s", types.ErrDuplicateName, se.Error())
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %s", types.ErrNotFound, se.Error())
	}
	// Primary result code without the extended part.
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return fmt.Errorf("%w: %s", types.ErrDuplicateName, msg)
		case strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return fmt.Errorf("%w: %s", types.ErrNotFound, msg)
		}
	}
	return err
}

// scoped classifies err and, when it is a constraint failure, attributes it
// to the submitted field that caused it.
func scoped(field string, err error) error {
	classified := classify(err)
	if classified == err {
		return err
	}
	return types.WithField(field, classified)
}
