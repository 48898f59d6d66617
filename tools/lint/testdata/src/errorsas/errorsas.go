package errorsas

import (
	"errors"
	"io/fs"
)

func missingFile(err error) string {
	var pathErr fs.PathError
	if errors.As(err, pathErr) { // want "second argument to errors.As must be a non-nil pointer to either a type that implements error, or to any interface type"
		return pathErr.Path
	}
	return ""
}

func missingPath(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return ""
}
