package artifactbuild

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"
)

// ErrNoSnapshot is returned when no sync has completed yet.
var ErrNoSnapshot = errors.New("project has not been synced yet")

// UnresolvedFileError lists requested files no target owns. The whole
// batch is rejected before anything is built.
type UnresolvedFileError struct {
	Paths []string
}

func (e *UnresolvedFileError) Error() string {
	if len(e.Paths) == 1 {
		return fmt.Sprintf("File %s does not seem to be part of a build rule that the IDE supports. "+
			"If this is a newly added supported rule, please re-sync your project.", e.Paths[0])
	}
	return fmt.Sprintf("Files %s do not seem to be part of a build rule that the IDE supports. "+
		"If these are newly added supported rules, please re-sync your project.", strings.Join(e.Paths, ", "))
}

// BuildFailureError reports a build that exited unsuccessfully. It is a
// warning: artifacts the build did produce are still used.
type BuildFailureError struct {
	ExitCode        int
	Targets         []label.Label
	BuildFileErrors bool
}

func (e *BuildFailureError) Error() string {
	if e.BuildFileErrors {
		return fmt.Sprintf("There were errors in BUILD files while building %d targets (exit code %d).",
			len(e.Targets), e.ExitCode)
	}
	return fmt.Sprintf("There were build errors while building %d targets (exit code %d). Results may be incomplete.",
		len(e.Targets), e.ExitCode)
}
