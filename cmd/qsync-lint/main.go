// Qsync-lint runs the repository's static analyzers.
//
//	go run ./cmd/qsync-lint ./...
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/albertocavalcante/qsync/tools/lint"
)

func main() {
	multichecker.Main(lint.Analyzers()...)
}
