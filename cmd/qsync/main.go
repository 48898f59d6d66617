// Qsync derives IDE project structure from a Bazel workspace and keeps the
// artifacts of edited files built.
package main

import "github.com/albertocavalcante/qsync/cmd/qsync/internal/cli"

func main() {
	cli.Execute()
}
