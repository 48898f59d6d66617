package session

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/qsync/pkg/snapshot"
)

// readVCSState records the git revision of the workspace, if it is a git
// checkout. Anything unreadable yields nil.
func readVCSState(root string) *snapshot.VCSState {
	gitDir := filepath.Join(root, ".git")
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return nil
	}
	rev := strings.TrimSpace(string(head))
	if ref, ok := strings.CutPrefix(rev, "ref: "); ok {
		b, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref)))
		if err != nil {
			return &snapshot.VCSState{WorkspaceID: root}
		}
		rev = strings.TrimSpace(string(b))
	}
	return &snapshot.VCSState{WorkspaceID: root, UpstreamRevision: rev}
}
