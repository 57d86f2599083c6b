package artifacts

import (
	"context"
	"errors"
	"strings"
	"time"

	"promptduel/internal/logging"
	"promptduel/internal/tactile"
)

// GitHead returns the HEAD commit of the repository at dir, or "unknown".
func GitHead(ctx context.Context, exec tactile.Executor, dir string) string {
	res, err := exec.Execute(ctx, tactile.Command{
		Binary:           "git",
		Arguments:        []string{"rev-parse", "HEAD"},
		WorkingDirectory: dir,
		Timeout:          10 * time.Second,
	})
	if err != nil || !res.Succeeded() {
		if err == nil {
			err = errors.New(res.Detail())
		}
		logging.TournamentDebug("git head unavailable in %s: %v", dir, err)
		return "unknown"
	}
	head := strings.TrimSpace(res.Stdout)
	if head == "" {
		return "unknown"
	}
	return head
}
