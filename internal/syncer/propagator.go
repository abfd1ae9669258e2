package syncer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agentmemory/amp/internal/errors"
)

// Propagator performs the read-source/write-target operation.
type Propagator struct{}

// NewPropagator creates a propagator.
func NewPropagator() *Propagator {
	return &Propagator{}
}

// Sync overwrites target with the full content of source, creating the
// target's parent directories as needed.
//
// A missing source is not an error: the truth file may legitimately not
// exist yet. It is logged at warning level and the target is left
// untouched (no empty target is created).
func (p *Propagator) Sync(source, target string) error {
	content, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("source file does not exist", slog.String("source", source))
			return nil
		}
		return errors.New(errors.ErrCodeSyncFailed,
			fmt.Sprintf("read %s", source), err).
			WithDetail("source", source).
			WithDetail("target", target)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.New(errors.ErrCodeSyncFailed,
			fmt.Sprintf("create parent directory for %s", target), err).
			WithDetail("source", source).
			WithDetail("target", target)
	}

	if err := os.WriteFile(target, content, 0o644); err != nil {
		return errors.New(errors.ErrCodeSyncFailed,
			fmt.Sprintf("write %s", target), err).
			WithDetail("source", source).
			WithDetail("target", target)
	}

	return nil
}
