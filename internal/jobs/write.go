// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"io"

	xglog "github.com/4n4n4s/enigma2jellyfin/internal/log"
	"github.com/google/renameio/v2"
)

// writeAtomic writes an artifact via a temp file and an atomic rename, so a
// failure mid-serialization never truncates a previously valid file and the
// HTTP server never observes a partial write.
func writeAtomic(ctx context.Context, path string, write func(io.Writer) error) error {
	logger := xglog.FromContext(ctx)

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file for %s: %w", path, err)
	}
	defer func() {
		// No-op once committed; removes the temp file on the error paths.
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("cleanup pending file")
		}
	}()

	if err := write(pending); err != nil {
		return err
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}
