// Package probes implements file based readiness and liveness probes for exec-style health checks.
package probes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// MarkReady creates the readiness file.
func MarkReady(fileName string) error {
	return touch(fileName)
}

// MarkNotReady removes the readiness file, ignoring a missing file.
func MarkNotReady(fileName string) error {
	if err := os.Remove(fileName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove readiness file: %w", err)
	}
	return nil
}

// RunLiveness touches fileName every interval until ctx is done, then removes it.
func RunLiveness(ctx context.Context, fileName string, interval time.Duration) error {
	if err := touch(fileName); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = os.Remove(fileName)
			return nil
		case <-ticker.C:
			if err := touch(fileName); err != nil {
				return err
			}
		}
	}
}

func touch(fileName string) error {
	now := time.Now()
	if err := os.Chtimes(fileName, now, now); err == nil {
		return nil
	}
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("failed to create probe file %s: %w", fileName, err)
	}
	return f.Close()
}
