package probes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Readiness(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "ready")

	require.NoError(t, MarkReady(fileName))
	assert.FileExists(t, fileName)

	require.NoError(t, MarkNotReady(fileName))
	assert.NoFileExists(t, fileName)

	// removing twice is not an error
	require.NoError(t, MarkNotReady(fileName))
}

func Test_RunLiveness(t *testing.T) {
	// given
	fileName := filepath.Join(t.TempDir(), "live")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// when
	go func() {
		done <- RunLiveness(ctx, fileName, 10*time.Millisecond)
	}()

	// then
	require.Eventually(t, func() bool {
		_, err := os.Stat(fileName)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("liveness loop did not stop")
	}
	assert.NoFileExists(t, fileName)
}
