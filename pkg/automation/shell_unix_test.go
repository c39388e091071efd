//go:build linux || darwin

package automation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
)

func TestShell_PersistsWorkingDir(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	sh := PosixShell("/bin/sh")

	out, err := sh.Run(context.Background(), "cd "+dir)
	require.NoError(t, err)
	assert.Equal(t, "Current directory: "+dir, out)
	assert.Equal(t, dir, sh.Dir())

	out, err = sh.Run(context.Background(), "echo hi > note.txt && cat note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.FileExists(t, filepath.Join(dir, "note.txt"))
}

func TestShell_Failure(t *testing.T) {
	sh := PosixShell("/bin/sh")
	out, err := sh.Run(context.Background(), "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "broken", out)
	assert.Equal(t, api.KindUnknown, api.Classify(err).Kind)
}

func TestShell_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := PosixShell("/bin/sh").Run(ctx, "sleep 5")
	assert.Equal(t, api.KindTimeout, api.Classify(err).Kind)
}
