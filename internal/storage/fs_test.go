package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewFSStore(base)
	require.NoError(t, err)

	key, err := s.Put(ctx, "uploads/u1/plan.csv", strings.NewReader("fan,tartib\n"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/u1/plan.csv", key)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "fan,tartib\n", string(body))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStoreKeepsKeysInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewFSStore(filepath.Join(base, "blobs"))
	require.NoError(t, err)

	key, err := s.Put(ctx, "../../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.txt", key)
	_, err = os.Stat(filepath.Join(base, "blobs", "escape.txt"))
	assert.NoError(t, err)

	_, err = s.Put(ctx, "", strings.NewReader("x"))
	assert.Error(t, err)
}
