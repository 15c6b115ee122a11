package uniquename

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
}

func TestNext(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()

	name, err := Next(dir, "clip.webm")
	a.NoError(err)
	a.Equal("clip.webm", name)

	touch(t, dir, "clip.webm")

	name, err = Next(dir, "clip.webm")
	a.NoError(err)
	a.Equal("clip_1.webm", name)

	touch(t, dir, "clip_1.webm")
	touch(t, dir, "clip_2.webm")

	name, err = Next(dir, "clip.webm")
	a.NoError(err)
	a.Equal("clip_3.webm", name)
}

func TestNextNoExtension(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	touch(t, dir, "clip")

	name, err := Next(dir, "clip")
	a.NoError(err)
	a.Equal("clip_1", name)
}

func TestNextGapsAreNotReused(t *testing.T) {
	a := assert.New(t)

	// scanning starts at 1, so a free slot below an occupied one is taken
	// first
	dir := t.TempDir()
	touch(t, dir, "clip.webm")
	touch(t, dir, "clip_2.webm")

	name, err := Next(dir, "clip.webm")
	a.NoError(err)
	a.Equal("clip_1.webm", name)
}
