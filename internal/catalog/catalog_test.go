package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fknsrs.biz/p/vidvault/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func makeVideo(id, title string) models.Video {
	return models.Video{
		ID:           id,
		Title:        title,
		Path:         id + ".mp4",
		CreationDate: time.Now().UTC(),
		Tags:         []string{},
	}
}

func TestInsertAndGet(t *testing.T) {
	a := assert.New(t)

	s := openStore(t)

	require.NoError(t, s.Insert(makeVideo("v1", "first")))

	v, err := s.Get("v1")
	a.NoError(err)
	a.Equal("first", v.Title)
	a.Equal("v1.mp4", v.Path)
}

func TestGetMissing(t *testing.T) {
	a := assert.New(t)

	s := openStore(t)

	_, err := s.Get("missing")
	a.ErrorIs(err, ErrNotFound)
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	a := assert.New(t)

	s := openStore(t)

	for _, id := range []string{"v1", "v2", "v3"} {
		require.NoError(t, s.Insert(makeVideo(id, id)))
	}

	videos, err := s.All()
	a.NoError(err)
	require.Len(t, videos, 3)
	a.Equal("v1", videos[0].ID)
	a.Equal("v2", videos[1].ID)
	a.Equal("v3", videos[2].ID)
}

func TestUpdatePartialFields(t *testing.T) {
	a := assert.New(t)

	s := openStore(t)
	require.NoError(t, s.Insert(makeVideo("v1", "first")))

	title := "renamed"
	v, err := s.Update("v1", Fields{Title: &title})
	a.NoError(err)
	a.Equal("renamed", v.Title)
	a.Equal("v1.mp4", v.Path, "path is immutable; rename only changes the title")

	tags := []string{"a", "b"}
	desc := "hello"
	v, err = s.Update("v1", Fields{Description: &desc, Tags: &tags})
	a.NoError(err)
	a.Equal("renamed", v.Title)
	a.Equal("hello", v.Description)
	a.Equal([]string{"a", "b"}, v.Tags)

	_, err = s.Update("missing", Fields{Title: &title})
	a.ErrorIs(err, ErrNotFound)
}

func TestDeleteTwice(t *testing.T) {
	a := assert.New(t)

	s := openStore(t)
	require.NoError(t, s.Insert(makeVideo("v1", "first")))

	a.NoError(s.Delete("v1"))

	err := s.Delete("v1")
	a.ErrorIs(err, ErrNotFound)

	_, err = s.Get("v1")
	a.ErrorIs(err, ErrNotFound)
}

func TestReopenKeepsDocument(t *testing.T) {
	a := assert.New(t)

	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(makeVideo("v1", "first")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("v1")
	a.NoError(err)
	a.Equal("first", v.Title)
}
