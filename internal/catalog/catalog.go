package catalog

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"fknsrs.biz/p/vidvault/models"
)

var ErrNotFound = fmt.Errorf("video not found")

var (
	bucketName  = []byte("catalog")
	documentKey = []byte("videos")
)

// document is the single persisted value: the whole catalog, in insertion
// order. Every write is load-document, mutate, save-document; bbolt
// serializes the writers so the document can never tear, but two overlapped
// logical updates still resolve last-writer-wins.
type document struct {
	Videos []models.Video `json:"videos"`
}

type Store struct {
	db *bbolt.DB
}

// Open creates or opens the catalog file.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog.Open: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog.Open: could not create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func load(tx *bbolt.Tx) (*document, error) {
	var doc document

	b := tx.Bucket(bucketName)
	if b == nil {
		return &doc, nil
	}

	d := b.Get(documentKey)
	if d == nil {
		return &doc, nil
	}

	if err := json.Unmarshal(d, &doc); err != nil {
		return nil, fmt.Errorf("catalog.load: %w", err)
	}

	return &doc, nil
}

func save(tx *bbolt.Tx, doc *document) error {
	d, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("catalog.save: %w", err)
	}

	if err := tx.Bucket(bucketName).Put(documentKey, d); err != nil {
		return fmt.Errorf("catalog.save: %w", err)
	}

	return nil
}

// All returns every record in insertion order.
func (s *Store) All() ([]models.Video, error) {
	var videos []models.Video

	if err := s.db.View(func(tx *bbolt.Tx) error {
		doc, err := load(tx)
		if err != nil {
			return err
		}

		videos = doc.Videos

		return nil
	}); err != nil {
		return nil, fmt.Errorf("catalog.Store.All: %w", err)
	}

	return videos, nil
}

func (s *Store) Get(id string) (*models.Video, error) {
	var found *models.Video

	if err := s.db.View(func(tx *bbolt.Tx) error {
		doc, err := load(tx)
		if err != nil {
			return err
		}

		for i := range doc.Videos {
			if doc.Videos[i].ID == id {
				v := doc.Videos[i]
				found = &v
				return nil
			}
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("catalog.Store.Get: %w", err)
	}

	if found == nil {
		return nil, fmt.Errorf("catalog.Store.Get: %q: %w", id, ErrNotFound)
	}

	return found, nil
}

func (s *Store) Insert(video models.Video) error {
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		doc, err := load(tx)
		if err != nil {
			return err
		}

		doc.Videos = append(doc.Videos, video)

		return save(tx, doc)
	}); err != nil {
		return fmt.Errorf("catalog.Store.Insert: %w", err)
	}

	return nil
}

// Fields carries a partial update; nil members are left alone.
type Fields struct {
	Title       *string
	Description *string
	Tags        *[]string
	HasAudio    *bool
}

func (s *Store) Update(id string, fields Fields) (*models.Video, error) {
	var updated *models.Video

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		doc, err := load(tx)
		if err != nil {
			return err
		}

		for i := range doc.Videos {
			if doc.Videos[i].ID != id {
				continue
			}

			if fields.Title != nil {
				doc.Videos[i].Title = *fields.Title
			}
			if fields.Description != nil {
				doc.Videos[i].Description = *fields.Description
			}
			if fields.Tags != nil {
				doc.Videos[i].Tags = *fields.Tags
			}
			if fields.HasAudio != nil {
				doc.Videos[i].HasAudio = *fields.HasAudio
			}

			v := doc.Videos[i]
			updated = &v

			return save(tx, doc)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("catalog.Store.Update: %w", err)
	}

	if updated == nil {
		return nil, fmt.Errorf("catalog.Store.Update: %q: %w", id, ErrNotFound)
	}

	return updated, nil
}

func (s *Store) Delete(id string) error {
	var found bool

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		doc, err := load(tx)
		if err != nil {
			return err
		}

		for i := range doc.Videos {
			if doc.Videos[i].ID == id {
				doc.Videos = append(doc.Videos[:i], doc.Videos[i+1:]...)
				found = true
				return save(tx, doc)
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("catalog.Store.Delete: %w", err)
	}

	if !found {
		return fmt.Errorf("catalog.Store.Delete: %q: %w", id, ErrNotFound)
	}

	return nil
}
