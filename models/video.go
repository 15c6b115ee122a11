package models

import (
	"time"
)

// Video is one catalog entry. ID is assigned when the video is ingested and
// never changes; ingested files are stored as "{id}{ext}" so renaming a
// video only ever touches Title. Files adopted from disk keep the names
// they arrived with.
type Video struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Path             string    `json:"path"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	CreationDate     time.Time `json:"creation_date"`
	Description      string    `json:"description"`
	Tags             []string  `json:"tags"`
	HasAudio         bool      `json:"has_audio"`
}

// ThumbnailName returns the filename of the video's thumbnail under the
// thumbnail root.
func (v Video) ThumbnailName() string {
	return v.ID + ".jpg"
}
