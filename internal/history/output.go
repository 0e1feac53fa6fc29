// Package history records saved outputs in PostgreSQL and serves them back
// as a searchable list.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/metainfo/pkg/sidecar"
)

// Output is one saved image and the generation parameters it was saved with.
type Output struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Subfolder string    `json:"subfolder"`
	Positive  string    `json:"positive"`
	Negative  string    `json:"negative"`
	Seed      int64     `json:"seed"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Steps     int       `json:"steps"`
	CFG       float64   `json:"cfg"`
	ClipSkip  int       `json:"clip_skip"`
	SavedAt   time.Time `json:"saved_at"`
}

// CreateCommand carries one saved file. Saving the same subfolder and
// filename again replaces the earlier row.
type CreateCommand struct {
	Filename  string
	Subfolder string
	Record    sidecar.Record
	SavedAt   time.Time
}
