package history

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/metainfo/pkg/pagination"
	"github.com/JaimeStill/metainfo/pkg/query"
	"github.com/JaimeStill/metainfo/pkg/repository"
)

var projection = query.
	NewProjection("public", "outputs", "o").
	Map("id", "id").
	Map("filename", "filename").
	Map("subfolder", "subfolder").
	Map("positive", "positive").
	Map("negative", "negative").
	Map("seed", "seed").
	Map("width", "width").
	Map("height", "height").
	Map("steps", "steps").
	Map("cfg", "cfg").
	Map("clip_skip", "clip_skip").
	Map("saved_at", "saved_at")

var defaultSort = pagination.SortField{Field: "saved_at", Descending: true}

// searchFields are matched case-insensitively by PageRequest.Search.
var searchFields = []string{"positive", "negative", "filename"}

// Filters narrows history queries. Nil fields are ignored; Seed and
// Subfolder match exactly, Filename matches as a substring.
type Filters struct {
	Seed      *int64  `json:"seed,omitempty"`
	Subfolder *string `json:"subfolder,omitempty"`
	Filename  *string `json:"filename,omitempty"`
}

// Apply adds the filter conditions to b.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	query.Equals(b, "seed", f.Seed)
	query.Equals(b, "subfolder", f.Subfolder)
	return b.Contains("filename", f.Filename)
}

// FiltersFromQuery reads seed, subfolder and filename from URL query values.
// A seed that does not parse is ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("seed"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.Seed = &v
		}
	}

	if values.Has("subfolder") {
		sub := values.Get("subfolder")
		f.Subfolder = &sub
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	return f
}

func scanOutput(s repository.Scanner) (Output, error) {
	var o Output
	err := s.Scan(
		&o.ID,
		&o.Filename,
		&o.Subfolder,
		&o.Positive,
		&o.Negative,
		&o.Seed,
		&o.Width,
		&o.Height,
		&o.Steps,
		&o.CFG,
		&o.ClipSkip,
		&o.SavedAt,
	)
	return o, err
}
