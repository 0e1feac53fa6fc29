package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/metainfo/internal/history"
	"github.com/JaimeStill/metainfo/pkg/datefmt"
	"github.com/JaimeStill/metainfo/pkg/folders"
	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/pngtext"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
	"github.com/JaimeStill/metainfo/pkg/storage"
)

// Save defaults.
const (
	DefaultPrefix     = "ComfyUI"
	DefaultDateFormat = "%Y-%m-%d"
	batchVar          = "%batch_num%"
)

// placeholders are substituted after date expansion and must reach it intact.
var placeholders = []string{
	batchVar, "%width%", "%height%", "%year%", "%month%", "%day%", "%hour%", "%minute%", "%second%",
}

// Save writes a batch of images under the output root and records their
// generation parameters in the directory's sidecar.
type Save struct {
	folders         *folders.Resolver
	sidecar         *sidecar.Store
	archive         storage.System
	history         Recorder
	level           int
	disableMetadata bool
	prefix          string
	dateFormat      string
	logger          *slog.Logger
	now             func() time.Time
}

// NewSave creates the AdvancedSaveImage node.
func NewSave(deps Deps) *Save {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefix := deps.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	dateFormat := deps.DateFormat
	if dateFormat == "" {
		dateFormat = DefaultDateFormat
	}

	return &Save{
		folders:         deps.Folders,
		sidecar:         deps.Sidecar,
		archive:         deps.Archive,
		history:         deps.History,
		level:           deps.CompressLevel,
		disableMetadata: deps.DisableMetadata,
		prefix:          prefix,
		dateFormat:      dateFormat,
		logger:          logger.With("node", "AdvancedSaveImage"),
		now:             now,
	}
}

func (s *Save) Spec() node.Spec {
	return node.Spec{
		Name:        "AdvancedSaveImage",
		DisplayName: "AdvancedSaveImage",
		Category:    Category,
		Description: "Saves the input images to the output directory.",
		Required: []node.Field{
			{Name: "images", Kind: node.KindImage, Tooltip: "The images to save."},
			{Name: "filename_prefix", Kind: node.KindString, Default: s.prefix, Tooltip: "The prefix for the file to save."},
			{Name: "date_directory_format", Kind: node.KindString, Default: s.dateFormat, Tooltip: "Date format for directory name. Use strftime format (%Y,%m,%d). Leave empty to disable date directory."},
		},
		Optional: []node.Field{
			{Name: "clip_skip", Kind: node.KindInt, Default: int64(0)},
			{Name: "positive", Kind: node.KindString, Default: ""},
			{Name: "negative", Kind: node.KindString, Default: ""},
			{Name: "seed", Kind: node.KindInt, Default: int64(0)},
			{Name: "width", Kind: node.KindInt, Default: int64(0)},
			{Name: "height", Kind: node.KindInt, Default: int64(0)},
			{Name: "steps", Kind: node.KindInt, Default: int64(0)},
			{Name: "cfg", Kind: node.KindFloat, Default: 0.0},
		},
		Hidden: []node.Field{
			{Name: "prompt", Kind: node.KindPrompt},
			{Name: "extra_pnginfo", Kind: node.KindExtraPNGInfo},
		},
		OutputNode: true,
	}
}

// saved is one file produced by Execute.
type saved struct {
	name string
	data []byte
}

func (s *Save) Execute(ctx context.Context, args node.Args) (*node.Result, error) {
	images := args.Images("images")
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	now := s.now()
	params := paramsFrom(args)
	seed := args.Int("seed")

	outDir := s.folders.OutputDir()
	var subPrefix string

	if dateFmt := args.String("date_directory_format"); strings.TrimSpace(dateFmt) != "" {
		subPrefix = datefmt.Expand(dateFmt, now)
	}

	prefix := strings.ReplaceAll(datefmt.ExpandExcept(args.String("filename_prefix"), now, placeholders...), `\`, "/")
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		subPrefix = path.Join(subPrefix, prefix[:i])
		prefix = prefix[i+1:]
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: no file name after the last separator", ErrInvalidPrefix)
	}

	if subPrefix != "" {
		dir := filepath.Join(outDir, filepath.FromSlash(subPrefix))
		if !folders.Within(outDir, dir) {
			return nil, fmt.Errorf("%w: %s", folders.ErrOutsideOutput, subPrefix)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		outDir = dir
	}

	sp, err := folders.SaveImagePath(prefix, outDir, images[0].Width, images[0].Height, now)
	if err != nil {
		return nil, fmt.Errorf("allocate save path: %w", err)
	}
	subfolder := strings.Trim(path.Join(subPrefix, sp.Subfolder), "/")
	if subfolder == "." {
		subfolder = ""
	}

	encoded, err := s.encode(ctx, images, s.chunks(args))
	if err != nil {
		return nil, err
	}

	files := make([]saved, len(encoded))
	records := make(map[string]sidecar.Record, len(encoded))
	results := make([]node.Output, len(encoded))

	for i, data := range encoded {
		name := strings.ReplaceAll(sp.Filename, batchVar, strconv.Itoa(i))
		file := sp.File(name, i, seed)

		if err := atomic.WriteFile(filepath.Join(sp.Folder, file), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("write %s: %w", file, err)
		}

		rec := params
		rec.Timestamp = s.now().Format(sidecar.TimestampLayout)
		records[file] = rec

		files[i] = saved{name: file, data: data}
		results[i] = node.Output{Filename: file, Subfolder: subfolder, Type: folders.TypeOutput}
	}

	if err := s.sidecar.Write(sp.Folder, records); err != nil {
		s.logger.Error("failed to save metadata", "folder", sp.Folder, "error", err)
	}

	s.logger.Info("images saved", "count", len(files), "folder", sp.Folder, "first", files[0].name)

	s.archiveFiles(ctx, sp.Folder, subfolder, files)
	s.record(ctx, subfolder, files, records, now)

	return &node.Result{UI: &node.UI{Images: results}}, nil
}

// encode renders every frame to PNG with chunks embedded, preserving order.
func (s *Save) encode(ctx context.Context, images []imaging.Frame, chunks []pngtext.Chunk) ([][]byte, error) {
	out := make([][]byte, len(images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, frame := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := imaging.EncodeBytes(frame, s.level)
			if err != nil {
				return fmt.Errorf("encode image %d: %w", i, err)
			}

			data, err = pngtext.EmbedBytes(data, chunks)
			if err != nil {
				return fmt.Errorf("embed metadata in image %d: %w", i, err)
			}

			out[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// chunks returns the text chunks embedded in every image: the workflow
// graph under "prompt" and one chunk per extra_pnginfo key, each value
// JSON-encoded.
func (s *Save) chunks(args node.Args) []pngtext.Chunk {
	if s.disableMetadata {
		return nil
	}

	var chunks []pngtext.Chunk

	if prompt, ok := args.Value("prompt"); ok && prompt != nil {
		if text, err := jsonText(prompt); err == nil {
			chunks = append(chunks, pngtext.Chunk{Keyword: "prompt", Text: text})
		} else {
			s.logger.Warn("prompt not embedded", "error", err)
		}
	}

	extra, _ := args.Value("extra_pnginfo")
	if info, ok := extra.(map[string]any); ok {
		for _, key := range slices.Sorted(maps.Keys(info)) {
			if !pngtext.ValidKeyword(key) {
				s.logger.Warn("extra_pnginfo key skipped", "key", key)
				continue
			}
			text, err := jsonText(info[key])
			if err != nil {
				s.logger.Warn("extra_pnginfo value not embedded", "key", key, "error", err)
				continue
			}
			chunks = append(chunks, pngtext.Chunk{Keyword: key, Text: text})
		}
	}

	return chunks
}

func (s *Save) archiveFiles(ctx context.Context, folder, subfolder string, files []saved) {
	if s.archive == nil {
		return
	}

	for _, f := range files {
		key := s.archive.Key(subfolder, f.name)
		if err := s.archive.Upload(ctx, key, bytes.NewReader(f.data), "image/png"); err != nil {
			s.logger.Warn("archive upload failed", "key", key, "error", err)
		}
	}

	meta, err := os.ReadFile(sidecar.Path(folder))
	if err != nil {
		s.logger.Warn("metadata not archived", "folder", folder, "error", err)
		return
	}

	key := s.archive.Key(subfolder, sidecar.FileName)
	if err := s.archive.Upload(ctx, key, bytes.NewReader(meta), "application/json"); err != nil {
		s.logger.Warn("archive upload failed", "key", key, "error", err)
	}
}

func (s *Save) record(ctx context.Context, subfolder string, files []saved, records map[string]sidecar.Record, now time.Time) {
	if s.history == nil {
		return
	}

	cmds := make([]history.CreateCommand, len(files))
	for i, f := range files {
		cmds[i] = history.CreateCommand{
			Filename:  f.name,
			Subfolder: subfolder,
			Record:    records[f.name],
			SavedAt:   now,
		}
	}

	if err := s.history.Record(ctx, cmds); err != nil {
		s.logger.Warn("history not recorded", "count", len(cmds), "error", err)
	}
}

// paramsFrom keeps the non-zero generation parameters of args.
func paramsFrom(args node.Args) sidecar.Record {
	return sidecar.Record{
		ClipSkip: int(args.Int("clip_skip")),
		Positive: args.String("positive"),
		Negative: args.String("negative"),
		Seed:     args.Int("seed"),
		Width:    int(args.Int("width")),
		Height:   int(args.Int("height")),
		Steps:    int(args.Int("steps")),
		CFG:      args.Float("cfg"),
	}
}

func jsonText(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
