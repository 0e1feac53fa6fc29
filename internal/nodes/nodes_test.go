package nodes_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/metainfo/internal/history"
	"github.com/JaimeStill/metainfo/internal/nodes"
	"github.com/JaimeStill/metainfo/pkg/folders"
	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/lifecycle"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/pngtext"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
	"github.com/JaimeStill/metainfo/pkg/storage"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	fixed   = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
)

type archive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *archive) Start(*lifecycle.Coordinator) error { return nil }

func (a *archive) Key(subfolder, filename string) string {
	return storage.Key("outputs", subfolder, filename)
}

func (a *archive) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	if _, err := io.ReadAll(r); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return a.err
}

func (a *archive) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}

func (a *archive) Exists(context.Context, string) (bool, error) { return false, nil }

func (a *archive) Ready() bool { return true }

type recorder struct {
	cmds []history.CreateCommand
	err  error
}

func (r *recorder) Record(_ context.Context, cmds []history.CreateCommand) error {
	r.cmds = append(r.cmds, cmds...)
	return r.err
}

type env struct {
	root    string
	folders *folders.Resolver
	sidecar *sidecar.Store
	reg     *node.Registry
}

func setup(t *testing.T, deps nodes.Deps) env {
	t.Helper()

	root := t.TempDir()
	res := folders.New(
		filepath.Join(root, "output"),
		filepath.Join(root, "input"),
		filepath.Join(root, "temp"),
	)
	if err := res.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	store := sidecar.New(discard)
	deps.Folders = res
	deps.Sidecar = store
	deps.Logger = discard
	deps.Now = func() time.Time { return fixed }
	if deps.CompressLevel == 0 {
		deps.CompressLevel = imaging.DefaultCompressLevel
	}

	reg := node.NewRegistry(discard)
	if err := nodes.Register(reg, deps); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	return env{root: root, folders: res, sidecar: store, reg: reg}
}

func frames(n, w, h int) []imaging.Frame {
	out := make([]imaging.Frame, n)
	for i := range out {
		f := imaging.NewFrame(w, h)
		for p := range f.Pix {
			f.Pix[p] = float32(i+1) / float32(n+1)
		}
		out[i] = f
	}
	return out
}

func writePNG(t *testing.T, path string, chunks []pngtext.Chunk) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	data, err := pngtext.EmbedBytes(buf.Bytes(), chunks)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegisterAll(t *testing.T) {
	e := setup(t, nodes.Deps{})

	want := map[string]string{
		"AdvancedLoadImage": "AdvancedLoadImage",
		"AdvancedSaveImage": "AdvancedSaveImage",
		"MetainfoExtractor": "PNG Info Loader (DIY)",
		"UnlimitLoadImage":  "UnlimitLoadImage",
	}

	specs := e.reg.Specs()
	if len(specs) != len(want) {
		t.Fatalf("len(Specs()) = %d, want %d", len(specs), len(want))
	}
	for _, s := range specs {
		if want[s.Name] != s.DisplayName {
			t.Errorf("%s display name = %q, want %q", s.Name, s.DisplayName, want[s.Name])
		}
		if s.Category != nodes.Category {
			t.Errorf("%s category = %q", s.Name, s.Category)
		}
		if s.OutputNode != (s.Name == "AdvancedSaveImage") {
			t.Errorf("%s output node = %v", s.Name, s.OutputNode)
		}
	}

	if err := nodes.Register(e.reg, nodes.Deps{Folders: e.folders, Sidecar: e.sidecar}); !errors.Is(err, node.ErrDuplicate) {
		t.Errorf("second Register() error = %v, want ErrDuplicate", err)
	}
}

func TestSave(t *testing.T) {
	e := setup(t, nodes.Deps{})
	ctx := context.Background()

	args := node.Args{
		"images":   frames(2, 8, 6),
		"positive": "a cat",
		"negative": "blurry",
		"seed":     int64(0),
		"steps":    int64(20),
		"cfg":      7.5,
		"prompt": map[string]any{
			"3": map[string]any{"class_type": "KSampler", "inputs": map[string]any{"positive": []any{"6", 0}}},
			"6": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "a cat"}},
		},
		"extra_pnginfo": map[string]any{"workflow": map[string]any{"version": 0.4}},
	}

	res, err := e.reg.Run(ctx, "AdvancedSaveImage", args)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.UI == nil || len(res.UI.Images) != 2 {
		t.Fatalf("UI = %+v, want 2 images", res.UI)
	}

	wantNames := []string{"ComfyUI_00001_0.png", "ComfyUI_00002_0.png"}
	dir := filepath.Join(e.folders.OutputDir(), "2024-01-02")

	for i, out := range res.UI.Images {
		if out.Filename != wantNames[i] {
			t.Errorf("image %d filename = %q, want %q", i, out.Filename, wantNames[i])
		}
		if out.Subfolder != "2024-01-02" || out.Type != folders.TypeOutput {
			t.Errorf("image %d = %+v", i, out)
		}

		data, err := os.ReadFile(filepath.Join(dir, out.Filename))
		if err != nil {
			t.Fatalf("read saved image: %v", err)
		}

		chunks, err := pngtext.ReadBytes(data)
		if err != nil {
			t.Fatalf("ReadBytes() error = %v", err)
		}
		if graph, ok := chunks.Get("prompt"); !ok || !strings.Contains(graph, `"KSampler"`) {
			t.Errorf("prompt chunk = %q, %v", graph, ok)
		}
		if wf, ok := chunks.Get("workflow"); !ok || wf != `{"version":0.4}` {
			t.Errorf("workflow chunk = %q, %v", wf, ok)
		}

		rec := e.sidecar.Read(dir, out.Filename)
		want := sidecar.Record{
			Positive:  "a cat",
			Negative:  "blurry",
			Steps:     20,
			CFG:       7.5,
			Timestamp: fixed.Format(sidecar.TimestampLayout),
		}
		if rec != want {
			t.Errorf("record = %+v, want %+v", rec, want)
		}
	}

	raw, err := os.ReadFile(sidecar.Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), `"seed"`) || strings.Contains(string(raw), `"clip_skip"`) {
		t.Errorf("zero parameters stored:\n%s", raw)
	}
}

func TestSaveCounterAndMerge(t *testing.T) {
	e := setup(t, nodes.Deps{})
	ctx := context.Background()

	run := func(seed int64) string {
		t.Helper()
		res, err := e.reg.Run(ctx, "AdvancedSaveImage", node.Args{
			"images":                frames(1, 4, 4),
			"seed":                  seed,
			"date_directory_format": "",
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return res.UI.Images[0].Filename
	}

	first := run(7)
	second := run(8)

	if first != "ComfyUI_00001_7.png" || second != "ComfyUI_00002_8.png" {
		t.Errorf("files = %q, %q", first, second)
	}

	out := e.folders.OutputDir()
	if got := e.sidecar.Read(out, first).Seed; got != 7 {
		t.Errorf("first seed = %d, want 7", got)
	}
	if got := e.sidecar.Read(out, second).Seed; got != 8 {
		t.Errorf("second seed = %d, want 8", got)
	}
}

func TestSavePrefixes(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		dateFmt   string
		batch     int
		wantFiles []string
		wantSub   string
	}{
		{
			name:      "nested subdirectories",
			prefix:    `people\portraits/img`,
			dateFmt:   "%Y",
			batch:     1,
			wantFiles: []string{"img_00001_0.png"},
			wantSub:   "2024/people/portraits",
		},
		{
			name:      "batch number",
			prefix:    "frame_%batch_num%",
			batch:     2,
			wantFiles: []string{"frame_0_00001_0.png", "frame_1_00002_0.png"},
		},
		{
			name:      "date in prefix",
			prefix:    "%Y%m%d-run",
			batch:     1,
			wantFiles: []string{"20240102-run_00001_0.png"},
		},
		{
			name:      "blank date format",
			prefix:    "plain",
			dateFmt:   "   ",
			batch:     1,
			wantFiles: []string{"plain_00001_0.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t, nodes.Deps{})

			res, err := e.reg.Run(context.Background(), "AdvancedSaveImage", node.Args{
				"images":                frames(tt.batch, 3, 2),
				"filename_prefix":       tt.prefix,
				"date_directory_format": tt.dateFmt,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			for i, out := range res.UI.Images {
				if out.Filename != tt.wantFiles[i] {
					t.Errorf("file %d = %q, want %q", i, out.Filename, tt.wantFiles[i])
				}
				if out.Subfolder != tt.wantSub {
					t.Errorf("subfolder = %q, want %q", out.Subfolder, tt.wantSub)
				}
				path := filepath.Join(e.folders.OutputDir(), filepath.FromSlash(out.Subfolder), out.Filename)
				if _, err := os.Stat(path); err != nil {
					t.Errorf("saved file missing: %v", err)
				}
			}
		})
	}
}

func TestSaveRejects(t *testing.T) {
	e := setup(t, nodes.Deps{})
	ctx := context.Background()

	_, err := e.reg.Run(ctx, "AdvancedSaveImage", node.Args{
		"images":          frames(1, 2, 2),
		"filename_prefix": "../../escape/img",
	})
	if !errors.Is(err, folders.ErrOutsideOutput) {
		t.Errorf("escaping prefix error = %v, want ErrOutsideOutput", err)
	}

	_, err = e.reg.Run(ctx, "AdvancedSaveImage", node.Args{
		"images":          frames(1, 2, 2),
		"filename_prefix": "dir/",
	})
	if !errors.Is(err, nodes.ErrInvalidPrefix) {
		t.Errorf("trailing separator error = %v, want ErrInvalidPrefix", err)
	}

	_, err = e.reg.Run(ctx, "AdvancedSaveImage", node.Args{"images": []imaging.Frame{}})
	if !errors.Is(err, nodes.ErrNoImages) {
		t.Errorf("empty batch error = %v, want ErrNoImages", err)
	}

	_, err = e.reg.Run(ctx, "AdvancedSaveImage", node.Args{})
	if !errors.Is(err, node.ErrInvalidInput) {
		t.Errorf("missing images error = %v, want ErrInvalidInput", err)
	}
}

func TestSaveDisableMetadata(t *testing.T) {
	e := setup(t, nodes.Deps{DisableMetadata: true})

	res, err := e.reg.Run(context.Background(), "AdvancedSaveImage", node.Args{
		"images":                frames(1, 2, 2),
		"date_directory_format": "",
		"prompt":                map[string]any{"1": map[string]any{}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(e.folders.OutputDir(), res.UI.Images[0].Filename))
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := pngtext.ReadBytes(data)
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks = %+v, want none", chunks)
	}
}

func TestSaveArchiveAndHistory(t *testing.T) {
	arch := &archive{}
	rec := &recorder{}
	e := setup(t, nodes.Deps{Archive: arch, History: rec})

	_, err := e.reg.Run(context.Background(), "AdvancedSaveImage", node.Args{
		"images":   frames(2, 2, 2),
		"seed":     int64(3),
		"positive": "sky",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantKeys := []string{
		"outputs/2024-01-02/ComfyUI_00001_3.png",
		"outputs/2024-01-02/ComfyUI_00002_3.png",
		"outputs/2024-01-02/meta.json",
	}
	if strings.Join(arch.keys, ",") != strings.Join(wantKeys, ",") {
		t.Errorf("archived keys = %v, want %v", arch.keys, wantKeys)
	}

	if len(rec.cmds) != 2 {
		t.Fatalf("recorded %d commands, want 2", len(rec.cmds))
	}
	for _, cmd := range rec.cmds {
		if cmd.Subfolder != "2024-01-02" || cmd.Record.Seed != 3 || cmd.Record.Positive != "sky" {
			t.Errorf("command = %+v", cmd)
		}
		if !cmd.SavedAt.Equal(fixed) {
			t.Errorf("saved at = %v, want %v", cmd.SavedAt, fixed)
		}
	}
}

func TestSaveToleratesArchiveAndHistoryFailures(t *testing.T) {
	e := setup(t, nodes.Deps{
		Archive: &archive{err: errors.New("unreachable")},
		History: &recorder{err: errors.New("database not ready")},
	})

	res, err := e.reg.Run(context.Background(), "AdvancedSaveImage", node.Args{"images": frames(1, 2, 2)})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(res.UI.Images) != 1 {
		t.Errorf("UI images = %d, want 1", len(res.UI.Images))
	}
}

func TestLoad(t *testing.T) {
	e := setup(t, nodes.Deps{})
	ctx := context.Background()

	writePNG(t, filepath.Join(e.folders.InputDir(), "cat_00001_0.png"), nil)

	dated := filepath.Join(e.folders.OutputDir(), "2024-01-02")
	writePNG(t, filepath.Join(dated, "cat_00001_0.png"), nil)
	if err := e.sidecar.Write(dated, map[string]sidecar.Record{
		"cat_00001_0.png": {ClipSkip: -2, Positive: "a cat", Seed: 42, Width: 512, Height: 768, Steps: 30, CFG: 6.5},
	}); err != nil {
		t.Fatal(err)
	}

	res, err := e.reg.Run(ctx, "AdvancedLoadImage", node.Args{"image": "cat_00001_0.png"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Values) != 10 {
		t.Fatalf("len(Values) = %d, want 10", len(res.Values))
	}

	imgs, ok := res.Values[0].([]imaging.Frame)
	if !ok || len(imgs) != 1 || imgs[0].Width != 4 || imgs[0].Height != 3 {
		t.Errorf("IMAGE = %T %v", res.Values[0], ok)
	}
	masks, ok := res.Values[1].([]imaging.Mask)
	if !ok || len(masks) != 1 || masks[0].Width != imaging.EmptyMaskSize {
		t.Errorf("MASK = %T %v", res.Values[1], ok)
	}

	want := []any{int64(-2), "a cat", "", int64(42), int64(512), int64(768), int64(30), 6.5}
	for i, w := range want {
		if res.Values[i+2] != w {
			t.Errorf("output %d = %#v, want %#v", i+2, res.Values[i+2], w)
		}
	}
}

func TestLoadWithoutMetadata(t *testing.T) {
	e := setup(t, nodes.Deps{})
	writePNG(t, filepath.Join(e.folders.TempDir(), "x.png"), nil)

	res, err := e.reg.Run(context.Background(), "AdvancedLoadImage", node.Args{"image": "x.png [temp]"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []any{int64(0), "", "", int64(0), int64(0), int64(0), int64(0), 0.0}
	for i, w := range want {
		if res.Values[i+2] != w {
			t.Errorf("output %d = %#v, want %#v", i+2, res.Values[i+2], w)
		}
	}
}

func TestLoadValidate(t *testing.T) {
	e := setup(t, nodes.Deps{})

	_, err := e.reg.Run(context.Background(), "AdvancedLoadImage", node.Args{"image": "missing.png"})
	if !errors.Is(err, nodes.ErrInvalidImage) || !errors.Is(err, node.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidImage and ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "invalid image file: missing.png") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestLoadOptions(t *testing.T) {
	e := setup(t, nodes.Deps{})
	writePNG(t, filepath.Join(e.folders.InputDir(), "b.png"), nil)
	writePNG(t, filepath.Join(e.folders.InputDir(), "a.png"), nil)
	if err := os.WriteFile(filepath.Join(e.folders.InputDir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := e.reg.Lookup("AdvancedLoadImage")
	if err != nil {
		t.Fatal(err)
	}
	f, _ := n.Spec().Field("image")
	if strings.Join(f.Options, ",") != "a.png,b.png" {
		t.Errorf("options = %v, want [a.png b.png]", f.Options)
	}
}

func TestLoadFingerprint(t *testing.T) {
	e := setup(t, nodes.Deps{})
	writePNG(t, filepath.Join(e.folders.InputDir(), "a.png"), nil)
	args := node.Args{"image": "a.png"}

	first, ok, err := e.reg.Fingerprint("AdvancedLoadImage", args)
	if err != nil || !ok {
		t.Fatalf("Fingerprint() = %q, %v, %v", first, ok, err)
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(first))
	}

	again, _, _ := e.reg.Fingerprint("AdvancedLoadImage", args)
	if again != first {
		t.Error("fingerprint not stable")
	}

	if err := e.sidecar.Write(e.folders.InputDir(), map[string]sidecar.Record{"a.png": {Seed: 1}}); err != nil {
		t.Fatal(err)
	}
	changed, _, _ := e.reg.Fingerprint("AdvancedLoadImage", args)
	if changed == first {
		t.Error("fingerprint unchanged after meta.json was written")
	}

	secret := filepath.Join(filepath.Dir(e.folders.InputDir()), "secret.txt")
	if err := os.WriteFile(secret, []byte("hunter2"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"gone.png", "../secret.txt", "../secret.txt [output]"} {
		fp, ok, err := e.reg.Fingerprint("AdvancedLoadImage", node.Args{"image": name})
		if !errors.Is(err, nodes.ErrInvalidImage) || ok || fp != "" {
			t.Errorf("Fingerprint(%q) = (%q, %v, %v), want ErrInvalidImage", name, fp, ok, err)
		}
	}
}

func TestExtractor(t *testing.T) {
	e := setup(t, nodes.Deps{})
	dir := t.TempDir()

	graph := `{
		"3": {"class_type": "KSampler", "inputs": {"positive": ["6", 0], "negative": ["7", 0]}},
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": ["10", 0]}},
		"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "lowres"}},
		"10": {"class_type": "ShowText|pysssss", "inputs": {"text_0": "a lighthouse"}}
	}`

	tests := []struct {
		name    string
		chunks  []pngtext.Chunk
		wantPos string
		wantNeg string
	}{
		{"embedded graph", []pngtext.Chunk{{Keyword: "prompt", Text: graph}}, "a lighthouse", "lowres"},
		{"no graph", nil, "", ""},
		{"malformed graph", []pngtext.Chunk{{Keyword: "prompt", Text: "{not json"}}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".png")
			writePNG(t, path, tt.chunks)

			res, err := e.reg.Run(context.Background(), "MetainfoExtractor", node.Args{"path": path})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			imgs, ok := res.Values[0].([]imaging.Frame)
			if !ok || len(imgs) != 1 {
				t.Errorf("image = %T", res.Values[0])
			}
			if res.Values[1] != tt.wantPos || res.Values[2] != tt.wantNeg {
				t.Errorf("prompts = %q, %q, want %q, %q", res.Values[1], res.Values[2], tt.wantPos, tt.wantNeg)
			}
		})
	}

	if _, err := e.reg.Run(context.Background(), "MetainfoExtractor", node.Args{"path": filepath.Join(dir, "absent.png")}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestUnlimit(t *testing.T) {
	e := setup(t, nodes.Deps{})
	path := filepath.Join(t.TempDir(), "anywhere.png")
	writePNG(t, path, nil)

	res, err := e.reg.Run(context.Background(), "UnlimitLoadImage", node.Args{"path": path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	imgs := res.Values[0].([]imaging.Frame)
	if len(imgs) != 1 || imgs[0].Width != 4 || imgs[0].Height != 3 {
		t.Fatalf("image = %+v", imgs)
	}
	if got := imgs[0].Pix[0]; got < 0.78 || got > 0.79 {
		t.Errorf("red = %v, want 200/255", got)
	}

	if _, err := e.reg.Run(context.Background(), "UnlimitLoadImage", node.Args{"path": path + ".missing"}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nodes.ErrInvalidImage, 400},
		{nodes.ErrNoImages, 400},
		{imaging.ErrUnsupported, 400},
		{folders.ErrOutsideOutput, 400},
		{node.ErrUnknownNode, 404},
		{errors.New("disk full"), 500},
	}

	for _, tt := range tests {
		if got := nodes.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
