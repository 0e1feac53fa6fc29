package folders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SavePath is an allocated location for a batch of output images.
type SavePath struct {
	// Folder is the absolute directory the files are written to.
	Folder string
	// Filename is the prefix each file name starts with.
	Filename string
	// Counter is the first free sequence number in Folder.
	Counter int
	// Subfolder is Folder relative to the directory passed to SaveImagePath,
	// slash separated.
	Subfolder string
	// Prefix is the prefix after variable substitution.
	Prefix string
}

// File returns the name of the output at counter offset i. The seed is
// always written, including 0.
func (p SavePath) File(name string, i int, seed int64) string {
	return fmt.Sprintf("%s_%05d_%d.png", name, p.Counter+i, seed)
}

// ExpandVars replaces %width%, %height%, %year%, %month%, %day%, %hour%,
// %minute% and %second% in prefix.
func ExpandVars(prefix string, width, height int, now time.Time) string {
	if !strings.Contains(prefix, "%") {
		return prefix
	}
	return strings.NewReplacer(
		"%width%", strconv.Itoa(width),
		"%height%", strconv.Itoa(height),
		"%year%", strconv.Itoa(now.Year()),
		"%month%", fmt.Sprintf("%02d", int(now.Month())),
		"%day%", fmt.Sprintf("%02d", now.Day()),
		"%hour%", fmt.Sprintf("%02d", now.Hour()),
		"%minute%", fmt.Sprintf("%02d", now.Minute()),
		"%second%", fmt.Sprintf("%02d", now.Second()),
	).Replace(prefix)
}

// SaveImagePath allocates the folder and starting counter for prefix under
// dir. The counter is one past the highest <filename>_<digits>_ entry in the
// folder, or 1 when there is none; a missing folder is created.
func SaveImagePath(prefix, dir string, width, height int, now time.Time) (SavePath, error) {
	prefix = ExpandVars(prefix, width, height, now)

	clean := filepath.Clean(filepath.FromSlash(prefix))
	subfolder := filepath.Dir(clean)
	if subfolder == "." {
		subfolder = ""
	}
	filename := filepath.Base(clean)

	root := absolute(dir)
	folder := filepath.Join(root, subfolder)
	if !Within(root, folder) {
		return SavePath{}, fmt.Errorf("%w: %s", ErrOutsideOutput, prefix)
	}

	counter, err := nextCounter(folder, filename)
	if err != nil {
		return SavePath{}, err
	}

	return SavePath{
		Folder:    folder,
		Filename:  filename,
		Counter:   counter,
		Subfolder: filepath.ToSlash(subfolder),
		Prefix:    prefix,
	}, nil
}

func nextCounter(folder, filename string) (int, error) {
	entries, err := os.ReadDir(folder)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return 0, fmt.Errorf("create output folder: %w", err)
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list output folder: %w", err)
	}

	want := filename + "_"
	highest, found := 0, false
	for _, e := range entries {
		name := e.Name()
		rest, ok := strings.CutPrefix(name, want)
		if !ok {
			continue
		}
		digits, _, _ := strings.Cut(rest, "_")
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 {
			n = 0
		}
		if !found || n > highest {
			highest, found = n, true
		}
	}

	if !found {
		return 1, nil
	}
	return highest + 1, nil
}
