package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateOpenRemove(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	path := filepath.Join(dir, "scan.vol")
	w, err := fsys.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "payload" {
		t.Errorf("read %q, want %q", data, "payload")
	}

	matches, err := fsys.Glob(filepath.Join(dir, "*.vol"))
	if err != nil || len(matches) != 1 {
		t.Errorf("Glob = %v, %v; want one match", matches, err)
	}

	if err := fsys.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if fsys.Exists(path) {
		t.Error("file still exists after Remove")
	}
	_ = os.RemoveAll(dir)
}

func TestMemoryFileSystem_WriterCommitsOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/data/a.vol")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, _ = w.Write([]byte("hello, "))
	_, _ = w.Write([]byte("world"))

	if data, _ := mfs.ReadFile("/data/a.vol"); len(data) != 0 {
		t.Errorf("contents visible before Close: %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := mfs.Open("/data/a.vol")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "hello, world" {
		t.Errorf("got %q", data)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing = %v, want ErrNotExist", err)
	}
	if _, err := mfs.ReadFile("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile missing = %v, want ErrNotExist", err)
	}
	if err := mfs.Remove("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove missing = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_GlobAndDirs(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/scans/b.vol", []byte("b"))
	mfs.WriteFile("/scans/a.vol", []byte("a"))
	mfs.WriteFile("/scans/notes.txt", []byte("n"))
	_ = mfs.MkdirAll("/out/run1", 0o755)

	got, err := mfs.Glob("/scans/*.vol")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if diff := cmp.Diff([]string{"/scans/a.vol", "/scans/b.vol"}, got); diff != "" {
		t.Errorf("Glob mismatch (-want +got):\n%s", diff)
	}
	if _, err := mfs.Glob("[bad"); err == nil {
		t.Error("expected malformed pattern error")
	}
	if !mfs.Exists("/out") || !mfs.Exists("/out/run1") {
		t.Error("MkdirAll should record parents")
	}
	if len(mfs.Names()) != 3 {
		t.Errorf("Names = %v, want 3 files", mfs.Names())
	}
}

func TestHasExt(t *testing.T) {
	if !HasExt("config.YAML", ".yaml", ".yml") {
		t.Error("expected case-insensitive match")
	}
	if HasExt("config.json", ".yaml") {
		t.Error("unexpected match")
	}
}
