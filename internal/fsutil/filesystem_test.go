package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "record.json")

	if fs.Exists(path) {
		t.Fatal("file should not exist yet")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := fs.WriteFile(path, []byte(`{"lag_time":0.5}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !fs.Exists(path) {
		t.Fatal("file should exist after write")
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"lag_time":0.5}` {
		t.Errorf("unexpected contents: %s", data)
	}

	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != int64(len(data)) {
		t.Errorf("Size = %d, want %d", info.Size(), len(data))
	}
}

func TestMemoryFileSystem_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := NewMemoryFileSystem()
	path := "out/cam0.align.json"

	if fs.Exists(path) {
		t.Fatal("file should not exist yet")
	}
	if err := fs.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Cleaned path variants address the same entry.
	data, err := fs.ReadFile("./out/cam0.align.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("contents = %q", data)
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("Open contents = %q", got)
	}
}

func TestMemoryFileSystem_Create(t *testing.T) {
	t.Parallel()

	fs := NewMemoryFileSystem()
	w, err := fs.Create("report.html")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("<html>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := fs.ReadFile("report.html")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "<html>" {
		t.Errorf("contents = %q", data)
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	t.Parallel()

	fs := NewMemoryFileSystem()
	if err := fs.MkdirAll("a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		if !fs.Exists(dir) {
			t.Errorf("directory %q should exist", dir)
		}
		info, err := fs.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%q): %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("Stat(%q).IsDir() = false", dir)
		}
	}
}

func TestMemoryFileSystem_MissingFile(t *testing.T) {
	t.Parallel()

	fs := NewMemoryFileSystem()
	if _, err := fs.ReadFile("nope.json"); !os.IsNotExist(err) {
		t.Errorf("ReadFile error = %v, want not-exist", err)
	}
	if _, err := fs.Stat("nope.json"); !os.IsNotExist(err) {
		t.Errorf("Stat error = %v, want not-exist", err)
	}
	if _, err := fs.Open("nope.json"); !os.IsNotExist(err) {
		t.Errorf("Open error = %v, want not-exist", err)
	}
}
