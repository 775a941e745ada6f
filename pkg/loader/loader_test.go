package loader

import (
	"archive/tar"
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
)

func TestDefaultSchemaPath(t *testing.T) {
	path := DefaultSchemaPath()
	if path == "" {
		t.Error("DefaultSchemaPath returned empty string")
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".hl7", "schemas")
	if path != expected {
		t.Errorf("DefaultSchemaPath = %q, want %q", path, expected)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func buildTgz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xsd/segments.xsd", "<xsd:schema/>")

	src, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if src.Path() != dir {
		t.Errorf("Path() = %q, want %q", src.Path(), dir)
	}
	if !src.Exists("xsd/segments.xsd") {
		t.Error("Exists(xsd/segments.xsd) = false")
	}
	if src.Exists("xsd") {
		t.Error("Exists(xsd) = true for a directory")
	}
	if _, err := src.ReadFile("xsd/ADT_A01.xsd"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Open(missing) should fail")
	}
}

func TestOpenTgzStripsPrefix(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "v2.4.tgz")
	data := buildTgz(t, map[string]string{
		"v2.4/xsd/segments.xsd":  "<segments/>",
		"v2.4/hl7Table0354.csv":  "header\nADT_A01\tA01\n",
		"./v2.4/xsd/ADT_A01.xsd": "<adt/>",
	})
	if err := os.WriteFile(bundle, data, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(bundle)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := src.ReadFile("xsd/segments.xsd")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "<segments/>" {
		t.Errorf("ReadFile() = %q", got)
	}
	if !src.Exists("xsd/ADT_A01.xsd") {
		t.Error("Exists(xsd/ADT_A01.xsd) = false")
	}
	if _, err := src.ReadFile("xsd/ORU_R01.xsd"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestOpenTgzKeepsXsdRoot(t *testing.T) {
	data := buildTgz(t, map[string]string{
		"xsd/segments.xsd": "<segments/>",
		"xsd/fields.xsd":   "<fields/>",
	})
	src, err := loadFromTgzReader(bytes.NewReader(data), "mem")
	if err != nil {
		t.Fatalf("loadFromTgzReader() error = %v", err)
	}
	if !src.Exists("xsd/fields.xsd") {
		t.Error("xsd/ prefix was stripped")
	}
}

func TestLoadFromURL(t *testing.T) {
	data := buildTgz(t, map[string]string{"v2.5/xsd/segments.xsd": "<segments/>"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2.5.tgz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	src, err := Open(srv.URL + "/v2.5.tgz")
	if err != nil {
		t.Fatalf("Open(url) error = %v", err)
	}
	if !src.Exists("xsd/segments.xsd") {
		t.Error("Exists(xsd/segments.xsd) = false")
	}

	if _, err := LoadFromURL(srv.URL + "/missing.tgz"); err == nil {
		t.Error("LoadFromURL(404) should fail")
	}
}

func TestLoaderVersions(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "v2.4/xsd/segments.xsd", "<segments/>")
	if err := os.WriteFile(filepath.Join(base, "v2.5.tgz"),
		buildTgz(t, map[string]string{"xsd/segments.xsd": "<segments/>"}), 0o644); err != nil {
		t.Fatal(err)
	}
	writeFile(t, base, "README", "not a schema")

	l := NewLoader(base)
	versions, err := l.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 || versions[0] != "2.4" || versions[1] != "2.5" {
		t.Errorf("ListVersions() = %v, want [2.4 2.5]", versions)
	}

	for _, v := range []string{"2.4", "v2.5"} {
		src, err := l.LoadVersion(v)
		if err != nil {
			t.Fatalf("LoadVersion(%s) error = %v", v, err)
		}
		if !src.Exists("xsd/segments.xsd") {
			t.Errorf("LoadVersion(%s) missing segments.xsd", v)
		}
	}
	if _, err := l.LoadVersion("2.9"); err == nil {
		t.Error("LoadVersion(2.9) should fail")
	}
}

func TestReadTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FieldLengthsFile, "Segment\tField\tLength\nPID\t3\t250\nMSH\t1\n")

	src, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := ReadTable(src, FieldLengthsFile)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ReadTable() returned %d rows, want 2", len(rows))
	}
	if len(rows[0]) != 3 || rows[0][2] != "250" {
		t.Errorf("rows[0] = %v", rows[0])
	}
	if len(rows[1]) != 2 {
		t.Errorf("rows[1] = %v, want 2 columns", rows[1])
	}

	if _, err := ReadTable(src, ValueSetsFile); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadTable(missing) error = %v, want fs.ErrNotExist", err)
	}
}
