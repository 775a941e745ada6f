// Package loader opens HL7 v2.xml schema sets from a local directory,
// a local .tgz bundle, or a remote URL pointing to a .tgz bundle.
//
// A schema set holds the XSD files under xsd/ (segments.xsd, fields.xsd,
// datatypes.xsd and one <STRUCTURE>.xsd per message structure) and the
// tab-separated tables (hl7Table0354.csv, hl7Tables.csv, hl7Fields.csv,
// hl7DataTypes.csv, valueSets.csv) at its root.
package loader

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"
)

// DefaultSchemaPath returns the default directory searched for versioned
// schema sets.
func DefaultSchemaPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hl7", "schemas")
}

// Source gives read access to the files of one schema set.
// Names are slash separated and relative to the schema set root.
type Source interface {
	// Path describes where the schema set was loaded from.
	Path() string
	// ReadFile returns the content of name. Missing files yield an error
	// matching fs.ErrNotExist.
	ReadFile(name string) ([]byte, error)
	// Exists reports whether name is a regular file in the schema set.
	Exists(name string) bool
}

// Open opens a schema set from a directory, a .tgz/.tar.gz bundle or an
// http(s) URL to a bundle.
func Open(location string) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return LoadFromURL(location)
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("schema set %s: %w", location, err)
	}
	if info.IsDir() {
		return &dirSource{root: location}, nil
	}
	if isBundle(location) {
		return LoadFromTgz(location)
	}
	return nil, fmt.Errorf("schema set %s: not a directory or .tgz bundle", location)
}

func isBundle(name string) bool {
	return strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.gz")
}

// Loader resolves versioned schema sets below a base path.
type Loader struct {
	basePath string
}

// NewLoader creates a new Loader with the given base path.
func NewLoader(basePath string) *Loader {
	if basePath == "" {
		basePath = DefaultSchemaPath()
	}
	return &Loader{basePath: basePath}
}

// BasePath returns the base path for schema sets.
func (l *Loader) BasePath() string {
	return l.basePath
}

// LoadVersion opens the schema set for an HL7 version, e.g. "2.4".
// Both <base>/v2.4 and <base>/v2.4.tgz are accepted; the directory wins.
func (l *Loader) LoadVersion(version string) (Source, error) {
	name := "v" + strings.TrimPrefix(version, "v")
	dir := filepath.Join(l.basePath, name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return &dirSource{root: dir}, nil
	}
	bundle := dir + ".tgz"
	if _, err := os.Stat(bundle); err == nil {
		return LoadFromTgz(bundle)
	}
	return nil, fmt.Errorf("schema set for HL7 %s not found in %s", version, l.basePath)
}

// ListVersions returns the versions available below the base path.
func (l *Loader) ListVersions() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "v") {
			continue
		}
		switch {
		case entry.IsDir():
		case strings.HasSuffix(name, ".tgz"):
			name = strings.TrimSuffix(name, ".tgz")
		default:
			continue
		}
		v := strings.TrimPrefix(name, "v")
		if !seen[v] {
			seen[v] = true
			versions = append(versions, v)
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// dirSource reads files lazily from a schema directory.
type dirSource struct {
	root string
}

func (d *dirSource) Path() string { return d.root }

func (d *dirSource) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, filepath.FromSlash(name)))
}

func (d *dirSource) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(name)))
	return err == nil && info.Mode().IsRegular()
}

// bundleSource holds every file of an extracted bundle in memory.
type bundleSource struct {
	path  string
	files map[string][]byte
}

func (b *bundleSource) Path() string { return b.path }

func (b *bundleSource) ReadFile(name string) ([]byte, error) {
	data, ok := b.files[path.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return data, nil
}

func (b *bundleSource) Exists(name string) bool {
	_, ok := b.files[path.Clean(name)]
	return ok
}

// LoadFromTgz loads a schema set from a local .tgz file.
func LoadFromTgz(tgzPath string) (Source, error) {
	file, err := os.Open(tgzPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tgz file: %w", err)
	}
	defer file.Close()

	return loadFromTgzReader(file, tgzPath)
}

// LoadFromURL loads a schema set from a remote URL pointing to a .tgz file.
func LoadFromURL(url string) (Source, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download schema set from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download schema set: HTTP %d", resp.StatusCode)
	}

	return loadFromTgzReader(resp.Body, url)
}

// loadFromTgzReader extracts a gzipped tar stream. A single top-level
// directory shared by every entry (e.g. "v2.4/") is stripped so that
// xsd/segments.xsd resolves regardless of how the bundle was packed.
func loadFromTgzReader(reader io.Reader, source string) (Source, error) {
	gzReader, err := pgzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	files := make(map[string][]byte)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(strings.TrimPrefix(header.Name, "./"))
		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", name, source, err)
		}
		files[name] = data
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("schema bundle %s is empty", source)
	}

	return &bundleSource{path: source, files: stripCommonPrefix(files)}, nil
}

func stripCommonPrefix(files map[string][]byte) map[string][]byte {
	prefix := ""
	for name := range files {
		i := strings.IndexByte(name, '/')
		if i < 0 {
			return files
		}
		top := name[:i+1]
		if prefix == "" {
			prefix = top
		} else if top != prefix {
			return files
		}
	}
	// Keep bundles packed as xsd/... unchanged.
	if prefix == "xsd/" {
		return files
	}

	stripped := make(map[string][]byte, len(files))
	for name, data := range files {
		stripped[strings.TrimPrefix(name, prefix)] = data
	}
	return stripped
}
