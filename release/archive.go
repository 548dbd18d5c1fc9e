package release

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	manifestMemberName = "MANIFEST.json"
	filesMemberName    = "FILES.json"
)

// defaultExcludes are path prefixes never packaged into an archive.
var defaultExcludes = []string{
	".git",
	".github",
	".colship.yml",
	"galaxy.yml",
	"tests/output",
}

// Archive describes a built collection archive.
type Archive struct {
	Path   string
	Size   int64
	SHA256 string
}

// fileEntry is one record in the FILES.json file manifest.
type fileEntry struct {
	Name           string `json:"name"`
	FType          string `json:"ftype"`
	ChecksumType   string `json:"chksum_type,omitempty"`
	ChecksumSHA256 string `json:"chksum_sha256,omitempty"`
}

type filesManifest struct {
	Files  []fileEntry `json:"files"`
	Format int         `json:"format"`
}

type collectionInfo struct {
	Namespace    string            `json:"namespace"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Readme       string            `json:"readme,omitempty"`
	Authors      []string          `json:"authors,omitempty"`
	Description  string            `json:"description,omitempty"`
	License      []string          `json:"license,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
	Repository   string            `json:"repository,omitempty"`
	Homepage     string            `json:"homepage,omitempty"`
	Issues       string            `json:"issues,omitempty"`
}

type archiveManifest struct {
	CollectionInfo   collectionInfo `json:"collection_info"`
	FileManifestFile fileEntry      `json:"file_manifest_file"`
	Format           int            `json:"format"`
}

// Builder assembles a collection archive from a source directory.
type Builder struct {
	// SourceDir is the collection root to package.
	SourceDir string
	// OutputDir receives the finished archive. Defaults to SourceDir.
	OutputDir string
	// Excludes extends the default exclusion list with additional
	// slash-separated path prefixes relative to SourceDir.
	Excludes []string
}

// Build packages the collection described by the manifest at the given
// version and returns the archive location and digest. Archive members are
// written in a deterministic order so repeated builds of the same tree
// produce identical file listings.
func (b *Builder) Build(m *Manifest, version string) (*Archive, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	outDir := b.OutputDir
	if outDir == "" {
		outDir = b.SourceDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	members, err := b.collect(outDir)
	if err != nil {
		return nil, err
	}

	files, err := b.fileManifest(members)
	if err != nil {
		return nil, err
	}
	filesJSON, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode file manifest: %w", err)
	}

	filesSum := sha256.Sum256(filesJSON)
	manifest := archiveManifest{
		CollectionInfo: collectionInfo{
			Namespace:    m.Namespace,
			Name:         m.Name,
			Version:      version,
			Readme:       m.Readme,
			Authors:      m.Authors,
			Description:  m.Description,
			License:      m.License,
			Tags:         m.Tags,
			Dependencies: m.Dependencies,
			Repository:   m.Repository,
			Homepage:     m.Homepage,
			Issues:       m.Issues,
		},
		FileManifestFile: fileEntry{
			Name:           filesMemberName,
			FType:          "file",
			ChecksumType:   "sha256",
			ChecksumSHA256: hex.EncodeToString(filesSum[:]),
		},
		Format: 1,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive manifest: %w", err)
	}

	archivePath := filepath.Join(outDir, m.ArchiveName(version))
	if err := b.write(archivePath, manifestJSON, filesJSON, members); err != nil {
		return nil, err
	}

	sum, size, err := fileDigest(archivePath)
	if err != nil {
		return nil, err
	}
	return &Archive{Path: archivePath, Size: size, SHA256: sum}, nil
}

// collect walks SourceDir and returns the archive member paths, relative and
// slash-separated, sorted.
func (b *Builder) collect(outDir string) ([]string, error) {
	absOut, _ := filepath.Abs(outDir)

	var members []string
	err := filepath.WalkDir(b.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.SourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if b.excluded(rel) {
				return fs.SkipDir
			}
			abs, _ := filepath.Abs(path)
			if abs == absOut {
				return fs.SkipDir
			}
			return nil
		}
		if b.excluded(rel) || !d.Type().IsRegular() {
			return nil
		}
		members = append(members, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", b.SourceDir, err)
	}
	sort.Strings(members)
	return members, nil
}

func (b *Builder) excluded(rel string) bool {
	for _, ex := range append(append([]string{}, defaultExcludes...), b.Excludes...) {
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

func (b *Builder) fileManifest(members []string) (*filesManifest, error) {
	fm := &filesManifest{Format: 1}
	fm.Files = append(fm.Files, fileEntry{Name: ".", FType: "dir"})

	seen := map[string]bool{}
	for _, rel := range members {
		// Directory records precede their contents.
		dir := filepath.ToSlash(filepath.Dir(rel))
		var parents []string
		for dir != "." {
			parents = append([]string{dir}, parents...)
			dir = filepath.ToSlash(filepath.Dir(dir))
		}
		for _, p := range parents {
			if !seen[p] {
				seen[p] = true
				fm.Files = append(fm.Files, fileEntry{Name: p, FType: "dir"})
			}
		}

		sum, _, err := fileDigest(filepath.Join(b.SourceDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		fm.Files = append(fm.Files, fileEntry{
			Name:           rel,
			FType:          "file",
			ChecksumType:   "sha256",
			ChecksumSHA256: sum,
		})
	}
	return fm, nil
}

func (b *Builder) write(archivePath string, manifestJSON, filesJSON []byte, members []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)
	now := time.Now()

	writeBytes := func(name string, data []byte) error {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(data)
		return err
	}

	if err := writeBytes(manifestMemberName, manifestJSON); err != nil {
		return fmt.Errorf("failed to write %s: %w", manifestMemberName, err)
	}
	if err := writeBytes(filesMemberName, filesJSON); err != nil {
		return fmt.Errorf("failed to write %s: %w", filesMemberName, err)
	}

	for _, rel := range members {
		path := filepath.Join(b.SourceDir, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		hdr := &tar.Header{
			Name:    rel,
			Mode:    int64(info.Mode().Perm()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rel, err)
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

// fileDigest returns the hex sha256 of a file and its size.
func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
