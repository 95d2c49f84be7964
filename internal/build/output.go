package build

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/isle/internal/deps"
	"github.com/conneroisu/isle/internal/errors"
)

// Output tree layout.
const (
	ServerDir    = "server"
	AssetsDir    = "assets"
	ClientDir    = "client"
	ManifestFile = "client-manifest.json"
)

// Manifest lists what the browser needs from a build.
type Manifest struct {
	BuildID string                  `json:"buildId"`
	Entries []string                `json:"entries"`
	Files   []deps.DependencyRecord `json:"files"`
}

// Output writes build artifacts into a staging directory and publishes them.
type Output struct {
	fs      afero.Fs
	staging string

	mu      sync.Mutex
	written map[string]struct{}
}

// NewOutput stages files under staging.
func NewOutput(fs afero.Fs, staging string) *Output {
	return &Output{fs: fs, staging: staging, written: make(map[string]struct{})}
}

// WriteAsset stores a scoped stylesheet. It satisfies hooks.AssetSink.
func (o *Output) WriteAsset(ctx context.Context, rel string, content []byte) error {
	return o.write(path.Join(AssetsDir, rel), content)
}

// WriteServer stores a transformed server module.
func (o *Output) WriteServer(rel string, source string) error {
	return o.write(path.Join(ServerDir, rel), []byte(source))
}

// WriteClient stores a file the browser loads.
func (o *Output) WriteClient(rel string, content []byte) error {
	return o.write(path.Join(ClientDir, rel), content)
}

// Files returns the staged paths, relative to the output directory, sorted.
func (o *Output) Files() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	files := make([]string, 0, len(o.written))
	for f := range o.written {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

func (o *Output) write(rel string, content []byte) error {
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return errors.NewTransformError("OUTSIDE_OUTPUT", rel, "output path escapes the output directory", nil)
	}

	target := filepath.Join(o.staging, filepath.FromSlash(rel))
	if err := o.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WrapIO(err, "WRITE_FAILED", target)
	}
	if err := afero.WriteFile(o.fs, target, content, 0o644); err != nil {
		return errors.WrapIO(err, "WRITE_FAILED", target)
	}

	o.mu.Lock()
	o.written[rel] = struct{}{}
	o.mu.Unlock()
	return nil
}

// Publish moves the staged tree into outDir and writes the manifest last, so
// a manifest on disk always describes a complete build. The previous
// manifest is removed first and the previous tree replaced.
func (o *Output) Publish(outDir string, manifest Manifest) error {
	manifestPath := filepath.Join(outDir, ManifestFile)
	if err := o.fs.Remove(manifestPath); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO(err, "PUBLISH_FAILED", manifestPath)
	}

	for _, dir := range []string{ServerDir, AssetsDir, ClientDir} {
		p := filepath.Join(outDir, dir)
		if err := o.fs.RemoveAll(p); err != nil {
			return errors.WrapIO(err, "PUBLISH_FAILED", p)
		}
	}

	for _, rel := range o.Files() {
		if err := o.move(rel, outDir); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.NewEncodingError(manifestPath, err)
	}
	staged := filepath.Join(o.staging, ManifestFile)
	if err := afero.WriteFile(o.fs, staged, append(data, '\n'), 0o644); err != nil {
		return errors.WrapIO(err, "PUBLISH_FAILED", staged)
	}
	if err := o.fs.Rename(staged, manifestPath); err != nil {
		return errors.WrapIO(err, "PUBLISH_FAILED", manifestPath)
	}
	return nil
}

// move renames one staged file into place. Files move one at a time because
// not every afero backend renames directory trees.
func (o *Output) move(rel, outDir string) error {
	from := filepath.Join(o.staging, filepath.FromSlash(rel))
	to := filepath.Join(outDir, filepath.FromSlash(rel))

	if err := o.fs.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return errors.WrapIO(err, "PUBLISH_FAILED", to)
	}
	if err := o.fs.Rename(from, to); err != nil {
		return errors.WrapIO(err, "PUBLISH_FAILED", to)
	}
	return nil
}

// ReadManifest loads the manifest published in outDir.
func ReadManifest(fs afero.Fs, outDir string) (*Manifest, error) {
	p := filepath.Join(outDir, ManifestFile)
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, errors.WrapIO(err, "READ_FAILED", p)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewEncodingError(p, err)
	}
	return &m, nil
}

// serverPath names the output file of a server module. The island runtime
// lands under _isle/ and modules loaded with a directive carry it in their
// file name.
func serverPath(rel, directive string) string {
	if directive == "" {
		return rel
	}
	ext := path.Ext(rel)
	return strings.TrimSuffix(rel, ext) + "." + directive + ext
}
