// Package modelstore loads trained model bundles from a directory, a zip
// archive buffer or a single file and compiles them into read-only models.
package modelstore

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/mod/semver"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/validation"
)

const (
	// EngineVersion is the bundle format this engine produces and reads.
	EngineVersion = "0.20.0"
	// MinModelVersion is the oldest bundle format still accepted.
	MinModelVersion = "0.19.0"

	maxBundleSize = 256 << 20
)

// Source kinds accepted by Open.
const (
	SourceDir     = "dir"
	SourceArchive = "archive"
	SourceFile    = "file"
)

//go:embed schema.json
var schemaJSON []byte

var bundleSchema = validation.MustCompileSchema(schemaJSON)

// GetModelVersion returns the compiled-in engine version, independent of
// any loaded model.
func GetModelVersion() string {
	return EngineVersion
}

// Open loads a model from path, interpreted according to source.
func Open(source, path string) (*Model, error) {
	switch source {
	case SourceDir, "":
		return LoadDir(path)
	case SourceFile:
		return LoadFile(path)
	case SourceArchive:
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewModelLoadError("cannot read archive", err)
		}
		return LoadArchive(buf)
	}
	return nil, errors.NewModelLoadError(fmt.Sprintf("unknown model source %q", source), nil)
}

// LoadDir loads the bundle document inside dir.
func LoadDir(dir string) (*Model, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.NewModelLoadError("cannot open model directory", err)
	}
	if !info.IsDir() {
		return nil, errors.NewModelLoadError(fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return LoadFile(filepath.Join(dir, BundleFile))
}

// LoadFile loads a standalone bundle document.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewModelLoadError("cannot open model file", err)
	}
	defer f.Close()

	data, err := readLimited(f)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// LoadArchive loads a zip archive holding the bundle document at its root
// or one directory deep.
func LoadArchive(buf []byte) (*Model, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, errors.NewModelLoadError("corrupt model archive", err)
	}

	var entry *zip.File
	for _, f := range r.File {
		name := strings.Trim(f.Name, "/")
		if filepath.Base(name) != BundleFile || strings.Count(name, "/") > 1 {
			continue
		}
		if entry == nil || strings.Count(name, "/") < strings.Count(strings.Trim(entry.Name, "/"), "/") {
			entry = f
		}
	}
	if entry == nil {
		return nil, errors.NewModelLoadError(fmt.Sprintf("archive has no %s", BundleFile), nil)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, errors.NewModelLoadError("corrupt model archive", err)
	}
	defer rc.Close()

	data, err := readLimited(rc)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBundleSize+1))
	if err != nil {
		return nil, errors.NewModelLoadError("cannot read bundle", err)
	}
	if len(data) > maxBundleSize {
		return nil, errors.NewModelLoadError("bundle exceeds size limit", nil)
	}
	return data, nil
}

// Load compiles a bundle document: version check, schema validation,
// then cross-reference checks while building each component.
func Load(data []byte) (*Model, error) {
	var header struct {
		ModelVersion string `json:"model_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.NewModelLoadError("bundle is not valid JSON", err)
	}
	if err := CheckVersion(header.ModelVersion); err != nil {
		return nil, err
	}

	result, err := bundleSchema.ValidateBytes(data)
	if err != nil {
		return nil, errors.NewModelLoadError("bundle is not valid JSON", err)
	}
	if !result.Valid {
		return nil, errors.NewModelLoadError("bundle failed schema validation", result)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.NewModelLoadError("bundle does not decode", err)
	}

	sum := sha256.Sum256(data)
	m, err := compile(&b, hex.EncodeToString(sum[:]))
	if err != nil {
		return nil, errors.NewModelLoadError("inconsistent bundle", err)
	}
	return m, nil
}

// CheckVersion accepts markers from MinModelVersion up to EngineVersion.
func CheckVersion(marker string) error {
	v := "v" + strings.TrimPrefix(marker, "v")
	if marker == "" || !semver.IsValid(v) {
		return errors.NewModelLoadError(fmt.Sprintf("invalid model version %q", marker), nil)
	}
	if semver.Compare(v, "v"+MinModelVersion) < 0 {
		return errors.NewModelLoadError(
			fmt.Sprintf("model version %s predates minimum supported %s", marker, MinModelVersion), nil)
	}
	if semver.Compare(v, "v"+EngineVersion) > 0 {
		return errors.NewModelLoadError(
			fmt.Sprintf("model version %s is newer than engine %s", marker, EngineVersion), nil)
	}
	return nil
}
