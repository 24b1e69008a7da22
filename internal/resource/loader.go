package resource

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	kberrors "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/errors"
)

// recordGlob matches resources/<kind dir>/<id>.yaml.
const recordGlob = "*/*.yaml"

// LoadDir loads every record under dir and builds a Store. Any malformed
// record fails the whole load.
func LoadDir(dir string) (*Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("resource directory %s: %w", dir, err)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS is LoadDir over an fs.FS. Files are read in lexical path order.
func LoadFS(fsys fs.FS) (*Store, error) {
	logger := slog.Default().With("component", "resource-loader")

	paths, err := fs.Glob(fsys, recordGlob)
	if err != nil {
		return nil, fmt.Errorf("listing resource records: %w", err)
	}
	resources := make([]*Resource, 0, len(paths))
	for _, path := range paths {
		res, err := loadRecord(fsys, path)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}

	store, err := NewStore(resources)
	if err != nil {
		return nil, err
	}
	logger.Info("resources loaded", "count", store.Len(), "version", store.Version())
	return store, nil
}

func loadRecord(fsys fs.FS, path string) (*Resource, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// DecodeRecord parses one YAML resource record. Unknown keys are ignored.
func DecodeRecord(data []byte) (*Resource, error) {
	var res Resource
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: %v", kberrors.ErrInvalidRecord, err)
	}
	if res.Kind == "" {
		res.Kind = KindOther
	}
	if err := validateRecord(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
