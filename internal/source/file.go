package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cli-admin/internal/config"
)

// File loads records from a JSON or YAML file. The format follows the file
// extension; anything other than .yaml or .yml is read as JSON.
type File struct {
	Spec   *config.Dataset
	Logger *zap.Logger
}

// Load implements Loader.
func (f *File) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := f.Spec.Source.Path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", f.Spec.Name, err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %s: parse %s: %w", f.Spec.Name, path, err)
	}
	records, err := recordsOf(doc)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %s: %w", f.Spec.Name, path, err)
	}

	ds, err := assemble(f.Spec, records, fieldID(f.Spec.IDField), deriveColumns(records, f.Spec.IDField), f.Logger)
	if err != nil {
		return nil, err
	}
	f.Logger.Info("dataset loaded", zap.String("path", path), zap.Int("rows", len(ds.Rows)))
	return ds, nil
}
