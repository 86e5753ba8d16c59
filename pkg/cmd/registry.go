// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/registry"
)

// extensionKindFile is the shape of one <kind>.json file in the node kinds directory.
type extensionKindFile struct {
	Type        models.NodeType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`
}

// NewRegistry returns the built-in node kinds plus every extension kind found
// in kindsPath. A missing directory registers no extensions.
func NewRegistry(ctx context.Context, log *slog.Logger, kindsPath string) (*registry.Registry, error) {
	reg := registry.NewDefaultRegistry(log)

	if kindsPath == "" {
		return reg, nil
	}

	paths, err := filepath.Glob(filepath.Join(kindsPath, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list node kinds in %s: %w", kindsPath, err)
	}

	for _, path := range paths {
		err = registerExtensionKind(reg, path)
		if err != nil {
			return nil, err
		}

		log.InfoContext(ctx, "Registered extension node kind", "path", path)
	}

	return reg, nil
}

func registerExtensionKind(reg *registry.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read node kind %s: %w", path, err)
	}

	var kind extensionKindFile

	err = json.Unmarshal(data, &kind)
	if err != nil {
		return fmt.Errorf("failed to parse node kind %s: %w", path, err)
	}

	if kind.Type == "" {
		return fmt.Errorf("node kind %s has no type", path)
	}

	err = reg.RegisterExtension(kind.Type, kind.Name, kind.Description, kind.Schema)
	if err != nil {
		return fmt.Errorf("failed to register node kind %s: %w", path, err)
	}

	return nil
}
