package state

import (
	"context"
	"fmt"

	"fundingwatch/config"
)

// Open builds a Store on the backend named in cfg.
func Open(ctx context.Context, cfg config.StateConfig) (*Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewStore(NewFileBackend(cfg.Path)), nil
	case "s3":
		backend, err := NewS3BackendFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewStore(backend), nil
	default:
		return nil, fmt.Errorf("unsupported state backend '%s'", cfg.Backend)
	}
}
