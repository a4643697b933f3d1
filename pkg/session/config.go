package session

import (
	"context"
	"log/slog"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/stamp"
	"github.com/gardar/pagestamp/pkg/taskapi"
)

// Submitter hands a stamped batch to the task service. *taskapi.Client
// implements it.
type Submitter interface {
	Submit(ctx context.Context, head taskapi.Head, files []taskapi.File) (*taskapi.Receipt, error)
}

// Config is the one-time setup of a Controller.
type Config struct {
	Loader     *document.Loader  // nil = document.NewLoader(document.DefaultConfig())
	Compositor *stamp.Compositor // nil = stamp.NewCompositor(stamp.DefaultConfig(), nil)
	Submitter  Submitter         // nil = submission disabled
	Materials  assign.Vocabulary // nil = assign.DefaultMaterials
	Force      bool              // Stamp documents that already carry a stamp layer
	Logger     *slog.Logger      // nil = slog.Default()
}

func (c *Config) defaults() {
	if c.Loader == nil {
		c.Loader = document.NewLoader(document.DefaultConfig())
	}
	if c.Compositor == nil {
		c.Compositor = stamp.NewCompositor(stamp.DefaultConfig(), nil)
	}
	if c.Materials == nil {
		c.Materials = assign.DefaultMaterials
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
