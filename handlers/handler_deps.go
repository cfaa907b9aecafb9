package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/voskpaul/clipwizard/internal/events"
	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/internal/storage"
	"github.com/voskpaul/clipwizard/internal/store"
)

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Logger    *logrus.Logger
	Store     store.Store
	Artifacts storage.ArtifactStore
	Pipeline  *pipeline.Service
	Bus       *events.Bus

	validate *validator.Validate
}

// NewApplicationHandler creates an ApplicationHandler with the given
// dependencies.
func NewApplicationHandler(logger *logrus.Logger, st store.Store, artifacts storage.ArtifactStore, pl *pipeline.Service, bus *events.Bus) *ApplicationHandler {
	return &ApplicationHandler{
		Logger:    logger,
		Store:     st,
		Artifacts: artifacts,
		Pipeline:  pl,
		Bus:       bus,
		validate:  validator.New(),
	}
}
