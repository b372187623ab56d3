// Package handler contains the HTTP handlers for the report API.
package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/riegen-io/riegen/pkg/models"
)

// Generator is the generation service interface the handlers depend on.
type Generator interface {
	// Generate runs the pipeline synchronously and blocks until terminal.
	Generate(ctx context.Context, reportID uuid.UUID) (*models.GeneratedDocument, error)
	// Trigger starts generation in the background and returns immediately.
	Trigger(reportID uuid.UUID)
}

var validate = validator.New()
