package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.RenderJob) error
	Update(ctx context.Context, job *entity.RenderJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.RenderJob, error)
}
