package advisory

import (
	"context"

	"DCAClock/internal/domain/models"
)

// Noop never suggests; the resolver then uses the quantitative pick.
type Noop struct{}

func (Noop) Suggest(context.Context, string, []models.PeriodResult) (*models.Advice, error) {
	return nil, nil
}
