package batch

import (
	"github.com/smallbiznis/renewly/internal/batch/repository"
	"github.com/smallbiznis/renewly/internal/batch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("batch.store",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewStore),
)
