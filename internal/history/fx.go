package history

import (
	historydomain "github.com/smallbiznis/renewly/internal/history/domain"
	"github.com/smallbiznis/renewly/internal/history/service"
	"go.uber.org/fx"
)

var Module = fx.Module("history.service",
	fx.Provide(service.NewService),
	fx.Provide(func(svc historydomain.Service) historydomain.Recorder { return svc }),
)
