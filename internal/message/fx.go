package message

import (
	"github.com/smallbiznis/renewly/internal/message/repository"
	"github.com/smallbiznis/renewly/internal/message/service"
	"go.uber.org/fx"
)

var Module = fx.Module("message.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
