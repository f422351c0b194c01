package main

import (
	"github.com/smallbiznis/renewly/internal/app"
	"github.com/smallbiznis/renewly/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		server.Module,
	).Run()
}
