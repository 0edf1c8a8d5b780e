package config

import (
	"log/slog"

	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/provider/payment"
	"github.com/buildrail/escrow/pkg/repository"
)

// Deps holds the infrastructure dependencies services are built from.
type Deps struct {
	Uow      repository.UnitOfWork
	Gateway  payment.Gateway
	EventBus eventbus.EventBus
	Logger   *slog.Logger
	Config   *App
}
