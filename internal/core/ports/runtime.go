package ports

import (
	"context"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based (default).
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// CommandResultFunc delivers the asynchronous outcome of a command back to
// the partner that sent it.
type CommandResultFunc func(ctx context.Context, result domain.CommandResult) error

// CommandDispatcher forwards remote commands to charging stations. It lives
// outside the gateway; the gateway only hands over the request and a way to
// report the final result.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, tenant *domain.Tenant, token *domain.PartnerToken, req domain.CommandRequest, onResult CommandResultFunc) (*domain.CommandResponse, error)
}
