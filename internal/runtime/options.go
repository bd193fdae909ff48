package runtime

import (
	"fmt"
	"log/slog"

	"github.com/voltgrid/ocpi-gateway/internal/adapters/config/file"
	"github.com/voltgrid/ocpi-gateway/internal/client"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/modules"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		provider, err := file.NewProvider(path, g.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(g *Gateway) error {
		g.config = provider
		return nil
	}
}

// WithStorageProvider sets a custom storage provider. The gateway reads
// tenants, tokens and settings from it but never seeds it from configuration.
func WithStorageProvider(provider ports.StorageProvider) Option {
	return func(g *Gateway) error {
		g.storage = provider
		g.ownsStorage = false
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger != nil {
			g.logger = logger
		}
		return nil
	}
}

// WithDispatcher forwards remote commands to dispatcher. Without one, every
// command is answered with NOT_SUPPORTED.
func WithDispatcher(dispatcher ports.CommandDispatcher) Option {
	return func(g *Gateway) error {
		g.dispatcher = dispatcher
		return nil
	}
}

// WithClient sets the client used for calls back into partner platforms.
func WithClient(c *client.Client) Option {
	return func(g *Gateway) error {
		g.client = c
		return nil
	}
}

// WithModule makes a module available to the versions section of the
// configuration. Module names must be unique.
func WithModule(f modules.Factory) Option {
	return func(g *Gateway) error {
		return g.catalog.Register(f)
	}
}

// WithEndpoint mounts ep for one version and role in addition to the modules
// named in configuration.
func WithEndpoint(version string, role domain.Role, ep endpoint.Endpoint) Option {
	return func(g *Gateway) error {
		if _, err := domain.ParseRole(string(role)); err != nil {
			return err
		}
		if ep == nil {
			return fmt.Errorf("endpoint for %s %s cannot be nil", version, role)
		}
		key := mountKey{version: version, role: role}
		g.endpoints[key] = append(g.endpoints[key], ep)
		return nil
	}
}
