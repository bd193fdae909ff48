// Package gateway provides the public API for embedding the OCPI gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/voltgrid/ocpi-gateway/internal/runtime"
)

// Gateway is the main entry point for running the OCPI gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithDispatcher(chargers),
//	)
var New = runtime.New

// BuiltinModules returns a catalog of the bundled tariffs and commands modules.
var BuiltinModules = runtime.BuiltinModules

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithStorageProvider = runtime.WithStorageProvider

	// Modules
	WithModule     = runtime.WithModule
	WithEndpoint   = runtime.WithEndpoint
	WithDispatcher = runtime.WithDispatcher

	// Advanced options
	WithLogger = runtime.WithLogger
	WithClient = runtime.WithClient
)
