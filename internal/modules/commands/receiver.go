// Package commands accepts remote commands from eMSP partners and hands them
// to the tenant's command dispatcher. Final results are posted back to the
// partner's response_url once the dispatcher reports them.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/voltgrid/ocpi-gateway/internal/client"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/modules"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// Identifier is the module's path segment.
const Identifier = "commands"

// Factory describes the module for the module catalog.
func Factory() modules.Factory {
	return modules.Factory{
		Name:        Identifier,
		Description: "Remote commands (CPO receiver)",
		Roles:       []domain.Role{domain.RoleCPO},
		Create: func(deps modules.Deps) (endpoint.Endpoint, error) {
			c := deps.Client
			if c == nil {
				c = client.New(client.WithLogger(deps.Logger))
			}
			return NewReceiver(deps.Dispatcher, c, deps.Logger), nil
		},
	}
}

// Receiver is the CPO commands endpoint.
type Receiver struct {
	dispatcher ports.CommandDispatcher
	client     *client.Client
	logger     *slog.Logger
	mux        *endpoint.Mux
}

// NewReceiver creates the endpoint. A nil dispatcher answers every command
// with NOT_SUPPORTED.
func NewReceiver(dispatcher ports.CommandDispatcher, c *client.Client, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Receiver{dispatcher: dispatcher, client: c, logger: logger}
	r.mux = endpoint.NewMux().Handle(http.MethodPost, "{command}", r.command)
	return r
}

// Identifier implements endpoint.Endpoint.
func (r *Receiver) Identifier() string { return Identifier }

// Process implements endpoint.Endpoint.
func (r *Receiver) Process(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	return r.mux.Dispatch(ctx, req)
}

func (r *Receiver) command(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	cmd, ok := domain.ParseCommandType(req.Param("command"))
	if !ok {
		return nil, ocpi.ErrInvalidParameter("unknown command").WithDetail(req.Param("command"))
	}

	var body json.RawMessage
	if err := req.DecodeBody(&body); err != nil {
		return nil, err
	}
	var head struct {
		ResponseURL string `json:"response_url"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, ocpi.ErrInvalidParameter("invalid request body").Wrap(err)
	}
	if head.ResponseURL == "" {
		return nil, ocpi.ErrMissingParameter("response_url")
	}
	if !validCallbackURL(head.ResponseURL) {
		return nil, ocpi.ErrInvalidParameter("invalid response_url").WithDetail(head.ResponseURL)
	}

	if r.dispatcher == nil {
		return ocpi.OK(domain.CommandResponse{Result: domain.CommandNotSupported}), nil
	}

	tenant, token := req.Context.Tenant, req.Context.Token
	cr := domain.CommandRequest{Type: cmd, ResponseURL: head.ResponseURL, Body: body}
	resp, err := r.dispatcher.Dispatch(ctx, tenant, token, cr, r.resultSender(tenant.ID, token, cr))
	if err != nil {
		return nil, ocpi.ErrServer("command dispatch failed").Wrap(err)
	}
	if resp == nil {
		return nil, ocpi.ErrServer("command dispatch failed").Wrap(errors.New("dispatcher returned no response"))
	}

	r.logger.Info("command dispatched",
		slog.String("tenant_id", tenant.ID),
		slog.String("partner_id", token.ID),
		slog.String("command", string(cmd)),
		slog.String("result", string(resp.Result)),
	)
	return ocpi.OK(resp), nil
}

// resultSender returns the callback the dispatcher uses to report the final
// outcome. It may run after the request has completed.
func (r *Receiver) resultSender(tenantID string, token *domain.PartnerToken, cr domain.CommandRequest) ports.CommandResultFunc {
	credential := token.PartnerCredential
	partnerID := token.ID
	return func(ctx context.Context, result domain.CommandResult) error {
		logger := r.logger.With(
			slog.String("tenant_id", tenantID),
			slog.String("partner_id", partnerID),
			slog.String("command", string(cr.Type)),
		)
		if r.client == nil {
			return fmt.Errorf("no partner client configured")
		}
		if _, err := r.client.Post(ctx, cr.ResponseURL, credential, result); err != nil {
			logger.Error("command result delivery failed",
				slog.String("response_url", cr.ResponseURL),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("deliver command result: %w", err)
		}
		logger.Info("command result delivered", slog.String("result", string(result.Result)))
		return nil
	}
}

func validCallbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
