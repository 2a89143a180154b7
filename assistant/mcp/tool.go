package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/graph-assistant/assistant/graph"
)

//go:embed tools/assistantMyDetails.md
var assistantMyDetailsDesc string

//go:embed tools/assistantMyTasks.md
var assistantMyTasksDesc string

//go:embed tools/assistantMyEvents.md
var assistantMyEventsDesc string

func registerTools(base *protoserver.DefaultHandler, h *Handler) error {
	svc := h.service

	if err := protoserver.RegisterTool[*MyDetailsInput, *MyDetailsOutput](base.Registry, "assistantMyDetails", assistantMyDetailsDesc, func(ctx context.Context, in *MyDetailsInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if rpcErr := h.prepare(ctx, &in.Account); rpcErr != nil {
			return nil, rpcErr
		}
		details, err := svc.Accessor(ctx, in.Account).GetMyDetails(ctx, in.NameOnly)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, &MyDetailsOutput{Details: details})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*MyTasksInput, *MyTasksOutput](base.Registry, "assistantMyTasks", assistantMyTasksDesc, func(ctx context.Context, in *MyTasksInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if rpcErr := h.prepare(ctx, &in.Account); rpcErr != nil {
			return nil, rpcErr
		}
		tasks, err := svc.Accessor(ctx, in.Account).GetMyTasks(ctx, in.IncompleteOnly)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, &MyTasksOutput{Tasks: tasks})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*MyEventsInput, *MyEventsOutput](base.Registry, "assistantMyEvents", assistantMyEventsDesc, func(ctx context.Context, in *MyEventsInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if rpcErr := h.prepare(ctx, &in.Account); rpcErr != nil {
			return nil, rpcErr
		}
		events, err := svc.Accessor(ctx, in.Account).GetMyEvents(ctx, in.FutureOnly)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, &MyEventsOutput{Events: events})
	}); err != nil {
		return err
	}
	return nil
}

// prepare validates the account and blocks until it can be used without interaction.
func (h *Handler) prepare(ctx context.Context, account *graph.Account) *jsonrpc.Error {
	if account.Alias == "" {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "account.alias is required", nil)
	}
	if account.TenantID == "" {
		account.TenantID = h.service.TenantID()
	}
	if err := h.ensureLogin(ctx, *account); err != nil {
		return jsonrpc.NewError(jsonrpc.InvalidParams, err.Error(), nil)
	}
	return nil
}

// ensureLogin starts an out-of-band device login when the account has no
// usable credential and waits for it to finish.
func (h *Handler) ensureLogin(ctx context.Context, account graph.Account) error {
	svc := h.service
	scopes := graph.DefaultScopes()
	if !svc.login.NeedsInteractive(ctx, account.Alias, account.TenantID, scopes) {
		return nil
	}
	ns, _ := svc.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	pend, ok := svc.pending.Find(ns, account.Alias)
	if !ok {
		pend = NewPendingAuth(newUUID(), account.Alias, account.TenantID, ns)
		svc.pending.Put(pend)
		started := svc.login.StartDeviceLogin(context.WithoutCancel(ctx), account.Alias, account.TenantID, scopes, func(err error) {
			if err != nil {
				svc.logger.Warn("device login failed", "alias", account.Alias, "error", err)
			}
			svc.pending.Complete(pend.UUID, err)
		})
		if !started {
			svc.pending.Complete(pend.UUID, fmt.Errorf("device login for %q is already running", account.Alias))
			return pend.Err()
		}
		h.elicitLogin(pend)
	}
	timer := time.NewTimer(svc.waitTimeout)
	defer timer.Stop()
	select {
	case <-pend.Done():
		if err := pend.Err(); err != nil {
			return fmt.Errorf("sign-in of %q failed: %w", account.Alias, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out waiting for sign-in of %q, open %s", account.Alias, h.deviceURL(pend))
	}
}

func (h *Handler) deviceURL(pend *PendingAuth) string {
	return h.service.BaseURL() + DeviceURI + pend.UUID
}

func (h *Handler) elicitLogin(pend *PendingAuth) {
	url := h.deviceURL(pend)
	if h.ops == nil || !h.ops.Implements(schema.MethodElicitationCreate) {
		h.service.logger.Info("sign-in required", "alias", pend.Alias, "url", url)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _ = h.ops.Elicit(ctx, &jsonrpc.TypedRequest[*schema.ElicitRequest]{Request: &schema.ElicitRequest{
			Params: schema.ElicitRequestParams{ElicitationId: newUUID(), Message: "Sign in to Microsoft", Mode: string(schema.ElicitRequestParamsModeUrl), Url: url},
		}})
	}()
}

func buildErrorResult(message string) (*schema.CallToolResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.InvalidParams, message, nil)
}

func buildSuccessResult(service *Service, payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	if service.UseTextField() {
		b, err := json.Marshal(payload)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(b)}}}, nil
	}
	return &schema.CallToolResult{StructuredContent: map[string]any{"result": payload}}, nil
}

func newUUID() string { return uuid.New().String() }
