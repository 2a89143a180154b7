package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/viant/mcp-protocol/authorization"
	oauthmeta "github.com/viant/mcp-protocol/oauth2/meta"
	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"
	serverauth "github.com/viant/mcp/server/auth"
	"github.com/viant/scy"
	"github.com/viant/scy/auth/flow"
	"github.com/viant/scy/cred"
	_ "github.com/viant/scy/kms/blowfish"

	"github.com/viant/graph-assistant/assistant/graph"
	"github.com/viant/graph-assistant/assistant/mcp"
)

// Options defines CLI flags for the assistant MCP server.
type Options struct {
	HTTPAddr     string `short:"a" long:"addr" description:"HTTP listen address (required unless --query is set)"`
	ClientID     string `long:"client-id" env:"ASSISTANT_CLIENT_ID" description:"Azure AD application (client) ID"`
	TenantID     string `long:"tenant-id" env:"ASSISTANT_TENANT_ID" default:"organizations" description:"Tenant ID or 'organizations'"`
	SecretsBase  string `long:"secretsBase" default:"mem://localhost/graph-assistant" description:"AFS base URL for persisting auth records (e.g., file://$HOME/.secret/graph-assistant)"`
	AzureRef     string `long:"azure-ref" env:"ASSISTANT_AZURE_REF" description:"scy EncodedResource for Azure cred (e.g., gcp://...|blowfish://default)"`
	Oauth2Config string `short:"o" long:"oauth2config" description:"Path to JSON OAuth2 configuration file (scy EncodedResource)"`
	UseIdToken   bool   `short:"i" long:"use-id-token" description:"Use ID token (instead of access token) for identity scoping"`
	UseData      bool   `long:"use-data" description:"Return tool results as structured content instead of text"`
	WaitTimeout  int    `long:"wait-timeout" description:"Seconds a tool call waits for device login"`
	Query        string `short:"q" long:"query" choice:"details" choice:"tasks" choice:"events" description:"Run one query against Microsoft Graph, print JSON and exit"`
	Alias        string `long:"alias" default:"default" description:"Account alias used with --query"`
	Debug        bool   `short:"d" long:"debug" description:"Enable debug logging"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := opts.validate(); err != nil {
		log.Fatal(err)
	}

	// Derive callback base URL from listen address.
	baseURL := "http://localhost"
	if opts.HTTPAddr != "" {
		hostport := opts.HTTPAddr
		if hostport[0] == ':' {
			hostport = "localhost" + hostport
		}
		baseURL = "http://" + hostport
	}
	// If azure-ref provided, derive missing values from secret (clientID, tenantID).
	if opts.AzureRef != "" {
		res := scy.EncodedResource(opts.AzureRef).Decode(context.Background(), cred.Azure{})
		sec, err := scy.New().Load(context.Background(), res)
		if err != nil {
			log.Fatalf("failed to load azure-ref secret: %v", err)
		}
		az, ok := sec.Target.(*cred.Azure)
		if !ok {
			log.Fatal("azure-ref secret is not of type cred.Azure (expected JSON with ClientID, TenantID, EncryptedClientSecret)")
		}
		if opts.ClientID == "" && az.ClientID != "" {
			opts.ClientID = az.ClientID
		}
		if (opts.TenantID == "" || opts.TenantID == "organizations") && az.TenantID != "" {
			opts.TenantID = az.TenantID
		}
	}

	svc := mcp.NewService(&mcp.Config{
		ClientID:           opts.ClientID,
		TenantID:           opts.TenantID,
		SecretsBase:        strings.Replace(opts.SecretsBase, "$HOME", os.Getenv("HOME"), 1),
		CallbackBaseURL:    baseURL,
		UseData:            opts.UseData,
		WaitTimeoutSeconds: opts.WaitTimeout,
		RequireAuth:        strings.TrimSpace(opts.Oauth2Config) != "",
		AzureRef:           scy.EncodedResource(opts.AzureRef),
	})

	if opts.Query != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runQuery(ctx, svc, opts); err != nil {
			log.Fatal(err)
		}
		return
	}

	options := []mcpsrv.Option{
		mcpsrv.WithImplementation(schema.Implementation{Name: "graph-assistant", Version: "0.1.0"}),
		mcpsrv.WithNewHandler(mcp.NewHandler(svc)),
		mcpsrv.WithEndpointAddress(opts.HTTPAddr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
	}
	for uri, handler := range svc.HTTPHandlers() {
		options = append(options, mcpsrv.WithCustomHTTPHandler(uri, handler))
	}

	// Optional server-level OAuth2
	if v := strings.TrimSpace(opts.Oauth2Config); v != "" {
		res := scy.EncodedResource(v).Decode(context.Background(), cred.Oauth2Config{})
		sec, err := scy.New().Load(context.Background(), res)
		if err != nil {
			log.Fatalf("failed to load oauth2config: %v", err)
		}
		oc, ok := sec.Target.(*cred.Oauth2Config)
		if !ok {
			log.Fatalf("invalid oauth2config secret type")
		}
		authPolicy := &authorization.Policy{
			Global: &authorization.Authorization{
				UseIdToken: opts.UseIdToken,
				ProtectedResourceMetadata: &oauthmeta.ProtectedResourceMetadata{
					AuthorizationServers: []string{oc.Config.Endpoint.AuthURL},
				}},
			ExcludeURI: "/sse," + mcp.DeviceURI,
		}
		bff := &serverauth.BackendForFrontend{Client: &oc.Config, AuthorizationExchangeHeader: flow.AuthorizationExchangeHeader}
		authSvc, err := serverauth.New(&serverauth.Config{Policy: authPolicy, BackendForFrontend: bff})
		if err != nil {
			log.Fatalf("failed to init auth service: %v", err)
		}
		options = append(options,
			mcpsrv.WithAuthorizer(authSvc.Middleware),
			mcpsrv.WithProtectedResourcesHandler(authSvc.ProtectedResourcesHandler),
		)
	}

	server, err := mcpsrv.New(options...)
	if err != nil {
		log.Fatal(err)
	}
	server.UseStreamableHTTP(true)
	if err := server.HTTP(context.Background(), opts.HTTPAddr).ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

// validate reports option combinations that leave nothing to run.
func (o *Options) validate() error {
	if o.ClientID == "" && o.AzureRef == "" {
		return errors.New("missing --client-id/ASSISTANT_CLIENT_ID (or provide --azure-ref / ASSISTANT_AZURE_REF)")
	}
	if o.HTTPAddr == "" && o.Query == "" {
		return errors.New("nothing to run: provide --addr to serve MCP over HTTP or --query for a one-shot query")
	}
	return nil
}

// runQuery signs in on the terminal when needed and prints one shaped response.
func runQuery(ctx context.Context, svc *mcp.Service, opts Options) error {
	prompt := func(msg string) { _, _ = fmt.Fprintln(os.Stderr, msg) }
	factory := svc.GraphManager().Factory(opts.Alias, opts.TenantID, graph.DefaultScopes(), prompt)
	acc := graph.NewAccessor(factory, graph.WithLogger(slog.Default().With("alias", opts.Alias)))

	var (
		out any
		err error
	)
	switch opts.Query {
	case "details":
		out, err = acc.GetMyDetails(ctx, false)
	case "tasks":
		out, err = acc.GetMyTasks(ctx, true)
	case "events":
		out, err = acc.GetMyEvents(ctx, false)
	default:
		return fmt.Errorf("unsupported query: %s", opts.Query)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
