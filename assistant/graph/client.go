package graph

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	abs "github.com/microsoft/kiota-abstractions-go"
	absser "github.com/microsoft/kiota-abstractions-go/serialization"
	kiotaazure "github.com/microsoft/kiota-authentication-azure-go"
	jsonserialization "github.com/microsoft/kiota-serialization-json-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

// DefaultGraphURL is the Microsoft Graph service root without version.
const DefaultGraphURL = "https://graph.microsoft.com"

var registerSerializers sync.Once

// Client is a Session backed by a kiota request adapter.
type Client struct {
	adapter  abs.RequestAdapter
	graphURL string
}

// NewClient wraps adapter; graphURL defaults to DefaultGraphURL.
func NewClient(adapter abs.RequestAdapter, graphURL string) *Client {
	registerSerializers.Do(func() {
		abs.RegisterDefaultDeserializer(func() absser.ParseNodeFactory {
			return jsonserialization.NewJsonParseNodeFactory()
		})
	})
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	return &Client{adapter: adapter, graphURL: strings.TrimRight(graphURL, "/")}
}

// NewClientWithCredential builds a Graph request adapter authenticated by cred.
func NewClientWithCredential(cred azcore.TokenCredential, scopes []string) (*Client, error) {
	provider, err := kiotaazure.NewAzureIdentityAuthenticationProviderWithScopes(cred, scopes)
	if err != nil {
		return nil, fmt.Errorf("auth provider: %w", err)
	}
	adapter, err := msgraphsdk.NewGraphRequestAdapter(provider)
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	return NewClient(adapter, DefaultGraphURL), nil
}

// API starts a query for path, defaulting to v1.0.
func (c *Client) API(path string) Query {
	return &request{client: c, path: path, version: V1}
}

type request struct {
	client  *Client
	path    string
	version Version
	selects []string
	expands []string
	filter  string
	count   bool
}

func (r *request) Version(v Version) Query {
	r.version = v
	return r
}

func (r *request) Select(fields ...string) Query {
	r.selects = append(r.selects, fields...)
	return r
}

func (r *request) Filter(expr string) Query {
	r.filter = expr
	return r
}

func (r *request) Expand(fields ...string) Query {
	r.expands = append(r.expands, fields...)
	return r
}

func (r *request) Count(enabled bool) Query {
	r.count = enabled
	return r
}

func (r *request) Get(ctx context.Context, cb Callback) {
	go r.execute(ctx, abs.GET, "", cb)
}

func (r *request) Post(ctx context.Context, content string, cb Callback) {
	go r.execute(ctx, abs.POST, content, cb)
}

func (r *request) Patch(ctx context.Context, content string, cb Callback) {
	go r.execute(ctx, abs.PATCH, content, cb)
}

func (r *request) Delete(ctx context.Context, cb Callback) {
	go r.execute(ctx, abs.DELETE, "", cb)
}

func (r *request) url() (*neturl.URL, error) {
	path := r.path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := neturl.Parse(r.client.graphURL + "/" + string(r.version) + path)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if len(r.selects) > 0 {
		q.Set("$select", strings.Join(r.selects, ","))
	}
	if r.filter != "" {
		q.Set("$filter", r.filter)
	}
	if len(r.expands) > 0 {
		q.Set("$expand", strings.Join(r.expands, ","))
	}
	if r.count {
		q.Set("$count", "true")
	}
	// OData expects %20 rather than '+' for spaces.
	u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	return u, nil
}

func (r *request) execute(ctx context.Context, method abs.HttpMethod, content string, cb Callback) {
	u, err := r.url()
	if err != nil {
		cb(err, nil)
		return
	}
	info := abs.NewRequestInformation()
	info.Method = method
	info.SetUri(*u)
	info.Headers.TryAdd("Accept", "application/json")
	if r.count {
		info.Headers.TryAdd("ConsistencyLevel", "eventual")
	}
	if content != "" {
		info.SetStreamContentAndContentType([]byte(content), "application/json")
	}
	errorMapping := abs.ErrorMappings{
		"XXX": odataerrors.CreateODataErrorFromDiscriminatorValue,
	}
	res, err := r.client.adapter.SendPrimitive(ctx, info, "[]byte", errorMapping)
	if err != nil {
		cb(err, nil)
		return
	}
	body, _ := res.([]byte)
	cb(nil, json.RawMessage(body))
}
