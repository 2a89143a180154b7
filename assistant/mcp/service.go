package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/viant/graph-assistant/assistant/graph"
	oa "github.com/viant/graph-assistant/auth"
	"github.com/viant/mcp-protocol/authorization"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

const defaultWaitTimeout = 300 * time.Second

var (
	deviceURLExpr  = regexp.MustCompile(`https?://[^\s]+`)
	deviceCodeExpr = regexp.MustCompile(`(?i)code\s+([A-Z0-9-]+)`)
)

// deviceLogin is the part of graph.Manager driving out-of-band logins.
type deviceLogin interface {
	NeedsInteractive(ctx context.Context, alias, tenantID string, scopes []string) bool
	StartDeviceLogin(ctx context.Context, alias, tenantID string, scopes []string, onComplete func(error)) bool
	DevicePrompt(ns, alias string) string
}

// Service wires the graph manager, per-account accessors and OOB login helpers.
type Service struct {
	graphMgr    *graph.Manager
	login       deviceLogin
	requireAuth bool
	baseURL     string
	useText     bool
	pending     *PendingAuths
	auth        *oa.Service
	tenantID    string
	clientID    string
	waitTimeout time.Duration
	logger      *slog.Logger

	// accessors holds one accessor per namespace+alias+tenant.
	accMu     sync.RWMutex
	accessors map[string]*graph.Accessor
}

func NewService(cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	// Optionally resolve Azure OAuth2 client from scy EncodedResource.
	var az *cred.Azure
	if cfg.AzureRef != "" {
		res := cfg.AzureRef.Decode(context.Background(), cred.Azure{})
		if sec, err := scy.New().Load(context.Background(), res); err == nil {
			if v, ok := sec.Target.(*cred.Azure); ok {
				az = v
			}
		}
	}
	clientID := cfg.ClientID
	if az != nil && az.ClientID != "" {
		clientID = az.ClientID
	}
	waitTimeout := defaultWaitTimeout
	if cfg.WaitTimeoutSeconds > 0 {
		waitTimeout = time.Duration(cfg.WaitTimeoutSeconds) * time.Second
	}
	mgr := graph.NewManager(clientID, cfg.SecretsBase)
	return &Service{
		graphMgr:    mgr,
		login:       mgr,
		requireAuth: cfg.RequireAuth,
		baseURL:     strings.TrimRight(cfg.CallbackBaseURL, "/"),
		useText:     !cfg.UseData,
		pending:     NewPendingAuths(),
		auth:        oa.New(),
		tenantID:    cfg.TenantID,
		clientID:    clientID,
		waitTimeout: waitTimeout,
		logger:      slog.Default().With("component", "assistant"),
		accessors:   map[string]*graph.Accessor{},
	}
}

// Accessor returns the accessor for account, creating it on first use.
func (s *Service) Accessor(ctx context.Context, account graph.Account) *graph.Accessor {
	ns, _ := s.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	tenantID := account.TenantID
	if tenantID == "" {
		tenantID = s.tenantID
	}
	key := ns + "|" + account.Alias + "|" + tenantID
	s.accMu.RLock()
	acc, ok := s.accessors[key]
	s.accMu.RUnlock()
	if ok {
		return acc
	}
	s.accMu.Lock()
	defer s.accMu.Unlock()
	if acc, ok = s.accessors[key]; ok {
		return acc
	}
	logger := s.logger.With("alias", account.Alias)
	prompt := func(msg string) { logger.Warn("unexpected device login prompt", "prompt", msg) }
	factory := s.graphMgr.Factory(account.Alias, tenantID, graph.DefaultScopes(), prompt)
	acc = graph.NewAccessor(factory, graph.WithLogger(logger))
	s.accessors[key] = acc
	return acc
}

// DeviceURI prefixes device login pages; it is the only auth path served without a token.
const DeviceURI = "/assistant/auth/device/"

// HTTPHandlers returns the out-of-band login endpoints keyed by URI.
func (s *Service) HTTPHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		DeviceURI:                       s.DeviceHandler(),
		"/assistant/auth/pending":       s.PendingListHandler(),
		"/assistant/auth/pending/clear": s.PendingClearHandler(),
	}
}

// DeviceHandler serves the device login page for a pending auth UUID.
func (s *Service) DeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// URL: /assistant/auth/device/{uuid}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 || parts[3] == "" {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		pend, ok := s.pending.Get(parts[3])
		if !ok {
			http.Error(w, "no pending auth", http.StatusNotFound)
			return
		}
		msg := s.login.DevicePrompt(pend.Namespace, pend.Alias)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if msg == "" {
			_, _ = fmt.Fprint(w, buildWaitingForDeviceHTML())
			return
		}
		_, _ = fmt.Fprint(w, buildDeviceLoginHTML(msg))
	}
}

// buildDeviceLoginHTML converts the Azure device prompt into a clickable HTML with copyable code.
func buildDeviceLoginHTML(msg string) string {
	url := extractURL(msg)
	escURL := html.EscapeString(url)
	escCode := html.EscapeString(extractCode(msg))
	if escCode == "" {
		escMsg := html.EscapeString(msg)
		return fmt.Sprintf(`<html><body>
<h3>Sign in to Microsoft</h3>
<p>Open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<pre>%[2]s</pre>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escMsg)
	}
	return fmt.Sprintf(`<html><body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif;">
<h3>Sign in to Microsoft</h3>
<p>Click to open: <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a></p>
<p>Then enter this code:</p>
<p style="font-size: 1.4em; font-weight: 600;"><code>%[2]s</code> <button onclick="navigator.clipboard.writeText('%[2]s')">Copy</button></p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escCode)
}

func buildWaitingForDeviceHTML() string {
	url := html.EscapeString("https://microsoft.com/devicelogin")
	return fmt.Sprintf(`<!doctype html>
<html><head>
<meta http-equiv="refresh" content="2">
<meta charset="utf-8">
<title>Sign in to Microsoft</title>
</head><body>
<h3>Sign in to Microsoft</h3>
<p>Preparing device login… this page refreshes automatically.</p>
<p>If it takes too long, you can open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
</body></html>`, url)
}

func extractURL(msg string) string {
	if m := deviceURLExpr.FindString(msg); m != "" {
		return m
	}
	return "https://microsoft.com/devicelogin"
}

func extractCode(msg string) string {
	if m := deviceCodeExpr.FindStringSubmatch(msg); len(m) == 2 {
		return m[1]
	}
	return ""
}

// requestNamespace resolves the caller namespace. A token in context always
// wins; the namespace query parameter is honoured only when auth is off.
func (s *Service) requestNamespace(r *http.Request) string {
	if r.Context().Value(authorization.TokenKey) != nil {
		ns, _ := s.auth.Namespace(r.Context())
		return ns
	}
	if s.requireAuth {
		return ""
	}
	return r.URL.Query().Get("namespace")
}

// PendingListHandler returns JSON of pending auths for a namespace.
func (s *Service) PendingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := s.requestNamespace(r)
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		type row struct{ UUID, Alias, TenantID, Namespace string }
		list := s.pending.ListNamespace(ns)
		out := make([]row, 0, len(list))
		for _, v := range list {
			out = append(out, row{UUID: v.UUID, Alias: v.Alias, TenantID: v.TenantID, Namespace: v.Namespace})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

// PendingClearHandler clears all pending auths for a namespace.
func (s *Service) PendingClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := s.requestNamespace(r)
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		cleared := s.pending.ClearNamespace(ns)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"cleared": len(cleared), "uuids": cleared})
	}
}

func (s *Service) GraphManager() *graph.Manager { return s.graphMgr }
func (s *Service) UseTextField() bool           { return s.useText }
func (s *Service) BaseURL() string              { return s.baseURL }
func (s *Service) Pending() *PendingAuths       { return s.pending }
func (s *Service) TenantID() string             { return s.tenantID }
func (s *Service) ClientID() string             { return s.clientID }
