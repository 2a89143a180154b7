package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity/cache"
	"github.com/viant/afs"
	oaauth "github.com/viant/graph-assistant/auth"
)

// Manager provides Graph sessions per account alias.
type Manager struct {
	clientID    string
	secretsBase string
	auth        *oaauth.Service
	fs          afs.Service

	mu sync.RWMutex
	// pending holds device-code prompts keyed by namespace+alias.
	pending map[string]*pendingAuth
	// clients caches sessions per namespace+alias+tenant+scopes.
	clients map[string]*Client
	// creds caches device code credentials per namespace+alias until process restart.
	creds map[string]*azidentity.DeviceCodeCredential
}

type pendingAuth struct {
	mu      sync.Mutex
	message string
}

func (p *pendingAuth) set(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *pendingAuth) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// NewManager creates a manager; auth records are persisted under secretsBase
// (e.g. mem://localhost/graph-assistant, file://~/.secret/graph-assistant).
func NewManager(clientID, secretsBase string) *Manager {
	return &Manager{
		clientID:    clientID,
		secretsBase: strings.TrimRight(expandPath(secretsBase), "/"),
		auth:        oaauth.New(),
		fs:          afs.New(),
		pending:     map[string]*pendingAuth{},
		clients:     map[string]*Client{},
		creds:       map[string]*azidentity.DeviceCodeCredential{},
	}
}

// Factory returns a SessionFactory bound to one account.
func (m *Manager) Factory(alias, tenantID string, scopes []string, prompt func(string)) SessionFactory {
	return SessionFactoryFunc(func(ctx context.Context, _ string) (Session, error) {
		client, err := m.Client(ctx, alias, tenantID, scopes, prompt)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

func (m *Manager) namespace(ctx context.Context) string {
	ns, _ := m.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	return ns
}

func (m *Manager) authRecordURL(ns, alias string) string {
	if m.secretsBase == "" {
		return ""
	}
	return m.secretsBase + "/" + safePart(ns) + "/" + safePart(alias) + "/auth_record.json"
}

func safePart(s string) string {
	s = strings.TrimSpace(os.ExpandEnv(s))
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "|", "_", " ", "_", "@", "_")
	return repl.Replace(s)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if home, err := os.UserHomeDir(); err == nil {
		p = strings.Replace(p, "file://~/", "file://"+home+"/", 1)
		if strings.HasPrefix(p, "~/") {
			p = home + p[1:]
		}
	}
	return p
}

func (m *Manager) loadAuthRecord(ctx context.Context, ns, alias string) (azidentity.AuthenticationRecord, bool) {
	var rec azidentity.AuthenticationRecord
	u := m.authRecordURL(ns, alias)
	if u == "" {
		return rec, false
	}
	rc, err := m.fs.OpenURL(ctx, u)
	if err != nil || rc == nil {
		return rec, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false
	}
	return rec, true
}

func (m *Manager) saveAuthRecord(ctx context.Context, ns, alias string, rec azidentity.AuthenticationRecord) {
	u := m.authRecordURL(ns, alias)
	if u == "" {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := m.fs.Upload(ctx, u, 0o600, bytes.NewReader(b)); err != nil {
		debugf("failed to save auth record; ns=%s alias=%s: %v", ns, alias, err)
		return
	}
	debugf("saved auth record; ns=%s alias=%s url=%s", ns, alias, u)
}

// HasAuthRecord reports whether an auth record exists for alias.
func (m *Manager) HasAuthRecord(ctx context.Context, alias string) bool {
	_, ok := m.loadAuthRecord(ctx, m.namespace(ctx), alias)
	return ok
}

func (m *Manager) credentialOptions(ns, alias, tenantID string, prompt func(string)) (*azidentity.DeviceCodeCredentialOptions, error) {
	aCache, err := cache.New(&cache.Options{Name: "graph-assistant-" + safePart(ns) + "-" + safePart(alias)})
	if err != nil {
		return nil, err
	}
	// Always provide a prompt callback so the SDK never prints to stdout.
	userPrompt := func(_ context.Context, msg azidentity.DeviceCodeMessage) error {
		if prompt != nil {
			prompt(msg.Message)
		}
		return nil
	}
	return &azidentity.DeviceCodeCredentialOptions{
		TenantID:   tenantID,
		ClientID:   m.clientID,
		Cache:      aCache,
		UserPrompt: userPrompt,
	}, nil
}

// NeedsInteractive checks quickly (non-interactive) whether a device flow is required.
func (m *Manager) NeedsInteractive(ctx context.Context, alias, tenantID string, scopes []string) bool {
	ns := m.namespace(ctx)
	m.mu.RLock()
	cred := m.creds[ns+"|"+alias]
	m.mu.RUnlock()
	if cred == nil {
		opts, err := m.credentialOptions(ns, alias, tenantID, nil)
		if err != nil {
			return true
		}
		if rec, ok := m.loadAuthRecord(ctx, ns, alias); ok {
			opts.AuthenticationRecord = rec
		}
		if cred, err = azidentity.NewDeviceCodeCredential(opts); err != nil {
			return true
		}
	}
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, err := cred.GetToken(ctx2, policy.TokenRequestOptions{Scopes: scopes})
	return err != nil
}

// Client returns a ready-to-use Graph session with given scopes.
func (m *Manager) Client(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*Client, error) {
	ns := m.namespace(ctx)
	key := m.clientKey(ns, alias, tenantID, scopes)
	m.mu.RLock()
	if cli, ok := m.clients[key]; ok {
		m.mu.RUnlock()
		return cli, nil
	}
	m.mu.RUnlock()

	cred, err := m.Credential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	client, err := NewClientWithCredential(cred, scopes)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have created it meanwhile.
	if existing, ok := m.clients[key]; ok {
		return existing, nil
	}
	m.clients[key] = client
	return client, nil
}

// Credential returns a cached DeviceCodeCredential for alias, acquiring and caching if needed.
func (m *Manager) Credential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	key := m.namespace(ctx) + "|" + alias
	m.mu.RLock()
	if c := m.creds[key]; c != nil {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()
	cred, err := m.acquireCredential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.creds[key]; existing != nil {
		return existing, nil
	}
	m.creds[key] = cred
	return cred, nil
}

// StartDeviceLogin launches the device code authentication in background.
// The prompt message is retrievable via DevicePrompt until login finishes.
// It reports false without calling onComplete when a login for the same
// namespace and alias is already running.
func (m *Manager) StartDeviceLogin(ctx context.Context, alias, tenantID string, scopes []string, onComplete func(error)) bool {
	key := m.namespace(ctx) + "|" + alias
	m.mu.Lock()
	if _, ok := m.pending[key]; ok {
		m.mu.Unlock()
		return false
	}
	holder := &pendingAuth{}
	m.pending[key] = holder
	m.mu.Unlock()
	go func() {
		_, err := m.Credential(ctx, alias, tenantID, scopes, holder.set)
		m.mu.Lock()
		delete(m.pending, key)
		m.mu.Unlock()
		if onComplete != nil {
			onComplete(err)
		}
	}()
	return true
}

// DevicePrompt returns the last device-code prompt message for alias in namespace ns.
func (m *Manager) DevicePrompt(ns, alias string) string {
	if ns == "" {
		ns = "default"
	}
	m.mu.RLock()
	p, ok := m.pending[ns+"|"+alias]
	m.mu.RUnlock()
	if !ok {
		return ""
	}
	return p.get()
}

// acquireCredential performs Device Code flow. If an auth record exists, use it for silent login.
func (m *Manager) acquireCredential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	if m.clientID == "" {
		return nil, errors.New("clientID is required")
	}
	ns := m.namespace(ctx)
	opts, err := m.credentialOptions(ns, alias, tenantID, prompt)
	if err != nil {
		return nil, err
	}
	rec, haveRec := m.loadAuthRecord(ctx, ns, alias)
	if haveRec {
		opts.AuthenticationRecord = rec
	}
	cred, err := azidentity.NewDeviceCodeCredential(opts)
	if err != nil {
		return nil, err
	}
	if haveRec {
		// Quick silent preflight; fall back to the interactive flow on failure.
		tctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		_, preErr := cred.GetToken(tctx, policy.TokenRequestOptions{Scopes: scopes})
		cancel()
		if preErr == nil {
			return cred, nil
		}
	}
	rec, err = cred.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return nil, err
	}
	m.saveAuthRecord(ctx, ns, alias, rec)
	return cred, nil
}

func debugf(format string, args ...any) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ASSISTANT_DEBUG")))
	if v != "" && v != "0" && v != "false" {
		log.Printf("[assistant] "+format, args...)
	}
}

// DefaultScopes returns the scopes needed for profile, tasks and calendar reads.
func DefaultScopes() []string {
	return []string{
		"https://graph.microsoft.com/.default",
	}
}

// clientKey builds a stable cache key from alias, tenantID, and normalized scopes.
func (m *Manager) clientKey(ns, alias, tenantID string, scopes []string) string {
	norm := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		norm = append(norm, strings.ToLower(s))
	}
	sort.Strings(norm)
	if ns == "" {
		ns = "default"
	}
	return ns + "|" + alias + "|" + tenantID + "|" + strings.Join(norm, ",")
}
