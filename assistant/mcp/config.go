package mcp

import (
	"github.com/viant/scy"
)

// Config controls the assistant MCP server behaviour and authentication.
type Config struct {
	// Azure AD application (client) ID for Microsoft Graph.
	ClientID string `json:"clientID"`
	// Tenant ID or "organizations"/"common".
	TenantID string `json:"tenantID"`

	// SecretsBase is an AFS URL root where device-code auth records are persisted.
	// Examples: mem://localhost/graph-assistant, file://~/.secret/graph-assistant
	SecretsBase string `json:"secretsBase,omitempty"`

	// CallbackBaseURL is used to generate absolute URLs for OOB flows.
	// Example: http://localhost:7788
	CallbackBaseURL string `json:"callbackBaseURL,omitempty"`

	// RequireAuth is set when the server is OAuth2 protected; pending login
	// endpoints then take the namespace from the caller token only.
	RequireAuth bool `json:"requireAuth,omitempty"`

	// If true, return tool results in the `data` field instead of `text`.
	UseData bool `json:"useData,omitempty"`

	// WaitTimeoutSeconds caps how long a tool call waits for device login (default 300s).
	WaitTimeoutSeconds int `json:"waitTimeoutSeconds,omitempty"`

	// AzureRef optionally points to an Azure OAuth2 client config stored as a scy resource.
	// It uses EncodedResource syntax: "<URL>|<kmsKey>", where the key part is optional.
	//  - file-based:    "~/.secret/azure.yaml|blowfish://default"
	//  - GCP secret:    "gcp://secretmanager/projects/myproj/secrets/azure-cred|blowfish://default"
	// The referenced content should unmarshal into github.com/viant/scy/cred.Azure.
	AzureRef scy.EncodedResource `json:"azureRef,omitempty"`
}
