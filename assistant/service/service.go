package service

import (
	mcpservice "github.com/viant/graph-assistant/assistant/mcp"
)

// Service is the assistant MCP service, exposed here for embedding hosts.
type Service = mcpservice.Service

// Config aliases the MCP service config for constructor parity.
type Config = mcpservice.Config

// NewService delegates to assistant/mcp.NewService.
func NewService(cfg *Config) *Service { return mcpservice.NewService(cfg) }
