package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"kcdev/internal/admin"
	"kcdev/internal/keycloak"
	"kcdev/internal/realm"

	"github.com/mark3labs/mcp-go/mcp"
)

// statusResult is the JSON answer of keycloak_status and keycloak_start.
type statusResult struct {
	Running        bool   `json:"running"`
	Version        string `json:"version,omitempty"`
	BaseURL        string `json:"baseUrl,omitempty"`
	ManagementURL  string `json:"managementUrl,omitempty"`
	HTTPPort       int    `json:"httpPort,omitempty"`
	ManagementPort int    `json:"managementPort,omitempty"`
	PID            int    `json:"pid,omitempty"`
	LogPath        string `json:"logPath,omitempty"`
	Realm          string `json:"realm,omitempty"`
}

// handleStart handles the keycloak_start MCP tool.
func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	cfg := s.cfg
	if version, ok := args["version"].(string); ok && version != "" {
		cfg.Version = version
	}
	if port, ok := args["http_port"].(float64); ok && port != 0 {
		if port < 1 || port > 65535 {
			return mcp.NewToolResultError(fmt.Sprintf("http_port %d out of range", int(port))), nil
		}
		cfg.HTTPPort = int(port)
		cfg.ManagementPort = int(port) + 1000
		cfg.ExplicitPorts = true
	}

	opts := keycloak.OptionsFromConfig(cfg)
	realmName := ""
	if path, ok := args["realm_file"].(string); ok && path != "" {
		realmCfg, err := realm.LoadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load realm file: %v", err)), nil
		}
		opts.Realm = realmCfg
		realmName = realmCfg.Realm
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	managed, err := keycloak.New(ctx, s.registry, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create instance: %v", err)), nil
	}

	if err := managed.Install(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Installation failed: %v", err)), nil
	}
	if err := managed.Start(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Startup failed: %v", err)), nil
	}

	s.managed = managed
	adminRealm := "master"
	if realmName != "" {
		adminRealm = realmName
	}
	s.admin = admin.New(managed.BaseURL(), adminRealm, managed.AdminUser(), managed.AdminPassword())

	return s.statusResultLocked(realmName)
}

// handleStop handles the keycloak_stop MCP tool.
func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.managed == nil {
		return mcp.NewToolResultText("No managed Keycloak instance"), nil
	}

	status, err := s.managed.Stop(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Stop failed: %v", err)), nil
	}

	result := map[string]interface{}{
		"stopped": true,
		"restore": string(status),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleStatus handles the keycloak_status MCP tool.
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	realmName := ""
	if s.admin != nil && s.admin.Realm() != "master" {
		realmName = s.admin.Realm()
	}
	return s.statusResultLocked(realmName)
}

// statusResultLocked renders the managed instance state. Caller holds the
// mutex.
func (s *Server) statusResultLocked(realmName string) (*mcp.CallToolResult, error) {
	result := statusResult{}
	if s.managed != nil {
		result = statusResult{
			Running:        s.managed.IsRunning(),
			Version:        s.managed.Version(),
			BaseURL:        s.managed.BaseURL(),
			ManagementURL:  s.managed.ManagementURL(),
			HTTPPort:       s.managed.HTTPPort(),
			ManagementPort: s.managed.ManagementPort(),
			PID:            s.managed.PID(),
			LogPath:        s.managed.LogPath(),
			Realm:          realmName,
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleCreateUser handles the keycloak_create_user MCP tool.
func (s *Server) handleCreateUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	username, ok := args["username"].(string)
	if !ok || username == "" {
		return mcp.NewToolResultError("username is required"), nil
	}
	password, ok := args["password"].(string)
	if !ok || password == "" {
		return mcp.NewToolResultError("password is required"), nil
	}
	email, _ := args["email"].(string)

	adminClient, err := s.adminClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := adminClient.CreateUser(ctx, admin.User{Username: username, Password: password, Email: email})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create user: %v", err)), nil
	}

	data, err := json.MarshalIndent(map[string]string{"id": id, "username": username}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleUserToken handles the keycloak_user_token MCP tool.
func (s *Server) handleUserToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	username, ok := args["username"].(string)
	if !ok || username == "" {
		return mcp.NewToolResultError("username is required"), nil
	}
	password, ok := args["password"].(string)
	if !ok || password == "" {
		return mcp.NewToolResultError("password is required"), nil
	}
	clientID, ok := args["client_id"].(string)
	if !ok || clientID == "" {
		return mcp.NewToolResultError("client_id is required"), nil
	}

	adminClient, err := s.adminClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	token, err := adminClient.UserToken(ctx, username, password, clientID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to obtain token: %v", err)), nil
	}

	data, err := json.MarshalIndent(map[string]interface{}{
		"accessToken": token.AccessToken,
		"tokenType":   token.TokenType,
		"expiry":      token.Expiry,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// adminClient returns the admin client of the running instance.
func (s *Server) adminClient() (*admin.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.managed == nil || !s.managed.IsRunning() {
		return nil, fmt.Errorf("no running Keycloak instance, call keycloak_start first")
	}
	return s.admin, nil
}
