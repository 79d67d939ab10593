package mcpserver

import (
	"context"
	"sync"

	"kcdev/internal/admin"
	"kcdev/internal/config"
	"kcdev/internal/keycloak"
	"kcdev/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP facade over the Keycloak lifecycle and admin API.
type Server struct {
	cfg       config.Config
	mcpServer *server.MCPServer
	registry  *keycloak.Registry

	mu      sync.Mutex
	managed *keycloak.Server
	admin   *admin.Client
}

// New creates an MCP server with the given base configuration. The
// configuration provides install directory, ports and credentials for
// instances started through the keycloak_start tool.
func New(version string, cfg config.Config) *Server {
	s := &Server{
		cfg: cfg,
		mcpServer: server.NewMCPServer(
			"kcdev",
			version,
			server.WithToolCapabilities(false),
		),
		registry: keycloak.NewRegistry(),
	}
	s.registerTools()
	return s
}

// Start serves MCP requests on stdio until the client disconnects. Any
// instance still running afterwards is stopped.
func (s *Server) Start(ctx context.Context) error {
	logging.Info("MCP", "Serving kcdev tools on stdio")
	err := server.ServeStdio(s.mcpServer)

	if stopErr := s.registry.StopAll(ctx); stopErr != nil {
		logging.Warn("MCP", "Could not stop instances on shutdown: %v", stopErr)
	}
	return err
}

// registerTools wires up the kcdev tool set.
func (s *Server) registerTools() {
	startTool := mcp.NewTool("keycloak_start",
		mcp.WithDescription("Install (if needed) and start a local Keycloak development server, waiting until it is ready"),
		mcp.WithString("version",
			mcp.Description("Keycloak version to run (defaults to the configured version)"),
		),
		mcp.WithNumber("http_port",
			mcp.Description("Pin the HTTP port; the management port is the HTTP port plus 1000. Without it a free port pair is allocated"),
		),
		mcp.WithString("realm_file",
			mcp.Description("Path to a realm definition (YAML or JSON) imported on startup"),
		),
	)
	s.mcpServer.AddTool(startTool, s.handleStart)

	stopTool := mcp.NewTool("keycloak_stop",
		mcp.WithDescription("Stop the managed Keycloak server and roll back its distribution state"),
	)
	s.mcpServer.AddTool(stopTool, s.handleStop)

	statusTool := mcp.NewTool("keycloak_status",
		mcp.WithDescription("Report whether the managed Keycloak server is running and where it listens"),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)

	createUserTool := mcp.NewTool("keycloak_create_user",
		mcp.WithDescription("Create an enabled user with a permanent password in the running instance"),
		mcp.WithString("username",
			mcp.Required(),
			mcp.Description("Username of the new user"),
		),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Password of the new user"),
		),
		mcp.WithString("email",
			mcp.Description("Email address (defaults to <username>@example.com)"),
		),
	)
	s.mcpServer.AddTool(createUserTool, s.handleCreateUser)

	userTokenTool := mcp.NewTool("keycloak_user_token",
		mcp.WithDescription("Obtain an access token for a user via OAuth2 password grant"),
		mcp.WithString("username",
			mcp.Required(),
			mcp.Description("Username to authenticate"),
		),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Password to authenticate with"),
		),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("OIDC client ID the token is issued for"),
		),
	)
	s.mcpServer.AddTool(userTokenTool, s.handleUserToken)
}
