package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Alloy", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Alloy training program server. Inspect programs, microcycles and generated sessions, poll generation status, and queue microcycle generation. Generation runs in the background; poll get_microcycle_status after queueing."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetProgram, Handler: h.getProgram},
		server.ServerTool{Tool: toolGetProgramStatus, Handler: h.getProgramStatus},
		server.ServerTool{Tool: toolGetMicrocycle, Handler: h.getMicrocycle},
		server.ServerTool{Tool: toolGetMicrocycleStatus, Handler: h.getMicrocycleStatus},
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
		server.ServerTool{Tool: toolGenerateMicrocycle, Handler: h.generateMicrocycle},
		server.ServerTool{Tool: toolGetJob, Handler: h.getJob},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resVocabulary, Handler: h.vocabulary},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resVocabulary = mcp.NewResource(
	"alloy://vocabulary",
	"Scheduling Vocabulary",
	mcp.WithResourceDescription("Session types, movement patterns, goals, exercise roles and generation statuses used in program data"),
	mcp.WithMIMEType("application/json"),
)
