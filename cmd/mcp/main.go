package main

import (
	"fmt"
	"os"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/config"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp server config: %s\n", err)
		os.Exit(1)
	}

	server := mcp.NewServer(cfg.MemoryServerURL, cfg.MCPUserID)
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %s\n", err)
		os.Exit(1)
	}
}
