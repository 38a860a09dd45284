package mcp

var userIDProperty = Property{
	Type:        "string",
	Description: "User the memories belong to (defaults to the server's configured user)",
}

// ToolDefinitions returns the MCP tool definitions for the memory server.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "memory_retrieve",
			Description: "Find the stored memories most relevant to a query, ranked by relevance. " +
				"Use this before answering questions about the user's preferences, history or personal details.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id":   userIDProperty,
					"query":     {Type: "string", Description: "Natural language query"},
					"limit":     {Type: "number", Description: "Maximum memories to return (default 5)", Default: 5},
					"threshold": {Type: "number", Description: "Minimum relevance score between 0 and 1"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name: "memory_save",
			Description: "Store a fact about the user durably. Identical content (ignoring case and spacing) " +
				"is stored only once.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id":  userIDProperty,
					"content":  {Type: "string", Description: "The fact to remember"},
					"category": {Type: "string", Description: "Optional category such as preference or personal"},
				},
				Required: []string{"content"},
			},
		},
		{
			Name:        "memory_forget",
			Description: "Delete the memory whose content matches exactly (ignoring case and spacing).",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id": userIDProperty,
					"content": {Type: "string", Description: "Content of the memory to delete"},
				},
				Required: []string{"content"},
			},
		},
		{
			Name:        "memory_list",
			Description: "List the user's memories, newest first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id": userIDProperty,
					"limit":   {Type: "number", Description: "Maximum memories to return (default 20)", Default: 20},
				},
			},
		},
	}
}
