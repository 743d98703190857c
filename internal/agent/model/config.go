package model

// ================ Config ================

// ProvidersConfig selects and configures the chat-model providers reachable
// through a "provider:model" selector.
type ProvidersConfig struct {
	// Default is used when the request supplies no selector, a malformed
	// selector, or an unknown provider.
	Default     string  `envconfig:"DEFAULT_MODEL" default:"qwen:qwen3-max"`
	Temperature float32 `envconfig:"MODEL_TEMPERATURE" default:"0.7"`
	MaxTokens   int     `envconfig:"MODEL_MAX_TOKENS" default:"4096"`

	Qwen struct {
		APIKey  string `envconfig:"QWEN_API_KEY"`
		BaseURL string `envconfig:"QWEN_BASE_URL" default:"https://dashscope.aliyuncs.com/compatible-mode/v1"`
	}
	Google struct {
		APIKey  string `envconfig:"GEMINI_API_KEY"`
		BaseURL string `envconfig:"GEMINI_BASE_URL"`
	}
}

// ConversationConfig bounds the model/tool loop of a single run.
type ConversationConfig struct {
	Tools struct {
		// MaxRounds caps how many times a run may re-enter the tool
		// executor before it is aborted with ErrToolRoundLimit.
		MaxRounds int `envconfig:"CONVERSATION_TOOL_MAX_ROUNDS" default:"10"`
	}
}

// CheckpointConfig selects the conversation history backend.
type CheckpointConfig struct {
	// Backend is "sqlite" or "redis".
	Backend string `envconfig:"CHECKPOINT_BACKEND" default:"sqlite"`
	// Path is the SQLite database file for the sqlite backend. Sessions
	// share the same file.
	Path string `envconfig:"CHECKPOINT_DB_PATH" default:"chat_history.db"`
	// TTL is the per-conversation expiry for the redis backend.
	TTL string `envconfig:"CONVERSATION_TTL" default:"0"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	Weather struct {
		GeoColaKey string `envconfig:"WEATHER_GEO_COLA_KEY"`
		AmapKey    string `envconfig:"WEATHER_AMAP_KEY"`
	}
	DateTime struct {
		Timezone string `envconfig:"DATETIME_TIMEZONE" default:"Asia/Shanghai"`
	}
}

// MCPConfig lists external MCP servers whose tools are merged into the
// registry at startup.
type MCPConfig struct {
	// Servers is a comma-separated list of name=endpoint pairs, each
	// endpoint a streamable-HTTP MCP URL.
	Servers string `envconfig:"MCP_SERVERS"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr        string `envconfig:"SERVER_ADDR" default:":8080"`
	Environment string `envconfig:"APP_ENV" default:"development"`
}
