/*
Package server implements msgpack IPC for the autocomplete engine.

Clients write a stream of msgpack maps to stdin and read one msgpack map per
request from stdout. Every message carries an "id" that is echoed back.
Messages without an "action" are completion requests:

	{"id": "req_001", "p": "ca", "l": 3}

The server answers with suggestions in rank order, the count and the time
taken in microseconds:

	{"id": "req_001", "s": [{"w": "car", "r": 1}, {"w": "cat", "r": 2}, {"w": "cart", "r": 3}], "c": 3, "t": 42}

Management actions change or inspect the vocabulary:

	{"id": "m1", "action": "upsert", "term": "cab", "score": 9}
	{"id": "m2", "action": "remove", "term": "cab"}
	{"id": "m3", "action": "stats"}
	{"id": "m4", "action": "health"}
	{"id": "m5", "action": "save"}

Dictionary actions resize the set of loaded chunk files:

	{"id": "d1", "action": "get_info"}
	{"id": "d2", "action": "set_size", "chunk_count": 5}
	{"id": "d3", "action": "get_options"}

Config actions read or change the server limits, persisting them to the
TOML file:

	{"id": "c1", "action": "get_config"}
	{"id": "c2", "action": "update_config", "max_limit": 30}

Failures of completion requests and unknown actions come back as
{"id", "e", "c"} with an HTTP-like code: 400 for bad input, 404 for a
missing term, 500 otherwise.
*/
package server

// CompletionRequest - minimal completion request
type CompletionRequest struct {
	ID     string `msgpack:"id"`
	Prefix string `msgpack:"p"`
	Limit  int    `msgpack:"l,omitempty"`
}

// CompletionSuggestion - minimal suggestion response
type CompletionSuggestion struct {
	Word string `msgpack:"w"`
	Rank uint16 `msgpack:"r"`
}

// CompletionResponse - completion response
type CompletionResponse struct {
	ID          string                 `msgpack:"id"`
	Suggestions []CompletionSuggestion `msgpack:"s"`
	Count       int                    `msgpack:"c"`
	TimeTaken   int64                  `msgpack:"t"`
}

// ManagementRequest upserts, removes, or inspects terms
type ManagementRequest struct {
	ID     string  `msgpack:"id"`
	Action string  `msgpack:"action"` // "upsert", "remove", "stats", "health", "save"
	Term   string  `msgpack:"term,omitempty"`
	Score  float64 `msgpack:"score,omitempty"`
}

// ManagementResponse - management operation response
type ManagementResponse struct {
	ID     string         `msgpack:"id"`
	Status string         `msgpack:"status"`
	Error  string         `msgpack:"error,omitempty"`
	Code   int            `msgpack:"code,omitempty"`
	Stats  map[string]int `msgpack:"stats,omitempty"`
}

// DictionaryRequest - dictionary management request
type DictionaryRequest struct {
	ID         string `msgpack:"id"`
	Action     string `msgpack:"action"`                // "get_info", "set_size", "get_options"
	ChunkCount *int   `msgpack:"chunk_count,omitempty"` // for "set_size"
}

// DictionarySizeOption - dictionary size option
type DictionarySizeOption struct {
	ChunkCount int    `msgpack:"chunk_count"`
	WordCount  int    `msgpack:"word_count"`
	SizeLabel  string `msgpack:"size_label"`
}

// DictionaryResponse - dictionary operation response
type DictionaryResponse struct {
	ID              string                 `msgpack:"id"`
	Status          string                 `msgpack:"status"`
	Error           string                 `msgpack:"error,omitempty"`
	CurrentChunks   int                    `msgpack:"current_chunks,omitempty"`
	AvailableChunks int                    `msgpack:"available_chunks,omitempty"`
	Options         []DictionarySizeOption `msgpack:"options,omitempty"`
}

// ConfigRequest reads or updates server limits. Nil fields are left unchanged.
type ConfigRequest struct {
	ID           string `msgpack:"id"`
	Action       string `msgpack:"action"` // "get_config", "update_config"
	MaxLimit     *int   `msgpack:"max_limit,omitempty"`
	MinPrefix    *int   `msgpack:"min_prefix,omitempty"`
	MaxPrefix    *int   `msgpack:"max_prefix,omitempty"`
	EnableFilter *bool  `msgpack:"enable_filter,omitempty"`
}

// ServerSettings mirrors the [server] config section
type ServerSettings struct {
	DefaultLimit int  `msgpack:"default_limit"`
	MaxLimit     int  `msgpack:"max_limit"`
	MinPrefix    int  `msgpack:"min_prefix"`
	MaxPrefix    int  `msgpack:"max_prefix"`
	EnableFilter bool `msgpack:"enable_filter"`
}

// ConfigResponse - config operation response
type ConfigResponse struct {
	ID       string          `msgpack:"id"`
	Status   string          `msgpack:"status"`
	Error    string          `msgpack:"error,omitempty"`
	Settings *ServerSettings `msgpack:"settings,omitempty"`
}

// CompletionError holds basic error information for completion requests
type CompletionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

// envelope is decoded first to route a message by its action.
type envelope struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action"`
}
