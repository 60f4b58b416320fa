package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/bastiangx/autocomplete/internal/logger"
	"github.com/bastiangx/autocomplete/internal/utils"
	"github.com/bastiangx/autocomplete/pkg/config"
	"github.com/bastiangx/autocomplete/pkg/dictionary"
	"github.com/bastiangx/autocomplete/pkg/metrics"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// reloadEvery is how many requests pass between config file reloads.
const reloadEvery = 100

// Server handles msgpack IPC for completions
type Server struct {
	completer    suggest.ICompleter
	config       *config.Config
	configPath   string
	loader       *dictionary.RuntimeLoader
	metrics      *metrics.Metrics
	snapshotPath string
	dec          *msgpack.Decoder
	enc          *msgpack.Encoder
	logger       *log.Logger
	requestCount int
}

// NewServer creates a completion server using stdin/stdout for IPC
func NewServer(completer suggest.ICompleter, cfg *config.Config, configPath string) *Server {
	return NewServerWithIO(completer, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a completion server over arbitrary streams
func NewServerWithIO(completer suggest.ICompleter, cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		completer:    completer,
		config:       cfg,
		configPath:   configPath,
		snapshotPath: cfg.Dict.SnapshotPath,
		dec:          msgpack.NewDecoder(r),
		enc:          msgpack.NewEncoder(w),
		logger:       logger.New("ipc"),
	}
}

// SetRuntimeLoader enables the dictionary actions.
func (s *Server) SetRuntimeLoader(rl *dictionary.RuntimeLoader) {
	s.loader = rl
}

// SetMetrics records queries and updates into m.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Start serves requests until the input stream ends.
func (s *Server) Start() error {
	s.logger.Debug("Starting IPC server")
	for {
		var raw msgpack.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("Input closed, stopping")
				return nil
			}
			return fmt.Errorf("decoding request: %w", err)
		}
		s.handleMessage(raw)

		s.requestCount++
		if s.requestCount%reloadEvery == 0 {
			s.reloadConfig()
		}
	}
}

// handleMessage routes one raw message by its action field.
func (s *Server) handleMessage(raw msgpack.RawMessage) {
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		s.sendError("", "request must be a map", 400)
		return
	}

	switch env.Action {
	case "":
		var req CompletionRequest
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.sendError(env.ID, "invalid completion request", 400)
			return
		}
		s.handleCompletion(req)
	case "upsert", "remove", "stats", "health", "save":
		var req ManagementRequest
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.sendError(env.ID, "invalid management request", 400)
			return
		}
		s.send(s.handleManagement(req))
	case "get_info", "set_size", "get_options":
		var req DictionaryRequest
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.sendError(env.ID, "invalid dictionary request", 400)
			return
		}
		s.send(s.handleDictionary(req))
	case "get_config", "update_config":
		var req ConfigRequest
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.sendError(env.ID, "invalid config request", 400)
			return
		}
		s.send(s.handleConfig(req))
	default:
		s.sendError(env.ID, fmt.Sprintf("unknown action: %s", env.Action), 400)
	}
}

// handleCompletion validates the prefix and limit, then answers with ranked suggestions.
func (s *Server) handleCompletion(req CompletionRequest) {
	srv := s.config.Server
	prefixLen := len([]rune(req.Prefix))
	if prefixLen < srv.MinPrefix {
		s.sendError(req.ID, fmt.Sprintf("prefix must be at least %d characters", srv.MinPrefix), 400)
		return
	}
	if srv.MaxPrefix > 0 && prefixLen > srv.MaxPrefix {
		s.sendError(req.ID, fmt.Sprintf("prefix exceeds maximum length of %d characters", srv.MaxPrefix), 400)
		return
	}
	if req.Limit < 0 {
		err := &suggest.InvalidArgumentError{Param: "l", Reason: "must not be negative"}
		s.metrics.ObserveQuery(0, 0, err)
		s.sendError(req.ID, err.Error(), 400)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = srv.DefaultLimit
	}
	if srv.MaxLimit > 0 && limit > srv.MaxLimit {
		limit = srv.MaxLimit
	}

	start := time.Now()
	var words []string
	if !srv.EnableFilter || utils.IsValidInput(req.Prefix) {
		for _, sg := range s.completer.Complete(req.Prefix, limit) {
			words = append(words, sg.Word)
		}
		if srv.EnableFilter {
			words = utils.NewSuggestionFilter(req.Prefix).Filter(words)
		}
	}
	elapsed := time.Since(start)
	s.metrics.ObserveQuery(elapsed, len(words), nil)

	suggestions := make([]CompletionSuggestion, len(words))
	for i, w := range words {
		suggestions[i] = CompletionSuggestion{Word: w, Rank: uint16(min(i+1, math.MaxUint16))}
	}
	s.logger.Debugf("Completed '%s' with %d suggestions in %v", req.Prefix, len(words), elapsed)
	s.send(CompletionResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   elapsed.Microseconds(),
	})
}

func (s *Server) handleManagement(req ManagementRequest) ManagementResponse {
	resp := ManagementResponse{ID: req.ID, Status: "ok"}
	var err error

	switch req.Action {
	case "upsert":
		_, err = s.completer.Upsert(req.Term, req.Score)
		s.metrics.ObserveUpsert(err)
	case "remove":
		err = s.completer.Remove(req.Term)
	case "stats":
		resp.Stats = s.completer.Stats()
	case "health":
	case "save":
		if s.snapshotPath == "" {
			err = errors.New("no snapshot path configured")
			break
		}
		err = dictionary.SaveSnapshot(s.snapshotPath, s.completer.Snapshot())
	}

	if err != nil {
		s.logger.Warnf("Action %s failed: %v", req.Action, err)
		resp.Status = "error"
		resp.Error = err.Error()
		resp.Code = errorCode(err)
		return resp
	}
	if req.Action == "upsert" || req.Action == "remove" {
		s.metrics.SetTerms(s.completer.Stats()["totalTerms"])
	}
	return resp
}

func (s *Server) handleDictionary(req DictionaryRequest) DictionaryResponse {
	resp := DictionaryResponse{ID: req.ID, Status: "ok"}
	if s.loader == nil {
		resp.Status = "error"
		resp.Error = "no chunked dictionary loaded"
		return resp
	}

	available, err := s.loader.GetAvailableChunkCount()
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return resp
	}
	resp.AvailableChunks = available

	switch req.Action {
	case "get_info":
		resp.CurrentChunks = s.loader.GetLoadedChunkCount()
	case "set_size":
		if req.ChunkCount == nil {
			resp.Status = "error"
			resp.Error = "chunk_count is required"
			return resp
		}
		if err := s.loader.SetDictionarySize(*req.ChunkCount); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			return resp
		}
		resp.CurrentChunks = s.loader.GetLoadedChunkCount()
		s.metrics.SetTerms(s.completer.Stats()["totalTerms"])
	case "get_options":
		options, err := s.loader.GetDictionarySizeOptions()
		if err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			return resp
		}
		for _, opt := range options {
			resp.Options = append(resp.Options, DictionarySizeOption(opt))
		}
		resp.CurrentChunks = s.loader.GetLoadedChunkCount()
	}
	return resp
}

func (s *Server) handleConfig(req ConfigRequest) ConfigResponse {
	resp := ConfigResponse{ID: req.ID, Status: "ok"}
	if req.Action == "update_config" {
		if err := s.config.Update(s.configPath, req.MaxLimit, req.MinPrefix, req.MaxPrefix, req.EnableFilter); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			return resp
		}
		s.logger.Debugf("Server config updated: %+v", s.config.Server)
	}
	srv := s.config.Server
	resp.Settings = &ServerSettings{
		DefaultLimit: srv.DefaultLimit,
		MaxLimit:     srv.MaxLimit,
		MinPrefix:    srv.MinPrefix,
		MaxPrefix:    srv.MaxPrefix,
		EnableFilter: srv.EnableFilter,
	}
	return resp
}

// reloadConfig picks up edits made to the config file while serving.
func (s *Server) reloadConfig() {
	if s.configPath == "" || !utils.FileExists(s.configPath) {
		return
	}
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		s.logger.Warnf("Config reload failed: %v", err)
		return
	}
	s.config.Server = cfg.Server
	s.logger.Debug("Config reloaded", "path", s.configPath)
}

func (s *Server) send(v any) {
	if err := s.enc.Encode(v); err != nil {
		s.logger.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.send(CompletionError{ID: id, Error: message, Code: code})
}

// errorCode maps engine errors to the codes sent to clients.
func errorCode(err error) int {
	switch {
	case errors.Is(err, suggest.ErrNotFound):
		return 404
	case errors.Is(err, suggest.ErrInvalidTerm), errors.Is(err, suggest.ErrInvalidArgument):
		return 400
	default:
		return 500
	}
}
