package jsonrpc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/hashchain/block"
	"github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/validator"
)

// JSON-RPC Method name constants
const (
	MethodChainGetHeight = "chain.getheight"
	MethodChainGetBlock  = "chain.getblock"
	MethodChainAddBlock  = "chain.addblock"
	MethodChainValidate  = "chain.validate"
)

// Application error codes, outside the range reserved by JSON-RPC 2.0
const (
	CodeNotFound jrpc2.Code = -32004
	CodeInternal jrpc2.Code = -32000
)

// Chain is the part of the chain controller served over JSON-RPC
type Chain interface {
	Height() (int64, error)
	GetByHeight(height uint64) (*block.Block, error)
	Append(data string) (*block.Block, error)
}

// --- Params/Results ---

type getBlockRequest struct {
	Height uint64 `json:"height"`
}

type addBlockRequest struct {
	Data string `json:"data"`
}

type getHeightResponse struct {
	Height int64 `json:"height"`
}

type validateResponse struct {
	Valid      bool                  `json:"valid"`
	Errors     []uint64              `json:"errors"`
	Violations []validator.Violation `json:"violations"`
}

// toJRPC2Error maps chain errors onto JSON-RPC errors, carrying the
// ChainError as data when there is one
func toJRPC2Error(err error) error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	switch errors.CodeOf(err) {
	case errors.ErrCodeNotFound:
		code = CodeNotFound
	case errors.ErrCodeInvalidBlock:
		code = jrpc2.InvalidParams
	}
	var chainErr *errors.ChainError
	if stderrors.As(err, &chainErr) {
		return jrpc2.Errorf(code, "%s", chainErr.Message).WithData(chainErr)
	}
	return jrpc2.Errorf(code, "%s", err.Error())
}

// Server serves the chain over JSON-RPC. The bridge and the listener are
// built by NewServer, so Start and Shutdown may run on different goroutines.
type Server struct {
	addr       string
	chain      Chain
	validator  *validator.Validator
	httpServer *http.Server
	bridge     rpcBridge
	handler    http.Handler
	closeOnce  sync.Once

	corsMu     sync.RWMutex
	corsConfig CORSConfig
}

type rpcBridge interface {
	http.Handler
	Close() error
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(addr string, chain Chain, v *validator.Validator) *Server {
	s := &Server{
		addr:      addr,
		chain:     chain,
		validator: v,
		corsConfig: CORSConfig{
			AllowedOrigins: []string{},
			AllowedMethods: []string{},
			AllowedHeaders: []string{},
			MaxAge:         0,
		},
	}
	s.bridge = jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		s.bridge.ServeHTTP(w, r)
	})

	mux := http.NewServeMux()
	mux.Handle("/", s.handler)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the HTTP handler bridging requests to the method map
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves JSON-RPC on the configured address until Shutdown. It returns
// nil at once if Shutdown already ran.
func (s *Server) Start() error {
	logx.Info("JSONRPC", "Listening on ", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener and the JSON-RPC bridge
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeOnce.Do(func() {
		if cerr := s.bridge.Close(); cerr != nil {
			logx.Warn("JSONRPC", "Bridge close failed: ", cerr)
		}
	})
	return err
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsMu.Lock()
	defer s.corsMu.Unlock()
	s.corsConfig = config
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodChainGetHeight: handler.New(func(ctx context.Context) (*getHeightResponse, error) {
			height, err := s.chain.Height()
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &getHeightResponse{Height: height}, nil
		}),
		MethodChainGetBlock: handler.New(func(ctx context.Context, p getBlockRequest) (*block.Block, error) {
			b, err := s.chain.GetByHeight(p.Height)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return b, nil
		}),
		MethodChainAddBlock: handler.New(func(ctx context.Context, p addBlockRequest) (*block.Block, error) {
			if p.Data == "" {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "block data cannot be empty")
			}
			b, err := s.chain.Append(p.Data)
			if err != nil {
				logx.Error("JSONRPC", "Append failed: ", err)
				return nil, toJRPC2Error(err)
			}
			return b, nil
		}),
		MethodChainValidate: handler.New(func(ctx context.Context) (*validateResponse, error) {
			report, err := s.validator.ValidateChainReport()
			if err != nil {
				logx.Error("JSONRPC", "Validation failed: ", err)
				return nil, toJRPC2Error(err)
			}
			return &validateResponse{
				Valid:      report.Valid(),
				Errors:     report.Heights(),
				Violations: report.Violations,
			}, nil
		}),
	}
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	s.corsMu.RLock()
	cors := s.corsConfig
	s.corsMu.RUnlock()

	if len(cors.AllowedOrigins) > 0 {
		if cors.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range cors.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}

	if len(cors.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
	}

	if len(cors.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
	}

	if cors.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", cors.MaxAge))
	}
}

// --- Env helpers ---

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	methods := os.Getenv("CORS_ALLOWED_METHODS")
	headers := os.Getenv("CORS_ALLOWED_HEADERS")
	maxAgeStr := os.Getenv("CORS_MAX_AGE")

	var maxAge int
	if maxAgeStr != "" {
		if v, err := strconv.Atoi(maxAgeStr); err == nil {
			maxAge = v
		}
	}

	var allowedOrigins, allowedMethods, allowedHeaders []string
	if origins != "" {
		allowedOrigins = splitAndTrim(origins)
	}
	if methods != "" {
		allowedMethods = splitAndTrim(methods)
	}
	if headers != "" {
		allowedHeaders = splitAndTrim(headers)
	}

	provided := len(allowedOrigins) > 0 || len(allowedMethods) > 0 || len(allowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}

	return CORSConfig{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: allowedMethods,
		AllowedHeaders: allowedHeaders,
		MaxAge:         maxAge,
	}, true
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
