package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mezonai/hashchain/block"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/jsonx"
	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/ratelimit"
	"github.com/mezonai/hashchain/validator"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
)

// Chain is the part of the chain controller the API serves
type Chain interface {
	Height() (int64, error)
	GetByHeight(height uint64) (*block.Block, error)
	Append(data string) (*block.Block, error)
}

// ChainAPI provides HTTP endpoints over a chain
type ChainAPI struct {
	chain     Chain
	validator *validator.Validator
	limiter   *ratelimit.Limiter
	router    *mux.Router
}

type addBlockRequest struct {
	Data string `json:"data"`
}

type heightResponse struct {
	Height int64 `json:"height"`
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Errors []uint64          `json:"errors"`
	Report *validator.Report `json:"report"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// NewChainAPI creates a new chain API. A nil limiter leaves POST /block unthrottled.
func NewChainAPI(chain Chain, v *validator.Validator, limiter *ratelimit.Limiter) *ChainAPI {
	api := &ChainAPI{
		chain:     chain,
		validator: v,
		limiter:   limiter,
		router:    mux.NewRouter(),
	}
	api.setupRoutes()
	return api
}

// setupRoutes configures API routes
func (api *ChainAPI) setupRoutes() {
	api.router.Use(requestIDMiddleware)

	api.router.HandleFunc("/height", api.getHeight).Methods("GET")
	api.router.HandleFunc("/block/{height:[0-9]+}", api.getBlock).Methods("GET")
	api.router.HandleFunc("/block/{height:[0-9]+}/check", api.checkBlock).Methods("GET")
	var add http.Handler = http.HandlerFunc(api.addBlock)
	if api.limiter != nil {
		add = api.limiter.Middleware(add)
	}
	api.router.Handle("/block", add).Methods("POST")
	api.router.HandleFunc("/validate", api.validateChain).Methods("GET")
}

// GetRouter returns the configured router
func (api *ChainAPI) GetRouter() *mux.Router {
	return api.router
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		logx.Debug("API", r.Method, " ", r.URL.Path, " id=", id)
		next.ServeHTTP(w, r)
	})
}

func (api *ChainAPI) getHeight(w http.ResponseWriter, r *http.Request) {
	height, err := api.chain.Height()
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, heightResponse{Height: height})
}

func (api *ChainAPI) getBlock(w http.ResponseWriter, r *http.Request) {
	height, ok := api.parseHeight(w, r)
	if !ok {
		return
	}
	b, err := api.chain.GetByHeight(height)
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, b)
}

func (api *ChainAPI) checkBlock(w http.ResponseWriter, r *http.Request) {
	height, ok := api.parseHeight(w, r)
	if !ok {
		return
	}
	check, err := api.validator.InspectBlock(height)
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, check)
}

func (api *ChainAPI) addBlock(w http.ResponseWriter, r *http.Request) {
	var req addBlockRequest
	if err := jsonx.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		api.writeStatus(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON with a data field")
		return
	}
	if req.Data == "" {
		api.writeStatus(w, http.StatusBadRequest, "invalid_request", "Block data cannot be empty")
		return
	}

	b, err := api.chain.Append(req.Data)
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, b)
}

func (api *ChainAPI) validateChain(w http.ResponseWriter, r *http.Request) {
	report, err := api.validator.ValidateChainReport()
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, validateResponse{
		Valid:  report.Valid(),
		Errors: report.Heights(),
		Report: report,
	})
}

// Helper methods

func (api *ChainAPI) parseHeight(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		api.writeStatus(w, http.StatusBadRequest, "invalid_request", "Height must be a non-negative integer")
		return 0, false
	}
	return height, true
}

// writeError maps the outermost chain error code to a status, so a NotFound
// wrapped inside an append failure still answers 500
func (api *ChainAPI) writeError(w http.ResponseWriter, err error) {
	code := chainerrors.CodeOf(err)
	switch code {
	case chainerrors.ErrCodeNotFound:
		api.writeStatus(w, http.StatusNotFound, string(code), chainerrors.ErrMsgNotFound)
	case chainerrors.ErrCodeInvalidBlock:
		api.writeStatus(w, http.StatusBadRequest, string(code), chainerrors.ErrMsgInvalidBlock)
	default:
		logx.Error("API", "Request failed: ", err)
		if code == "" {
			code = "internal_error"
		}
		api.writeStatus(w, http.StatusInternalServerError, string(code), "Server error, please try again")
	}
}

func (api *ChainAPI) writeStatus(w http.ResponseWriter, status int, code, message string) {
	api.writeJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		RequestID: w.Header().Get(requestIDHeader),
	})
}

func (api *ChainAPI) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(data); err != nil {
		logx.Error("API", "Failed to encode JSON response: ", err)
	}
}
