package jsonrpc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	jsoniter "github.com/json-iterator/go"
	"github.com/mezonai/hashchain/block"
	"github.com/mezonai/hashchain/chain"
	"github.com/mezonai/hashchain/diagnostic"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/jsonx"
	"github.com/mezonai/hashchain/store"
	"github.com/mezonai/hashchain/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Code    int                 `json:"code"`
		Message string              `json:"message"`
		Data    jsoniter.RawMessage `json:"data"`
	} `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *chain.Blockchain) {
	t.Helper()
	bs, err := store.CreateBlockStore(&store.StoreConfig{Type: store.MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)

	bc, err := chain.New(bs)
	require.NoError(t, err)

	s := NewServer("", bc, validator.NewValidator(bc))
	s.SetCORSConfig(CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: 60})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Shutdown(context.Background())
	})
	return ts, bc
}

func call(t *testing.T, ts *httptest.Server, method string, params interface{}) rpcResponse {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	body, err := jsonx.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var out rpcResponse
	require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestGetHeightAndAddBlock(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := call(t, ts, MethodChainGetHeight, nil)
	require.Nil(t, resp.Error)
	var h getHeightResponse
	require.NoError(t, jsonx.Unmarshal(resp.Result, &h))
	assert.Equal(t, int64(0), h.Height)

	resp = call(t, ts, MethodChainAddBlock, addBlockRequest{Data: "hello"})
	require.Nil(t, resp.Error)
	var added block.Block
	require.NoError(t, jsonx.Unmarshal(resp.Result, &added))
	assert.Equal(t, uint64(1), added.Height)

	resp = call(t, ts, MethodChainGetBlock, getBlockRequest{Height: 1})
	require.Nil(t, resp.Error)
	var got block.Block
	require.NoError(t, jsonx.Unmarshal(resp.Result, &got))
	assert.Equal(t, added, got)
}

func TestAddBlockRejectsEmptyData(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := call(t, ts, MethodChainAddBlock, addBlockRequest{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestGetBlockNotFoundCarriesChainError(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := call(t, ts, MethodChainGetBlock, getBlockRequest{Height: 9})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(CodeNotFound), resp.Error.Code)

	var data struct {
		Code   string  `json:"code"`
		Height *uint64 `json:"height"`
	}
	require.NoError(t, jsonx.Unmarshal(resp.Error.Data, &data))
	assert.Equal(t, "not_found", data.Code)
	require.NotNil(t, data.Height)
	assert.Equal(t, uint64(9), *data.Height)
}

func TestValidateReportsTampering(t *testing.T) {
	ts, bc := newTestServer(t)
	for i := 0; i < 4; i++ {
		_, err := bc.Append("data")
		require.NoError(t, err)
	}
	_, err := diagnostic.TamperData(bc, 2, "forged")
	require.NoError(t, err)

	resp := call(t, ts, MethodChainValidate, nil)
	require.Nil(t, resp.Error)
	var v validateResponse
	require.NoError(t, jsonx.Unmarshal(resp.Result, &v))
	assert.False(t, v.Valid)
	assert.Equal(t, []uint64{2}, v.Errors)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, "hash_mismatch", string(v.Violations[0].Code))
}

func TestCORSFromEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("CORS_ALLOWED_METHODS", "")
	t.Setenv("CORS_ALLOWED_HEADERS", "")
	t.Setenv("CORS_MAX_AGE", "")
	_, ok := CORSFromEnv()
	assert.False(t, ok)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("CORS_MAX_AGE", "600")
	cfg, ok := CORSFromEnv()
	require.True(t, ok)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 600, cfg.MaxAge)
}

func TestPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Access-Control-Max-Age"))
}

func TestShutdownBeforeStart(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)
	require.NoError(t, s.Shutdown(context.Background()))
	// a closed server refuses to listen
	assert.NoError(t, s.Start())
	// repeated shutdown is harmless
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestStartAndShutdownConcurrently(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestErrorCodeFollowsOutermostChainError(t *testing.T) {
	var rpcErr *jrpc2.Error

	err := toJRPC2Error(chainerrors.NewAppend(2, chainerrors.NewNotFound(1)))
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeInternal, rpcErr.Code)

	err = toJRPC2Error(chainerrors.NewInvalidData(errors.New("not utf-8")))
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, jrpc2.InvalidParams, rpcErr.Code)

	err = toJRPC2Error(chainerrors.NewNotFound(4))
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeNotFound, rpcErr.Code)
}
