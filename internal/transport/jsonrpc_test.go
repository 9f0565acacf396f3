package transport

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"createNewTokenBatch","params":{"projectId":1},"id":1}`)
	req, err := ParseRequest(body)
	require.NoError(t, err)
	require.Equal(t, "2.0", req.JSONRPC)
	require.Equal(t, "createNewTokenBatch", req.Method)
	require.Equal(t, json.RawMessage(`{"projectId":1}`), req.Params)
	require.Equal(t, json.Number("1"), req.ID)
}

func TestParseRequest_Invalid(t *testing.T) {
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","id":1}`)
	_, err := ParseRequest(body)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseRequest_Malformed(t *testing.T) {
	_, err := ParseRequest(bytes.NewBufferString(`{"jsonrpc":`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidRequest)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 1, ErrInvalidParams, "bad params", nil)

	require.Equal(t, 200, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrInvalidParams, resp.Error.Code)
	require.Equal(t, "bad params", resp.Error.Message)
}

func TestError_Error(t *testing.T) {
	err := &Error{Code: ErrReferenceCode, Message: "unknown project"}
	require.Equal(t, "rpc error -32001: unknown project", err.Error())
}
