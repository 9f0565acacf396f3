package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/repository/mocks"
	"github.com/oxyledger/oxyregistry/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, opts ...registry.Option) (*Handler, *mocks.ActivityRepository) {
	t.Helper()
	repo := &mocks.ActivityRepository{}
	svc := registry.NewService(registry.New(opts...), nil, nil)
	return NewHandler(svc, activity.NewService(repo, nil), nil), repo
}

func call(t *testing.T, h *Handler, method, params string) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return h.Handle(context.Background(), method, raw)
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var rpcErr *transport.Error
	require.True(t, errors.As(err, &rpcErr), "expected rpc error, got %v", err)
	require.Equal(t, code, rpcErr.Code)
}

func TestHandler_ContractScenario(t *testing.T) {
	h, _ := newTestHandler(t)

	result, err := call(t, h, "createProject", "")
	require.NoError(t, err)
	require.Equal(t, ProjectCreated{ProjectID: 1}, result)

	result, err = call(t, h, "createNewTokenBatch", `{"projectId":1}`)
	require.NoError(t, err)
	require.Equal(t, BatchCreated{ProjectID: 1, TokenID: 1}, result)

	result, err = call(t, h, "mint", `{"tokenId":1,"amount":1000,"serialNumber":"ABCD1000"}`)
	require.NoError(t, err)
	require.Equal(t, Minted{TokenID: 1, Amount: 1000, SerialNumber: "ABCD1000"}, result)

	result, err = call(t, h, "projectsCreated", "")
	require.NoError(t, err)
	require.Equal(t, uint64(1), result)

	result, err = call(t, h, "projectExists", `{"projectId":1}`)
	require.NoError(t, err)
	require.Equal(t, true, result)

	result, err = call(t, h, "projectExists", `{"projectId":2}`)
	require.NoError(t, err)
	require.Equal(t, false, result)

	result, err = call(t, h, "tokenIds", "")
	require.NoError(t, err)
	require.Equal(t, uint64(1), result)

	result, err = call(t, h, "tokenIdsToAmounts", `{"tokenId":1}`)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), result)

	result, err = call(t, h, "tokenToSerialNumber", `{"tokenId":1}`)
	require.NoError(t, err)
	require.Equal(t, "ABCD1000", result)

	result, err = call(t, h, "getBatch", `{"tokenId":1}`)
	require.NoError(t, err)
	require.Equal(t, registry.Batch{ID: 1, ProjectID: 1, Amount: 1000, SerialNumber: "ABCD1000", Minted: true}, result)

	result, err = call(t, h, "getProjectBatches", `{"projectId":1}`)
	require.NoError(t, err)
	require.Len(t, result, 1)
}

func TestHandler_LargeAmount(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := call(t, h, "createProject", "")
	require.NoError(t, err)
	_, err = call(t, h, "createNewTokenBatch", `{"projectId":1}`)
	require.NoError(t, err)

	_, err = call(t, h, "mint", `{"tokenId":1,"amount":18446744073709551615,"serialNumber":"MAX"}`)
	require.NoError(t, err)

	result, err := call(t, h, "tokenIdsToAmounts", `{"tokenId":1}`)
	require.NoError(t, err)
	require.Equal(t, uint64(18446744073709551615), result)
}

func TestHandler_ErrorCodes(t *testing.T) {
	h, _ := newTestHandler(t, registry.WithMintPolicy(registry.MintOnce))

	_, err := call(t, h, "createNewTokenBatch", `{"projectId":1}`)
	requireCode(t, err, transport.ErrReferenceCode)

	_, err = call(t, h, "mint", `{"tokenId":1,"amount":1,"serialNumber":"S"}`)
	requireCode(t, err, transport.ErrReferenceCode)

	_, err = call(t, h, "tokenIdsToAmounts", `{"tokenId":9}`)
	requireCode(t, err, transport.ErrNotFoundCode)

	_, err = call(t, h, "tokenToSerialNumber", `{"tokenId":9}`)
	requireCode(t, err, transport.ErrNotFoundCode)

	_, err = call(t, h, "createProject", "")
	require.NoError(t, err)
	_, err = call(t, h, "createNewTokenBatch", `{"projectId":1}`)
	require.NoError(t, err)

	_, err = call(t, h, "mint", `{"tokenId":1,"amount":1,"serialNumber":"  "}`)
	requireCode(t, err, transport.ErrInvalidParams)

	_, err = call(t, h, "mint", `{"tokenId":1,"amount":1,"serialNumber":"S1"}`)
	require.NoError(t, err)
	_, err = call(t, h, "mint", `{"tokenId":1,"amount":2,"serialNumber":"S2"}`)
	requireCode(t, err, transport.ErrAlreadyMintedCode)

	result, err := call(t, h, "tokenIdsToAmounts", `{"tokenId":1}`)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result)
}

func TestHandler_InvalidParams(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		method string
		params string
	}{
		{"createNewTokenBatch", ""},
		{"createNewTokenBatch", `{"projectId":-1}`},
		{"createNewTokenBatch", `{"project":1}`},
		{"mint", `{"tokenId":1,"serialNumber":"S"}`},
		{"mint", `{"tokenId":"one","amount":1,"serialNumber":"S"}`},
		{"tokenIdsToAmounts", `{}`},
		{"projectExists", `{}`},
		{"getProjectBatches", `[]`},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.params), func(t *testing.T) {
			_, err := call(t, h, tc.method, tc.params)
			requireCode(t, err, transport.ErrInvalidParams)
		})
	}
}

func TestHandler_UnknownMethod(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := call(t, h, "burn", "")
	requireCode(t, err, transport.ErrMethodNotFound)
}

func TestHandler_RecentActivity(t *testing.T) {
	h, repo := newTestHandler(t)
	minted := activity.TypeBatchMinted
	repo.On("List", mock.Anything, activity.ListOptions{
		ProjectID: 2,
		Type:      &minted,
		AfterSeq:  4,
		Ascending: true,
		Limit:     10,
	}).Return([]activity.Entry{{Seq: 5, Type: minted, ProjectID: 2, BatchID: 3}}, nil)

	result, err := call(t, h, "getRecentActivity", `{"projectId":2,"type":"batch_minted","afterSeq":4,"limit":10}`)
	require.NoError(t, err)
	require.Len(t, result, 1)
	repo.AssertExpectations(t)

	_, err = call(t, h, "getRecentActivity", `{"type":"bogus"}`)
	requireCode(t, err, transport.ErrInvalidParams)
}

func TestHandler_RepositoryFailureIsInternal(t *testing.T) {
	h, repo := newTestHandler(t)
	repo.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("disk gone"))

	_, err := call(t, h, "getRecentActivity", "")
	require.Error(t, err)
	require.Nil(t, MapError(err))
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Equal(t, transport.ErrInternal, MapError(fmt.Errorf("x: %w", registry.ErrExhausted)).Code)
	require.Equal(t, transport.ErrInternal, MapError(registry.ErrInvariantViolation).Code)
	require.Equal(t, transport.ErrReferenceCode, MapError(registry.ErrUnknownBatch).Code)
	require.Equal(t, transport.ErrInvalidParams, MapError(activity.ErrInvalidInput).Code)
}
