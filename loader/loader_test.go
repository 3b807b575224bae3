package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tkrehbiel/statuslace/statusnet"
	"github.com/tkrehbiel/statuslace/storage"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetConversation(ctx context.Context, id string, paging statusnet.Paging) ([]statusnet.Status, error) {
	args := m.Called(id, paging)
	if l, ok := args.Get(0).([]statusnet.Status); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) ShowStatus(ctx context.Context, id string) (*statusnet.Status, error) {
	args := m.Called(id)
	if s, ok := args.Get(0).(*statusnet.Status); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStatuses struct {
	mock.Mock
}

func (m *mockStatuses) FindStatus(id string) (*storage.Status, error) {
	args := m.Called(id)
	if s, ok := args.Get(0).(*storage.Status); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStatuses) SaveStatus(st *storage.Status) error {
	args := m.Called(st)
	return args.Error(0)
}

func (m *mockStatuses) GetConversation(conversationID string, n int) ([]storage.Status, error) {
	args := m.Called(conversationID, n)
	if l, ok := args.Get(0).([]storage.Status); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLoad_ConversationID(t *testing.T) {
	api := &mockAPI{}
	store := &mockStatuses{}
	paging := statusnet.Paging{Count: 20}
	thread := []statusnet.Status{{ID: "2", ConversationID: "77"}, {ID: "1", ConversationID: "77"}}
	api.On("GetConversation", "77", paging).Return(thread, nil).Once()
	store.On("SaveStatus", mock.Anything).Return(nil).Twice()

	l := New(api, store)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "2", ConversationID: "77", InReplyToStatusID: "1"}, paging)
	require.NoError(t, err)
	assert.True(t, result.CanLoadAllReplies)
	assert.Equal(t, thread, result.Statuses)

	api.AssertExpectations(t)
	api.AssertNotCalled(t, "ShowStatus", mock.Anything)
	store.AssertExpectations(t)
}

func TestLoad_ConversationError(t *testing.T) {
	api := &mockAPI{}
	failure := &statusnet.ServiceCallError{Op: "GetConversation", StatusCode: 500, Err: statusnet.ErrUnexpectedStatus}
	api.On("GetConversation", "77", statusnet.Paging{}).Return(nil, failure).Once()

	l := New(api, nil)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "2", ConversationID: "77"}, statusnet.Paging{})
	assert.Nil(t, result.Statuses)
	sce, ok := statusnet.AsServiceCallError(err)
	require.True(t, ok)
	assert.Equal(t, 500, sce.StatusCode)
}

func TestLoad_ReplyWalk(t *testing.T) {
	api := &mockAPI{}
	api.On("ShowStatus", "3").Return(&statusnet.Status{ID: "3", InReplyToStatusID: "2"}, nil).Once()
	api.On("ShowStatus", "2").Return(&statusnet.Status{ID: "2", InReplyToStatusID: "1"}, nil).Once()
	api.On("ShowStatus", "1").Return(&statusnet.Status{ID: "1"}, nil).Once()

	l := New(api, nil)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "4", InReplyToStatusID: "3"}, statusnet.Paging{})
	require.NoError(t, err)
	assert.True(t, result.CanLoadAllReplies)
	require.Len(t, result.Statuses, 3)
	assert.Equal(t, statusnet.ID("3"), result.Statuses[0].ID)
	assert.Equal(t, statusnet.ID("1"), result.Statuses[2].ID)
	api.AssertExpectations(t)
}

func TestLoad_ReplyWalkLimit(t *testing.T) {
	api := &mockAPI{}
	for i := 100; i > 80; i-- {
		api.On("ShowStatus", fmt.Sprint(i)).Return(&statusnet.Status{ID: statusnet.ID(fmt.Sprint(i)), InReplyToStatusID: statusnet.ID(fmt.Sprint(i - 1))}, nil).Maybe()
	}

	l := New(api, nil)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "101", InReplyToStatusID: "100"}, statusnet.Paging{})
	require.NoError(t, err)
	assert.Len(t, result.Statuses, MaxAncestors)
	api.AssertNumberOfCalls(t, "ShowStatus", MaxAncestors)
}

func TestLoad_ReplyWalkCycle(t *testing.T) {
	api := &mockAPI{}
	api.On("ShowStatus", "2").Return(&statusnet.Status{ID: "2", InReplyToStatusID: "1"}, nil).Once()
	api.On("ShowStatus", "1").Return(&statusnet.Status{ID: "1", InReplyToStatusID: "2"}, nil).Once()

	l := New(api, nil)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "3", InReplyToStatusID: "2"}, statusnet.Paging{})
	require.NoError(t, err)
	assert.Len(t, result.Statuses, 2)
}

func TestLoad_ReplyWalkFromMaxID(t *testing.T) {
	api := &mockAPI{}
	api.On("ShowStatus", "7").Return(&statusnet.Status{ID: "7"}, nil).Once()

	l := New(api, nil)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "9", InReplyToStatusID: "8"}, statusnet.Paging{MaxID: "7"})
	require.NoError(t, err)
	require.Len(t, result.Statuses, 1)
	api.AssertNotCalled(t, "ShowStatus", "8")
}

func TestLoad_SinceOnlyHasNoAncestors(t *testing.T) {
	api := &mockAPI{}
	l := New(api, nil)
	result, err := l.Load(context.Background(), statusnet.Status{ID: "9", InReplyToStatusID: "8"}, statusnet.Paging{SinceID: "9"})
	require.NoError(t, err)
	assert.Empty(t, result.Statuses)
	api.AssertNotCalled(t, "ShowStatus", mock.Anything)
}

func TestLoad_ReplyWalkError(t *testing.T) {
	api := &mockAPI{}
	api.On("ShowStatus", "8").Return(nil, errors.New("gone")).Once()

	l := New(api, nil)
	_, err := l.Load(context.Background(), statusnet.Status{ID: "9", InReplyToStatusID: "8"}, statusnet.Paging{})
	assert.ErrorContains(t, err, "gone")
}

func TestThread(t *testing.T) {
	api := &mockAPI{}
	store := &mockStatuses{}
	api.On("ShowStatus", "5").Return(&statusnet.Status{ID: "5", ConversationID: "77"}, nil).Once()
	api.On("GetConversation", "77", statusnet.Paging{}).Return([]statusnet.Status{{ID: "5"}, {ID: "4"}}, nil).Once()
	store.On("SaveStatus", mock.Anything).Return(errors.New("disk full"))

	l := New(api, store)
	result, err := l.Thread(context.Background(), "5", statusnet.Paging{})
	require.NoError(t, err, "store failures are logged, not returned")
	assert.Len(t, result.Statuses, 2)
	store.AssertNumberOfCalls(t, "SaveStatus", 3)
}
