package dispatch

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/push"
	"github.com/pushmint/notify-api/pkg/errors"
	"github.com/pushmint/notify-api/pkg/logger"
	"github.com/pushmint/notify-api/pkg/metrics"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, req *model.NotificationRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockNotificationRepo) Get(ctx context.Context, id uuid.UUID) (*model.NotificationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NotificationRequest), args.Error(1)
}

func (m *mockNotificationRepo) UpdateContent(ctx context.Context, req *model.NotificationRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockNotificationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus, errorMessage string) error {
	return m.Called(ctx, id, status, errorMessage).Error(0)
}

func (m *mockNotificationRepo) MarkDispatched(ctx context.Context, id uuid.UUID, successCount, failCount int, sentAt time.Time) error {
	return m.Called(ctx, id, successCount, failCount, sentAt).Error(0)
}

func (m *mockNotificationRepo) FindDueScheduled(ctx context.Context, now time.Time) ([]*model.NotificationRequest, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.NotificationRequest), args.Error(1)
}

func (m *mockNotificationRepo) List(ctx context.Context, filters *model.NotificationFilters) ([]*model.NotificationRequest, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*model.NotificationRequest), args.Int(1), args.Error(2)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	args := m.Called(ctx, groupID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]*model.User, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *mockUserRepo) ListAll(ctx context.Context, excludeAdmins bool) ([]*model.User, error) {
	args := m.Called(ctx, excludeAdmins)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Send(ctx context.Context, deviceToken string, payload *push.Payload) *push.Result {
	args := m.Called(ctx, deviceToken, payload)
	return args.Get(0).(*push.Result)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestDispatcher(notifRepo *mockNotificationRepo, userRepo *mockUserRepo, gateway *mockGateway, concurrency int) Dispatcher {
	return NewDispatcher(
		notifRepo,
		userRepo,
		gateway,
		NewRecorder(notifRepo),
		nil,
		testLogger(),
		metrics.New("test"),
		Config{Concurrency: concurrency},
	)
}

func pendingRequest(targetType model.TargetType, targetID *uuid.UUID) *model.NotificationRequest {
	return &model.NotificationRequest{
		ID:           uuid.New(),
		Title:        "Hi",
		Body:         "Test",
		ExtraData:    model.JSONMap{},
		TargetType:   targetType,
		TargetID:     targetID,
		ScheduleType: model.ScheduleTypeImmediate,
		Status:       model.NotificationStatusPending,
		CreatedAt:    time.Now(),
	}
}

func TestDispatchSingleUser(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	userID := uuid.New()
	req := pendingRequest(model.TargetTypeSingleUser, &userID)

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("Get", mock.Anything, userID).Return(&model.User{
		ID:          userID,
		DeviceToken: "tok-1",
	}, nil)
	gateway.On("Send", mock.Anything, "tok-1", mock.MatchedBy(func(p *push.Payload) bool {
		return p.Notification.Title == "Hi" && p.Notification.Body == "Test" && len(p.Data) == 0
	})).Return(&push.Result{Success: true})
	notifRepo.On("MarkDispatched", mock.Anything, req.ID, 1, 0, mock.Anything).Return(nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	summary, err := d.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	gateway.AssertNumberOfCalls(t, "Send", 1)
	notifRepo.AssertExpectations(t)
}

func TestDispatchMissingUserIsTargetNotFound(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	userID := uuid.New()
	req := pendingRequest(model.TargetTypeSingleUser, &userID)

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("Get", mock.Anything, userID).Return(nil, errors.NotFound("user", nil))

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	summary, err := d.Dispatch(context.Background(), req)

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, errors.HasCode(err, errors.ErrTargetNotFound))
	notifRepo.AssertNotCalled(t, "MarkDispatched", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchMissingGroupIsTargetNotFound(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	groupID := uuid.New()
	req := pendingRequest(model.TargetTypeUserGroup, &groupID)

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("GroupExists", mock.Anything, groupID).Return(false, nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	_, err := d.Dispatch(context.Background(), req)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTargetNotFound))
}

func TestDispatchEmptyGroupYieldsZeroTotal(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	groupID := uuid.New()
	req := pendingRequest(model.TargetTypeUserGroup, &groupID)

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("GroupExists", mock.Anything, groupID).Return(true, nil)
	userRepo.On("ListGroupMembers", mock.Anything, groupID).Return([]*model.User{}, nil)
	notifRepo.On("MarkDispatched", mock.Anything, req.ID, 0, 0, mock.Anything).Return(nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	summary, err := d.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchAllUsersExcludesAdmins(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	req := pendingRequest(model.TargetTypeAllUsers, nil)
	req.ExcludeAdmins = true

	// The repository applies the admin filter; two of the three regular
	// users carry tokens.
	regular := []*model.User{
		{ID: uuid.New(), DeviceToken: "tok-a"},
		{ID: uuid.New(), DeviceToken: "tok-b"},
		{ID: uuid.New()},
	}

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("ListAll", mock.Anything, true).Return(regular, nil)
	gateway.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(&push.Result{Success: true})
	notifRepo.On("MarkDispatched", mock.Anything, req.ID, 2, 0, mock.Anything).Return(nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	summary, err := d.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	gateway.AssertNumberOfCalls(t, "Send", 2)
	userRepo.AssertCalled(t, "ListAll", mock.Anything, true)
}

func TestDispatchRecordsPerRecipientFailures(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	groupID := uuid.New()
	req := pendingRequest(model.TargetTypeUserGroup, &groupID)

	okUser := &model.User{ID: uuid.New(), DeviceToken: "tok-good"}
	staleUser := &model.User{ID: uuid.New(), DeviceToken: "tok-stale"}

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("GroupExists", mock.Anything, groupID).Return(true, nil)
	userRepo.On("ListGroupMembers", mock.Anything, groupID).Return([]*model.User{okUser, staleUser}, nil)
	gateway.On("Send", mock.Anything, "tok-good", mock.Anything).Return(&push.Result{Success: true})
	gateway.On("Send", mock.Anything, "tok-stale", mock.Anything).Return(&push.Result{Success: false, Message: "NotRegistered"})
	notifRepo.On("MarkDispatched", mock.Anything, req.ID, 1, 1, mock.Anything).Return(nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	summary, err := d.Dispatch(context.Background(), req)

	// Per-recipient failures complete the dispatch; the request still
	// transitions to sent.
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, okUser.ID, summary.Results[0].RecipientID)
	assert.True(t, summary.Results[0].Success)
	assert.Equal(t, staleUser.ID, summary.Results[1].RecipientID)
	assert.False(t, summary.Results[1].Success)
	assert.Equal(t, "NotRegistered", summary.Results[1].Message)
}

func TestDispatchAbortsWhenNoLongerPending(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	userID := uuid.New()
	req := pendingRequest(model.TargetTypeSingleUser, &userID)

	cancelled := *req
	cancelled.Status = model.NotificationStatusCancelled
	notifRepo.On("Get", mock.Anything, req.ID).Return(&cancelled, nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 1)
	summary, err := d.Dispatch(context.Background(), req)

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidStateTransition))
	gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	notifRepo.AssertNotCalled(t, "MarkDispatched", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchConcurrentFanOutAggregatesDeterministically(t *testing.T) {
	notifRepo := new(mockNotificationRepo)
	userRepo := new(mockUserRepo)
	gateway := new(mockGateway)

	req := pendingRequest(model.TargetTypeAllUsers, nil)

	var users []*model.User
	for i := 0; i < 20; i++ {
		users = append(users, &model.User{ID: uuid.New(), DeviceToken: uuid.New().String()})
	}

	notifRepo.On("Get", mock.Anything, req.ID).Return(req, nil)
	userRepo.On("ListAll", mock.Anything, false).Return(users, nil)
	gateway.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(&push.Result{Success: true})
	notifRepo.On("MarkDispatched", mock.Anything, req.ID, 20, 0, mock.Anything).Return(nil)

	d := newTestDispatcher(notifRepo, userRepo, gateway, 8)
	summary, err := d.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 20, summary.Total)
	assert.Equal(t, 20, summary.Successful)

	// Results keep recipient order even with concurrent delivery.
	for i, res := range summary.Results {
		assert.Equal(t, users[i].ID, res.RecipientID)
	}
}
