package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rugguard/rugguard-bot/internal/analysis"
	"github.com/rugguard/rugguard-bot/internal/compose"
	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/rugguard/rugguard-bot/internal/platform"
	"github.com/rugguard/rugguard-bot/internal/resolver"
	"github.com/rugguard/rugguard-bot/internal/storage"
	"github.com/rugguard/rugguard-bot/internal/trustlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient is a mock implementation of the platform client
type MockClient struct {
	mock.Mock

	mu        sync.Mutex
	published []string
}

func (m *MockClient) GetPost(ctx context.Context, postID string) (*models.PostMetadata, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostMetadata), args.Error(1)
}

func (m *MockClient) GetProfile(ctx context.Context, accountID string) (*models.AccountProfile, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountProfile), args.Error(1)
}

func (m *MockClient) PublishReply(ctx context.Context, inReplyToPostID, text string) (string, error) {
	m.mu.Lock()
	m.published = append(m.published, text)
	m.mu.Unlock()

	args := m.Called(ctx, inReplyToPostID, text)
	return args.String(0), args.Error(1)
}

func (m *MockClient) publishedReplies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

// MockNotifier is a mock implementation of the operator notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

// scriptedStream feeds a fixed sequence of events, then reports the stream
// as lost
type scriptedStream struct {
	events chan *models.TriggerEvent
}

func newScriptedStream(events ...*models.TriggerEvent) *scriptedStream {
	ch := make(chan *models.TriggerEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return &scriptedStream{events: ch}
}

func (s *scriptedStream) NextEvent(ctx context.Context) (*models.TriggerEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return nil, fmt.Errorf("stream closed")
		}
		return event, nil
	}
}

// fixedListSource serves a constant trusted list
type fixedListSource struct {
	ids []string
}

func (f fixedListSource) Fetch(ctx context.Context) ([]string, error) {
	return f.ids, nil
}

func newTestService(stream platform.StreamSource, client *MockClient, notifier *MockNotifier) *Service {
	cache := trustlist.NewCache(fixedListSource{ids: []string{"knownbuilder"}}, time.Hour)
	engine := analysis.NewEngine(client, cache, 3)
	res := resolver.NewResolver(client, "riddle me this")
	composer := compose.NewComposer(280)
	return NewService(stream, client, res, engine, composer, storage.NewMemoryArchive(), notifier)
}

func triggerEvent(id string) *models.TriggerEvent {
	return &models.TriggerEvent{
		EventID:          id,
		ReplierAccountID: "replier-1",
		RepliedToPostID:  "post-P",
		ReplyTargetID:    id,
		RawText:          "@projectrugguard riddle me this",
		ReceivedAt:       time.Now().UTC(),
	}
}

func TestProcess_EndToEnd(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID:      "acct-A",
		Username:       "project_founder",
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -400),
		FollowerCount:  100,
		FollowingCount: 50,
		BioText:        "Building things.",
		IsVerified:     false,
	}, nil)
	client.On("PublishReply", mock.Anything, "evt-1", mock.Anything).Return("reply-1", nil)

	service := newTestService(nil, client, &MockNotifier{})
	state := service.Process(context.Background(), triggerEvent("evt-1"))

	require.Equal(t, StatePublished, state)

	replies := client.publishedReplies()
	require.Len(t, replies, 1)
	reply := replies[0]

	// The expected assessment: age=400, ratio=2.00, has_bio, unverified,
	// vouching undeterminable and disclosed as such.
	assert.Contains(t, reply, "@project_founder")
	assert.Contains(t, reply, "400 days")
	assert.Contains(t, reply, "2.00")
	assert.Contains(t, reply, "could not be determined")
	assert.LessOrEqual(t, len([]rune(reply)), 280)

	// The published reply is archived and the record reads back intact.
	names, err := service.archive.List(context.Background(), "replies/")
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := service.archive.Retrieve(context.Background(), names[0])
	require.NoError(t, err)

	var record models.AuditRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "evt-1", record.EventID)
	assert.Equal(t, "reply-1", record.ReplyPostID)
	assert.Equal(t, reply, record.ReplyText)
}

func TestProcess_SyntheticEventIsComposedNotPublished(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID: "acct-A",
		Username:  "project_founder",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}, nil)

	notifier := &MockNotifier{}
	service := newTestService(nil, client, notifier)

	// Events injected through the ops endpoint have no post to reply to.
	// They must stop after composing, and repeated ones must not look like
	// broken credentials.
	for i := 0; i < publishFailureAlertThreshold; i++ {
		event := triggerEvent(fmt.Sprintf("manual-%d", i))
		event.ReplyTargetID = ""

		state := service.Process(context.Background(), event)
		assert.Equal(t, StatePreviewed, state)
	}

	client.AssertNotCalled(t, "PublishReply")
	notifier.AssertNotCalled(t, "SendAlert")

	names, err := service.archive.List(context.Background(), "replies/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestProcess_ReplyAddressesTriggeringPost(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID: "acct-A",
		Username:  "project_founder",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}, nil)
	client.On("PublishReply", mock.Anything, "tweet-900", mock.Anything).Return("reply-1", nil)

	service := newTestService(nil, client, &MockNotifier{})

	event := triggerEvent("tweet-900")
	state := service.Process(context.Background(), event)

	require.Equal(t, StatePublished, state)
	client.AssertCalled(t, "PublishReply", mock.Anything, "tweet-900", mock.Anything)
}

func TestProcess_DuplicateEventPublishesOnce(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID: "acct-A",
		Username:  "project_founder",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}, nil)
	client.On("PublishReply", mock.Anything, "evt-dup", mock.Anything).Return("reply-1", nil)

	service := newTestService(nil, client, &MockNotifier{})

	first := service.Process(context.Background(), triggerEvent("evt-dup"))
	second := service.Process(context.Background(), triggerEvent("evt-dup"))

	assert.Equal(t, StatePublished, first)
	assert.Equal(t, StateSkipped, second)
	client.AssertNumberOfCalls(t, "PublishReply", 1)
}

func TestProcess_NonTriggerIsFilteredOut(t *testing.T) {
	client := &MockClient{}
	service := newTestService(nil, client, &MockNotifier{})

	event := triggerEvent("evt-f")
	event.RawText = "@projectrugguard nice post"

	state := service.Process(context.Background(), event)

	assert.Equal(t, StateFilteredOut, state)
	client.AssertNotCalled(t, "GetPost")
	client.AssertNotCalled(t, "PublishReply")
}

func TestProcess_FailuresDoNotBlockSubsequentEvents(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "deleted-post").Return(nil, platform.ErrNotFound)
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID: "acct-A",
		Username:  "project_founder",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}, nil)
	client.On("PublishReply", mock.Anything, mock.Anything, mock.Anything).Return("reply-1", nil)

	service := newTestService(nil, client, &MockNotifier{})

	failing := triggerEvent("evt-bad")
	failing.RepliedToPostID = "deleted-post"

	assert.Equal(t, StateResolutionFailed, service.Process(context.Background(), failing))
	assert.Equal(t, StatePublished, service.Process(context.Background(), triggerEvent("evt-good")))
}

func TestProcess_AnalysisFailureIsTerminal(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "protected-acct",
	}, nil)
	client.On("GetProfile", mock.Anything, "protected-acct").Return(nil, platform.ErrNotFound)

	service := newTestService(nil, client, &MockNotifier{})
	state := service.Process(context.Background(), triggerEvent("evt-a"))

	assert.Equal(t, StateAnalysisFailed, state)
	client.AssertNotCalled(t, "PublishReply")
}

func TestProcess_RepeatedPublishFailuresRaiseAlert(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID: "acct-A",
		Username:  "project_founder",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}, nil)
	client.On("PublishReply", mock.Anything, mock.Anything, mock.Anything).
		Return("", &platform.PublishError{InReplyTo: "evt", Err: errors.New("403 forbidden")})

	notifier := &MockNotifier{}
	notifier.On("SendAlert", mock.MatchedBy(func(alert *models.Alert) bool {
		return strings.Contains(alert.Title, "publish failures")
	})).Return(nil)

	service := newTestService(nil, client, notifier)

	for i := 0; i < publishFailureAlertThreshold; i++ {
		state := service.Process(context.Background(), triggerEvent(fmt.Sprintf("evt-%d", i)))
		assert.Equal(t, StatePublishFailed, state)
	}

	notifier.AssertNumberOfCalls(t, "SendAlert", 1)

	// Nothing gets archived for failed publishes.
	names, err := service.archive.List(context.Background(), "replies/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRun_StopsCleanlyOnContextCancel(t *testing.T) {
	stream := &scriptedStream{events: make(chan *models.TriggerEvent)}
	service := newTestService(stream, &MockClient{}, &MockNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRun_PermanentStreamLossAlertsAndReturns(t *testing.T) {
	client := &MockClient{}
	client.On("GetPost", mock.Anything, "post-P").Return(&models.PostMetadata{
		PostID:   "post-P",
		AuthorID: "acct-A",
	}, nil)
	client.On("GetProfile", mock.Anything, "acct-A").Return(&models.AccountProfile{
		AccountID: "acct-A",
		Username:  "project_founder",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}, nil)
	client.On("PublishReply", mock.Anything, mock.Anything, mock.Anything).Return("reply-1", nil)

	notifier := &MockNotifier{}
	notifier.On("SendAlert", mock.MatchedBy(func(alert *models.Alert) bool {
		return alert.Type == "critical"
	})).Return(nil)

	stream := newScriptedStream(triggerEvent("evt-1"))
	service := newTestService(stream, client, notifier)

	err := service.Run(context.Background())

	require.Error(t, err)
	client.AssertNumberOfCalls(t, "PublishReply", 1)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)
}
