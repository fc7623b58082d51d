package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rugguard/rugguard-bot/internal/analysis"
	"github.com/rugguard/rugguard-bot/internal/compose"
	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/rugguard/rugguard-bot/internal/notifications"
	"github.com/rugguard/rugguard-bot/internal/platform"
	"github.com/rugguard/rugguard-bot/internal/resolver"
	"github.com/rugguard/rugguard-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

// EventState names a state in the per-event machine. Every event ends in
// exactly one terminal state.
type EventState string

const (
	StateReceived         EventState = "received"
	StateSkipped          EventState = "skipped" // duplicate event ID
	StateFilteredOut      EventState = "filtered_out"
	StateResolving        EventState = "resolving"
	StateResolutionFailed EventState = "resolution_failed"
	StateAnalyzing        EventState = "analyzing"
	StateAnalysisFailed   EventState = "analysis_failed"
	StateComposing        EventState = "composing"
	StatePublishing       EventState = "publishing"
	StatePreviewed        EventState = "previewed" // composed but no post to reply to
	StatePublished        EventState = "published"
	StatePublishFailed    EventState = "publish_failed"
)

// dedupLedgerSize bounds the processed-event ledger. Within the bound the
// ledger behaves as process-lifetime exactly-once.
const dedupLedgerSize = 65536

// publishFailureAlertThreshold is the consecutive-failure count that raises
// an operator alert.
const publishFailureAlertThreshold = 3

// Metrics holds per-state counters for the ops endpoint.
type Metrics struct {
	EventsReceived int                `json:"events_received"`
	Terminal       map[EventState]int `json:"terminal_states"`
	LastEventAt    time.Time          `json:"last_event_at"`
	LastPublishAt  time.Time          `json:"last_publish_at"`
}

// Service consumes trigger events and drives each through
// resolve → analyze → compose → publish, with de-duplication up front and
// failure isolation per event.
type Service struct {
	stream   platform.StreamSource
	client   platform.Client
	resolver *resolver.Resolver
	engine   *analysis.Engine
	composer *compose.Composer
	archive  storage.Archive
	notifier notifications.Notifier

	processed *lru.Cache[string, time.Time]

	mu                 sync.Mutex
	metrics            Metrics
	publishFailStreak  int
	publishAlertRaised bool
}

// NewService creates a new dispatcher
func NewService(
	stream platform.StreamSource,
	client platform.Client,
	res *resolver.Resolver,
	engine *analysis.Engine,
	composer *compose.Composer,
	archive storage.Archive,
	notifier notifications.Notifier,
) *Service {
	processed, _ := lru.New[string, time.Time](dedupLedgerSize)
	return &Service{
		stream:    stream,
		client:    client,
		resolver:  res,
		engine:    engine,
		composer:  composer,
		archive:   archive,
		notifier:  notifier,
		processed: processed,
		metrics:   Metrics{Terminal: make(map[EventState]int)},
	}
}

// Run pulls events until the context is cancelled or the stream is
// permanently lost. No single event's failure stops the loop.
func (s *Service) Run(ctx context.Context) error {
	logrus.Info("Dispatch loop started")

	for {
		event, err := s.stream.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logrus.Info("Dispatch loop stopping: context cancelled")
				return nil
			}

			logrus.Errorf("Stream permanently lost: %v", err)
			s.alert("critical", "Event stream lost",
				fmt.Sprintf("The filtered stream could not be re-established: %v. The bot has stopped consuming events.", err))
			return fmt.Errorf("event stream lost: %w", err)
		}

		s.Process(ctx, event)
	}
}

// Process drives one event through the state machine and returns its
// terminal state. Safe to call concurrently for distinct events.
func (s *Service) Process(ctx context.Context, event *models.TriggerEvent) EventState {
	s.mu.Lock()
	s.metrics.EventsReceived++
	s.metrics.LastEventAt = event.ReceivedAt
	s.mu.Unlock()

	// De-duplication happens before any side effect: the ledger insert is
	// atomic, so a re-delivered event ID is a no-op even under concurrency.
	if existed, _ := s.processed.ContainsOrAdd(event.EventID, time.Now()); existed {
		logrus.Debugf("Event %s already processed, skipping", event.EventID)
		return s.terminal(event, StateSkipped, nil)
	}

	targetID, err := s.resolver.Resolve(ctx, event)
	if errors.Is(err, resolver.ErrNotTrigger) {
		return s.terminal(event, StateFilteredOut, nil)
	}
	if err != nil {
		return s.terminal(event, StateResolutionFailed, err)
	}

	logrus.Infof("Event %s: resolving complete, analyzing account %s", event.EventID, targetID)

	assessment, err := s.engine.Analyze(ctx, targetID)
	if err != nil {
		return s.terminal(event, StateAnalysisFailed, err)
	}

	text := s.composer.Compose(assessment)

	if event.ReplyTargetID == "" {
		// Synthetic events carry no post to attach a reply to, so the
		// assessment ends up in the log instead of on the platform. They
		// never touch the publish-failure streak.
		logrus.Infof("Event %s: composed assessment for account %s: %s", event.EventID, targetID, text)
		return s.terminal(event, StatePreviewed, nil)
	}

	replyID, err := s.client.PublishReply(ctx, event.ReplyTargetID, text)
	if err != nil {
		s.notePublishFailure()
		return s.terminal(event, StatePublishFailed, err)
	}
	s.notePublishSuccess()

	s.archiveReply(ctx, event, assessment, replyID, text)
	return s.terminal(event, StatePublished, nil)
}

// terminal records the event's final state.
func (s *Service) terminal(event *models.TriggerEvent, state EventState, cause error) EventState {
	s.mu.Lock()
	s.metrics.Terminal[state]++
	s.mu.Unlock()

	switch state {
	case StatePublished, StatePreviewed:
		logrus.Infof("Event %s: %s", event.EventID, state)
	case StateSkipped, StateFilteredOut:
		logrus.Debugf("Event %s: %s", event.EventID, state)
	default:
		logrus.Errorf("Event %s: %s: %v", event.EventID, state, cause)
	}

	return state
}

func (s *Service) archiveReply(ctx context.Context, event *models.TriggerEvent, assessment *models.TrustAssessment, replyID, text string) {
	record := models.AuditRecord{
		ID:              uuid.NewString(),
		EventID:         event.EventID,
		TargetAccountID: assessment.AccountID,
		ReplyPostID:     replyID,
		ReplyText:       text,
		PublishedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		logrus.Errorf("Failed to marshal audit record for event %s: %v", event.EventID, err)
		return
	}

	name := fmt.Sprintf("replies/%s-%s.json", record.PublishedAt.Format("2006-01-02"), record.ID)
	if err := s.archive.Store(ctx, name, data); err != nil {
		// Archiving is best effort; the reply is already out.
		logrus.Errorf("Failed to archive reply for event %s: %v", event.EventID, err)
	}
}

func (s *Service) notePublishFailure() {
	s.mu.Lock()
	s.publishFailStreak++
	streak := s.publishFailStreak
	raised := s.publishAlertRaised
	if streak >= publishFailureAlertThreshold {
		s.publishAlertRaised = true
	}
	s.mu.Unlock()

	if streak >= publishFailureAlertThreshold && !raised {
		s.alert("urgent", "Repeated publish failures",
			fmt.Sprintf("%d consecutive replies failed to publish; credentials or write access may be broken.", streak))
	}
}

func (s *Service) notePublishSuccess() {
	s.mu.Lock()
	s.publishFailStreak = 0
	s.publishAlertRaised = false
	s.metrics.LastPublishAt = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Service) alert(kind, title, message string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.SendAlert(&models.Alert{
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logrus.Errorf("Failed to deliver operator alert: %v", err)
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
