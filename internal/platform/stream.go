package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	maxReconnectAttempts = 5
	reconnectBaseWait    = 5 * time.Second
)

// TwitterStream consumes the X API v2 filtered stream and turns matching
// tweets into trigger events. Short-lived disconnects are retried here;
// after maxReconnectAttempts consecutive failures the stream is considered
// permanently lost and NextEvent returns an error.
type TwitterStream struct {
	baseURL       string
	client        *resty.Client
	rulesClient   *resty.Client
	botUsername   string
	triggerPhrase string
	reconnectWait time.Duration

	body   io.ReadCloser
	reader *bufio.Reader
}

// Ensure TwitterStream implements StreamSource
var _ StreamSource = (*TwitterStream)(nil)

type streamRulesResponse struct {
	Data []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"data"`
}

type streamTweet struct {
	Data struct {
		ID               string `json:"id"`
		Text             string `json:"text"`
		AuthorID         string `json:"author_id"`
		CreatedAt        string `json:"created_at"`
		ReferencedTweets []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"referenced_tweets"`
	} `json:"data"`
}

// NewTwitterStream creates a filtered-stream source. Call SetupRules before
// the first NextEvent.
func NewTwitterStream(bearerToken, botUsername, triggerPhrase string) *TwitterStream {
	return &TwitterStream{
		baseURL: apiBase,
		// No client timeout on the stream connection itself; the filtered
		// stream is a long-lived chunked response.
		client: resty.New().
			SetHeader("User-Agent", "RUGGUARD-Bot/1.0").
			SetAuthToken(bearerToken).
			SetDoNotParseResponse(true),
		rulesClient: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "RUGGUARD-Bot/1.0").
			SetAuthToken(bearerToken),
		botUsername:   botUsername,
		triggerPhrase: triggerPhrase,
		reconnectWait: reconnectBaseWait,
	}
}

// SetupRules replaces any existing stream rules with a single rule matching
// replies that mention the bot together with the trigger phrase.
func (s *TwitterStream) SetupRules(ctx context.Context) error {
	resp, err := s.rulesClient.R().
		SetContext(ctx).
		Get(s.baseURL + "/tweets/search/stream/rules")
	if err != nil {
		return fmt.Errorf("failed to list stream rules: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("list stream rules returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var rules streamRulesResponse
	if err := json.Unmarshal(resp.Body(), &rules); err != nil {
		return fmt.Errorf("failed to parse stream rules response: %w", err)
	}

	if len(rules.Data) > 0 {
		ids := make([]string, 0, len(rules.Data))
		for _, rule := range rules.Data {
			ids = append(ids, rule.ID)
		}

		deleteBody := map[string]interface{}{
			"delete": map[string][]string{"ids": ids},
		}
		resp, err = s.rulesClient.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(deleteBody).
			Post(s.baseURL + "/tweets/search/stream/rules")
		if err != nil {
			return fmt.Errorf("failed to delete stream rules: %w", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("delete stream rules returned status %d: %s", resp.StatusCode(), string(resp.Body()))
		}
		logrus.Infof("Deleted %d old stream rules", len(ids))
	}

	rule := fmt.Sprintf(`@%s "%s" is:reply`, s.botUsername, s.triggerPhrase)
	addBody := map[string]interface{}{
		"add": []map[string]string{{"value": rule, "tag": "trust-trigger"}},
	}
	resp, err = s.rulesClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(addBody).
		Post(s.baseURL + "/tweets/search/stream/rules")
	if err != nil {
		return fmt.Errorf("failed to add stream rule: %w", err)
	}
	if resp.StatusCode() != 201 && resp.StatusCode() != 200 {
		return fmt.Errorf("add stream rule returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	logrus.Infof("Installed stream rule: %s", rule)
	return nil
}

// NextEvent blocks until the stream yields a tweet, then maps it to a
// trigger event. Keep-alive blank lines are skipped.
func (s *TwitterStream) NextEvent(ctx context.Context) (*models.TriggerEvent, error) {
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return nil, err
		}

		if s.reader == nil {
			// Back off before every reconnect, whether the previous
			// failure was a refused connect or a dropped connection.
			if attempts > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(attempts) * s.reconnectWait):
				}
			}
			if err := s.connect(ctx); err != nil {
				attempts++
				if attempts >= maxReconnectAttempts {
					return nil, fmt.Errorf("stream permanently lost after %d connect attempts: %w", attempts, err)
				}
				logrus.Warnf("Stream connect attempt %d failed: %v", attempts, err)
				continue
			}
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			s.Close()
			// A connection that drops right after connecting counts toward
			// the cap the same as a refused connect; only delivered data
			// resets the counter.
			attempts++
			if attempts >= maxReconnectAttempts {
				return nil, fmt.Errorf("stream permanently lost after %d consecutive drops: %w", attempts, err)
			}
			logrus.Warnf("Stream read failed, reconnecting: %v", err)
			continue
		}
		attempts = 0

		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			// keep-alive
			continue
		}

		var tweet streamTweet
		if err := json.Unmarshal([]byte(trimmed), &tweet); err != nil {
			logrus.Debugf("Skipping unparseable stream payload: %v", err)
			continue
		}
		if tweet.Data.ID == "" {
			continue
		}

		event := &models.TriggerEvent{
			EventID:          tweet.Data.ID,
			ReplierAccountID: tweet.Data.AuthorID,
			ReplyTargetID:    tweet.Data.ID,
			RawText:          tweet.Data.Text,
			ReceivedAt:       time.Now().UTC(),
		}
		for _, ref := range tweet.Data.ReferencedTweets {
			if ref.Type == "replied_to" {
				event.RepliedToPostID = ref.ID
				break
			}
		}

		logrus.Debugf("Stream event %s from account %s", event.EventID, event.ReplierAccountID)
		return event, nil
	}
}

func (s *TwitterStream) connect(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("tweet.fields", "author_id,created_at,referenced_tweets").
		Get(s.baseURL + "/tweets/search/stream")
	if err != nil {
		return fmt.Errorf("stream connect failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		body, _ := io.ReadAll(resp.RawBody())
		resp.RawBody().Close()
		return fmt.Errorf("stream connect returned status %d: %s", resp.StatusCode(), string(body))
	}

	s.body = resp.RawBody()
	s.reader = bufio.NewReader(s.body)
	logrus.Info("Connected to filtered stream")
	return nil
}

// Close tears down the current stream connection, if any.
func (s *TwitterStream) Close() {
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
	s.reader = nil
}
