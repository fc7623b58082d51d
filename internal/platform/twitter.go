package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const apiBase = "https://api.twitter.com/2"

// Credentials holds the five X API credential values. They are opaque to
// the core; only this package touches them.
type Credentials struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
}

// TwitterClient implements Client against the X API v2. Reads use the
// app-only bearer token; publishing requires the user-context OAuth 1.0a
// credentials.
type TwitterClient struct {
	baseURL string
	read    *resty.Client
	write   *resty.Client
}

// Ensure TwitterClient implements Client
var _ Client = (*TwitterClient)(nil)

type twitterPostResponse struct {
	Data struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		AuthorID string `json:"author_id"`
	} `json:"data"`
	Errors []twitterAPIError `json:"errors"`
}

type twitterUserResponse struct {
	Data struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Username      string `json:"username"`
		CreatedAt     string `json:"created_at"`
		Description   string `json:"description"`
		Verified      bool   `json:"verified"`
		PublicMetrics struct {
			FollowersCount int `json:"followers_count"`
			FollowingCount int `json:"following_count"`
			TweetCount     int `json:"tweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Errors []twitterAPIError `json:"errors"`
}

type twitterAPIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type createTweetRequest struct {
	Text  string `json:"text"`
	Reply struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewTwitterClient creates a new X API v2 client
func NewTwitterClient(creds Credentials) *TwitterClient {
	oauthConfig := oauth1.NewConfig(creds.APIKey, creds.APIKeySecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	signing := oauthConfig.Client(oauth1.NoContext, token)

	return &TwitterClient{
		baseURL: apiBase,
		read: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "RUGGUARD-Bot/1.0").
			SetAuthToken(creds.BearerToken),
		write: resty.NewWithClient(signing).
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "RUGGUARD-Bot/1.0"),
	}
}

// GetPost fetches a post and its author through the tweet lookup endpoint.
func (t *TwitterClient) GetPost(ctx context.Context, postID string) (*models.PostMetadata, error) {
	resp, err := t.read.R().
		SetContext(ctx).
		SetQueryParam("tweet.fields", "author_id,text").
		Get(fmt.Sprintf("%s/tweets/%s", t.baseURL, postID))

	if err != nil {
		return nil, fmt.Errorf("tweet lookup request failed for %s: %w", postID, err)
	}

	if resp.StatusCode() == 404 || resp.StatusCode() == 403 {
		return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("tweet lookup for %s returned status %d: %s", postID, resp.StatusCode(), string(resp.Body()))
	}

	var postResp twitterPostResponse
	if err := json.Unmarshal(resp.Body(), &postResp); err != nil {
		return nil, fmt.Errorf("failed to parse tweet lookup response: %w", err)
	}

	// The API reports deleted or protected tweets inside an errors array
	// with status 200.
	if len(postResp.Errors) > 0 || postResp.Data.ID == "" {
		logrus.Debugf("Tweet lookup for %s returned API errors: %+v", postID, postResp.Errors)
		return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}

	if postResp.Data.AuthorID == "" {
		return nil, fmt.Errorf("post %s has no author: %w", postID, ErrNotFound)
	}

	return &models.PostMetadata{
		PostID:   postResp.Data.ID,
		AuthorID: postResp.Data.AuthorID,
		Text:     postResp.Data.Text,
	}, nil
}

// GetProfile fetches an account's public profile through the user lookup
// endpoint.
func (t *TwitterClient) GetProfile(ctx context.Context, accountID string) (*models.AccountProfile, error) {
	resp, err := t.read.R().
		SetContext(ctx).
		SetQueryParam("user.fields", "created_at,description,public_metrics,verified").
		Get(fmt.Sprintf("%s/users/%s", t.baseURL, accountID))

	if err != nil {
		return nil, fmt.Errorf("user lookup request failed for %s: %w", accountID, err)
	}

	if resp.StatusCode() == 404 || resp.StatusCode() == 403 {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("user lookup for %s returned status %d: %s", accountID, resp.StatusCode(), string(resp.Body()))
	}

	var userResp twitterUserResponse
	if err := json.Unmarshal(resp.Body(), &userResp); err != nil {
		return nil, fmt.Errorf("failed to parse user lookup response: %w", err)
	}

	if len(userResp.Errors) > 0 || userResp.Data.ID == "" {
		logrus.Debugf("User lookup for %s returned API errors: %+v", accountID, userResp.Errors)
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	createdAt, err := time.Parse(time.RFC3339, userResp.Data.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account creation time %q: %w", userResp.Data.CreatedAt, err)
	}

	return &models.AccountProfile{
		AccountID:      userResp.Data.ID,
		Username:       userResp.Data.Username,
		DisplayName:    userResp.Data.Name,
		CreatedAt:      createdAt,
		FollowerCount:  userResp.Data.PublicMetrics.FollowersCount,
		FollowingCount: userResp.Data.PublicMetrics.FollowingCount,
		PostCount:      userResp.Data.PublicMetrics.TweetCount,
		BioText:        userResp.Data.Description,
		IsVerified:     userResp.Data.Verified,
	}, nil
}

// PublishReply posts text as a reply using the user-context credentials.
func (t *TwitterClient) PublishReply(ctx context.Context, inReplyToPostID, text string) (string, error) {
	body := createTweetRequest{Text: text}
	body.Reply.InReplyToTweetID = inReplyToPostID

	resp, err := t.write.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(t.baseURL + "/tweets")

	if err != nil {
		return "", &PublishError{InReplyTo: inReplyToPostID, Err: err}
	}

	if resp.StatusCode() != 201 {
		return "", &PublishError{
			InReplyTo: inReplyToPostID,
			Err:       fmt.Errorf("create tweet returned status %d: %s", resp.StatusCode(), string(resp.Body())),
		}
	}

	var created createTweetResponse
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return "", &PublishError{InReplyTo: inReplyToPostID, Err: fmt.Errorf("failed to parse create tweet response: %w", err)}
	}

	logrus.Infof("Published reply %s to post %s", created.Data.ID, inReplyToPostID)
	return created.Data.ID, nil
}
