package models

import (
	"strings"
	"time"
)

// TriggerEvent is a single inbound mention of the bot that may carry the
// trigger phrase. Produced by the stream source, consumed once by the
// dispatcher, never persisted.
type TriggerEvent struct {
	EventID          string `json:"event_id"`
	ReplierAccountID string `json:"replier_account_id"`
	RepliedToPostID  string `json:"replied_to_post_id"`
	// ReplyTargetID is the post the bot's reply attaches to. The stream
	// sets it to the triggering post's ID; synthetic events leave it empty,
	// which composes the assessment without publishing anything.
	ReplyTargetID string    `json:"reply_target_id"`
	RawText       string    `json:"raw_text"`
	ReceivedAt    time.Time `json:"received_at"`
}

// IsReply reports whether the event actually replies to another post.
// Mentions that are not replies have nothing to analyze.
func (e *TriggerEvent) IsReply() bool {
	return e.RepliedToPostID != ""
}

// PostMetadata is the subset of post data the bot needs to find the
// account under analysis.
type PostMetadata struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Text     string `json:"text"`
}

// AccountProfile is a read-only snapshot of a public profile, fetched on
// demand and discarded after the analysis that requested it.
type AccountProfile struct {
	AccountID      string    `json:"account_id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	CreatedAt      time.Time `json:"created_at"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	PostCount      int       `json:"post_count"`
	BioText        string    `json:"bio_text"`
	IsVerified     bool      `json:"is_verified"`
}

// TrustedAccountSet is an immutable snapshot of the curated trusted-network
// list. The cache replaces whole snapshots; callers never see a partially
// updated set.
type TrustedAccountSet struct {
	accounts  map[string]struct{}
	FetchedAt time.Time
	// Unavailable is set when the list could not be fetched and no prior
	// snapshot exists.
	Unavailable bool
}

// NewTrustedAccountSet builds a snapshot from raw identifiers. Identifiers
// are normalized to lowercase; blanks are dropped.
func NewTrustedAccountSet(ids []string, fetchedAt time.Time) TrustedAccountSet {
	accounts := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			accounts[id] = struct{}{}
		}
	}
	return TrustedAccountSet{accounts: accounts, FetchedAt: fetchedAt}
}

// UnavailableTrustedAccountSet is the empty snapshot returned when the list
// has never been fetched successfully.
func UnavailableTrustedAccountSet() TrustedAccountSet {
	return TrustedAccountSet{accounts: map[string]struct{}{}, Unavailable: true}
}

// Contains reports membership, case-insensitively.
func (s TrustedAccountSet) Contains(id string) bool {
	_, ok := s.accounts[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

// Len returns the number of trusted identifiers in the snapshot.
func (s TrustedAccountSet) Len() int {
	return len(s.accounts)
}

// TrustAssessment is the derived trust report for one account. It is owned
// by the dispatch that produced it and discarded once the reply is composed.
type TrustAssessment struct {
	AccountID              string    `json:"account_id"`
	Username               string    `json:"username"`
	AccountAgeDays         int       `json:"account_age_days"`
	CreatedAt              time.Time `json:"created_at"`
	FollowerCount          int       `json:"follower_count"`
	FollowingCount         int       `json:"following_count"`
	FollowerFollowingRatio float64   `json:"follower_following_ratio"`
	HasBio                 bool      `json:"has_bio"`
	IsVerified             bool      `json:"is_verified"`
	PostCount              int       `json:"post_count"`
	OnTrustedList          bool      `json:"on_trusted_list"`
	VouchedByCount         int       `json:"vouched_by_count"`
	// VouchingUnavailable marks that follower enumeration is not exposed by
	// the platform's current access tier, so VouchedByCount is a capability
	// gap rather than a verified zero. Reporting must disclose it.
	VouchingUnavailable bool     `json:"vouching_unavailable"`
	Score               int      `json:"score"`
	TrustLevel          string   `json:"trust_level"`
	Signals             []string `json:"signals"`
}

// AuditRecord is the JSON document archived after a reply is published.
type AuditRecord struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	TargetAccountID string    `json:"target_account_id"`
	ReplyPostID     string    `json:"reply_post_id"`
	ReplyText       string    `json:"reply_text"`
	PublishedAt     time.Time `json:"published_at"`
}

// Alert is an operator notification about a condition the bot cannot
// recover from on its own.
type Alert struct {
	Type      string    `json:"type"` // "critical", "urgent", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
