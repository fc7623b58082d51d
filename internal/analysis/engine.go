package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/rugguard/rugguard-bot/internal/platform"
	"github.com/sirupsen/logrus"
)

// ProfileFetchError wraps a failed profile lookup for the account under
// analysis. Permanent for the event that needed it.
type ProfileFetchError struct {
	AccountID string
	Err       error
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("failed to fetch profile for account %s: %v", e.AccountID, e.Err)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }

// TrustedSource provides the current trusted-network snapshot.
type TrustedSource interface {
	Get(ctx context.Context) models.TrustedAccountSet
}

// Engine computes trust assessments from public profile signals and
// trusted-network membership. Apart from the profile fetch and the cached
// list lookup, everything here is a pure function of the fetched data.
type Engine struct {
	client     platform.Client
	trusted    TrustedSource
	minVouches int

	now func() time.Time
}

// NewEngine creates a new analysis engine
func NewEngine(client platform.Client, trusted TrustedSource, minVouches int) *Engine {
	return &Engine{
		client:     client,
		trusted:    trusted,
		minVouches: minVouches,
		now:        time.Now,
	}
}

// Analyze fetches the account's profile and derives its trust assessment.
func (e *Engine) Analyze(ctx context.Context, accountID string) (*models.TrustAssessment, error) {
	logrus.Infof("Starting analysis for account %s", accountID)

	profile, err := e.client.GetProfile(ctx, accountID)
	if err != nil {
		return nil, &ProfileFetchError{AccountID: accountID, Err: err}
	}

	trusted := e.trusted.Get(ctx)
	if trusted.Unavailable {
		logrus.Warn("Trusted list unavailable; assessing without membership signal")
	}

	assessment := Assess(profile, trusted, e.minVouches, e.now())
	logrus.Infof("Assessment for @%s: score=%d level=%s age=%dd ratio=%.2f",
		assessment.Username, assessment.Score, assessment.TrustLevel,
		assessment.AccountAgeDays, assessment.FollowerFollowingRatio)

	return assessment, nil
}

// Assess derives an assessment from a profile and a trusted-set snapshot as
// of the given time. Pure function: no external calls happen past this
// point, which keeps signal derivation unit-testable without a network.
func Assess(profile *models.AccountProfile, trusted models.TrustedAccountSet, minVouches int, now time.Time) *models.TrustAssessment {
	ageDays := int(now.UTC().Sub(profile.CreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}

	following := profile.FollowingCount
	if following < 1 {
		following = 1
	}
	ratio := math.Round(float64(profile.FollowerCount)/float64(following)*100) / 100

	assessment := &models.TrustAssessment{
		AccountID:              profile.AccountID,
		Username:               profile.Username,
		AccountAgeDays:         ageDays,
		CreatedAt:              profile.CreatedAt,
		FollowerCount:          profile.FollowerCount,
		FollowingCount:         profile.FollowingCount,
		FollowerFollowingRatio: ratio,
		HasBio:                 strings.TrimSpace(profile.BioText) != "",
		IsVerified:             profile.IsVerified,
		PostCount:              profile.PostCount,
		OnTrustedList:          profile.Username != "" && trusted.Contains(profile.Username),

		// Follower enumeration for arbitrary accounts is not exposed by the
		// current API access tier, so vouching cannot be computed. The zero
		// is a capability gap, not a measurement, and reporting discloses it.
		VouchedByCount:      0,
		VouchingUnavailable: true,
	}

	assessment.Score, assessment.TrustLevel, assessment.Signals = score(assessment, minVouches)
	return assessment
}
