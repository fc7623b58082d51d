package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/stretchr/testify/assert"
)

func sampleAssessment() *models.TrustAssessment {
	return &models.TrustAssessment{
		AccountID:              "42",
		Username:               "someone",
		AccountAgeDays:         400,
		CreatedAt:              time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		FollowerCount:          100,
		FollowingCount:         50,
		FollowerFollowingRatio: 2.0,
		HasBio:                 true,
		IsVerified:             false,
		VouchedByCount:         0,
		VouchingUnavailable:    true,
		Score:                  45,
		TrustLevel:             "Medium",
		Signals:                []string{"account age > 1 year", "follower/following ratio > 2"},
	}
}

func TestCompose_ContainsCoreFields(t *testing.T) {
	composer := NewComposer(280)
	reply := composer.Compose(sampleAssessment())

	assert.Contains(t, reply, "@someone")
	assert.Contains(t, reply, "400 days")
	assert.Contains(t, reply, "2.00")
	assert.Contains(t, reply, "Medium")
	assert.Contains(t, reply, vouchingCaveat)
}

func TestCompose_IsDeterministic(t *testing.T) {
	composer := NewComposer(280)
	a := sampleAssessment()

	assert.Equal(t, composer.Compose(a), composer.Compose(a))
}

func TestCompose_VouchingCaveatNeverOmitted(t *testing.T) {
	// Even at lengths that force every optional section out, the caveat
	// disclosure must survive.
	for _, max := range []int{280, 200, 160, 120} {
		composer := NewComposer(max)
		reply := composer.Compose(sampleAssessment())
		assert.Contains(t, reply, vouchingCaveat, "max=%d", max)
	}
}

func TestCompose_NeverExceedsMaxLength(t *testing.T) {
	// Maximal inputs: longest allowed username, huge counts, every signal.
	a := sampleAssessment()
	a.Username = strings.Repeat("x", 15)
	a.AccountAgeDays = 1000000
	a.FollowerCount = 999999999
	a.FollowingCount = 1
	a.FollowerFollowingRatio = 999999999.99
	a.IsVerified = true
	a.Score = 100
	a.TrustLevel = "Very High"
	a.Signals = []string{
		"account age > 1 year",
		"follower/following ratio > 2",
		"verified account",
		"trusted network member",
	}

	for _, max := range []int{280, 140, 80, 40, 10} {
		composer := NewComposer(max)
		reply := composer.Compose(a)
		assert.LessOrEqual(t, len([]rune(reply)), max, "max=%d", max)
	}
}

func TestCompose_ReportsVouchCountWhenAvailable(t *testing.T) {
	a := sampleAssessment()
	a.VouchingUnavailable = false
	a.VouchedByCount = 4

	composer := NewComposer(280)
	reply := composer.Compose(a)

	assert.Contains(t, reply, "Vouched by 4 trusted accounts")
	assert.NotContains(t, reply, vouchingCaveat)
}

func TestCompose_NoSignals(t *testing.T) {
	a := sampleAssessment()
	a.Signals = nil

	composer := NewComposer(280)
	reply := composer.Compose(a)

	assert.Contains(t, reply, "Signals: none detected")
}
