package analysis

import (
	"fmt"

	"github.com/rugguard/rugguard-bot/internal/models"
)

// score turns an assessment's raw signals into a 0-100 score, a trust level
// band, and the list of signals that contributed. Pure function.
func score(a *models.TrustAssessment, minVouches int) (int, string, []string) {
	total := 0
	var signals []string

	if a.AccountAgeDays > 365 {
		total += 25
		signals = append(signals, "account age > 1 year")
	}
	if a.FollowerCount > 1000 {
		total += 15
	}
	if a.FollowerFollowingRatio > 2 {
		total += 20
		signals = append(signals, "follower/following ratio > 2")
	}
	if a.IsVerified {
		total += 25
		signals = append(signals, "verified account")
	}

	if a.OnTrustedList {
		// List membership overrides everything else.
		total = 100
		signals = append(signals, "trusted network member")
	} else if a.VouchedByCount >= minVouches {
		total += 50
		signals = append(signals, fmt.Sprintf("vouched by %d trusted accounts", a.VouchedByCount))
	}

	if total > 100 {
		total = 100
	}

	return total, trustLevel(total), signals
}

func trustLevel(score int) string {
	switch {
	case score >= 85:
		return "Very High"
	case score >= 65:
		return "High"
	case score >= 40:
		return "Medium"
	default:
		return "Low"
	}
}
