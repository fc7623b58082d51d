package compose

import (
	"fmt"
	"strings"

	"github.com/rugguard/rugguard-bot/internal/models"
)

const vouchingCaveat = "Vouching by trusted accounts could not be determined at this API access tier."

// Composer renders assessments into reply text. Pure formatting: no side
// effects, no external calls, deterministic for a given assessment.
type Composer struct {
	maxLength int
}

// NewComposer creates a composer bounded by the platform's maximum post
// length, measured in runes.
func NewComposer(maxLength int) *Composer {
	return &Composer{maxLength: maxLength}
}

// Compose renders the assessment as a reply no longer than the configured
// maximum. When the full report does not fit, optional sections are dropped
// least-important first; the vouching disclosure is never dropped.
func (c *Composer) Compose(a *models.TrustAssessment) string {
	header := fmt.Sprintf("🤖 Trust report for @%s", a.Username)
	level := fmt.Sprintf("Trust level: %s (%d/100)", a.TrustLevel, a.Score)
	stats := fmt.Sprintf("Age: %d days (since %s) | Followers: %d | Following: %d | Ratio: %.2f",
		a.AccountAgeDays, a.CreatedAt.Format("Jan 2006"),
		a.FollowerCount, a.FollowingCount, a.FollowerFollowingRatio)
	profile := fmt.Sprintf("Bio: %s | Verified: %s", presence(a.HasBio), yesNo(a.IsVerified))

	signals := "Signals: none detected"
	if len(a.Signals) > 0 {
		signals = "Signals: " + strings.Join(a.Signals, " | ")
	}

	caveat := fmt.Sprintf("Vouched by %d trusted accounts.", a.VouchedByCount)
	if a.VouchingUnavailable {
		caveat = vouchingCaveat
	}

	// Most complete rendering that fits, optional sections dropped from the
	// bottom of this list upward.
	candidates := [][]string{
		{header, level, stats, profile, signals, caveat},
		{header, level, stats, profile, caveat},
		{header, level, stats, caveat},
		{header, stats, caveat},
	}
	for _, lines := range candidates {
		text := strings.Join(lines, "\n")
		if runeLen(text) <= c.maxLength {
			return text
		}
	}

	return c.truncated(header+"\n"+stats, caveat)
}

// truncated cuts the head of the report so the caveat survives intact. Only
// reached with pathologically small length limits.
func (c *Composer) truncated(head, caveat string) string {
	budget := c.maxLength - runeLen(caveat) - 2 // newline + ellipsis
	if budget <= 0 {
		return truncateRunes(caveat, c.maxLength)
	}
	return truncateRunes(head, budget) + "…\n" + caveat
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "empty"
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
