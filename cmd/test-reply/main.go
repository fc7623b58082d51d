package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rugguard/rugguard-bot/internal/analysis"
	"github.com/rugguard/rugguard-bot/internal/compose"
	"github.com/rugguard/rugguard-bot/internal/models"
)

// Renders sample replies to the terminal so the report format can be tuned
// without touching the live API.
func main() {
	now := time.Now().UTC()
	trusted := models.NewTrustedAccountSet([]string{"knownbuilder", "auditco"}, now)
	composer := compose.NewComposer(280)

	samples := []*models.AccountProfile{
		{
			AccountID:      "1001",
			Username:       "fresh_wallet_guy",
			DisplayName:    "Fresh Wallet",
			CreatedAt:      now.AddDate(0, 0, -12),
			FollowerCount:  8,
			FollowingCount: 950,
			BioText:        "",
			IsVerified:     false,
		},
		{
			AccountID:      "1002",
			Username:       "knownbuilder",
			DisplayName:    "Known Builder",
			CreatedAt:      now.AddDate(-4, 0, 0),
			FollowerCount:  52000,
			FollowingCount: 300,
			PostCount:      8200,
			BioText:        "Building in public since 2021.",
			IsVerified:     true,
		},
		{
			AccountID:      "1003",
			Username:       "average_joe",
			DisplayName:    "Joe",
			CreatedAt:      now.AddDate(-1, -2, 0),
			FollowerCount:  100,
			FollowingCount: 50,
			PostCount:      430,
			BioText:        "Just here for the memes",
			IsVerified:     false,
		},
	}

	for _, profile := range samples {
		assessment := analysis.Assess(profile, trusted, 3, now)
		reply := composer.Compose(assessment)

		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("@%s (score %d, %s)\n", profile.Username, assessment.Score, assessment.TrustLevel)
		fmt.Println(strings.Repeat("-", 60))
		fmt.Println(reply)
		fmt.Printf("[%d chars]\n", len([]rune(reply)))
	}
}
