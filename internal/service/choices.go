package service

import (
	"math/rand"

	"github.com/82deutschmark/Disavowed/internal/models"
)

// tierForRisk maps a sanitized risk_level to its cost tier. The sanitizer
// guarantees the value is one of the enum members, so the default arm is only
// a guard against future enum drift.
func tierForRisk(riskLevel string) models.ChoiceTier {
	switch riskLevel {
	case "low":
		return models.TierLow
	case "high":
		return models.TierHigh
	default:
		return models.TierMedium
	}
}

// priceChoice picks one currency for the tier and returns the full cost
// tuple. The currency varies per choice so a mission spends across the whole
// wallet rather than draining a single denomination.
func priceChoice(tier models.ChoiceTier) models.CostTuple {
	currencies := models.TierCurrencies(tier)
	if len(currencies) == 0 {
		return models.TierCost(tier, models.CurrencyDollars)
	}
	return models.TierCost(tier, currencies[rand.Intn(len(currencies))])
}

// assembleChoices converts generated choice entries into priced story
// choices and appends the single custom slot. At most three generated entries
// are kept so the node never exceeds the four-choice cap.
func assembleChoices(generated []models.GeneratedChoice) []models.StoryChoice {
	keep := len(generated)
	if keep > models.MaxChoicesPerNode-1 {
		keep = models.MaxChoicesPerNode - 1
	}

	choices := make([]models.StoryChoice, 0, keep+1)
	for i := 0; i < keep; i++ {
		tier := tierForRisk(generated[i].RiskLevel)
		choices = append(choices, models.StoryChoice{
			Text:          generated[i].Text,
			CharacterUsed: generated[i].CharacterUsed,
			Tier:          tier,
			Cost:          priceChoice(tier),
			Position:      i,
		})
	}

	// The custom slot's text is player-written at selection time; its cost is
	// resolved then too.
	choices = append(choices, models.StoryChoice{
		Text:          "",
		CharacterUsed: "",
		Tier:          models.TierCustom,
		Cost:          models.CostTuple{},
		Position:      len(choices),
	})
	return choices
}

// rewardAllocation rolls the diamond reward granted when the mission
// completes.
func rewardAllocation() int64 {
	span := models.MissionRewardMax - models.MissionRewardMin + 1
	return int64(models.MissionRewardMin + rand.Intn(span))
}

// spendDetail trims the chosen text to a ledger-friendly length.
func spendDetail(text string) string {
	const maxDetail = 50
	runes := []rune(text)
	if len(runes) <= maxDetail {
		return text
	}
	return string(runes[:maxDetail])
}
