package futures

// Health is the derived view of how well understood and validated an
// idea is at its current stage. Every field is computed from the three
// ledgers; nothing here is stored.
type Health struct {
	TotalKnowledgeItems          int     `json:"total_knowledge_items"`
	AverageConfidence            float64 `json:"average_confidence"`
	TotalAssumptions             int     `json:"total_assumptions"`
	ValidatedAssumptions         int     `json:"validated_assumptions"`
	AssumptionValidationRate     float64 `json:"assumption_validation_rate"`
	CriticalAssumptionsCount     int     `json:"critical_assumptions_count"`
	CriticalAssumptionsValidated int     `json:"critical_assumptions_validated"`
	TotalGoals                   int     `json:"total_goals"`
	AchievedGoals                int     `json:"achieved_goals"`
	FailedGoals                  int     `json:"failed_goals"`
	GoalAchievementRate          float64 `json:"goal_achievement_rate"`
	OverallHealthScore           float64 `json:"overall_health_score"`
}

// Health score blend: knowledge confidence 30%, assumption validation
// 40%, goal achievement 30%.
const (
	confidenceWeight = 0.3
	assumptionWeight = 0.4
	goalWeight       = 0.3
)

// DeriveHealth computes health for one (idea, stage) ledger set.
// criticalCutoff is the criticality above which an assumption counts
// as critical. Total over all inputs: empty ledgers produce zero
// rates, never NaN.
func DeriveHealth(knowledge []KnowledgeItem, assumptions []WorldAssumption, goals []Goal, criticalCutoff float64) Health {
	h := Health{
		TotalKnowledgeItems: len(knowledge),
		TotalAssumptions:    len(assumptions),
		TotalGoals:          len(goals),
	}

	if len(knowledge) > 0 {
		sum := 0.0
		for _, k := range knowledge {
			sum += k.Confidence
		}
		h.AverageConfidence = sum / float64(len(knowledge))
	}

	for _, a := range assumptions {
		if a.Validated {
			h.ValidatedAssumptions++
		}
		if a.Criticality > criticalCutoff {
			h.CriticalAssumptionsCount++
			if a.Validated {
				h.CriticalAssumptionsValidated++
			}
		}
	}
	if len(assumptions) > 0 {
		h.AssumptionValidationRate = float64(h.ValidatedAssumptions) / float64(len(assumptions))
	}

	for _, g := range goals {
		switch g.Status {
		case GoalAchieved:
			h.AchievedGoals++
		case GoalFailed:
			h.FailedGoals++
		}
	}
	if len(goals) > 0 {
		h.GoalAchievementRate = float64(h.AchievedGoals) / float64(len(goals))
	}

	h.OverallHealthScore = confidenceWeight*h.AverageConfidence +
		assumptionWeight*h.AssumptionValidationRate +
		goalWeight*h.GoalAchievementRate

	return h
}
