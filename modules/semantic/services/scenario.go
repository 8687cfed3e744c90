package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const (
	ScoreScenarioMatch = 2
	ScoreDefault       = 1
	ScoreNoMatch       = 0
)

const (
	reasonNotTimeEffective = "not_time_effective"
	reasonScenarioMatch    = "scenario_match"
	reasonScenarioMismatch = "scenario_mismatch"
	reasonDefaultVersion   = "default_version_no_scenario"
)

type VersionEvaluation struct {
	VersionID     int64  `json:"version_id"`
	VersionName   string `json:"version_name"`
	Priority      int    `json:"priority"`
	Score         int    `json:"score"`
	Reason        string `json:"reason"`
	TimeEffective bool   `json:"time_effective"`
	ScenarioMatch bool   `json:"scenario_match"`
}

type VersionSelection struct {
	Selected    types.MetricVersion
	SelectedBy  string
	Evaluations []VersionEvaluation
}

// ScenarioMatcher is stateless; the zero value is ready to use.
type ScenarioMatcher struct{}

func (ScenarioMatcher) Evaluate(v types.MetricVersion, scenario types.Conditions, at time.Time) VersionEvaluation {
	ev := VersionEvaluation{
		VersionID:     v.ID,
		VersionName:   v.VersionName,
		Priority:      v.Priority,
		TimeEffective: v.IsEffective(at),
		ScenarioMatch: v.MatchesScenario(scenario),
	}
	hasCondition := len(v.ScenarioCondition) > 0
	switch {
	case !ev.TimeEffective:
		ev.Score, ev.Reason = ScoreNoMatch, reasonNotTimeEffective
	case hasCondition && ev.ScenarioMatch:
		ev.Score = ScoreScenarioMatch
		ev.Reason = fmt.Sprintf("%s: %s", reasonScenarioMatch, v.ScenarioCondition.String())
	case hasCondition:
		ev.Score = ScoreNoMatch
		ev.Reason = fmt.Sprintf("%s: expected=%s provided=%s", reasonScenarioMismatch, v.ScenarioCondition.String(), scenario.String())
	default:
		ev.Score, ev.Reason = ScoreDefault, reasonDefaultVersion
	}
	return ev
}

// Select picks exactly one version: highest score, then highest priority.
// A priority tie inside the top score group is an ambiguity. When every
// version scores 0 (none time-effective with a matching scenario or default)
// the result is NotFound, even if several versions share the top priority.
func (m ScenarioMatcher) Select(versions []types.MetricVersion, scenario types.Conditions, at time.Time) (VersionSelection, error) {
	var out VersionSelection
	if len(versions) == 0 {
		return out, types.NewNotFound("no versions defined")
	}

	ordered := append([]types.MetricVersion(nil), versions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	byID := make(map[int64]types.MetricVersion, len(ordered))
	maxScore := ScoreNoMatch
	for _, v := range ordered {
		ev := m.Evaluate(v, scenario, at)
		out.Evaluations = append(out.Evaluations, ev)
		byID[v.ID] = v
		if ev.Score > maxScore {
			maxScore = ev.Score
		}
	}
	if maxScore == ScoreNoMatch {
		return out, types.NewNotFound("no time-effective version matches scenario %s at %s", scenario.String(), at.UTC().Format(time.RFC3339))
	}

	var group []VersionEvaluation
	for _, ev := range out.Evaluations {
		if ev.Score == maxScore {
			group = append(group, ev)
		}
	}
	if len(group) == 1 {
		out.Selected = byID[group[0].VersionID]
		out.SelectedBy = "score"
		return out, nil
	}

	sort.SliceStable(group, func(i, j int) bool { return group[i].Priority > group[j].Priority })
	top := group[0].Priority
	var tied []VersionEvaluation
	for _, ev := range group {
		if ev.Priority == top {
			tied = append(tied, ev)
		}
	}
	if len(tied) == 1 {
		out.Selected = byID[tied[0].VersionID]
		out.SelectedBy = "priority"
		return out, nil
	}

	candidates := make([]types.Candidate, 0, len(tied))
	for _, ev := range tied {
		p := ev.Priority
		candidates = append(candidates, types.Candidate{ID: ev.VersionID, Name: ev.VersionName, Priority: &p})
	}
	return out, types.NewAmbiguity(
		fmt.Sprintf("multiple versions have score=%d and priority=%d; please clarify which version to use", maxScore, top),
		candidates,
	)
}
