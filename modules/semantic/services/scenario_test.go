package services

import (
	"testing"
	"time"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

func TestMetricVersionIsEffective(t *testing.T) {
	from := mustTime("2025-01-01T00:00:00Z")
	to := mustTime("2025-12-31T23:59:59Z")
	cases := []struct {
		name string
		v    types.MetricVersion
		at   time.Time
		want bool
	}{
		{name: "open ended", v: types.MetricVersion{Active: true, EffectiveFrom: from}, at: testNow, want: true},
		{name: "before from", v: types.MetricVersion{Active: true, EffectiveFrom: from}, at: from.Add(-time.Second), want: false},
		{name: "at from", v: types.MetricVersion{Active: true, EffectiveFrom: from}, at: from, want: true},
		{name: "at to", v: types.MetricVersion{Active: true, EffectiveFrom: from, EffectiveTo: timePtr(to)}, at: to, want: true},
		{name: "after to", v: types.MetricVersion{Active: true, EffectiveFrom: from, EffectiveTo: timePtr(to)}, at: to.Add(time.Second), want: false},
		{name: "inactive", v: types.MetricVersion{Active: false, EffectiveFrom: from}, at: testNow, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.IsEffective(tc.at); got != tc.want {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestMetricVersionMatchesScenario(t *testing.T) {
	cond := types.Conditions{"region": "US", "rework": true}
	cases := []struct {
		name     string
		cond     types.Conditions
		scenario types.Conditions
		want     bool
	}{
		{name: "default matches nil", cond: nil, scenario: nil, want: true},
		{name: "default matches anything", cond: nil, scenario: types.Conditions{"region": "EU"}, want: true},
		{name: "condition needs scenario", cond: cond, scenario: nil, want: false},
		{name: "full match", cond: cond, scenario: types.Conditions{"region": "US", "rework": true, "extra": 1}, want: true},
		{name: "partial match is no match", cond: cond, scenario: types.Conditions{"region": "US"}, want: false},
		{name: "value differs", cond: cond, scenario: types.Conditions{"region": "US", "rework": false}, want: false},
		{name: "string vs bool", cond: cond, scenario: types.Conditions{"region": "US", "rework": "true"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := types.MetricVersion{ScenarioCondition: tc.cond}
			if got := v.MatchesScenario(tc.scenario); got != tc.want {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestScenarioMatcherSelectsReworkOrStd(t *testing.T) {
	store := newManufacturingStore()
	versions := store.versions[:2]
	var m ScenarioMatcher

	sel, err := m.Select(versions, types.Conditions{"rework": true}, testNow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if sel.Selected.VersionName != "Rework" || sel.SelectedBy != "score" {
		t.Fatalf("selected=%q by=%q", sel.Selected.VersionName, sel.SelectedBy)
	}

	sel, err = m.Select(versions, nil, testNow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if sel.Selected.VersionName != "Std" {
		t.Fatalf("selected=%q", sel.Selected.VersionName)
	}
	if len(sel.Evaluations) != 2 {
		t.Fatalf("evaluations=%d", len(sel.Evaluations))
	}
	if sel.Evaluations[1].Score != ScoreNoMatch || sel.Evaluations[1].ScenarioMatch {
		t.Fatalf("rework evaluation=%+v", sel.Evaluations[1])
	}
}

func TestScenarioMatcherPriorityBreaksTie(t *testing.T) {
	store := newManufacturingStore()
	var regional []types.MetricVersion
	for _, v := range store.versions {
		if v.ObjectID == 3 {
			regional = append(regional, v)
		}
	}

	sel, err := ScenarioMatcher{}.Select(regional, types.Conditions{"region": "US"}, testNow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if sel.Selected.ID != 31 || sel.SelectedBy != "priority" {
		t.Fatalf("selected=%d by=%q", sel.Selected.ID, sel.SelectedBy)
	}

	_, err = ScenarioMatcher{}.Select(regional, types.Conditions{"region": "EU"}, testNow)
	if !types.IsKind(err, types.KindAmbiguity) {
		t.Fatalf("err=%v", err)
	}
	cands := types.CandidatesOf(err)
	if len(cands) != 2 || cands[0].ID != 32 || cands[1].ID != 33 {
		t.Fatalf("candidates=%+v", cands)
	}
	if cands[0].Priority == nil || *cands[0].Priority != 5 {
		t.Fatalf("priority=%v", cands[0].Priority)
	}
}

func TestScenarioMatcherDeterministicAcrossInputOrder(t *testing.T) {
	store := newManufacturingStore()
	var regional []types.MetricVersion
	for _, v := range store.versions {
		if v.ObjectID == 3 {
			regional = append(regional, v)
		}
	}
	reversed := make([]types.MetricVersion, len(regional))
	for i, v := range regional {
		reversed[len(regional)-1-i] = v
	}

	a, errA := ScenarioMatcher{}.Select(regional, types.Conditions{"region": "US"}, testNow)
	b, errB := ScenarioMatcher{}.Select(reversed, types.Conditions{"region": "US"}, testNow)
	if errA != nil || errB != nil {
		t.Fatalf("errA=%v errB=%v", errA, errB)
	}
	if a.Selected.ID != b.Selected.ID {
		t.Fatalf("a=%d b=%d", a.Selected.ID, b.Selected.ID)
	}
	for i := range a.Evaluations {
		if a.Evaluations[i] != b.Evaluations[i] {
			t.Fatalf("evaluation %d differs: %+v vs %+v", i, a.Evaluations[i], b.Evaluations[i])
		}
	}
}

func TestScenarioMatcherNoEffectiveVersion(t *testing.T) {
	future := mustTime("2030-01-01T00:00:00Z")
	versions := []types.MetricVersion{
		{ID: 1, VersionName: "Later", EffectiveFrom: future, Active: true},
		{ID: 2, VersionName: "Off", EffectiveFrom: mustTime("2020-01-01T00:00:00Z"), Active: false},
	}
	sel, err := ScenarioMatcher{}.Select(versions, nil, testNow)
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("err=%v", err)
	}
	for _, ev := range sel.Evaluations {
		if ev.Reason != reasonNotTimeEffective {
			t.Fatalf("reason=%q", ev.Reason)
		}
	}

	if _, err := (ScenarioMatcher{}).Select(nil, nil, testNow); !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestScenarioMatcherConditionOnlyWithoutScenario(t *testing.T) {
	versions := []types.MetricVersion{
		{ID: 1, VersionName: "US", EffectiveFrom: mustTime("2020-01-01T00:00:00Z"), Active: true, ScenarioCondition: types.Conditions{"region": "US"}},
	}
	_, err := ScenarioMatcher{}.Select(versions, nil, testNow)
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestScenarioMatcherAllZeroPriorityTieIsNotFound(t *testing.T) {
	versions := []types.MetricVersion{
		{ID: 1, VersionName: "US", Priority: 5, EffectiveFrom: mustTime("2020-01-01T00:00:00Z"), Active: true, ScenarioCondition: types.Conditions{"region": "US"}},
		{ID: 2, VersionName: "EU", Priority: 5, EffectiveFrom: mustTime("2020-01-01T00:00:00Z"), Active: true, ScenarioCondition: types.Conditions{"region": "EU"}},
	}
	_, err := ScenarioMatcher{}.Select(versions, types.Conditions{"region": "APAC"}, testNow)
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("err=%v", err)
	}
	if len(types.CandidatesOf(err)) != 0 {
		t.Fatalf("candidates=%v", types.CandidatesOf(err))
	}
}

func TestScenarioMatcherNumericConditionsCompareByValue(t *testing.T) {
	versions := []types.MetricVersion{
		{ID: 1, VersionName: "Plant1", EffectiveFrom: mustTime("2020-01-01T00:00:00Z"), Active: true, ScenarioCondition: types.Conditions{"plant": 1}},
	}
	sel, err := ScenarioMatcher{}.Select(versions, types.Conditions{"plant": 1.0}, testNow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if sel.Selected.ID != 1 {
		t.Fatalf("selected=%d", sel.Selected.ID)
	}
}
