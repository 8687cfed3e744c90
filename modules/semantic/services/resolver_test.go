package services

import (
	"context"
	"slices"
	"testing"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

func TestResolveObjectExactName(t *testing.T) {
	r := NewSemanticResolver(newManufacturingStore(), nil, nil)
	res, err := r.ResolveObject(context.Background(), "FPY for line A")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Object.ID != 1 {
		t.Fatalf("object=%+v", res.Object)
	}
	if !slices.Contains(res.Keywords, "fpy") {
		t.Fatalf("keywords=%v", res.Keywords)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Score != scoreExactName+scoreNameContains+scoreDescrContains {
		t.Fatalf("candidates=%+v", res.Candidates)
	}
}

func TestResolveObjectPhraseTable(t *testing.T) {
	r := NewSemanticResolver(newManufacturingStore(), nil, nil)
	res, err := r.ResolveObject(context.Background(), "一次合格率是多少")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Object.Name != "FPY" {
		t.Fatalf("object=%q", res.Object.Name)
	}
	if !slices.Contains(res.Keywords, "FPY") || !slices.Contains(res.Keywords, "一次合格率") {
		t.Fatalf("keywords=%v", res.Keywords)
	}
}

func TestResolveObjectAnySecondCandidateIsAmbiguous(t *testing.T) {
	r := NewSemanticResolver(newManufacturingStore(), nil, nil)
	_, err := r.ResolveObject(context.Background(), "yield and output")
	if !types.IsKind(err, types.KindAmbiguity) {
		t.Fatalf("err=%v", err)
	}
	cands := types.CandidatesOf(err)
	if len(cands) != 2 {
		t.Fatalf("candidates=%+v", cands)
	}
	if cands[0].Name != "Output" || cands[1].Name != "FPY" {
		t.Fatalf("order=%+v", cands)
	}
	if cands[0].Score <= cands[1].Score {
		t.Fatalf("scores=%+v", cands)
	}
}

func TestResolveObjectNotFound(t *testing.T) {
	r := NewSemanticResolver(newManufacturingStore(), nil, nil)
	_, err := r.ResolveObject(context.Background(), "headcount trend")
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestResolveObjectSkipsInactive(t *testing.T) {
	r := NewSemanticResolver(newManufacturingStore(), nil, nil)
	_, err := r.ResolveObject(context.Background(), "scrap")
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestResolveObjectStoreError(t *testing.T) {
	store := newManufacturingStore()
	store.listObjectsErr = errBoom
	r := NewSemanticResolver(store, nil, nil)
	if _, err := r.ResolveObject(context.Background(), "FPY"); err != errBoom {
		t.Fatalf("err=%v", err)
	}
}

func TestExtractKeywordsTermDictionary(t *testing.T) {
	store := newManufacturingStore()
	store.terms = []types.TermEntry{{ID: 1, Term: "直通", NormalizedTerm: "FPY", ObjectType: "metric", ObjectID: 1, Status: "active"}}
	r := NewSemanticResolver(store, []Phrase{}, nil)

	kw := r.ExtractKeywords(context.Background(), "直通情况")
	if !slices.Contains(kw, "直通") || !slices.Contains(kw, "FPY") {
		t.Fatalf("keywords=%v", kw)
	}

	store.termsErr = errBoom
	kw = r.ExtractKeywords(context.Background(), "line yield")
	if !slices.Contains(kw, "yield") {
		t.Fatalf("keywords=%v", kw)
	}
}

func TestExtractKeywordsFallbackRuns(t *testing.T) {
	r := NewSemanticResolver(newManufacturingStore(), []Phrase{}, nil)
	kw := r.ExtractKeywords(context.Background(), "上个月的毛利率，好吗")
	if len(kw) != 1 || kw[0] != "上个月的毛利率" {
		t.Fatalf("keywords=%v", kw)
	}
	if kw := r.ExtractKeywords(context.Background(), "好吗"); len(kw) != 0 {
		t.Fatalf("keywords=%v", kw)
	}
}

func TestRelevanceScore(t *testing.T) {
	obj := types.MetricObject{Name: "FPY", Description: "first pass yield", Aliases: []string{"yield"}}
	cases := []struct {
		kw   []string
		want int
	}{
		{kw: []string{"fpy"}, want: scoreExactName + scoreNameContains},
		{kw: []string{"yield"}, want: scoreExactAlias + scoreAliasContains + scoreDescrContains},
		{kw: []string{"pass"}, want: scoreDescrContains},
		{kw: []string{"fp"}, want: scoreNameContains},
		{kw: []string{"nothing"}, want: 0},
		{kw: []string{""}, want: 0},
	}
	for _, tc := range cases {
		if got := RelevanceScore(obj, tc.kw); got != tc.want {
			t.Fatalf("kw=%v got=%d want=%d", tc.kw, got, tc.want)
		}
	}
}
