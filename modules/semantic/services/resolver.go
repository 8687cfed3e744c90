package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const (
	scoreExactName      = 10
	scoreExactAlias     = 8
	scoreNameContains   = 3
	scoreAliasContains  = 2
	scoreDescrContains  = 1
	fallbackRunMinRunes = 3
)

// Phrase maps a fixed phrase found verbatim in a question to a canonical tag.
type Phrase struct {
	Text string `yaml:"text"`
	Tag  string `yaml:"tag"`
}

var DefaultPhrases = []Phrase{
	{Text: "一次合格率", Tag: "FPY"},
	{Text: "直通率", Tag: "FPY"},
	{Text: "良率", Tag: "FPY"},
	{Text: "合格率", Tag: "FPY"},
	{Text: "产量", Tag: "Output"},
	{Text: "产出数量", Tag: "Output"},
	{Text: "生产量", Tag: "Output"},
	{Text: "不良率", Tag: "Defect"},
	{Text: "次品率", Tag: "Defect"},
	{Text: "缺陷率", Tag: "Defect"},
	{Text: "毛利率", Tag: "GrossMargin"},
	{Text: "毛利", Tag: "GrossMargin"},
}

var (
	alphaTokenPattern  = regexp.MustCompile(`\b[a-zA-Z]{2,}\b`)
	fallbackRunPattern = regexp.MustCompile(`\p{Han}+`)
)

type SemanticResolver struct {
	store   ports.MetadataStore
	phrases []Phrase
	logger  *slog.Logger
}

func NewSemanticResolver(store ports.MetadataStore, phrases []Phrase, logger *slog.Logger) *SemanticResolver {
	if phrases == nil {
		phrases = DefaultPhrases
	}
	return &SemanticResolver{store: store, phrases: phrases, logger: orDiscard(logger)}
}

type ObjectResolution struct {
	Object     types.MetricObject
	Keywords   []string
	Candidates []types.Candidate
}

// ResolveObject maps free text to exactly one active metric object. Any
// second candidate with a positive score is an ambiguity, not only score ties.
func (r *SemanticResolver) ResolveObject(ctx context.Context, text string) (ObjectResolution, error) {
	keywords := r.ExtractKeywords(ctx, text)
	out := ObjectResolution{Keywords: keywords}

	objects, err := r.store.ListActiveObjects(ctx)
	if err != nil {
		return out, err
	}

	type scored struct {
		obj   types.MetricObject
		score int
	}
	var matches []scored
	for _, obj := range objects {
		if !obj.IsActive() {
			continue
		}
		if s := RelevanceScore(obj, keywords); s > 0 {
			matches = append(matches, scored{obj: obj, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].obj.ID < matches[j].obj.ID
	})
	for _, m := range matches {
		out.Candidates = append(out.Candidates, types.Candidate{ID: m.obj.ID, Name: m.obj.Name, Domain: m.obj.Domain, Score: m.score})
	}

	switch len(matches) {
	case 0:
		r.logger.Warn("no metric object matched", "question", text, "keywords", keywords)
		return out, types.NewNotFound("no metric object found for: %s", text)
	case 1:
		out.Object = matches[0].obj
		return out, nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.obj.Name)
		}
		r.logger.Warn("metric object ambiguity", "question", text, "candidates", names)
		return out, types.NewAmbiguity(
			fmt.Sprintf("multiple metric objects matched: %s; please clarify", strings.Join(names, ", ")),
			out.Candidates,
		)
	}
}

// ExtractKeywords collects phrase-table hits with their tags, bare alphabetic
// tokens and term-dictionary entries. When none of those produce anything it
// falls back to untagged runs of Han characters.
func (r *SemanticResolver) ExtractKeywords(ctx context.Context, text string) []string {
	var keywords []string
	for _, p := range r.phrases {
		if p.Text != "" && strings.Contains(text, p.Text) {
			keywords = append(keywords, p.Text)
			if p.Tag != "" {
				keywords = append(keywords, p.Tag)
			}
		}
	}

	keywords = append(keywords, alphaTokenPattern.FindAllString(strings.ToLower(text), -1)...)

	terms, err := r.store.FindTermsInText(ctx, text)
	if err != nil {
		r.logger.Debug("term dictionary lookup failed", "error", err)
	}
	for _, t := range terms {
		keywords = append(keywords, t.Term, t.NormalizedTerm)
	}

	if len(keywords) == 0 {
		for _, run := range fallbackRunPattern.FindAllString(text, -1) {
			if len([]rune(run)) >= fallbackRunMinRunes {
				keywords = append(keywords, run)
			}
		}
	}
	return dedupeKeywords(keywords)
}

func RelevanceScore(obj types.MetricObject, keywords []string) int {
	name := strings.ToLower(obj.Name)
	descr := strings.ToLower(obj.Description)
	aliases := make([]string, 0, len(obj.Aliases))
	for _, a := range obj.Aliases {
		aliases = append(aliases, strings.ToLower(a))
	}

	score := 0
	for _, raw := range keywords {
		kw := strings.ToLower(raw)
		if kw == "" {
			continue
		}
		if kw == name {
			score += scoreExactName
		}
		if containsExact(aliases, kw) {
			score += scoreExactAlias
		}
		if strings.Contains(name, kw) {
			score += scoreNameContains
		}
		if strings.Contains(descr, kw) {
			score += scoreDescrContains
		}
		if containsSubstring(aliases, kw) {
			score += scoreAliasContains
		}
	}
	return score
}

func containsExact(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsSubstring(list []string, s string) bool {
	for _, v := range list {
		if strings.Contains(v, s) {
			return true
		}
	}
	return false
}

func dedupeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
