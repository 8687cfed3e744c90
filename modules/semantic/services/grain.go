package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

// DimensionGrainValidator checks requested dimensions and grain against the
// metric's entity map. A metric without a map passes with a warning.
type DimensionGrainValidator struct {
	store ports.MetadataStore
}

func NewDimensionGrainValidator(store ports.MetadataStore) DimensionGrainValidator {
	return DimensionGrainValidator{store: store}
}

func (v DimensionGrainValidator) Validate(ctx context.Context, metricID int64, params map[string]any, grain []string) (types.GrainValidation, error) {
	maps, err := v.store.ListMetricEntityMaps(ctx, metricID)
	if err != nil {
		return types.GrainValidation{}, err
	}
	if len(maps) == 0 {
		return types.GrainValidation{Status: types.GrainWarn, Reason: "no metric_entity_map defined", Action: "SUGGEST"}, nil
	}
	m := maps[0]
	allowed := toSet(m.AllowedDimensions)
	forbidden := toSet(m.ForbiddenDimensions)
	allowedSorted := sortedKeys(allowed)

	requested := splitList(firstPresent(params, "dimensions", "group_by"))
	if len(requested) > 0 {
		if len(allowed) > 0 {
			var notAllowed []string
			for _, d := range requested {
				if _, ok := allowed[d]; !ok {
					notAllowed = append(notAllowed, d)
				}
			}
			if len(notAllowed) > 0 {
				return types.GrainValidation{
					Status:      types.GrainFail,
					Reason:      fmt.Sprintf("requested dimensions not allowed: %s", strings.Join(notAllowed, ",")),
					Action:      "REFUSE",
					Suggestions: map[string]any{"allowed_dimensions": allowedSorted},
				}, nil
			}
		}
		var hit []string
		for _, d := range requested {
			if _, ok := forbidden[d]; ok {
				hit = append(hit, d)
			}
		}
		if len(hit) > 0 {
			return types.GrainValidation{
				Status:      types.GrainFail,
				Reason:      fmt.Sprintf("requested dimensions forbidden: %s", strings.Join(hit, ",")),
				Action:      "REFUSE",
				Suggestions: map[string]any{"allowed_dimensions": allowedSorted},
			}, nil
		}
	}

	requestedGrain := splitList(params["grain"])
	if len(requestedGrain) > 0 {
		metricGrain := toSet(grain)
		for _, g := range requestedGrain {
			if _, ok := metricGrain[g]; !ok {
				return types.GrainValidation{
					Status:      types.GrainFail,
					Reason:      fmt.Sprintf("requested grain finer than metric grain: %s", strings.Join(requestedGrain, ",")),
					Action:      "REFUSE",
					Suggestions: map[string]any{"recommended_grain": strings.Join(grain, ",")},
				}, nil
			}
		}
	}

	return types.GrainValidation{Status: types.GrainPass, Reason: "grain validation passed", Action: "PASS"}, nil
}

func firstPresent(params map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

// splitList accepts a comma separated string or a list.
func splitList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, x := range t {
			raw = append(raw, fmt.Sprint(x))
		}
	default:
		raw = []string{fmt.Sprint(t)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
