package steps

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	types "github.com/yungbote/neurodecode/internal/domain"
)

// NormalizeSubject appends a z-scored counterpart group for every base group
// of one subject's feature vectors, doubling the group count. Statistics are
// computed across all of the subject's trials, so this must run only after
// the subject is fully extracted.
//
// A feature with zero variance within the subject (including the single-trial
// case) normalizes to exactly 0.
func NormalizeSubject(base []types.FeatureVector) ([]types.FeatureVector, error) {
	if len(base) == 0 {
		return nil, nil
	}
	schema := base[0].GroupNames()
	for _, fv := range base[1:] {
		if !sameSchema(schema, fv.GroupNames()) {
			return nil, fmt.Errorf("normalize: inconsistent feature schema within subject")
		}
	}

	nGroups := len(base[0].Groups)
	means := make([][]float64, nGroups)
	stds := make([][]float64, nGroups)
	for g := 0; g < nGroups; g++ {
		width := len(base[0].Groups[g].Values)
		means[g] = make([]float64, width)
		stds[g] = make([]float64, width)
		column := make([]float64, len(base))
		for j := 0; j < width; j++ {
			for t, fv := range base {
				column[t] = fv.Groups[g].Values[j]
			}
			means[g][j] = stat.Mean(column, nil)
			stds[g][j] = stat.PopStdDev(column, nil)
		}
	}

	out := make([]types.FeatureVector, len(base))
	for t, fv := range base {
		groups := make([]types.FeatureGroup, 0, 2*nGroups)
		groups = append(groups, fv.Groups...)
		for g := 0; g < nGroups; g++ {
			width := len(fv.Groups[g].Values)
			zs := make([]float64, width)
			for j := 0; j < width; j++ {
				if std := stds[g][j]; std > 0 {
					zs[j] = (fv.Groups[g].Values[j] - means[g][j]) / std
				}
			}
			groups = append(groups, types.FeatureGroup{
				Name:   fv.Groups[g].Name + "_z",
				Values: zs,
			})
		}
		out[t] = types.FeatureVector{Groups: groups}
	}
	return out, nil
}

func sameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
