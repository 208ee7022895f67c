package detection

import "strings"

// Filter applies the label allow-list and score threshold, and converts
// pixel boxes to normalized coordinates.
type Filter struct {
	labels   map[string]struct{}
	minScore float64
}

func NewFilter(labels []string, minScore float64) *Filter {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			set[label] = struct{}{}
		}
	}
	if len(set) == 0 {
		set["cup"] = struct{}{}
		set["wine glass"] = struct{}{}
	}
	if minScore == 0 {
		minScore = 0.5
	}
	return &Filter{labels: set, minScore: minScore}
}

func (f *Filter) Apply(raw []RawDetection, frameWidth, frameHeight int) []Object {
	if frameWidth <= 0 || frameHeight <= 0 {
		return nil
	}

	objects := make([]Object, 0, len(raw))
	for _, d := range raw {
		if _, ok := f.labels[strings.ToLower(d.Label)]; !ok {
			continue
		}
		if d.Score <= f.minScore {
			continue
		}

		box := Box{
			XMin: clamp01(d.Box[0] / float64(frameWidth)),
			YMin: clamp01(d.Box[1] / float64(frameHeight)),
			XMax: clamp01((d.Box[0] + d.Box[2]) / float64(frameWidth)),
			YMax: clamp01((d.Box[1] + d.Box[3]) / float64(frameHeight)),
		}
		if !box.Valid() {
			continue
		}

		objects = append(objects, Object{Label: d.Label, Box: box})
	}
	return objects
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
