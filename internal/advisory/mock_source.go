package advisory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockSource serves the embedded catalogue. Prices, confidence, usage
// counts and ratings are jittered on every call; recorded tool usage is
// kept in memory.
type MockSource struct {
	cat *Catalogue
	rnd Rand
	now func() time.Time

	mu     sync.RWMutex
	usages []ToolUsage
}

func NewMockSource(cat *Catalogue, rnd Rand) *MockSource {
	if rnd == nil {
		rnd = DefaultRand
	}
	return &MockSource{cat: cat, rnd: rnd, now: time.Now}
}

func (m *MockSource) stamp(c Crop) Crop {
	c.CreatedAt = m.now().UTC()
	return c
}

func (m *MockSource) ListCrops(context.Context) ([]Crop, error) {
	out := make([]Crop, 0, len(m.cat.Crops))
	for _, c := range m.cat.Crops {
		out = append(out, m.stamp(c))
	}
	slices.SortFunc(out, func(a, b Crop) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MockSource) GetCrop(_ context.Context, id string) (*Crop, error) {
	c, ok := m.cat.crop(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCropNotFound, id)
	}
	c = m.stamp(c)
	return &c, nil
}

func (m *MockSource) SearchCrops(ctx context.Context, term string) ([]Crop, error) {
	all, _ := m.ListCrops(ctx)
	var out []Crop
	for _, c := range all {
		if containsFold(c.Name, term) || containsFold(c.Description, term) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockSource) predictions() []PredictionWithCrop {
	now := m.now().UTC()
	tomorrow := dateString(now.AddDate(0, 0, 1))

	out := make([]PredictionWithCrop, 0, len(m.cat.Predictions))
	for _, p := range m.cat.Predictions {
		crop, _ := m.cat.crop(p.CropID)
		price := p.BasePrice
		if p.PriceSpread > 0 {
			price += float64(m.rnd.IntN(p.PriceSpread))
		}
		out = append(out, PredictionWithCrop{
			PricePrediction: PricePrediction{
				ID:              p.ID,
				CropID:          p.CropID,
				Location:        p.Location,
				PredictedPrice:  price,
				PredictionDate:  tomorrow,
				ConfidenceScore: p.BaseConfidence + m.rnd.Float64()*p.ConfidenceSpread,
				CreatedAt:       now,
			},
			Crop: m.stamp(crop),
		})
	}
	return out
}

func (m *MockSource) PricePredictions(_ context.Context, f PredictionFilter) ([]PredictionWithCrop, error) {
	var out []PredictionWithCrop
	for _, p := range m.predictions() {
		if f.CropID != "" && p.CropID != f.CropID {
			continue
		}
		if f.Location != "" && !containsFold(p.Location, f.Location) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockSource) LatestPrices(_ context.Context, cropID string) ([]PredictionWithCrop, error) {
	today := dateString(m.now().UTC())
	var out []PredictionWithCrop
	for _, p := range m.predictions() {
		if p.PredictionDate < today || (cropID != "" && p.CropID != cropID) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b PredictionWithCrop) int {
		return cmp.Compare(b.ConfidenceScore, a.ConfidenceScore)
	})
	return out, nil
}

func (m *MockSource) tools() []ToolWithUsage {
	m.mu.RLock()
	recorded := make(map[string]int)
	for _, u := range m.usages {
		recorded[u.ToolID]++
	}
	m.mu.RUnlock()

	now := m.now().UTC()
	out := make([]ToolWithUsage, 0, len(m.cat.Tools))
	for _, t := range m.cat.Tools {
		count := t.BaseUsage + recorded[t.ID]
		if t.UsageSpread > 0 {
			count += m.rnd.IntN(t.UsageSpread)
		}
		cost := t.CostEstimate
		out = append(out, ToolWithUsage{
			FarmingTool: FarmingTool{
				ID:            t.ID,
				Name:          t.Name,
				Category:      t.Category,
				Description:   t.Description,
				Benefits:      t.Benefits,
				SuitableCrops: t.SuitableCrops,
				CostEstimate:  &cost,
				CreatedAt:     now,
			},
			UsageCount: count,
			AvgRating:  round(t.BaseRating+m.rnd.Float64()*t.RatingSpread, 1),
		})
	}
	return out
}

func (m *MockSource) filterTools(keep func(ToolWithUsage) bool) []ToolWithUsage {
	var out []ToolWithUsage
	for _, t := range m.tools() {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (m *MockSource) ListTools(_ context.Context, category string) ([]ToolWithUsage, error) {
	return m.filterTools(func(t ToolWithUsage) bool {
		return category == "" || t.Category == category
	}), nil
}

func (m *MockSource) GetTool(_ context.Context, id string) (*ToolWithUsage, error) {
	found := m.filterTools(func(t ToolWithUsage) bool { return t.ID == id })
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	return &found[0], nil
}

func (m *MockSource) Categories(context.Context) ([]string, error) {
	var cats []string
	for _, t := range m.cat.Tools {
		cats = append(cats, t.Category)
	}
	slices.Sort(cats)
	return slices.Compact(cats), nil
}

func (m *MockSource) SearchTools(_ context.Context, term string) ([]ToolWithUsage, error) {
	return m.filterTools(func(t ToolWithUsage) bool {
		return containsFold(t.Name, term) || containsFold(t.Description, term) || containsFold(t.Category, term)
	}), nil
}

func (m *MockSource) RecommendedTools(_ context.Context, crops []string) ([]ToolWithUsage, error) {
	return m.filterTools(func(t ToolWithUsage) bool {
		for _, c := range t.SuitableCrops {
			if slices.Contains(crops, c) {
				return true
			}
		}
		return false
	}), nil
}

func (m *MockSource) RecordUsage(_ context.Context, farmerID string, u CreateToolUsage) (*ToolUsage, error) {
	if !slices.ContainsFunc(m.cat.Tools, func(t toolSpec) bool { return t.ID == u.ToolID }) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, u.ToolID)
	}

	now := m.now().UTC()
	usage := ToolUsage{
		ID:                  uuid.NewString(),
		FarmerID:            farmerID,
		ToolID:              u.ToolID,
		UsageDate:           u.UsageDate,
		Notes:               u.Notes,
		EffectivenessRating: u.EffectivenessRating,
		CreatedAt:           now,
	}
	if usage.UsageDate == "" {
		usage.UsageDate = dateString(now)
	}

	m.mu.Lock()
	m.usages = append(m.usages, usage)
	m.mu.Unlock()
	return &usage, nil
}

func (m *MockSource) MyUsage(_ context.Context, farmerID string) ([]UsageWithTool, error) {
	tools := make(map[string]FarmingTool)
	for _, t := range m.tools() {
		tools[t.ID] = t.FarmingTool
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []UsageWithTool
	for i := len(m.usages) - 1; i >= 0; i-- {
		u := m.usages[i]
		if u.FarmerID == farmerID {
			out = append(out, UsageWithTool{ToolUsage: u, Tool: tools[u.ToolID]})
		}
	}
	slices.SortStableFunc(out, func(a, b UsageWithTool) int {
		return cmp.Compare(b.UsageDate, a.UsageDate)
	})
	return out, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
