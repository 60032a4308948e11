package advisory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/farmhand/marketplace/internal/supabase"
)

const (
	selectPredictionWithCrop = `*, crop:crops!inner(*)`
	selectToolWithRatings    = `*, tool_usage(effectiveness_rating)`
	selectUsageWithTool      = `*, tool:farming_tools!inner(*)`
)

// SupabaseSource reads the crops, price_predictions, farming_tools and
// tool_usage tables.
type SupabaseSource struct {
	client *supabase.Client
	now    func() time.Time
}

func NewSupabaseSource(client *supabase.Client) *SupabaseSource {
	return &SupabaseSource{client: client, now: time.Now}
}

func (s *SupabaseSource) ListCrops(ctx context.Context) ([]Crop, error) {
	var crops []Crop
	if err := s.client.From("crops").Order("name", supabase.OrderAsc).ExecuteInto(ctx, &crops); err != nil {
		return nil, fmt.Errorf("get crops: %w", err)
	}
	return crops, nil
}

func (s *SupabaseSource) GetCrop(ctx context.Context, id string) (*Crop, error) {
	var c Crop
	err := s.client.From("crops").Eq("id", id).Single().ExecuteInto(ctx, &c)
	if supabase.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrCropNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get crop: %w", err)
	}
	return &c, nil
}

func (s *SupabaseSource) SearchCrops(ctx context.Context, term string) ([]Crop, error) {
	t := orSafe(term)
	var crops []Crop
	err := s.client.From("crops").
		Or(fmt.Sprintf("name.ilike.*%s*,description.ilike.*%s*", t, t)).
		Order("name", supabase.OrderAsc).
		ExecuteInto(ctx, &crops)
	if err != nil {
		return nil, fmt.Errorf("search crops: %w", err)
	}
	return crops, nil
}

func (s *SupabaseSource) PricePredictions(ctx context.Context, f PredictionFilter) ([]PredictionWithCrop, error) {
	q := s.client.From("price_predictions").
		Select(selectPredictionWithCrop).
		Order("prediction_date", supabase.OrderDesc)
	if f.CropID != "" {
		q = q.Eq("crop_id", f.CropID)
	}
	if f.Location != "" {
		q = q.ILike("location", "*"+f.Location+"*")
	}

	var out []PredictionWithCrop
	if err := q.ExecuteInto(ctx, &out); err != nil {
		return nil, fmt.Errorf("get price predictions: %w", err)
	}
	return out, nil
}

func (s *SupabaseSource) LatestPrices(ctx context.Context, cropID string) ([]PredictionWithCrop, error) {
	q := s.client.From("price_predictions").
		Select(selectPredictionWithCrop).
		Gte("prediction_date", dateString(s.now().UTC())).
		Order("confidence_score", supabase.OrderDesc)
	if cropID != "" {
		q = q.Eq("crop_id", cropID)
	}

	var out []PredictionWithCrop
	if err := q.ExecuteInto(ctx, &out); err != nil {
		return nil, fmt.Errorf("get latest prices: %w", err)
	}
	return out, nil
}

type toolRow struct {
	FarmingTool
	Usage []struct {
		Rating *int `json:"effectiveness_rating"`
	} `json:"tool_usage"`
}

func (r toolRow) withUsage() ToolWithUsage {
	ratings := make([]*int, len(r.Usage))
	for i, u := range r.Usage {
		ratings[i] = u.Rating
	}
	count, avg := usageStats(ratings)
	return ToolWithUsage{FarmingTool: r.FarmingTool, UsageCount: count, AvgRating: avg}
}

func (s *SupabaseSource) queryTools(ctx context.Context, q *supabase.QueryBuilder) ([]ToolWithUsage, error) {
	var rows []toolRow
	if err := q.Order("name", supabase.OrderAsc).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]ToolWithUsage, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.withUsage())
	}
	return out, nil
}

func (s *SupabaseSource) tools() *supabase.QueryBuilder {
	return s.client.From("farming_tools").Select(selectToolWithRatings)
}

func (s *SupabaseSource) ListTools(ctx context.Context, category string) ([]ToolWithUsage, error) {
	q := s.tools()
	if category != "" {
		q = q.Eq("category", category)
	}
	tools, err := s.queryTools(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get farming tools: %w", err)
	}
	return tools, nil
}

func (s *SupabaseSource) GetTool(ctx context.Context, id string) (*ToolWithUsage, error) {
	var row toolRow
	err := s.tools().Eq("id", id).Single().ExecuteInto(ctx, &row)
	if supabase.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get tool: %w", err)
	}
	t := row.withUsage()
	return &t, nil
}

func (s *SupabaseSource) Categories(ctx context.Context) ([]string, error) {
	var rows []struct {
		Category string `json:"category"`
	}
	err := s.client.From("farming_tools").
		Select("category").
		Order("category", supabase.OrderAsc).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("get tool categories: %w", err)
	}

	cats := make([]string, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, r.Category)
	}
	slices.Sort(cats)
	return slices.Compact(cats), nil
}

func (s *SupabaseSource) SearchTools(ctx context.Context, term string) ([]ToolWithUsage, error) {
	t := orSafe(term)
	q := s.tools().Or(fmt.Sprintf("name.ilike.*%s*,description.ilike.*%s*,category.ilike.*%s*", t, t, t))
	tools, err := s.queryTools(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search tools: %w", err)
	}
	return tools, nil
}

func (s *SupabaseSource) RecommendedTools(ctx context.Context, crops []string) ([]ToolWithUsage, error) {
	tools, err := s.queryTools(ctx, s.tools().Overlaps("suitable_crops", crops))
	if err != nil {
		return nil, fmt.Errorf("get recommended tools: %w", err)
	}
	return tools, nil
}

func (s *SupabaseSource) RecordUsage(ctx context.Context, farmerID string, u CreateToolUsage) (*ToolUsage, error) {
	row := struct {
		FarmerID string `json:"farmer_id"`
		CreateToolUsage
	}{farmerID, u}

	var usage ToolUsage
	if err := s.client.From("tool_usage").Insert(row).Single().ExecuteInto(ctx, &usage); err != nil {
		return nil, fmt.Errorf("record tool usage: %w", err)
	}
	return &usage, nil
}

func (s *SupabaseSource) MyUsage(ctx context.Context, farmerID string) ([]UsageWithTool, error) {
	var out []UsageWithTool
	err := s.client.From("tool_usage").
		Select(selectUsageWithTool).
		Eq("farmer_id", farmerID).
		Order("usage_date", supabase.OrderDesc).
		ExecuteInto(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("get my tool usage: %w", err)
	}
	return out, nil
}

func orSafe(term string) string {
	return strings.TrimSpace(strings.NewReplacer(",", " ", "(", "", ")", "").Replace(term))
}
