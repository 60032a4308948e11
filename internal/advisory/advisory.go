// Package advisory serves the farmer-facing reference data: crops and
// price predictions, farming tools, locations, and the government market
// feed. In demo mode all of it comes from an embedded catalogue with
// jittered numbers.
package advisory

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

var (
	ErrCropNotFound = errors.New("crop not found")
	ErrToolNotFound = errors.New("tool not found")
)

type CropCategory string

const (
	CategoryCereals    CropCategory = "cereals"
	CategoryPulses     CropCategory = "pulses"
	CategoryVegetables CropCategory = "vegetables"
	CategoryFruits     CropCategory = "fruits"
	CategorySpices     CropCategory = "spices"
	CategoryCashCrops  CropCategory = "cash_crops"
)

type Crop struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Category    CropCategory `json:"category" yaml:"category"`
	Description string       `json:"description,omitempty" yaml:"description"`
	CreatedAt   time.Time    `json:"created_at" yaml:"-"`
}

type PricePrediction struct {
	ID              string    `json:"id"`
	CropID          string    `json:"crop_id"`
	Location        string    `json:"location"`
	PredictedPrice  float64   `json:"predicted_price"`
	PredictionDate  string    `json:"prediction_date"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}

type PredictionWithCrop struct {
	PricePrediction
	Crop Crop `json:"crop"`
}

type PredictionFilter struct {
	CropID   string
	Location string
}

type PriceChange struct {
	Change     float64 `json:"change"`
	Percentage float64 `json:"percentage"`
	Trend      string  `json:"trend"`
}

// CalculatePriceChange compares a predicted price with the current one.
// The trend is up or down once the move exceeds 2%, otherwise stable.
func CalculatePriceChange(current, predicted float64) PriceChange {
	change := predicted - current
	pct := change / current * 100

	trend := "stable"
	if math.Abs(pct) > 2 {
		trend = "down"
		if pct > 0 {
			trend = "up"
		}
	}
	return PriceChange{Change: round(change, 2), Percentage: round(pct, 2), Trend: trend}
}

type FarmingTool struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Benefits      []string  `json:"benefits"`
	SuitableCrops []string  `json:"suitable_crops"`
	CostEstimate  *float64  `json:"cost_estimate,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ToolWithUsage struct {
	FarmingTool
	UsageCount int     `json:"usage_count"`
	AvgRating  float64 `json:"avg_rating"`
}

type ToolUsage struct {
	ID                  string    `json:"id"`
	FarmerID            string    `json:"farmer_id"`
	ToolID              string    `json:"tool_id"`
	UsageDate           string    `json:"usage_date"`
	Notes               string    `json:"notes,omitempty"`
	EffectivenessRating *int      `json:"effectiveness_rating,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type CreateToolUsage struct {
	ToolID              string `json:"tool_id" validate:"required"`
	UsageDate           string `json:"usage_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes               string `json:"notes,omitempty"`
	EffectivenessRating *int   `json:"effectiveness_rating,omitempty" validate:"omitempty,min=1,max=5"`
}

type UsageWithTool struct {
	ToolUsage
	Tool FarmingTool `json:"tool"`
}

// usageStats returns the number of usages and the mean of the non-nil
// ratings rounded to one decimal, 0 when nothing is rated.
func usageStats(ratings []*int) (int, float64) {
	var sum, n int
	for _, r := range ratings {
		if r != nil {
			sum += *r
			n++
		}
	}
	if n == 0 {
		return len(ratings), 0
	}
	return len(ratings), round(float64(sum)/float64(n), 1)
}

// Source is the crop and tool catalogue, backed by Supabase or the
// embedded demo data.
type Source interface {
	ListCrops(ctx context.Context) ([]Crop, error)
	GetCrop(ctx context.Context, id string) (*Crop, error)
	SearchCrops(ctx context.Context, term string) ([]Crop, error)
	PricePredictions(ctx context.Context, f PredictionFilter) ([]PredictionWithCrop, error)
	// LatestPrices lists predictions dated today or later, most confident
	// first.
	LatestPrices(ctx context.Context, cropID string) ([]PredictionWithCrop, error)

	ListTools(ctx context.Context, category string) ([]ToolWithUsage, error)
	GetTool(ctx context.Context, id string) (*ToolWithUsage, error)
	Categories(ctx context.Context) ([]string, error)
	SearchTools(ctx context.Context, term string) ([]ToolWithUsage, error)
	RecommendedTools(ctx context.Context, crops []string) ([]ToolWithUsage, error)
	RecordUsage(ctx context.Context, farmerID string, u CreateToolUsage) (*ToolUsage, error)
	MyUsage(ctx context.Context, farmerID string) ([]UsageWithTool, error)
}

// Rand is the randomness behind demo jitter; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand uses the process-wide generator and is safe for concurrent
// use.
var DefaultRand Rand = globalRand{}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func dateString(t time.Time) string {
	return t.Format(time.DateOnly)
}
