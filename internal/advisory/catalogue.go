package advisory

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

type predictionSpec struct {
	ID               string  `yaml:"id"`
	CropID           string  `yaml:"crop_id"`
	Location         string  `yaml:"location"`
	BasePrice        float64 `yaml:"base_price"`
	PriceSpread      int     `yaml:"price_spread"`
	BaseConfidence   float64 `yaml:"base_confidence"`
	ConfidenceSpread float64 `yaml:"confidence_spread"`
}

type toolSpec struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Category      string   `yaml:"category"`
	Description   string   `yaml:"description"`
	Benefits      []string `yaml:"benefits"`
	SuitableCrops []string `yaml:"suitable_crops"`
	CostEstimate  float64  `yaml:"cost_estimate"`
	BaseUsage     int      `yaml:"base_usage"`
	UsageSpread   int      `yaml:"usage_spread"`
	BaseRating    float64  `yaml:"base_rating"`
	RatingSpread  float64  `yaml:"rating_spread"`
}

type weatherSpec struct {
	Temperature float64 `yaml:"temperature"`
	Humidity    float64 `yaml:"humidity"`
	Rainfall    float64 `yaml:"rainfall"`
	Condition   string  `yaml:"condition"`
}

type trendSpec struct {
	Trend     string  `yaml:"trend"`
	ChangePct float64 `yaml:"price_change_percentage"`
	AvgPrice  float64 `yaml:"average_price"`
	Forecast  string  `yaml:"forecast"`
}

// Catalogue is the embedded demo dataset.
type Catalogue struct {
	Crops        []Crop           `yaml:"crops"`
	Predictions  []predictionSpec `yaml:"predictions"`
	Tools        []toolSpec       `yaml:"tools"`
	MarketPrices []MarketPrice    `yaml:"market_prices"`
	Weather      weatherSpec      `yaml:"weather"`
	Trend        trendSpec        `yaml:"trend"`
}

// LoadCatalogue parses the embedded dataset.
func LoadCatalogue() (*Catalogue, error) {
	return ParseCatalogue(catalogueYAML)
}

func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(c.Crops) == 0 {
		return nil, fmt.Errorf("catalogue has no crops")
	}
	return &c, nil
}

func (c *Catalogue) crop(id string) (Crop, bool) {
	for _, cr := range c.Crops {
		if cr.ID == id {
			return cr, true
		}
	}
	return Crop{}, false
}
