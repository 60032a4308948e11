package advisory

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MarketPrice is one mandi quote from the government price feed.
type MarketPrice struct {
	State       string  `json:"state" yaml:"state"`
	District    string  `json:"district" yaml:"district"`
	Market      string  `json:"market" yaml:"market"`
	Commodity   string  `json:"commodity" yaml:"commodity"`
	Variety     string  `json:"variety" yaml:"variety"`
	ArrivalDate string  `json:"arrival_date" yaml:"-"`
	MinPrice    float64 `json:"min_price" yaml:"min_price"`
	MaxPrice    float64 `json:"max_price" yaml:"max_price"`
	ModalPrice  float64 `json:"modal_price" yaml:"modal_price"`
}

type Weather struct {
	Location         string  `json:"location"`
	Temperature      float64 `json:"temperature"`
	Humidity         float64 `json:"humidity"`
	Rainfall         float64 `json:"rainfall"`
	WeatherCondition string  `json:"weather_condition"`
	Date             string  `json:"date"`
}

type MarketTrend struct {
	Commodity             string  `json:"commodity"`
	PeriodDays            int     `json:"period_days"`
	Trend                 string  `json:"trend"`
	PriceChangePercentage float64 `json:"price_change_percentage"`
	AveragePrice          float64 `json:"average_price"`
	Forecast              string  `json:"forecast"`
}

type SyncStatus struct {
	LastSync time.Time `json:"last_sync"`
	Records  int       `json:"records"`
}

// PriceFeed stands in for the data.gov.in commodity price API, serving
// quotes from the catalogue stamped with today's date.
type PriceFeed struct {
	cat *Catalogue
	log logrus.FieldLogger
	now func() time.Time

	mu     sync.RWMutex
	status SyncStatus
}

func NewPriceFeed(cat *Catalogue, log logrus.FieldLogger) *PriceFeed {
	return &PriceFeed{cat: cat, log: log.WithField("component", "price-feed"), now: time.Now}
}

// DailyCropPrices returns today's quotes, optionally narrowed by
// case-insensitive substring on state and district.
func (f *PriceFeed) DailyCropPrices(_ context.Context, state, district string) ([]MarketPrice, error) {
	today := dateString(f.now().UTC())
	var out []MarketPrice
	for _, p := range f.cat.MarketPrices {
		if state != "" && !containsFold(p.State, state) {
			continue
		}
		if district != "" && !containsFold(p.District, district) {
			continue
		}
		p.ArrivalDate = today
		out = append(out, p)
	}
	return out, nil
}

func (f *PriceFeed) Weather(_ context.Context, location string) (*Weather, error) {
	w := f.cat.Weather
	return &Weather{
		Location:         location,
		Temperature:      w.Temperature,
		Humidity:         w.Humidity,
		Rainfall:         w.Rainfall,
		WeatherCondition: w.Condition,
		Date:             dateString(f.now().UTC()),
	}, nil
}

// MarketTrends summarises the last days of a commodity; days <= 0 means 30.
func (f *PriceFeed) MarketTrends(_ context.Context, commodity string, days int) (*MarketTrend, error) {
	if days <= 0 {
		days = 30
	}
	t := f.cat.Trend
	return &MarketTrend{
		Commodity:             commodity,
		PeriodDays:            days,
		Trend:                 t.Trend,
		PriceChangePercentage: t.ChangePct,
		AveragePrice:          t.AvgPrice,
		Forecast:              t.Forecast,
	}, nil
}

// SyncPriceData pulls the latest quotes and records the sync. It runs on
// the PRICE_SYNC_SCHEDULE cron and from the sync-prices command.
func (f *PriceFeed) SyncPriceData(ctx context.Context) error {
	prices, err := f.DailyCropPrices(ctx, "", "")
	if err != nil {
		f.log.WithError(err).Error("sync price data")
		return err
	}
	for _, p := range prices {
		f.log.WithFields(logrus.Fields{
			"commodity": p.Commodity,
			"market":    p.Market,
			"modal":     p.ModalPrice,
		}).Debug("price quote")
	}

	f.mu.Lock()
	f.status = SyncStatus{LastSync: f.now().UTC(), Records: len(prices)}
	f.mu.Unlock()

	f.log.WithField("records", len(prices)).Info("price data synced")
	return nil
}

func (f *PriceFeed) Status() SyncStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}
