package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/webchat-agent/server/internal/agent/model"
)

const (
	geocodeEndpoint = "https://luckycola.com.cn/weather/geo"
	weatherEndpoint = "https://restapi.amap.com/v3/weather/weatherInfo"

	// 3 lookups per city within a rolling ten minutes.
	weatherBurst = 3
)

var weatherRefill = 10 * time.Minute / weatherBurst

type weatherInput struct {
	City string `json:"city"`
}

type geocodeResponse struct {
	Data struct {
		Geocodes []struct {
			Adcode string `json:"adcode"`
		} `json:"geocodes"`
	} `json:"data"`
}

type weatherResponse struct {
	Lives []struct {
		Weather       string `json:"weather"`
		Temperature   string `json:"temperature"`
		WindDirection string `json:"winddirection"`
		WindPower     string `json:"windpower"`
		ReportTime    string `json:"reporttime"`
	} `json:"lives"`
}

// weatherService performs the two-step lookup: resolve the city to an
// administrative code, then fetch live weather for that code. Lookups are
// rate limited per city.
type weatherService struct {
	client  *http.Client
	colaKey string
	amapKey string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newWeatherService(cfg model.ToolsConfig) *weatherService {
	return &weatherService{
		client:   &http.Client{Timeout: 15 * time.Second},
		colaKey:  cfg.Weather.GeoColaKey,
		amapKey:  cfg.Weather.AmapKey,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *weatherService) limiter(city string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[city]
	if !ok {
		l = rate.NewLimiter(rate.Every(weatherRefill), weatherBurst)
		s.limiters[city] = l
	}
	return l
}

func (s *weatherService) lookup(ctx context.Context, city string) (string, error) {
	if !s.limiter(city).Allow() {
		return fmt.Sprintf("weather lookups for %s are rate limited, try again later", city), nil
	}

	adcode, err := s.geocode(ctx, city)
	if err != nil {
		return "", fmt.Errorf("resolve city %q: %w", city, err)
	}

	u := fmt.Sprintf("%s?city=%s&key=%s", weatherEndpoint, url.QueryEscape(adcode), url.QueryEscape(s.amapKey))
	var wr weatherResponse
	if err := s.getJSON(ctx, u, &wr); err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	if len(wr.Lives) == 0 {
		return "", fmt.Errorf("no live weather data for %s", city)
	}
	live := wr.Lives[0]

	var b strings.Builder
	fmt.Fprintf(&b, "City: %s\n", city)
	fmt.Fprintf(&b, "Weather: %s\n", live.Weather)
	fmt.Fprintf(&b, "Temperature: %s°C\n", live.Temperature)
	fmt.Fprintf(&b, "Wind: %s %s\n", live.WindDirection, live.WindPower)
	fmt.Fprintf(&b, "Reported: %s", live.ReportTime)
	return b.String(), nil
}

func (s *weatherService) geocode(ctx context.Context, city string) (string, error) {
	u := fmt.Sprintf("%s?colaKey=%s&address=%s", geocodeEndpoint, url.QueryEscape(s.colaKey), url.QueryEscape(city))
	var gr geocodeResponse
	if err := s.getJSON(ctx, u, &gr); err != nil {
		return "", err
	}
	if len(gr.Data.Geocodes) == 0 || gr.Data.Geocodes[0].Adcode == "" {
		return "", fmt.Errorf("city not found")
	}
	return gr.Data.Geocodes[0].Adcode, nil
}

func (s *weatherService) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newWeatherDefinition(cfg model.ToolsConfig) *Definition {
	svc := newWeatherService(cfg)
	return &Definition{
		ID:      "weather",
		Name:    "weather",
		Desc:    "Looks up the current weather for a city.",
		Enabled: true,
		Params: map[string]*schema.ParameterInfo{
			"city": {
				Type:     schema.String,
				Desc:     "Name of the city to look up",
				Required: true,
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in weatherInput
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if strings.TrimSpace(in.City) == "" {
				return "", fmt.Errorf("city is required")
			}
			return svc.lookup(ctx, in.City)
		},
	}
}

// NewBuiltinRegistry assembles the registry of built-in tools.
func NewBuiltinRegistry(cfg model.ToolsConfig) (*Registry, error) {
	return NewRegistry(
		newCalculatorDefinition(),
		newDateTimeDefinition(cfg),
		newWeatherDefinition(cfg),
	)
}
