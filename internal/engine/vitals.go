package engine

import (
	"fmt"
	"strings"

	"github.com/vigilstack/vigil-telemetry/internal/models"
)

// webVital carries the fixed threshold table and unit for a well-known vital.
type webVital struct {
	Thresholds models.Thresholds
	Unit       string
}

// webVitals maps the supported vital names to their fixed thresholds.
// Time-based vitals are milliseconds; CLS is a unitless score.
var webVitals = map[string]webVital{
	"FCP":  {Thresholds: models.Thresholds{Target: 1800, Warning: 3000, Critical: 4000}, Unit: "ms"},
	"LCP":  {Thresholds: models.Thresholds{Target: 2500, Warning: 4000, Critical: 5000}, Unit: "ms"},
	"FID":  {Thresholds: models.Thresholds{Target: 100, Warning: 300, Critical: 600}, Unit: "ms"},
	"CLS":  {Thresholds: models.Thresholds{Target: 0.1, Warning: 0.25, Critical: 0.5}, Unit: "score"},
	"TTFB": {Thresholds: models.Thresholds{Target: 800, Warning: 1800, Critical: 2500}, Unit: "ms"},
	"TTI":  {Thresholds: models.Thresholds{Target: 3800, Warning: 7300, Critical: 10000}, Unit: "ms"},
}

func lookupWebVital(name string) (webVital, error) {
	vital, ok := webVitals[strings.ToUpper(name)]
	if !ok {
		return webVital{}, fmt.Errorf("unknown web vital %q", name)
	}
	return vital, nil
}
