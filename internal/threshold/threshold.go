// Package threshold evaluates pass/fail assertions against run statistics.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/gpiojitter/internal/metrics"
)

// Threshold represents an assertion on run statistics that can pass or fail.
type Threshold struct {
	Metric    string  // "jitter", "interval", "samples", "dropped"
	Aggregate string  // e.g., "p99", "avg", "max", "count", "rate"
	Operator  string  // "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

type accessor func(metrics.Stats) float64

// catalog maps metric -> aggregate -> value. All jitter and interval values
// are in nanoseconds.
var catalog = map[string]map[string]accessor{
	"jitter": {
		"p50":    func(s metrics.Stats) float64 { return float64(s.P50JitterNS) },
		"p90":    func(s metrics.Stats) float64 { return float64(s.P90JitterNS) },
		"p99":    func(s metrics.Stats) float64 { return float64(s.P99JitterNS) },
		"avg":    func(s metrics.Stats) float64 { return float64(s.MeanJitterNS) },
		"max":    func(s metrics.Stats) float64 { return float64(s.MaxJitterNS) },
		"stddev": func(s metrics.Stats) float64 { return s.StdDevJitterNS },
	},
	"interval": {
		"min": func(s metrics.Stats) float64 { return float64(s.MinIntervalNS) },
		"max": func(s metrics.Stats) float64 { return float64(s.MaxIntervalNS) },
		"avg": func(s metrics.Stats) float64 { return float64(s.MeanIntervalNS) },
	},
	"samples": {
		"count": func(s metrics.Stats) float64 { return float64(s.Samples) },
		"rate":  func(s metrics.Stats) float64 { return s.TogglesPerSec },
	},
	"dropped": {
		"count": func(s metrics.Stats) float64 { return float64(s.Dropped) },
		"rate":  dropRate,
	},
}

// dropRate is the fraction of produced records lost to channel overflow.
func dropRate(s metrics.Stats) float64 {
	total := float64(s.Samples) + float64(s.Dropped)
	if total == 0 {
		return 0
	}
	return float64(s.Dropped) / total
}

func supported(m map[string]accessor) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return strings.Join(keys, ", ")
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided stats.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, stats))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluateOne(t Threshold, stats metrics.Stats) Result {
	res := Result{Threshold: t}
	actual, err := extractMetricValue(t, stats)
	if err != nil {
		res.Message = fmt.Sprintf("error: %v", err)
		return res
	}
	res.Actual = actual
	res.Pass = compareValues(actual, t.Operator, t.Value)
	mark := "✓"
	if !res.Pass {
		mark = "✗"
	}
	res.Message = fmt.Sprintf("%s %s: %.2f %s %.2f", mark, t.Raw, actual, t.Operator, t.Value)
	return res
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "jitter:p99 < 20000"      (jitter percentile in ns)
// - "jitter:max <= 100000"    (worst jitter in ns)
// - "interval:min > 0"        (shortest half-period in ns)
// - "samples:count >= 1000"   (recorded measurements)
// - "samples:rate > 19"       (measurements per second)
// - "dropped:count == 0"      (records lost to channel overflow)
// - "dropped:rate < 0.001"    (fraction of records lost)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'jitter:p99 < 20000')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	aggs, ok := catalog[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: jitter, interval, samples, dropped)", metric)
	}
	if _, ok := aggs[aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, supported(aggs))
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidOperator(operator string) bool {
	switch operator {
	case "<", "<=", ">", ">=", "==":
		return true
	}
	return false
}

func extractMetricValue(t Threshold, stats metrics.Stats) (float64, error) {
	aggs, ok := catalog[t.Metric]
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
	get, ok := aggs[t.Aggregate]
	if !ok {
		return 0, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", t.Aggregate, t.Metric, supported(aggs))
	}
	return get(stats), nil
}

const epsilon = 1e-9

func compareValues(actual float64, operator string, expected float64) bool {
	equal := math.Abs(actual-expected) < epsilon
	switch operator {
	case "<":
		return actual < expected && !equal
	case "<=":
		return actual < expected || equal
	case ">":
		return actual > expected && !equal
	case ">=":
		return actual > expected || equal
	case "==":
		return equal
	}
	return false
}
