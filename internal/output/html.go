package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/threshold"
)

// maxSeriesPoints caps the deviation series embedded in the report.
const maxSeriesPoints = 5000

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Run              RunInfo
	Stats            metrics.Stats
	Distribution     []metrics.Bucket
	ThresholdSummary *ThresholdSummary
	SeriesJSON       string
	DistributionJSON string
	HasSeries        bool
}

// ThresholdSummary aggregates threshold outcomes for display.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []ThresholdResultJSON
}

// ThresholdResultJSON is one row of the threshold table.
type ThresholdResultJSON struct {
	Threshold string
	Metric    string
	Aggregate string
	Operator  string
	Expected  float64
	Actual    float64
	Pass      bool
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
// series holds the signed deviation of the most recent measurements.
func GenerateHTMLReport(w io.Writer, run RunInfo, stats metrics.Stats, series []metrics.Point, distribution []metrics.Bucket, thresholdResults []threshold.Result) error {
	var thresholdSummary *ThresholdSummary
	if len(thresholdResults) > 0 {
		thresholdSummary = &ThresholdSummary{
			Total:   len(thresholdResults),
			Results: make([]ThresholdResultJSON, len(thresholdResults)),
		}
		for i, tr := range thresholdResults {
			thresholdSummary.Results[i] = ThresholdResultJSON{
				Threshold: tr.Threshold.Raw,
				Metric:    tr.Threshold.Metric,
				Aggregate: tr.Threshold.Aggregate,
				Operator:  tr.Threshold.Operator,
				Expected:  tr.Threshold.Value,
				Actual:    tr.Actual,
				Pass:      tr.Pass,
			}
			if tr.Pass {
				thresholdSummary.Passed++
			} else {
				thresholdSummary.Failed++
			}
		}
	}

	if len(series) > maxSeriesPoints {
		series = series[len(series)-maxSeriesPoints:]
	}
	xs := make([]uint64, len(series))
	ys := make([]int64, len(series))
	for i, p := range series {
		xs[i] = p.Sequence
		ys[i] = p.Deviation
	}
	seriesJSON, err := json.Marshal([2]any{xs, ys})
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}
	distJSON, err := json.Marshal(distribution)
	if err != nil {
		return fmt.Errorf("failed to marshal distribution: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Run:              run,
		Stats:            stats,
		Distribution:     distribution,
		ThresholdSummary: thresholdSummary,
		SeriesJSON:       string(seriesJSON),
		DistributionJSON: string(distJSON),
		HasSeries:        len(series) > 0,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part uint64, total int64) string {
			all := float64(total) + float64(part)
			if all == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.2f", (float64(part)/all)*100)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>GPIO Jitter Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #0f766e 0%, #1e3a8a 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #0f766e;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.error { border-left-color: #ef4444; }
        .card.warning { border-left-color: #f59e0b; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
            border-radius: 8px;
        }
        .chart { width: 100%; height: 300px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 12px; border-bottom: 1px solid #e5e7eb; }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
        }
        .badge { display: inline-block; padding: 4px 12px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .stat-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
        }
        .stat-item { background: #f8f9fa; padding: 15px; border-radius: 6px; text-align: center; }
        .stat-item .label { font-size: 0.85rem; color: #6c757d; }
        .stat-item .value { font-size: 1.3rem; font-weight: bold; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>GPIO Jitter Report</h1>
            <div class="meta">Pin: {{.Run.Pin}} | {{.Run.FrequencyHz}} Hz | Run: {{.Run.RunID}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Stats.Duration}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Samples</h3>
                    <div class="value">{{.Stats.Samples}}</div>
                    <div class="subvalue">{{formatFloat .Stats.TogglesPerSec}}/s</div>
                </div>
                <div class="card{{if .Stats.Dropped}} warning{{end}}">
                    <h3>Dropped</h3>
                    <div class="value">{{.Stats.Dropped}}</div>
                    <div class="subvalue">{{formatPercent .Stats.Dropped .Stats.Samples}}%</div>
                </div>
                <div class="card">
                    <h3>Max Jitter</h3>
                    <div class="value">{{.Stats.MaxJitterNS}} ns</div>
                </div>
                <div class="card">
                    <h3>Target Half-Period</h3>
                    <div class="value">{{.Stats.TargetNS}} ns</div>
                    <div class="subvalue">clock overhead {{.Run.OverheadNS}} ns ({{.Run.Clock}})</div>
                </div>
            </div>

            {{if .HasSeries}}
            <div class="section">
                <h2>Deviation Over Samples</h2>
                <div class="chart-container">
                    <div id="deviation-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <div class="section">
                <h2>Jitter Statistics (ns)</h2>
                <div class="stat-grid">
                    <div class="stat-item"><div class="label">Mean</div><div class="value">{{.Stats.MeanJitterNS}}</div></div>
                    <div class="stat-item"><div class="label">P50</div><div class="value">{{.Stats.P50JitterNS}}</div></div>
                    <div class="stat-item"><div class="label">P90</div><div class="value">{{.Stats.P90JitterNS}}</div></div>
                    <div class="stat-item"><div class="label">P99</div><div class="value">{{.Stats.P99JitterNS}}</div></div>
                    <div class="stat-item"><div class="label">Max</div><div class="value">{{.Stats.MaxJitterNS}}</div></div>
                    <div class="stat-item"><div class="label">StdDev</div><div class="value">{{formatFloat .Stats.StdDevJitterNS}}</div></div>
                    <div class="stat-item"><div class="label">Min Interval</div><div class="value">{{.Stats.MinIntervalNS}}</div></div>
                    <div class="stat-item"><div class="label">Max Interval</div><div class="value">{{.Stats.MaxIntervalNS}}</div></div>
                </div>
            </div>

            {{if .Distribution}}
            <div class="section">
                <h2>Jitter Distribution</h2>
                <table>
                    <thead><tr><th>From (ns)</th><th>To (ns)</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range .Distribution}}
                        <tr><td>{{.FromNS}}</td><td>{{.ToNS}}</td><td>{{.Count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .HasSeries}}
    <script>
        const series = JSON.parse({{.SeriesJSON}});
        const target = document.getElementById('deviation-chart');
        new uPlot({
            title: "Deviation from target (ns)",
            width: target.offsetWidth,
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Sample" },
                { label: "Deviation", stroke: "#0f766e", width: 1, points: { show: false } }
            ],
            axes: [
                { label: "Sample" },
                { label: "ns" }
            ]
        }, series, target);
    </script>
    {{end}}
</body>
</html>
`
