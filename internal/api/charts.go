package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dragtree/internal/httputil"
	"github.com/banshee-data/dragtree/internal/results"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// reactionChart renders reaction times of recent races as one line per lane.
// False starts plot below zero.
func (s *Server) reactionChart(w http.ResponseWriter, r *http.Request) {
	if !s.storeAvailable(w, r) {
		return
	}
	limit := 20
	if l := r.URL.Query().Get("races"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'races' parameter")
			return
		}
		limit = parsed
	}

	races, err := s.store.Races(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve races: %v", err))
		return
	}

	x, series := reactionSeries(races)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Reaction times", Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Reaction times", Subtitle: fmt.Sprintf("last %d races", len(races))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(x)
	lanes := make([]int, 0, len(series))
	for id := range series {
		lanes = append(lanes, id)
	}
	sort.Ints(lanes)
	for _, id := range lanes {
		line.AddSeries(fmt.Sprintf("Lane %d", id), series[id])
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// reactionSeries lays races out oldest first. A lane without a reaction time
// in a race gets a gap.
func reactionSeries(races []results.Race) ([]string, map[int][]opts.LineData) {
	x := make([]string, len(races))
	series := map[int][]opts.LineData{}
	for i := range races {
		rec := races[len(races)-1-i]
		x[i] = rec.CompletedAt.Local().Format("Jan 2 15:04:05")
		for _, l := range rec.Lanes {
			if _, ok := series[l.LaneID]; !ok {
				series[l.LaneID] = make([]opts.LineData, len(races))
				for j := range series[l.LaneID] {
					series[l.LaneID][j] = opts.LineData{Value: "-"}
				}
			}
			if l.ReactionTime != nil {
				series[l.LaneID][i] = opts.LineData{Value: *l.ReactionTime}
			}
		}
	}
	return x, series
}
