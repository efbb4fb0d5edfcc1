package analysis

import (
	"math"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/hourlens/internal/table"
)

func ridership() *table.Table {
	return table.MustNew("ridership.csv",
		table.NewText("호선", "1호선", "1호선", "2호선", "2호선"),
		table.NewNumeric("시간", 8, 8, 23, 32),
		table.NewNumeric("승차", 10, 20, 5, math.NaN()),
	)
}

func TestAnalyzeWideScenario(t *testing.T) {
	tb := table.MustNew("wide.csv",
		table.NewText("역명", "강남"),
		table.NewNumeric("00시-01시", 10),
		table.NewNumeric("01시-02시", 20),
	)
	rep, err := NewEngine(nil).Analyze(Request{Table: tb, Policy: DefaultPolicy()})
	require.NoError(t, err)

	require.NotNil(t, rep.Temporal, "temporal: %+v", rep.TemporalUnavailable)
	assert.Equal(t, LayoutWide, rep.Temporal.Layout)
	require.NotNil(t, rep.Temporal.Reshape)
	assert.Equal(t, 2, rep.Temporal.Reshape.Rows)

	s, ok := rep.Temporal.Aggregation.Series("", "value")
	require.True(t, ok)
	v, _ := s.Value(0)
	assert.Equal(t, 10.0, v)
	v, _ = s.Value(1)
	assert.Equal(t, 20.0, v)
	assert.Equal(t, 2, s.HoursWithData())

	require.Len(t, rep.Temporal.Peaks, 1)
	assert.Equal(t, 1, rep.Temporal.Peaks[0].Peak.Hour)

	// a wide table has no column-level target to correlate against
	assert.Nil(t, rep.Correlation)
	assert.ErrorIs(t, rep.CorrelationUnavailable, ErrTargetColumnMissing)
	assert.NotEmpty(t, rep.ID)
}

func TestAnalyzeWideMissingHourColumnStaysNoData(t *testing.T) {
	tb := table.MustNew("wide.csv",
		table.NewText("역명", "강남"),
		table.NewNumeric("04시-05시 승차", 10),
		table.NewNumeric("05시-06시 승차", 20),
		table.NewNumeric("04시-05시 하차", 7),
		table.NewText("05시-06시 하차", "oops"),
	)
	for _, p := range []Policy{
		DefaultPolicy(),
		{Missing: ColumnMeanFill},
		{Missing: ColumnMeanFill, Outliers: OutlierIQRClip},
	} {
		t.Run(string(p.Missing)+"/"+string(p.Outliers), func(t *testing.T) {
			rep, err := NewEngine(nil).Analyze(Request{Table: tb, Policy: p})
			require.NoError(t, err)
			require.NotNil(t, rep.Temporal, "temporal: %+v", rep.TemporalUnavailable)
			require.Len(t, rep.Temporal.Reshape.Dropped, 1)

			down, ok := rep.Temporal.Aggregation.Series("", "하차")
			require.True(t, ok)
			assert.False(t, down.Buckets[5].HasData, "dropped column must not become a reading")
			v, ok := down.Value(4)
			require.True(t, ok)
			assert.Equal(t, 7.0, v)
			assert.Equal(t, 1, down.HoursWithData())

			up, _ := rep.Temporal.Aggregation.Series("", "승차")
			v, _ = up.Value(5)
			assert.Equal(t, 20.0, v)

			for _, cc := range rep.Temporal.Cleaning.Columns {
				if cc.Column == "하차" {
					assert.Equal(t, 1, cc.Absent)
					assert.Equal(t, 0, cc.Filled)
				}
			}
		})
	}
}

func TestAnalyzeGroupedLongTable(t *testing.T) {
	ratios, err := ParseRatios([]string{"night/rush"})
	require.NoError(t, err)
	rep, err := NewEngine(zap.NewNop()).Analyze(Request{
		Table:  ridership(),
		Policy: Policy{Missing: ColumnMeanFill},
		Ratios: ratios,
	})
	require.NoError(t, err)
	require.NotNil(t, rep.Temporal)

	agg := rep.Temporal.Aggregation
	assert.Equal(t, "호선", agg.GroupBy)
	require.Len(t, agg.Partitions, 2)

	s, _ := agg.Series("1호선", "승차")
	v, _ := s.Value(8)
	assert.Equal(t, 15.0, v)
	// 32 wraps to hour 8; its missing value is filled with the column mean
	s, _ = agg.Series("2호선", "승차")
	v, _ = s.Value(8)
	assert.Equal(t, 35.0/3, v)

	require.Len(t, rep.Temporal.Peaks, 1)
	assert.Equal(t, "1호선", rep.Temporal.Peaks[0].Peak.Group)
	assert.Equal(t, 8, rep.Temporal.Peaks[0].Peak.Hour)

	require.Len(t, rep.Temporal.Series, 2)
	first := rep.Temporal.Series[0]
	assert.Equal(t, "1호선", first.Group)
	require.Len(t, first.Window, 2)
	assert.Equal(t, "night", first.Window[0].Name)
	assert.False(t, first.Window[0].HasData())
	require.Len(t, first.Ratios, 1)
	assert.Nil(t, first.Ratios[0].Value)
	assert.ErrorIs(t, first.Ratios[0].Unavailable, ErrUndefinedRatio)

	second := rep.Temporal.Series[1]
	require.NotNil(t, second.Ratios[0].Value)
	assert.InDelta(t, 5/(35.0/3), *second.Ratios[0].Value, 1e-9)

	require.NotNil(t, rep.Correlation)
	assert.Equal(t, "승차", rep.Correlation.Target)
	assert.Equal(t, 3, rep.Correlation.Rows)
}

func TestAnalyzeWithoutTemporalStructure(t *testing.T) {
	tb := table.MustNew("fitness.csv",
		table.NewNumeric("체지방율", 20, 22, 25, 30),
		table.NewNumeric("골격근량", 35, 33, 30, 28),
		table.NewNumeric("체중", 60, 62, 70, 80),
	)
	rep, err := NewEngine(nil).Analyze(Request{Table: tb, Target: "체지방율", TopN: 5})
	require.NoError(t, err)

	assert.Nil(t, rep.Temporal)
	assert.ErrorIs(t, rep.TemporalUnavailable, ErrNoTemporalStructure)
	require.NotNil(t, rep.Correlation)
	assert.Len(t, rep.Correlation.Top, 2)
}

func TestAnalyzeMissingTargetIsLocalized(t *testing.T) {
	rep, err := NewEngine(nil).Analyze(Request{Table: ridership(), Target: "체지방율"})
	require.NoError(t, err)
	assert.NotNil(t, rep.Temporal)
	assert.Nil(t, rep.Correlation)
	assert.ErrorIs(t, rep.CorrelationUnavailable, ErrTargetColumnMissing)
}

func TestAnalyzeInvalidRequest(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Analyze(Request{})
	assert.Error(t, err)
	_, err = e.Analyze(Request{Table: ridership(), Policy: Policy{Outliers: "trim"}})
	assert.Error(t, err)
	_, err = e.Analyze(Request{Table: ridership(), Agg: "median"})
	assert.Error(t, err)
	_, err = e.Analyze(Request{Table: ridership(), Windows: []Window{{Name: "x", Ranges: []HourRange{{From: 3, To: 30}}}}})
	assert.Error(t, err)
}

func TestAnalyzeLogsWithAnalysisID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rep, err := NewEngine(zap.New(core)).Analyze(Request{Table: ridership()})
	require.NoError(t, err)

	finished := logs.FilterMessage("analysis finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, rep.ID, finished[0].ContextMap()["analysis_id"])
}

func TestReportRendering(t *testing.T) {
	ratios, _ := ParseRatios([]string{"night/rush"})
	rep, err := NewEngine(nil).Analyze(Request{Table: ridership(), Ratios: ratios, Policy: DefaultPolicy()})
	require.NoError(t, err)

	md := rep.Markdown()
	for _, section := range []string{"[DATASET SUMMARY]", "[COLUMN ROLES]", "[TEMPORAL PROFILE]", "[CORRELATION]"} {
		assert.Contains(t, md, section)
	}
	assert.Contains(t, md, "- 시간: time (time axis)")
	assert.Contains(t, md, "peak 승차: 1호선 at 08:00 = 15")
	assert.Contains(t, md, "night/rush: undefined")
	assert.True(t, strings.Contains(md, " - |"), "no-data hours are rendered as -")

	out, err := json.Marshal(rep)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, rep.ID, decoded["id"])
	assert.Contains(t, string(out), `"value":null`)
}
