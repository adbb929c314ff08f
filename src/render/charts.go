package render

import (
	"MSDDashboard/src/processor"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData 没有可绘制的数据
var ErrNoData = errors.New("render: no data to plot")

// Population 单校柱状图的人群: 学生或教职工
type Population int

const (
	StudentCases Population = iota
	StaffCases
)

func (s Population) String() string {
	if s == StaffCases {
		return "Staff"
	}
	return "Student"
}

var (
	colorStudent   = drawing.ColorFromHex("1f77b4")
	colorStaff     = drawing.ColorFromHex("ff7f0e")
	colorFirebrick = drawing.ColorFromHex("b22222")
)

const (
	lineWidth  = 640
	lineHeight = 360
	barHeight  = 360
	barMin     = 800
	barSize    = 20
	barSpacing = 12
	mapWidth   = 640
	mapHeight  = 480
)

const (
	mapTitle    = "Map of Current Week Case"
	NoDataLabel = "No data"
)

func parseDay(s string) (time.Time, error) {
	return time.Parse(processor.DateLayout, s)
}

// countRange 从 0 开始的纵轴, 全零时也保留高度
func countRange(maxV float64) *chart.ContinuousRange {
	if maxV < 1 {
		maxV = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: math.Ceil(maxV * 1.1)}
}

// WeeklyTrend 全学区每周学生/教职工新增病例折线图
func WeeklyTrend(w io.Writer, rows []processor.WeeklyRow) error {
	if len(rows) == 0 {
		return ErrNoData
	}

	times := make([]time.Time, 0, len(rows))
	stu := make([]float64, 0, len(rows))
	staff := make([]float64, 0, len(rows))
	maxY := 0.0
	for _, r := range rows {
		t, err := parseDay(r.Date)
		if err != nil {
			return fmt.Errorf("weekly row %s: %w", r.Date, err)
		}
		times = append(times, t)
		stu = append(stu, float64(r.StuNewPos))
		staff = append(staff, float64(r.StaffNewPos))
		maxY = math.Max(maxY, math.Max(float64(r.StuNewPos), float64(r.StaffNewPos)))
	}
	// go-chart 至少需要两个 X 值
	if len(times) == 1 {
		times = append(times, times[0].Add(24*time.Hour))
		stu = append(stu, stu[0])
		staff = append(staff, staff[0])
	}

	ch := chart.Chart{
		Title:      "School District Weekly Case Trend",
		Width:      lineWidth,
		Height:     lineHeight,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{Name: "Count", Range: countRange(maxY)},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Weekly Student New Case",
				XValues: times,
				YValues: stu,
				Style:   chart.Style{StrokeColor: colorStudent, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Weekly Staff New Case",
				XValues: times,
				YValues: staff,
				Style:   chart.Style{StrokeColor: colorStaff, StrokeWidth: 2},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return ch.Render(chart.PNG, w)
}

// SchoolBarsTitle 单校柱状图标题
func SchoolBarsTitle(school string, s Population, updated string) string {
	return fmt.Sprintf("%s %s Case Tracking - Last Updated %s", school, s, updated)
}

// SchoolBars 单个学校每周新增病例柱状图, updated 为当前周日期
// 学校没有任何记录时输出占位图
func SchoolBars(w io.Writer, school string, rows []processor.SchoolRow, s Population, updated string) error {
	if len(rows) == 0 {
		return Placeholder(w, SchoolBarsTitle(school, s, updated), barMin, barHeight)
	}

	color := colorStudent
	if s == StaffCases {
		color = colorStaff
	}

	bars := make([]chart.Value, len(rows))
	maxY := 0.0
	for i, r := range rows {
		v := float64(r.StuNewPos)
		if s == StaffCases {
			v = float64(r.StaffNewPos)
		}
		label := r.Date
		if t, err := parseDay(r.Date); err == nil {
			label = t.Format("01/02")
		}
		bars[i] = chart.Value{
			Label: label,
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
		maxY = math.Max(maxY, v)
	}

	width := barMin
	if need := 120 + len(bars)*(barSize+barSpacing); need > width {
		width = need
	}

	bc := chart.BarChart{
		Title:      SchoolBarsTitle(school, s, updated),
		Width:      width,
		Height:     barHeight,
		BarWidth:   barSize,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Name: "Count", Range: countRange(maxY)},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, w)
}

// CaseMap 当前周各学校位置散点图, 点大小对应 total_new_case
// 没有坐标的学校不绘制, 全部没有坐标时输出占位图
func CaseMap(w io.Writer, rows []processor.CurrentWeekRow) error {
	var xs, ys, sizes []float64
	var labels []chart.Value2
	for _, r := range rows {
		if r.Lat == nil || r.Long == nil {
			continue
		}
		xs = append(xs, *r.Long)
		ys = append(ys, *r.Lat)
		sizes = append(sizes, markerSize(r.TotalNewCase))
		labels = append(labels, chart.Value2{
			XValue: *r.Long,
			YValue: *r.Lat,
			Label:  fmt.Sprintf("%s: %d (stu %d, staff %d)", r.School, r.TotalNewCase, r.StuNewPos, r.StaffNewPos),
		})
	}
	if len(xs) == 0 {
		return Placeholder(w, mapTitle, mapWidth, mapHeight)
	}

	xMin, xMax := bounds(xs)
	yMin, yMax := bounds(ys)

	ch := chart.Chart{
		Title:      mapTitle,
		Width:      mapWidth,
		Height:     mapHeight,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "long",
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			ValueFormatter: coordFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "lat",
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			ValueFormatter: coordFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "total_new_case",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
					DotColor:    colorFirebrick.WithAlpha(180),
					DotWidthProvider: func(_, _ chart.Range, index int, _, _ float64) float64 {
						return sizes[index]
					},
				},
			},
			chart.AnnotationSeries{
				Annotations: labels,
				Style:       chart.Style{FontSize: 7},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}

// Placeholder 没有数据时的空白图, 中央显示 NoDataLabel
func Placeholder(w io.Writer, title string, width, height int) error {
	blank := func(v interface{}) string { return "" }
	ch := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Range: &chart.ContinuousRange{Min: 0, Max: 1}, ValueFormatter: blank},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: 1}, ValueFormatter: blank},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: []float64{0, 1},
				YValues: []float64{0, 1},
				Style:   chart.Style{StrokeWidth: chart.Disabled, StrokeColor: drawing.ColorTransparent},
			},
			chart.AnnotationSeries{
				Annotations: []chart.Value2{{XValue: 0.5, YValue: 0.5, Label: NoDataLabel}},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}

// markerSize 点半径随病例数增长, 0 病例仍可见
func markerSize(total int) float64 {
	return 3 + 2*math.Sqrt(float64(total))
}

// bounds 取值范围并向两侧留白, 单点时也保证范围不为零
func bounds(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.15
	if pad < 0.005 {
		pad = 0.005
	}
	return lo - pad, hi + pad
}

func coordFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.3f", f)
	}
	return ""
}
