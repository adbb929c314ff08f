package render

import (
	"MSDDashboard/src/processor"
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var caseHeader = []string{
	"school", "date", "staff_newPos", "stu_newPos",
	"staff_offCampus", "stu_offCampus", "Stu_CloseContactAllowedOnCampus",
}

func frame(header []string, rows ...[]string) dataframe.DataFrame {
	return dataframe.LoadRecords(append([][]string{header}, rows...),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

// testDataset 两周两所学校, 学生病例 7 -> 3
func testDataset(t *testing.T, caseRows ...[]string) *processor.Dataset {
	t.Helper()
	if len(caseRows) == 0 {
		caseRows = [][]string{
			{"Oakville High School", "2022-01-03", "1", "5", "", "", ""},
			{"Bierbaum Elementary School", "2022-01-03", "0", "2", "", "", ""},
			{"Oakville High School", "2022-01-10", "2", "3", "", "", ""},
		}
	}
	cases, err := processor.CleanCases(frame(caseHeader, caseRows...))
	require.NoError(t, err)
	enroll, err := processor.CleanEnrollment(frame([]string{"school", "lat_long", "num_enroll"},
		[]string{"Oakville High School", "38.4595,-90.3312", "2100"},
		[]string{"Bierbaum Elementary School", "38.4987,-90.3456", "480"},
	))
	require.NoError(t, err)

	ds, err := processor.NewDataset("test", cases, enroll,
		[]string{"Oakville High School", "Bierbaum Elementary School"})
	require.NoError(t, err)
	return ds
}

func assertPNG(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	require.NotZero(t, buf.Len())
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.NotZero(t, img.Bounds().Dx())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1,234", FormatCount(1234))
	assert.Equal(t, "+3", FormatChange(3))
	assert.Equal(t, "-4", FormatChange(-4))
	assert.Equal(t, "0", FormatChange(0))
	assert.Equal(t, ColorIncrease, ChangeColor(1))
	assert.Equal(t, ColorDecrease, ChangeColor(-1))
	assert.Equal(t, ColorFlat, ChangeColor(0))
}

func TestBuildKPIs(t *testing.T) {
	kpis, err := BuildKPIs(testDataset(t))
	require.NoError(t, err)
	require.Len(t, kpis, 4)

	stu := kpis[0]
	assert.Equal(t, "weekly student new case", stu.Label)
	assert.Equal(t, "3", stu.Value)
	assert.Equal(t, "-4", stu.Delta)
	assert.Equal(t, ColorDecrease, stu.Color)
	assert.True(t, stu.Available)

	staff := kpis[2]
	assert.Equal(t, "weekly staff new case", staff.Label)
	assert.Equal(t, "+1", staff.Delta)
	assert.Equal(t, ColorIncrease, staff.Color)

	// 离校列最新一周没有上报
	for _, k := range []KPI{kpis[1], kpis[3]} {
		assert.False(t, k.Available)
		assert.Equal(t, NotAvailable, k.Value)
		assert.Equal(t, "n/a", k.Delta)
		assert.Equal(t, ColorFlat, k.Color)
	}
}

func TestBuildKPIsSingleWeek(t *testing.T) {
	ds := testDataset(t, []string{"Oakville High School", "2022-01-03", "1", "5", "0", "1", ""})
	kpis, err := BuildKPIs(ds)
	require.NoError(t, err)

	assert.Equal(t, "5", kpis[0].Value)
	assert.Equal(t, "n/a", kpis[0].Delta)
	assert.Equal(t, ColorFlat, kpis[0].Color)
	assert.True(t, kpis[1].Available)
	assert.Equal(t, "1", kpis[1].Value)
}

func TestWeeklyTrend(t *testing.T) {
	ds := testDataset(t)
	rows, err := processor.WeeklyRows(ds.WeeklySummary())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WeeklyTrend(&buf, rows))
	assertPNG(t, &buf)

	buf.Reset()
	require.NoError(t, WeeklyTrend(&buf, rows[:1]))
	assertPNG(t, &buf)

	assert.ErrorIs(t, WeeklyTrend(&buf, nil), ErrNoData)
}

func TestSchoolBars(t *testing.T) {
	ds := testDataset(t)
	rows, err := processor.SchoolRows(ds.SchoolSelection("Oakville High School"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, p := range []Population{StudentCases, StaffCases} {
		var buf bytes.Buffer
		require.NoError(t, SchoolBars(&buf, "Oakville High School", rows, p, ds.LatestDate()))
		assertPNG(t, &buf)
	}

	// 没有记录的学校输出占位图
	var buf bytes.Buffer
	require.NoError(t, SchoolBars(&buf, "Point Elementary School", nil, StudentCases, ds.LatestDate()))
	assertPNG(t, &buf)
	assert.Equal(t,
		"Oakville High School Staff Case Tracking - Last Updated 2022-01-10",
		SchoolBarsTitle("Oakville High School", StaffCases, "2022-01-10"))
}

func TestSchoolBarsAllZero(t *testing.T) {
	rows := []processor.SchoolRow{{School: "Point Elementary School", Date: "2022-01-03"}}
	var buf bytes.Buffer
	require.NoError(t, SchoolBars(&buf, "Point Elementary School", rows, StaffCases, "2022-01-03"))
	assertPNG(t, &buf)
}

func TestCaseMap(t *testing.T) {
	ds := testDataset(t)
	rows, err := processor.CurrentWeekRows(ds.CurrentWeek())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var buf bytes.Buffer
	require.NoError(t, CaseMap(&buf, rows))
	assertPNG(t, &buf)

	buf.Reset()
	noCoords := []processor.CurrentWeekRow{{School: "SCOPE (Alternative School)", TotalNewCase: 2}}
	require.NoError(t, CaseMap(&buf, noCoords))
	assertPNG(t, &buf)

	buf.Reset()
	require.NoError(t, CaseMap(&buf, nil))
	assertPNG(t, &buf)
}

func TestRenderPage(t *testing.T) {
	ds := testDataset(t)
	p, err := NewPage("MSD Covid-19 Dashboard", ds, "")
	require.NoError(t, err)
	assert.Equal(t, "Oakville High School", p.Selected)

	var buf bytes.Buffer
	require.NoError(t, RenderPage(&buf, p))
	html := buf.String()

	assert.Contains(t, html, "<title>MSD Covid-19 Dashboard</title>")
	assert.Contains(t, html, "Last Updated: 2022-01-10")
	assert.Contains(t, html, "weekly student new case")
	assert.Contains(t, html, "/charts/school/student.png?school=Oakville")
	assert.Equal(t, 2, strings.Count(html, `type="radio"`))
	assert.Equal(t, 1, strings.Count(html, " checked>"))
}
