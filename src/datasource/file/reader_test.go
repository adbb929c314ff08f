package file

import (
	"MSDDashboard/src/config"
	"MSDDashboard/src/datasource"
	"MSDDashboard/src/processor"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const caseCSV = `school,date,staff_newPos,stu_newPos,staff_offCampus,stu_offCampus,Stu_CloseContactAllowedOnCampus
Oakville High School,1/4/2021,1,3,2,5,
Bierbaum Elementary School,1/4/2021,0,2,,1,4
Oakville High School,1/11/2021,2,1,0,3,1
`

// writeEnrollXLSX 生成入学表, 第二行日期列写入 Excel 序列号
func writeEnrollXLSX(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet("enroll")
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	rows := [][]interface{}{
		{"school", "lat_long", "num_enroll", "updated_date"},
		{"Oakville High School", "38.4595, -90.3312", 2100, 44200},
		{"Bierbaum Elementary School", "38.4987,-90.3456", 480, 44201.5},
		{"SCOPE (Alternative School)", "", "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("enroll", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestExcelSerialToTime(t *testing.T) {
	assert.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), ExcelSerialToTime(44200))
	assert.Equal(t, time.Date(2021, 1, 5, 12, 0, 0, 0, time.UTC), ExcelSerialToTime(44201.5))
	assert.Equal(t, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC), ExcelSerialToTime(61))
}

func TestSourceCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte(caseCSV), 0644))

	df, err := NewSource(dir).Fetch(context.Background(), "data")
	require.NoError(t, err)
	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, "1/11/2021", df.Col("date").Elem(2).String())
	assert.Equal(t, "", df.Col("Stu_CloseContactAllowedOnCampus").Elem(0).String())
}

func TestSourceXLSX(t *testing.T) {
	dir := t.TempDir()
	writeEnrollXLSX(t, filepath.Join(dir, "enroll.xlsx"))

	df, err := NewSource(dir).Fetch(context.Background(), "enroll")
	require.NoError(t, err)
	require.Equal(t, 3, df.Nrow())
	assert.Equal(t, []string{"school", "lat_long", "num_enroll", "updated_date"}, df.Names())
	assert.Equal(t, "2100", df.Col("num_enroll").Elem(0).String())
	assert.Equal(t, "2021-01-04 00:00:00", df.Col("updated_date").Elem(0).String())
	assert.Equal(t, "2021-01-05 12:00:00", df.Col("updated_date").Elem(1).String())
	assert.Equal(t, "", df.Col("lat_long").Elem(2).String())
}

func TestSourceMissingView(t *testing.T) {
	_, err := NewSource(t.TempDir()).Fetch(context.Background(), "data")

	var fe *datasource.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "data", fe.View)
	assert.Equal(t, 0, fe.Status)
}

func TestSourceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSource(t.TempDir()).Fetch(ctx, "data")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte(caseCSV), 0644))
	writeEnrollXLSX(t, filepath.Join(dir, "enroll.xlsx"))

	dcfg := &config.DataConfig{Schools: []string{"Oakville High School", "Bierbaum Elementary School"}}
	ds, err := datasource.Load(context.Background(), NewSource(dir),
		datasource.Views{Case: "data", Enroll: "enroll"}, dcfg)
	require.NoError(t, err)

	assert.Equal(t, "2021-01-11", ds.LatestDate())
	assert.Equal(t, 2, ds.WeeklySummary().Nrow())

	rows, err := processor.CurrentWeekRows(ds.CurrentWeek())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Oakville High School", rows[0].School)
	assert.Equal(t, 3, rows[0].TotalNewCase)
	require.NotNil(t, rows[0].Lat)
	assert.Equal(t, 38.4595, *rows[0].Lat)
	require.NotNil(t, rows[0].NumEnroll)
	assert.Equal(t, 2100, *rows[0].NumEnroll)
}

func TestMonitorMatches(t *testing.T) {
	m, err := NewFileMonitor(t.TempDir(), "data", "enroll")
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.Matches("/tmp/x/data.csv"))
	assert.True(t, m.Matches("enroll.XLSX"))
	assert.False(t, m.Matches("notes.csv"))
	assert.False(t, m.Matches("~$enroll.xlsx"))
	assert.False(t, m.Matches("data.json"))
}

func TestMonitorWatch(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFileMonitor(dir, "data")
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 4)
	go func() { _ = m.Watch(ctx, func(name string) { changed <- name }) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte(caseCSV), 0644))

	select {
	case name := <-changed:
		assert.Equal(t, "data.csv", filepath.Base(name))
	case <-time.After(5 * time.Second):
		t.Fatal("no change event for data.csv")
	}
}
