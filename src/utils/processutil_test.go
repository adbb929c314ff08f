package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type weekRow struct {
	Date      string `csv:"date"`
	StuNewPos int    `csv:"stu_newPos"`
	NumEnroll *int   `csv:"num_enroll,omitempty"`
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]int{1, 2}, 3))
}

func TestHasColumn(t *testing.T) {
	df := dataframe.New(series.New([]string{"x"}, series.String, "school"))
	assert.True(t, HasColumn(df, "school"))
	assert.False(t, HasColumn(df, "date"))

	bad := dataframe.LoadRecords([][]string{{"school"}})
	assert.False(t, HasColumn(bad, "school"))
}

func TestWriteCSV(t *testing.T) {
	n := 480
	rows := []weekRow{
		{Date: "2021-01-04", StuNewPos: 7, NumEnroll: &n},
		{Date: "2021-01-11", StuNewPos: 3},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(rows, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,stu_newPos,num_enroll", lines[0])
	assert.Equal(t, "2021-01-04,7,480", lines[1])
	assert.Equal(t, "2021-01-11,3,", lines[2])
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "weekly.csv")
	require.NoError(t, SaveCSV([]weekRow{{Date: "2021-01-04", StuNewPos: 7}}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,stu_newPos,num_enroll\n2021-01-04,7,\n", string(data))
}

func TestSaveToExcel(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"2021-01-04", "2021-01-11"}, series.String, "date"),
		series.New([]string{"7", "NaN"}, series.Int, "stu_newPos"),
	)
	path := filepath.Join(t.TempDir(), "out", "weekly.xlsx")
	require.NoError(t, SaveToExcel(df, "weekly", path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("weekly")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "stu_newPos"}, rows[0])
	assert.Equal(t, []string{"2021-01-04", "7"}, rows[1])
	assert.Equal(t, []string{"2021-01-11"}, rows[2])
}
