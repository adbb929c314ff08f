// reader.go
package file

import (
	"MSDDashboard/src/datasource"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// Number 匹配 Excel 日期序列号
const Number string = `^[0-9]+(\.[0-9]+)?$`

var numberRe = regexp.MustCompile(Number)

// Exts 支持的文件扩展名, 按查找顺序
var Exts = []string{".csv", ".xlsx"}

var errNoFile = errors.New("no .csv or .xlsx file for view")

// Source 本地目录数据源, 视图 v 对应 <dir>/v.csv 或 <dir>/v.xlsx
type Source struct {
	Dir string
}

func NewSource(dir string) *Source {
	return &Source{Dir: dir}
}

func (s *Source) Name() string {
	return "dir " + s.Dir
}

// Path 视图对应的文件路径, 找不到时返回错误
func (s *Source) Path(view string) (string, error) {
	for _, ext := range Exts {
		p := filepath.Join(s.Dir, view+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errNoFile
}

func (s *Source) Fetch(ctx context.Context, view string) (dataframe.DataFrame, error) {
	fail := func(err error) (dataframe.DataFrame, error) {
		return dataframe.DataFrame{}, &datasource.FetchError{Source: s.Name(), View: view, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	p, err := s.Path(view)
	if err != nil {
		return fail(err)
	}

	var df dataframe.DataFrame
	if strings.EqualFold(filepath.Ext(p), ".xlsx") {
		df, err = ReadXLSX(p, view)
	} else {
		df, err = ReadCSV(p)
	}
	if err != nil {
		return fail(err)
	}
	return df, nil
}

// ReadCSV 读取 CSV 文件, 所有列按字符串读取
func ReadCSV(filePath string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read %s: %w", filepath.Base(filePath), df.Err)
	}
	return df, nil
}

// ReadXLSX 读取工作表, 工作表不存在时读取第一个
// 日期列中的 Excel 序列号转换为 "2006-01-02 15:04:05"
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}

	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		sheet = xlFile.Sheets[0]
	}

	df, err := convertSheetToDataFrame(sheet)
	if err != nil {
		return df, fmt.Errorf("sheet %s: %w", sheet.Name, err)
	}

	for _, col := range findTimeColumns(df) {
		df = df.Mutate(
			series.New(df.Col(col).Map(excelToTime), series.String, col),
		)
	}
	return df, df.Err
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame, 第一行为标题行
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) < 2 {
		return dataframe.DataFrame{}, errors.New("sheet has no data rows")
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	// 去掉尾部空标题
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, errors.New("sheet has no header row")
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	for _, row := range sheet.Rows[1:] {
		if row == nil || isBlankRow(row) {
			continue
		}
		// 短行用空字符串补齐
		for i := range headers {
			v := ""
			if i < len(row.Cells) && row.Cells[i] != nil {
				v = row.Cells[i].Value
			}
			columns[i] = append(columns[i], v)
		}
	}
	if len(columns[0]) == 0 {
		return dataframe.DataFrame{}, errors.New("sheet has no data rows")
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	return df, df.Err
}

func isBlankRow(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if cell != nil && strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}

// findTimeColumns 查找可能是时间类型的列
func findTimeColumns(df dataframe.DataFrame) []string {
	var timeCols []string
	timeKeywords := []string{"date", "time", "日期", "时间"}

	for _, col := range df.Names() {
		lower := strings.ToLower(col)
		for _, kw := range timeKeywords {
			if strings.Contains(lower, kw) {
				timeCols = append(timeCols, col)
				break
			}
		}
	}
	return timeCols
}

// ExcelSerialToTime Excel 序列号(1900 日期系统)转 time.Time
func ExcelSerialToTime(serial float64) time.Time {
	// 以 1899-12-30 为基准已包含 1900 年闰年错误的修正
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := math.Floor(serial)
	fraction := serial - days
	return base.AddDate(0, 0, int(days)).
		Add(time.Duration(math.Round(86400*fraction)) * time.Second)
}

// excelToTime 数值单元格按 Excel 序列号转换, 其它值保持不变
func excelToTime(v series.Element) series.Element {
	s := strings.TrimSpace(v.String())
	if !numberRe.MatchString(s) {
		return v
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return v
	}
	v.Set(ExcelSerialToTime(serial).Format("2006-01-02 15:04:05"))
	return v
}
