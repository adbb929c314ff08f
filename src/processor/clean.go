package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DateLayout 清洗后日期列统一使用的格式
const DateLayout = "2006-01-02"

// dateLayouts 源数据中可能出现的日期格式
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"01/02/2006",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"Jan 2, 2006",
}

// maxCount float64 能精确表示的整数上限
const maxCount = 1 << 53

var (
	errEmpty       = errors.New("empty value")
	errNotInteger  = errors.New("not an integer")
	errNegative    = errors.New("negative count")
	errTooLarge    = errors.New("count out of range")
	errBadLatLong  = errors.New(`expected "lat,long"`)
	errUnknownDate = errors.New("unrecognized date format")
)

// ParseDate 解析日期并格式化为 YYYY-MM-DD
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errEmpty
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", errUnknownDate
}

// ParseCount 解析非负整数计数, 兼容 "1,234" 与 "5.0"
func ParseCount(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, errEmpty
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errNotInteger
	}
	if f < 0 {
		return 0, errNegative
	}
	if f >= maxCount {
		return 0, errTooLarge
	}
	return int(f), nil
}

// ParseLatLong 拆分 "lat,long" 并保留4位小数
func ParseLatLong(s string) (lat, long float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, errBadLatLong
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	long, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return Round4(lat), Round4(long), nil
}

// Round4 保留4位小数(银行家舍入)
func Round4(v float64) float64 {
	return math.RoundToEven(v*1e4) / 1e4
}

// isNull 判断单元格是否为空值
func isNull(e series.Element) bool {
	if e.IsNA() {
		return true
	}
	switch strings.TrimSpace(e.String()) {
	case "", "NaN", "NA", "<NA>", "null":
		return true
	}
	return false
}

// nullableInts 由可空整数构造 Int 列, nil 对应 NaN
func nullableInts(vals []*int, name string) series.Series {
	raw := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			raw[i] = "NaN"
			continue
		}
		raw[i] = strconv.Itoa(*v)
	}
	return series.New(raw, series.Int, name)
}

// nullableFloats 由可空浮点数构造 Float 列
func nullableFloats(vals []*float64, name string) series.Series {
	raw := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			raw[i] = "NaN"
			continue
		}
		raw[i] = strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return series.New(raw, series.Float, name)
}

// CleanCases 将已投影的病例表转换为带类型的表, 并按日期升序排列
//   - 计数列为非负整数, 空值报错
//   - 离校与密接列为可空整数
//   - 任意单元格解析失败都会返回 *ParseError
func CleanCases(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	n := df.Nrow()
	schoolCol := df.Col(ColSchool)
	dateCol := df.Col(ColDate)

	schools := make([]string, n)
	dates := make([]string, n)
	for i := 0; i < n; i++ {
		schools[i] = strings.TrimSpace(schoolCol.Elem(i).String())

		raw := dateCol.Elem(i).String()
		d, err := ParseDate(raw)
		if err != nil {
			return dataframe.DataFrame{}, &ParseError{Table: CaseTable, Row: i + 1, Column: ColDate, Value: raw, Err: err}
		}
		dates[i] = d
	}

	cols := []series.Series{
		series.New(schools, series.String, ColSchool),
		series.New(dates, series.String, ColDate),
	}

	for _, name := range []string{ColStaffNewPos, ColStuNewPos} {
		src := df.Col(name)
		vals := make([]int, n)
		for i := 0; i < n; i++ {
			raw := src.Elem(i).String()
			if src.Elem(i).IsNA() {
				raw = ""
			}
			v, err := ParseCount(raw)
			if err != nil {
				return dataframe.DataFrame{}, &ParseError{Table: CaseTable, Row: i + 1, Column: name, Value: raw, Err: err}
			}
			vals[i] = v
		}
		cols = append(cols, series.New(vals, series.Int, name))
	}

	for _, name := range []string{ColStaffOffCampus, ColStuOffCampus, ColCloseContact} {
		src := df.Col(name)
		vals := make([]*int, n)
		for i := 0; i < n; i++ {
			e := src.Elem(i)
			if isNull(e) {
				continue
			}
			v, err := ParseCount(e.String())
			if err != nil {
				return dataframe.DataFrame{}, &ParseError{Table: CaseTable, Row: i + 1, Column: name, Value: e.String(), Err: err}
			}
			vals[i] = &v
		}
		cols = append(cols, nullableInts(vals, name))
	}

	out := dataframe.New(cols...)
	if out.Err != nil {
		return out, fmt.Errorf("case table: %w", out.Err)
	}
	// 稳定排序, 同一日期保持源表顺序
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dates[order[a]] < dates[order[b]] })
	if n > 1 {
		out = out.Subset(order)
		if out.Err != nil {
			return out, fmt.Errorf("case table sort: %w", out.Err)
		}
	}
	return out, nil
}

// CleanEnrollment 拆分经纬度并转换入学人数
// 经纬度为空时保留为空值, 非数字时报错
func CleanEnrollment(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	n := df.Nrow()
	schoolCol := df.Col(ColSchool)
	latLongCol := df.Col(ColLatLong)
	enrollCol := df.Col(ColNumEnroll)

	schools := make([]string, n)
	lats := make([]*float64, n)
	longs := make([]*float64, n)
	enrolls := make([]*int, n)

	for i := 0; i < n; i++ {
		schools[i] = strings.TrimSpace(schoolCol.Elem(i).String())

		if e := latLongCol.Elem(i); !isNull(e) {
			lat, long, err := ParseLatLong(e.String())
			if err != nil {
				return dataframe.DataFrame{}, &ParseError{Table: EnrollTable, Row: i + 1, Column: ColLatLong, Value: e.String(), Err: err}
			}
			lats[i], longs[i] = &lat, &long
		}

		if e := enrollCol.Elem(i); !isNull(e) {
			v, err := ParseCount(e.String())
			if err != nil {
				return dataframe.DataFrame{}, &ParseError{Table: EnrollTable, Row: i + 1, Column: ColNumEnroll, Value: e.String(), Err: err}
			}
			enrolls[i] = &v
		}
	}

	out := dataframe.New(
		series.New(schools, series.String, ColSchool),
		nullableFloats(lats, ColLat),
		nullableFloats(longs, ColLong),
		nullableInts(enrolls, ColNumEnroll),
	)
	if out.Err != nil {
		return out, fmt.Errorf("enroll table: %w", out.Err)
	}
	return out, nil
}
