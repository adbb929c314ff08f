package processor

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 病例表规范列名
const (
	ColSchool         = "school"
	ColDate           = "date"
	ColStaffNewPos    = "staff_newPos"
	ColStuNewPos      = "stu_newPos"
	ColStaffOffCampus = "staff_offCampus"
	ColStuOffCampus   = "stu_offCampus"
	ColCloseContact   = "Stu_CloseContactAllowedOnCampus"
)

// 入学表规范列名
const (
	ColLatLong   = "lat_long"
	ColLat       = "lat"
	ColLong      = "long"
	ColNumEnroll = "num_enroll"
)

// ColTotalNewCase 当前周视图的计算列
const ColTotalNewCase = "total_new_case"

const (
	CaseTable   = "case"
	EnrollTable = "enroll"
)

// CaseColumns 病例表必需列, 顺序即输出顺序
var CaseColumns = []string{
	ColSchool, ColDate, ColStaffNewPos, ColStuNewPos,
	ColStaffOffCampus, ColStuOffCampus, ColCloseContact,
}

// EnrollColumns 入学表必需列
var EnrollColumns = []string{ColSchool, ColLatLong, ColNumEnroll}

// NumericCaseColumns 按周汇总时求和的列
var NumericCaseColumns = []string{
	ColStaffNewPos, ColStuNewPos, ColStaffOffCampus, ColStuOffCampus, ColCloseContact,
}

// SchemaError 表头缺少必需列
type SchemaError struct {
	Table   string
	Missing []string
	Have    []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table schema mismatch: missing columns [%s], have [%s]",
		e.Table, strings.Join(e.Missing, ", "), strings.Join(e.Have, ", "))
}

// ParseError 单元格类型转换失败, Row 从1开始(不含表头)
type ParseError struct {
	Table  string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s table row %d column %s: cannot parse %q: %v",
		e.Table, e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ColumnResolver 将规范列名映射为源表头
type ColumnResolver func(canonical string) string

// Project 按列名选取必需列并重命名为规范列名, 多余的列丢弃
// 缺列时返回 *SchemaError, 不做静默截断
func Project(df dataframe.DataFrame, table string, required []string, resolve ColumnResolver) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, fmt.Errorf("%s table: %w", table, df.Err)
	}
	if resolve == nil {
		resolve = func(c string) string { return c }
	}

	have := df.Names()
	index := make(map[string]string, len(have))
	for _, n := range have {
		index[strings.TrimSpace(n)] = n
	}

	var missing []string
	cols := make([]series.Series, 0, len(required))
	for _, canonical := range required {
		header, ok := index[resolve(canonical)]
		if !ok {
			missing = append(missing, canonical)
			continue
		}
		s := df.Col(header).Copy()
		s.Name = canonical
		cols = append(cols, s)
	}

	if len(missing) > 0 {
		return dataframe.DataFrame{}, &SchemaError{Table: table, Missing: missing, Have: have}
	}
	return dataframe.New(cols...), nil
}
