package processor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrNoWeeklyData 按周汇总表为空, 无法计算周环比
var ErrNoWeeklyData = errors.New("weekly summary has no rows")

// KPIColumns 顶部指标使用的四列, 顺序即展示顺序
var KPIColumns = []string{ColStuNewPos, ColStuOffCampus, ColStaffNewPos, ColStaffOffCampus}

// MaxDate 返回病例表中最新的日期, 空表返回 ""
func MaxDate(cases dataframe.DataFrame) string {
	latest := ""
	for _, d := range cases.Col(ColDate).Records() {
		if d > latest {
			latest = d
		}
	}
	return latest
}

// CurrentWeek 当前周视图
// 1. 取最新日期的记录
// 2. 只保留学校列表中的学校
// 3. 左连接入学表(保持病例表行序)
// 4. 计算 total_new_case = staff_newPos + stu_newPos
func CurrentWeek(cases, enroll dataframe.DataFrame, schools []string) (dataframe.DataFrame, error) {
	latest := MaxDate(cases)

	cur := cases.Filter(
		dataframe.F{Colname: ColDate, Comparator: series.Eq, Comparando: latest},
	)
	cur = cur.Filter(
		dataframe.F{Colname: ColSchool, Comparator: series.In, Comparando: append([]string{}, schools...)},
	)
	if cur.Err != nil {
		return cur, fmt.Errorf("current week filter: %w", cur.Err)
	}

	joined := cur.LeftJoin(enroll.Select([]string{ColSchool, ColLat, ColLong, ColNumEnroll}), ColSchool)
	if joined.Err != nil {
		return joined, fmt.Errorf("current week join: %w", joined.Err)
	}

	staff := joined.Col(ColStaffNewPos)
	stu := joined.Col(ColStuNewPos)
	totals := make([]int, joined.Nrow())
	for i := range totals {
		s, err := staff.Elem(i).Int()
		if err != nil {
			return joined, fmt.Errorf("current week row %d %s: %w", i+1, ColStaffNewPos, err)
		}
		u, err := stu.Elem(i).Int()
		if err != nil {
			return joined, fmt.Errorf("current week row %d %s: %w", i+1, ColStuNewPos, err)
		}
		totals[i] = s + u
	}

	joined = joined.Mutate(series.New(totals, series.Int, ColTotalNewCase))
	return joined, joined.Err
}

// WeeklySummary 按日期分组, 对所有数值列求和(跳过空值), 按日期升序
func WeeklySummary(cases dataframe.DataFrame) (dataframe.DataFrame, error) {
	dateCol := cases.Col(ColDate)

	groups := make(map[string]int)
	var dates []string
	for _, d := range dateCol.Records() {
		if _, ok := groups[d]; !ok {
			groups[d] = len(dates)
			dates = append(dates, d)
		}
	}

	sums := make(map[string][]int, len(NumericCaseColumns))
	for _, name := range NumericCaseColumns {
		col := cases.Col(name)
		acc := make([]int, len(dates))
		for i := 0; i < cases.Nrow(); i++ {
			e := col.Elem(i)
			if e.IsNA() {
				continue
			}
			v, err := e.Int()
			if err != nil {
				return dataframe.DataFrame{}, fmt.Errorf("weekly summary row %d %s: %w", i+1, name, err)
			}
			acc[groups[dateCol.Elem(i).String()]] += v
		}
		sums[name] = acc
	}

	// 源表已排序, 这里再按日期排一次以防调用方传入未排序的表
	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dates[order[a]] < dates[order[b]] })

	sortedDates := make([]string, len(dates))
	for i, g := range order {
		sortedDates[i] = dates[g]
	}
	cols := []series.Series{series.New(sortedDates, series.String, ColDate)}
	for _, name := range NumericCaseColumns {
		vals := make([]int, len(dates))
		for i, g := range order {
			vals[i] = sums[name][g]
		}
		cols = append(cols, series.New(vals, series.Int, name))
	}

	out := dataframe.New(cols...)
	return out, out.Err
}

// SchoolSelection 筛选单个学校的记录, 保持原有的日期顺序
func SchoolSelection(cases dataframe.DataFrame, school string) dataframe.DataFrame {
	return cases.Filter(
		dataframe.F{Colname: ColSchool, Comparator: series.Eq, Comparando: school},
	)
}

// Delta 周环比
type Delta struct {
	Column      string `json:"column"`
	Latest      int    `json:"latest"`
	Previous    int    `json:"previous"`
	Change      int    `json:"change"`
	HasPrevious bool   `json:"has_previous"`
}

// WeekOverWeek 使用汇总表最后两行计算 column 的最新值与变化量
// 只有一行时 HasPrevious=false, Change 为0; 没有数据时返回 ErrNoWeeklyData
func WeekOverWeek(weekly dataframe.DataFrame, column string) (Delta, error) {
	n := weekly.Nrow()
	if n == 0 {
		return Delta{Column: column}, ErrNoWeeklyData
	}

	col := weekly.Col(column)
	if col.Err != nil {
		return Delta{Column: column}, col.Err
	}

	latest, err := col.Elem(n - 1).Int()
	if err != nil {
		return Delta{Column: column}, fmt.Errorf("week over week %s: %w", column, err)
	}
	d := Delta{Column: column, Latest: latest}
	if n < 2 {
		return d, nil
	}

	prev, err := col.Elem(n - 2).Int()
	if err != nil {
		return Delta{Column: column}, fmt.Errorf("week over week %s: %w", column, err)
	}
	d.Previous = prev
	d.Change = latest - prev
	d.HasPrevious = true
	return d, nil
}
