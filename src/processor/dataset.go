package processor

import (
	"MSDDashboard/src/utils"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
)

// Dataset 一次加载得到的只读数据集
// 加载阶段构造一次, 之后所有视图和渲染都基于它, 不再重新请求远程数据
type Dataset struct {
	ID         uuid.UUID
	LoadedAt   time.Time
	Source     string
	Cases      dataframe.DataFrame
	Enrollment dataframe.DataFrame
	Schools    []string

	current dataframe.DataFrame
	weekly  dataframe.DataFrame
	latest  string
}

// NewDataset 由清洗后的两张表构造数据集, 并预先计算与用户选择无关的视图
func NewDataset(source string, cases, enroll dataframe.DataFrame, schools []string) (*Dataset, error) {
	current, err := CurrentWeek(cases, enroll, schools)
	if err != nil {
		return nil, err
	}
	weekly, err := WeeklySummary(cases)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		ID:         uuid.New(),
		LoadedAt:   time.Now(),
		Source:     source,
		Cases:      cases,
		Enrollment: enroll,
		Schools:    append([]string(nil), schools...),
		current:    current,
		weekly:     weekly,
		latest:     MaxDate(cases),
	}, nil
}

// LatestDate 当前周日期, 无数据时为 ""
func (d *Dataset) LatestDate() string { return d.latest }

func (d *Dataset) CurrentWeek() dataframe.DataFrame { return d.current }

func (d *Dataset) WeeklySummary() dataframe.DataFrame { return d.weekly }

func (d *Dataset) SchoolSelection(school string) dataframe.DataFrame {
	return SchoolSelection(d.Cases, school)
}

// HasSchool 学校是否在学校列表中
func (d *Dataset) HasSchool(school string) bool {
	return utils.Contains(d.Schools, school)
}

// Reported 最新日期是否有任何学校上报了 column(非空)
func (d *Dataset) Reported(column string) bool {
	if d.latest == "" || !utils.HasColumn(d.Cases, column) {
		return false
	}
	dates := d.Cases.Col(ColDate)
	col := d.Cases.Col(column)
	for i := 0; i < d.Cases.Nrow(); i++ {
		if dates.Elem(i).String() == d.latest && !col.Elem(i).IsNA() {
			return true
		}
	}
	return false
}

// Deltas 四个顶部指标的周环比, 顺序同 KPIColumns
func (d *Dataset) Deltas() ([]Delta, error) {
	out := make([]Delta, 0, len(KPIColumns))
	for _, c := range KPIColumns {
		delta, err := WeekOverWeek(d.weekly, c)
		if err != nil {
			return nil, fmt.Errorf("delta %s: %w", c, err)
		}
		out = append(out, delta)
	}
	return out, nil
}

// Summary 用于日志的简要描述
func (d *Dataset) Summary() string {
	return fmt.Sprintf("dataset %s from %s: %d case rows, %d schools enrolled, %d weeks, latest %s",
		d.ID, d.Source, d.Cases.Nrow(), d.Enrollment.Nrow(), d.weekly.Nrow(), d.latest)
}
