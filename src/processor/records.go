package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CurrentWeekRow 当前周视图的一行, 地图与导出使用
type CurrentWeekRow struct {
	School       string   `json:"school" csv:"school"`
	Date         string   `json:"date" csv:"date"`
	StaffNewPos  int      `json:"staff_newPos" csv:"staff_newPos"`
	StuNewPos    int      `json:"stu_newPos" csv:"stu_newPos"`
	TotalNewCase int      `json:"total_new_case" csv:"total_new_case"`
	Lat          *float64 `json:"lat" csv:"lat,omitempty"`
	Long         *float64 `json:"long" csv:"long,omitempty"`
	NumEnroll    *int     `json:"num_enroll" csv:"num_enroll,omitempty"`
}

// WeeklyRow 按周汇总的一行
type WeeklyRow struct {
	Date           string `json:"date" csv:"date"`
	StaffNewPos    int    `json:"staff_newPos" csv:"staff_newPos"`
	StuNewPos      int    `json:"stu_newPos" csv:"stu_newPos"`
	StaffOffCampus int    `json:"staff_offCampus" csv:"staff_offCampus"`
	StuOffCampus   int    `json:"stu_offCampus" csv:"stu_offCampus"`
	CloseContact   int    `json:"Stu_CloseContactAllowedOnCampus" csv:"Stu_CloseContactAllowedOnCampus"`
}

// SchoolRow 单个学校的一行
type SchoolRow struct {
	School         string `json:"school" csv:"school"`
	Date           string `json:"date" csv:"date"`
	StaffNewPos    int    `json:"staff_newPos" csv:"staff_newPos"`
	StuNewPos      int    `json:"stu_newPos" csv:"stu_newPos"`
	StaffOffCampus *int   `json:"staff_offCampus" csv:"staff_offCampus,omitempty"`
	StuOffCampus   *int   `json:"stu_offCampus" csv:"stu_offCampus,omitempty"`
	CloseContact   *int   `json:"Stu_CloseContactAllowedOnCampus" csv:"Stu_CloseContactAllowedOnCampus,omitempty"`
}

func intAt(s series.Series, i int) (int, error) {
	v, err := s.Elem(i).Int()
	if err != nil {
		return 0, fmt.Errorf("row %d %s: %w", i+1, s.Name, err)
	}
	return v, nil
}

func nullableIntAt(s series.Series, i int) (*int, error) {
	if s.Elem(i).IsNA() {
		return nil, nil
	}
	v, err := intAt(s, i)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nullableFloatAt(s series.Series, i int) *float64 {
	e := s.Elem(i)
	if e.IsNA() {
		return nil
	}
	v := e.Float()
	return &v
}

// CurrentWeekRows 将当前周视图转换为行
func CurrentWeekRows(df dataframe.DataFrame) ([]CurrentWeekRow, error) {
	school, date := df.Col(ColSchool), df.Col(ColDate)
	staff, stu, total := df.Col(ColStaffNewPos), df.Col(ColStuNewPos), df.Col(ColTotalNewCase)
	lat, long, enroll := df.Col(ColLat), df.Col(ColLong), df.Col(ColNumEnroll)

	rows := make([]CurrentWeekRow, df.Nrow())
	for i := range rows {
		r := CurrentWeekRow{
			School: school.Elem(i).String(),
			Date:   date.Elem(i).String(),
			Lat:    nullableFloatAt(lat, i),
			Long:   nullableFloatAt(long, i),
		}
		var err error
		if r.StaffNewPos, err = intAt(staff, i); err != nil {
			return nil, err
		}
		if r.StuNewPos, err = intAt(stu, i); err != nil {
			return nil, err
		}
		if r.TotalNewCase, err = intAt(total, i); err != nil {
			return nil, err
		}
		if r.NumEnroll, err = nullableIntAt(enroll, i); err != nil {
			return nil, err
		}
		rows[i] = r
	}
	return rows, nil
}

// WeeklyRows 将按周汇总表转换为行
func WeeklyRows(df dataframe.DataFrame) ([]WeeklyRow, error) {
	date := df.Col(ColDate)
	cols := make([]series.Series, len(NumericCaseColumns))
	for i, name := range NumericCaseColumns {
		cols[i] = df.Col(name)
	}

	rows := make([]WeeklyRow, df.Nrow())
	for i := range rows {
		vals := make([]int, len(cols))
		for j, c := range cols {
			v, err := intAt(c, i)
			if err != nil {
				return nil, err
			}
			vals[j] = v
		}
		rows[i] = WeeklyRow{
			Date:           date.Elem(i).String(),
			StaffNewPos:    vals[0],
			StuNewPos:      vals[1],
			StaffOffCampus: vals[2],
			StuOffCampus:   vals[3],
			CloseContact:   vals[4],
		}
	}
	return rows, nil
}

// SchoolRows 将单校视图转换为行
func SchoolRows(df dataframe.DataFrame) ([]SchoolRow, error) {
	school, date := df.Col(ColSchool), df.Col(ColDate)
	staff, stu := df.Col(ColStaffNewPos), df.Col(ColStuNewPos)
	staffOff, stuOff, contact := df.Col(ColStaffOffCampus), df.Col(ColStuOffCampus), df.Col(ColCloseContact)

	rows := make([]SchoolRow, df.Nrow())
	for i := range rows {
		r := SchoolRow{
			School: school.Elem(i).String(),
			Date:   date.Elem(i).String(),
		}
		var err error
		if r.StaffNewPos, err = intAt(staff, i); err != nil {
			return nil, err
		}
		if r.StuNewPos, err = intAt(stu, i); err != nil {
			return nil, err
		}
		if r.StaffOffCampus, err = nullableIntAt(staffOff, i); err != nil {
			return nil, err
		}
		if r.StuOffCampus, err = nullableIntAt(stuOff, i); err != nil {
			return nil, err
		}
		if r.CloseContact, err = nullableIntAt(contact, i); err != nil {
			return nil, err
		}
		rows[i] = r
	}
	return rows, nil
}
