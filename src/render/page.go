package render

import (
	"MSDDashboard/src/processor"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Page 仪表盘页面数据
type Page struct {
	Title     string
	Updated   string
	DatasetID string
	KPIs      []KPI
	Schools   []string
	Selected  string
	MapRows   []processor.CurrentWeekRow
	Error     string
}

func schoolQuery(school string) template.URL {
	return template.URL("school=" + url.QueryEscape(school))
}

func deref(v interface{}) string {
	switch p := v.(type) {
	case *float64:
		if p != nil {
			return fmt.Sprintf("%.4f", *p)
		}
	case *int:
		if p != nil {
			return FormatCount(*p)
		}
	}
	return ""
}

var tpl = template.Must(
	template.New("").Funcs(template.FuncMap{
		"schoolQuery": schoolQuery,
		"deref":       deref,
		"count":       FormatCount,
	}).ParseFS(templateFS, "templates/*.gohtml"),
)

// NewPage 由数据集组装页面, school 为空时选择学校列表第一个
func NewPage(title string, ds *processor.Dataset, school string) (Page, error) {
	p := Page{
		Title:     title,
		Updated:   ds.LatestDate(),
		DatasetID: ds.ID.String(),
		Schools:   ds.Schools,
		Selected:  school,
	}
	if p.Selected == "" && len(p.Schools) > 0 {
		p.Selected = p.Schools[0]
	}

	kpis, err := BuildKPIs(ds)
	if err != nil {
		return p, err
	}
	p.KPIs = kpis

	rows, err := processor.CurrentWeekRows(ds.CurrentWeek())
	if err != nil {
		return p, err
	}
	p.MapRows = rows
	return p, nil
}

// RenderPage 输出仪表盘 HTML
func RenderPage(w io.Writer, p Page) error {
	return tpl.ExecuteTemplate(w, "dashboard.gohtml", p)
}
