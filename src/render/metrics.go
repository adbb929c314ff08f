package render

import (
	"MSDDashboard/src/processor"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 指标颜色, 病例增加为坏消息
const (
	ColorIncrease = "#b22222"
	ColorDecrease = "#2e8b57"
	ColorFlat     = "#808080"
)

// NotAvailable 最新一周未上报时的显示值
const NotAvailable = "N/A"

var kpiLabels = map[string]string{
	processor.ColStuNewPos:      "weekly student new case",
	processor.ColStuOffCampus:   "weekly student off-campus",
	processor.ColStaffNewPos:    "weekly staff new case",
	processor.ColStaffOffCampus: "weekly staff off-campus",
}

// KPI 顶部指标卡
type KPI struct {
	Label     string `json:"label"`
	Column    string `json:"column"`
	Value     string `json:"value"`
	Delta     string `json:"delta"`
	Color     string `json:"color"`
	Available bool   `json:"available"`
	Latest    int    `json:"latest"`
	Change    int    `json:"change"`
}

var printer = message.NewPrinter(language.English)

// FormatCount 千分位格式化, 如 1,234
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatChange 带符号的变化量, 0 不带符号
func FormatChange(n int) string {
	if n > 0 {
		return "+" + FormatCount(n)
	}
	return FormatCount(n)
}

// ChangeColor 变化方向对应的颜色
func ChangeColor(change int) string {
	switch {
	case change > 0:
		return ColorIncrease
	case change < 0:
		return ColorDecrease
	}
	return ColorFlat
}

// BuildKPIs 由数据集生成四个指标, 顺序同 processor.KPIColumns
func BuildKPIs(ds *processor.Dataset) ([]KPI, error) {
	deltas, err := ds.Deltas()
	if err != nil {
		return nil, err
	}

	kpis := make([]KPI, len(deltas))
	for i, d := range deltas {
		k := KPI{
			Label:  kpiLabels[d.Column],
			Column: d.Column,
			Latest: d.Latest,
			Change: d.Change,
		}
		switch {
		case !ds.Reported(d.Column):
			k.Value, k.Delta, k.Color = NotAvailable, "n/a", ColorFlat
		case !d.HasPrevious:
			k.Available = true
			k.Value, k.Delta, k.Color = FormatCount(d.Latest), "n/a", ColorFlat
		default:
			k.Available = true
			k.Value, k.Delta, k.Color = FormatCount(d.Latest), FormatChange(d.Change), ChangeColor(d.Change)
		}
		kpis[i] = k
	}
	return kpis, nil
}
