package main

import (
	"MSDDashboard/src/datasource"
	"MSDDashboard/src/processor"
	"MSDDashboard/src/render"
	"MSDDashboard/src/utils"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	snapshotOut    string
	snapshotSchool string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "加载一次数据并将图表、指标和导出文件写入目录",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "输出目录, 默认为 export_dir")
	snapshotCmd.Flags().StringVarP(&snapshotSchool, "school", "s", "", "柱状图的学校, 默认为学校列表第一个")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, dcfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(cfg.Source.Timeout))
	defer cancel()

	t1 := time.Now()
	ds, err := datasource.Load(ctx, src, views(cfg), dcfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s, 耗时 %v\n", ds.Summary(), time.Since(t1))

	out := snapshotOut
	if out == "" {
		out = cfg.ExportDir
	}
	written, err := writeSnapshot(ds, out, snapshotSchool)
	for _, p := range written {
		fmt.Fprintln(cmd.OutOrStdout(), "已保存:", p)
	}
	return err
}

// snapshotMetrics metrics.json 的内容
type snapshotMetrics struct {
	Dataset string            `json:"dataset"`
	Source  string            `json:"source"`
	Latest  string            `json:"latest"`
	School  string            `json:"school"`
	KPIs    []render.KPI      `json:"kpis"`
	Deltas  []processor.Delta `json:"deltas"`
}

// writeSnapshot 将所有产物写入 dir, 返回已写入的文件
// 没有坐标或没有记录的图表跳过, 不视为错误
func writeSnapshot(ds *processor.Dataset, dir, school string) ([]string, error) {
	if school == "" && len(ds.Schools) > 0 {
		school = ds.Schools[0]
	}
	if !ds.HasSchool(school) {
		return nil, fmt.Errorf("unknown school %q", school)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	weekly, err := processor.WeeklyRows(ds.WeeklySummary())
	if err != nil {
		return nil, err
	}
	current, err := processor.CurrentWeekRows(ds.CurrentWeek())
	if err != nil {
		return nil, err
	}
	schoolRows, err := processor.SchoolRows(ds.SchoolSelection(school))
	if err != nil {
		return nil, err
	}
	kpis, err := render.BuildKPIs(ds)
	if err != nil {
		return nil, err
	}
	deltas, err := ds.Deltas()
	if err != nil {
		return nil, err
	}

	var written []string
	save := func(name string, write func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := write(&buf); err != nil {
			if errors.Is(err, render.ErrNoData) {
				return nil
			}
			return fmt.Errorf("%s: %w", name, err)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, buf.Bytes(), 0644); err != nil {
			return err
		}
		written = append(written, p)
		return nil
	}

	steps := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"weekly.png", func(w io.Writer) error { return render.WeeklyTrend(w, weekly) }},
		{"map.png", func(w io.Writer) error { return render.CaseMap(w, current) }},
		{"student.png", func(w io.Writer) error {
			return render.SchoolBars(w, school, schoolRows, render.StudentCases, ds.LatestDate())
		}},
		{"staff.png", func(w io.Writer) error {
			return render.SchoolBars(w, school, schoolRows, render.StaffCases, ds.LatestDate())
		}},
		{"metrics.json", func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(snapshotMetrics{
				Dataset: ds.ID.String(),
				Source:  ds.Source,
				Latest:  ds.LatestDate(),
				School:  school,
				KPIs:    kpis,
				Deltas:  deltas,
			})
		}},
	}
	for _, step := range steps {
		if err := save(step.name, step.write); err != nil {
			return written, err
		}
	}

	// 导出文件
	csvPath := filepath.Join(dir, "weekly.csv")
	if err := utils.SaveCSV(weekly, csvPath); err != nil {
		return written, fmt.Errorf("weekly.csv: %w", err)
	}
	written = append(written, csvPath)

	xlsxPath := filepath.Join(dir, "weekly.xlsx")
	if err := utils.SaveToExcel(ds.WeeklySummary(), "weekly", xlsxPath); err != nil {
		return written, fmt.Errorf("weekly.xlsx: %w", err)
	}
	written = append(written, xlsxPath)

	return written, nil
}
