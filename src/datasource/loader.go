package datasource

import (
	"MSDDashboard/src/config"
	"MSDDashboard/src/processor"
	"MSDDashboard/src/storage"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Source 表格数据源, view 为表格视图名("data"/"enroll")
type Source interface {
	// Name 数据源描述, 写入日志与 Dataset.Source
	Name() string

	// Fetch 获取一个视图, 所有列均为字符串类型
	Fetch(ctx context.Context, view string) (dataframe.DataFrame, error)
}

// FetchError 获取视图失败: 网络错误、非200状态码、空响应或文件不可读
type FetchError struct {
	Source string
	View   string
	Status int // HTTP 状态码, 非 HTTP 数据源为 0
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s view %q: status %d: %v", e.Source, e.View, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s view %q: %v", e.Source, e.View, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Views 两个视图的名称
type Views struct {
	Case   string
	Enroll string
}

// Load 加载阶段: 获取两张表, 按列名投影、清洗后构造 Dataset
// 任意一步失败都直接返回错误, 不重试, 不返回部分结果
func Load(ctx context.Context, src Source, views Views, dcfg *config.DataConfig) (*processor.Dataset, error) {
	rawCases, err := src.Fetch(ctx, views.Case)
	if err != nil {
		return nil, err
	}
	rawEnroll, err := src.Fetch(ctx, views.Enroll)
	if err != nil {
		return nil, err
	}

	cases, err := processor.Project(rawCases, processor.CaseTable, processor.CaseColumns, dcfg.GetCaseColumn)
	if err != nil {
		return nil, err
	}
	cases, err = processor.CleanCases(cases)
	if err != nil {
		return nil, err
	}

	enroll, err := processor.Project(rawEnroll, processor.EnrollTable, processor.EnrollColumns, dcfg.GetEnrollColumn)
	if err != nil {
		return nil, err
	}
	enroll, err = processor.CleanEnrollment(enroll)
	if err != nil {
		return nil, err
	}

	return processor.NewDataset(src.Name(), cases, enroll, dcfg.SchoolList())
}

// Reloader 串行执行加载并替换快照
type Reloader struct {
	src    Source
	views  Views
	dcfg   *config.DataConfig
	holder *storage.Snapshot
	logger *storage.Logger
	mu     sync.Mutex
}

func NewReloader(src Source, views Views, dcfg *config.DataConfig, holder *storage.Snapshot, logger *storage.Logger) *Reloader {
	return &Reloader{
		src:    src,
		views:  views,
		dcfg:   dcfg,
		holder: holder,
		logger: logger,
	}
}

// Reload 重新加载数据, 失败时保留原快照
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t1 := time.Now()
	ds, err := Load(ctx, r.src, r.views, r.dcfg)
	if err != nil {
		r.logger.Error(fmt.Sprintf("加载数据失败(%s): %v", r.src.Name(), err))
		return err
	}
	r.holder.Set(ds)
	r.logger.Info(fmt.Sprintf("%s, 耗时 %v", ds.Summary(), time.Since(t1)))
	return nil
}
