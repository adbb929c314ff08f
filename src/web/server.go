package web

import (
	"MSDDashboard/src/config"
	"MSDDashboard/src/processor"
	"MSDDashboard/src/render"
	"MSDDashboard/src/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
)

// Reloader 手动重新加载数据
type Reloader interface {
	Reload(ctx context.Context) error
}

// Server 仪表盘 HTTP 服务
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	holder   *storage.Snapshot
	reloader Reloader
	logger   *storage.Logger
	validate *validator.Validate
	done     chan struct{}
}

// schoolQuery 学校选择参数
type schoolQuery struct {
	School string `validate:"required,school"`
}

func New(cfg *config.Config, holder *storage.Snapshot, reloader Reloader, logger *storage.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		holder:   holder,
		reloader: reloader,
		logger:   logger,
		validate: validator.New(),
		done:     make(chan struct{}),
	}
	// 学校必须在当前数据集的学校列表中
	if err := s.validate.RegisterValidation("school", s.validSchool); err != nil {
		panic(fmt.Sprintf("web: register school validation: %v", err))
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout),
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(compress.New(compress.Config{Next: isStream, Level: compress.LevelDefault}))
	s.app.Use(etag.New(etag.Config{Next: isStream}))
	s.app.Use(s.requestLog)

	s.routes()
	return s
}

func (s *Server) validSchool(fl validator.FieldLevel) bool {
	ds := s.holder.Get()
	return ds != nil && ds.HasSchool(fl.Field().String())
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/logs", s.handleLogs)

	api := s.app.Group("/api")
	api.Get("/metrics", s.handleMetrics)
	api.Get("/current-week", s.handleCurrentWeek)
	api.Get("/weekly", s.handleWeekly)
	api.Get("/schools", s.handleSchools)
	api.Get("/school", s.handleSchool)
	api.Post("/reload", s.handleReload)

	charts := s.app.Group("/charts")
	charts.Get("/weekly.png", s.handleWeeklyChart)
	charts.Get("/map.png", s.handleMapChart)
	charts.Get("/school/student.png", s.handleSchoolChart(render.StudentCases))
	charts.Get("/school/staff.png", s.handleSchoolChart(render.StaffCases))

	export := s.app.Group("/export")
	export.Get("/weekly.csv", s.handleWeeklyCSV)
	export.Get("/weekly.xlsx", s.handleWeeklyXLSX)
	export.Get("/current-week.csv", s.handleCurrentWeekCSV)
}

// App 底层 fiber 应用, 测试使用 App().Test
func (s *Server) App() *fiber.App { return s.app }

// Listen 阻塞直到服务关闭
func (s *Server) Listen() error {
	s.logger.Info("dashboard listening on " + s.cfg.Server.Addr)
	return s.app.Listen(s.cfg.Server.Addr)
}

// Shutdown 结束日志流并关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.app.ShutdownWithContext(ctx)
}

// isStream 日志流跳过压缩与 ETag
func isStream(c *fiber.Ctx) bool {
	return c.Path() == "/logs"
}

// requestLog 为每个请求分配 X-Request-ID 并记录耗时
func (s *Server) requestLog(c *fiber.Ctx) error {
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, id)
	c.Locals("reqid", id)

	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		// 错误处理器尚未写入状态码
		status = statusOf(err)
	}
	s.logger.Debug(fmt.Sprintf("[REQ] id=%s %s %s status=%d dur=%s",
		id, c.Method(), c.OriginalURL(), status, time.Since(start)))
	return err
}

// statusOf 领域错误对应的状态码
func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, render.ErrNoData), errors.Is(err, processor.ErrNoWeeklyData):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("%s %s: %v", c.Method(), c.OriginalURL(), err))
	}
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": err.Error(),
	})
}

// dataset 当前数据集, 尚未加载时返回 503
func (s *Server) dataset() (*processor.Dataset, error) {
	ds := s.holder.Get()
	if ds == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "dataset not loaded")
	}
	return ds, nil
}

// school 校验 school 参数, 不在学校列表中返回 400
func (s *Server) school(c *fiber.Ctx) (string, error) {
	q := schoolQuery{School: c.Query("school")}
	if err := s.validate.Struct(q); err != nil {
		if q.School == "" {
			return "", fiber.NewError(fiber.StatusBadRequest, "school is required")
		}
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown school %q", q.School))
	}
	return q.School, nil
}
