package web

import (
	"MSDDashboard/src/processor"
	"MSDDashboard/src/render"
	"MSDDashboard/src/utils"
	"bufio"
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleIndex(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}

	school := ""
	if c.Query("school") != "" {
		if school, err = s.school(c); err != nil {
			return err
		}
	}

	page, err := render.NewPage(s.cfg.Server.Title, ds, school)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := render.RenderPage(&buf, page); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ds := s.holder.Get()
	if ds == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "loading"})
	}
	return c.JSON(fiber.Map{
		"status":    "ok",
		"dataset":   ds.ID.String(),
		"source":    ds.Source,
		"latest":    ds.LatestDate(),
		"loaded_at": ds.LoadedAt.Format(time.RFC3339),
	})
}

// handleLogs 以分块传输持续推送日志
func (s *Server) handleLogs(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	logChan := s.logger.Subscribe()
	done := s.done
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.logger.Unsubscribe(logChan)
		for {
			select {
			case msg, ok := <-logChan:
				if !ok {
					return
				}
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				// 客户端断开时 Flush 返回错误
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	kpis, err := render.BuildKPIs(ds)
	if err != nil {
		return err
	}
	deltas, err := ds.Deltas()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"dataset": ds.ID.String(),
		"latest":  ds.LatestDate(),
		"kpis":    kpis,
		"deltas":  deltas,
	})
}

func (s *Server) handleCurrentWeek(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	rows, err := processor.CurrentWeekRows(ds.CurrentWeek())
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (s *Server) handleWeekly(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	rows, err := processor.WeeklyRows(ds.WeeklySummary())
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (s *Server) handleSchools(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	return c.JSON(ds.Schools)
}

func (s *Server) handleSchool(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	school, err := s.school(c)
	if err != nil {
		return err
	}
	rows, err := processor.SchoolRows(ds.SchoolSelection(school))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (s *Server) handleReload(c *fiber.Ctx) error {
	if err := s.reloader.Reload(c.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "reload failed: "+err.Error())
	}
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "reloaded",
		"dataset": ds.ID.String(),
		"latest":  ds.LatestDate(),
	})
}

func sendPNG(c *fiber.Ctx, buf *bytes.Buffer) error {
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}

func (s *Server) handleWeeklyChart(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	rows, err := processor.WeeklyRows(ds.WeeklySummary())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render.WeeklyTrend(&buf, rows); err != nil {
		return err
	}
	return sendPNG(c, &buf)
}

func (s *Server) handleMapChart(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	rows, err := processor.CurrentWeekRows(ds.CurrentWeek())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render.CaseMap(&buf, rows); err != nil {
		return err
	}
	return sendPNG(c, &buf)
}

func (s *Server) handleSchoolChart(p render.Population) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ds, err := s.dataset()
		if err != nil {
			return err
		}
		school, err := s.school(c)
		if err != nil {
			return err
		}
		rows, err := processor.SchoolRows(ds.SchoolSelection(school))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := render.SchoolBars(&buf, school, rows, p, ds.LatestDate()); err != nil {
			return err
		}
		return sendPNG(c, &buf)
	}
}

func attachment(c *fiber.Ctx, contentType, name string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
}

func (s *Server) handleWeeklyCSV(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	rows, err := processor.WeeklyRows(ds.WeeklySummary())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := utils.WriteCSV(rows, &buf); err != nil {
		return err
	}
	attachment(c, "text/csv; charset=utf-8", "weekly.csv")
	return c.Send(buf.Bytes())
}

func (s *Server) handleWeeklyXLSX(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := utils.WriteExcel(ds.WeeklySummary(), "weekly", &buf); err != nil {
		return err
	}
	attachment(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "weekly.xlsx")
	return c.Send(buf.Bytes())
}

func (s *Server) handleCurrentWeekCSV(c *fiber.Ctx) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	rows, err := processor.CurrentWeekRows(ds.CurrentWeek())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := utils.WriteCSV(rows, &buf); err != nil {
		return err
	}
	attachment(c, "text/csv; charset=utf-8", "current-week.csv")
	return c.Send(buf.Bytes())
}
