package main

import (
	"MSDDashboard/src/config"
	"MSDDashboard/src/datasource"
	"MSDDashboard/src/datasource/file"
	"MSDDashboard/src/storage"
	"MSDDashboard/src/web"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "加载数据并启动仪表盘服务",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, dcfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.SetMirror(os.Stdout)

	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	holder := &storage.Snapshot{}
	reloader := datasource.NewReloader(src, views(cfg), dcfg, holder, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 首次加载失败直接退出
	if err := reloader.Reload(ctx); err != nil {
		logger.Fatal("首次加载数据失败: " + err.Error())
		return err
	}

	c, err := newScheduler(cfg, logger, reloader)
	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return err
	}
	c.Start()
	defer c.Stop()

	if cfg.Source.Kind == "file" && cfg.Source.Watch {
		if err := watchFiles(ctx, cfg, logger, reloader); err != nil {
			logger.Error("文件监控启动失败: " + err.Error())
			return err
		}
	}

	server := web.New(cfg, holder, reloader, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen() }()

	return waitForShutdown(ctx, server, logger, reloader, errCh)
}

// newScheduler 定时重新加载数据并检查日志轮转
func newScheduler(cfg *config.Config, logger *storage.Logger, reloader *datasource.Reloader) (*cron.Cron, error) {
	c := cron.New()

	if interval := time.Duration(cfg.Source.ReloadInterval); interval > 0 {
		cronSpec := fmt.Sprintf("@every %s", interval)
		err := c.AddFunc(cronSpec, func() {
			logger.Info(fmt.Sprintf("开始定时加载(间隔: %v)...", interval))
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(cfg.Source.Timeout))
			defer cancel()
			// 失败时保留原数据集, 错误已记录
			_ = reloader.Reload(ctx)
		})
		if err != nil {
			return nil, err
		}
	}

	err := c.AddFunc("@every 1m", func() {
		if err := logger.CheckRotate(cfg); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
	})
	return c, err
}

// watchFiles 本地数据文件变化时重新加载
func watchFiles(ctx context.Context, cfg *config.Config, logger *storage.Logger, reloader *datasource.Reloader) error {
	monitor, err := file.NewFileMonitor(cfg.Source.DataDir, cfg.Source.CaseView, cfg.Source.EnrollView)
	if err != nil {
		return err
	}

	go func() {
		defer monitor.Close()
		err := monitor.Watch(ctx, func(name string) {
			logger.Info("数据文件已更新: " + name)
			_ = reloader.Reload(ctx)
		})
		if err != nil {
			logger.Error("File monitoring error: " + err.Error())
		}
	}()
	logger.Info("监控数据目录: " + cfg.Source.DataDir)
	return nil
}

// waitForShutdown SIGHUP 重新打开日志并重新加载, SIGINT/SIGTERM 关闭服务
func waitForShutdown(ctx context.Context, server *web.Server, logger *storage.Logger, reloader *datasource.Reloader, errCh <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error: " + err.Error())
			}
			return err
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info("Received SIGHUP, reopening log and reloading data...")
				if err := logger.Reopen(""); err != nil {
					logger.Error("Failed to reopen log: " + err.Error())
				}
				go func() { _ = reloader.Reload(ctx) }()
				continue
			}

			logger.Info("Received signal: " + sig.String() + ", shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := server.Shutdown(shutdownCtx)
			cancel()
			return err
		}
	}
}
