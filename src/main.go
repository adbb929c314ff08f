package main

import (
	"MSDDashboard/src/config"
	"MSDDashboard/src/datasource"
	"MSDDashboard/src/datasource/file"
	"MSDDashboard/src/datasource/sheet"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

const (
	configFile     = "config.json"
	dataConfigFile = "dataconfig.json"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "msd",
	Short:         "Mehlville School District COVID-19 dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./config", "配置目录(config.json, dataconfig.json, .env)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, *config.DataConfig, error) {
	return config.LoadConfig(configDir, configFile, dataConfigFile)
}

// newSource 按配置选择数据源
func newSource(cfg *config.Config) (datasource.Source, error) {
	switch cfg.Source.Kind {
	case "sheet":
		return sheet.NewClient(cfg.Source.BaseURL, cfg.Source.SheetID, time.Duration(cfg.Source.Timeout)), nil
	case "file":
		return file.NewSource(cfg.Source.DataDir), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}

func views(cfg *config.Config) datasource.Views {
	return datasource.Views{Case: cfg.Source.CaseView, Enroll: cfg.Source.EnrollView}
}
