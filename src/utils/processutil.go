package utils

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// Contains 列表中是否有 item, 学校名与列名都按原样比较
func Contains[T comparable](list []T, item T) bool {
	for i := range list {
		if list[i] == item {
			return true
		}
	}
	return false
}

// HasColumn 表头中是否有 name
func HasColumn(df dataframe.DataFrame, name string) bool {
	return df.Err == nil && Contains(df.Names(), name)
}

// cellValue 空值写为空单元格, 整数列保持整数
func cellValue(s series.Series, i int) interface{} {
	e := s.Elem(i)
	if e.IsNA() {
		return nil
	}
	switch s.Type() {
	case series.Int:
		v, err := e.Int()
		if err != nil {
			return nil
		}
		return v
	case series.Float:
		v := e.Float()
		if math.IsNaN(v) {
			return nil
		}
		return v
	case series.Bool:
		v, err := e.Bool()
		if err != nil {
			return nil
		}
		return v
	}
	return e.String()
}

// WriteExcel 将DataFrame写入工作表, 第一行为列名
func WriteExcel(df dataframe.DataFrame, sheetName string, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}
	if sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return err
		}
	}

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			val := cellValue(col, rowIdx)
			if val == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写入Excel失败: %w", err)
	}
	return nil
}

// SaveToExcel 将DataFrame保存为xlsx文件
func SaveToExcel(df dataframe.DataFrame, sheetName, filePath string) error {
	var buf bytes.Buffer
	if err := WriteExcel(df, sheetName, &buf); err != nil {
		return err
	}
	if err := writeFile(filePath, buf.Bytes()); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// WriteCSV 将带 csv 标签的行写为 CSV
func WriteCSV[T any](rows []T, w io.Writer) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SaveCSV 将行保存为 CSV 文件
func SaveCSV[T any](rows []T, filePath string) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return err
	}
	return writeFile(filePath, data)
}

func writeFile(filePath string, data []byte) error {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
