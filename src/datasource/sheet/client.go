package sheet

import (
	"MSDDashboard/src/datasource"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	errEmptyBody  = errors.New("empty response body")
	errNotTabular = errors.New("response is not a csv table")
)

// Client 通过 gviz CSV 导出接口读取在线表格
type Client struct {
	BaseURL string
	SheetID string
	HTTP    *http.Client
}

func NewClient(baseURL, sheetID string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		SheetID: sheetID,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return "sheet " + c.SheetID
}

// ViewURL 视图的 CSV 导出地址
func (c *Client) ViewURL(view string) string {
	q := url.Values{}
	q.Set("tqx", "out:csv")
	q.Set("sheet", view)
	return fmt.Sprintf("%s/%s/gviz/tq?%s", c.BaseURL, url.PathEscape(c.SheetID), q.Encode())
}

// Fetch 下载并解析一个视图, 所有列按字符串读取
func (c *Client) Fetch(ctx context.Context, view string) (dataframe.DataFrame, error) {
	fail := func(status int, err error) (dataframe.DataFrame, error) {
		return dataframe.DataFrame{}, &datasource.FetchError{Source: c.Name(), View: view, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ViewURL(view), nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "text/csv")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("读取响应失败: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fail(resp.StatusCode, errEmptyBody)
	}
	// 表格不存在或未公开时接口返回 HTML 登录页
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return fail(resp.StatusCode, errNotTabular)
	}

	df := dataframe.ReadCSV(bytes.NewReader(body),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return fail(resp.StatusCode, fmt.Errorf("%w: %v", errNotTabular, df.Err))
	}
	return df, nil
}
