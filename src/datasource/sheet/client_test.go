package sheet

import (
	"MSDDashboard/src/datasource"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const caseCSV = `"school","date","staff_newPos","stu_newPos","staff_offCampus","stu_offCampus","Stu_CloseContactAllowedOnCampus"
"Oakville High","1/4/2021","1","3","2","5",""
"Bierbaum Elementary","1/4/2021","0","2","","1","4"
`

func TestViewURL(t *testing.T) {
	c := NewClient("https://docs.google.com/spreadsheets/d/", "abc123", time.Second)
	assert.Equal(t,
		"https://docs.google.com/spreadsheets/d/abc123/gviz/tq?sheet=data&tqx=out%3Acsv",
		c.ViewURL("data"))
}

func TestFetch(t *testing.T) {
	var gotPath, gotView string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotView = r.URL.Query().Get("sheet")
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(caseCSV))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sheet-1", time.Second)
	df, err := c.Fetch(context.Background(), "data")
	require.NoError(t, err)

	assert.Equal(t, "/sheet-1/gviz/tq", gotPath)
	assert.Equal(t, "data", gotView)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, 7, df.Ncol())
	assert.Equal(t, "1/4/2021", df.Col("date").Elem(0).String())
	assert.Equal(t, "Bierbaum Elementary", df.Col("school").Elem(1).String())
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ctype  string
		body   string
	}{
		{"not found", http.StatusNotFound, "text/plain", "missing"},
		{"server error", http.StatusInternalServerError, "text/plain", "boom"},
		{"empty body", http.StatusOK, "text/csv", "  \n"},
		{"html login page", http.StatusOK, "text/html; charset=utf-8", "<html><body>sign in</body></html>"},
		{"header only", http.StatusOK, "text/csv", "\"school\",\"date\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "x", time.Second).Fetch(context.Background(), "enroll")
			require.Error(t, err)

			var fe *datasource.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "enroll", fe.View)
			assert.Equal(t, tt.status, fe.Status)
		})
	}
}

func TestFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, "x", time.Second).Fetch(ctx, "data")

	var fe *datasource.FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, context.Canceled)
}
