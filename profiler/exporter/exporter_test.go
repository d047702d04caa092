package exporter

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := NewDirExporter(dir)
	require.NoError(t, e.Export(context.Background(), "callgrind.shard0.42", []byte("events: ns\n")))

	b, err := ioutil.ReadFile(filepath.Join(dir, "callgrind.shard0.42"))
	require.NoError(t, err)
	assert.Equal(t, "events: ns\n", string(b))

	files, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestHTTPExporterUpload(t *testing.T) {
	var got struct {
		name, uploadID, file string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickprof/callgrind_upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		got.name = r.FormValue("name")
		got.uploadID = r.FormValue("upload_id")
		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		b, _ := ioutil.ReadAll(f)
		got.file = string(b)
	}))
	defer srv.Close()

	e := NewHTTPExporter(Config{Host: srv.Listener.Addr().String(), Timeout: time.Second})
	require.NoError(t, e.Export(context.Background(), "callgrind.local.7", []byte("summary: 1\n")))
	assert.Equal(t, "callgrind.local.7", got.name)
	assert.Len(t, got.uploadID, 32)
	assert.Equal(t, "summary: 1\n", got.file)
}

func TestHTTPExporterRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	e := NewHTTPExporter(Config{Host: srv.Listener.Addr().String(), Timeout: time.Second, RetryCount: 3})
	var slept int
	e.sleep = func(time.Duration) { slept++ }
	require.NoError(t, e.Export(context.Background(), "x", []byte("y")))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, 2, slept)
}

func TestHTTPExporterStopHeader(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set(stopIntervalHeaderKey, "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewHTTPExporter(Config{Host: srv.Listener.Addr().String(), Timeout: time.Second, RetryCount: 5})
	e.sleep = func(time.Duration) { t.Fatal("must not back off after a stop header") }
	assert.Error(t, e.Export(context.Background(), "x", []byte("y")))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
