package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/logger"
)

const (
	collectorPath = "/tickprof/callgrind_upload"

	stopIntervalHeaderKey = "X-TickProf-Stop"

	defaultBackoffInterval = 5 * time.Second
	maxRetryCount          = 5
)

type Config struct {
	Schema  string
	Host    string
	Timeout time.Duration

	BackoffInterval time.Duration
	RetryCount      int

	Logger logger.Logger
}

// HTTPExporter uploads exports to a collector as multipart forms.
type HTTPExporter struct {
	logger logger.Logger

	client          *http.Client
	url             string
	backoffInterval time.Duration
	retryCount      int

	sleep func(time.Duration)
}

func NewHTTPExporter(cfg Config) *HTTPExporter {
	if cfg.Logger == nil {
		cfg.Logger = &logger.NoopLogger{}
	}
	if cfg.Schema == "" {
		cfg.Schema = "http"
	}
	if cfg.BackoffInterval <= 0 {
		cfg.BackoffInterval = defaultBackoffInterval
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if cfg.RetryCount > maxRetryCount {
		cfg.RetryCount = maxRetryCount
	}
	return &HTTPExporter{
		logger:          cfg.Logger,
		client:          &http.Client{Timeout: cfg.Timeout},
		url:             fmt.Sprintf("%s://%s/%s", cfg.Schema, cfg.Host, strings.TrimPrefix(collectorPath, "/")),
		backoffInterval: cfg.BackoffInterval,
		retryCount:      cfg.RetryCount,
		sleep:           time.Sleep,
	}
}

func NewRandID() string {
	randUUID, _ := uuid.NewRandom()
	return strings.Replace(randUUID.String(), "-", "", -1)
}

func (e *HTTPExporter) Export(ctx context.Context, name string, data []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("name", name)
	_ = writer.WriteField("upload_id", NewRandID())
	if err := writeFile(writer, "file", name, data); err != nil {
		return err
	}
	// the closing boundary is only written by Close
	if err := writer.Close(); err != nil {
		return err
	}
	payload := body.Bytes()

	var lastErr error
	for i := 0; i <= e.retryCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		succ, stopDuration, err := e.sendRequest(req)
		if succ {
			return nil
		}
		lastErr = err
		if stopDuration != 0 {
			e.logger.Info("[HTTPExporter] collector asked to stop for %s", stopDuration)
			return lastErr
		}
		if i < e.retryCount {
			e.sleep(e.backoffInterval)
		}
	}
	return lastErr
}

func writeFile(w *multipart.Writer, fieldName, fileName string, file []byte) error {
	fw, err := w.CreateFormFile(fieldName, fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, bytes.NewReader(file))
	return err
}

func (e *HTTPExporter) sendRequest(request *http.Request) (bool, time.Duration, error) {
	response, err := e.client.Do(request)
	if err != nil || response == nil {
		e.logger.Error("[HTTPExporter] send http request fail. err=%+v", err)
		return false, 0, err
	}
	defer response.Body.Close()
	_, _ = ioutil.ReadAll(response.Body)

	e.logger.Info("[HTTPExporter] http response code %d", response.StatusCode)
	stopDuration := getStopDuration(response)
	if response.StatusCode >= http.StatusBadRequest {
		return false, stopDuration, fmt.Errorf("collector responded %s", response.Status)
	}
	return true, stopDuration, nil
}

func getStopDuration(response *http.Response) time.Duration {
	stopMinuteStr := response.Header.Get(stopIntervalHeaderKey)
	if stopMinuteStr != "" {
		stopMinute, _ := strconv.ParseInt(stopMinuteStr, 10, 64)
		return time.Duration(stopMinute) * time.Minute
	}
	return 0
}
