// Package gin exposes a profiler over HTTP. Every handler runs its work on the tick goroutine
// through Profiler.Do, so requests never race the instrumented code.
package gin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/pprofexport"
)

const defaultWait = 5 * time.Second

type config struct {
	wait         time.Duration
	tickDuration time.Duration
}

type Option func(*config)

// WithWait bounds how long a request waits for the next tick.
func WithWait(d time.Duration) Option {
	return func(c *config) {
		c.wait = d
	}
}

// WithTickDuration sets the nominal wall time of one tick, used as the pprof duration.
func WithTickDuration(d time.Duration) Option {
	return func(c *config) {
		c.tickDuration = d
	}
}

type handler struct {
	p   *profiler.Profiler
	cfg config
}

type sessionRequest struct {
	Type     string `json:"type" binding:"required"`
	Duration int64  `json:"duration"`
	Filter   string `json:"filter"`
}

// Register adds the profiler routes to group.
func Register(group gin.IRoutes, p *profiler.Profiler, opts ...Option) {
	if p == nil {
		panic("profiler is nil")
	}
	cfg := config{wait: defaultWait, tickDuration: time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &handler{p: p, cfg: cfg}

	group.GET("/output", h.output)
	group.GET("/callgrind", h.callgrind)
	group.GET("/pprof", h.pprof)
	group.POST("/sessions", h.startSession)
	group.POST("/restart", h.restart)
	group.DELETE("/session", h.reset)
	group.POST("/download", h.download)
}

func (h *handler) do(c *gin.Context, fn func(*profiler.Console) (interface{}, error)) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.wait)
	defer cancel()
	v, err := h.p.Do(ctx, fn)
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, profiler.ErrNoSession):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, profiler.ErrUnknownSessionType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, profiler.ErrNotProfiling):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, profiler.ErrCommandQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return nil, false
}

func (h *handler) output(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	v, ok := h.do(c, func(*profiler.Console) (interface{}, error) {
		return h.p.Output(limit), nil
	})
	if !ok {
		return
	}
	c.String(http.StatusOK, "%s", v.(string))
}

func (h *handler) callgrind(c *gin.Context) {
	v, ok := h.do(c, func(*profiler.Console) (interface{}, error) {
		data, ok := h.p.Callgrind()
		if !ok {
			return nil, profiler.ErrNoSession
		}
		return data, nil
	})
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(v.(string)))
}

func (h *handler) pprof(c *gin.Context) {
	v, ok := h.do(c, func(*profiler.Console) (interface{}, error) {
		s := h.p.Session()
		if s == nil {
			return nil, profiler.ErrNoSession
		}
		return pprofexport.Encode(s, h.p.Now(), h.cfg.tickDuration)
	})
	if !ok {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="tick.pb.gz"`)
	c.Data(http.StatusOK, "application/octet-stream", v.([]byte))
}

func (h *handler) startSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, ok := common.FromString(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown session type " + strconv.Quote(req.Type)})
		return
	}
	v, ok := h.do(c, func(console *profiler.Console) (interface{}, error) {
		if err := console.Start(st, req.Duration, req.Filter); err != nil {
			return nil, err
		}
		return h.p.Session(), nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, sessionView(v.(*common.Session)))
}

func (h *handler) restart(c *gin.Context) {
	v, ok := h.do(c, func(*profiler.Console) (interface{}, error) {
		if err := h.p.Restart(); err != nil {
			return nil, err
		}
		return h.p.Session(), nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionView(v.(*common.Session)))
}

func (h *handler) reset(c *gin.Context) {
	if _, ok := h.do(c, func(console *profiler.Console) (interface{}, error) {
		console.Reset()
		return nil, nil
	}); !ok {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) download(c *gin.Context) {
	if _, ok := h.do(c, func(console *profiler.Console) (interface{}, error) {
		if h.p.Session() == nil {
			return nil, profiler.ErrNoSession
		}
		console.DownloadCallgrind()
		return nil, nil
	}); !ok {
		return
	}
	c.Status(http.StatusAccepted)
}

func sessionView(s *common.Session) gin.H {
	return gin.H{
		"type":         s.Type.ToString(),
		"filter":       s.Filter,
		"enabled_tick": s.EnabledTick,
		"disable_tick": s.DisableTick,
	}
}
