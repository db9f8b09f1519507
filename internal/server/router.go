package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telinsights/telrun/internal/journal"
	"github.com/telinsights/telrun/internal/metrics"
	"github.com/telinsights/telrun/internal/process"
	"github.com/telinsights/telrun/internal/service"
	"github.com/telinsights/telrun/internal/supervisor"
)

// Options wires the router to its collaborators.
type Options struct {
	Supervisor  *supervisor.Supervisor
	Journal     *journal.Journal
	StopTimeout time.Duration
}

func errorResp(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

func okResp(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

// NewRouter builds the control API. All lifecycle routes act through the
// supervisor so they observe the same serialization as the console.
func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		okResp(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			okResp(c, opts.Supervisor.Status())
			return
		}
		st, err := statusOf(opts.Supervisor, name)
		if err != nil {
			errorResp(c, http.StatusNotFound, err)
			return
		}
		okResp(c, st)
	})
	api.POST("/start", func(c *gin.Context) {
		lifecycle(c, opts, func(name string) (process.Status, error) {
			return opts.Supervisor.Start(name)
		})
	})
	api.POST("/stop", func(c *gin.Context) {
		lifecycle(c, opts, func(name string) (process.Status, error) {
			return opts.Supervisor.Stop(name, opts.StopTimeout)
		})
	})
	api.POST("/restart", func(c *gin.Context) {
		lifecycle(c, opts, func(name string) (process.Status, error) {
			return opts.Supervisor.Restart(name)
		})
	})
	api.GET("/events", func(c *gin.Context) {
		if opts.Journal == nil {
			errorResp(c, http.StatusNotImplemented, errors.New("journal disabled"))
			return
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				errorResp(c, http.StatusBadRequest, errors.New("invalid limit"))
				return
			}
			limit = n
		}
		evs, err := opts.Journal.Recent(c.Request.Context(), c.Query("name"), limit)
		if err != nil {
			errorResp(c, http.StatusInternalServerError, err)
			return
		}
		okResp(c, evs)
	})
	return r
}

func lifecycle(c *gin.Context, opts Options, op func(string) (process.Status, error)) {
	name := c.Query("name")
	if name == "" {
		errorResp(c, http.StatusBadRequest, errors.New("name query parameter required"))
		return
	}
	st, err := op(name)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrUnknownService) {
			code = http.StatusNotFound
		} else if errors.Is(err, supervisor.ErrShuttingDown) {
			code = http.StatusConflict
		}
		errorResp(c, code, err)
		return
	}
	okResp(c, st)
}

func statusOf(sup *supervisor.Supervisor, name string) (process.Status, error) {
	for _, st := range sup.Status() {
		if st.Name == name {
			return st, nil
		}
	}
	return process.Status{}, service.ErrUnknownService
}
