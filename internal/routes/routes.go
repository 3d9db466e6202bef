// Package routes maps the HTTP-shaped surface onto the adapter's typed
// operation table. Handlers here only translate; every decision lives in
// the adapter.
package routes

import (
	"errors"
	"io"
	"net/http"
	"strings"

	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"fleet_tracker/internal/adapter"
	"fleet_tracker/internal/connectivity"
	"fleet_tracker/internal/queue"
)

type Bridge struct {
	adapter    *adapter.Adapter
	queue      *queue.Queue
	probe      *connectivity.Probe
	drainLimit int
}

func NewBridge(a *adapter.Adapter, q *queue.Queue, p *connectivity.Probe, drainLimit int) *Bridge {
	return &Bridge{adapter: a, queue: q, probe: p, drainLimit: drainLimit}
}

// SetupRouter wires the full operation table plus the offline-queue screen
// endpoints.
func (b *Bridge) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(ginlogger.SetLogger())
	r.Use(gin.Recovery())

	r.POST("/login", b.dispatch)
	r.POST("/logout", b.logout)
	r.GET("/user", b.dispatch)

	r.GET("/trips", b.dispatch)
	r.GET("/trips/create", b.dispatch)
	r.GET("/trips/:id", b.dispatch)
	r.POST("/trips", b.dispatchWrite)
	r.PUT("/trips/:id", b.dispatchWrite)
	r.DELETE("/trips/:id", b.dispatchWrite)
	r.POST("/trips/:id/cmr", b.dispatch)
	r.POST("/driver/trips/:id/status", b.dispatch)
	r.POST("/driver/trips/:id/cmr", b.dispatch)

	r.GET("/vehicles", b.dispatch)
	r.GET("/vehicles/:id", b.dispatch)
	r.POST("/vehicles", b.dispatch)
	r.PUT("/vehicles/:id", b.dispatch)
	r.DELETE("/vehicles/:id", b.dispatch)

	r.GET("/users", b.dispatch)
	r.POST("/users", b.dispatch)
	r.PUT("/users/:id", b.dispatch)
	r.DELETE("/users/:id", b.dispatch)

	r.GET("/dashboard", b.dispatch)
	r.GET("/driver/dashboard", b.dispatch)
	r.GET("/driver/live-positions", b.dispatch)
	r.POST("/driver/update-location", b.dispatch)

	r.GET("/connectivity", b.connectivityState)

	r.GET("/offline-queue", b.queueState)
	r.POST("/offline-queue/drain", b.queueDrain)
	r.POST("/offline-queue/:id/replay", b.queueReplayOne)
	r.DELETE("/offline-queue", b.queueClear)
	r.POST("/offline-queue/dead/:id/requeue", b.queueRequeueDead)
	r.DELETE("/offline-queue/dead", b.queueClearDead)

	return r
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func (b *Bridge) parse(c *gin.Context) (adapter.Request, []byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return adapter.Request{}, nil, false
	}
	req, err := adapter.ParseRequest(c.Request.Method, c.Request.URL.Path, c.Request.URL.Query(), body)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown operation"})
		return adapter.Request{}, nil, false
	}
	req.Token = bearerToken(c)
	return req, body, true
}

// dispatch serves an operation synchronously against the store.
func (b *Bridge) dispatch(c *gin.Context) {
	req, _, okParse := b.parse(c)
	if !okParse {
		return
	}
	resp := b.adapter.Dispatch(req)
	c.JSON(resp.Status, resp.Body)
}

// dispatchWrite is the offline-aware path for trip mutations: when the
// probe reports unreachable the mutation is queued and an optimistic
// envelope is returned so the client can proceed as if it succeeded.
func (b *Bridge) dispatchWrite(c *gin.Context) {
	req, body, okParse := b.parse(c)
	if !okParse {
		return
	}

	if b.probe.Online() {
		resp := b.adapter.Dispatch(req)
		// Server-side failures get queued like offline writes; 4xx
		// envelopes are deliberate rejections and are returned as-is.
		if resp.Status < http.StatusInternalServerError {
			c.JSON(resp.Status, resp.Body)
			return
		}
		logrus.WithFields(logrus.Fields{"status": resp.Status, "path": c.Request.URL.Path}).
			Warn("live write failed, queueing mutation")
	}

	entry, err := b.queue.Enqueue(c.Request.Method, c.Request.URL.Path, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not queue mutation: " + err.Error()})
		return
	}

	// Placeholder negative id for creates; clients key their optimistic
	// rows on it until the replay lands.
	optimistic := gin.H{"queued": true, "queue_id": entry.ID}
	if req.Op == adapter.OpCreateTrip {
		optimistic["trip"] = gin.H{"id": -1, "pending": true}
	}
	c.JSON(http.StatusAccepted, optimistic)
}

// logout clears the offline queue along with the client-held token.
func (b *Bridge) logout(c *gin.Context) {
	req, _, okParse := b.parse(c)
	if !okParse {
		return
	}
	resp := b.adapter.Dispatch(req)
	if resp.Status == http.StatusOK {
		if err := b.queue.Clear(); err != nil {
			logrus.WithError(err).Error("clearing offline queue on logout")
		}
	}
	c.JSON(resp.Status, resp.Body)
}

func (b *Bridge) connectivityState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": b.probe.Online()})
}

func (b *Bridge) queueState(c *gin.Context) {
	pending := b.queue.Pending()
	dead := b.queue.DeadLetters()
	c.JSON(http.StatusOK, gin.H{
		"pending":       pending,
		"dead":          dead,
		"pending_count": len(pending),
		"dead_count":    len(dead),
	})
}

func (b *Bridge) queueDrain(c *gin.Context) {
	applied, err := b.queue.Drain(b.drainLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied, "remaining": len(b.queue.Pending())})
}

func (b *Bridge) queueReplayOne(c *gin.Context) {
	err := b.queue.ReplayOne(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "entry replayed"})
	case errors.Is(err, queue.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	}
}

func (b *Bridge) queueClear(c *gin.Context) {
	if err := b.queue.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "queue cleared"})
}

func (b *Bridge) queueRequeueDead(c *gin.Context) {
	err := b.queue.RequeueDead(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "entry requeued"})
	case errors.Is(err, queue.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (b *Bridge) queueClearDead(c *gin.Context) {
	if err := b.queue.ClearDead(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "dead letters cleared"})
}
