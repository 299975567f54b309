// Package api is the HTTP surface the messaging gateway and operators call.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
	moderateuser "wallpaper-bot/internal/workers/admin/moderate-user"
	checkentitlement "wallpaper-bot/internal/workers/entitlement/check-entitlement"
	postscheduled "wallpaper-bot/internal/workers/scheduling/post-scheduled"
	deliverwallpaper "wallpaper-bot/internal/workers/wallpaper/deliver-wallpaper"
)

// ActorHeader carries the messaging-platform id of the user issuing an admin call.
const ActorHeader = "X-Actor-ID"

type Deliverer interface {
	Handle(ctx context.Context, req deliverwallpaper.Request) (*deliverwallpaper.Delivery, error)
}

type StatsReader interface {
	Statistics(ctx context.Context, userID int64) (*checkentitlement.UserStats, error)
}

type Moderator interface {
	IsOwner(userID int64) bool
	Ban(ctx context.Context, actorID, targetID int64) error
	Unban(ctx context.Context, actorID, targetID int64) error
	GrantPremium(ctx context.Context, actorID, targetID int64, days int) (*moderateuser.PremiumGrant, error)
	RevokePremium(ctx context.Context, actorID, targetID int64) error
	SetMaintenance(ctx context.Context, actorID int64, on bool) error
	RecentLogs(ctx context.Context, actorID int64, limit int) ([]models.Event, error)
	TotalUsers(ctx context.Context, actorID int64) (int, error)
}

type Scheduler interface {
	AddSchedule(ctx context.Context, sch models.Schedule) error
	RemoveSchedule(ctx context.Context, chatID int64, category string) error
	Jobs() []postscheduled.JobInfo
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Deliverer  Deliverer
	Stats      StatsReader
	Moderator  Moderator
	Scheduler  Scheduler
	Store      Pinger
	Logger     logger.Logger
	Categories []string
}

type Server struct {
	deps     Dependencies
	logger   logger.Logger
	errors   *apperrors.ErrorHandler
	engine   *gin.Engine
	readyTTL time.Duration
}

func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"component": "api"})

	s := &Server{
		deps:     deps,
		logger:   log,
		errors:   apperrors.NewErrorHandler(log),
		readyTTL: 2 * time.Second,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.GET("/categories", s.categories)
	v1.POST("/fetch", s.fetch)
	v1.GET("/users/:id/stats", s.stats)

	admin := v1.Group("/admin", s.requireOwner())
	admin.POST("/users/:id/ban", s.ban)
	admin.DELETE("/users/:id/ban", s.unban)
	admin.POST("/users/:id/premium", s.grantPremium)
	admin.DELETE("/users/:id/premium", s.revokePremium)
	admin.PUT("/maintenance", s.setMaintenance)
	admin.GET("/logs", s.logs)
	admin.GET("/stats", s.botStats)
	admin.GET("/schedules", s.listSchedules)
	admin.POST("/schedules", s.addSchedule)
	admin.DELETE("/schedules/:chatId/:category", s.removeSchedule)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request served", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) ready(c *gin.Context) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.readyTTL)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.deps.Categories})
}

// respondError logs err once and writes the outcome the gateway should render.
func (s *Server) respondError(c *gin.Context, operation string, err error) {
	outcome, msg := s.errors.Handle(operation, err)
	c.JSON(apperrors.HTTPStatus(err), gin.H{
		"error":   string(apperrors.CodeOf(err)),
		"outcome": string(outcome),
		"message": msg,
	})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewInvalidArgumentError(name + " must be a non-zero integer")
	}
	return id, nil
}

// ==========================
// Fetch and stats
// ==========================

type fetchResponse struct {
	*deliverwallpaper.Delivery
	Image []byte `json:"image,omitempty"`
}

func (s *Server) fetch(c *gin.Context) {
	var req deliverwallpaper.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "fetch", apperrors.NewInvalidArgumentError(err.Error()))
		return
	}

	d, err := s.deps.Deliverer.Handle(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "fetch", err)
		return
	}
	c.JSON(http.StatusOK, fetchResponse{Delivery: d, Image: d.Image})
}

func (s *Server) stats(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, "stats", err)
		return
	}
	st, err := s.deps.Stats.Statistics(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ==========================
// Admin
// ==========================

func (s *Server) requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := strconv.ParseInt(c.GetHeader(ActorHeader), 10, 64)
		if err != nil || !s.deps.Moderator.IsOwner(actor) {
			s.respondError(c, "admin", apperrors.NewPermissionDeniedError(actor, c.FullPath()))
			c.Abort()
			return
		}
		c.Set("actor", actor)
		c.Next()
	}
}

func actorOf(c *gin.Context) int64 {
	return c.GetInt64("actor")
}

func (s *Server) ban(c *gin.Context) {
	s.userAction(c, "ban", s.deps.Moderator.Ban)
}

func (s *Server) unban(c *gin.Context) {
	s.userAction(c, "unban", s.deps.Moderator.Unban)
}

func (s *Server) revokePremium(c *gin.Context) {
	s.userAction(c, "revoke_premium", s.deps.Moderator.RevokePremium)
}

func (s *Server) userAction(c *gin.Context, op string, fn func(ctx context.Context, actorID, targetID int64) error) {
	target, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, op, err)
		return
	}
	if err := fn(c.Request.Context(), actorOf(c), target); err != nil {
		s.respondError(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type premiumRequest struct {
	Days int `json:"days"`
}

func (s *Server) grantPremium(c *gin.Context) {
	target, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, "grant_premium", err)
		return
	}
	var req premiumRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, "grant_premium", apperrors.NewInvalidArgumentError(err.Error()))
			return
		}
	}
	grant, err := s.deps.Moderator.GrantPremium(c.Request.Context(), actorOf(c), target, req.Days)
	if err != nil {
		s.respondError(c, "grant_premium", err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) setMaintenance(c *gin.Context) {
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "maintenance", apperrors.NewInvalidArgumentError(err.Error()))
		return
	}
	if err := s.deps.Moderator.SetMaintenance(c.Request.Context(), actorOf(c), *req.Enabled); err != nil {
		s.respondError(c, "maintenance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"maintenance": *req.Enabled})
}

func (s *Server) logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := s.deps.Moderator.RecentLogs(c.Request.Context(), actorOf(c), limit)
	if err != nil {
		s.respondError(c, "logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) botStats(c *gin.Context) {
	n, err := s.deps.Moderator.TotalUsers(c.Request.Context(), actorOf(c))
	if err != nil {
		s.respondError(c, "bot_stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalUsers": n, "schedules": len(s.deps.Scheduler.Jobs())})
}

// ==========================
// Schedules
// ==========================

type scheduleRequest struct {
	ChatID   int64  `json:"chatId" binding:"required"`
	Category string `json:"category" binding:"required"`
	Interval string `json:"interval" binding:"required"`
}

func (s *Server) listSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.deps.Scheduler.Jobs()})
}

func (s *Server) addSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "add_schedule", apperrors.NewInvalidArgumentError(err.Error()))
		return
	}
	sch := models.Schedule{ChatID: req.ChatID, Category: req.Category, Interval: req.Interval}
	if err := s.deps.Scheduler.AddSchedule(c.Request.Context(), sch); err != nil {
		s.respondError(c, "add_schedule", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"jobId": sch.JobID()})
}

func (s *Server) removeSchedule(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		s.respondError(c, "remove_schedule", apperrors.NewInvalidArgumentError("chatId must be an integer"))
		return
	}
	if err := s.deps.Scheduler.RemoveSchedule(c.Request.Context(), chatID, c.Param("category")); err != nil {
		s.respondError(c, "remove_schedule", err)
		return
	}
	c.Status(http.StatusNoContent)
}
