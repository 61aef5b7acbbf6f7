package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/canadianpizza/orderbot-core/pkg/apierr"
)

// userIDHeader carries the caller's identity for rate-limiting and
// session binding. The chat request body (spec §6.1) carries no user_id
// field, so the edge resolves one from this header rather than inventing
// an auth scheme the spec doesn't describe; a missing header falls back
// to the caller's IP, which still lets per-user rate limits degrade
// gracefully to per-IP behavior for anonymous callers.
const userIDHeader = "X-User-ID"

func (s *Server) handleChat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, string(apierr.KindValidation), "malformed request body: "+err.Error())
		return
	}

	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		userID = c.ClientIP()
	}

	req := toOrchestratorRequest(body, userID, c.ClientIP())

	result, err := s.orchestrator.Handle(c.Request.Context(), req)
	if err != nil {
		s.writeOrchestratorError(c, err)
		return
	}

	c.JSON(http.StatusOK, toChatResponse(result))
}

func (s *Server) writeOrchestratorError(c *gin.Context, err error) {
	var validationErr *apierr.ValidationError
	var rateLimitedErr *apierr.RateLimitedError
	var fatalErr *apierr.FatalError

	switch {
	case errors.As(err, &validationErr):
		jsonError(c, http.StatusBadRequest, string(apierr.KindValidation), validationErr.Error())
	case errors.As(err, &rateLimitedErr):
		retryAfter := int(rateLimitedErr.RetryAfterSeconds)
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, errorResponse{
			Success: false,
			Error:   "too many requests, please retry in " + strconv.Itoa(retryAfter) + " seconds",
			Kind:    string(apierr.KindRateLimited),
		})
	case errors.As(err, &fatalErr):
		s.logger.Error("fatal error handling chat request", "error", fatalErr)
		jsonError(c, http.StatusInternalServerError, string(apierr.KindFatal), "internal error, please try again")
	default:
		s.logger.Error("unclassified error handling chat request", "error", err)
		jsonError(c, http.StatusInternalServerError, string(apierr.KindFatal), "internal error, please try again")
	}
}

// componentStatus is one of spec §6.2's three health states.
type componentStatus string

const (
	statusOK       componentStatus = "ok"
	statusDegraded componentStatus = "degraded"
	statusDown     componentStatus = "down"
)

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := map[string]componentStatus{
		"database": s.pingStatus(ctx, s.db),
		"cache_l1": s.cacheL1Status(ctx),
		"cache_l2": s.cacheL2Status(),
		"llm":      boolStatus(s.llmConfigured),
		"vector_store": boolStatus(s.vectorConfigured),
	}

	overall := http.StatusOK
	for _, st := range components {
		if st == statusDown {
			overall = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(overall, gin.H{
		"status":     overallLabel(components),
		"components": components,
	})
}

func (s *Server) pingStatus(ctx context.Context, p pinger) componentStatus {
	if p == nil {
		return statusDown
	}
	if err := p.Ping(ctx); err != nil {
		return statusDown
	}
	return statusOK
}

func (s *Server) cacheL1Status(ctx context.Context) componentStatus {
	if s.cache == nil {
		return statusDown
	}
	if err := s.cache.PingL1(ctx); err != nil {
		return statusDown
	}
	return statusOK
}

func (s *Server) cacheL2Status() componentStatus {
	if s.cache == nil {
		return statusDown
	}
	if !s.cache.L2Enabled() {
		// L2 is optional by spec §9; its absence degrades, not fails, the
		// overall health check.
		return statusDegraded
	}
	return statusOK
}

func boolStatus(configured bool) componentStatus {
	if configured {
		return statusOK
	}
	return statusDown
}

func overallLabel(components map[string]componentStatus) string {
	worst := statusOK
	for _, st := range components {
		if st == statusDown {
			return "unhealthy"
		}
		if st == statusDegraded {
			worst = statusDegraded
		}
	}
	if worst == statusDegraded {
		return "degraded"
	}
	return "healthy"
}
