package handler

import (
	"net/http"

	"esign-workers/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Agreements  *AgreementHandler
	DocuSign    *DocuSignHandler
	RateLimiter *middleware.CompanyRateLimiter
	// Ready reports whether the workers are registered. Nil means always ready.
	Ready func() bool
}

const sendRoute = "/api/v1/agreements/send"

func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if opts.Ready != nil && !opts.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if opts.Agreements != nil {
		send := []gin.HandlerFunc{}
		if opts.RateLimiter != nil {
			send = append(send, middleware.RateLimitMiddleware(opts.RateLimiter, sendRoute))
		}
		send = append(send, opts.Agreements.Send)
		v1.POST("/agreements/send", send...)
	}
	if opts.DocuSign != nil {
		ds := v1.Group("/docusign")
		ds.GET("/consent", opts.DocuSign.Consent)
		ds.GET("/envelopes", opts.DocuSign.ListEnvelopes)
		ds.GET("/account", opts.DocuSign.Account)
	}

	return router
}
