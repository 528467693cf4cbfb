package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"chain-route.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	paymentHandler *handlers.PaymentHandler
}

func registerHealthRoute(r *gin.Engine, h *handlers.HealthHandler) {
	r.GET("/health", h.Get)
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", d.paymentHandler.Register)
			payments.GET("/:id/status", d.paymentHandler.GetStatus)
			payments.GET("/:id/deliveries", d.paymentHandler.GetDeliveries)
		}
	}
}
