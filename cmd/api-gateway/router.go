package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-grouping-api/api/swagger"
	"github.com/noah-isme/sma-grouping-api/internal/handler"
	"github.com/noah-isme/sma-grouping-api/internal/middleware"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/internal/service"
	"github.com/noah-isme/sma-grouping-api/pkg/config"
	"github.com/noah-isme/sma-grouping-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grouping-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grouping-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens    middleware.TokenValidator
	audit     middleware.AuditRecorder
	metrics   *service.MetricsService
	grouping  *handler.GroupingHandler
	analytics *handler.AnalyticsHandler
	system    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.system.Health)
	r.GET("/ready", deps.system.Ready)
	r.GET("/metrics", deps.system.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.JWT(deps.tokens))
	api.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin))

	classes := api.Group("/classes/:classId")
	{
		classes.POST("/groupings", deps.grouping.Auto)
		classes.POST("/groupings/manual", deps.grouping.Manual)
		classes.POST("/groupings/ai", deps.grouping.AI)
		classes.POST("/groupings/fallback", deps.grouping.Fallback)
		classes.POST("/groupings/apply",
			middleware.Audit(deps.audit, logr, models.AuditActionApplyGrouping, models.AuditResourceStudentGroups),
			deps.grouping.Apply)
		classes.GET("/groupings/proposals/:proposalId", deps.grouping.GetProposal)
		classes.DELETE("/groupings/proposals/:proposalId",
			middleware.Audit(deps.audit, logr, models.AuditActionDiscardProposal, models.AuditResourceGroupingProposals),
			deps.grouping.DiscardProposal)

		classes.GET("/analytics/groups", deps.analytics.Groups)
		classes.GET("/analytics/groups/export", deps.analytics.Export)
		classes.GET("/analytics/students", deps.analytics.Students)
	}

	api.POST("/groupings/validate", deps.grouping.Validate)
	api.GET("/groups/:groupId/analytics/history", deps.analytics.History)
	api.GET("/system/metrics", deps.system.System)

	return r
}
