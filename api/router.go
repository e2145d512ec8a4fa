package api

import (
	"net/http"

	"github.com/fyerfyer/issue-report-splitter/api/handler"
	"github.com/fyerfyer/issue-report-splitter/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(reportHandler *handler.ReportHandler) *gin.Engine {
	router := gin.New()

	// 应用全局中间件，追踪ID需要最先设置
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	// 在调试模式下记录响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		// 报告管理API
		reportGroup := api.Group("/reports")
		{
			// 上传报告 - POST /api/reports
			reportGroup.POST("", reportHandler.UploadReport)

			// 获取报告列表 - GET /api/reports
			reportGroup.GET("", reportHandler.ListReports)

			// 获取报告详情 - GET /api/reports/:id
			reportGroup.GET("/:id", reportHandler.GetReport)

			// 获取可用字段 - GET /api/reports/:id/fields
			reportGroup.GET("/:id/fields", reportHandler.GetFields)

			// 生成压缩包 - POST /api/reports/:id/archive
			reportGroup.POST("/:id/archive", reportHandler.BuildArchive)

			// 删除报告 - DELETE /api/reports/:id
			reportGroup.DELETE("/:id", reportHandler.DeleteReport)
		}

		// 下载压缩包 - GET /api/archives/:id
		api.GET("/archives/:id", reportHandler.DownloadArchive)

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Trace-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
