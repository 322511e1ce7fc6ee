package http

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/inbound-service/internal/application"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

// RegisterRoutes mounts the inbound API under /api/v1
func RegisterRoutes(router gin.IRouter, svc *application.Services, logger *logging.Logger) {
	v1 := router.Group("/api/v1")

	receipts := v1.Group("/receipts")
	{
		receipts.GET("", listReceiptsHandler(svc.Receipts, logger))
		receipts.POST("", createReceiptHandler(svc.Receipts, logger))
		receipts.POST("/import", importReceiptHandler(svc.Imports, logger))
		receipts.GET("/:receiptId", getReceiptHandler(svc.Receipts, logger))
		receipts.DELETE("/:receiptId", deleteReceiptHandler(svc.Receipts, logger))
		receipts.PUT("/:receiptId/lines", upsertLineHandler(svc.Receipts, logger))
		receipts.DELETE("/:receiptId/lines/:lineId", removeLineHandler(svc.Receipts, logger))
		receipts.GET("/:receiptId/tasks", receiptTasksHandler(svc.Tasks, logger))

		receipts.POST("/:receiptId/confirm", receiptActionHandler(svc.Receipts.Confirm, logger))
		receipts.POST("/:receiptId/start-receiving", startReceivingHandler(svc.Receipts, logger))
		receipts.POST("/:receiptId/complete-receiving", receiptActionHandler(svc.Receipts.CompleteReceiving, logger))
		receipts.POST("/:receiptId/resolve", receiptActionHandler(svc.Receipts.ResolveAndContinue, logger))
		receipts.POST("/:receiptId/cancel", receiptActionHandler(svc.Receipts.Cancel, logger))
		receipts.POST("/:receiptId/start-placement", startPlacementHandler(svc.Receipts, logger))
		receipts.POST("/:receiptId/complete-placement", receiptActionHandler(svc.Receipts.CompletePlacement, logger))
		receipts.POST("/:receiptId/start-shipping", startShippingHandler(svc.Receipts, logger))
		receipts.POST("/:receiptId/complete-shipping", receiptActionHandler(svc.Receipts.CompleteShipping, logger))
	}

	tasks := v1.Group("/tasks")
	{
		tasks.GET("", listTasksHandler(svc.Tasks, logger))
		tasks.POST("", createTaskHandler(svc.Tasks, logger))
		tasks.GET("/:taskId", getTaskHandler(svc.Tasks, logger))
		tasks.POST("/:taskId/assign", assignTaskHandler(svc.Tasks, logger))
		tasks.POST("/:taskId/start", taskActionHandler(svc.Tasks.StartTask, logger))
		tasks.POST("/:taskId/complete", taskActionHandler(svc.Tasks.CompleteTask, logger))
		tasks.POST("/:taskId/cancel", taskActionHandler(svc.Tasks.CancelTask, logger))
		tasks.POST("/:taskId/release", releaseTaskHandler(svc.Tasks, logger))
		tasks.PUT("/:taskId/priority", setPriorityHandler(svc.Tasks, logger))
		tasks.POST("/:taskId/scans", recordScanHandler(svc.Scans, logger))
		tasks.GET("/:taskId/scans", listScansHandler(svc.Tasks, logger))
	}

	waves := v1.Group("/waves")
	{
		waves.GET("", listWavesHandler(svc.Waves, logger))
		waves.GET("/:outboundRef", getWaveHandler(svc.Waves, logger))
		waves.POST("/:outboundRef/start", waveActionHandler("start", svc.Waves.StartWave, logger))
		waves.POST("/:outboundRef/complete", waveActionHandler("complete", svc.Waves.CompleteWave, logger))
	}

	discrepancies := v1.Group("/discrepancies")
	{
		discrepancies.GET("", listDiscrepanciesHandler(svc.Discrepancies, logger))
		discrepancies.GET("/:discrepancyId", getDiscrepancyHandler(svc.Discrepancies, logger))
		discrepancies.POST("/:discrepancyId/resolve", resolveDiscrepancyHandler(svc.Discrepancies, logger))
	}

	locations := v1.Group("/locations")
	{
		locations.GET("", listLocationsHandler(svc.MasterData, logger))
		locations.POST("", createLocationHandler(svc.MasterData, logger))
		locations.GET("/:locationId", getLocationHandler(svc.MasterData, logger))
	}

	rules := v1.Group("/putaway-rules")
	{
		rules.GET("", listRulesHandler(svc.MasterData, logger))
		rules.POST("", createRuleHandler(svc.MasterData, logger))
		rules.GET("/:ruleId", getRuleHandler(svc.MasterData, logger))
		rules.PUT("/:ruleId", updateRuleHandler(svc.MasterData, logger))
		rules.DELETE("/:ruleId", deleteRuleHandler(svc.MasterData, logger))
	}

	skuConfigs := v1.Group("/sku-configs")
	{
		skuConfigs.GET("/:sku", getSkuConfigHandler(svc.MasterData, logger))
		skuConfigs.PUT("/:sku", upsertSkuConfigHandler(svc.MasterData, logger))
	}
}
