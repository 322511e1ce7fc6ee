package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/inbound-service/internal/application"
	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/api"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/middleware"
)

// ReceiptListResponse wraps a receipt list
type ReceiptListResponse struct {
	Receipts []*domain.Receipt `json:"receipts"`
	Total    int               `json:"total"`
}

func createReceiptHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.CreateReceiptCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"receipt.doc_no":    cmd.DocNo,
			"receipt.crossdock": cmd.CrossDock,
		})

		receipt, err := service.CreateReceipt(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusCreated, receipt)
	}
}

func importReceiptHandler(service *application.ImportService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		payload, err := c.GetRawData()
		if err != nil {
			responder.RespondBadRequest("unable to read request body")
			return
		}

		receipt, err := service.Import(c.Request.Context(), payload)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"receipt.id":         receipt.ID,
			"receipt.message_id": receipt.MessageID,
		})
		c.JSON(stdhttp.StatusCreated, receipt)
	}
}

func getReceiptHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		receipt, err := service.GetReceipt(c.Request.Context(), c.Param("receiptId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, receipt)
	}
}

func listReceiptsHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var query application.ListReceiptsQuery
		if appErr := api.BindQuery(c, &query); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		if query.Limit == 0 {
			query.Limit = 100
		}

		receipts, err := service.ListReceipts(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, ReceiptListResponse{Receipts: receipts, Total: len(receipts)})
	}
}

func deleteReceiptHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		if err := service.DeleteReceipt(c.Request.Context(), c.Param("receiptId")); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(stdhttp.StatusNoContent)
	}
}

func upsertLineHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.UpsertLineCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.ReceiptID = c.Param("receiptId")

		receipt, err := service.UpsertLine(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, receipt)
	}
}

func removeLineHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		receipt, err := service.RemoveLine(c.Request.Context(), c.Param("receiptId"), c.Param("lineId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, receipt)
	}
}

// receiptActionHandler serves the body-less receipt transitions
func receiptActionHandler(action func(ctx context.Context, receiptID string) (*domain.Receipt, error), logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		receipt, err := action(c.Request.Context(), c.Param("receiptId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"receipt.status": string(receipt.Status),
		})
		c.JSON(stdhttp.StatusOK, receipt)
	}
}

func startReceivingHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.StartReceiving(c.Request.Context(), c.Param("receiptId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"tasks.created": result.TasksCreated,
		})
		c.JSON(stdhttp.StatusOK, result)
	}
}

func startPlacementHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.StartPlacement(c.Request.Context(), c.Param("receiptId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"tasks.created":    result.TasksCreated,
			"putaway.failures": len(result.Failures),
		})
		c.JSON(stdhttp.StatusOK, result)
	}
}

func startShippingHandler(service *application.ReceiptWorkflow, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.StartShipping(c.Request.Context(), c.Param("receiptId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, result)
	}
}
