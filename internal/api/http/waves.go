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

// WaveListResponse wraps the outbound waves
type WaveListResponse struct {
	Waves []*application.Wave `json:"waves"`
	Total int                 `json:"total"`
}

// DiscrepancyListResponse wraps a discrepancy list
type DiscrepancyListResponse struct {
	Discrepancies []*domain.Discrepancy `json:"discrepancies"`
	Total         int                   `json:"total"`
}

func listWavesHandler(service *application.ShippingWaveCoordinator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		waves, err := service.ListWaves(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, WaveListResponse{Waves: waves, Total: len(waves)})
	}
}

func getWaveHandler(service *application.ShippingWaveCoordinator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		wave, err := service.GetWave(c.Request.Context(), c.Param("outboundRef"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, wave)
	}
}

func waveActionHandler(action string, run func(ctx context.Context, outboundRef string) (*application.WaveActionResult, error), logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		ref := c.Param("outboundRef")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"wave.outbound_ref": ref,
			"wave.action":       action,
		})

		result, err := run(c.Request.Context(), ref)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, result)
	}
}

func listDiscrepanciesHandler(service *application.DiscrepancyService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var query application.ListDiscrepanciesQuery
		if appErr := api.BindQuery(c, &query); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		discrepancies, err := service.ListDiscrepancies(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, DiscrepancyListResponse{Discrepancies: discrepancies, Total: len(discrepancies)})
	}
}

func getDiscrepancyHandler(service *application.DiscrepancyService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		d, err := service.GetDiscrepancy(c.Request.Context(), c.Param("discrepancyId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, d)
	}
}

func resolveDiscrepancyHandler(service *application.DiscrepancyService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.ResolveDiscrepancyCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.DiscrepancyID = c.Param("discrepancyId")
		cmd.ResolvedBy = middleware.GetUserID(c)

		d, err := service.Resolve(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, d)
	}
}
