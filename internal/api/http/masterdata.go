package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/inbound-service/internal/application"
	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/api"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/middleware"
)

// LocationListResponse wraps a location list
type LocationListResponse struct {
	Locations []*domain.Location `json:"locations"`
	Total     int                `json:"total"`
}

// RuleListResponse wraps the putaway rules in priority order
type RuleListResponse struct {
	Rules []*domain.PutawayRule `json:"rules"`
	Total int                   `json:"total"`
}

func createLocationHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.CreateLocationCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		location, err := service.CreateLocation(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusCreated, location)
	}
}

func getLocationHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		location, err := service.GetLocation(c.Request.Context(), c.Param("locationId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, location)
	}
}

func listLocationsHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var query application.ListLocationsQuery
		if appErr := api.BindQuery(c, &query); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		locations, err := service.ListLocations(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, LocationListResponse{Locations: locations, Total: len(locations)})
	}
}

func createRuleHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.PutawayRuleCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		rule, err := service.CreateRule(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusCreated, rule)
	}
}

func updateRuleHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.PutawayRuleCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.RuleID = c.Param("ruleId")

		rule, err := service.UpdateRule(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, rule)
	}
}

func getRuleHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		rule, err := service.GetRule(c.Request.Context(), c.Param("ruleId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, rule)
	}
}

func listRulesHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		rules, err := service.ListRules(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, RuleListResponse{Rules: rules, Total: len(rules)})
	}
}

func deleteRuleHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		if err := service.DeleteRule(c.Request.Context(), c.Param("ruleId")); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(stdhttp.StatusNoContent)
	}
}

func upsertSkuConfigHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.SkuConfigCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.SKU = c.Param("sku")

		cfg, err := service.UpsertSkuConfig(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, cfg)
	}
}

func getSkuConfigHandler(service *application.MasterDataService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cfg, err := service.GetSkuConfig(c.Request.Context(), c.Param("sku"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, cfg)
	}
}
