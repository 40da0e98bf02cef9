package restapi

import (
	v1 "github.com/amitcrm/campaign-pipeline/internal/controller/restapi/v1"
	"github.com/amitcrm/campaign-pipeline/internal/usecase"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewRouter(app *fiber.App, campaign usecase.CampaignUseCase, l logger.Interface) {
	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewCampaignRoutes(apiV1Group, campaign, l)
	}
}
