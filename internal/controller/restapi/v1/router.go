package v1

import (
	"github.com/amitcrm/campaign-pipeline/internal/usecase"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewCampaignRoutes(apiV1Group fiber.Router, campaign usecase.CampaignUseCase, l logger.Interface) {
	r := &V1{campaign: campaign, logger: l}

	{
		apiV1Group.Post("/campaigns", r.createCampaign)
		apiV1Group.Post("/campaigns/:id/queue", r.queueCampaign)
		apiV1Group.Get("/campaigns/:id/status", r.campaignStatus)
	}
}
