package v1

import (
	"github.com/amitcrm/campaign-pipeline/internal/usecase"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
)

type V1 struct {
	campaign usecase.CampaignUseCase
	logger   logger.Interface
}
