package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/controller/restapi/v1/response"
	"github.com/amitcrm/campaign-pipeline/internal/dto"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const _maxAudienceSize = 100_000

type createCampaignRequest struct {
	Name        string   `json:"name"`
	Message     string   `json:"message"`
	Intent      *string  `json:"intent"`
	RuleID      string   `json:"ruleId"`
	CustomerIDs []string `json:"customerIds"`
	TTLMillis   int64    `json:"ttlMs"`
	BatchSize   int      `json:"batchSize"`
}

func (r *V1) createCampaign(ctx *fiber.Ctx) error {
	userID, ok := requestUserID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusUnauthorized, "X-User-ID header is required")
	}

	var req createCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" {
		return errorResponse(ctx, http.StatusBadRequest, "name is required")
	}

	if req.Message == "" {
		return errorResponse(ctx, http.StatusBadRequest, "message is required")
	}

	ruleID, err := uuid.Parse(req.RuleID)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "ruleId must be a uuid")
	}

	if len(req.CustomerIDs) == 0 {
		return errorResponse(ctx, http.StatusBadRequest, "customerIds is required")
	}

	if len(req.CustomerIDs) > _maxAudienceSize {
		return errorResponse(ctx, http.StatusBadRequest, "audience is too large")
	}

	customerIDs := make([]uuid.UUID, 0, len(req.CustomerIDs))
	for _, raw := range req.CustomerIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "customerIds must be uuids")
		}
		customerIDs = append(customerIDs, id)
	}

	campaign, err := r.campaign.Create(ctx.UserContext(), dto.CreateCampaign{
		UserID:      userID,
		Name:        req.Name,
		Message:     req.Message,
		Intent:      req.Intent,
		RuleID:      ruleID,
		CustomerIDs: customerIDs,
		TTLMillis:   req.TTLMillis,
		BatchSize:   req.BatchSize,
	})
	if err != nil {
		r.logger.Error(err, "restapi - v1 - createCampaign")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	resp := response.Campaign{
		CampaignID: campaign.ID.String(),
		Name:       campaign.Name,
		Status:     string(campaign.Status),
		TotalCount: len(campaign.CustomerIDs),
		CreatedAt:  campaign.CreatedAt.Format(time.RFC3339),
	}

	return ctx.Status(http.StatusCreated).JSON(resp)
}

func (r *V1) queueCampaign(ctx *fiber.Ctx) error {
	userID, ok := requestUserID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusUnauthorized, "X-User-ID header is required")
	}

	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	campaign, err := r.campaign.Queue(ctx.UserContext(), userID, campaignID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "campaign not found")
		}
		r.logger.Error(err, "restapi - v1 - queueCampaign")

		return errorResponse(ctx, http.StatusInternalServerError, "queueing problems")
	}

	resp := response.Campaign{
		CampaignID: campaign.ID.String(),
		Name:       campaign.Name,
		Status:     string(campaign.Status),
		TotalCount: campaign.TotalCount,
	}

	return ctx.Status(http.StatusAccepted).JSON(resp)
}

func (r *V1) campaignStatus(ctx *fiber.Ctx) error {
	userID, ok := requestUserID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusUnauthorized, "X-User-ID header is required")
	}

	campaignID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	progress, err := r.campaign.Status(ctx.UserContext(), userID, campaignID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "campaign not found")
		}
		r.logger.Error(err, "restapi - v1 - campaignStatus")

		return errorResponse(ctx, http.StatusInternalServerError, "status problems")
	}

	return ctx.Status(http.StatusOK).JSON(progress)
}

// requestUserID reads the caller identity set by the gateway upstream.
func requestUserID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Get("X-User-ID"))
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
