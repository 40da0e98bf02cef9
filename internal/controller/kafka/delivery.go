package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/internal/usecase"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

// DeliveryHandler decodes delivery batches and hands them to the delivery
// use case.
type DeliveryHandler struct {
	uc usecase.DeliveryUseCase
}

func NewDeliveryHandler(uc usecase.DeliveryUseCase) *DeliveryHandler {
	return &DeliveryHandler{uc: uc}
}

func (h *DeliveryHandler) Handle(ctx context.Context, event kafka.Message) error {
	var batch entity.DeliveryBatch
	if err := json.Unmarshal(event.Value, &batch); err != nil {
		return fmt.Errorf("DeliveryHandler - Handle - json.Unmarshal: %v: %w", err, errs.ErrInvalidPayload)
	}

	if err := batch.Validate(); err != nil {
		return fmt.Errorf("DeliveryHandler - Handle: %w", err)
	}

	return h.uc.DeliverBatch(ctx, batch)
}
