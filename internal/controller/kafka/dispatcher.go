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

// DispatcherHandler decodes dispatch messages and hands them to the dispatch
// use case.
type DispatcherHandler struct {
	uc usecase.DispatchUseCase
}

func NewDispatcherHandler(uc usecase.DispatchUseCase) *DispatcherHandler {
	return &DispatcherHandler{uc: uc}
}

func (h *DispatcherHandler) Handle(ctx context.Context, event kafka.Message) error {
	var msg entity.DispatchMessage
	if err := json.Unmarshal(event.Value, &msg); err != nil {
		return fmt.Errorf("DispatcherHandler - Handle - json.Unmarshal: %v: %w", err, errs.ErrInvalidPayload)
	}

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("DispatcherHandler - Handle: %w", err)
	}

	return h.uc.Dispatch(ctx, msg)
}
