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

// StatusHandler decodes status snapshots and records them.
type StatusHandler struct {
	uc usecase.ProgressUseCase
}

func NewStatusHandler(uc usecase.ProgressUseCase) *StatusHandler {
	return &StatusHandler{uc: uc}
}

func (h *StatusHandler) Handle(ctx context.Context, event kafka.Message) error {
	var snapshot entity.StatusSnapshot
	if err := json.Unmarshal(event.Value, &snapshot); err != nil {
		return fmt.Errorf("StatusHandler - Handle - json.Unmarshal: %v: %w", err, errs.ErrInvalidPayload)
	}

	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("StatusHandler - Handle: %w", err)
	}

	return h.uc.Record(ctx, snapshot)
}
