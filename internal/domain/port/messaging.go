package port

import (
	"context"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.RunStatusMessage) error
}

// DLQPublisher parks a raw inbound message that will never be processed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, raw []byte, reason string) error
}
