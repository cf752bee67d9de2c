package thoughts

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/storage"
)

func TestForkRejectsInvalidOverrides(t *testing.T) {
	// Validation happens before any storage access, so a nil db is safe here.
	svc := New(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	badVerdict := model.Verdict("definitely")
	_, err := svc.Fork(context.Background(), uuid.New(), storage.ForkOverrides{Verdict: &badVerdict})
	assert.ErrorIs(t, err, model.ErrValidation)

	badConfidence := 150
	_, err = svc.Fork(context.Background(), uuid.New(), storage.ForkOverrides{Confidence: &badConfidence})
	assert.ErrorIs(t, err, model.ErrValidation)

	emptyTitle := ""
	_, err = svc.Fork(context.Background(), uuid.New(), storage.ForkOverrides{Title: &emptyTitle})
	assert.ErrorIs(t, err, model.ErrValidation)

	longTitle := strings.Repeat("a", model.MaxTitleLen+1)
	_, err = svc.Fork(context.Background(), uuid.New(), storage.ForkOverrides{Title: &longTitle})
	assert.ErrorIs(t, err, model.ErrValidation)

	longContent := strings.Repeat("a", model.MaxContentLen+1)
	_, err = svc.Fork(context.Background(), uuid.New(), storage.ForkOverrides{Content: &longContent})
	assert.ErrorIs(t, err, model.ErrValidation)

	longReasoning := strings.Repeat("a", model.MaxReasoningLen+1)
	_, err = svc.Fork(context.Background(), uuid.New(), storage.ForkOverrides{Reasoning: &longReasoning})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestApplyBias(t *testing.T) {
	tests := []struct {
		name       string
		confidence int
		bias       float64
		want       int
	}{
		{"zero bias is identity", 70, 0, 70},
		{"negative bias lowers", 70, -0.15, 55},
		{"positive bias raises", 70, 0.10, 80},
		{"clamps at floor", 10, -0.30, 0},
		{"clamps at ceiling", 95, 0.20, 100},
		{"rounds half away from zero", 50, -0.125, 37},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyBias(tt.confidence, tt.bias))
		})
	}
}
