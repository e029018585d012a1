package mocks

import (
	"context"

	"github.com/cyberguard/guardian/pkg/domain/moderation"
	"github.com/stretchr/testify/mock"
)

type Scorer struct {
	mock.Mock
}

func (m *Scorer) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *Scorer) Infer(ctx context.Context, text string) moderation.ClassifierVerdict {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).(moderation.ClassifierVerdict)
	return v
}
