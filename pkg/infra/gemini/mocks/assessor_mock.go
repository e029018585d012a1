package mocks

import (
	"context"

	"github.com/cyberguard/guardian/pkg/infra/gemini"
	"github.com/stretchr/testify/mock"
)

type Assessor struct {
	mock.Mock
}

func (m *Assessor) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *Assessor) Assess(ctx context.Context, text string) (gemini.Assessment, bool) {
	args := m.Called(ctx, text)
	a, _ := args.Get(0).(gemini.Assessment)
	return a, args.Bool(1)
}
