package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/eva-followup/internal/entity"
)

type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) Save(ctx context.Context, lead *entity.Lead) (string, error) {
	args := m.Called(ctx, lead)
	return args.String(0), args.Error(1)
}

func (m *MockLeadStore) UpdateStatus(ctx context.Context, email string, status entity.FollowUpStatus, details entity.StatusDetails) error {
	args := m.Called(ctx, email, status, details)
	return args.Error(0)
}

type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) InitiateCall(ctx context.Context, input CallRequest) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendMessage(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, job entity.FollowUpJob, delay time.Duration) error {
	args := m.Called(ctx, job, delay)
	return args.Error(0)
}

func (m *MockScheduler) Name() string {
	return "mock"
}

type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
