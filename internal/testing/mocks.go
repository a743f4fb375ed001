package testing

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/provisioning/race"
)

// MockProvisioner is a mock implementation of race.Provisioner.
//
// Provision returns the error configured for the candidate. An expectation
// returning ErrHang blocks until the context is cancelled instead.
type MockProvisioner struct {
	mock.Mock
}

// ErrHang makes a Provision expectation block until cancelled.
var ErrHang = hangError{}

type hangError struct{}

func (hangError) Error() string { return "hang" }

// Provision implements race.Provisioner.
func (m *MockProvisioner) Provision(ctx context.Context, a race.Attempt, report race.ProgressFunc) error {
	args := m.Called(a.CandidateID)
	report(50)
	err := args.Error(0)
	if errors.Is(err, ErrHang) {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// Teardown implements race.Provisioner.
func (m *MockProvisioner) Teardown(_ context.Context, a race.Attempt) error {
	args := m.Called(a.CandidateID)
	return args.Error(0)
}

// ConnectOn makes id connect, every other candidate hang, and teardown
// succeed for everyone.
func (m *MockProvisioner) ConnectOn(id string) *MockProvisioner {
	m.On("Provision", id).Return(nil)
	m.On("Provision", mock.Anything).Return(ErrHang)
	m.On("Teardown", mock.Anything).Return(nil)
	return m
}

// MockCatalog is a mock implementation of offer.Catalog.
type MockCatalog struct {
	mock.Mock
}

// Offers implements offer.Catalog.
func (m *MockCatalog) Offers(_ context.Context, q offer.Query) ([]offer.Offer, error) {
	args := m.Called(q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.Offer), args.Error(1)
}
