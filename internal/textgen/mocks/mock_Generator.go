// Package mocks provides test doubles for text generation.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	textgen "github.com/sells-group/gap-analysis/internal/textgen"
)

// MockGenerator is a mock type for the Generator interface.
type MockGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockGenerator) Generate(ctx context.Context, req textgen.Request) (*textgen.Response, error) {
	ret := _m.Called(ctx, req)

	var r0 *textgen.Response
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*textgen.Response)
	}
	return r0, ret.Error(1)
}

// Model provides a mock function with no fields
func (_m *MockGenerator) Model() string {
	ret := _m.Called()
	return ret.String(0)
}

// NewMockGenerator creates a new instance of MockGenerator and registers
// cleanup assertions on t.
func NewMockGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
