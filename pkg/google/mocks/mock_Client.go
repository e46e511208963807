// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	google "github.com/sells-group/gap-analysis/pkg/google"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, req
func (_m *MockClient) Search(ctx context.Context, req google.SearchRequest) (*google.SearchResponse, error) {
	ret := _m.Called(ctx, req)

	var r0 *google.SearchResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.SearchResponse)
	}
	return r0, ret.Error(1)
}

// LookupEntity provides a mock function with given fields: ctx, query, language, limit
func (_m *MockClient) LookupEntity(ctx context.Context, query string, language string, limit int) (*google.EntitySearchResponse, error) {
	ret := _m.Called(ctx, query, language, limit)

	var r0 *google.EntitySearchResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.EntitySearchResponse)
	}
	return r0, ret.Error(1)
}

// AnalyzeEntities provides a mock function with given fields: ctx, text, language
func (_m *MockClient) AnalyzeEntities(ctx context.Context, text string, language string) (*google.AnalyzeEntitiesResponse, error) {
	ret := _m.Called(ctx, text, language)

	var r0 *google.AnalyzeEntitiesResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.AnalyzeEntitiesResponse)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient and registers cleanup
// assertions on t.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
