// Package mocks provides test doubles for the serpapi client.
package mocks

import (
	"context"
	"encoding/json"

	mock "github.com/stretchr/testify/mock"

	serpapi "github.com/sells-group/campleads/pkg/serpapi"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, query
func (_m *MockClient) Search(ctx context.Context, query string) ([]serpapi.ResultItem, error) {
	ret := _m.Called(ctx, query)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 []serpapi.ResultItem
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]serpapi.ResultItem, error)); ok {
		return rf(ctx, query)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]serpapi.ResultItem)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// FacebookProfile provides a mock function with given fields: ctx, profileID
func (_m *MockClient) FacebookProfile(ctx context.Context, profileID string) (json.RawMessage, error) {
	ret := _m.Called(ctx, profileID)

	if len(ret) == 0 {
		panic("no return value specified for FacebookProfile")
	}

	var r0 json.RawMessage
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (json.RawMessage, error)); ok {
		return rf(ctx, profileID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(json.RawMessage)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Ping provides a mock function with given fields: ctx
func (_m *MockClient) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}

	return ret.Error(0)
}

// NewMockClient creates a new instance of MockClient and registers a cleanup
// that asserts expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
