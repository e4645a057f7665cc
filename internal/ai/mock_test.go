package ai

import (
	"context"
	"sync"
)

// fakeGenerator returns canned replies and records prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	model   string
	replies []string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeGenerator) Model() string { return f.model }
