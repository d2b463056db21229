package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/sells-group/review-insights/pkg/oracle"
)

// scriptedOracle returns canned responses (or errors) in call order and
// records the prompts it saw. Safe for concurrent batches.
type scriptedOracle struct {
	mu      sync.Mutex
	script  []scriptStep
	prompts []string
	calls   int
}

type scriptStep struct {
	text string
	err  error
}

func (m *scriptedOracle) Complete(_ context.Context, req oracle.Request) (*oracle.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, req.Prompt)
	step := m.script[m.calls%len(m.script)]
	m.calls++

	if step.err != nil {
		return nil, step.err
	}
	return &oracle.Response{
		Text:  step.text,
		Usage: oracle.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

// promptOracle routes responses by matching a substring of the prompt,
// which lets concurrent batches get batch-specific payloads.
type promptOracle struct {
	mu       sync.Mutex
	routes   map[string]scriptStep
	fallback scriptStep
	calls    map[string]int
}

func newPromptOracle() *promptOracle {
	return &promptOracle{
		routes: make(map[string]scriptStep),
		calls:  make(map[string]int),
	}
}

func (m *promptOracle) respond(substr, text string) {
	m.routes[substr] = scriptStep{text: text}
}

func (m *promptOracle) fail(substr string, err error) {
	m.routes[substr] = scriptStep{err: err}
}

func (m *promptOracle) Complete(_ context.Context, req oracle.Request) (*oracle.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for substr, step := range m.routes {
		if substr != "" && strings.Contains(req.Prompt, substr) {
			m.calls[substr]++
			if step.err != nil {
				return nil, step.err
			}
			return &oracle.Response{Text: step.text}, nil
		}
	}
	if m.fallback.err != nil {
		return nil, m.fallback.err
	}
	return &oracle.Response{Text: m.fallback.text}, nil
}
