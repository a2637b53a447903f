package llm

import "context"

// MockClient is a scripted classifier for tests.
type MockClient struct {
	Response string
	Err      error
	Prompts  []string
}

var _ Client = (*MockClient)(nil)

// Complete records the prompt and returns the scripted response.
func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
