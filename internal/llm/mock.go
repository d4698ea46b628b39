package llm

import "context"

// Mock is a scripted Client for tests and offline use. Replies are consumed
// in order; the last one repeats once the script runs out.
type Mock struct {
	Replies []string
	Err     error

	Calls   int
	Systems []string
	History [][]Message
}

func (m *Mock) Complete(ctx context.Context, system string, history []Message) (string, Usage, error) {
	m.Calls++
	m.Systems = append(m.Systems, system)
	m.History = append(m.History, history)

	if m.Err != nil {
		return "", Usage{}, m.Err
	}

	reply := "OK."
	if len(m.Replies) > 0 {
		i := m.Calls - 1
		if i >= len(m.Replies) {
			i = len(m.Replies) - 1
		}
		reply = m.Replies[i]
	}

	usage := Usage{
		Model:        "mock",
		InputTokens:  len(system) / 4,
		OutputTokens: len(reply) / 4,
	}
	return reply, usage, nil
}
