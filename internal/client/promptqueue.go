package client

// Prompt identifies an outbound user message awaiting its reply.
type Prompt struct {
	ID              string
	ServerMessageID string
}

// PromptQueue pairs replies with prompts in send order. The backend answers
// prompts in order, so the head is always the prompt the next reply belongs to.
type PromptQueue struct {
	items []Prompt
}

func NewPromptQueue() *PromptQueue {
	return &PromptQueue{}
}

func (q *PromptQueue) Push(p Prompt) {
	q.items = append(q.items, p)
}

// Pop removes and returns the oldest prompt. ok is false when the queue is
// empty, in which case the reply is left uncorrelated.
func (q *PromptQueue) Pop() (p Prompt, ok bool) {
	if len(q.items) == 0 {
		return Prompt{}, false
	}
	p = q.items[0]
	q.items[0] = Prompt{}
	q.items = q.items[1:]
	return p, true
}

func (q *PromptQueue) Len() int {
	return len(q.items)
}

func (q *PromptQueue) Clear() {
	q.items = nil
}
