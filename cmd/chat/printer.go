package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/zhouzirui/cardchat/internal/client"
	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// printer renders listener events as terminal lines. Bot records get a
// number the feedback commands refer to.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	// printed holds how much of each record's text has been written.
	printed map[string]int
	done    map[string]bool
	numbers map[int]string
	next    int
}

var _ client.Listener = (*printer)(nil)

func newPrinter(out io.Writer) *printer {
	p := &printer{out: out}
	p.reset()
	return p
}

func (p *printer) reset() {
	p.printed = make(map[string]int)
	p.done = make(map[string]bool)
	p.numbers = make(map[int]string)
	p.next = 1
}

func (p *printer) OnState(s client.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch s {
	case client.StateConnecting, client.StateReconnecting:
		fmt.Fprintf(p.out, "-- %s...\n", s)
	case client.StateOpen, client.StateDisconnected:
		fmt.Fprintf(p.out, "-- %s\n", s)
	}
}

func (p *printer) OnMessages(msgs []chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	present := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		present[m.ID] = true
	}
	for id := range p.printed {
		if !present[id] {
			p.reset()
			break
		}
	}

	for _, m := range msgs {
		if m.IsIndicator() || m.Sender == chat.SenderUser || p.done[m.ID] {
			continue
		}
		p.render(m)
	}
}

func (p *printer) render(m chat.Message) {
	written, started := p.printed[m.ID]
	if !started {
		label := "[bot]"
		if m.ID != chat.GreetingID && m.Kind != chat.KindError {
			label = fmt.Sprintf("[%d]", p.next)
			p.numbers[p.next] = m.ID
			p.next++
		}
		if m.Kind == chat.KindError {
			label = "[error]"
		}
		fmt.Fprintf(p.out, "%s ", label)
	}

	switch m.Kind {
	case chat.KindJSON:
		if !started {
			fmt.Fprint(p.out, string(m.Payload))
		}
	default:
		if written < len(m.Text) {
			fmt.Fprint(p.out, m.Text[written:])
		}
	}
	p.printed[m.ID] = len(m.Text)

	if m.Streaming {
		return
	}
	fmt.Fprintln(p.out)
	p.done[m.ID] = true

	for _, c := range m.Cards() {
		fmt.Fprintf(p.out, "    - %s (%s)\n", c.Name, c.ID)
	}
	if qs := m.Questions(); len(qs) > 0 {
		fmt.Fprintf(p.out, "    ? %s\n", strings.Join(qs, " / "))
	}
	if m.LoginRequired {
		fmt.Fprintln(p.out, "    로그인이 필요합니다. /personas 로 목록을 보고 /login <번호> 로 로그인하세요.")
	}
}

func (p *printer) OnNotice(n client.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "! %s\n", n.Text)
	if n.Fatal() {
		fmt.Fprintln(p.out, "  /reconnect 로 새 세션을 시작하거나 /back 으로 종료하세요.")
	}
}

func (p *printer) OnPersonas(opts []persona.Option) {
	p.personas(opts)
}

func (p *printer) OnFeedback(_ string, st client.FeedbackState, ok bool) {
	if !ok || st.Pending {
		return
	}
	p.line("피드백이 반영되었습니다 (" + string(st.Value) + ").")
}

func (p *printer) personas(opts []persona.Option) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "프로필 목록:")
	for i, o := range opts {
		fmt.Fprintf(p.out, "  %d. %s (%s)\n", i+1, o.Name, o.ID)
	}
}

func (p *printer) messageID(n int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.numbers[n]
	return id, ok
}

func (p *printer) sendError(err error) {
	switch {
	case errors.Is(err, client.ErrNotOpen):
		p.line("연결되어 있지 않습니다. /reconnect 로 다시 연결하세요.")
	case errors.Is(err, client.ErrStreaming):
		p.line("답변이 끝난 뒤에 입력해주세요.")
	case errors.Is(err, client.ErrEmptyMessage):
	default:
		p.line("전송에 실패했습니다: " + err.Error())
	}
}

func (p *printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *printer) help() {
	p.line("명령: /reconnect [n], /up <n>, /down <n>, /personas, /login <n>, /back, /quit")
}
