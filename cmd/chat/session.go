package main

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/cardchat/internal/api"
	"github.com/zhouzirui/cardchat/internal/client"
	"github.com/zhouzirui/cardchat/internal/identity"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

var errQuit = errors.New("quit")

type session struct {
	mgr     *client.Manager
	store   *identity.Store
	api     *api.Client
	printer *printer
	persona string
}

// ensure makes sure a session id exists, creating one for the chosen persona
// when none is stored.
func (s *session) ensure(ctx context.Context) error {
	if _, ok := s.store.Resolve(ctx); ok {
		return nil
	}

	personaID := s.persona
	if personaID == "" {
		personaID, _ = s.store.PersonaID(ctx)
	}
	if personaID == "" {
		opts, err := s.api.ListPersonas(ctx)
		if err != nil {
			return err
		}
		if len(opts) == 0 {
			return errors.New("backend returned no personas")
		}
		personaID = opts[0].ID
		s.printer.line("프로필 '" + opts[0].Name + "'(으)로 시작합니다.")
	}
	return s.create(ctx, personaID)
}

func (s *session) create(ctx context.Context, personaID string) error {
	id, err := s.api.CreateSession(ctx, personaID)
	if err != nil {
		return err
	}
	s.store.Persist(ctx, id)
	s.store.SetPersonaID(ctx, personaID)
	return nil
}

func (s *session) repl(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if err := s.handle(gctx, strings.TrimSpace(line)); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.mgr.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func (s *session) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := s.mgr.Send(line); err != nil {
			s.printer.sendError(err)
		}
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/back":
		_ = s.mgr.Close()
		s.store.Clear(ctx)
		s.printer.line("세션을 종료했습니다. 다음 실행 시 새 세션이 만들어집니다.")
		return errQuit
	case "/reconnect":
		s.reconnect(ctx, arg)
	case "/up", "/down":
		s.feedback(ctx, arg, cmd == "/up")
	case "/personas":
		cached := len(s.mgr.PersonaOptions()) > 0
		opts, err := s.mgr.FetchPersonas(ctx)
		if err != nil {
			return nil
		}
		if cached {
			s.printer.personas(opts)
		}
	case "/login":
		s.login(ctx, arg)
	case "/help":
		s.printer.help()
	default:
		s.printer.line("알 수 없는 명령입니다: " + cmd)
	}
	return nil
}

// reconnect re-dials the current session. When the server rejected the
// session, a new one is only created for an explicit persona: the --persona
// flag or the number given as arg.
func (s *session) reconnect(ctx context.Context, arg string) {
	if _, ok := s.store.Resolve(ctx); !ok {
		personaID, ok := s.choosePersona(ctx, arg)
		if !ok {
			return
		}
		if err := s.create(ctx, personaID); err != nil {
			s.printer.line("새 세션을 만들지 못했습니다: " + err.Error())
			return
		}
	}
	if err := s.mgr.Reconnect(ctx); err != nil && !errors.Is(err, client.ErrSuperseded) {
		s.printer.line("재연결에 실패했습니다: " + err.Error())
	}
}

func (s *session) choosePersona(ctx context.Context, arg string) (string, bool) {
	if arg == "" && s.persona != "" {
		return s.persona, true
	}
	opts, err := s.api.ListPersonas(ctx)
	if err != nil {
		s.printer.line("프로필 목록을 불러오지 못했습니다: " + err.Error())
		return "", false
	}
	choice, ok := pick(opts, atoi(arg))
	if !ok {
		s.printer.personas(opts)
		s.printer.line("세션이 만료되었습니다. 새로 시작할 프로필 번호를 입력하세요. 예: /reconnect 1")
		return "", false
	}
	return choice.ID, true
}

func (s *session) feedback(ctx context.Context, arg string, helpful bool) {
	id, ok := s.printer.messageID(atoi(arg))
	if !ok {
		s.printer.line("피드백할 메시지 번호를 입력하세요. 예: /up 2")
		return
	}
	switch err := s.mgr.SubmitFeedback(ctx, id, helpful); {
	case errors.Is(err, client.ErrNotEligible):
		s.printer.line("아직 피드백할 수 없는 메시지입니다.")
	case errors.Is(err, client.ErrUnknownMessage):
		s.printer.line("메시지를 찾을 수 없습니다.")
	}
}

func (s *session) login(ctx context.Context, arg string) {
	opts := s.mgr.PersonaOptions()
	if len(opts) == 0 {
		var err error
		if opts, err = s.mgr.FetchPersonas(ctx); err != nil {
			return
		}
	}
	choice, ok := pick(opts, atoi(arg))
	if !ok {
		s.printer.personas(opts)
		s.printer.line("로그인할 프로필 번호를 입력하세요. 예: /login 1")
		return
	}
	if err := s.mgr.Login(ctx, choice.ID); err == nil {
		s.store.SetPersonaID(ctx, choice.ID)
	}
}

func pick(opts []persona.Option, n int) (persona.Option, bool) {
	if n < 1 || n > len(opts) {
		return persona.Option{}, false
	}
	return opts[n-1], true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
