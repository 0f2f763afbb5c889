package app

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/telebot.v3"

	"housemanship_bot/internal/domain/auth"
	"housemanship_bot/internal/domain/subscriber"
	"housemanship_bot/internal/domain/vacancy"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// hookedLogger records entries instead of writing them.
func hookedLogger() (*logrus.Entry, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l), hook
}

func entriesAt(hook *test.Hook, level logrus.Level) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	ChatID  int64
	Text    string
	Options *telebot.SendOptions
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	fail func(chatID int64) error
}

func (f *fakeMessenger) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if f.fail != nil {
		if err := f.fail(chatID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Options: options})
	return nil
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeMessenger) countContaining(substr string) int {
	n := 0
	for _, m := range f.messages() {
		if strings.Contains(m.Text, substr) {
			n++
		}
	}
	return n
}

type fakePortal struct {
	mu          sync.Mutex
	loginCalls  int
	verifyCalls int
	verifiedOTP []string
	loginResult *auth.LoginResult
	loginErr    error
	verifyJWT   string
	verifyErr   error
}

func (f *fakePortal) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginResult, f.loginErr
}

func (f *fakePortal) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.verifiedOTP = append(f.verifiedOTP, code)
	return f.verifyJWT, f.verifyErr
}

func (f *fakePortal) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.verifyCalls
}

type fakeSource struct {
	mu      sync.Mutex
	results []vacancy.Snapshot
	errs    []error
	calls   int
	tokens  []string
}

// FetchVacancies returns the queued results in order, repeating the last one.
func (f *fakeSource) FetchVacancies(ctx context.Context, token string) (vacancy.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.tokens = append(f.tokens, token)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if len(f.results) == 0 {
		return nil, err
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], err
}

type fakeSubscriberRepo struct {
	mu      sync.Mutex
	subs    []*subscriber.Subscriber
	err     error
	queries [][]string
}

func (f *fakeSubscriberRepo) FindWatchingAny(ctx context.Context, centerNames []string) ([]*subscriber.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, append([]string(nil), centerNames...))
	if f.err != nil {
		return nil, f.err
	}
	var out []*subscriber.Subscriber
	for _, s := range f.subs {
		for _, name := range centerNames {
			if s.Watches(name) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (f *fakeSMS) SendTemplate(ctx context.Context, phoneNumber string, hospitals []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[phoneNumber] = hospitals
	return nil
}
