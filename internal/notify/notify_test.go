package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/musichub/internal/ratelimit"
	"github.com/deusflow/musichub/internal/rss"
	"github.com/deusflow/musichub/internal/storage"
)

type fakeFetcher struct {
	items map[string][]rss.Item
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, src rss.Source) ([]rss.Item, error) {
	if err := f.errs[src.Name]; err != nil {
		return nil, err
	}
	return f.items[src.Name], nil
}

type fakeRecipients []string

func (r fakeRecipients) ListConfirmed(ctx context.Context) ([]storage.Subscriber, error) {
	out := make([]storage.Subscriber, len(r))
	for i, a := range r {
		out[i] = storage.Subscriber{ID: int64(i + 1), Address: a, Confirmed: true}
	}
	return out, nil
}

type memLedger struct {
	mu   sync.Mutex
	sent map[string]int
}

func newMemLedger() *memLedger { return &memLedger{sent: map[string]int{}} }

func (l *memLedger) IsSent(ctx context.Context, url string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sent[url]
	return ok, nil
}

func (l *memLedger) MarkSent(ctx context.Context, url, title string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent[url] = n
	return nil
}

func (l *memLedger) Close() error { return nil }

type fakeSMS struct {
	configured bool
	fail       map[string]bool
	sent       []string // "to|body"
}

func (s *fakeSMS) Configured() bool { return s.configured }

func (s *fakeSMS) Send(ctx context.Context, to, body string) (string, error) {
	if s.fail[to] {
		return "", errors.New("undeliverable")
	}
	s.sent = append(s.sent, to+"|"+body)
	return "SM1", nil
}

type fakeAnnouncer struct{ msgs []string }

func (a *fakeAnnouncer) Configured() bool { return true }

func (a *fakeAnnouncer) SendMessage(ctx context.Context, text string, preview bool) error {
	a.msgs = append(a.msgs, text)
	return nil
}

var loudwire = rss.Source{Name: "Loudwire", URL: "https://loudwire.example/feed", Kind: rss.KindNotify}

func newTestMonitor(f FeedFetcher, subs Recipients, l storage.Ledger, sms SMSSender) *Monitor {
	return NewMonitor(f, []rss.Source{loudwire}, subs, l, sms, ratelimit.NewPacer(0), MonitorConfig{
		SiteURL:   "https://musichub.example/",
		Threshold: 0.86,
		Limit:     3,
	})
}

func TestRunOnce_SendsNewArticlesOnce(t *testing.T) {
	f := &fakeFetcher{items: map[string][]rss.Item{"Loudwire": {
		{Title: "Metallica Announce Stadium Tour", Link: "https://loudwire.example/a"},
		{Title: "Metallica announce stadium tour!", Link: "https://loudwire.example/a2"},
		{Title: "Tool Share New Single", Link: "https://loudwire.example/b"},
		{Title: "Fourth entry beyond the limit", Link: "https://loudwire.example/c"},
	}}}
	sms := &fakeSMS{configured: true}
	ledger := newMemLedger()
	m := newTestMonitor(f, fakeRecipients{"+15550000001", "+15550000002"}, ledger, sms)

	n, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("announced %d articles, want 2", n)
	}
	if len(sms.sent) != 4 {
		t.Fatalf("sent %d messages, want 4", len(sms.sent))
	}
	if ledger.sent["https://loudwire.example/a"] != 2 {
		t.Errorf("ledger recipients = %d, want 2", ledger.sent["https://loudwire.example/a"])
	}
	if _, ok := ledger.sent["https://loudwire.example/c"]; ok {
		t.Error("entry beyond the per-feed limit was announced")
	}

	n, err = m.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second run announced %d (err %v), want 0", n, err)
	}
	if len(sms.sent) != 4 {
		t.Errorf("second run sent more messages: %d", len(sms.sent))
	}
}

func TestRunOnce_SkipsLedgerEntries(t *testing.T) {
	f := &fakeFetcher{items: map[string][]rss.Item{"Loudwire": {{Title: "Old News", Link: "https://loudwire.example/old"}}}}
	ledger := newMemLedger()
	ledger.sent["https://loudwire.example/old"] = 5
	sms := &fakeSMS{configured: true}

	m := newTestMonitor(f, fakeRecipients{"+15550000001"}, ledger, sms)
	if _, err := m.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sms.sent) != 0 {
		t.Errorf("article already in ledger was sent again")
	}
}

func TestRunOnce_NotMarkedWithoutDelivery(t *testing.T) {
	f := &fakeFetcher{items: map[string][]rss.Item{"Loudwire": {{Title: "Slayer Reunite", Link: "https://loudwire.example/s"}}}}
	ledger := newMemLedger()

	dry := newTestMonitor(f, fakeRecipients{"+15550000001"}, ledger, &fakeSMS{})
	if n, err := dry.RunOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("dry run announced %d, err %v", n, err)
	}

	failing := newTestMonitor(f, fakeRecipients{"+15550000001"}, ledger, &fakeSMS{configured: true, fail: map[string]bool{"+15550000001": true}})
	if n, _ := failing.RunOnce(context.Background()); n != 0 {
		t.Errorf("failed delivery counted as announced")
	}
	if len(ledger.sent) != 0 {
		t.Errorf("ledger marked without any delivery: %v", ledger.sent)
	}
}

func TestRunOnce_TelegramCountsAsDelivery(t *testing.T) {
	f := &fakeFetcher{items: map[string][]rss.Item{"Loudwire": {{Title: "Deftones <Live>", Link: "https://loudwire.example/d"}}}}
	ledger := newMemLedger()
	ann := &fakeAnnouncer{}

	m := newTestMonitor(f, fakeRecipients{}, ledger, &fakeSMS{}).WithAnnouncer(ann)
	n, err := m.RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("announced %d, err %v", n, err)
	}
	if len(ann.msgs) != 1 || !strings.Contains(ann.msgs[0], "Deftones &lt;Live&gt;") {
		t.Errorf("unexpected telegram message %q", ann.msgs)
	}
	if ledger.sent["https://loudwire.example/d"] != 1 {
		t.Errorf("ledger = %v", ledger.sent)
	}
}

func TestRunOnce_AllFeedsFail(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{"Loudwire": errors.New("timeout")}}
	m := newTestMonitor(f, fakeRecipients{}, newMemLedger(), &fakeSMS{})
	if _, err := m.RunOnce(context.Background()); err == nil {
		t.Error("expected error when every notify feed fails")
	}
}

func TestRememberIsBounded(t *testing.T) {
	m := newTestMonitor(&fakeFetcher{}, fakeRecipients{}, newMemLedger(), &fakeSMS{})
	m.cfg.RecentMemory = 2
	m.remember("a")
	m.remember("b")
	m.remember("c")
	if m.seen("a") || !m.seen("b") || !m.seen("c") {
		t.Errorf("recent set = %v", m.recent)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	m := newTestMonitor(&fakeFetcher{}, fakeRecipients{}, newMemLedger(), &fakeSMS{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSMSBody(t *testing.T) {
	link := ArticleLink("https://musichub.example/", "https://loudwire.com/a b?x=1")
	if link != "https://musichub.example/article?url=https%3A%2F%2Floudwire.com%2Fa+b%3Fx%3D1" {
		t.Errorf("ArticleLink = %q", link)
	}

	body := SMSBody("Short", link)
	want := "🎵 New on Music Hub:\n\nShort\n\nRead more: " + link + "\n\nReply STOP to unsubscribe"
	if body != want {
		t.Errorf("SMSBody = %q", body)
	}

	long := SMSBody(strings.Repeat("x", 120), link)
	if !strings.Contains(long, strings.Repeat("x", 100)+"...\n") || strings.Contains(long, strings.Repeat("x", 101)) {
		t.Errorf("long title not truncated: %q", long)
	}
}

func TestTwilioSend(t *testing.T) {
	var form url.Values
	var user, pass, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	tw := NewTwilio("AC1", "secret", "+15550009999", srv.URL, srv.Client())
	sid, err := tw.Send(context.Background(), "+15550000001", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sid != "SM123" || path != "/2010-04-01/Accounts/AC1/Messages.json" {
		t.Errorf("sid %q path %q", sid, path)
	}
	if user != "AC1" || pass != "secret" {
		t.Errorf("basic auth %q:%q", user, pass)
	}
	if form.Get("To") != "+15550000001" || form.Get("From") != "+15550009999" || form.Get("Body") != "hello" {
		t.Errorf("form = %v", form)
	}
}

func TestTwilioSend_ClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	tw := NewTwilio("AC1", "secret", "+15550009999", srv.URL, srv.Client())
	_, err := tw.Send(context.Background(), "+1", "hello")
	if err == nil || !strings.Contains(err.Error(), "21211") {
		t.Fatalf("expected twilio error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("client error retried: %d calls", calls)
	}
}

func TestTwilioSend_NotConfigured(t *testing.T) {
	tw := NewTwilio("", "", "", "", nil)
	if _, err := tw.Send(context.Background(), "+15550000001", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestMailer(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := NewMailer("smtp.example.com", 587, "", "", "news@musichub.example", "Music Hub").
		WithSendFunc(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		})

	link := "https://musichub.example/confirm/tok"
	if err := m.SendConfirmation(context.Background(), "fan@example.com", link); err != nil {
		t.Fatalf("SendConfirmation: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "news@musichub.example" || len(gotTo) != 1 || gotTo[0] != "fan@example.com" {
		t.Errorf("addr %q from %q to %v", gotAddr, gotFrom, gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Confirm your Music Hub subscription") || !strings.Contains(msg, link) {
		t.Errorf("message = %q", msg)
	}
}

func TestMailer_NotConfigured(t *testing.T) {
	m := NewMailer("", 587, "", "", "", "Music Hub")
	if err := m.SendConfirmation(context.Background(), "fan@example.com", "l"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
