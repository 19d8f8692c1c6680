package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventSettlementUnknown}, discard())

	if err := n.NotifySettlement(context.Background(), domain.Settlement{MarketID: 1, Status: domain.SettlementConfirmed}); err != nil {
		t.Fatal(err)
	}
	if len(s.titles) != 0 {
		t.Fatalf("confirmed event should be filtered, got %v", s.titles)
	}

	err := n.NotifySettlement(context.Background(), domain.Settlement{
		MarketID: 3, Outcome: "No", Strategy: "fallback",
		Status: domain.SettlementUnknown, TxHash: "0xdead", Err: errors.New("receipt timeout"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.titles) != 1 || s.titles[0] != "Settlement outcome unknown" {
		t.Fatalf("titles = %v", s.titles)
	}
	for _, want := range []string{"market 3", `"No"`, "fallback", "0xdead", "receipt timeout"} {
		if !strings.Contains(s.bodies[0], want) {
			t.Errorf("body %q missing %q", s.bodies[0], want)
		}
	}
}

func TestNotifierContinuesPastFailingSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyCycleError(context.Background(), errors.New("market count: rpc down"))
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("err = %v", err)
	}
	if len(good.titles) != 1 {
		t.Error("second sender should still receive the message")
	}
}

func TestSenders(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tg := NewTelegramSender("TOKEN", "42")
	tg.baseURL = srv.URL
	if err := tg.Send(context.Background(), "T", "M"); err != nil {
		t.Fatalf("telegram Send() error = %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" || gotBody["chat_id"] != "42" || gotBody["text"] != "*T*\nM" {
		t.Errorf("telegram request path=%q body=%v", gotPath, gotBody)
	}

	dc := NewDiscordSender(srv.URL + "/hook")
	if err := dc.Send(context.Background(), "T", "M"); err != nil {
		t.Fatalf("discord Send() error = %v", err)
	}
	if gotPath != "/hook" || gotBody["content"] != "**T**\nM" {
		t.Errorf("discord request path=%q body=%v", gotPath, gotBody)
	}
}

func TestSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "T", "M")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status 403", err)
	}
}
