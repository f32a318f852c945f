package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/atomic"
)

type mintStub struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *mintStub) GetToken(_ context.Context, _ string) (string, error) {
	s.calls.Inc()
	return s.token, s.err
}

func TestCachedPoTokenProvider(t *testing.T) {
	tests := []struct {
		name      string
		stub      *mintStub
		ttl       time.Duration
		clients   []string
		pause     time.Duration
		wantCalls int32
	}{
		{name: "cached per client, case-insensitive", stub: &mintStub{token: "pot-1"}, clients: []string{"WEB", "web"}, wantCalls: 1},
		{name: "separate clients", stub: &mintStub{token: "pot-1"}, clients: []string{"WEB", "IOS"}, wantCalls: 2},
		{name: "empty token not cached", stub: &mintStub{token: "  "}, clients: []string{"web", "web"}, wantCalls: 2},
		{name: "error not cached", stub: &mintStub{err: errors.New("mint failed")}, clients: []string{"web", "web"}, wantCalls: 2},
		{name: "expires", stub: &mintStub{token: "pot-1"}, ttl: 20 * time.Millisecond, pause: 40 * time.Millisecond, clients: []string{"web", "web"}, wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCachedPoTokenProvider(tt.stub, tt.ttl)
			for i, client := range tt.clients {
				if i > 0 && tt.pause > 0 {
					time.Sleep(tt.pause)
				}
				token, err := p.GetToken(context.Background(), client)
				if err == nil && tt.stub.err == nil && token != tt.stub.token {
					t.Fatalf("GetToken(%q) = %q, want %q", client, token, tt.stub.token)
				}
			}
			if got := tt.stub.calls.Load(); got != tt.wantCalls {
				t.Fatalf("provider calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestNewCachedPoTokenProvider_Nil(t *testing.T) {
	if p := NewCachedPoTokenProvider(nil, 0); p != nil {
		t.Fatalf("NewCachedPoTokenProvider(nil) = %v, want nil", p)
	}
}

func TestStaticPoTokenProvider(t *testing.T) {
	got, err := StaticPoTokenProvider(" tok ").GetToken(context.Background(), "android_vr")
	if err != nil || got != "tok" {
		t.Fatalf("GetToken() = %q, %v", got, err)
	}
}
