package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/libdns/libdns"
)

func TestManaged(t *testing.T) {
	rewrites := []Rewrite{
		{Domain: "a.example.com", Answer: "10.0.0.1"},
		{Domain: "b.example.com", Answer: "10.0.0.2"},
		{Domain: "c.example.com", Answer: "10.0.0.1"},
		{Domain: "d.example.com", Answer: "proxy.example.com"},
	}

	got := Managed(rewrites, OwnedBy("10.0.0.1"))
	want := []string{"a.example.com", "c.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Managed() = %v, want %v", got, want)
	}

	if got := Managed(rewrites, OwnedBy("192.168.0.1")); len(got) != 0 {
		t.Errorf("expected no managed domains, got %v", got)
	}
}

func TestRecordType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"192.168.1.1", "A"},
		{"2001:db8::1", "AAAA"},
		{"proxy.example.com", "CNAME"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RecordType(tt.input); got != tt.want {
				t.Errorf("RecordType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLibdnsRoundTrip(t *testing.T) {
	r := Rewrite{Domain: "a.example.com", Answer: "10.0.0.1"}
	rec, err := ToLibdns(r, time.Minute)
	if err != nil {
		t.Fatalf("ToLibdns: %v", err)
	}
	if _, ok := rec.(*libdns.Address); !ok {
		t.Fatalf("expected address record, got %T", rec)
	}
	if rec.RR().TTL != time.Minute {
		t.Errorf("ttl = %v", rec.RR().TTL)
	}
	if got := FromLibdns(rec); got != r {
		t.Errorf("FromLibdns() = %+v, want %+v", got, r)
	}

	if _, err := ToLibdns(Rewrite{Domain: "empty.example.com"}, 0); err == nil {
		t.Error("expected error for empty answer")
	}
}

func TestRetryForever(t *testing.T) {
	attempts := 0
	err := RetryForever(context.Background(), "test", time.Millisecond, func() error {
		attempts++
		if attempts <= 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestRetryForeverCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := RetryForever(ctx, "test", 5*time.Millisecond, func() error {
		return errors.New("unauthorized")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
