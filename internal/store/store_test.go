package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// handshakeStore is the surface shared by both backends.
type handshakeStore interface {
	Pending(ctx context.Context, conversationID string) (*PendingHandshake, error)
	Issue(ctx context.Context, p PendingHandshake) error
	Take(ctx context.Context, conversationID string) (*PendingHandshake, error)
	Clear(ctx context.Context, conversationID string) error
	SaveTicket(ctx context.Context, t Ticket) error
	Ticket(ctx context.Context, id string) (*Ticket, error)
	CheckHealth(ctx context.Context) error
}

// --- Helpers ---

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

// backends returns a constructor per backend so each subtest starts empty.
func backends() map[string]func(t *testing.T) handshakeStore {
	return map[string]func(t *testing.T) handshakeStore{
		"memory": func(t *testing.T) handshakeStore { return NewMemoryStore(10 * time.Minute) },
		"redis": func(t *testing.T) handshakeStore {
			s, _ := newMiniredisStore(t, 10*time.Minute)
			return s
		},
	}
}

func issued(conversationID, code string) PendingHandshake {
	return PendingHandshake{
		ConversationID: conversationID,
		CodeIssued:     true,
		MagicCode:      code,
		AccessToken:    "tok-" + code,
		Profile:        &oauth.Profile{ID: "u1", Provider: provider.GitHub, Username: "octocat"},
		Provider:       provider.GitHub,
		IssuedAt:       time.Now().Truncate(time.Second),
	}
}

// --- Pending / Issue / Take / Clear ---

func TestPendingHandshake(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("missing conversation is not found", func(t *testing.T) {
				s := newStore(t)
				if _, err := s.Pending(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("issue then pending round-trips every field", func(t *testing.T) {
				s := newStore(t)
				want := issued("conv-1", "a1b2c3d4")
				if err := s.Issue(ctx, want); err != nil {
					t.Fatalf("Issue failed: %v", err)
				}
				got, err := s.Pending(ctx, "conv-1")
				if err != nil {
					t.Fatalf("Pending failed: %v", err)
				}
				if !got.CodeIssued || got.MagicCode != want.MagicCode || got.AccessToken != want.AccessToken {
					t.Errorf("expected %+v, got %+v", want, got)
				}
				if got.Provider != provider.GitHub {
					t.Errorf("Provider: expected github, got %s", got.Provider)
				}
				if got.Profile == nil || got.Profile.Username != "octocat" {
					t.Errorf("Profile: got %+v", got.Profile)
				}
				if !got.IssuedAt.Equal(want.IssuedAt) {
					t.Errorf("IssuedAt: expected %v, got %v", want.IssuedAt, got.IssuedAt)
				}
			})

			t.Run("second issue overwrites the first", func(t *testing.T) {
				s := newStore(t)
				s.Issue(ctx, issued("conv-2", "11111111"))
				s.Issue(ctx, issued("conv-2", "22222222"))
				got, err := s.Pending(ctx, "conv-2")
				if err != nil {
					t.Fatalf("Pending failed: %v", err)
				}
				if got.MagicCode != "22222222" {
					t.Errorf("MagicCode: expected 22222222, got %q", got.MagicCode)
				}
			})

			t.Run("conversations are isolated", func(t *testing.T) {
				s := newStore(t)
				s.Issue(ctx, issued("conv-a", "aaaaaaaa"))
				if _, err := s.Pending(ctx, "conv-b"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound for other conversation, got %v", err)
				}
			})

			t.Run("take returns once then not found", func(t *testing.T) {
				s := newStore(t)
				s.Issue(ctx, issued("conv-3", "33333333"))
				got, err := s.Take(ctx, "conv-3")
				if err != nil {
					t.Fatalf("Take failed: %v", err)
				}
				if got.MagicCode != "33333333" {
					t.Errorf("MagicCode: expected 33333333, got %q", got.MagicCode)
				}
				if _, err := s.Take(ctx, "conv-3"); !errors.Is(err, ErrNotFound) {
					t.Errorf("second Take: expected ErrNotFound, got %v", err)
				}
			})

			t.Run("concurrent takes yield exactly one winner", func(t *testing.T) {
				s := newStore(t)
				s.Issue(ctx, issued("conv-race", "44444444"))

				var wins atomic.Int32
				var wg sync.WaitGroup
				for i := 0; i < 16; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := s.Take(ctx, "conv-race"); err == nil {
							wins.Add(1)
						}
					}()
				}
				wg.Wait()
				if wins.Load() != 1 {
					t.Errorf("expected exactly 1 successful Take, got %d", wins.Load())
				}
			})

			t.Run("issue racing take never loses a code", func(t *testing.T) {
				s := newStore(t)
				for i := 0; i < 200; i++ {
					code := fmt.Sprintf("%08x", i)
					var taken *PendingHandshake
					var wg sync.WaitGroup
					wg.Add(2)
					go func() {
						defer wg.Done()
						s.Issue(ctx, issued("conv-5", code))
					}()
					go func() {
						defer wg.Done()
						taken, _ = s.Take(ctx, "conv-5")
					}()
					wg.Wait()

					left, err := s.Pending(ctx, "conv-5")
					switch {
					case taken != nil && err == nil:
						t.Fatalf("round %d: code both taken and still pending", i)
					case taken == nil && err != nil:
						t.Fatalf("round %d: code %s vanished: %v", i, code, err)
					case taken != nil && taken.MagicCode != code:
						t.Fatalf("round %d: expected %s, got %s", i, code, taken.MagicCode)
					case left != nil && left.MagicCode != code:
						t.Fatalf("round %d: expected %s pending, got %s", i, code, left.MagicCode)
					}
					s.Clear(ctx, "conv-5")
				}
			})

			t.Run("clear removes and tolerates missing", func(t *testing.T) {
				s := newStore(t)
				s.Issue(ctx, issued("conv-4", "55555555"))
				if err := s.Clear(ctx, "conv-4"); err != nil {
					t.Fatalf("Clear failed: %v", err)
				}
				if _, err := s.Pending(ctx, "conv-4"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound after Clear, got %v", err)
				}
				if err := s.Clear(ctx, "conv-4"); err != nil {
					t.Errorf("Clear on missing record: expected nil, got %v", err)
				}
			})

			t.Run("issue without conversation id fails", func(t *testing.T) {
				s := newStore(t)
				if err := s.Issue(ctx, PendingHandshake{CodeIssued: true}); err == nil {
					t.Error("expected error for empty conversation id")
				}
			})

			t.Run("health check passes", func(t *testing.T) {
				if err := newStore(t).CheckHealth(ctx); err != nil {
					t.Errorf("CheckHealth: %v", err)
				}
			})
		})
	}
}

// --- Tickets ---

func TestTickets(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("save then load", func(t *testing.T) {
				s := newStore(t)
				tk := Ticket{ID: "tk-1", ConversationID: "conv-1", CreatedAt: time.Now()}
				if err := s.SaveTicket(ctx, tk); err != nil {
					t.Fatalf("SaveTicket failed: %v", err)
				}
				tk.Provider = provider.Google
				if err := s.SaveTicket(ctx, tk); err != nil {
					t.Fatalf("SaveTicket update failed: %v", err)
				}
				got, err := s.Ticket(ctx, "tk-1")
				if err != nil {
					t.Fatalf("Ticket failed: %v", err)
				}
				if got.ConversationID != "conv-1" || got.Provider != provider.Google {
					t.Errorf("unexpected ticket: %+v", got)
				}
			})

			t.Run("unknown ticket is not found", func(t *testing.T) {
				if _, err := newStore(t).Ticket(ctx, "nope"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("stale ticket is expired", func(t *testing.T) {
				s := newStore(t)
				s.SaveTicket(ctx, Ticket{ID: "tk-old", ConversationID: "c", CreatedAt: time.Now().Add(-TicketTTL - time.Minute)})
				if _, err := s.Ticket(ctx, "tk-old"); !errors.Is(err, ErrTicketExpired) {
					t.Errorf("expected ErrTicketExpired, got %v", err)
				}
			})
		})
	}
}

// --- Expiry ---

func TestPendingExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("redis record expires after ttl", func(t *testing.T) {
		s, mr := newMiniredisStore(t, time.Minute)
		s.Issue(ctx, issued("conv-ttl", "66666666"))
		mr.FastForward(2 * time.Minute)
		if _, err := s.Pending(ctx, "conv-ttl"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after ttl, got %v", err)
		}
	})

	t.Run("memory record expires after ttl", func(t *testing.T) {
		s := NewMemoryStore(20 * time.Millisecond)
		s.Issue(ctx, issued("conv-ttl", "77777777"))
		time.Sleep(60 * time.Millisecond)
		if _, err := s.Pending(ctx, "conv-ttl"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after ttl, got %v", err)
		}
	})

	t.Run("redis health fails when server is down", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("starting miniredis: %v", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { rdb.Close() })
		s := NewRedisStore(rdb, time.Minute)
		mr.Close()
		if err := s.CheckHealth(ctx); err == nil {
			t.Error("expected health check error after server closed")
		}
	})
}
