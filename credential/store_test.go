package credential

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func backends(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore(nil) },
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "creds.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			return s
		},
	}
}

func TestStore_Contract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			ctx := context.Background()

			if _, err := s.Get(ctx, "access"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, "access", "tok-1"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set(ctx, "access", "tok-2"); err != nil {
				t.Fatalf("Set(overwrite) error = %v", err)
			}
			if err := s.Set(ctx, "refresh", "ref-1"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			if got, err := s.Get(ctx, "access"); err != nil || got != "tok-2" {
				t.Errorf("Get() = %q, %v; want tok-2", got, err)
			}

			if err := s.Remove(ctx, "access", "refresh", "missing"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, err := s.Get(ctx, "refresh"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(removed) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			ctx := context.Background()

			if err := s.Set(ctx, "  ", "x"); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Set(blank) error = %v, want ErrInvalidKey", err)
			}
			if _, err := s.Get(ctx, ""); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Get(empty) error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if err := s.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}

			ctx := context.Background()
			if _, err := s.Get(ctx, "access"); !errors.Is(err, ErrClosed) {
				t.Errorf("Get() after Close error = %v, want ErrClosed", err)
			}
			if err := s.Set(ctx, "access", "x"); !errors.Is(err, ErrClosed) {
				t.Errorf("Set() after Close error = %v, want ErrClosed", err)
			}
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 20; j++ {
						_ = s.Set(ctx, "access", "tok")
						_, _ = s.Get(ctx, "access")
						_ = s.Remove(ctx, "access")
					}
				}()
			}
			wg.Wait()
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Set(ctx, "access", "persisted"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_ = s.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if got, err := reopened.Get(ctx, "access"); err != nil || got != "persisted" {
		t.Errorf("Get() after reopen = %q, %v", got, err)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(" "); err == nil {
		t.Error("OpenSQLite(blank) should fail")
	}
}

func TestMemoryStore_SeedIsCopied(t *testing.T) {
	seed := map[string]string{"access": "a"}
	s := NewMemoryStore(seed)
	seed["access"] = "changed"

	if got, _ := s.Get(context.Background(), "access"); got != "a" {
		t.Errorf("Get() = %q, want a", got)
	}
}
