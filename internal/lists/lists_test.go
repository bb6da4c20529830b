package lists

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fenilsonani/listmunge/internal/config"
	"github.com/fenilsonani/listmunge/internal/resilience"
)

// exerciseSequence runs the behavior every Sequence must share.
func exerciseSequence(t *testing.T, s Sequence) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Current(ctx, "dev"); !errors.Is(err, ErrNoSequence) {
		t.Errorf("Current() on a new list error = %v, want ErrNoSequence", err)
	}
	if _, err := s.Next(ctx, "dev"); !errors.Is(err, ErrNoSequence) {
		t.Errorf("Next() on a new list error = %v, want ErrNoSequence", err)
	}

	if err := s.Init(ctx, "dev", 10); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := s.Init(ctx, "dev", 99); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if n, err := s.Current(ctx, "dev"); err != nil || n != 10 {
		t.Errorf("Current() = %d, %v, want 10", n, err)
	}

	if n, err := s.Next(ctx, "dev"); err != nil || n != 11 {
		t.Errorf("Next() = %d, %v, want 11", n, err)
	}
	if n, err := s.Next(ctx, "dev"); err != nil || n != 12 {
		t.Errorf("Next() = %d, %v, want 12", n, err)
	}

	if err := s.Set(ctx, "dev", 3); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if n, err := s.Current(ctx, "dev"); err != nil || n != 3 {
		t.Errorf("Current() after Set = %d, %v, want 3", n, err)
	}
	if err := s.Set(ctx, "dev", -1); err == nil {
		t.Error("Set() with a negative id should fail")
	}

	if err := s.Set(ctx, "other", 7); err != nil {
		t.Fatalf("Set() on a new list error = %v", err)
	}
	if n, err := s.Current(ctx, "other"); err != nil || n != 7 {
		t.Errorf("Current(other) = %d, %v, want 7", n, err)
	}
	if n, _ := s.Current(ctx, "dev"); n != 3 {
		t.Errorf("lists share a counter: dev = %d", n)
	}
}

func TestMemorySequence(t *testing.T) {
	exerciseSequence(t, NewMemorySequence())
}

func TestSQLiteSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequence.db")
	s, err := OpenSQLiteSequence(path)
	if err != nil {
		t.Fatalf("OpenSQLiteSequence() error = %v", err)
	}
	exerciseSequence(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening keeps the numbers and skips applied migrations
	s, err = OpenSQLiteSequence(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if n, err := s.Current(context.Background(), "dev"); err != nil || n != 3 {
		t.Errorf("Current() after reopen = %d, %v, want 3", n, err)
	}
}

func TestRedisSequence(t *testing.T) {
	url := os.Getenv("LISTMUNGE_TEST_REDIS")
	if url == "" {
		t.Skip("LISTMUNGE_TEST_REDIS not set")
	}
	prefix := "listmunge-test-" + filepath.Base(t.TempDir())
	s, err := NewRedisSequence(RedisConfig{RedisURL: url, Prefix: prefix})
	if err != nil {
		t.Fatalf("NewRedisSequence() error = %v", err)
	}
	defer func() {
		ctx := context.Background()
		s.client.Del(ctx, s.key("dev"), s.key("other"))
		s.Close()
	}()
	exerciseSequence(t, s)
}

func TestNewRedisSequenceBadURL(t *testing.T) {
	if _, err := NewRedisSequence(RedisConfig{RedisURL: "not-a-url"}); err == nil {
		t.Error("NewRedisSequence() with a bad URL should fail")
	}
}

func TestOpenSequence(t *testing.T) {
	s, err := OpenSequence(config.SequenceConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("OpenSequence(memory) error = %v", err)
	}
	if _, ok := s.(*MemorySequence); !ok {
		t.Errorf("OpenSequence(memory) = %T", s)
	}

	s, err = OpenSequence(config.SequenceConfig{
		Backend:      config.BackendSQLite,
		DatabasePath: filepath.Join(t.TempDir(), "seq.db"),
	})
	if err != nil {
		t.Fatalf("OpenSequence(sqlite) error = %v", err)
	}
	s.Close()

	if _, err := OpenSequence(config.SequenceConfig{Backend: "etcd"}); err == nil {
		t.Error("OpenSequence() with an unknown backend should fail")
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.ListConfig
		wantCode    string
		wantCharset string
		wantListID  string
	}{
		{
			name:        "defaults",
			cfg:         config.ListConfig{Name: "dev"},
			wantCode:    "en",
			wantCharset: "us-ascii",
		},
		{
			name:        "language charset",
			cfg:         config.ListConfig{Name: "dev", PreferredLanguage: config.LanguageConfig{Code: "ru"}},
			wantCode:    "ru",
			wantCharset: "koi8-r",
		},
		{
			name: "explicit charset",
			cfg: config.ListConfig{
				Name:              "dev",
				ListID:            "Developers <Dev.Example.com>",
				PreferredLanguage: config.LanguageConfig{Code: "fr", Charset: "utf-8"},
			},
			wantCode:    "fr",
			wantCharset: "utf-8",
			wantListID:  "dev.example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := FromConfig(tt.cfg)
			if l.PreferredLanguage.Code != tt.wantCode || l.PreferredLanguage.Charset != tt.wantCharset {
				t.Errorf("PreferredLanguage = %+v", l.PreferredLanguage)
			}
			if l.ListID != tt.wantListID {
				t.Errorf("ListID = %q, want %q", l.ListID, tt.wantListID)
			}
			if l.PostIDKnown {
				t.Error("PostIDKnown set without a sequence")
			}
		})
	}
}

func TestSubjectContext(t *testing.T) {
	l := &List{
		Name:              "dev",
		SubjectPrefix:     "[dev %d] ",
		PreferredLanguage: Language{Code: "fr", Charset: "iso-8859-1"},
		PostID:            42,
		PostIDKnown:       true,
	}
	c := l.SubjectContext()
	if c.Prefix != "[dev %d] " || c.Charset != "iso-8859-1" || c.Language != "fr" || c.PostID != 42 || !c.HasPostID {
		t.Errorf("SubjectContext() = %+v", c)
	}
}

func newTestRegistry(t *testing.T, seq Sequence) *Registry {
	t.Helper()
	r, err := RegistryFromConfig([]config.ListConfig{
		{Name: "dev", ListID: "<dev.example.com>", SubjectPrefix: "[dev %d] ", PostID: 100},
		{Name: "announce", SubjectPrefix: "[announce] "},
	}, seq)
	if err != nil {
		t.Fatalf("RegistryFromConfig() error = %v", err)
	}
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := newTestRegistry(t, nil)

	l, err := r.Get("dev")
	if err != nil || l.Name != "dev" {
		t.Fatalf("Get(dev) = %+v, %v", l, err)
	}
	l.SubjectPrefix = "changed"
	if again, _ := r.Get("dev"); again.SubjectPrefix != "[dev %d] " {
		t.Error("Get() returned a shared list")
	}

	if l, err := r.ByListID("Developers <DEV.example.com>"); err != nil || l.Name != "dev" {
		t.Errorf("ByListID() = %+v, %v", l, err)
	}
	if _, err := r.ByListID("<nope.example.com>"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("ByListID() error = %v, want ErrListNotFound", err)
	}
	if _, err := r.Get("nope"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("Get() error = %v, want ErrListNotFound", err)
	}

	for _, key := range []string{"dev", "dev.example.com", "<dev.example.com>"} {
		if l, err := r.Find(key); err != nil || l.Name != "dev" {
			t.Errorf("Find(%q) = %+v, %v", key, l, err)
		}
	}
	if _, err := r.Find("nope"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("Find() error = %v, want ErrListNotFound", err)
	}

	all := r.Lists()
	if len(all) != 2 || all[0].Name != "announce" || all[1].Name != "dev" {
		t.Errorf("Lists() = %+v", all)
	}
}

func TestRegistryDuplicates(t *testing.T) {
	_, err := NewRegistry([]*List{{Name: "a"}, {Name: "a"}}, nil)
	if !errors.Is(err, ErrDuplicateList) {
		t.Errorf("duplicate names error = %v", err)
	}
	_, err = NewRegistry([]*List{{Name: "a", ListID: "x.example.com"}, {Name: "b", ListID: "x.example.com"}}, nil)
	if !errors.Is(err, ErrDuplicateList) {
		t.Errorf("duplicate list ids error = %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, NewMemorySequence())

	l, err := r.Resolve(ctx, "dev")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !l.PostIDKnown || l.PostID != 100 {
		t.Errorf("Resolve() post id = %d, known %v, want 100", l.PostID, l.PostIDKnown)
	}

	if n, err := r.Advance(ctx, "dev"); err != nil || n != 101 {
		t.Errorf("Advance() = %d, %v, want 101", n, err)
	}
	if l, _ := r.Resolve(ctx, "dev"); l.PostID != 101 {
		t.Errorf("Resolve() after Advance = %d, want 101", l.PostID)
	}

	// Lists without a configured post id start at 1
	if l, _ := r.Resolve(ctx, "announce"); l.PostID != 1 {
		t.Errorf("Resolve(announce) = %d, want 1", l.PostID)
	}

	if _, err := r.Advance(ctx, "nope"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("Advance() error = %v, want ErrListNotFound", err)
	}
}

func TestRegistryResolveWithoutSequence(t *testing.T) {
	r := newTestRegistry(t, nil)
	l, err := r.Resolve(context.Background(), "dev")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if l.PostIDKnown {
		t.Error("PostIDKnown set without a sequence")
	}
	if _, err := r.Advance(context.Background(), "dev"); !errors.Is(err, ErrNoSequence) {
		t.Errorf("Advance() error = %v, want ErrNoSequence", err)
	}
}

// brokenSequence fails every call like an unreachable store.
type brokenSequence struct {
	*MemorySequence
	calls int
}

var errUnreachable = errors.New("connection refused")

func (b *brokenSequence) Current(context.Context, string) (int, error) {
	b.calls++
	return 0, errUnreachable
}

func TestGuardedSequence(t *testing.T) {
	exerciseSequence(t, NewGuardedSequence(NewMemorySequence(), "memory"))

	broken := &brokenSequence{MemorySequence: NewMemorySequence()}
	g := NewGuardedSequence(broken, "broken")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := g.Current(ctx, "dev"); !errors.Is(err, errUnreachable) {
			t.Fatalf("Current() call %d error = %v", i, err)
		}
	}
	if _, err := g.Current(ctx, "dev"); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("Current() after repeated failures error = %v, want ErrOpen", err)
	}
	if broken.calls != 5 {
		t.Errorf("store called %d times, want 5", broken.calls)
	}
}

func TestGuardedSequenceIgnoresMissingList(t *testing.T) {
	g := NewGuardedSequence(NewMemorySequence(), "memory")
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := g.Current(ctx, "nope"); !errors.Is(err, ErrNoSequence) {
			t.Fatalf("Current() error = %v, want ErrNoSequence", err)
		}
	}
}
