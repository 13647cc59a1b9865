package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pirhoo/trotsky-sub000/internal/agent/agenttest"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if len(r.Types()) != 0 {
		t.Errorf("expected empty registry")
	}

	// Регистрация
	r.Register(NewWaitStep())
	if got := r.Types(); len(got) != 1 || got[0] != "wait" {
		t.Errorf("expected [wait], got %v", got)
	}

	// Получение
	step, err := r.Get("wait")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if step.Type() != "wait" {
		t.Errorf("expected wait, got %s", step.Type())
	}

	// Несуществующий тип
	_, err = r.Get("unknown")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}

	// Повторная регистрация перезаписывает
	r.Register(NewWaitStep())
	if len(r.Types()) != 1 {
		t.Errorf("expected 1 step after re-register, got %d", len(r.Types()))
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	expectedTypes := []string{
		"actor", "follow", "unfollow", "block", "unblock", "mute", "unmute",
		"post", "create_post", "reply", "like", "unlike", "repost", "unrepost",
		"actors", "followers", "follows", "feed", "likes", "likers", "reposters",
		"search_posts", "search_actors", "timeline", "notifications", "list_members", "list",
		"wait", "save", "transform", "webhook",
	}
	for _, typ := range expectedTypes {
		if _, err := r.Get(typ); err != nil {
			t.Errorf("default registry should have %s: %v", typ, err)
		}
	}

	if len(r.Types()) != len(expectedTypes) {
		t.Errorf("expected %d types, got %d", len(expectedTypes), len(r.Types()))
	}

	followers, _ := r.Get("followers")
	if _, ok := followers.(Pager); !ok {
		t.Errorf("followers should be a pager")
	}
	wait, _ := r.Get("wait")
	if _, ok := wait.(Pager); ok {
		t.Errorf("wait should not be a pager")
	}
}

// Wait Step Tests

func TestWaitStep_Execute(t *testing.T) {
	step := NewWaitStep()

	req := NewRequest("wait", nil, nil, nil, map[string]any{"duration_ms": 50})

	start := time.Now()
	resp, err := step.Execute(context.Background(), req)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("wait was too short: %v", elapsed)
	}
	out, ok := resp.Output.(map[string]any)
	if !ok || out["duration_ms"] != int64(50) {
		t.Errorf("expected duration_ms 50, got %v", resp.Output)
	}
}

func TestWaitStep_Cancellation(t *testing.T) {
	step := NewWaitStep()
	req := NewRequest("wait", nil, nil, nil, map[string]any{"duration_sec": 1})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := step.Execute(ctx, req)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrStepCancelled) {
		t.Errorf("expected ErrStepCancelled, got %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestWaitStep_InvalidConfig(t *testing.T) {
	step := NewWaitStep()

	_, err := step.Execute(context.Background(), NewRequest("wait", nil, nil, nil, nil))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestWaitStep_DurationString(t *testing.T) {
	step := NewWaitStep()
	req := NewRequest("wait", nil, nil, nil, map[string]any{"duration_ms": "60ms"})

	start := time.Now()
	resp, err := step.Execute(context.Background(), req)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 60*time.Millisecond {
		t.Errorf("wait was too short: %v", elapsed)
	}
	out, _ := resp.Output.(map[string]any)
	if out["duration_ms"] != int64(60) {
		t.Errorf("expected duration_ms 60, got %v", resp.Output)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    time.Duration
		wantErr bool
	}{
		{"int milliseconds", 250, 250 * time.Millisecond, false},
		{"int64 from yaml", int64(1500), 1500 * time.Millisecond, false},
		{"float from json", 2.0, 2 * time.Millisecond, false},
		{"duration string", "2s", 2 * time.Second, false},
		{"duration value", 3 * time.Second, 3 * time.Second, false},
		{"garbage string", "abc", 0, true},
		{"negative", -5, 0, true},
		{"unsupported type", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWaitStep_InvalidDurationString(t *testing.T) {
	step := NewWaitStep()
	req := NewRequest("wait", nil, nil, nil, map[string]any{"duration_ms": "abc"})

	_, err := step.Execute(context.Background(), req)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// Save Step Tests

func TestSaveStep_AppendsJSONSuffix(t *testing.T) {
	dir := t.TempDir()
	step := NewSaveStep()

	stepCtx := map[string]any{"did": "did:plc:alice", "handle": "alice.test"}
	req := NewRequest("save", nil, stepCtx, nil, map[string]any{"path": filepath.Join(dir, "out", "alice")})

	resp, err := step.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "out", "alice.json")
	if resp.Output.(map[string]any)["path"] != path {
		t.Errorf("expected path %s, got %v", path, resp.Output)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	var saved map[string]any
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	if saved["handle"] != "alice.test" {
		t.Errorf("expected handle alice.test, got %v", saved["handle"])
	}
}

func TestJSONPath(t *testing.T) {
	tests := map[string]string{
		"a":          "a.json",
		"a.json":     "a.json",
		"dir/b.txt":  "dir/b.txt.json",
		"c.json.bak": "c.json.bak.json",
	}
	for in, want := range tests {
		if got := JSONPath(in); got != want {
			t.Errorf("JSONPath(%q) = %q, want %q", in, got, want)
		}
	}
}

// Transform Step Tests

func TestTransformStep_Execute(t *testing.T) {
	step := NewTransformStep()

	req := NewRequest("transform", nil, nil, nil, map[string]any{
		"mappings": map[string]any{
			"total":  "42",
			"ratio":  "0.5",
			"flag":   "true",
			"items":  `["a","b"]`,
			"handle": "alice.test",
			"raw":    7,
		},
	})

	resp, err := step.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := resp.Output.(map[string]any)

	if out["total"] != int64(42) {
		t.Errorf("expected int64 42, got %T %v", out["total"], out["total"])
	}
	if out["ratio"] != 0.5 {
		t.Errorf("expected 0.5, got %v", out["ratio"])
	}
	if out["flag"] != true {
		t.Errorf("expected true, got %v", out["flag"])
	}
	if items, ok := out["items"].([]any); !ok || len(items) != 2 {
		t.Errorf("expected 2 items, got %v", out["items"])
	}
	if out["handle"] != "alice.test" {
		t.Errorf("expected plain string, got %v", out["handle"])
	}
	if out["raw"] != 7 {
		t.Errorf("expected raw value, got %v", out["raw"])
	}
}

// Webhook Step Tests

func TestWebhookStep_PostsContext(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-Token") != "secret" {
			t.Errorf("expected X-Token header")
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	req := NewRequest("webhook", nil, map[string]any{"uri": "at://x"}, nil, map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Token": "secret"},
	})

	resp, err := NewWebhookStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := resp.Output.(map[string]any)
	if out["status_code"] != 200 {
		t.Errorf("expected 200, got %v", out["status_code"])
	}
	if received["uri"] != "at://x" {
		t.Errorf("expected context in body, got %v", received)
	}
}

func TestWebhookStep_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	req := NewRequest("webhook", nil, nil, nil, map[string]any{"url": server.URL})
	_, err := NewWebhookStep().Execute(context.Background(), req)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected HTTPError 502, got %v", err)
	}
}

func TestWebhookStep_DryRun(t *testing.T) {
	req := NewRequest("webhook", nil, nil, map[string]any{"dry_run": true}, map[string]any{"url": "http://127.0.0.1:0"})
	resp, err := NewWebhookStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output.(map[string]any)["dry_run"] != true {
		t.Errorf("expected dry run output, got %v", resp.Output)
	}
}

// Actor Step Tests

func TestActorStep_UsesArgOrContext(t *testing.T) {
	fake := agenttest.New("did:plc:me").Handle("app.bsky.actor.getProfile",
		func(_ context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{"did": "did:plc:" + params["actor"].(string), "handle": params["actor"]}, nil
		})

	resp, err := NewActorStep().Execute(context.Background(), NewRequest("actor", fake, nil, nil, map[string]any{"actor": "alice"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain.DID(resp.Output) != "did:plc:alice" {
		t.Errorf("unexpected profile %v", resp.Output)
	}

	// Без аргумента берётся DID из контекста
	stepCtx := map[string]any{"did": "did:plc:bob"}
	if _, err := NewActorStep().Execute(context.Background(), NewRequest("actor", fake, stepCtx, nil, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := fake.Calls("app.bsky.actor.getProfile")
	if calls[1].Params["actor"] != "did:plc:bob" {
		t.Errorf("expected actor from context, got %v", calls[1].Params)
	}
}

func TestActorStep_NoAgent(t *testing.T) {
	_, err := NewActorStep().Execute(context.Background(), NewRequest("actor", nil, nil, nil, map[string]any{"actor": "alice"}))
	if !errors.Is(err, ErrNoAgent) {
		t.Errorf("expected ErrNoAgent, got %v", err)
	}
}

func TestFollowStep_MissingContext(t *testing.T) {
	fake := agenttest.New("did:plc:me")

	_, err := NewFollowStep().Execute(context.Background(), NewRequest("follow", fake, "not a profile", nil, nil))
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, domain.ErrMissingContext) {
		t.Errorf("expected ErrMissingContext, got %v", err)
	}
	var e *domain.Error
	if errors.As(err, &e) && e.Step != "follow" {
		t.Errorf("expected step follow, got %q", e.Step)
	}
}

func TestFollowStep_CreatesRecord(t *testing.T) {
	fake := agenttest.New("did:plc:me").Respond("com.atproto.repo.createRecord",
		map[string]any{"uri": "at://did:plc:me/app.bsky.graph.follow/1", "cid": "c1"})

	resp, err := NewFollowStep().Execute(context.Background(),
		NewRequest("follow", fake, map[string]any{"did": "did:plc:bob"}, nil, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain.URI(resp.Output) != "at://did:plc:me/app.bsky.graph.follow/1" {
		t.Errorf("unexpected output %v", resp.Output)
	}

	call := fake.Calls("com.atproto.repo.createRecord")[0]
	record := call.Params["record"].(map[string]any)
	if record["subject"] != "did:plc:bob" || call.Params["collection"] != domain.CollectionFollow {
		t.Errorf("unexpected createRecord input %v", call.Params)
	}
}

func TestFollowStep_DryRun(t *testing.T) {
	fake := agenttest.New("did:plc:me")

	resp, err := NewFollowStep().Execute(context.Background(),
		NewRequest("follow", fake, map[string]any{"did": "did:plc:bob"}, map[string]any{"dry_run": true}, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.Count("") != 0 {
		t.Errorf("dry run should not call the agent")
	}
	if resp.Output.(map[string]any)["subject"] != "did:plc:bob" {
		t.Errorf("unexpected output %v", resp.Output)
	}
}

func TestUnfollowStep(t *testing.T) {
	followURI := "at://did:plc:me/app.bsky.graph.follow/abc"

	t.Run("viewer in context", func(t *testing.T) {
		fake := agenttest.New("did:plc:me").Respond("com.atproto.repo.deleteRecord", map[string]any{})
		stepCtx := map[string]any{"did": "did:plc:bob", "viewer": map[string]any{"following": followURI}}

		if _, err := NewUnfollowStep().Execute(context.Background(), NewRequest("unfollow", fake, stepCtx, nil, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		call := fake.Calls("com.atproto.repo.deleteRecord")[0]
		if call.Params["rkey"] != "abc" || call.Params["collection"] != domain.CollectionFollow {
			t.Errorf("unexpected deleteRecord input %v", call.Params)
		}
	})

	t.Run("not following", func(t *testing.T) {
		fake := agenttest.New("did:plc:me").Respond("app.bsky.actor.getProfile", map[string]any{"did": "did:plc:bob"})
		resp, err := NewUnfollowStep().Execute(context.Background(),
			NewRequest("unfollow", fake, map[string]any{"did": "did:plc:bob"}, nil, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Output != nil {
			t.Errorf("expected no output, got %v", resp.Output)
		}
		if fake.Count("com.atproto.repo.deleteRecord") != 0 {
			t.Errorf("should not delete anything")
		}
	})
}

// Post Step Tests

func TestLikeStep_RequiresPost(t *testing.T) {
	fake := agenttest.New("did:plc:me")
	_, err := NewLikeStep().Execute(context.Background(), NewRequest("like", fake, map[string]any{"did": "did:plc:bob"}, nil, nil))
	if !errors.Is(err, domain.ErrMissingContext) {
		t.Errorf("expected ErrMissingContext, got %v", err)
	}
}

func TestReplyStep_KeepsThreadRoot(t *testing.T) {
	fake := agenttest.New("did:plc:me").Respond("com.atproto.repo.createRecord", map[string]any{"uri": "at://r", "cid": "rc"})

	parent := map[string]any{
		"uri": "at://did:plc:bob/app.bsky.feed.post/2",
		"cid": "c2",
		"record": map[string]any{
			"text":  "reply to root",
			"reply": map[string]any{"root": map[string]any{"uri": "at://did:plc:bob/app.bsky.feed.post/1", "cid": "c1"}},
		},
	}
	_, err := NewReplyStep().Execute(context.Background(), NewRequest("reply", fake, parent, nil, map[string]any{"text": "hi"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := fake.Calls("com.atproto.repo.createRecord")[0].Params["record"].(map[string]any)
	reply := record["reply"].(map[string]any)
	if reply["root"].(map[string]any)["cid"] != "c1" {
		t.Errorf("expected thread root c1, got %v", reply["root"])
	}
	if reply["parent"].(map[string]any)["cid"] != "c2" {
		t.Errorf("expected parent c2, got %v", reply["parent"])
	}
}

func TestCreatePostStep_RequiresText(t *testing.T) {
	fake := agenttest.New("did:plc:me")
	_, err := NewCreatePostStep().Execute(context.Background(), NewRequest("create_post", fake, nil, nil, nil))
	if !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// Pagination Tests

func pages(items []any, size int, calls *int) FetchFunc {
	return func(_ context.Context, cursor string) (map[string]any, error) {
		*calls++
		start := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &start)
		}
		end := min(start+size, len(items))
		page := map[string]any{"items": items[start:end]}
		if end < len(items) {
			page["cursor"] = fmt.Sprint(end)
		}
		return page, nil
	}
}

func TestPaginate_Window(t *testing.T) {
	items := []any{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	tests := []struct {
		name       string
		skip, take int
		want       []any
		wantCalls  int
	}{
		{"skip 2 take 3", 2, 3, []any{2, 3, 4}, 2},
		{"take all", 0, Unbounded, items, 4},
		{"take 0", 0, 0, []any{}, 1},
		{"skip past end", 20, 5, []any{}, 4},
		{"exact page", 0, 3, []any{0, 1, 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			got, err := Paginate(context.Background(), "items", pages(items, 3, &calls), tt.skip, tt.take)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if calls != tt.wantCalls {
				t.Errorf("got %d fetches, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestPaginate_BadField(t *testing.T) {
	fetch := func(context.Context, string) (map[string]any, error) {
		return map[string]any{"items": "nope"}, nil
	}
	_, err := Paginate(context.Background(), "items", fetch, 0, Unbounded)
	if !domain.IsKind(err, domain.KindPagination) {
		t.Errorf("expected pagination error, got %v", err)
	}
}

func TestListStep_FetchPage(t *testing.T) {
	fake := agenttest.New("did:plc:me").Handle("app.bsky.feed.getAuthorFeed",
		func(_ context.Context, params map[string]any) (map[string]any, error) {
			if params["limit"] != 25 || params["cursor"] != "c1" || params["actor"] != "did:plc:bob" {
				t.Errorf("unexpected params %v", params)
			}
			return map[string]any{"feed": []any{map[string]any{"post": map[string]any{"uri": "at://p"}}}}, nil
		})

	req := NewRequest("feed", fake, map[string]any{"did": "did:plc:bob"}, map[string]any{"page_size": 25}, nil)
	page, err := NewFeedStep().FetchPage(context.Background(), req, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := page["feed"].([]any)
	if domain.URI(items[0]) != "at://p" {
		t.Errorf("feed items should be unwrapped posts, got %v", items[0])
	}
}

// Stream Spec Tests

func TestStreamSpec_Match(t *testing.T) {
	spec := NewStreamPostsSpec()

	create := domain.StreamMessage{DID: "did:plc:a", Kind: "commit", Commit: &domain.Commit{Operation: "create", Collection: domain.CollectionPost, RKey: "1"}}
	del := domain.StreamMessage{DID: "did:plc:a", Kind: "commit", Commit: &domain.Commit{Operation: "delete", Collection: domain.CollectionPost, RKey: "1"}}
	like := domain.StreamMessage{DID: "did:plc:a", Kind: "commit", Commit: &domain.Commit{Operation: "create", Collection: domain.CollectionLike, RKey: "1"}}
	identity := domain.StreamMessage{DID: "did:plc:a", Kind: "identity"}

	if !spec.Match(create) {
		t.Error("create post should match")
	}
	for _, msg := range []domain.StreamMessage{del, like, identity} {
		if spec.Match(msg) {
			t.Errorf("%+v should not match", msg)
		}
	}

	ev := spec.Project(create).(domain.PostEvent)
	if ev.URI != "at://did:plc:a/app.bsky.feed.post/1" {
		t.Errorf("unexpected projection %v", ev)
	}
}
