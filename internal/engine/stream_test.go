package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// sliceSource отдаёт сообщения по порядку и завершается.
func sliceSource(msgs ...domain.StreamMessage) Source {
	return SourceFunc(func(ctx context.Context, out chan<- domain.StreamMessage) error {
		for _, m := range msgs {
			select {
			case out <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}

func commit(did, op, collection, rkey string) domain.StreamMessage {
	return domain.StreamMessage{
		DID:    did,
		TimeUS: 1,
		Kind:   domain.StreamKindCommit,
		Commit: &domain.Commit{
			Operation:  op,
			Collection: collection,
			RKey:       rkey,
			CID:        "bafy" + rkey,
			Record:     map[string]any{"text": rkey},
		},
	}
}

func TestStream_FiltersCreates(t *testing.T) {
	src := sliceSource(
		commit("did:plc:a", domain.OperationCreate, domain.CollectionPost, "1"),
		commit("did:plc:a", domain.OperationUpdate, domain.CollectionPost, "2"),
		commit("did:plc:a", domain.OperationDelete, domain.CollectionPost, "3"),
		domain.StreamMessage{DID: "did:plc:b", Kind: domain.StreamKindIdentity},
		commit("did:plc:b", domain.OperationCreate, domain.CollectionLike, "4"),
		commit("did:plc:c", domain.OperationCreate, domain.CollectionPost, "5"),
	)

	var uris []string
	root := New(nil).WithSource(src)
	root.StreamPosts().Each().Tap(func(s *Step) {
		uris = append(uris, s.Context().(domain.PostEvent).URI)
	})

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"at://did:plc:a/app.bsky.feed.post/1",
		"at://did:plc:c/app.bsky.feed.post/5",
	}, uris)
}

func TestStream_IsolatedPerMessage(t *testing.T) {
	src := sliceSource(
		commit("did:plc:a", domain.OperationCreate, domain.CollectionPost, "1"),
		commit("did:plc:b", domain.OperationCreate, domain.CollectionPost, "2"),
	)

	var forks []*Step
	root := New(nil).WithSource(src)
	entry := root.StreamPosts().Each()
	entry.Tap(func(s *Step) {
		forks = append(forks, s)
		s.SetConfig("seen", true)
	})

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, forks, 2)
	assert.False(t, forks[0].Is(forks[1]))
	assert.Nil(t, entry.Output())
	assert.Nil(t, entry.Children()[0].Config("seen"))
}

func TestStream_ForkKeepsScenarioAndPath(t *testing.T) {
	src := sliceSource(
		commit("did:plc:a", domain.OperationCreate, domain.CollectionPost, "1"),
	)

	var name, path string
	root := New(nil).Named("firehose").WithSource(src)
	entry := root.StreamPosts().Each()
	entry.Tap(func(s *Step) {
		name = s.ScenarioName()
		path = s.String()
	})

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "firehose", name)
	assert.Equal(t, entry.Children()[0].String(), path)
	assert.Equal(t, "root/stream_posts/each/tap", path)
}

func TestStream_FailFast(t *testing.T) {
	src := sliceSource(
		commit("did:plc:a", domain.OperationCreate, domain.CollectionPost, "1"),
		commit("did:plc:a", domain.OperationCreate, domain.CollectionPost, "2"),
		commit("did:plc:a", domain.OperationCreate, domain.CollectionPost, "3"),
	)
	boom := errors.New("boom")

	var calls int
	root := New(nil).WithSource(src)
	root.StreamPosts().Each().Tap(func(*Step) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	_, err := root.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestStream_SkipTake(t *testing.T) {
	var msgs []domain.StreamMessage
	for _, rkey := range []string{"1", "2", "3", "4", "5"} {
		msgs = append(msgs, commit("did:plc:a", domain.OperationCreate, domain.CollectionFollow, rkey))
	}

	var rkeys []any
	root := New(nil).WithSource(sliceSource(msgs...))
	root.StreamFollows().Skip(1).Take(2).Each().Tap(func(s *Step) {
		rkeys = append(rkeys, s.Context().(domain.PostEvent).Record["text"])
	})

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"2", "3"}, rkeys)
}

func TestStream_SourceError(t *testing.T) {
	boom := errors.New("connection reset")
	src := SourceFunc(func(context.Context, chan<- domain.StreamMessage) error {
		return boom
	})

	root := New(nil).WithSource(src)
	root.StreamPosts().Each()

	_, err := root.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStream_NoSource(t *testing.T) {
	root := New(nil)
	root.StreamPosts()

	_, err := root.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestStream_Cancelled(t *testing.T) {
	// Источник без конца: ждёт отмены
	src := SourceFunc(func(ctx context.Context, out chan<- domain.StreamMessage) error {
		<-ctx.Done()
		return ctx.Err()
	})

	root := New(nil).WithSource(src)
	root.StreamPosts().Each()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := root.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_QueueSizeConfig(t *testing.T) {
	var got int
	src := SourceFunc(func(_ context.Context, out chan<- domain.StreamMessage) error {
		got = cap(out)
		return nil
	})

	root := New(nil).WithSource(src).SetConfig(ConfigQueueSize, 3)
	root.StreamLikes()

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}
