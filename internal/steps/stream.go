package steps

import "github.com/pirhoo/trotsky-sub000/internal/domain"

// Типы стримов.
const (
	StepTypeStreamPosts   = "stream_posts"
	StepTypeStreamFollows = "stream_follows"
	StepTypeStreamLikes   = "stream_likes"
)

// StreamSpec описывает, какие сообщения стрима нужны шагу и как их показать детям.
type StreamSpec struct {
	typ        string
	collection string
}

// NewStreamPostsSpec — новые посты.
func NewStreamPostsSpec() *StreamSpec {
	return &StreamSpec{typ: StepTypeStreamPosts, collection: domain.CollectionPost}
}

// NewStreamFollowsSpec — новые подписки.
func NewStreamFollowsSpec() *StreamSpec {
	return &StreamSpec{typ: StepTypeStreamFollows, collection: domain.CollectionFollow}
}

// NewStreamLikesSpec — новые лайки.
func NewStreamLikesSpec() *StreamSpec {
	return &StreamSpec{typ: StepTypeStreamLikes, collection: domain.CollectionLike}
}

// Type возвращает тип шага.
func (s *StreamSpec) Type() string {
	return s.typ
}

// Collection возвращает коллекцию записей, на которую подписан шаг.
func (s *StreamSpec) Collection() string {
	return s.collection
}

// Match отбирает только commit/create в нужной коллекции.
func (s *StreamSpec) Match(msg domain.StreamMessage) bool {
	return msg.IsCreate() && msg.Commit.Collection == s.collection
}

// Project строит контекст для дочерних шагов.
func (s *StreamSpec) Project(msg domain.StreamMessage) any {
	return domain.Project(msg)
}
