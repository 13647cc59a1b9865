package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Коллекции записей AT Protocol, с которыми работают шаги.
const (
	CollectionPost    = "app.bsky.feed.post"
	CollectionLike    = "app.bsky.feed.like"
	CollectionRepost  = "app.bsky.feed.repost"
	CollectionFollow  = "app.bsky.graph.follow"
	CollectionBlock   = "app.bsky.graph.block"
	CollectionList    = "app.bsky.graph.list"
	CollectionListRef = "app.bsky.graph.listitem"
)

// Viewer — отношения текущего пользователя к объекту.
type Viewer struct {
	Following  string `json:"following,omitempty" mapstructure:"following"`
	FollowedBy string `json:"followedBy,omitempty" mapstructure:"followedBy"`
	Blocking   string `json:"blocking,omitempty" mapstructure:"blocking"`
	Muted      bool   `json:"muted,omitempty" mapstructure:"muted"`
	Like       string `json:"like,omitempty" mapstructure:"like"`
	Repost     string `json:"repost,omitempty" mapstructure:"repost"`
}

// Profile — профиль актора (app.bsky.actor.defs#profileViewDetailed).
type Profile struct {
	DID            string  `json:"did" mapstructure:"did"`
	Handle         string  `json:"handle" mapstructure:"handle"`
	DisplayName    string  `json:"displayName,omitempty" mapstructure:"displayName"`
	Description    string  `json:"description,omitempty" mapstructure:"description"`
	FollowersCount int     `json:"followersCount,omitempty" mapstructure:"followersCount"`
	FollowsCount   int     `json:"followsCount,omitempty" mapstructure:"followsCount"`
	PostsCount     int     `json:"postsCount,omitempty" mapstructure:"postsCount"`
	Viewer         *Viewer `json:"viewer,omitempty" mapstructure:"viewer"`
}

// Post — пост (app.bsky.feed.defs#postView).
type Post struct {
	URI         string         `json:"uri" mapstructure:"uri"`
	CID         string         `json:"cid" mapstructure:"cid"`
	Author      Profile        `json:"author" mapstructure:"author"`
	Record      map[string]any `json:"record,omitempty" mapstructure:"record"`
	LikeCount   int            `json:"likeCount,omitempty" mapstructure:"likeCount"`
	RepostCount int            `json:"repostCount,omitempty" mapstructure:"repostCount"`
	ReplyCount  int            `json:"replyCount,omitempty" mapstructure:"replyCount"`
	IndexedAt   string         `json:"indexedAt,omitempty" mapstructure:"indexedAt"`
	Viewer      *Viewer        `json:"viewer,omitempty" mapstructure:"viewer"`
}

// StrongRef — ссылка на запись (uri + cid).
type StrongRef struct {
	URI string `json:"uri" mapstructure:"uri"`
	CID string `json:"cid" mapstructure:"cid"`
}

// Map возвращает ссылку в виде, пригодном для записи в record.
func (r StrongRef) Map() map[string]any {
	return map[string]any{"uri": r.URI, "cid": r.CID}
}

// Decode раскладывает произвольное значение (обычно map из JSON ответа) в T.
func Decode[T any](input any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(input); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

// field достаёт строковое поле из map или из вложенной структуры по пути.
func field(v any, path ...string) string {
	cur := v
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	s, _ := cur.(string)
	return s
}

// DID извлекает DID актора из контекста шага.
//
// Понимает профили, посты (автор), сообщения стрима и строки вида "did:...".
func DID(v any) string {
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "did:") {
			return x
		}
		return ""
	case Profile:
		return x.DID
	case *Profile:
		if x == nil {
			return ""
		}
		return x.DID
	case Post:
		return x.Author.DID
	case StreamMessage:
		return x.DID
	case PostEvent:
		return x.Author
	case map[string]any:
		if did := field(x, "did"); did != "" {
			return did
		}
		if did := field(x, "author", "did"); did != "" {
			return did
		}
		if did := field(x, "subject", "did"); did != "" {
			return did
		}
	}
	return ""
}

// URI извлекает AT URI записи из контекста шага.
func URI(v any) string {
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "at://") {
			return x
		}
	case Post:
		return x.URI
	case PostEvent:
		return x.URI
	case StrongRef:
		return x.URI
	case map[string]any:
		if uri := field(x, "uri"); uri != "" {
			return uri
		}
		return field(x, "post", "uri")
	}
	return ""
}

// CID извлекает CID записи из контекста шага.
func CID(v any) string {
	switch x := v.(type) {
	case Post:
		return x.CID
	case PostEvent:
		return x.CID
	case StrongRef:
		return x.CID
	case map[string]any:
		if cid := field(x, "cid"); cid != "" {
			return cid
		}
		return field(x, "post", "cid")
	}
	return ""
}

// ViewerOf возвращает viewer-состояние профиля или поста.
func ViewerOf(v any) Viewer {
	switch x := v.(type) {
	case Profile:
		if x.Viewer != nil {
			return *x.Viewer
		}
	case Post:
		if x.Viewer != nil {
			return *x.Viewer
		}
	case map[string]any:
		if vw, err := Decode[Viewer](x["viewer"]); err == nil {
			return vw
		}
	}
	return Viewer{}
}

// ParseURI разбирает AT URI "at://did/collection/rkey".
func ParseURI(uri string) (did, collection, rkey string, err error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return "", "", "", fmt.Errorf("%w: not an at:// uri %q", ErrInvalidArgument, uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: malformed at:// uri %q", ErrInvalidArgument, uri)
	}
	return parts[0], parts[1], parts[2], nil
}

// Now возвращает время в формате, принятом в записях AT Protocol.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
