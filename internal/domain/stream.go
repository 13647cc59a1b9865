package domain

import "fmt"

// Значения поля kind в сообщениях стрима.
const (
	StreamKindCommit   = "commit"
	StreamKindIdentity = "identity"
	StreamKindAccount  = "account"
)

// Операции над записями в commit-сообщениях.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// StreamMessage — сообщение из стрима событий репозиториев.
//
// Формат совпадает с Jetstream:
//
//	{"did": "...", "time_us": 1725911162329308, "kind": "commit",
//	 "commit": {"operation": "create", "collection": "app.bsky.feed.post", "rkey": "...", "record": {...}}}
type StreamMessage struct {
	DID    string  `json:"did" mapstructure:"did"`
	TimeUS int64   `json:"time_us" mapstructure:"time_us"`
	Kind   string  `json:"kind" mapstructure:"kind"`
	Commit *Commit `json:"commit,omitempty" mapstructure:"commit"`
}

// Commit — изменение записи в репозитории.
type Commit struct {
	Rev        string         `json:"rev,omitempty" mapstructure:"rev"`
	Operation  string         `json:"operation" mapstructure:"operation"`
	Collection string         `json:"collection" mapstructure:"collection"`
	RKey       string         `json:"rkey" mapstructure:"rkey"`
	Record     map[string]any `json:"record,omitempty" mapstructure:"record"`
	CID        string         `json:"cid,omitempty" mapstructure:"cid"`
}

// IsCreate возвращает true для commit-сообщения о создании записи.
func (m StreamMessage) IsCreate() bool {
	return m.Kind == StreamKindCommit && m.Commit != nil && m.Commit.Operation == OperationCreate
}

// URI возвращает AT URI созданной записи.
func (m StreamMessage) URI() string {
	if m.Commit == nil {
		return ""
	}
	return fmt.Sprintf("at://%s/%s/%s", m.DID, m.Commit.Collection, m.Commit.RKey)
}

// PostEvent — проекция сообщения стрима, которую получают дочерние шаги.
type PostEvent struct {
	URI        string         `json:"uri"`
	CID        string         `json:"cid"`
	Author     string         `json:"author"`
	Collection string         `json:"collection"`
	Record     map[string]any `json:"record,omitempty"`
	TimeUS     int64          `json:"time_us"`
}

// Project строит проекцию commit-сообщения.
func Project(m StreamMessage) PostEvent {
	ev := PostEvent{
		URI:    m.URI(),
		Author: m.DID,
		TimeUS: m.TimeUS,
	}
	if m.Commit != nil {
		ev.CID = m.Commit.CID
		ev.Collection = m.Commit.Collection
		ev.Record = m.Commit.Record
	}
	return ev
}
