package agent

import (
	"context"
	"fmt"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// NSID методов, которые используются хелперами.
const (
	MethodCreateSession  = "com.atproto.server.createSession"
	MethodRefreshSession = "com.atproto.server.refreshSession"
	MethodCreateRecord   = "com.atproto.repo.createRecord"
	MethodDeleteRecord   = "com.atproto.repo.deleteRecord"
)

// Agent — удалённый клиент, через который шаги обращаются к сети.
//
// Один Agent разделяется всеми шагами сценария по ссылке.
type Agent interface {
	// DID возвращает DID аутентифицированного пользователя.
	DID() string

	// Query выполняет XRPC query (GET).
	Query(ctx context.Context, nsid string, params map[string]any) (map[string]any, error)

	// Procedure выполняет XRPC procedure (POST с JSON телом).
	Procedure(ctx context.Context, nsid string, input map[string]any) (map[string]any, error)
}

// CreateRecord создаёт запись в репозитории текущего пользователя.
// Возвращает ссылку на созданную запись.
func CreateRecord(ctx context.Context, a Agent, collection string, record map[string]any) (domain.StrongRef, error) {
	if _, ok := record["$type"]; !ok {
		record["$type"] = collection
	}
	if _, ok := record["createdAt"]; !ok {
		record["createdAt"] = domain.Now()
	}
	out, err := a.Procedure(ctx, MethodCreateRecord, map[string]any{
		"repo":       a.DID(),
		"collection": collection,
		"record":     record,
	})
	if err != nil {
		return domain.StrongRef{}, fmt.Errorf("create %s record: %w", collection, err)
	}
	return domain.Decode[domain.StrongRef](out)
}

// DeleteRecord удаляет запись по AT URI.
func DeleteRecord(ctx context.Context, a Agent, uri string) error {
	_, collection, rkey, err := domain.ParseURI(uri)
	if err != nil {
		return err
	}
	_, err = a.Procedure(ctx, MethodDeleteRecord, map[string]any{
		"repo":       a.DID(),
		"collection": collection,
		"rkey":       rkey,
	})
	if err != nil {
		return fmt.Errorf("delete %s record: %w", collection, err)
	}
	return nil
}
