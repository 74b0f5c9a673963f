// Package activity — журнал действий. Запись не критична: ошибки
// логируются и глотаются, основной запрос из-за них не падает.
package activity

import (
	"context"

	"flint/internal/logs"
	"flint/internal/models"

	"gorm.io/gorm"
)

// SystemActor — явный системный актор для неаутентифицированных и фоновых
// действий (вместо магического user id).
const SystemActor = "system"

type actorKey struct{}

// WithActor кладёт актора в контекст запроса.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom достаёт актора; по умолчанию — SystemActor.
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return SystemActor
}

type Sink struct{ db *gorm.DB }

func NewSink(db *gorm.DB) *Sink { return &Sink{db: db} }

// Log — fire-and-forget запись. nil-sink и nil-db безопасны.
func (s *Sink) Log(ctx context.Context, action, subject, detail string) {
	if s == nil || s.db == nil {
		return
	}
	e := models.ActivityEntry{
		Actor:   ActorFrom(ctx),
		Action:  action,
		Subject: subject,
		Detail:  detail,
	}
	go func() {
		if err := s.db.Create(&e).Error; err != nil {
			logs.Logger.Warnf("activity log %s/%s: %v", action, subject, err)
		}
	}()
}
