package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"bestiary-server/internal/models"
	"bestiary-server/internal/schemas"
	"bestiary-server/internal/service"
)

// DBTX - общий интерфейс для *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ service.MonsterRepository = (*pgMonsterRepository)(nil)

const (
	listByOwnerQuery  = `SELECT * FROM monster WHERE user_id = $1 ORDER BY name ASC, id ASC`
	listAllQuery      = `SELECT * FROM monster ORDER BY id DESC`
	getByIDQuery      = `SELECT * FROM monster WHERE id = $1`
	getImageURLQuery  = `SELECT image_url FROM monster WHERE id = $1 LIMIT 1`
	deleteAnyQuery    = `DELETE FROM monster WHERE id = $1`
	deleteOwnedQuery  = `DELETE FROM monster WHERE id = $1 AND user_id = $2`
	renameOwnedQuery  = `UPDATE monster SET name = $3 WHERE id = $1 AND user_id = $2 RETURNING *`
	imageReferencedQuery = `SELECT EXISTS(SELECT 1 FROM monster WHERE image_url = $1)`
	insertFixedParams    = 2 // user_id, image_url
)

// insertMonsterQuery строится из таблицы полей существа один раз при старте.
var insertMonsterQuery = buildInsertQuery()

func buildInsertQuery() string {
	columns := append([]string{"user_id", "image_url"}, schemas.InsertColumns()...)
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO monster (%s) VALUES (%s) RETURNING *",
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

type pgMonsterRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgMonsterRepository создает репозиторий монстров поверх PostgreSQL.
func NewPgMonsterRepository(db DBTX, logger *zap.Logger) service.MonsterRepository {
	return &pgMonsterRepository{db: db, logger: logger.Named("PgMonsterRepo")}
}

// Create сохраняет существо одним INSERT ... RETURNING *.
func (r *pgMonsterRepository) Create(ctx context.Context, record *models.CreatureRecord, imageURL string, userID uint64) (*models.Monster, error) {
	args := make([]any, 0, insertFixedParams+len(schemas.InsertColumns()))
	args = append(args, userID, imageURL)
	args = append(args, schemas.InsertValues(record)...)

	var monster models.Monster
	if err := pgxscan.Get(ctx, r.db, &monster, insertMonsterQuery, args...); err != nil {
		r.logger.Error("Failed to insert monster", zap.Uint64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	r.logger.Debug("Monster inserted", zap.Int64("monster_id", monster.ID), zap.Uint64("user_id", userID))
	return &monster, nil
}

func (r *pgMonsterRepository) ListByOwner(ctx context.Context, userID uint64) ([]models.Monster, error) {
	monsters := make([]models.Monster, 0)
	if err := pgxscan.Select(ctx, r.db, &monsters, listByOwnerQuery, userID); err != nil {
		r.logger.Error("Failed to list monsters by owner", zap.Uint64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("database error listing monsters for user %d: %w", userID, err)
	}
	return monsters, nil
}

func (r *pgMonsterRepository) ListAll(ctx context.Context) ([]models.Monster, error) {
	monsters := make([]models.Monster, 0)
	if err := pgxscan.Select(ctx, r.db, &monsters, listAllQuery); err != nil {
		r.logger.Error("Failed to list all monsters", zap.Error(err))
		return nil, fmt.Errorf("database error listing monsters: %w", err)
	}
	return monsters, nil
}

func (r *pgMonsterRepository) GetByID(ctx context.Context, id int64) (*models.Monster, error) {
	var monster models.Monster
	if err := pgxscan.Get(ctx, r.db, &monster, getByIDQuery, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: monster %d", models.ErrNotFound, id)
		}
		r.logger.Error("Failed to get monster", zap.Int64("monster_id", id), zap.Error(err))
		return nil, fmt.Errorf("database error getting monster %d: %w", id, err)
	}
	return &monster, nil
}

func (r *pgMonsterRepository) GetImageURL(ctx context.Context, id int64) (string, error) {
	var imageURL string
	err := r.db.QueryRow(ctx, getImageURLQuery, id).Scan(&imageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: image of monster %d", models.ErrNotFound, id)
		}
		r.logger.Error("Failed to get monster image", zap.Int64("monster_id", id), zap.Error(err))
		return "", fmt.Errorf("database error getting image of monster %d: %w", id, err)
	}
	return imageURL, nil
}

// Delete удаляет запись. Администратор удаляет любую, остальные только свои.
// Если ни одна строка не удалена, возвращается models.ErrForbidden.
func (r *pgMonsterRepository) Delete(ctx context.Context, id int64, principal models.Principal) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if principal.Admin {
		tag, err = r.db.Exec(ctx, deleteAnyQuery, id)
	} else {
		tag, err = r.db.Exec(ctx, deleteOwnedQuery, id, principal.ID)
	}
	if err != nil {
		r.logger.Error("Failed to delete monster", zap.Int64("monster_id", id), zap.Uint64("user_id", principal.ID), zap.Error(err))
		return fmt.Errorf("database error deleting monster %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: monster %d cannot be deleted by user %d", models.ErrForbidden, id, principal.ID)
	}
	return nil
}

// Rename меняет имя собственного монстра.
func (r *pgMonsterRepository) Rename(ctx context.Context, id int64, userID uint64, name string) (*models.Monster, error) {
	var monster models.Monster
	if err := pgxscan.Get(ctx, r.db, &monster, renameOwnedQuery, id, userID, name); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: monster %d of user %d", models.ErrNotFound, id, userID)
		}
		r.logger.Error("Failed to rename monster", zap.Int64("monster_id", id), zap.Uint64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("database error renaming monster %d: %w", id, err)
	}
	return &monster, nil
}

func (r *pgMonsterRepository) ImageReferenced(ctx context.Context, imageURL string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, imageReferencedQuery, imageURL).Scan(&exists); err != nil {
		r.logger.Error("Failed to check image references", zap.String("image_url", imageURL), zap.Error(err))
		return false, fmt.Errorf("database error checking references to %s: %w", imageURL, err)
	}
	return exists, nil
}
