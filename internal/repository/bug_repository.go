package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

const (
	bugColumns = `id, title, description, status, priority, created_by, assigned_to, comments, created_at, updated_at`

	priorityRankExpr = `CASE priority WHEN 'Low' THEN 0 WHEN 'Medium' THEN 1 ELSE 2 END`
	statusRankExpr   = `CASE status WHEN 'Open' THEN 0 WHEN 'In Progress' THEN 1 ELSE 2 END`
)

type bugRepository struct {
	pool *pgxpool.Pool
}

// NewBugRepository returns a Postgres-backed implementation. Comments are
// kept in a JSONB column so every bug mutation touches exactly one row.
func NewBugRepository(pool *pgxpool.Pool) BugRepository {
	return &bugRepository{pool: pool}
}

func (r *bugRepository) Create(ctx context.Context, bug *domain.Bug) error {
	const query = `
        INSERT INTO bugs (title, description, status, priority, created_by, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	if bug.Comments == nil {
		bug.Comments = []domain.Comment{}
	}
	return r.pool.QueryRow(ctx, query,
		bug.Title,
		bug.Description,
		bug.Status,
		bug.Priority,
		bug.CreatedBy,
		bug.AssignedTo,
	).Scan(&bug.ID, &bug.CreatedAt, &bug.UpdatedAt)
}

func (r *bugRepository) GetByID(ctx context.Context, id string) (*domain.Bug, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}
	bug, err := scanBug(r.pool.QueryRow(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id=$1`, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return bug, nil
}

func (r *bugRepository) Update(ctx context.Context, id string, patch domain.BugPatch) (*domain.Bug, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if patch.AssignSet && patch.AssignedTo != nil {
		if err := lockDeveloper(ctx, tx, *patch.AssignedTo); err != nil {
			return nil, err
		}
	}

	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.AssignSet {
		set("assigned_to", patch.AssignedTo)
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE bugs SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), bugColumns)
	bug, err := scanBug(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return bug, nil
}

// lockDeveloper holds a share lock on the assignee row until the transaction
// ends so the user cannot be deleted or demoted under the write.
func lockDeveloper(ctx context.Context, tx pgx.Tx, userID string) error {
	if !validUUID(userID) {
		return ErrInvalidAssignee
	}
	var role domain.Role
	err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id=$1 FOR SHARE`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvalidAssignee
	}
	if err != nil {
		return err
	}
	if role != domain.RoleDeveloper {
		return ErrInvalidAssignee
	}
	return nil
}

func (r *bugRepository) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM bugs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *bugRepository) List(ctx context.Context, filter BugFilter) ([]domain.Bug, int64, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		if !validUUID(*filter.CreatedBy) {
			return []domain.Bug{}, 0, nil
		}
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		if !validUUID(*filter.AssignedTo) {
			return []domain.Bug{}, 0, nil
		}
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bugs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM bugs WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		bugColumns, where, orderBy(filter.Sort), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Bug{}
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *bug)
	}
	return result, total, rows.Err()
}

func orderBy(order BugSort) string {
	if order.Field == "" {
		order = DefaultBugSort
	}
	dir := "ASC"
	if order.Descending {
		dir = "DESC"
	}
	switch order.Field {
	case SortPriority:
		return fmt.Sprintf("%s %s, created_at DESC, id", priorityRankExpr, dir)
	case SortStatus:
		return fmt.Sprintf("%s %s, created_at DESC, id", statusRankExpr, dir)
	default:
		return fmt.Sprintf("created_at %s, id", dir)
	}
}

func (r *bugRepository) AddComment(ctx context.Context, bugID string, comment domain.Comment) (*domain.Bug, error) {
	if !validUUID(bugID) {
		return nil, ErrNotFound
	}
	encoded, err := json.Marshal([]domain.Comment{comment})
	if err != nil {
		return nil, fmt.Errorf("encode comment: %w", err)
	}
	query := `UPDATE bugs SET comments = comments || $1::jsonb, updated_at=NOW()
              WHERE id=$2 RETURNING ` + bugColumns
	bug, err := scanBug(r.pool.QueryRow(ctx, query, string(encoded), bugID))
	if err != nil {
		return nil, mapPgError(err)
	}
	return bug, nil
}

func (r *bugRepository) DeleteComment(ctx context.Context, bugID, commentID string) error {
	if !validUUID(bugID) {
		return ErrNotFound
	}
	const query = `
        UPDATE bugs SET
            comments = COALESCE((SELECT jsonb_agg(c) FROM jsonb_array_elements(comments) c WHERE c->>'id' <> $1), '[]'::jsonb),
            updated_at = NOW()
        WHERE id=$2 AND comments @> jsonb_build_array(jsonb_build_object('id', $1::text))`
	cmd, err := r.pool.Exec(ctx, query, commentID, bugID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBug(row pgx.Row) (*domain.Bug, error) {
	var (
		bug      domain.Bug
		comments []byte
	)
	if err := row.Scan(
		&bug.ID,
		&bug.Title,
		&bug.Description,
		&bug.Status,
		&bug.Priority,
		&bug.CreatedBy,
		&bug.AssignedTo,
		&comments,
		&bug.CreatedAt,
		&bug.UpdatedAt,
	); err != nil {
		return nil, err
	}
	bug.Comments = []domain.Comment{}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &bug.Comments); err != nil {
			return nil, fmt.Errorf("decode comments: %w", err)
		}
	}
	return &bug, nil
}

// NewPostgresStores bundles the Postgres repositories around pool.
func NewPostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Users:  NewUserRepository(pool),
		Bugs:   NewBugRepository(pool),
		Health: pool,
	}
}
