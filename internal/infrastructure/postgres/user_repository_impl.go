package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saharansameer/wavytv-backend/internal/domain/entity"
	"github.com/saharansameer/wavytv-backend/internal/domain/repository"
)

// SQLSTATE for unique-constraint violations.
const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `
	id, username, email, full_name, password_hash,
	avatar_url, avatar_asset_id, cover_image_url, cover_image_asset_id,
	watch_history, created_at, updated_at
`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Password,
		&u.Avatar.URL, &u.Avatar.AssetID, &u.CoverImage.URL, &u.CoverImage.AssetID,
		&u.WatchHistory, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(u *entity.User) error {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, password_hash, avatar_url, avatar_asset_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.FullName, u.Password, u.Avatar.URL, u.Avatar.AssetID)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapUnique(err)
	}
	return nil
}

func (r *UserRepository) GetByID(id string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(context.Background(),
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(email string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(context.Background(),
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) GetByUsername(username string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(context.Background(),
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepository) UpdateAccount(id, fullName, username, email string) error {
	res, err := r.pool.Exec(context.Background(), `
		UPDATE users
		SET full_name = $1, username = $2, email = $3, updated_at = $4
		WHERE id = $5
	`, fullName, username, email, time.Now(), id)
	if err != nil {
		return mapUnique(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateImages(id string, avatar, cover *entity.ImageRef) error {
	// COALESCE keeps a slot untouched when no new reference was uploaded.
	var aURL, aID, cURL, cID *string
	if avatar != nil {
		aURL, aID = &avatar.URL, &avatar.AssetID
	}
	if cover != nil {
		cURL, cID = &cover.URL, &cover.AssetID
	}
	res, err := r.pool.Exec(context.Background(), `
		UPDATE users
		SET avatar_url           = COALESCE($1, avatar_url),
		    avatar_asset_id      = COALESCE($2, avatar_asset_id),
		    cover_image_url      = COALESCE($3, cover_image_url),
		    cover_image_asset_id = COALESCE($4, cover_image_asset_id),
		    updated_at           = $5
		WHERE id = $6
	`, aURL, aID, cURL, cID, time.Now(), id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(id, passwordHash string) error {
	res, err := r.pool.Exec(context.Background(), `
		UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3
	`, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ChannelProfile is the fixed channel aggregation: match by username,
// count subscriptions in both directions, probe the viewer's subscription.
func (r *UserRepository) ChannelProfile(username, viewerID string) (*entity.ChannelProfile, error) {
	p := &entity.ChannelProfile{}
	row := r.pool.QueryRow(context.Background(), `
		SELECT
			u.full_name,
			u.username,
			u.avatar_url,
			u.cover_image_url,
			(SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscribers_count,
			(SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_count,
			EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.channel_id = u.id AND s.subscriber_id = $2
			) AS is_subscribed
		FROM users u
		WHERE u.username = $1
	`, username, viewerID)

	err := row.Scan(
		&p.FullName, &p.Username, &p.Avatar, &p.CoverImage,
		&p.SubscribersCount, &p.SubscribedCount, &p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// WatchHistory is the fixed history aggregation: unnest the ordered id list,
// join each video and its owner's public fields, keep the stored order.
func (r *UserRepository) WatchHistory(userID string) ([]entity.WatchHistoryEntry, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT
			v.id, v.title, v.description, v.video_url, v.thumbnail_url,
			v.duration, v.views, v.created_at,
			o.username, o.full_name, o.avatar_url
		FROM users u
		CROSS JOIN unnest(u.watch_history) WITH ORDINALITY AS h(video_id, ord)
		JOIN videos v ON v.id = h.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE u.id = $1
		ORDER BY h.ord
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]entity.WatchHistoryEntry, 0)
	for rows.Next() {
		var e entity.WatchHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.VideoURL, &e.ThumbnailURL,
			&e.Duration, &e.Views, &e.CreatedAt,
			&e.Owner.Username, &e.Owner.FullName, &e.Owner.Avatar,
		); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
