package store

import (
	"context"
	"errors"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const botColumns = `id, name, city_name, country_code, bot_token, telegram_chat_id,
	news_language, post_interval_minutes, max_posts_per_run,
	openai_api_key, google_translate_api_key, newsapi_key, is_active,
	status, last_run, total_posts, error_message, run_started_at, created_at, updated_at`

type BotStore struct {
	db *pgxpool.Pool
}

func NewBotStore(db *pgxpool.Pool) *BotStore {
	return &BotStore{db: db}
}

func scanBot(row pgx.Row) (*domain.Bot, error) {
	b := &domain.Bot{}
	var status string
	err := row.Scan(
		&b.ID, &b.Config.Name, &b.Config.CityName, &b.Config.CountryCode, &b.Config.BotToken, &b.Config.TelegramChatID,
		&b.Config.NewsLanguage, &b.Config.PostIntervalMinutes, &b.Config.MaxPostsPerRun,
		&b.Config.OpenAIAPIKey, &b.Config.GoogleTranslateAPIKey, &b.Config.NewsAPIKey, &b.Config.IsActive,
		&status, &b.LastRun, &b.TotalPosts, &b.ErrorMessage, &b.RunStartedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BotStatus(status)
	return b, nil
}

func (s *BotStore) Create(ctx context.Context, b *domain.Bot) error {
	c := b.Config
	err := s.db.QueryRow(ctx,
		`INSERT INTO bots (name, city_name, country_code, bot_token, telegram_chat_id,
			news_language, post_interval_minutes, max_posts_per_run,
			openai_api_key, google_translate_api_key, newsapi_key, is_active, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, total_posts, created_at, updated_at`,
		c.Name, c.CityName, c.CountryCode, c.BotToken, c.TelegramChatID,
		c.NewsLanguage, c.PostIntervalMinutes, c.MaxPostsPerRun,
		c.OpenAIAPIKey, c.GoogleTranslateAPIKey, c.NewsAPIKey, c.IsActive, string(b.Status),
	).Scan(&b.ID, &b.TotalPosts, &b.CreatedAt, &b.UpdatedAt)
	return wrapErr("create bot", err)
}

func (s *BotStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	b, err := scanBot(s.db.QueryRow(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("get bot", err)
	}
	return b, nil
}

func (s *BotStore) List(ctx context.Context, activeOnly bool) ([]domain.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("list bots", err)
	}
	defer rows.Close()

	bots := []domain.Bot{}
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, wrapErr("scan bot", err)
		}
		bots = append(bots, *b)
	}
	return bots, wrapErr("list bots", rows.Err())
}

func (s *BotStore) UpdateConfig(ctx context.Context, id uuid.UUID, c domain.BotConfig) (*domain.Bot, error) {
	b, err := scanBot(s.db.QueryRow(ctx,
		`UPDATE bots SET
			name = $2, city_name = $3, country_code = $4, bot_token = $5, telegram_chat_id = $6,
			news_language = $7, post_interval_minutes = $8, max_posts_per_run = $9,
			openai_api_key = $10, google_translate_api_key = $11, newsapi_key = $12, is_active = $13,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+botColumns,
		id, c.Name, c.CityName, c.CountryCode, c.BotToken, c.TelegramChatID,
		c.NewsLanguage, c.PostIntervalMinutes, c.MaxPostsPerRun,
		c.OpenAIAPIKey, c.GoogleTranslateAPIKey, c.NewsAPIKey, c.IsActive,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("update bot", err)
	}
	return b, nil
}

// Delete removes the bot; its runs go with it through ON DELETE CASCADE.
func (s *BotStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete bot", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BotStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.BotStatus, errorMessage *string) (*domain.Bot, error) {
	if status != domain.BotStatusError {
		errorMessage = nil
	}
	b, err := scanBot(s.db.QueryRow(ctx,
		`UPDATE bots SET status = $2, error_message = $3,
			run_started_at = CASE WHEN $2 = 'running' THEN COALESCE(run_started_at, NOW()) END,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+botColumns,
		id, string(status), errorMessage,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("set bot status", err)
	}
	return b, nil
}

func (s *BotStore) TryStartRun(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	b, err := scanBot(s.db.QueryRow(ctx,
		`UPDATE bots SET status = 'running', error_message = NULL,
			run_started_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status <> 'running'
		 RETURNING `+botColumns,
		id,
	))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapErr("start run", err)
	}

	// No row matched: the bot is missing or someone else holds the run.
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bots WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, wrapErr("start run", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (s *BotStore) CompleteRun(ctx context.Context, run *domain.Run) (*domain.Bot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, wrapErr("begin complete run", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	next := run.Status.NextBotStatus()
	var errorMessage *string
	if next == domain.BotStatusError {
		errorMessage = run.ErrorMessage
	}

	b, err := scanBot(tx.QueryRow(ctx,
		`UPDATE bots SET status = $2, error_message = $3, last_run = $4,
			total_posts = total_posts + $5, run_started_at = NULL, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+botColumns,
		run.BotID, string(next), errorMessage, run.RunTime, run.Posted,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("complete run", err)
	}

	if err := appendRun(ctx, tx, run); err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("append run", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapErr("commit complete run", err)
	}
	return b, nil
}

func (s *BotStore) MarkStale(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE bots SET status = 'error', error_message = $2,
			run_started_at = NULL, updated_at = NOW()
		 WHERE status = 'running' AND run_started_at < $1
		 RETURNING id`,
		cutoff, message,
	)
	if err != nil {
		return nil, wrapErr("mark stale bots", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapErr("mark stale bots", err)
	}
	return ids, nil
}
