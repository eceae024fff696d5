package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
)

const botColumns = `id, name, city_name, country_code, bot_token, telegram_chat_id,
	news_language, post_interval_minutes, max_posts_per_run,
	openai_api_key, google_translate_api_key, newsapi_key, is_active,
	status, last_run, total_posts, error_message, run_started_at, created_at, updated_at`

type BotStore struct {
	db *sql.DB
}

func NewBotStore(db *sql.DB) *BotStore {
	return &BotStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*domain.Bot, error) {
	b := &domain.Bot{}
	var (
		status                          string
		openai, translate, news, errMsg sql.NullString
		lastRun, runStartedAt           sql.NullString
		createdAt, updatedAt            string
	)
	err := row.Scan(
		&b.ID, &b.Config.Name, &b.Config.CityName, &b.Config.CountryCode, &b.Config.BotToken, &b.Config.TelegramChatID,
		&b.Config.NewsLanguage, &b.Config.PostIntervalMinutes, &b.Config.MaxPostsPerRun,
		&openai, &translate, &news, &b.Config.IsActive,
		&status, &lastRun, &b.TotalPosts, &errMsg, &runStartedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BotStatus(status)
	b.Config.OpenAIAPIKey = nullString(openai)
	b.Config.GoogleTranslateAPIKey = nullString(translate)
	b.Config.NewsAPIKey = nullString(news)
	b.ErrorMessage = nullString(errMsg)
	if b.LastRun, err = parseNullTime(lastRun); err != nil {
		return nil, err
	}
	if b.RunStartedAt, err = parseNullTime(runStartedAt); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BotStore) Create(ctx context.Context, b *domain.Bot) error {
	now := time.Now().UTC()
	b.ID = uuid.New()
	b.TotalPosts = 0
	b.CreatedAt = now
	b.UpdatedAt = now
	c := b.Config
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bots (id, name, city_name, country_code, bot_token, telegram_chat_id,
			news_language, post_interval_minutes, max_posts_per_run,
			openai_api_key, google_translate_api_key, newsapi_key, is_active, status,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), c.Name, c.CityName, c.CountryCode, c.BotToken, c.TelegramChatID,
		c.NewsLanguage, c.PostIntervalMinutes, c.MaxPostsPerRun,
		nullableString(c.OpenAIAPIKey), nullableString(c.GoogleTranslateAPIKey), nullableString(c.NewsAPIKey),
		c.IsActive, string(b.Status), formatTime(now), formatTime(now),
	)
	return wrapErr("create bot", err)
}

func (s *BotStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	return getBot(ctx, s.db, id)
}

func getBot(ctx context.Context, q execer, id uuid.UUID) (*domain.Bot, error) {
	b, err := scanBot(q.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("get bot", err)
	}
	return b, nil
}

func (s *BotStore) List(ctx context.Context, activeOnly bool) ([]domain.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query)
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET
			name = ?, city_name = ?, country_code = ?, bot_token = ?, telegram_chat_id = ?,
			news_language = ?, post_interval_minutes = ?, max_posts_per_run = ?,
			openai_api_key = ?, google_translate_api_key = ?, newsapi_key = ?, is_active = ?,
			updated_at = ?
		 WHERE id = ?`,
		c.Name, c.CityName, c.CountryCode, c.BotToken, c.TelegramChatID,
		c.NewsLanguage, c.PostIntervalMinutes, c.MaxPostsPerRun,
		nullableString(c.OpenAIAPIKey), nullableString(c.GoogleTranslateAPIKey), nullableString(c.NewsAPIKey), c.IsActive,
		formatTime(time.Now()), id.String(),
	)
	if err := affectedOne(res, err, "update bot"); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *BotStore) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin delete bot", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit in case the connection was opened without foreign_keys.
	if _, err := tx.ExecContext(ctx, `DELETE FROM bot_runs WHERE bot_id = ?`, id.String()); err != nil {
		return wrapErr("delete bot runs", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, id.String())
	if err := affectedOne(res, err, "delete bot"); err != nil {
		return err
	}
	return wrapErr("commit delete bot", tx.Commit())
}

func (s *BotStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.BotStatus, errorMessage *string) (*domain.Bot, error) {
	if status != domain.BotStatusError {
		errorMessage = nil
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET status = ?, error_message = ?,
			run_started_at = CASE WHEN ? = 'running' THEN COALESCE(run_started_at, ?) END,
			updated_at = ?
		 WHERE id = ?`,
		string(status), nullableString(errorMessage), string(status), now, now, id.String(),
	)
	if err := affectedOne(res, err, "set bot status"); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *BotStore) TryStartRun(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET status = 'running', error_message = NULL, run_started_at = ?, updated_at = ?
		 WHERE id = ? AND status <> 'running'`,
		now, now, id.String(),
	)
	if err != nil {
		return nil, wrapErr("start run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("start run", err)
	}
	if n == 1 {
		return s.GetByID(ctx, id)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bots WHERE id = ?)`, id.String(),
	).Scan(&exists); err != nil {
		return nil, wrapErr("start run", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (s *BotStore) CompleteRun(ctx context.Context, run *domain.Run) (*domain.Bot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin complete run", err)
	}
	defer func() { _ = tx.Rollback() }()

	next := run.Status.NextBotStatus()
	var errorMessage *string
	if next == domain.BotStatusError {
		errorMessage = run.ErrorMessage
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE bots SET status = ?, error_message = ?, last_run = ?,
			total_posts = total_posts + ?, run_started_at = NULL, updated_at = ?
		 WHERE id = ?`,
		string(next), nullableString(errorMessage), formatTime(run.RunTime),
		run.Posted, formatTime(time.Now()), run.BotID.String(),
	)
	if err := affectedOne(res, err, "complete run"); err != nil {
		return nil, err
	}
	if err := appendRun(ctx, tx, run); err != nil {
		return nil, wrapErr("append run", err)
	}
	b, err := getBot(ctx, tx, run.BotID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapErr("commit complete run", err)
	}
	return b, nil
}

func (s *BotStore) MarkStale(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE bots SET status = 'error', error_message = ?, run_started_at = NULL, updated_at = ?
		 WHERE status = 'running' AND run_started_at < ?
		 RETURNING id`,
		message, formatTime(time.Now()), formatTime(cutoff),
	)
	if err != nil {
		return nil, wrapErr("mark stale bots", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("scan stale bot", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("mark stale bots", rows.Err())
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		return wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
