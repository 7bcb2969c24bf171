package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"planora/internal/logger"
	"planora/internal/models/project"
	"planora/internal/models/task"
	"planora/internal/models/user"
	repo "planora/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const taskColumns = `id, project_id, title, description, status, priority, assigned_to_id, deadline, created_at`

const slowQuery = time.Millisecond * 100

// Storage - бэкенд поверх PostgreSQL: сам назначает id и created_at
type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

var _ repo.Backend = (*Storage)(nil)

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// Migrate применяет встроенные миграции. При отмене ctx мигратор
// останавливается после текущей миграции.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("применение миграций: %w", err)
	}
	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	logger.Info("Repository: Применение миграций")
	if err := runMigration(ctx, m, m.Up); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Миграции не применены", err)
		return fmt.Errorf("применение миграций: %w", err)
	}
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("откат миграций: %w", err)
	}
	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	logger.Info("Repository: Откат миграций")
	if err := runMigration(ctx, m, m.Down); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Миграции не откачены", err)
		return fmt.Errorf("откат миграций: %w", err)
	}
	return nil
}

func runMigration(ctx context.Context, m *migrate.Migrate, step func() error) error {
	done := make(chan error, 1)
	go func() { done <- step() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		m.GracefulStop <- true
		<-done
		return ctx.Err()
	}
}

func (s *Storage) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("источник миграций: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.connString))
	if err != nil {
		return nil, fmt.Errorf("инициализация миграций: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Warn("Repository: Ошибка закрытия мигратора", zap.Error(err))
	}
}

// migrateURL меняет схему на ту, под которой зарегистрирован драйвер pgx/v5
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

func (s *Storage) FetchTasks(ctx context.Context, filter repo.Filter) ([]task.Task, error) {
	start := time.Now()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.AssignedTo != "" {
		add("assigned_to_id = $%d", filter.AssignedTo)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return tasks, nil
}

func (s *Storage) CreateTask(ctx context.Context, payload task.Task) (*task.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, &repo.APIError{StatusCode: 422, Detail: err.Error()}
	}
	start := time.Now()

	query := `INSERT INTO tasks
				(id, project_id, title, description, status, priority, assigned_to_id, deadline, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING ` + taskColumns

	created, err := scanTask(s.pool.QueryRow(ctx, query,
		uuid.NewString(),
		payload.ProjectID,
		payload.Title,
		payload.Description,
		payload.Status,
		payload.Priority,
		payload.AssignedTo,
		payload.Deadline,
		time.Now().UTC(),
	))
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("добавление задачи: %w", mapPgError(err))
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return &created, nil
}

// UpdateTask заменяет изменяемые поля; project_id и created_at не трогаются
func (s *Storage) UpdateTask(ctx context.Context, id string, payload task.Task) (*task.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, &repo.APIError{StatusCode: 422, Detail: err.Error()}
	}
	start := time.Now()

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				status = $3,
				priority = $4,
				assigned_to_id = $5,
				deadline = $6
			WHERE id = $7 AND project_id = $8
			RETURNING ` + taskColumns

	updated, err := scanTask(s.pool.QueryRow(ctx, query,
		payload.Title,
		payload.Description,
		payload.Status,
		payload.Priority,
		payload.AssignedTo,
		payload.Deadline,
		id,
		payload.ProjectID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Info("Repository: Задача не найдена", zap.String("task_id", id))
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return nil, fmt.Errorf("обновление задачи: %w", mapPgError(err))
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return &updated, nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	start := time.Now()

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: Удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username FROM users ORDER BY username`)
	if err != nil {
		logger.Error("Repository: Не удалось получить пользователей", err)
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		return nil, fmt.Errorf("сканирование пользователей: %w", err)
	}
	return users, nil
}

func (s *Storage) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, owner_id FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("проект %s: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		logger.Error("Repository: Не удалось получить проект", err, zap.String("project_id", id))
		return nil, fmt.Errorf("получение проекта: %w", err)
	}
	return &p, nil
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.AssignedTo,
		&t.Deadline,
		&t.CreatedAt,
	)
	return t, err
}

// mapPgError сводит нарушения ограничений к ошибкам контракта
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", repo.ErrConflict, pgErr.Detail)
	case "23503":
		return &repo.APIError{StatusCode: 422, Detail: pgErr.Detail}
	}
	return err
}
