package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db, now: time.Now}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id BIGINT NOT NULL AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			path VARCHAR(1024) NOT NULL,
			framework VARCHAR(64) NOT NULL,
			last_build_ns BIGINT NULL,
			user_id BIGINT NOT NULL,
			PRIMARY KEY (id)
		)`,
		`CREATE TABLE IF NOT EXISTS commands (
			id BIGINT NOT NULL AUTO_INCREMENT,
			command VARCHAR(1024) NOT NULL,
			description VARCHAR(1024) NOT NULL,
			project_id BIGINT NOT NULL,
			PRIMARY KEY (id),
			KEY commands_project_idx (project_id)
		)`,
		`CREATE TABLE IF NOT EXISTS command_history (
			id BIGINT NOT NULL AUTO_INCREMENT,
			command TEXT NOT NULL,
			output MEDIUMTEXT NOT NULL,
			exit_code INT NOT NULL DEFAULT 0,
			created_ns BIGINT NOT NULL,
			project_id BIGINT NOT NULL,
			PRIMARY KEY (id),
			KEY history_project_idx (project_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_requests (
			id BIGINT NOT NULL AUTO_INCREMENT,
			type VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL,
			details VARCHAR(1024) NOT NULL,
			gas_limit VARCHAR(64) NOT NULL DEFAULT '',
			gas_price VARCHAR(64) NOT NULL DEFAULT '',
			network VARCHAR(64) NOT NULL,
			contract_name VARCHAR(255) NOT NULL DEFAULT '',
			created_ns BIGINT NOT NULL,
			project_id BIGINT NOT NULL,
			PRIMARY KEY (id),
			KEY tx_status_idx (status, created_ns)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const transactionColumns = `id, type, status, details, gas_limit, gas_price, network, contract_name, created_ns, project_id`

func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	ctx, span := startDBSpan(ctx, "mysql.ListProjects")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, path, framework, last_build_ns, user_id FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var project domain.Project
		var lastBuild sql.NullInt64
		if err := rows.Scan(&project.ID, &project.Name, &project.Path, &project.Framework, &lastBuild, &project.UserID); err != nil {
			return nil, spanError(span, err)
		}
		project.LastBuild = nanosToTime(lastBuild)
		projects = append(projects, project)
	}
	return projects, spanError(span, rows.Err())
}

func (r *Repository) GetProject(ctx context.Context, id int64) (domain.Project, bool, error) {
	ctx, span := startDBSpan(ctx, "mysql.GetProject", attribute.Int64("project.id", id))
	defer span.End()

	var project domain.Project
	var lastBuild sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT id, name, path, framework, last_build_ns, user_id FROM projects WHERE id = ?`, id).
		Scan(&project.ID, &project.Name, &project.Path, &project.Framework, &lastBuild, &project.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, spanError(span, err)
	}
	project.LastBuild = nanosToTime(lastBuild)
	return project, true, nil
}

func (r *Repository) CreateProject(ctx context.Context, input domain.ProjectInput) (domain.Project, error) {
	ctx, span := startDBSpan(ctx, "mysql.CreateProject")
	defer span.End()

	var lastBuild sql.NullInt64
	if input.LastBuild != nil {
		lastBuild = sql.NullInt64{Int64: input.LastBuild.UnixNano(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO projects (name, path, framework, last_build_ns, user_id) VALUES (?, ?, ?, ?, ?)`,
		input.Name, input.Path, input.Framework, lastBuild, input.UserID)
	if err != nil {
		return domain.Project{}, spanError(span, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Project{}, spanError(span, err)
	}
	return domain.Project{ID: id, Name: input.Name, Path: input.Path, Framework: input.Framework, LastBuild: input.LastBuild, UserID: input.UserID}, nil
}

func (r *Repository) QuickCommands(ctx context.Context, projectID int64) ([]domain.QuickCommand, error) {
	ctx, span := startDBSpan(ctx, "mysql.QuickCommands", attribute.Int64("project.id", projectID))
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT id, command, description, project_id FROM commands WHERE project_id = ? ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer rows.Close()

	var commands []domain.QuickCommand
	for rows.Next() {
		var cmd domain.QuickCommand
		if err := rows.Scan(&cmd.ID, &cmd.Command, &cmd.Description, &cmd.ProjectID); err != nil {
			return nil, spanError(span, err)
		}
		commands = append(commands, cmd)
	}
	return commands, spanError(span, rows.Err())
}

func (r *Repository) CreateQuickCommand(ctx context.Context, input domain.QuickCommandInput) (domain.QuickCommand, error) {
	ctx, span := startDBSpan(ctx, "mysql.CreateQuickCommand", attribute.Int64("project.id", input.ProjectID))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `INSERT INTO commands (command, description, project_id) VALUES (?, ?, ?)`,
		input.Command, input.Description, input.ProjectID)
	if err != nil {
		return domain.QuickCommand{}, spanError(span, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.QuickCommand{}, spanError(span, err)
	}
	return domain.QuickCommand{ID: id, Command: input.Command, Description: input.Description, ProjectID: input.ProjectID}, nil
}

func (r *Repository) AppendHistory(ctx context.Context, input domain.HistoryInput) (domain.HistoryEntry, error) {
	ctx, span := startDBSpan(ctx, "mysql.AppendHistory", attribute.Int64("project.id", input.ProjectID))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ts := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO command_history (command, output, exit_code, created_ns, project_id) VALUES (?, ?, ?, ?, ?)`,
		input.Command, input.Output, input.ExitCode, ts.UnixNano(), input.ProjectID)
	if err != nil {
		return domain.HistoryEntry{}, spanError(span, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.HistoryEntry{}, spanError(span, err)
	}
	return domain.HistoryEntry{ID: id, Command: input.Command, Output: input.Output, ExitCode: input.ExitCode, Timestamp: ts, ProjectID: input.ProjectID}, nil
}

func (r *Repository) HistoryByProject(ctx context.Context, filter application.HistoryQueryFilter) ([]domain.HistoryEntry, error) {
	ctx, span := startDBSpan(ctx, "mysql.HistoryByProject", attribute.Int64("project.id", filter.ProjectID))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, command, output, exit_code, created_ns, project_id
		FROM command_history WHERE project_id = ? ORDER BY id DESC LIMIT ?`,
		filter.ProjectID, application.NormalizeHistoryLimit(filter.Limit))
	if err != nil {
		return nil, spanError(span, err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var createdNS int64
		if err := rows.Scan(&entry.ID, &entry.Command, &entry.Output, &entry.ExitCode, &createdNS, &entry.ProjectID); err != nil {
			return nil, spanError(span, err)
		}
		entry.Timestamp = time.Unix(0, createdNS).UTC()
		entries = append(entries, entry)
	}
	return entries, spanError(span, rows.Err())
}

func (r *Repository) CreateTransaction(ctx context.Context, input domain.TransactionInput) (domain.TransactionRequest, error) {
	ctx, span := startDBSpan(ctx, "mysql.CreateTransaction", attribute.Int64("project.id", input.ProjectID))
	defer span.End()

	ts := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO transaction_requests
		(type, status, details, gas_limit, gas_price, network, contract_name, created_ns, project_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.Type, string(domain.TransactionPending), input.Details, input.GasLimit, input.GasPrice,
		input.Network, input.ContractName, ts.UnixNano(), input.ProjectID)
	if err != nil {
		return domain.TransactionRequest{}, spanError(span, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.TransactionRequest{}, spanError(span, err)
	}
	return domain.TransactionRequest{
		ID:           id,
		Type:         input.Type,
		Status:       domain.TransactionPending,
		Details:      input.Details,
		GasLimit:     input.GasLimit,
		GasPrice:     input.GasPrice,
		Network:      input.Network,
		ContractName: input.ContractName,
		ProjectID:    input.ProjectID,
		Timestamp:    ts,
	}, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (domain.TransactionRequest, error) {
	ctx, span := startDBSpan(ctx, "mysql.GetTransaction", attribute.Int64("tx.id", id))
	defer span.End()

	var tx domain.TransactionRequest
	var status string
	var createdNS int64
	err := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transaction_requests WHERE id = ?`, id).
		Scan(&tx.ID, &tx.Type, &status, &tx.Details, &tx.GasLimit, &tx.GasPrice, &tx.Network, &tx.ContractName, &createdNS, &tx.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", application.ErrNotFound, id)
		}
		return domain.TransactionRequest{}, spanError(span, err)
	}
	tx.Status = domain.TransactionStatus(status)
	tx.Timestamp = time.Unix(0, createdNS).UTC()
	return tx, nil
}

func (r *Repository) PendingTransactions(ctx context.Context) ([]domain.TransactionRequest, error) {
	ctx, span := startDBSpan(ctx, "mysql.PendingTransactions")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transaction_requests
		WHERE status = ? ORDER BY created_ns DESC, id DESC`, string(domain.TransactionPending))
	if err != nil {
		return nil, spanError(span, err)
	}
	defer rows.Close()

	var pending []domain.TransactionRequest
	for rows.Next() {
		var tx domain.TransactionRequest
		var status string
		var createdNS int64
		if err := rows.Scan(&tx.ID, &tx.Type, &status, &tx.Details, &tx.GasLimit, &tx.GasPrice, &tx.Network, &tx.ContractName, &createdNS, &tx.ProjectID); err != nil {
			return nil, spanError(span, err)
		}
		tx.Status = domain.TransactionStatus(status)
		tx.Timestamp = time.Unix(0, createdNS).UTC()
		pending = append(pending, tx)
	}
	return pending, spanError(span, rows.Err())
}

// UpdateTransactionStatus re-reads the row afterwards; MySQL reports zero
// affected rows when the status is unchanged, so that count cannot signal a
// missing id.
func (r *Repository) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	ctx, span := startDBSpan(ctx, "mysql.UpdateTransactionStatus",
		attribute.Int64("tx.id", id), attribute.String("tx.status", string(status)))
	defer span.End()

	if _, err := r.db.ExecContext(ctx, `UPDATE transaction_requests SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return domain.TransactionRequest{}, spanError(span, err)
	}
	return r.GetTransaction(ctx, id)
}

// ResolveTransaction only matches a pending row, so of two racing callers the
// second sees zero affected rows.
func (r *Repository) ResolveTransaction(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	ctx, span := startDBSpan(ctx, "mysql.ResolveTransaction",
		attribute.Int64("tx.id", id), attribute.String("tx.status", string(status)))
	defer span.End()

	res, err := r.db.ExecContext(ctx,
		`UPDATE transaction_requests SET status = ? WHERE id = ? AND status = ?`,
		string(status), id, string(domain.TransactionPending))
	if err != nil {
		return domain.TransactionRequest{}, spanError(span, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.TransactionRequest{}, spanError(span, err)
	}
	current, err := r.GetTransaction(ctx, id)
	if err != nil {
		return domain.TransactionRequest{}, err
	}
	if affected == 0 {
		return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d is %s", application.ErrTerminalState, id, current.Status)
	}
	return current, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func nanosToTime(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	ts := time.Unix(0, value.Int64).UTC()
	return &ts
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("devconsole/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func spanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
