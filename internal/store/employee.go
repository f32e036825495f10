package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EmployeeRepository handles persistence for employee profiles.
type EmployeeRepository struct {
	db *sql.DB
}

func NewEmployeeRepository(db *sql.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, account_id, full_name, employee_id, department, title, created_at`

func scanEmployee(row *sql.Row) (types.Employee, error) {
	var employee types.Employee
	err := row.Scan(
		&employee.ID,
		&employee.AccountID,
		&employee.FullName,
		&employee.EmployeeID,
		&employee.Department,
		&employee.Title,
		&employee.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Employee{}, ErrNotFound
		}
		return types.Employee{}, err
	}
	return employee, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (types.Employee, error) {
	const query = `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE id = $1`
	return scanEmployee(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmployeeID looks up a profile by the human-readable badge
// identifier used at the kiosk.
func (r *EmployeeRepository) GetByEmployeeID(ctx context.Context, employeeID string) (types.Employee, error) {
	const query = `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE employee_id = $1`
	return scanEmployee(r.db.QueryRowContext(ctx, query, employeeID))
}

func (r *EmployeeRepository) GetByAccountID(ctx context.Context, accountID string) (types.Employee, error) {
	const query = `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE account_id = $1`
	return scanEmployee(r.db.QueryRowContext(ctx, query, accountID))
}

func (r *EmployeeRepository) Create(ctx context.Context, employee types.Employee) (types.Employee, error) {
	employee.ID = uuid.NewString()
	employee.CreatedAt = time.Now()

	const query = `
		INSERT INTO employees (id, account_id, full_name, employee_id, department, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		employee.ID,
		employee.AccountID,
		employee.FullName,
		employee.EmployeeID,
		employee.Department,
		employee.Title,
		employee.CreatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.Employee{}, ErrConflict
		}
		return types.Employee{}, err
	}
	return employee, nil
}

// ListPublic returns the host-employee picker entries for kiosk visitor
// registration.
func (r *EmployeeRepository) ListPublic(ctx context.Context) ([]types.Employee, error) {
	const query = `
		SELECT ` + employeeColumns + `
		FROM employees
		ORDER BY full_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []types.Employee
	for rows.Next() {
		var employee types.Employee
		if err := rows.Scan(
			&employee.ID,
			&employee.AccountID,
			&employee.FullName,
			&employee.EmployeeID,
			&employee.Department,
			&employee.Title,
			&employee.CreatedAt,
		); err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM employees WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
