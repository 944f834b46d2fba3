package storage

import (
	"context"

	"github.com/temirov/billdesk/internal/billing"
)

const (
	projectResourceConstant = "project"
	projectColumnsConstant  = "id, customer_id, name, description, status, repository_url, deploy_provider, deploy_target_id, deploy_url, created_at, updated_at"
)

// CreateProject inserts a project.
func (store *Store) CreateProject(executionContext context.Context, project billing.Project) error {
	_, insertError := store.database.ExecContext(executionContext,
		`INSERT INTO projects (`+projectColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.CustomerID, project.Name, project.Description, string(project.Status), project.RepositoryURL,
		project.DeployProvider, project.DeployTargetID, project.DeployURL,
		formatTimestamp(project.CreatedAt), formatTimestamp(project.UpdatedAt),
	)
	return insertError
}

// UpdateProject overwrites a project.
func (store *Store) UpdateProject(executionContext context.Context, project billing.Project) error {
	result, updateError := store.database.ExecContext(executionContext,
		`UPDATE projects SET customer_id = ?, name = ?, description = ?, status = ?, repository_url = ?,
			deploy_provider = ?, deploy_target_id = ?, deploy_url = ?, updated_at = ? WHERE id = ?`,
		project.CustomerID, project.Name, project.Description, string(project.Status), project.RepositoryURL,
		project.DeployProvider, project.DeployTargetID, project.DeployURL, formatTimestamp(project.UpdatedAt), project.ID,
	)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, projectResourceConstant, project.ID)
}

// GetProject loads a project by identifier.
func (store *Store) GetProject(executionContext context.Context, projectID string) (billing.Project, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+projectColumnsConstant+` FROM projects WHERE id = ?`, projectID)
	project, scanError := scanProject(row)
	if scanError != nil {
		return billing.Project{}, translateNoRows(scanError, projectResourceConstant, projectID)
	}
	return project, nil
}

// ListProjects returns projects, optionally restricted to one customer.
func (store *Store) ListProjects(executionContext context.Context, customerID string) ([]billing.Project, error) {
	rows, queryError := store.database.QueryContext(executionContext,
		`SELECT `+projectColumnsConstant+` FROM projects WHERE (? = '' OR customer_id = ?) ORDER BY created_at DESC, id`,
		customerID, customerID,
	)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	projects := []billing.Project{}
	for rows.Next() {
		project, scanError := scanProject(rows)
		if scanError != nil {
			return nil, scanError
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project.
func (store *Store) DeleteProject(executionContext context.Context, projectID string) error {
	result, deleteError := store.database.ExecContext(executionContext, `DELETE FROM projects WHERE id = ?`, projectID)
	if deleteError != nil {
		return deleteError
	}
	return requireAffected(result, projectResourceConstant, projectID)
}

func scanProject(scanner rowScanner) (billing.Project, error) {
	var project billing.Project
	var status, createdAt, updatedAt string
	if scanError := scanner.Scan(
		&project.ID, &project.CustomerID, &project.Name, &project.Description, &status, &project.RepositoryURL,
		&project.DeployProvider, &project.DeployTargetID, &project.DeployURL, &createdAt, &updatedAt,
	); scanError != nil {
		return billing.Project{}, scanError
	}
	project.Status = billing.ProjectStatus(status)
	var parseError error
	if project.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return billing.Project{}, parseError
	}
	if project.UpdatedAt, parseError = parseTimestamp(updatedAt); parseError != nil {
		return billing.Project{}, parseError
	}
	return project, nil
}
