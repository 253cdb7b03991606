package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/terra-clan/autotest-engine/internal/models"
)

const (
	usersTable        = "system_user"
	projectsTable     = "auto_projects"
	tasksTable        = "auto_tasks"
	environmentsTable = "auto_environments"
)

var projectColumns = []string{
	"p.id", "p.name", "p.description", "p.creator_id", "p.created_at", "p.updated_at",
	"u.id", "u.name", "u.username",
}

var environmentColumns = []string{
	"e.id", "e.name", "e.base_url", "e.description", "e.creator_id", "e.created_at", "e.updated_at",
	"u.id", "u.name", "u.username",
}

var taskColumns = []string{
	"t.id", "t.name", "t.project_id", "t.description", "t.status", "t.start_time", "t.end_time",
	"t.summary", "t.total_count", "t.success_count", "t.fail_count", "t.skip_count", "t.error_count",
	"t.logs", "t.actual_response", "t.creator_id", "t.created_at", "t.updated_at",
	"p.name", "u.id", "u.name", "u.username",
}

// queries builds the SQL shared by the PostgreSQL and SQLite repositories.
// Only the placeholder flavor differs between them.
type queries struct {
	flavor sqlbuilder.Flavor
}

func (q queries) insertUser(u *models.User) (string, []interface{}) {
	ib := q.flavor.NewInsertBuilder()
	ib.InsertInto(usersTable).
		Cols("name", "username", "created_at").
		Values(u.Name, u.Username, u.CreatedAt)
	query, args := ib.Build()
	return query + " RETURNING id", args
}

func (q queries) selectUserByUsername(username string) (string, []interface{}) {
	sb := q.flavor.NewSelectBuilder()
	sb.Select("id", "name", "username", "created_at").
		From(usersTable).
		Where(sb.Equal("username", username))
	return sb.Build()
}

func (q queries) insertProject(p *models.Project) (string, []interface{}) {
	ib := q.flavor.NewInsertBuilder()
	ib.InsertInto(projectsTable).
		Cols("name", "description", "creator_id", "created_at", "updated_at").
		Values(p.Name, p.Description, nullInt64(p.CreatorID), p.CreatedAt, p.UpdatedAt)
	query, args := ib.Build()
	return query + " RETURNING id", args
}

func (q queries) projectSelect() *sqlbuilder.SelectBuilder {
	sb := q.flavor.NewSelectBuilder()
	sb.Select(projectColumns...).
		From(projectsTable+" p").
		JoinWithOption(sqlbuilder.LeftJoin, usersTable+" u", "u.id = p.creator_id")
	return sb
}

func (q queries) selectProject(id int64) (string, []interface{}) {
	sb := q.projectSelect()
	sb.Where(sb.Equal("p.id", id))
	return sb.Build()
}

func (q queries) selectProjectByName(name string) (string, []interface{}) {
	sb := q.projectSelect()
	sb.Where(sb.Equal("p.name", name))
	return sb.Build()
}

func (q queries) updateProject(p *models.Project) (string, []interface{}) {
	ub := q.flavor.NewUpdateBuilder()
	ub.Update(projectsTable).
		Set(
			ub.Assign("name", p.Name),
			ub.Assign("description", p.Description),
			ub.Assign("updated_at", p.UpdatedAt),
		).
		Where(ub.Equal("id", p.ID))
	return ub.Build()
}

func (q queries) deleteByIDs(table string, ids []int64) (string, []interface{}) {
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	db := q.flavor.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.In("id", values...))
	return db.Build()
}

// listProjects returns the page query and the matching count query
func (q queries) listProjects(f models.ProjectFilter) (list string, listArgs []interface{}, count string, countArgs []interface{}) {
	sb := q.projectSelect()
	applyProjectFilter(sb, f)
	sb.OrderBy("p.created_at DESC", "p.id DESC")
	if f.Limit > 0 {
		sb.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sb.Offset(f.Offset)
	}
	list, listArgs = sb.Build()

	cb := q.flavor.NewSelectBuilder()
	cb.Select("COUNT(*)").From(projectsTable + " p")
	applyProjectFilter(cb, f)
	count, countArgs = cb.Build()
	return list, listArgs, count, countArgs
}

func applyProjectFilter(sb *sqlbuilder.SelectBuilder, f models.ProjectFilter) {
	conds := searchConds(sb, "p", f.NameLike, f.CreatedFrom, f.CreatedTo)
	if len(conds) > 0 {
		sb.Where(conds...)
	}
}

func (q queries) listProjectOptions() (string, []interface{}) {
	sb := q.flavor.NewSelectBuilder()
	sb.Select("id", "name", "description").
		From(projectsTable).
		OrderBy("name")
	return sb.Build()
}

func (q queries) insertTask(t *models.Task) (string, []interface{}, error) {
	summary, logs, err := encodeTaskJSON(t)
	if err != nil {
		return "", nil, err
	}
	ib := q.flavor.NewInsertBuilder()
	ib.InsertInto(tasksTable).
		Cols("name", "project_id", "description", "status", "start_time", "end_time",
			"summary", "total_count", "success_count", "fail_count", "skip_count", "error_count",
			"logs", "actual_response", "creator_id", "created_at", "updated_at").
		Values(t.Name, t.ProjectID, t.Description, string(t.Status), nullTime(t.StartTime), nullTime(t.EndTime),
			summary, t.Counts.Total, t.Counts.Success, t.Counts.Fail, t.Counts.Skip, t.Counts.Error,
			logs, nullJSON(t.ActualResponse), nullInt64(t.CreatorID), t.CreatedAt, t.UpdatedAt)
	query, args := ib.Build()
	return query + " RETURNING id", args, nil
}

func (q queries) taskSelect() *sqlbuilder.SelectBuilder {
	sb := q.flavor.NewSelectBuilder()
	sb.Select(taskColumns...).
		From(tasksTable+" t").
		Join(projectsTable+" p", "p.id = t.project_id").
		JoinWithOption(sqlbuilder.LeftJoin, usersTable+" u", "u.id = t.creator_id")
	return sb
}

func (q queries) selectTask(id int64) (string, []interface{}) {
	sb := q.taskSelect()
	sb.Where(sb.Equal("t.id", id))
	return sb.Build()
}

func (q queries) updateTask(t *models.Task) (string, []interface{}, error) {
	summary, logs, err := encodeTaskJSON(t)
	if err != nil {
		return "", nil, err
	}
	ub := q.flavor.NewUpdateBuilder()
	ub.Update(tasksTable).
		Set(
			ub.Assign("name", t.Name),
			ub.Assign("project_id", t.ProjectID),
			ub.Assign("description", t.Description),
			ub.Assign("status", string(t.Status)),
			ub.Assign("start_time", nullTime(t.StartTime)),
			ub.Assign("end_time", nullTime(t.EndTime)),
			ub.Assign("summary", summary),
			ub.Assign("total_count", t.Counts.Total),
			ub.Assign("success_count", t.Counts.Success),
			ub.Assign("fail_count", t.Counts.Fail),
			ub.Assign("skip_count", t.Counts.Skip),
			ub.Assign("error_count", t.Counts.Error),
			ub.Assign("logs", logs),
			ub.Assign("actual_response", nullJSON(t.ActualResponse)),
			ub.Assign("updated_at", t.UpdatedAt),
		).
		Where(ub.Equal("id", t.ID))
	query, args := ub.Build()
	return query, args, nil
}

func (q queries) listTasks(f models.TaskFilter) (list string, listArgs []interface{}, count string, countArgs []interface{}) {
	sb := q.taskSelect()
	applyTaskFilter(sb, f)
	sb.OrderBy("t.created_at DESC", "t.id DESC")
	if f.Limit > 0 {
		sb.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sb.Offset(f.Offset)
	}
	list, listArgs = sb.Build()

	cb := q.flavor.NewSelectBuilder()
	cb.Select("COUNT(*)").From(tasksTable + " t")
	applyTaskFilter(cb, f)
	count, countArgs = cb.Build()
	return list, listArgs, count, countArgs
}

func applyTaskFilter(sb *sqlbuilder.SelectBuilder, f models.TaskFilter) {
	conds := searchConds(sb, "t", f.NameLike, f.CreatedFrom, f.CreatedTo)
	if f.ProjectID != nil {
		conds = append(conds, sb.Equal("t.project_id", *f.ProjectID))
	}
	if f.Status != "" {
		conds = append(conds, sb.Equal("t.status", string(f.Status)))
	}
	if len(conds) > 0 {
		sb.Where(conds...)
	}
}

// listStaleTasks selects running tasks started before the cutoff
func (q queries) listStaleTasks(before time.Time) (string, []interface{}) {
	sb := q.taskSelect()
	sb.Where(staleCond(&sb.Cond, "t.", before)).OrderBy("t.id")
	return sb.Build()
}

// failStaleTask fails one task only while it is still running and stale
func (q queries) failStaleTask(id int64, before, end time.Time) (string, []interface{}) {
	ub := q.flavor.NewUpdateBuilder()
	ub.Update(tasksTable).
		Set(
			ub.Assign("status", string(models.TaskFailed)),
			ub.Assign("end_time", end),
			ub.Assign("updated_at", end),
		).
		Where(ub.Equal("id", id), staleCond(&ub.Cond, "", before))
	return ub.Build()
}

// staleCond matches running tasks started before the cutoff.
// Running tasks that never reported a start are judged by updated_at.
func staleCond(c *sqlbuilder.Cond, prefix string, before time.Time) string {
	return c.And(
		c.Equal(prefix+"status", string(models.TaskRunning)),
		c.Or(
			c.LessThan(prefix+"start_time", before),
			c.And(c.IsNull(prefix+"start_time"), c.LessThan(prefix+"updated_at", before)),
		),
	)
}

func (q queries) insertEnvironment(e *models.Environment) (string, []interface{}) {
	ib := q.flavor.NewInsertBuilder()
	ib.InsertInto(environmentsTable).
		Cols("name", "base_url", "description", "creator_id", "created_at", "updated_at").
		Values(e.Name, e.BaseURL, e.Description, nullInt64(e.CreatorID), e.CreatedAt, e.UpdatedAt)
	query, args := ib.Build()
	return query + " RETURNING id", args
}

func (q queries) environmentSelect() *sqlbuilder.SelectBuilder {
	sb := q.flavor.NewSelectBuilder()
	sb.Select(environmentColumns...).
		From(environmentsTable+" e").
		JoinWithOption(sqlbuilder.LeftJoin, usersTable+" u", "u.id = e.creator_id")
	return sb
}

func (q queries) selectEnvironment(id int64) (string, []interface{}) {
	sb := q.environmentSelect()
	sb.Where(sb.Equal("e.id", id))
	return sb.Build()
}

func (q queries) selectEnvironmentByName(name string) (string, []interface{}) {
	sb := q.environmentSelect()
	sb.Where(sb.Equal("e.name", name))
	return sb.Build()
}

func (q queries) updateEnvironment(e *models.Environment) (string, []interface{}) {
	ub := q.flavor.NewUpdateBuilder()
	ub.Update(environmentsTable).
		Set(
			ub.Assign("name", e.Name),
			ub.Assign("base_url", e.BaseURL),
			ub.Assign("description", e.Description),
			ub.Assign("updated_at", e.UpdatedAt),
		).
		Where(ub.Equal("id", e.ID))
	return ub.Build()
}

func (q queries) listEnvironments(f models.EnvironmentFilter) (list string, listArgs []interface{}, count string, countArgs []interface{}) {
	sb := q.environmentSelect()
	applyEnvironmentFilter(sb, f)
	sb.OrderBy("e.created_at DESC", "e.id DESC")
	if f.Limit > 0 {
		sb.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sb.Offset(f.Offset)
	}
	list, listArgs = sb.Build()

	cb := q.flavor.NewSelectBuilder()
	cb.Select("COUNT(*)").From(environmentsTable + " e")
	applyEnvironmentFilter(cb, f)
	count, countArgs = cb.Build()
	return list, listArgs, count, countArgs
}

func applyEnvironmentFilter(sb *sqlbuilder.SelectBuilder, f models.EnvironmentFilter) {
	conds := searchConds(sb, "e", f.NameLike, f.CreatedFrom, f.CreatedTo)
	if len(conds) > 0 {
		sb.Where(conds...)
	}
}

// searchConds translates the shared name and created_at criteria
func searchConds(sb *sqlbuilder.SelectBuilder, alias, nameLike string, from, to *time.Time) []string {
	var conds []string
	if nameLike != "" {
		pattern := "%" + escapeLike(strings.ToLower(nameLike)) + "%"
		conds = append(conds, fmt.Sprintf("LOWER(%s.name) LIKE %s ESCAPE '\\'", alias, sb.Var(pattern)))
	}
	if from != nil {
		conds = append(conds, sb.GreaterEqualThan(alias+".created_at", from.UTC()))
	}
	if to != nil {
		conds = append(conds, sb.LessEqualThan(alias+".created_at", to.UTC()))
	}
	return conds
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// scanner is satisfied by pgx.Row(s) and *sql.Row(s)
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var creatorID, userID sql.NullInt64
	var userName, userUsername sql.NullString

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&creatorID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&userID,
		&userName,
		&userUsername,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.CreatorID = int64Ptr(creatorID)
	p.Creator = joinedUser(userID, userName, userUsername)
	return &p, nil
}

func scanProjectOption(row scanner) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanEnvironment(row scanner) (*models.Environment, error) {
	var e models.Environment
	var creatorID, userID sql.NullInt64
	var userName, userUsername sql.NullString

	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.BaseURL,
		&e.Description,
		&creatorID,
		&e.CreatedAt,
		&e.UpdatedAt,
		&userID,
		&userName,
		&userUsername,
	)
	if err != nil {
		return nil, err
	}

	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.CreatorID = int64Ptr(creatorID)
	e.Creator = joinedUser(userID, userName, userUsername)
	return &e, nil
}

func scanTask(row scanner) (*models.Task, error) {
	var t models.Task
	var status string
	var startTime, endTime sql.NullTime
	var summaryJSON, logsJSON, responseJSON []byte
	var creatorID, userID sql.NullInt64
	var projectName, userName, userUsername sql.NullString

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.ProjectID,
		&t.Description,
		&status,
		&startTime,
		&endTime,
		&summaryJSON,
		&t.Counts.Total,
		&t.Counts.Success,
		&t.Counts.Fail,
		&t.Counts.Skip,
		&t.Counts.Error,
		&logsJSON,
		&responseJSON,
		&creatorID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&projectName,
		&userID,
		&userName,
		&userUsername,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	t.StartTime = timePtr(startTime)
	t.EndTime = timePtr(endTime)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.CreatorID = int64Ptr(creatorID)
	t.Creator = joinedUser(userID, userName, userUsername)
	if projectName.Valid {
		t.Project = &models.Project{ID: t.ProjectID, Name: projectName.String}
	}

	if len(summaryJSON) > 0 {
		var summary models.ResultsSummary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of task %d: %w", t.ID, err)
		}
		t.Summary = &summary
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &t.Logs); err != nil {
			return nil, fmt.Errorf("failed to decode logs of task %d: %w", t.ID, err)
		}
	}
	if len(responseJSON) > 0 {
		t.ActualResponse = json.RawMessage(responseJSON)
	}

	return &t, nil
}

func encodeTaskJSON(t *models.Task) (summary, logs interface{}, err error) {
	if t.Summary != nil {
		data, err := json.Marshal(t.Summary)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal summary: %w", err)
		}
		summary = string(data)
	}
	if t.Logs != nil {
		data, err := json.Marshal(t.Logs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal logs: %w", err)
		}
		logs = string(data)
	}
	return summary, logs, nil
}

// Helper functions for nullable values

func joinedUser(id sql.NullInt64, name, username sql.NullString) *models.User {
	if !id.Valid {
		return nil
	}
	return &models.User{ID: id.Int64, Name: name.String, Username: username.String}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
