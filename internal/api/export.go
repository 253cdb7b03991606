package api

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/terra-clan/autotest-engine/internal/models"
)

var projectCSVHeader = []string{"index", "id", "name", "description", "creator", "created_at", "updated_at"}

var taskCSVHeader = []string{
	"index", "id", "name", "project", "status", "start_time", "end_time",
	"total_count", "success_count", "fail_count", "skip_count", "error_count",
	"creator", "created_at", "updated_at",
}

// writeCSV streams an export as an attachment named after kind and the current time
func (s *Server) writeCSV(w http.ResponseWriter, kind string, header []string, n int, record func(i int) []string) {
	filename := fmt.Sprintf("%s-%s.csv", kind, s.clock().UTC().Format("20060102-150405"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		slog.Error("failed to write export header", "kind", kind, "error", err)
		return
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			slog.Error("failed to write export row", "kind", kind, "row", i, "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("failed to flush export", "kind", kind, "error", err)
	}
}

func projectCSVRecord(row models.ProjectRow) []string {
	return []string{
		intCell(row.Index),
		int64Cell(row.ID),
		stringCell(row.Name),
		stringCell(row.Description),
		creatorCell(row.Creator),
		stringCell(row.CreatedAt),
		stringCell(row.UpdatedAt),
	}
}

func taskCSVRecord(row models.TaskRow) []string {
	project := ""
	if row.Project != nil {
		project = stringCell(row.Project.Name)
	}
	return []string{
		intCell(row.Index),
		int64Cell(row.ID),
		stringCell(row.Name),
		project,
		stringCell(row.Status),
		stringCell(row.StartTime),
		stringCell(row.EndTime),
		intCell(row.TotalCount),
		intCell(row.SuccessCount),
		intCell(row.FailCount),
		intCell(row.SkipCount),
		intCell(row.ErrorCount),
		creatorCell(row.Creator),
		stringCell(row.CreatedAt),
		stringCell(row.UpdatedAt),
	}
}

func creatorCell(c *models.CreatorRef) string {
	if c == nil {
		return ""
	}
	if name := stringCell(c.Name); name != "" {
		return name
	}
	return stringCell(c.Username)
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func int64Cell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
