package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/satprep/session-service/internal/models"
)

// reportService renders completed-session results as xlsx workbooks.
type reportService struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewReportService(sessionService SessionService, logger *slog.Logger) ReportService {
	return &reportService{sessions: sessionService, logger: logger}
}

// ExportResultsXLSX builds a workbook from a completed session's results:
// a summary sheet, a per-question sheet, and breakdown sheets by topic,
// category, and section. Exam sessions add a modules sheet.
func (s *reportService) ExportResultsXLSX(ctx context.Context, sessionID, userID string) ([]byte, string, error) {
	result, err := s.sessions.Results(ctx, sessionID, userID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()

	if err := s.writeSummarySheet(f, result); err != nil {
		return nil, "", err
	}
	if err := s.writeQuestionSheet(f, result); err != nil {
		return nil, "", err
	}
	if err := s.writeBreakdownSheets(f, result); err != nil {
		return nil, "", err
	}
	if len(result.Modules) > 0 {
		if err := s.writeModuleSheet(f, result); err != nil {
			return nil, "", err
		}
	}

	// The default sheet excelize creates is replaced by Summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		s.logger.Warn("failed to drop default sheet", "error", err)
	}
	if index, err := f.GetSheetIndex("Summary"); err == nil {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("failed to write results workbook", "session_id", sessionID, "error", err)
		return nil, "", ErrInternalError
	}

	filename := fmt.Sprintf("results_%s_%s.xlsx", result.Kind, shortID(result.SessionID))
	return buf.Bytes(), filename, nil
}

func (s *reportService) writeSummarySheet(f *excelize.File, result *models.ExamResult) error {
	sheet := "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Session ID", result.SessionID},
		{"Kind", string(result.Kind)},
		{"Computed At", result.ComputedAt.Format("2006-01-02 15:04:05")},
		{"Total Questions", result.TotalQuestions},
		{"Total Correct", result.TotalCorrect},
		{"Overall Percentage", fmt.Sprintf("%.1f%%", result.OverallPercentage)},
	}
	if result.Scaled != nil {
		rows = append(rows,
			[]interface{}{"Math Score", result.Scaled.Math},
			[]interface{}{"Reading & Writing Score", result.Scaled.RW},
			[]interface{}{"Total Score", result.Scaled.Total},
		)
	}

	for i, row := range rows {
		for j, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(sheet, cell, value)
		}
	}
	return nil
}

func (s *reportService) writeQuestionSheet(f *excelize.File, result *models.ExamResult) error {
	sheet := "Questions"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create questions sheet: %w", err)
	}

	headers := []string{
		"#", "Topic", "Category", "Section", "Difficulty", "Type",
		"Your Answer", "Correct Answer", "Result",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheet, cell, header)
	}

	for i, q := range result.Questions {
		verdict := "Incorrect"
		if q.IsCorrect {
			verdict = "Correct"
		}
		if len(q.UserAnswer) == 0 {
			verdict = "Unanswered"
		}
		row := []interface{}{
			i + 1, q.TopicName, q.CategoryName, string(q.Section),
			string(q.Difficulty), string(q.QuestionType),
			strings.Join(q.UserAnswer, ", "), strings.Join(q.CorrectAnswer, ", "), verdict,
		}
		for j, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
			f.SetCellValue(sheet, cell, value)
		}
	}
	return nil
}

func (s *reportService) writeBreakdownSheets(f *excelize.File, result *models.ExamResult) error {
	type breakdownRow struct {
		name       string
		section    models.Section
		correct    int
		total      int
		percentage float64
	}

	write := func(sheet string, rows []breakdownRow) error {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create %s sheet: %w", sheet, err)
		}
		headers := []string{"Name", "Section", "Correct", "Total", "Percentage"}
		for i, header := range headers {
			cell := fmt.Sprintf("%c1", 'A'+i)
			f.SetCellValue(sheet, cell, header)
		}
		for i, row := range rows {
			values := []interface{}{
				row.name, string(row.section), row.correct, row.total,
				fmt.Sprintf("%.1f%%", row.percentage),
			}
			for j, value := range values {
				cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
				f.SetCellValue(sheet, cell, value)
			}
		}
		return nil
	}

	topics := make([]breakdownRow, len(result.Topics))
	for i, t := range result.Topics {
		topics[i] = breakdownRow{t.TopicName, t.Section, t.Correct, t.Total, t.Percentage}
	}
	if err := write("Topics", topics); err != nil {
		return err
	}

	categories := make([]breakdownRow, len(result.Categories))
	for i, c := range result.Categories {
		categories[i] = breakdownRow{c.CategoryName, c.Section, c.Correct, c.Total, c.Percentage}
	}
	if err := write("Categories", categories); err != nil {
		return err
	}

	sections := make([]breakdownRow, len(result.Sections))
	for i, sec := range result.Sections {
		sections[i] = breakdownRow{string(sec.Section), sec.Section, sec.Correct, sec.Total, sec.Percentage}
	}
	return write("Sections", sections)
}

func (s *reportService) writeModuleSheet(f *excelize.File, result *models.ExamResult) error {
	sheet := "Modules"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create modules sheet: %w", err)
	}

	headers := []string{"Module", "Number", "Raw Score", "Total Questions"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheet, cell, header)
	}
	for i, m := range result.Modules {
		row := []interface{}{string(m.ModuleType), m.ModuleNumber, m.RawScore, m.TotalQuestions}
		for j, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
			f.SetCellValue(sheet, cell, value)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
