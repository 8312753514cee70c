package sheets

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/xuri/excelize/v2"
	"gradebook-server-go/gradebook"
)

// RowError describes a spreadsheet row that was skipped
type RowError struct {
	Row    int    `json:"row"` // 1-based row number as shown in the spreadsheet
	Reason string `json:"reason"`
}

// ImportResult summarizes one import
type ImportResult struct {
	Imported int        `json:"importedCount"`
	Skipped  []RowError `json:"skipped"`
}

func (r *ImportResult) skip(row int, reason string) {
	r.Skipped = append(r.Skipped, RowError{Row: row, Reason: reason})
}

// Importer loads students, courses and enrollments from xlsx files into a book.
// Data is read from the first sheet and the first row is treated as a header.
type Importer struct {
	Book   *gradebook.Book
	logger gokitlog.Logger
}

// NewImporter creates an Importer for book
func NewImporter(book *gradebook.Book, logger gokitlog.Logger) *Importer {
	if logger == nil {
		logger = gokitlog.NewNopLogger()
	}
	return &Importer{Book: book, logger: logger}
}

// readRows returns the data rows of the first sheet, header excluded
func (im *Importer) readRows(file io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			level.Warn(im.logger).Log("msg", "error closing excel file", "err", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ImportStudents adds one student per row, name in column A
func (im *Importer) ImportStudents(file io.Reader) (ImportResult, error) {
	rows, err := im.readRows(file)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	for i, row := range rows {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		if _, err := im.Book.AddStudent(cell(row, 0)); err != nil {
			result.skip(rowNum, err.Error())
			continue
		}
		result.Imported++
	}

	level.Info(im.logger).Log("msg", "imported students", "imported", result.Imported, "skipped", len(result.Skipped))
	return result, nil
}

// ImportCourses adds one course per row: name in A, code in B, credits in C
func (im *Importer) ImportCourses(file io.Reader) (ImportResult, error) {
	rows, err := im.readRows(file)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	for i, row := range rows {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		credits, err := gradebook.ParseCredits(cell(row, 2))
		if err != nil {
			result.skip(rowNum, err.Error())
			continue
		}
		if _, err := im.Book.AddCourse(cell(row, 0), cell(row, 1), credits); err != nil {
			result.skip(rowNum, err.Error())
			continue
		}
		result.Imported++
	}

	level.Info(im.logger).Log("msg", "imported courses", "imported", result.Imported, "skipped", len(result.Skipped))
	return result, nil
}

// ImportEnrollments enrolls students per row: student ID or name in A,
// course code in B, grade in C. A name must identify exactly one student.
func (im *Importer) ImportEnrollments(file io.Reader) (ImportResult, error) {
	rows, err := im.readRows(file)
	if err != nil {
		return ImportResult{}, err
	}

	byName := make(map[string][]string)
	byID := make(map[string]bool)
	for _, s := range im.Book.Students() {
		byName[s.Name] = append(byName[s.Name], s.ID)
		byID[s.ID] = true
	}

	var result ImportResult
	for i, row := range rows {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		ref := cell(row, 0)
		studentID := ref
		if !byID[ref] {
			switch ids := byName[ref]; len(ids) {
			case 0:
				studentID = ""
			case 1:
				studentID = ids[0]
			default:
				result.skip(rowNum, fmt.Sprintf("student name %q is ambiguous", ref))
				continue
			}
		}
		if ref != "" && studentID == "" {
			result.skip(rowNum, fmt.Sprintf("unknown student %q", ref))
			continue
		}
		if _, err := im.Book.Enroll(studentID, cell(row, 1), cell(row, 2)); err != nil {
			result.skip(rowNum, err.Error())
			continue
		}
		result.Imported++
	}

	level.Info(im.logger).Log("msg", "imported enrollments", "imported", result.Imported, "skipped", len(result.Skipped))
	return result, nil
}
