package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/patrickmn/go-cache"
	"gradebook-server-go/gradebook"
	"gradebook-server-go/sheets"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Book        *gradebook.Book
	Importer    *sheets.Importer
	exportCache *cache.Cache
	logger      gokitlog.Logger
}

// NewAPIHandler creates a new APIHandler. Rendered exports are cached per
// book revision for exportTTL.
func NewAPIHandler(book *gradebook.Book, exportTTL time.Duration, logger gokitlog.Logger) *APIHandler {
	if logger == nil {
		logger = gokitlog.NewNopLogger()
	}
	return &APIHandler{
		Book:        book,
		Importer:    sheets.NewImporter(book, gokitlog.With(logger, "component", "import")),
		exportCache: cache.New(exportTTL, 2*exportTTL),
		logger:      logger,
	}
}

// respondError maps book errors to HTTP responses. Validation errors carry
// a message meant for the user.
func (h *APIHandler) respondError(c *gin.Context, err error, action string) {
	var ve *gradebook.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg})
	case errors.Is(err, gradebook.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
	case errors.Is(err, gradebook.ErrCourseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
	default:
		level.Error(h.logger).Log("msg", "request failed", "action", action, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

// --- Student Handlers ---

type addStudentRequest struct {
	Name string `json:"name"`
}

// GetAllStudents handles GET /api/students
func (h *APIHandler) GetAllStudents(c *gin.Context) {
	c.JSON(http.StatusOK, h.Book.Students())
}

// GetStudent handles GET /api/students/:studentId
func (h *APIHandler) GetStudent(c *gin.Context) {
	student, err := h.Book.Student(c.Param("studentId"))
	if err != nil {
		h.respondError(c, err, "retrieve student")
		return
	}
	c.JSON(http.StatusOK, student)
}

// AddStudent handles POST /api/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	student, err := h.Book.AddStudent(req.Name)
	if err != nil {
		h.respondError(c, err, "add student")
		return
	}
	level.Info(h.logger).Log("msg", "student added", "id", student.ID, "name", student.Name)
	c.JSON(http.StatusCreated, student)
}

// DeleteStudent handles DELETE /api/students/:studentId
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	studentID := c.Param("studentId")
	if err := h.Book.RemoveStudent(studentID); err != nil {
		h.respondError(c, err, "delete student")
		return
	}
	level.Info(h.logger).Log("msg", "student deleted", "id", studentID)
	c.Status(http.StatusNoContent)
}

// GetStudentGPA handles GET /api/students/:studentId/gpa
func (h *APIHandler) GetStudentGPA(c *gin.Context) {
	studentID := c.Param("studentId")
	gpa, err := h.Book.GPA(studentID)
	if err != nil {
		h.respondError(c, err, "compute GPA")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"studentId": studentID,
		"gpa":       gpa,
		"gpaText":   gradebook.FormatGPA(gpa),
	})
}

// --- Course Handlers ---

type addCourseRequest struct {
	Name    string      `json:"name"`
	Code    string      `json:"code"`
	Credits interface{} `json:"credits"` // Number or numeric string
}

// creditsText turns the decoded credits field back into raw input text
func creditsText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// GetAllCourses handles GET /api/courses
func (h *APIHandler) GetAllCourses(c *gin.Context) {
	c.JSON(http.StatusOK, h.Book.Courses())
}

// AddCourse handles POST /api/courses
func (h *APIHandler) AddCourse(c *gin.Context) {
	var req addCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	credits, err := gradebook.ParseCredits(creditsText(req.Credits))
	if err != nil {
		h.respondError(c, err, "add course")
		return
	}
	course, err := h.Book.AddCourse(req.Name, req.Code, credits)
	if err != nil {
		h.respondError(c, err, "add course")
		return
	}
	level.Info(h.logger).Log("msg", "course added", "code", course.Code, "credits", course.Credits)
	c.JSON(http.StatusCreated, course)
}

// DeleteCourse handles DELETE /api/courses/:code
func (h *APIHandler) DeleteCourse(c *gin.Context) {
	code := c.Param("code")
	if err := h.Book.RemoveCourse(code); err != nil {
		h.respondError(c, err, "delete course")
		return
	}
	level.Info(h.logger).Log("msg", "course deleted", "code", code)
	c.Status(http.StatusNoContent)
}

// --- Enrollment Handlers ---

type enrollRequest struct {
	StudentID  string `json:"studentId"`
	CourseCode string `json:"courseCode"`
	Grade      string `json:"grade"`
}

// Enroll handles POST /api/enrollments
func (h *APIHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	h.enroll(c, req)
}

// PutEnrollment handles PUT /api/students/:studentId/enrollments/:code
func (h *APIHandler) PutEnrollment(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.StudentID = c.Param("studentId")
	req.CourseCode = c.Param("code")
	h.enroll(c, req)
}

func (h *APIHandler) enroll(c *gin.Context, req enrollRequest) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	enrollment, err := h.Book.Enroll(req.StudentID, req.CourseCode, req.Grade)
	if err != nil {
		h.respondError(c, err, "enroll student")
		return
	}
	gpa, err := h.Book.GPA(req.StudentID)
	if err != nil {
		h.respondError(c, err, "compute GPA")
		return
	}
	level.Info(h.logger).Log("msg", "enrollment recorded", "student", req.StudentID,
		"course", enrollment.Course.Code, "grade", enrollment.Grade)
	c.JSON(http.StatusOK, gin.H{
		"studentId":  req.StudentID,
		"courseCode": enrollment.Course.Code,
		"grade":      enrollment.Grade,
		"gpa":        gpa,
		"gpaText":    gradebook.FormatGPA(gpa),
	})
}

// --- Summary Handlers ---

// GetSummary handles GET /api/summary
func (h *APIHandler) GetSummary(c *gin.Context) {
	rows, rev := h.Book.SummaryWithRevision()
	c.JSON(http.StatusOK, gin.H{
		"revision": rev,
		"rows":     rows,
	})
}

// GetRevision handles GET /api/revision. Clients poll it to decide when to re-render.
func (h *APIHandler) GetRevision(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"revision": h.Book.Revision()})
}

// ExportSummary handles GET /api/export/summary
func (h *APIHandler) ExportSummary(c *gin.Context) {
	rows, rev := h.Book.SummaryWithRevision()
	key := "summary:" + strconv.FormatUint(rev, 10)

	data, found := h.exportCache.Get(key)
	if !found {
		rendered, err := sheets.WriteSummary(rows)
		if err != nil {
			h.respondError(c, err, "export summary")
			return
		}
		h.exportCache.SetDefault(key, rendered)
		data = rendered
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="gpa-summary-%d.xlsx"`, rev))
	c.Data(http.StatusOK, xlsxContentType, data.([]byte))
}

// --- Import Handlers ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	h.importFile(c, "students", h.Importer.ImportStudents)
}

// ImportCourses handles POST /api/import/courses
func (h *APIHandler) ImportCourses(c *gin.Context) {
	h.importFile(c, "courses", h.Importer.ImportCourses)
}

// ImportEnrollments handles POST /api/import/enrollments
func (h *APIHandler) ImportEnrollments(c *gin.Context) {
	h.importFile(c, "enrollments", h.Importer.ImportEnrollments)
}

func (h *APIHandler) importFile(c *gin.Context, what string, run func(io.Reader) (sheets.ImportResult, error)) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	level.Info(h.logger).Log("msg", "received file upload", "file", header.Filename, "kind", what)

	result, err := run(file)
	if err != nil {
		level.Warn(h.logger).Log("msg", "import failed", "file", header.Filename, "kind", what, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to import " + what + ": " + err.Error()})
		return
	}
	if result.Skipped == nil {
		result.Skipped = []sheets.RowError{}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": result.Imported,
		"skipped":       result.Skipped,
	})
}

// --- Ping Handler ---

// PingHandler handles GET /api/ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
