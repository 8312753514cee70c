package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the API routes onto router
func RegisterRoutes(router *gin.Engine, h *APIHandler) {
	api := router.Group("/api")
	{
		// Student routes
		api.GET("/students", h.GetAllStudents)
		api.POST("/students", h.AddStudent)
		api.GET("/students/:studentId", h.GetStudent)
		api.DELETE("/students/:studentId", h.DeleteStudent)
		api.GET("/students/:studentId/gpa", h.GetStudentGPA)
		api.PUT("/students/:studentId/enrollments/:code", h.PutEnrollment)

		// Course routes
		api.GET("/courses", h.GetAllCourses)
		api.POST("/courses", h.AddCourse)
		api.DELETE("/courses/:code", h.DeleteCourse)

		api.POST("/enrollments", h.Enroll)

		// Summary table and change polling
		api.GET("/summary", h.GetSummary)
		api.GET("/revision", h.GetRevision)
		api.GET("/export/summary", h.ExportSummary)

		// Import routes
		api.POST("/import/students", h.ImportStudents)
		api.POST("/import/courses", h.ImportCourses)
		api.POST("/import/enrollments", h.ImportEnrollments)

		api.GET("/ping", PingHandler)
	}
}
