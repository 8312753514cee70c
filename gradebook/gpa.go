package gradebook

import (
	"math"
	"strconv"
	"strings"

	"gradebook-server-go/models"
)

// CalculateGPA returns the credit-weighted mean of grade points over the
// student's enrollments, rounded half away from zero to two decimals.
// A student without enrollments or without credits has a GPA of 0.
func CalculateGPA(student models.Student) float64 {
	if len(student.Enrollments) == 0 {
		return 0.0
	}

	// Credits are summed as float64 so large credit values cannot wrap.
	var totalPoints, totalCredits float64
	for _, e := range student.Enrollments {
		if e.Course == nil {
			continue
		}
		credits := float64(e.Course.Credits)
		totalPoints += e.Grade.Points() * credits
		totalCredits += credits
	}
	if totalCredits == 0 {
		return 0.0
	}
	return roundTo2(totalPoints / totalCredits)
}

// math.Round rounds half away from zero
func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatGPA renders a GPA with exactly two decimals
func FormatGPA(gpa float64) string {
	return strconv.FormatFloat(gpa, 'f', 2, 64)
}

// SummarizeStudent builds the summary table row for one student
func SummarizeStudent(student models.Student) models.SummaryRow {
	courses := "None"
	if len(student.Enrollments) > 0 {
		parts := make([]string, 0, len(student.Enrollments))
		for _, e := range student.Enrollments {
			if e.Course == nil {
				continue
			}
			parts = append(parts, e.Course.Code+" ("+string(e.Grade)+")")
		}
		courses = strings.Join(parts, ", ")
	}

	gpa := CalculateGPA(student)
	return models.SummaryRow{
		StudentID: student.ID,
		Name:      student.Name,
		Courses:   courses,
		GPA:       gpa,
		GPAText:   FormatGPA(gpa),
	}
}
