package models

import "strings"

// Grade is a letter grade (A, B, C, D or F)
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradePoints maps each letter grade to its grade points
var GradePoints = map[Grade]float64{
	GradeA: 4.0,
	GradeB: 3.0,
	GradeC: 2.0,
	GradeD: 1.0,
	GradeF: 0.0,
}

// NormalizeGrade trims and uppercases raw grade input
func NormalizeGrade(raw string) Grade {
	return Grade(strings.ToUpper(strings.TrimSpace(raw)))
}

// Valid reports whether g has an entry in GradePoints
func (g Grade) Valid() bool {
	_, ok := GradePoints[g]
	return ok
}

// Points returns the grade points for g. Unmapped grades count as 0.
func (g Grade) Points() float64 {
	return GradePoints[g]
}

// Course represents a course offered in the registry
type Course struct {
	Name    string `json:"name"`    // Course name
	Code    string `json:"code"`    // Unique course code (e.g., CS1)
	Credits int    `json:"credits"` // Credit weight, at least 1
}

// Enrollment ties a student to a course with a grade
type Enrollment struct {
	Course *Course `json:"course"`
	Grade  Grade   `json:"grade"`
}

// Student represents a student and their enrollments in insertion order
type Student struct {
	ID          string       `json:"id"`   // Generated stable identifier
	Name        string       `json:"name"` // Student name
	Enrollments []Enrollment `json:"enrollments"`
}

// SummaryRow is one line of the per-student summary table
type SummaryRow struct {
	StudentID string  `json:"studentId"`
	Name      string  `json:"name"`
	Courses   string  `json:"courses"` // e.g. "CS1 (A), MA1 (B)" or "None"
	GPA       float64 `json:"gpa"`
	GPAText   string  `json:"gpaText"` // GPA formatted to two decimals
}

// EnrollmentRecord is the flattened, pointer-free form of an Enrollment
type EnrollmentRecord struct {
	CourseCode string `json:"courseCode"`
	Grade      Grade  `json:"grade"`
}

// StudentRecord is the flattened form of a Student
type StudentRecord struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Enrollments []EnrollmentRecord `json:"enrollments"`
}

// Snapshot is a point-in-time copy of a whole gradebook session
type Snapshot struct {
	Revision uint64          `json:"revision"`
	Courses  []Course        `json:"courses"`
	Students []StudentRecord `json:"students"`
}
