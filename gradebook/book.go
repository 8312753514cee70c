package gradebook

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gradebook-server-go/models"
)

// Book owns the students and courses of one gradebook session.
// Every mutation either succeeds completely or leaves the book unchanged.
type Book struct {
	mu        sync.RWMutex
	courses   []*models.Course
	students  []*models.Student
	revision  uint64
	listeners []func(models.Snapshot)
	newID     func() string
}

// New creates an empty Book
func New() *Book {
	return &Book{
		newID: func() string { return uuid.NewString() },
	}
}

// OnChange registers fn to receive a snapshot after every successful mutation.
// Listeners run on the mutating goroutine once the book lock is released.
func (b *Book) OnChange(fn func(models.Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Revision returns a counter incremented by every successful mutation
func (b *Book) Revision() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

// --- Course Operations ---

// ParseCredits parses raw credit input, rejecting missing, non-numeric and
// non-positive values
func ParseCredits(raw string) (int, error) {
	credits, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || credits < 1 {
		return 0, invalid(ErrInvalidCredits, "Please enter valid course details.")
	}
	return credits, nil
}

// AddCourse registers a new course
func (b *Book) AddCourse(name, code string, credits int) (models.Course, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if name == "" || code == "" {
		return models.Course{}, invalid(ErrEmptyName, "Please enter valid course details.")
	}
	if credits < 1 {
		return models.Course{}, invalid(ErrInvalidCredits, "Please enter valid course details.")
	}

	b.mu.Lock()
	if b.findCourse(code) != nil {
		b.mu.Unlock()
		return models.Course{}, invalid(ErrDuplicateCourseCode, "Course code must be unique.")
	}
	course := &models.Course{Name: name, Code: code, Credits: credits}
	b.courses = append(b.courses, course)
	snap, fns := b.commitLocked()
	b.mu.Unlock()

	notify(fns, snap)
	return *course, nil
}

// RemoveCourse deletes the course and every enrollment referencing its code
func (b *Book) RemoveCourse(code string) error {
	code = strings.TrimSpace(code)

	b.mu.Lock()
	idx := -1
	for i, c := range b.courses {
		if c.Code == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCourseNotFound, code)
	}
	b.courses = append(b.courses[:idx:idx], b.courses[idx+1:]...)
	for _, s := range b.students {
		kept := s.Enrollments[:0]
		for _, e := range s.Enrollments {
			if e.Course.Code != code {
				kept = append(kept, e)
			}
		}
		s.Enrollments = kept
	}
	snap, fns := b.commitLocked()
	b.mu.Unlock()

	notify(fns, snap)
	return nil
}

// Course returns the course with the given code
func (b *Book) Course(code string) (models.Course, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c := b.findCourse(strings.TrimSpace(code))
	if c == nil {
		return models.Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, code)
	}
	return *c, nil
}

// Courses returns all courses in registration order
func (b *Book) Courses() []models.Course {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Course, 0, len(b.courses))
	for _, c := range b.courses {
		out = append(out, *c)
	}
	return out
}

// --- Student Operations ---

// AddStudent registers a new student with a generated ID
func (b *Book) AddStudent(name string) (models.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Student{}, invalid(ErrEmptyName, "Please enter a student name.")
	}

	b.mu.Lock()
	student := &models.Student{ID: b.newID(), Name: name, Enrollments: []models.Enrollment{}}
	b.students = append(b.students, student)
	out := cloneStudent(student)
	snap, fns := b.commitLocked()
	b.mu.Unlock()

	notify(fns, snap)
	return out, nil
}

// RemoveStudent deletes the student together with its enrollments
func (b *Book) RemoveStudent(studentID string) error {
	b.mu.Lock()
	idx := b.studentIndex(studentID)
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	b.students = append(b.students[:idx:idx], b.students[idx+1:]...)
	snap, fns := b.commitLocked()
	b.mu.Unlock()

	notify(fns, snap)
	return nil
}

// Student returns a copy of the student with the given ID
func (b *Book) Student(studentID string) (models.Student, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.studentIndex(studentID)
	if idx < 0 {
		return models.Student{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	return cloneStudent(b.students[idx]), nil
}

// Students returns copies of all students in registration order
func (b *Book) Students() []models.Student {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Student, 0, len(b.students))
	for _, s := range b.students {
		out = append(out, cloneStudent(s))
	}
	return out
}

// --- Enrollment ---

// Enroll records grade for the student in the course. Enrolling twice in
// the same course code overwrites the grade instead of adding a duplicate.
func (b *Book) Enroll(studentID, courseCode, grade string) (models.Enrollment, error) {
	studentID = strings.TrimSpace(studentID)
	courseCode = strings.TrimSpace(courseCode)
	if studentID == "" || courseCode == "" {
		return models.Enrollment{}, invalid(ErrMissingSelection, "Please select both student and course.")
	}
	g := models.NormalizeGrade(grade)
	if !g.Valid() {
		return models.Enrollment{}, invalid(ErrInvalidGrade, "Please enter a valid grade (A, B, C, D, F).")
	}

	b.mu.Lock()
	idx := b.studentIndex(studentID)
	if idx < 0 {
		b.mu.Unlock()
		return models.Enrollment{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	course := b.findCourse(courseCode)
	if course == nil {
		b.mu.Unlock()
		return models.Enrollment{}, fmt.Errorf("%w: %s", ErrCourseNotFound, courseCode)
	}

	student := b.students[idx]
	var enrollment models.Enrollment
	updated := false
	for i := range student.Enrollments {
		if student.Enrollments[i].Course.Code == course.Code {
			student.Enrollments[i].Grade = g
			enrollment = student.Enrollments[i]
			updated = true
			break
		}
	}
	if !updated {
		enrollment = models.Enrollment{Course: course, Grade: g}
		student.Enrollments = append(student.Enrollments, enrollment)
	}
	out := cloneEnrollment(enrollment)
	snap, fns := b.commitLocked()
	b.mu.Unlock()

	notify(fns, snap)
	return out, nil
}

// GPA computes the GPA of the student with the given ID
func (b *Book) GPA(studentID string) (float64, error) {
	s, err := b.Student(studentID)
	if err != nil {
		return 0, err
	}
	return CalculateGPA(s), nil
}

// Summary returns one row per student with enrolled courses and GPA
func (b *Book) Summary() []models.SummaryRow {
	rows, _ := b.SummaryWithRevision()
	return rows
}

// SummaryWithRevision returns the summary together with the revision it
// was read at
func (b *Book) SummaryWithRevision() ([]models.SummaryRow, uint64) {
	b.mu.RLock()
	students := make([]models.Student, 0, len(b.students))
	for _, s := range b.students {
		students = append(students, cloneStudent(s))
	}
	rev := b.revision
	b.mu.RUnlock()

	rows := make([]models.SummaryRow, 0, len(students))
	for _, s := range students {
		rows = append(rows, SummarizeStudent(s))
	}
	return rows, rev
}

// --- Snapshots ---

// Snapshot returns a pointer-free copy of the whole book
func (b *Book) Snapshot() models.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Restore replaces the book contents with snap. The snapshot is checked
// against the same invariants the mutating operations enforce; on error
// the book is unchanged. Listeners are not notified.
func (b *Book) Restore(snap models.Snapshot) error {
	courses := make([]*models.Course, 0, len(snap.Courses))
	byCode := make(map[string]*models.Course, len(snap.Courses))
	for _, c := range snap.Courses {
		if c.Name == "" || c.Code == "" || c.Credits < 1 {
			return fmt.Errorf("%w: course %q", ErrInvalidSnapshot, c.Code)
		}
		if _, dup := byCode[c.Code]; dup {
			return fmt.Errorf("%w: duplicate course %q", ErrInvalidSnapshot, c.Code)
		}
		course := &models.Course{Name: c.Name, Code: c.Code, Credits: c.Credits}
		byCode[c.Code] = course
		courses = append(courses, course)
	}

	students := make([]*models.Student, 0, len(snap.Students))
	seenIDs := make(map[string]bool, len(snap.Students))
	for _, rec := range snap.Students {
		if rec.ID == "" || rec.Name == "" || seenIDs[rec.ID] {
			return fmt.Errorf("%w: student %q", ErrInvalidSnapshot, rec.ID)
		}
		seenIDs[rec.ID] = true
		student := &models.Student{ID: rec.ID, Name: rec.Name, Enrollments: []models.Enrollment{}}
		enrolled := make(map[string]bool, len(rec.Enrollments))
		for _, e := range rec.Enrollments {
			course, ok := byCode[e.CourseCode]
			if !ok {
				return fmt.Errorf("%w: student %q enrolled in unknown course %q", ErrInvalidSnapshot, rec.ID, e.CourseCode)
			}
			if !e.Grade.Valid() {
				return fmt.Errorf("%w: student %q has grade %q in %q", ErrInvalidSnapshot, rec.ID, e.Grade, e.CourseCode)
			}
			if enrolled[e.CourseCode] {
				continue
			}
			enrolled[e.CourseCode] = true
			student.Enrollments = append(student.Enrollments, models.Enrollment{Course: course, Grade: e.Grade})
		}
		students = append(students, student)
	}

	b.mu.Lock()
	b.courses = courses
	b.students = students
	b.revision = snap.Revision
	b.mu.Unlock()
	return nil
}

// --- Helpers (callers hold b.mu) ---

func (b *Book) findCourse(code string) *models.Course {
	for _, c := range b.courses {
		if c.Code == code {
			return c
		}
	}
	return nil
}

func (b *Book) studentIndex(id string) int {
	for i, s := range b.students {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (b *Book) commitLocked() (models.Snapshot, []func(models.Snapshot)) {
	b.revision++
	if len(b.listeners) == 0 {
		return models.Snapshot{}, nil
	}
	fns := make([]func(models.Snapshot), len(b.listeners))
	copy(fns, b.listeners)
	return b.snapshotLocked(), fns
}

func (b *Book) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		Revision: b.revision,
		Courses:  make([]models.Course, 0, len(b.courses)),
		Students: make([]models.StudentRecord, 0, len(b.students)),
	}
	for _, c := range b.courses {
		snap.Courses = append(snap.Courses, *c)
	}
	for _, s := range b.students {
		rec := models.StudentRecord{ID: s.ID, Name: s.Name, Enrollments: make([]models.EnrollmentRecord, 0, len(s.Enrollments))}
		for _, e := range s.Enrollments {
			rec.Enrollments = append(rec.Enrollments, models.EnrollmentRecord{CourseCode: e.Course.Code, Grade: e.Grade})
		}
		snap.Students = append(snap.Students, rec)
	}
	return snap
}

func notify(fns []func(models.Snapshot), snap models.Snapshot) {
	for _, fn := range fns {
		fn(snap)
	}
}

// cloneStudent copies the student down to its courses so callers cannot
// reach registry entries through the result.
func cloneStudent(s *models.Student) models.Student {
	out := models.Student{ID: s.ID, Name: s.Name, Enrollments: make([]models.Enrollment, len(s.Enrollments))}
	for i, e := range s.Enrollments {
		out.Enrollments[i] = cloneEnrollment(e)
	}
	return out
}

func cloneEnrollment(e models.Enrollment) models.Enrollment {
	if e.Course == nil {
		return e
	}
	c := *e.Course
	return models.Enrollment{Course: &c, Grade: e.Grade}
}
