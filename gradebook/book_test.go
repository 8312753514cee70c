package gradebook

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gradebook-server-go/models"
)

// seedAna builds the book used by most examples: Ana in CS1 (A) and MA1 (B)
func seedAna(t *testing.T) (*Book, models.Student) {
	t.Helper()
	b := New()
	_, err := b.AddCourse("Intro to CS", "CS1", 3)
	require.NoError(t, err)
	_, err = b.AddCourse("Calculus", "MA1", 4)
	require.NoError(t, err)
	ana, err := b.AddStudent("Ana")
	require.NoError(t, err)
	_, err = b.Enroll(ana.ID, "CS1", "A")
	require.NoError(t, err)
	_, err = b.Enroll(ana.ID, "MA1", "b")
	require.NoError(t, err)
	return b, ana
}

func TestAddCourse(t *testing.T) {
	b := New()

	course, err := b.AddCourse("  Intro to CS ", " CS1 ", 3)
	require.NoError(t, err)
	assert.Equal(t, models.Course{Name: "Intro to CS", Code: "CS1", Credits: 3}, course)
	assert.Len(t, b.Courses(), 1)
	assert.Equal(t, uint64(1), b.Revision())
}

func TestAddCourseValidation(t *testing.T) {
	tests := []struct {
		name    string
		cName   string
		code    string
		credits int
		kind    error
	}{
		{"empty name", " ", "CS1", 3, ErrEmptyName},
		{"empty code", "Intro", "", 3, ErrEmptyName},
		{"zero credits", "Intro", "CS1", 0, ErrInvalidCredits},
		{"negative credits", "Intro", "CS1", -2, ErrInvalidCredits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			_, err := b.AddCourse(tt.cName, tt.code, tt.credits)
			assert.ErrorIs(t, err, tt.kind)
			assert.True(t, IsValidation(err))
			assert.Empty(t, b.Courses())
			assert.Equal(t, uint64(0), b.Revision())
		})
	}
}

func TestAddCourseDuplicateCode(t *testing.T) {
	b := New()
	_, err := b.AddCourse("Intro to CS", "CS1", 3)
	require.NoError(t, err)

	_, err = b.AddCourse("Other", "CS1", 4)
	assert.ErrorIs(t, err, ErrDuplicateCourseCode)
	assert.Equal(t, "Course code must be unique.", err.Error())
	assert.Len(t, b.Courses(), 1)
	assert.Equal(t, "Intro to CS", b.Courses()[0].Name)
}

func TestParseCredits(t *testing.T) {
	credits, err := ParseCredits(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, credits)

	for _, raw := range []string{"", "abc", "0", "-1", "2.5"} {
		_, err := ParseCredits(raw)
		assert.ErrorIs(t, err, ErrInvalidCredits, "raw=%q", raw)
	}
}

func TestAddStudent(t *testing.T) {
	b := New()

	s, err := b.AddStudent(" Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", s.Name)
	assert.NotEmpty(t, s.ID)
	assert.Empty(t, s.Enrollments)

	other, err := b.AddStudent("Ana")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
	assert.Len(t, b.Students(), 2)

	_, err = b.AddStudent("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Len(t, b.Students(), 2)
}

func TestEnrollValidation(t *testing.T) {
	b, ana := seedAna(t)
	before := b.Snapshot()

	_, err := b.Enroll("", "CS1", "A")
	assert.ErrorIs(t, err, ErrMissingSelection)
	_, err = b.Enroll(ana.ID, "", "A")
	assert.ErrorIs(t, err, ErrMissingSelection)
	_, err = b.Enroll(ana.ID, "CS1", "E")
	assert.ErrorIs(t, err, ErrInvalidGrade)
	_, err = b.Enroll(ana.ID, "CS1", "A+")
	assert.ErrorIs(t, err, ErrInvalidGrade)
	_, err = b.Enroll("nobody", "CS1", "A")
	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.False(t, IsValidation(err))
	_, err = b.Enroll(ana.ID, "PH1", "A")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	assert.Equal(t, before, b.Snapshot())
}

func TestEnrollIsIdempotentPerCourseCode(t *testing.T) {
	b, ana := seedAna(t)

	e, err := b.Enroll(ana.ID, "CS1", " c ")
	require.NoError(t, err)
	assert.Equal(t, models.GradeC, e.Grade)

	got, err := b.Student(ana.ID)
	require.NoError(t, err)
	require.Len(t, got.Enrollments, 2)
	assert.Equal(t, "CS1", got.Enrollments[0].Course.Code)
	assert.Equal(t, models.GradeC, got.Enrollments[0].Grade)
	assert.Equal(t, "MA1", got.Enrollments[1].Course.Code)
	assert.Equal(t, models.GradeB, got.Enrollments[1].Grade)
}

func TestAnaExamples(t *testing.T) {
	b, ana := seedAna(t)

	gpa, err := b.GPA(ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.43, gpa)

	_, err = b.Enroll(ana.ID, "CS1", "C")
	require.NoError(t, err)
	gpa, err = b.GPA(ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.57, gpa)

	require.NoError(t, b.RemoveCourse("CS1"))
	gpa, err = b.GPA(ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.00, gpa)
}

func TestRemoveCourseCascades(t *testing.T) {
	b, ana := seedAna(t)
	ben, err := b.AddStudent("Ben")
	require.NoError(t, err)
	_, err = b.Enroll(ben.ID, "CS1", "F")
	require.NoError(t, err)

	require.NoError(t, b.RemoveCourse("CS1"))

	assert.Len(t, b.Courses(), 1)
	got, _ := b.Student(ana.ID)
	require.Len(t, got.Enrollments, 1)
	assert.Equal(t, "MA1", got.Enrollments[0].Course.Code)
	assert.Equal(t, models.GradeB, got.Enrollments[0].Grade)
	got, _ = b.Student(ben.ID)
	assert.Empty(t, got.Enrollments)

	err = b.RemoveCourse("CS1")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestRemoveStudent(t *testing.T) {
	b, ana := seedAna(t)
	ben, err := b.AddStudent("Ben")
	require.NoError(t, err)

	require.NoError(t, b.RemoveStudent(ana.ID))
	students := b.Students()
	require.Len(t, students, 1)
	assert.Equal(t, ben.ID, students[0].ID)

	// Stable IDs keep working after the removal shifts positions
	_, err = b.Enroll(ben.ID, "MA1", "A")
	assert.NoError(t, err)

	assert.ErrorIs(t, b.RemoveStudent(ana.ID), ErrStudentNotFound)
	_, err = b.GPA(ana.ID)
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	b, ana := seedAna(t)

	got, _ := b.Student(ana.ID)
	got.Enrollments[0].Grade = models.GradeF
	got.Name = "Changed"

	again, _ := b.Student(ana.ID)
	assert.Equal(t, "Ana", again.Name)
	assert.Equal(t, models.GradeA, again.Enrollments[0].Grade)
}

func TestReturnedCoursesAreDetached(t *testing.T) {
	b, ana := seedAna(t)

	got, err := b.Student(ana.ID)
	require.NoError(t, err)
	got.Enrollments[0].Course.Credits = 99
	got.Enrollments[0].Course.Name = "Changed"

	e, err := b.Enroll(ana.ID, "MA1", "B")
	require.NoError(t, err)
	e.Course.Credits = 1

	course, err := b.Course("CS1")
	require.NoError(t, err)
	assert.Equal(t, models.Course{Name: "Intro to CS", Code: "CS1", Credits: 3}, course)
	course, err = b.Course("MA1")
	require.NoError(t, err)
	assert.Equal(t, 4, course.Credits)

	gpa, err := b.GPA(ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.43, gpa)
}

func TestLargeCreditsKeepGPAInRange(t *testing.T) {
	b := New()
	_, err := b.AddCourse("Huge A", "BIG1", 1<<62)
	require.NoError(t, err)
	_, err = b.AddCourse("Huge B", "BIG2", 1<<62)
	require.NoError(t, err)
	s, err := b.AddStudent("Ana")
	require.NoError(t, err)
	_, err = b.Enroll(s.ID, "BIG1", "A")
	require.NoError(t, err)
	_, err = b.Enroll(s.ID, "BIG2", "B")
	require.NoError(t, err)

	gpa, err := b.GPA(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, gpa)
}

func TestConcurrentMutationsAndReads(t *testing.T) {
	b, ana := seedAna(t)
	ben, err := b.AddStudent("Ben")
	require.NoError(t, err)

	const workers = 8
	const rounds = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(4)
		go func(w int) {
			defer wg.Done()
			grades := []string{"A", "B", "C", "D", "F"}
			for i := 0; i < rounds; i++ {
				_, _ = b.Enroll(ana.ID, "CS1", grades[(w+i)%len(grades)])
			}
		}(w)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				code := fmt.Sprintf("T%d-%d", w, i)
				if _, err := b.AddCourse("Temp", code, 1+i%4); err != nil {
					continue
				}
				_, _ = b.Enroll(ben.ID, code, "A")
				_ = b.RemoveCourse(code)
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				for _, row := range b.Summary() {
					if row.GPA < 0 || row.GPA > 4 {
						t.Errorf("GPA out of range: %v", row.GPA)
					}
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, err := b.GPA(ben.ID); err != nil {
					t.Errorf("GPA: %v", err)
				}
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()

	courses := b.Courses()
	codes := make(map[string]bool, len(courses))
	for _, c := range courses {
		assert.False(t, codes[c.Code], "duplicate course %s", c.Code)
		codes[c.Code] = true
	}
	assert.Len(t, courses, 2)

	for _, s := range b.Students() {
		for _, e := range s.Enrollments {
			assert.True(t, codes[e.Course.Code], "enrollment in removed course %s", e.Course.Code)
		}
	}
	got, err := b.Student(ben.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Enrollments)

	require.NoError(t, New().Restore(b.Snapshot()))
}

func TestOnChange(t *testing.T) {
	b := New()
	var got []models.Snapshot
	b.OnChange(func(s models.Snapshot) { got = append(got, s) })

	_, err := b.AddCourse("Intro to CS", "CS1", 3)
	require.NoError(t, err)
	s, err := b.AddStudent("Ana")
	require.NoError(t, err)
	_, err = b.Enroll(s.ID, "cs1", "A")
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = b.Enroll(s.ID, "CS1", "A")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[2].Revision)
	require.Len(t, got[2].Students, 1)
	assert.Equal(t, []models.EnrollmentRecord{{CourseCode: "CS1", Grade: models.GradeA}}, got[2].Students[0].Enrollments)
}

func TestSnapshotRestore(t *testing.T) {
	b, ana := seedAna(t)
	snap := b.Snapshot()

	restored := New()
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, snap, restored.Snapshot())
	assert.Equal(t, b.Revision(), restored.Revision())

	gpa, err := restored.GPA(ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.43, gpa)
}

func TestRestoreRejectsBrokenSnapshot(t *testing.T) {
	b, _ := seedAna(t)
	before := b.Snapshot()

	broken := models.Snapshot{
		Courses: []models.Course{{Name: "Intro", Code: "CS1", Credits: 3}},
		Students: []models.StudentRecord{{
			ID:          "s1",
			Name:        "Zed",
			Enrollments: []models.EnrollmentRecord{{CourseCode: "XX9", Grade: models.GradeA}},
		}},
	}
	err := b.Restore(broken)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
	assert.Equal(t, before, b.Snapshot())

	dup := models.Snapshot{Courses: []models.Course{
		{Name: "A", Code: "CS1", Credits: 3},
		{Name: "B", Code: "CS1", Credits: 3},
	}}
	assert.ErrorIs(t, b.Restore(dup), ErrInvalidSnapshot)
}

func TestSummary(t *testing.T) {
	b, ana := seedAna(t)
	_, err := b.AddStudent("Ben")
	require.NoError(t, err)

	rows, rev := b.SummaryWithRevision()
	assert.Equal(t, b.Revision(), rev)
	require.Len(t, rows, 2)
	assert.Equal(t, ana.ID, rows[0].StudentID)
	assert.Equal(t, "CS1 (A), MA1 (B)", rows[0].Courses)
	assert.Equal(t, "3.43", rows[0].GPAText)
	assert.Equal(t, "Ben", rows[1].Name)
	assert.Equal(t, "None", rows[1].Courses)
	assert.Equal(t, "0.00", rows[1].GPAText)
	assert.Equal(t, rows, b.Summary())
}
