package models

import "time"

// Durable-store kinds for the gradebook.
const (
	KindCourse  = "Course"
	KindStudent = "Student"
)

// ComponentType is a graded category within a course.
type ComponentType string

const (
	Homework    ComponentType = "Homework"
	Discussions ComponentType = "Discussions"
	FinalExam   ComponentType = "FinalExam"
)

// ComponentTypes lists the graded categories in presentation order.
var ComponentTypes = []ComponentType{Homework, Discussions, FinalExam}

// CourseHeader describes a generated course. Weightage values sum to 100.
type CourseHeader struct {
	CourseID   string                `json:"courseId"`
	Weightage  map[ComponentType]int `json:"weightage"`
	Components map[ComponentType]int `json:"components"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// GradeComponent is a single graded item for a student.
type GradeComponent struct {
	Type       ComponentType `json:"type"`
	Component  string        `json:"component"`
	Marks      int           `json:"marks"`
	TotalMarks int           `json:"totalMarks"`
}

// StudentGrade is one student's generated marks and the grade derived from them.
type StudentGrade struct {
	CourseID            string                    `json:"courseId"`
	StudentID           int                       `json:"studentId"`
	Name                string                    `json:"name"`
	Components          []GradeComponent          `json:"components"`
	WeightedPercentages map[ComponentType]float64 `json:"weightedPercentages"`
	FinalPercentage     float64                   `json:"finalPercentage"`
	FinalGrade          string                    `json:"finalGrade"`
}

// CourseSpec is a request to generate a course and its students.
type CourseSpec struct {
	CourseID         string `json:"courseId" validate:"required,courseid"`
	NumStudents      int    `json:"numStudents" validate:"min=1,max=500"`
	NumHomeworks     int    `json:"numHomeworks" validate:"min=0,max=50"`
	NumDiscussions   int    `json:"numDiscussions" validate:"min=0,max=50"`
	NumExams         int    `json:"numExams" validate:"min=0,max=10"`
	HomeworkWeight   int    `json:"homeworkWeight" validate:"min=0,max=100"`
	DiscussionWeight int    `json:"discussionWeight" validate:"min=0,max=100"`
	ExamWeight       int    `json:"examWeight" validate:"min=0,max=100"`
}

// Header returns the course header described by the spec.
func (s CourseSpec) Header() CourseHeader {
	return CourseHeader{
		CourseID: s.CourseID,
		Weightage: map[ComponentType]int{
			Homework: s.HomeworkWeight, Discussions: s.DiscussionWeight, FinalExam: s.ExamWeight,
		},
		Components: map[ComponentType]int{
			Homework: s.NumHomeworks, Discussions: s.NumDiscussions, FinalExam: s.NumExams,
		},
	}
}
