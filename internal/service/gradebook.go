package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/store"
	"github.com/kjstillabower/apiverse/internal/validation"
)

// Course is a created course with its generated students.
type Course struct {
	Header   models.CourseHeader   `json:"header"`
	Students []models.StudentGrade `json:"students"`
}

// GradebookService generates courses with synthetic student grades.
// Creation is serialized per course id and rejected when the course exists.
type GradebookService struct {
	store store.DocumentStore
	gen   *generator.GradeGenerator
	locks *keyedMutex
	now   func() time.Time
}

func NewGradebookService(st store.DocumentStore, gen *generator.GradeGenerator) *GradebookService {
	return &GradebookService{store: st, gen: gen, locks: newKeyedMutex(), now: time.Now}
}

func studentKey(courseID string, studentID int) string {
	return fmt.Sprintf("%s:%d", courseID, studentID)
}

// CreateCourse validates spec, persists its header, then generates and
// persists each student. Once the header is written the student writes no
// longer follow the caller's cancellation; each is still bounded by the
// store's own call timeout. A store failure part way leaves the header
// intact and reports the error; the course id then stays taken.
func (s *GradebookService) CreateCourse(ctx context.Context, spec models.CourseSpec) (Course, error) {
	if err := validation.ValidateCourse(spec); err != nil {
		return Course{}, err
	}
	unlock := s.locks.Lock(spec.CourseID)
	defer unlock()

	_, err := s.store.Get(ctx, models.KindCourse, spec.CourseID)
	switch {
	case err == nil:
		return Course{}, fmt.Errorf("%w: course %s", ErrConflict, spec.CourseID)
	case !errors.Is(err, store.ErrNotFound):
		return Course{}, fmt.Errorf("load course %s: %w", spec.CourseID, err)
	}

	header := spec.Header()
	header.CreatedAt = s.now().UTC()
	fields, err := store.Encode(header)
	if err != nil {
		return Course{}, err
	}
	if err := s.store.Put(ctx, models.KindCourse, header.CourseID, fields); err != nil {
		return Course{}, fmt.Errorf("save course %s: %w", header.CourseID, err)
	}

	writeCtx := context.WithoutCancel(ctx)
	students := make([]models.StudentGrade, 0, spec.NumStudents)
	for id := 1; id <= spec.NumStudents; id++ {
		student := s.gen.Student(header, id)
		fields, err := store.Encode(student)
		if err != nil {
			return Course{}, err
		}
		if err := s.store.Put(writeCtx, models.KindStudent, studentKey(header.CourseID, id), fields); err != nil {
			return Course{}, fmt.Errorf("save student %d of %s: %w", id, header.CourseID, err)
		}
		students = append(students, student)
	}
	observability.GeneratedTotal.WithLabelValues("student").Add(float64(len(students)))
	observability.LoggerFrom(ctx).Info("course created",
		zap.String("course_id", header.CourseID), zap.Int("students", len(students)))
	return Course{Header: header, Students: students}, nil
}

// GetCourseHeader returns the stored header, or ErrNotFound.
func (s *GradebookService) GetCourseHeader(ctx context.Context, courseID string) (models.CourseHeader, error) {
	doc, err := s.store.Get(ctx, models.KindCourse, courseID)
	if errors.Is(err, store.ErrNotFound) {
		return models.CourseHeader{}, notFound("course %s", courseID)
	}
	if err != nil {
		return models.CourseHeader{}, fmt.Errorf("load course %s: %w", courseID, err)
	}
	return store.Decode[models.CourseHeader](doc)
}

// GetStudents returns the course's students ordered by student id, or
// ErrNotFound when the course does not exist.
func (s *GradebookService) GetStudents(ctx context.Context, courseID string) ([]models.StudentGrade, error) {
	if _, err := s.GetCourseHeader(ctx, courseID); err != nil {
		return nil, err
	}
	docs, err := s.store.Fetch(ctx, store.NewQuery(models.KindStudent).Filter("courseId", store.Eq, courseID), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load students of %s: %w", courseID, err)
	}
	students := make([]models.StudentGrade, 0, len(docs))
	for _, d := range docs {
		st, err := store.Decode[models.StudentGrade](d)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	slices.SortFunc(students, func(a, b models.StudentGrade) int { return a.StudentID - b.StudentID })
	return students, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
