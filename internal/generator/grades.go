package generator

import (
	"fmt"
	"math"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/kjstillabower/apiverse/internal/models"
)

const (
	marksMean   = 85
	marksStdDev = 7
	totalMarks  = 100
)

// GradeGenerator produces student names and bounded-normal marks.
type GradeGenerator struct {
	src *Source

	mu    sync.Mutex
	faker *gofakeit.Faker
}

func NewGradeGenerator(src *Source) *GradeGenerator {
	return &GradeGenerator{src: src, faker: gofakeit.New(src.Uint64())}
}

// Marks returns round(N(85, 7)) clamped to [0, 100].
func (g *GradeGenerator) Marks() int {
	v := int(math.Round(g.src.Normal(marksMean, marksStdDev)))
	return max(0, min(totalMarks, v))
}

// Name returns a fake full name.
func (g *GradeGenerator) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faker.Name()
}

// Student generates one student's marks for every configured item of header
// and derives the weighted grade.
func (g *GradeGenerator) Student(header models.CourseHeader, studentID int) models.StudentGrade {
	var components []models.GradeComponent
	for _, t := range models.ComponentTypes {
		for i := 1; i <= header.Components[t]; i++ {
			components = append(components, models.GradeComponent{
				Type:       t,
				Component:  fmt.Sprintf("%s %d", t, i),
				Marks:      g.Marks(),
				TotalMarks: totalMarks,
			})
		}
	}
	weighted, final, grade := ComputeWeighted(components, header.Weightage)
	return models.StudentGrade{
		CourseID:            header.CourseID,
		StudentID:           studentID,
		Name:                g.Name(),
		Components:          components,
		WeightedPercentages: weighted,
		FinalPercentage:     final,
		FinalGrade:          grade,
	}
}

// ComputeWeighted averages each type's percentage, applies its weight and
// sums across types. Types with no items contribute 0. The letter grade is
// assigned from the rounded final percentage so the two always agree.
func ComputeWeighted(components []models.GradeComponent, weightage map[models.ComponentType]int) (map[models.ComponentType]float64, float64, string) {
	weighted := make(map[models.ComponentType]float64, len(weightage))
	var total float64
	for _, t := range models.ComponentTypes {
		weight, ok := weightage[t]
		if !ok {
			continue
		}
		var sum float64
		n := 0
		for _, c := range components {
			if c.Type != t || c.TotalMarks <= 0 {
				continue
			}
			sum += float64(c.Marks) / float64(c.TotalMarks) * 100
			n++
		}
		if n == 0 {
			weighted[t] = 0
			continue
		}
		contribution := sum / float64(n) * float64(weight) / 100
		weighted[t] = round2(contribution)
		total += contribution
	}
	final := round2(total)
	return weighted, final, LetterGrade(final)
}

// LetterGrade maps a percentage to A/B/C/D/F at 90/80/70/60.
func LetterGrade(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
