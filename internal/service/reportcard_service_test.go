package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/repository"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type fakeReportCardRepo struct {
	cards     map[string]*models.ReportCard
	lines     map[string][]models.ReportCardLine
	jobs      map[string]*models.ReportExportJob
	published []string
}

func newFakeReportCardRepo() *fakeReportCardRepo {
	return &fakeReportCardRepo{
		cards: map[string]*models.ReportCard{},
		lines: map[string][]models.ReportCardLine{},
		jobs:  map[string]*models.ReportExportJob{},
	}
}

func (f *fakeReportCardRepo) Create(_ context.Context, card *models.ReportCard) error {
	for _, existing := range f.cards {
		if existing.StudentID == card.StudentID && existing.Year == card.Year && existing.Semester == card.Semester {
			return appErrors.Wrap(errors.New("duplicate key"), appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "duplicate report card")
		}
	}
	f.cards[card.ID] = card
	return nil
}

func (f *fakeReportCardRepo) FindByID(_ context.Context, id string) (*models.ReportCard, error) {
	card, ok := f.cards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *card
	return &copied, nil
}

func (f *fakeReportCardRepo) List(_ context.Context, studentID string) ([]models.ReportCard, error) {
	var out []models.ReportCard
	for _, card := range f.cards {
		if card.StudentID == studentID {
			out = append(out, *card)
		}
	}
	return out, nil
}

func (f *fakeReportCardRepo) ListLines(_ context.Context, reportCardID string) ([]models.ReportCardLine, error) {
	return f.lines[reportCardID], nil
}

func (f *fakeReportCardRepo) AddLines(_ context.Context, lines []models.ReportCardLine) error {
	for _, line := range lines {
		f.lines[line.ReportCardID] = append(f.lines[line.ReportCardID], line)
	}
	return nil
}

func (f *fakeReportCardRepo) SetPublished(_ context.Context, id string, publishedAt time.Time) error {
	card, ok := f.cards[id]
	if !ok {
		return sql.ErrNoRows
	}
	card.Status = models.ReportCardStatusPublished
	card.PublishedAt = &publishedAt
	f.published = append(f.published, id)
	return nil
}

func (f *fakeReportCardRepo) CreateExportJob(_ context.Context, job *models.ReportExportJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeReportCardRepo) FindExportJob(_ context.Context, id string) (*models.ReportExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (f *fakeReportCardRepo) UpdateExportJob(_ context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := f.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

type fakeGradeLister struct {
	grades []models.Grade
}

func (f *fakeGradeLister) List(context.Context, models.GradeFilter) ([]models.Grade, error) {
	return f.grades, nil
}

func newReportCardFixture(grades []models.Grade) (*ReportCardService, *fakeReportCardRepo) {
	repo := newFakeReportCardRepo()
	students := &fakeStudentRepo{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID, FirstName: "Lena", LastName: "Morris"}},
	}}
	svc := NewReportCardService(repo, &fakeGradeLister{grades: grades}, students, nil, nil)
	return svc, repo
}

func TestGenerateAveragesPerSubject(t *testing.T) {
	grades := []models.Grade{
		{StudentID: testStudentID, Subject: "Math", GradeValue: 5},
		{StudentID: testStudentID, Subject: "Math", GradeValue: 4},
		{StudentID: testStudentID, Subject: "History", GradeValue: 6},
	}
	svc, repo := newReportCardFixture(grades)

	detail, err := svc.Generate(context.Background(), ReportCardRequest{
		StudentID: testStudentID,
		Year:      2026,
		Semester:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportCardStatusDraft, detail.Status)
	require.Len(t, detail.Lines, 2)

	// Lines come back in subject order.
	assert.Equal(t, "History", detail.Lines[0].Subject)
	assert.InDelta(t, 6.0, detail.Lines[0].FinalGrade, 0.001)
	assert.Equal(t, "Math", detail.Lines[1].Subject)
	assert.InDelta(t, 4.5, detail.Lines[1].FinalGrade, 0.001)

	stored := repo.lines[detail.ID]
	assert.Len(t, stored, 2)
}

func TestGenerateDuplicateSemester(t *testing.T) {
	grades := []models.Grade{{StudentID: testStudentID, Subject: "Math", GradeValue: 5}}
	svc, repo := newReportCardFixture(grades)

	req := ReportCardRequest{StudentID: testStudentID, Year: 2026, Semester: 1}
	_, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already exists")
	assert.Len(t, repo.cards, 1)
}

func TestGenerateWithoutGrades(t *testing.T) {
	svc, _ := newReportCardFixture(nil)

	_, err := svc.Generate(context.Background(), ReportCardRequest{
		StudentID: testStudentID,
		Year:      2026,
		Semester:  1,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAddLinesAppendsToDraft(t *testing.T) {
	svc, repo := newReportCardFixture(nil)
	card := &models.ReportCard{
		ID:        "card-1",
		StudentID: testStudentID,
		Year:      2026,
		Semester:  1,
		Status:    models.ReportCardStatusDraft,
	}
	require.NoError(t, repo.Create(context.Background(), card))

	comment := "steady participation"
	detail, err := svc.AddLines(context.Background(), "card-1", AddLinesRequest{
		Lines: []ReportCardLineRequest{
			{Subject: "Art", FinalGrade: 5, Comments: &comment},
			{Subject: "Music", FinalGrade: 4.5},
		},
	})
	require.NoError(t, err)
	require.Len(t, detail.Lines, 2)
	assert.Equal(t, "Art", detail.Lines[0].Subject)
	require.NotNil(t, detail.Lines[0].Comments)
	assert.Equal(t, comment, *detail.Lines[0].Comments)

	// A card created without grades still accepts lines directly.
	assert.Len(t, repo.lines["card-1"], 2)
}

func TestAddLinesUnknownCard(t *testing.T) {
	svc, _ := newReportCardFixture(nil)

	_, err := svc.AddLines(context.Background(), "ghost", AddLinesRequest{
		Lines: []ReportCardLineRequest{{Subject: "Art", FinalGrade: 5}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAddLinesRejectsPublishedCard(t *testing.T) {
	grades := []models.Grade{{StudentID: testStudentID, Subject: "Math", GradeValue: 5}}
	svc, _ := newReportCardFixture(grades)

	detail, err := svc.Generate(context.Background(), ReportCardRequest{
		StudentID: testStudentID,
		Year:      2026,
		Semester:  1,
	})
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), detail.ID)
	require.NoError(t, err)

	_, err = svc.AddLines(context.Background(), detail.ID, AddLinesRequest{
		Lines: []ReportCardLineRequest{{Subject: "Art", FinalGrade: 5}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPublishIsOneWay(t *testing.T) {
	grades := []models.Grade{{StudentID: testStudentID, Subject: "Math", GradeValue: 5}}
	svc, repo := newReportCardFixture(grades)

	detail, err := svc.Generate(context.Background(), ReportCardRequest{
		StudentID: testStudentID,
		Year:      2026,
		Semester:  1,
	})
	require.NoError(t, err)

	card, err := svc.Publish(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportCardStatusPublished, card.Status)
	require.NotNil(t, card.PublishedAt)
	assert.Len(t, repo.published, 1)

	_, err = svc.Publish(context.Background(), detail.ID)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}
