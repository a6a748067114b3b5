package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
)

const topDiagnosesLimit = 5

// CountBy is one bucket of a grouped count.
type CountBy struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Dashboard struct {
	repository.Totals

	Date            string `json:"date"`
	VisitsToday     int    `json:"visits_today"`
	RegisteredToday int64  `json:"registered_today"`
	ActiveSessions  int64  `json:"active_sessions"`
}

type DailyReport struct {
	Date         string    `json:"date"`
	TotalVisits  int       `json:"total_visits"`
	NewPatients  int       `json:"new_patients"`
	Emergencies  int       `json:"emergencies"`
	FollowUps    int       `json:"follow_ups"`
	ByDepartment []CountBy `json:"by_department"`
	TopDiagnoses []CountBy `json:"top_diagnoses"`
}

type MonthlyReport struct {
	Year               int       `json:"year"`
	Month              string    `json:"month"`
	TotalVisits        int       `json:"total_visits"`
	UniquePatients     int       `json:"unique_patients"`
	AvgDailyVisits     float64   `json:"avg_daily_visits"`
	GenderDistribution []CountBy `json:"gender_distribution"`
	AgeGroups          []CountBy `json:"age_groups"`
	DailyTrend         []CountBy `json:"daily_trend"`
}

type ReportService struct {
	reports  *repository.ReportRepository
	patients *repository.PatientRepository
	sessions *repository.SessionRepository
	audit    *AuditService
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewReportService(
	reports *repository.ReportRepository,
	patients *repository.PatientRepository,
	sessions *repository.SessionRepository,
	audit *AuditService,
	log *zap.Logger,
	loc *time.Location,
) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		reports:  reports,
		patients: patients,
		sessions: sessions,
		audit:    audit,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

// Today returns the current calendar date in the hospital timezone
func (s *ReportService) Today() time.Time {
	return calendarDay(s.now().In(s.loc))
}

func (s *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	totals, err := s.reports.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading totals: %w", err)
	}

	today := s.Today()
	visits, err := s.reports.Visits(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("loading today's visits: %w", err)
	}

	localStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
	registered, err := s.patients.CountRegistered(ctx, localStart.UTC(), localStart.AddDate(0, 0, 1).UTC())
	if err != nil {
		return nil, fmt.Errorf("counting registrations: %w", err)
	}

	sessions, err := s.sessions.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	return &Dashboard{
		Date:            today.Format("2006-01-02"),
		Totals:          totals,
		VisitsToday:     len(visits),
		RegisteredToday: registered,
		ActiveSessions:  sessions,
	}, nil
}

// Daily summarises the visits of one calendar day
func (s *ReportService) Daily(ctx context.Context, day time.Time) (*DailyReport, error) {
	day = calendarDay(day)
	visits, err := s.reports.Visits(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("loading visits: %w", err)
	}

	r := &DailyReport{Date: day.Format("2006-01-02"), TotalVisits: len(visits)}
	departments := map[string]int{}
	diagnoses := map[string]int{}
	for _, v := range visits {
		switch v.VisitType {
		case models.VisitNew:
			r.NewPatients++
		case models.VisitEmergency:
			r.Emergencies++
		case models.VisitFollowUp:
			r.FollowUps++
		}
		dept := v.Department
		if dept == "" {
			dept = "Unassigned"
		}
		departments[dept]++
		diagnoses[v.Diagnosis]++
	}

	r.ByDepartment = sortedCounts(departments, 0)
	r.TopDiagnoses = sortedCounts(diagnoses, topDiagnosesLimit)
	return r, nil
}

// Monthly summarises the visits of one calendar month
func (s *ReportService) Monthly(ctx context.Context, year int, month time.Month) (*MonthlyReport, error) {
	if month < time.January || month > time.December {
		return nil, &ValidationError{Fields: []string{"month must be between 1 and 12"}}
	}
	if year < 1900 || year > 9999 {
		return nil, &ValidationError{Fields: []string{"year is out of range"}}
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	visits, err := s.reports.Visits(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading visits: %w", err)
	}

	r := &MonthlyReport{Year: year, Month: month.String(), TotalVisits: len(visits)}
	patients := map[uint]bool{}
	genders := map[string]int{}
	ages := map[string]int{"0-18": 0, "19-35": 0, "36-50": 0, "51+": 0}
	trend := map[string]int{}
	today := s.Today()

	for _, v := range visits {
		patients[v.PatientID] = true
		genders[string(v.Gender)]++
		age := models.Patient{DateOfBirth: v.DateOfBirth}.AgeAt(today)
		ages[reportAgeBand(age)]++
		trend[v.VisitDate.Format("2006-01-02")]++
	}

	r.UniquePatients = len(patients)
	days := end.Sub(start).Hours() / 24
	r.AvgDailyVisits = math.Round(float64(len(visits))/days*100) / 100
	r.GenderDistribution = sortedCounts(genders, 0)
	r.AgeGroups = []CountBy{
		{Key: "0-18", Count: ages["0-18"]},
		{Key: "19-35", Count: ages["19-35"]},
		{Key: "36-50", Count: ages["36-50"]},
		{Key: "51+", Count: ages["51+"]},
	}

	r.DailyTrend = make([]CountBy, 0, len(trend))
	for d, n := range trend {
		r.DailyTrend = append(r.DailyTrend, CountBy{Key: d, Count: n})
	}
	sort.Slice(r.DailyTrend, func(i, j int) bool { return r.DailyTrend[i].Key < r.DailyTrend[j].Key })
	return r, nil
}

// ExportDaily writes the daily report as CSV and records the export
func (s *ReportService) ExportDaily(ctx context.Context, actor Actor, r *DailyReport, w io.Writer) error {
	if err := WriteDailyCSV(w, r); err != nil {
		return fmt.Errorf("writing daily report: %w", err)
	}
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditExport,
		ModelName: "Report",
		Details:   fmt.Sprintf("Exported daily report for %s", r.Date),
	})
	return nil
}

// WriteDailyCSV renders a daily report as Metric,Value rows
func WriteDailyCSV(w io.Writer, r *DailyReport) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Metric", "Value"},
		{"Date", r.Date},
		{"Total Visits", strconv.Itoa(r.TotalVisits)},
		{"New Patients", strconv.Itoa(r.NewPatients)},
		{"Emergencies", strconv.Itoa(r.Emergencies)},
		{"Follow Ups", strconv.Itoa(r.FollowUps)},
	}
	for _, d := range r.ByDepartment {
		rows = append(rows, []string{"Department: " + d.Key, strconv.Itoa(d.Count)})
	}
	for _, d := range r.TopDiagnoses {
		rows = append(rows, []string{"Diagnosis: " + d.Key, strconv.Itoa(d.Count)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func reportAgeBand(age int) string {
	switch {
	case age <= 18:
		return "0-18"
	case age <= 35:
		return "19-35"
	case age <= 50:
		return "36-50"
	default:
		return "51+"
	}
}

// sortedCounts orders buckets by count descending then key, keeping at most
// limit entries when limit is positive.
func sortedCounts(m map[string]int, limit int) []CountBy {
	out := make([]CountBy, 0, len(m))
	for k, n := range m {
		out = append(out, CountBy{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
