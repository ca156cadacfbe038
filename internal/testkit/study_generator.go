package testkit

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"studykit/domain/study"
)

// StudyGeneratorConfig configures the synthetic study generator
type StudyGeneratorConfig struct {
	Participants   int       `json:"participants"`
	Days           int       `json:"days"`
	SessionsPerDay int       `json:"sessions_per_day"`
	Start          time.Time `json:"start"`
	Surveys        []string  `json:"surveys"`
	Questions      []string  `json:"questions"`
	SkipRate       float64   `json:"skip_rate"`
	NotSeenRate    float64   `json:"not_seen_rate"`
	Seed           int64     `json:"seed"`
}

// DefaultStudyConfig returns a small two-week EMA study
func DefaultStudyConfig() StudyGeneratorConfig {
	return StudyGeneratorConfig{
		Participants:   3,
		Days:           14,
		SessionsPerDay: 2,
		Start:          time.Date(2025, time.May, 1, 13, 0, 0, 0, time.UTC),
		Surveys:        []string{"Completed an EMA survey", "Weekly check-in"},
		Questions:      []string{"intent", "urge"},
		SkipRate:       0.1,
		NotSeenRate:    0.05,
		Seed:           42,
	}
}

// StudyGenerator produces reproducible sessions and 0-10 rating responses
type StudyGenerator struct {
	config StudyGeneratorConfig
	rng    *rand.Rand
}

// NewStudyGenerator creates a new generator
func NewStudyGenerator(config StudyGeneratorConfig) *StudyGenerator {
	return &StudyGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds a full study snapshot
func (g *StudyGenerator) Generate() *study.Data {
	data := &study.Data{}
	for i, name := range g.config.Surveys {
		for _, q := range g.config.Questions {
			data.Questions = append(data.Questions, study.Question{
				SurveyID:   fmt.Sprintf("survey-%d", i+1),
				SurveyName: name,
				ID:         fmt.Sprintf("q-%d-%s", i+1, q),
				Name:       q,
				Text:       "How strong is your " + q + " right now?",
				Type:       "slider",
			})
		}
	}

	seq := 0
	for p := 0; p < g.config.Participants; p++ {
		participant := fmt.Sprintf("ppt-%d", 1001+p)
		alias := fmt.Sprintf("mw-%08x", g.rng.Uint32())
		for d := 0; d < g.config.Days; d++ {
			for s := 0; s < g.config.SessionsPerDay; s++ {
				seq++
				surveyIdx := g.rng.Intn(len(g.config.Surveys))
				started := g.config.Start.AddDate(0, 0, d).
					Add(time.Duration(s*4) * time.Hour).
					Add(time.Duration(g.rng.Intn(60)) * time.Minute)
				sess := study.Session{
					ID:            fmt.Sprintf("sess-%05d", seq),
					SurveyID:      fmt.Sprintf("survey-%d", surveyIdx+1),
					SurveyName:    g.config.Surveys[surveyIdx],
					Alias:         alias,
					ParticipantID: participant,
					TriggerType:   "scheduled",
					StartedAt:     started,
					EndedAt:       started.Add(3 * time.Minute),
				}
				data.Sessions = append(data.Sessions, sess)
				data.Responses = append(data.Responses, g.responses(sess, surveyIdx)...)
			}
		}
	}
	return data
}

func (g *StudyGenerator) responses(sess study.Session, surveyIdx int) []study.Response {
	var out []study.Response
	opened := sess.StartedAt
	for _, q := range g.config.Questions {
		r := study.Response{
			SessionID:    sess.ID,
			QuestionID:   fmt.Sprintf("q-%d-%s", surveyIdx+1, q),
			QuestionName: q,
			QuestionText: "How strong is your " + q + " right now?",
		}
		switch roll := g.rng.Float64(); {
		case roll < g.config.NotSeenRate:
			r.NotSeen = true
		case roll < g.config.NotSeenRate+g.config.SkipRate:
			r.Skipped = true
		default:
			r.Content = strconv.Itoa(g.rng.Intn(11))
			openedAt := opened
			respondedAt := opened.Add(time.Duration(5+g.rng.Intn(20)) * time.Second)
			duration := respondedAt.Sub(openedAt).Seconds()
			r.OpenedAt, r.RespondedAt, r.DurationSeconds = &openedAt, &respondedAt, &duration
			opened = respondedAt
		}
		out = append(out, r)
	}
	return out
}
