package testkit

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"studykit/domain/study"
)

// RiskStudy is the five-session intent/urge scenario. Tagging it with
// RiskTaggingConfig yields No, Some, Some, High, High risk for s1..s5.
func RiskStudy() *study.Data {
	pairs := []struct {
		id           string
		intent, urge string
	}{
		{"s1", "0", "0"},
		{"s2", "1", "5"},
		{"s3", "0", "1"},
		{"s4", "8", "0"},
		{"s5", "1", "8"},
	}
	base := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	data := &study.Data{
		Questions: []study.Question{
			{SurveyID: "survey-1", SurveyName: "Completed an EMA survey", ID: "q1", Name: "intent", Text: "Intent to use?", Type: "slider"},
			{SurveyID: "survey-1", SurveyName: "Completed an EMA survey", ID: "q2", Name: "urge", Text: "Urge to use?", Type: "slider"},
		},
	}
	for i, p := range pairs {
		started := base.AddDate(0, 0, i)
		data.Sessions = append(data.Sessions, study.Session{
			ID:            p.id,
			SurveyID:      "survey-1",
			SurveyName:    "Completed an EMA survey",
			Alias:         "mw-abc",
			ParticipantID: "ppt-1001",
			TriggerType:   "scheduled",
			StartedAt:     started,
			EndedAt:       started.Add(2 * time.Minute),
		})
		data.Responses = append(data.Responses,
			study.Response{SessionID: p.id, QuestionID: "q1", QuestionName: "intent", Content: p.intent},
			study.Response{SessionID: p.id, QuestionID: "q2", QuestionName: "urge", Content: p.urge},
		)
	}
	return data
}

// RiskTaggingConfig holds the tagging tables for RiskStudy, keyed by file
// name.
var RiskTaggingConfig = map[string]string{
	"workflows.csv": `id,name,workflow_type,logical_operator,tag_id
wf_no,No risk,1,AND,tag_no
wf_some,Some risk,1,OR,tag_some
wf_high,High risk,1,OR,tag_high
`,
	"condition_groups.csv": `id,workflow_id,logical_operator
grp_no,wf_no,AND
grp_s1,wf_some,AND
grp_s2,wf_some,AND
grp_h1,wf_high,AND
grp_h2,wf_high,AND
`,
	"conditions.csv": `id,group_id,operator,value,skip_behavior
cond1,grp_no,==,0,0
cond2,grp_no,==,0,0
cond3,grp_s1,>,0,0
cond4,grp_s1,<,8,0
cond5,grp_s1,<,8,0
cond6,grp_s2,==,0,0
cond7,grp_s2,>,0,0
cond8,grp_h1,>=,8,0
cond9,grp_h2,>,7,0
cond10,grp_h2,>,0,0
`,
	"condition_questions.csv": `condition_id,question_name
cond1,intent
cond2,urge
cond3,intent
cond4,intent
cond5,urge
cond6,intent
cond7,urge
cond8,intent
cond9,urge
cond10,intent
`,
	"tags.csv": `id,title,color,explanation
tag_no,No risk,#2ca02c,Both ratings are zero
tag_some,Some risk,#ff7f0e,Any rating below eight
tag_high,High risk,#d62728,A rating of eight or more
`,
}

// PaymentConfig holds a rate table and a schema table for the EMA survey.
var PaymentConfig = map[string]string{
	"rates_v1.csv": `id,rate,reason
1,$2.00,EMA survey
2,"$1,000.00",Study completion
3,$5.00,Bonus day
`,
	"schema_v1.csv": `name,rate_id,num_possible_per_day,num_days,bonus_threshold,bonus_rate_id
Daily EMA,1,1,5,1,3
`,
}

// DownloadConfig holds an alias map and a question filter.
var DownloadConfig = map[string]string{
	"alias_v1.csv": `within_study_id,metricwire_alias
ppt-1001,mw-abc
ppt-1002,mw-def
`,
	"questions_v1.csv": `question_labels
intent
urge
`,
}

// SettingsCSV is a settings table with one study, "pilot".
const SettingsCSV = `study_name,mw_workspace_id,mw_study_id,default_tags
pilot,ws-1,study-1,High risk|Some risk
example,ws-0,621920605978cd435ce7cf72,
`

// WriteFiles writes name -> content pairs into dir.
func WriteFiles(dir string, files map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.TrimLeft(content, "\n")), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// WriteStudyConfig lays out tagging, payment and download tables for
// study under configRoot, plus settings.csv at configRoot/settings.csv.
func WriteStudyConfig(configRoot, name string) error {
	dirs := map[string]map[string]string{
		filepath.Join(configRoot, "tagging", name):  RiskTaggingConfig,
		filepath.Join(configRoot, "payments", name): PaymentConfig,
		filepath.Join(configRoot, "download", name): DownloadConfig,
	}
	for dir, files := range dirs {
		if err := WriteFiles(dir, files); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(configRoot, "settings.csv"), []byte(SettingsCSV), 0o644)
}
