package ui

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studykit/adapters/tabular"
	"studykit/app"
	"studykit/domain/core"
	"studykit/internal/configexplorer"
	"studykit/internal/errors"
	"studykit/ui/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListStudies(c *gin.Context) {
	studies, err := s.c.Studies.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": studies})
}

type downloadBody struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AliasFile    string `json:"alias_file"`
	QuestionFile string `json:"question_file"`
	DumpJSON     bool   `json:"dump_json"`
}

func (s *Server) handleDownload(c *gin.Context) {
	name := middleware.StudyName(c)
	var body downloadBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, errors.InvalidInput("invalid download request: "+err.Error()))
			return
		}
	}
	result, err := s.c.Imports.Download(c.Request.Context(), app.DownloadRequest{
		Study:        name,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		AliasFile:    body.AliasFile,
		QuestionFile: body.QuestionFile,
		DumpJSON:     body.DumpJSON,
	}, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTag(c *gin.Context) {
	name := middleware.StudyName(c)
	result, err := s.c.Tagging.Tag(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func timelineRequest(c *gin.Context, name core.StudyName) app.TimelineRequest {
	return app.TimelineRequest{
		Study:       name,
		Range:       c.Query("range"),
		Participant: c.Query("participant"),
		Tags:        listQuery(c, "tags"),
		Timezone:    c.Query("tz"),
	}
}

func (s *Server) handleTimeline(c *gin.Context) {
	name := middleware.StudyName(c)
	result, err := s.c.Timeline.Timeline(c.Request.Context(), timelineRequest(c, name))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTimelineExport(c *gin.Context) {
	name := middleware.StudyName(c)
	var buf bytes.Buffer
	if _, err := s.c.Timeline.Export(c.Request.Context(), timelineRequest(c, name), &buf); err != nil {
		respondError(c, err)
		return
	}
	attachment(c, fmt.Sprintf("%s_timeline.xlsx", name), buf.Bytes())
}

func (s *Server) handleParticipants(c *gin.Context) {
	name := middleware.StudyName(c)
	ids, err := s.c.Payments.Participants(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": ids})
}

func (s *Server) handlePaymentFiles(c *gin.Context) {
	name := middleware.StudyName(c)
	files, err := s.c.Payments.Files(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handlePaymentReport(c *gin.Context) {
	name := middleware.StudyName(c)
	var req app.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("invalid payment request: "+err.Error()))
		return
	}
	req.Study = name
	report, err := s.c.Payments.Report(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// paymentQuery reads a payment request from query parameters. Manual
// counts are given as manual=<rate id>:<count>,...
func paymentQuery(c *gin.Context, name core.StudyName) (app.PaymentRequest, error) {
	req := app.PaymentRequest{
		Study:       name,
		Participant: c.Query("participant"),
		RateFile:    c.Query("rate_file"),
		SchemaFile:  c.Query("schema_file"),
		Timezone:    c.Query("tz"),
	}
	if start := c.Query("start"); start != "" {
		d, err := core.ParseDate(start)
		if err != nil {
			return req, errors.InvalidInput(fmt.Sprintf("invalid start date %q", start))
		}
		req.Start = d
	}
	manual, err := parseManualCounts(c.Query("manual"))
	if err != nil {
		return req, err
	}
	req.Manual = manual
	return req, nil
}

func parseManualCounts(raw string) (map[string]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	counts := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		id, n, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || id == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("invalid manual count %q (want rate_id:count)", pair))
		}
		count, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || count < 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("invalid manual count %q", pair))
		}
		counts[strings.TrimSpace(id)] = count
	}
	return counts, nil
}

func (s *Server) handlePaymentExport(c *gin.Context) {
	name := middleware.StudyName(c)
	req, err := paymentQuery(c, name)
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	report, err := s.c.Payments.Export(c.Request.Context(), req, &buf)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, fmt.Sprintf("%s_%s_payment.xlsx", name, report.Participant), buf.Bytes())
}

func attachment(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, body)
}

func (s *Server) handleListConfigs(c *gin.Context) {
	name := middleware.StudyName(c)
	files, err := s.c.Explorer.List(name)
	if err != nil {
		respondError(c, err)
		return
	}
	if files == nil {
		files = []configexplorer.ConfigFile{}
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) handleDescribeConfig(c *gin.Context) {
	name := middleware.StudyName(c)
	described, err := s.c.Explorer.Describe(c.Param("workflow"), name, c.Param("file"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, described)
}

// uploadedFile reads the multipart "file" field.
func uploadedFile(c *gin.Context) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.InvalidInput("a multipart \"file\" field is required")
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "open upload")
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return "", nil, errors.Wrap(err, "read upload")
	}
	return header.Filename, body, nil
}

func (s *Server) handleExplainUpload(c *gin.Context) {
	filename, body, err := uploadedFile(c)
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := tabular.ParseTable(filename, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, configexplorer.ExplainTable(t))
}

func (s *Server) handleUploadConfig(c *gin.Context) {
	name := middleware.StudyName(c)
	filename, body, err := uploadedFile(c)
	if err != nil {
		respondError(c, err)
		return
	}
	saved, err := s.c.Explorer.Save(c.Param("workflow"), name, filename, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}
