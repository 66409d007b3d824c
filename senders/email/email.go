package email

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/fiffu/mangawatch/lib/models"
)

var (
	//go:embed report.html
	reportHTML     string
	reportTemplate = template.Must(template.New("report.html").Parse(reportHTML))
)

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

type ReportEmailFormat struct {
	Report *models.PassReport
}

func (ef *ReportEmailFormat) Subject() string {
	r := ef.Report
	return fmt.Sprintf("Mangawatch: %d updated, %d failed (pass %s)", r.Updated, r.Errored, r.ID)
}

func (ef *ReportEmailFormat) Body() string {
	return mustFillTemplate(reportTemplate, ef.Report)
}
