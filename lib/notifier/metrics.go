package notifier

import "github.com/fiffu/mangawatch/lib/models"

type passMetrics struct {
	updated       int
	unchanged     int
	errored       int
	notified      int
	notifyFailed  int
	failures      []models.MangaFailure
	updatedTitles []string
}

func (m *passMetrics) Add(other *passMetrics) {
	m.updated += other.updated
	m.unchanged += other.unchanged
	m.errored += other.errored
	m.notified += other.notified
	m.notifyFailed += other.notifyFailed
	m.failures = append(m.failures, other.failures...)
	m.updatedTitles = append(m.updatedTitles, other.updatedTitles...)
}

func (m *passMetrics) fill(report *models.PassReport) {
	report.Updated = m.updated
	report.Unchanged = m.unchanged
	report.Errored = m.errored
	report.Notified = m.notified
	report.NotifyFailed = m.notifyFailed
	report.Failures = m.failures
	report.UpdatedTitles = m.updatedTitles
}
